// Package cart is the buyer's shopping cart. It lives entirely in client
// storage under domain.KeyCart; nothing reaches a backend until checkout.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"petit-storefront/internal/domain"
	"petit-storefront/internal/store"
)

// Cart is one client's cart. Every mutation rewrites the full line list.
type Cart struct {
	local *store.Local
	items []domain.LineItem
}

// Load hydrates the cart from storage. A missing or unparsable value
// yields an empty cart.
func Load(ctx context.Context, local *store.Local) *Cart {
	c := &Cart{local: local}
	var items []domain.LineItem
	if local.GetJSON(ctx, domain.KeyCart, &items) {
		c.items = items
	}
	return c
}

// Snapshot is the cart as the UI renders it.
type Snapshot struct {
	Items      []Line `json:"items"`
	TotalItems int    `json:"totalItems"`
	TotalPrice string `json:"totalPrice"` // e.g. "15.00"
	Display    string `json:"display"`    // e.g. "$15.00"
}

// Line is a line item with its computed line total.
type Line struct {
	domain.LineItem
	LineTotal string `json:"lineTotal"`
	Display   string `json:"display"`
}

// Items returns a copy of the current lines.
func (c *Cart) Items() []domain.LineItem {
	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.items) }

// Quantity returns the quantity held for id, or 0.
func (c *Cart) Quantity(id string) int {
	if i := c.index(id); i >= 0 {
		return c.items[i].Qty()
	}
	return 0
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.items {
		n += it.Qty()
	}
	return n
}

// TotalPrice is the sum of price times quantity.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(lineTotal(it))
	}
	return total
}

func lineTotal(it domain.LineItem) decimal.Decimal {
	return domain.Money(it.Price).Mul(decimal.NewFromInt(int64(it.Qty())))
}

// Snapshot renders the cart with its aggregates.
func (c *Cart) Snapshot() Snapshot {
	s := Snapshot{Items: make([]Line, 0, len(c.items))}
	for _, it := range c.items {
		it.Quantity = it.Qty()
		lt := lineTotal(it)
		s.Items = append(s.Items, Line{LineItem: it, LineTotal: lt.StringFixed(2), Display: domain.FormatUSD(lt)})
	}
	total := c.TotalPrice()
	s.TotalItems = c.TotalItems()
	s.TotalPrice = total.StringFixed(2)
	s.Display = domain.FormatUSD(total)
	return s
}

// Add merges item into the cart: an existing line gains qty, a new one is
// appended with qty. A qty below one counts as one.
func (c *Cart) Add(ctx context.Context, item domain.LineItem, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mutate(ctx, func() {
		if i := c.index(item.ID); i >= 0 {
			c.items[i].Quantity = c.items[i].Qty() + qty
		} else {
			item.Quantity = qty
			c.items = append(c.items, item)
		}
	})
}

// Remove drops the line for id.
func (c *Cart) Remove(ctx context.Context, id string) {
	c.mutate(ctx, func() { c.remove(id) })
}

// SetQuantity replaces the quantity for id. A qty of zero or less removes
// the line. Unknown ids are ignored.
func (c *Cart) SetQuantity(ctx context.Context, id string, qty int) {
	c.mutate(ctx, func() { c.setQuantity(id, qty) })
}

// Decrement is the page-view "-" control: a line at one is removed,
// anything above loses one.
func (c *Cart) Decrement(ctx context.Context, id string) {
	c.mutate(ctx, func() {
		if q := c.Quantity(id); q > 0 {
			c.setQuantity(id, q-1)
		}
	})
}

// StepDown is the cart-page "-" control, which stops at one.
func (c *Cart) StepDown(ctx context.Context, id string) {
	c.mutate(ctx, func() {
		if q := c.Quantity(id); q > 0 {
			c.setQuantity(id, max(1, q-1))
		}
	})
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) {
	c.mutate(ctx, func() { c.items = nil })
}

// mutate reloads the stored lines, applies fn and persists, all under the
// client's write lock, so overlapping requests from one browser each see
// the other's change.
func (c *Cart) mutate(ctx context.Context, fn func()) {
	c.local.Update(func() {
		var items []domain.LineItem
		if c.local.GetJSON(ctx, domain.KeyCart, &items) {
			c.items = items
		} else {
			c.items = nil
		}
		fn()
		c.persist(ctx)
	})
}

func (c *Cart) remove(id string) {
	if i := c.index(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

func (c *Cart) setQuantity(id string, qty int) {
	i := c.index(id)
	if i < 0 {
		return
	}
	if qty <= 0 {
		c.remove(id)
		return
	}
	c.items[i].Quantity = qty
}

func (c *Cart) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) persist(ctx context.Context) {
	items := c.items
	if items == nil {
		items = []domain.LineItem{}
	}
	c.local.SetJSON(ctx, domain.KeyCart, items)
}
