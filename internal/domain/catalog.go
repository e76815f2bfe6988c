package domain

// CatalogItem is a product listed on a page. The management API calls it
// a cart item; it is not a buyer's cart line.
type CatalogItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	Image      string  `json:"image,omitempty"` // base64 data URI or URL
	PageID     string  `json:"pageId,omitempty"`
	BusinessID string  `json:"businessId,omitempty"`
}

// Product is the buyer-facing read model from the flat product listing.
type Product struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	Image      string  `json:"image,omitempty"`
	BusinessID string  `json:"businessId,omitempty"`
}

// LineItem returns the cart line a buyer adds for this product.
func (p Product) LineItem() LineItem {
	return LineItem{
		ID:         p.ID,
		Title:      p.Title,
		Price:      p.Price,
		Category:   p.Category,
		Image:      p.Image,
		BusinessID: p.BusinessID,
	}
}

// LineItem returns the cart line a buyer adds for this catalog item.
func (c CatalogItem) LineItem() LineItem {
	return LineItem{
		ID:         c.ID,
		Title:      c.Title,
		Price:      c.Price,
		Category:   c.Category,
		Image:      c.Image,
		BusinessID: c.BusinessID,
	}
}

// LineItem is one entry of a buyer's cart.
type LineItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	Image      string  `json:"image,omitempty"`
	Quantity   int     `json:"quantity,omitempty"`
	BusinessID string  `json:"businessId,omitempty"`
}

// Qty is the effective quantity. Lines persisted without a quantity count as one.
func (l LineItem) Qty() int {
	if l.Quantity <= 0 {
		return 1
	}
	return l.Quantity
}
