// Package checkout turns the buyer's cart into an order, either directly
// or through a two-phase PayPal payment.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/cart"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

var (
	ErrEmptyCart        = errors.New("checkout: cart is empty")
	ErrNoAddress        = errors.New("checkout: shipping address required")
	ErrPayPalDisabled   = errors.New("checkout: paypal is not configured")
	ErrNoPendingPayment = errors.New("checkout: no pending paypal payment")
)

const (
	msgNoAddress      = "Please provide a shipping address before checkout."
	msgCheckout       = "Checkout failed"
	msgCreateOrder    = "Failed to create order"
	msgCapture        = "Failed to capture payment"
	msgGateway        = "PayPal payment failed. Please try again or contact support."
	msgCancelled      = "Payment cancelled"
	msgPaidNotice     = "Payment completed successfully!"
	payPalDescription = "Petit Shop Order #%d"
)

// OrdersAPI is the order part of the management API.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, token string, in backend.OrderRequest) (int64, error)
	CreatePayPalOrder(ctx context.Context, token string, in backend.PayPalOrderRequest) (int64, error)
	CapturePayPalOrder(ctx context.Context, token string, in backend.PayPalCapture) (json.RawMessage, error)
}

// GatewayOrder is a PayPal order waiting for buyer approval.
type GatewayOrder struct {
	ID         string
	ApproveURL string
}

// Capture is the outcome of capturing an approved PayPal order.
type Capture struct {
	OrderID   string
	PayerID   string
	CaptureID string
	Status    string
}

// PayPalGateway creates and captures PayPal orders.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, amount, description string) (*GatewayOrder, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*Capture, error)
}

// Hooks are told how a PayPal checkout ended.
type Hooks struct {
	OnSuccess func(ctx context.Context, local *store.Local, orderID int64)
	OnError   func(ctx context.Context, local *store.Local, message string)
}

// NoticeHooks report outcomes to the client's open tabs as notice events.
func NoticeHooks() Hooks {
	return Hooks{
		OnSuccess: func(_ context.Context, local *store.Local, _ int64) {
			local.Publish(events.Notice("success", msgPaidNotice))
		},
		OnError: func(_ context.Context, local *store.Local, message string) {
			local.Publish(events.Notice("error", "Payment failed: "+message))
		},
	}
}

// Service runs checkouts. gateway may be nil when PayPal is not configured.
type Service struct {
	orders  OrdersAPI
	gateway PayPalGateway
	hooks   Hooks
	now     func() time.Time
}

// NewService creates a Service.
func NewService(orders OrdersAPI, gateway PayPalGateway, hooks Hooks) *Service {
	return &Service{orders: orders, gateway: gateway, hooks: hooks, now: time.Now}
}

// PayPalEnabled reports whether the PayPal path is available.
func (s *Service) PayPalEnabled() bool { return s.gateway != nil }

func (s *Service) fail(ctx context.Context, local *store.Local, err error) error {
	if s.hooks.OnError != nil {
		s.hooks.OnError(ctx, local, backend.UserMessage(err, msgCheckout))
	}
	return err
}

// --- Direct checkout ---

// Receipt is the result of a direct checkout.
type Receipt struct {
	Order   domain.OrderRecord `json:"order"`
	Message string             `json:"message"`
}

// Checkout posts the cart as an order, records it in the local history
// and empties the cart.
func (s *Service) Checkout(ctx context.Context, local *store.Local, shipping domain.ShippingInfo) (*Receipt, error) {
	if strings.TrimSpace(shipping.Address1) == "" {
		return nil, backend.Failf(http.StatusBadRequest, ErrNoAddress, msgNoAddress)
	}
	c := cart.Load(ctx, local)
	if c.Len() == 0 {
		return nil, backend.Failf(http.StatusBadRequest, ErrEmptyCart, "Your cart is empty")
	}

	itemsJSON, err := json.Marshal(c.Items())
	if err != nil {
		return nil, fmt.Errorf("checkout: encode items: %w", err)
	}
	total, _ := c.TotalPrice().Float64()
	token, _ := session.Token(ctx, local, domain.RoleBuyer)
	req := backend.OrderRequest{
		UserID:        buyerID(session.CachedUser(ctx, local, domain.RoleBuyer)),
		ItemsJSON:     string(itemsJSON),
		Total:         total,
		OrderShipping: backend.FlattenShipping(shipping),
	}

	id, err := s.orders.CreateOrder(ctx, token, req)
	if err != nil {
		log.Printf("ERROR: Checkout for client %s failed: %v", local.ClientID(), err)
		return nil, backend.Failf(backend.StatusOf(err), err, msgCheckout)
	}

	log.Printf("INFO: Client %s placed order %d for %s", local.ClientID(), id, domain.FormatUSD(c.TotalPrice()))
	rec := domain.OrderRecord{ID: id, ItemsJSON: req.ItemsJSON, Total: total, CreatedAt: s.now().UTC()}
	local.Update(func() {
		local.SetJSON(ctx, domain.KeyOrders, append([]domain.OrderRecord{rec}, Orders(ctx, local)...))
	})
	c.Clear(ctx)
	return &Receipt{Order: rec, Message: fmt.Sprintf("Order saved (id: %d)", id)}, nil
}

// buyerID reads the numeric id of the cached buyer profile.
func buyerID(u *domain.SessionUser) *int64 {
	if u == nil {
		return nil
	}
	raw, ok := u.Raw["id"]
	if !ok {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

// --- PayPal ---

// payPalLine is one cart line in the shape the PayPal order endpoint reads.
type payPalLine struct {
	SellerID  int64   `json:"SellerId"`
	ProductID int64   `json:"ProductId"`
	Name      string  `json:"Name"`
	Price     float64 `json:"Price"`
	Quantity  int     `json:"Quantity"`
}

func payPalLines(items []domain.LineItem) []payPalLine {
	out := make([]payPalLine, 0, len(items))
	for _, it := range items {
		seller, err := strconv.ParseInt(it.BusinessID, 10, 64)
		if err != nil || seller == 0 {
			seller = 1
		}
		product, _ := strconv.ParseInt(it.ID, 10, 64)
		out = append(out, payPalLine{
			SellerID: seller, ProductID: product, Name: it.Title, Price: it.Price, Quantity: it.Qty(),
		})
	}
	return out
}

// PayPalStart tells the buyer where to approve the payment.
type PayPalStart struct {
	OrderID       int64  `json:"orderId"`
	PayPalOrderID string `json:"payPalOrderId"`
	ApproveURL    string `json:"approveUrl,omitempty"`
	Total         string `json:"total"` // two decimals
}

// StartPayPal reserves an order upstream, then opens a PayPal order for
// the cart total. The pair is remembered until capture or cancel.
func (s *Service) StartPayPal(ctx context.Context, local *store.Local, shipping *domain.ShippingInfo) (*PayPalStart, error) {
	if s.gateway == nil {
		return nil, backend.Failf(http.StatusServiceUnavailable, ErrPayPalDisabled, "PayPal is not available")
	}
	c := cart.Load(ctx, local)
	if c.Len() == 0 {
		return nil, backend.Failf(http.StatusBadRequest, ErrEmptyCart, "Your cart is empty")
	}

	itemsJSON, err := json.Marshal(payPalLines(c.Items()))
	if err != nil {
		return nil, fmt.Errorf("checkout: encode items: %w", err)
	}
	totalDec := c.TotalPrice()
	total, _ := totalDec.Float64()
	req := backend.PayPalOrderRequest{ItemsJSON: string(itemsJSON), Total: total}
	if shipping != nil {
		req.OrderShipping = backend.FlattenShipping(*shipping)
	}
	token, _ := session.Token(ctx, local, domain.RoleBuyer)

	orderID, err := s.orders.CreatePayPalOrder(ctx, token, req)
	if err != nil {
		log.Printf("ERROR: PayPal order reservation for client %s failed: %v", local.ClientID(), err)
		return nil, s.fail(ctx, local, backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, msgCreateOrder)))
	}

	amount := totalDec.StringFixed(2)
	gw, err := s.gateway.CreateOrder(ctx, amount, fmt.Sprintf(payPalDescription, orderID))
	if err != nil {
		// the reserved order stays upstream
		log.Printf("ERROR: PayPal order create for order %d failed: %v", orderID, err)
		return nil, s.fail(ctx, local, backend.Failf(http.StatusBadGateway, err, msgCreateOrder))
	}

	local.SetJSON(ctx, domain.KeyPendingPayPal, domain.PendingPayPal{
		OrderID: orderID, PayPalOrderID: gw.ID, Total: amount, Shipping: shipping,
	})
	log.Printf("INFO: Client %s started PayPal order %s for order %d (%s)", local.ClientID(), gw.ID, orderID, amount)
	return &PayPalStart{OrderID: orderID, PayPalOrderID: gw.ID, ApproveURL: gw.ApproveURL, Total: amount}, nil
}

// Pending returns the PayPal checkout in progress, if any.
func Pending(ctx context.Context, local *store.Local) (*domain.PendingPayPal, bool) {
	var p domain.PendingPayPal
	if !local.GetJSON(ctx, domain.KeyPendingPayPal, &p) || p.PayPalOrderID == "" {
		return nil, false
	}
	return &p, true
}

// CapturePayPal captures the approved PayPal order and reports the capture
// upstream. On success the cart is emptied and OnSuccess fires. A failure
// leaves the reserved order upstream as it is.
func (s *Service) CapturePayPal(ctx context.Context, local *store.Local, paypalOrderID string) (json.RawMessage, error) {
	if s.gateway == nil {
		return nil, backend.Failf(http.StatusServiceUnavailable, ErrPayPalDisabled, "PayPal is not available")
	}
	pending, ok := Pending(ctx, local)
	if !ok || (paypalOrderID != "" && pending.PayPalOrderID != paypalOrderID) {
		return nil, backend.Failf(http.StatusConflict, ErrNoPendingPayment, "No PayPal payment is waiting for capture")
	}

	details, err := s.gateway.CaptureOrder(ctx, pending.PayPalOrderID)
	if err != nil {
		log.Printf("ERROR: PayPal capture of %s failed: %v", pending.PayPalOrderID, err)
		return nil, s.fail(ctx, local, backend.Failf(http.StatusBadGateway, err, msgGateway))
	}

	token, _ := session.Token(ctx, local, domain.RoleBuyer)
	result, err := s.orders.CapturePayPalOrder(ctx, token, backend.PayPalCapture{
		OrderID:       pending.OrderID,
		PayPalOrderID: details.OrderID,
		PayPalPayerID: details.PayerID,
		Status:        "COMPLETED",
		CaptureID:     details.CaptureID,
	})
	if err != nil {
		log.Printf("ERROR: Reporting capture %s of order %d failed: %v", details.CaptureID, pending.OrderID, err)
		return nil, s.fail(ctx, local, backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, msgCapture)))
	}

	cart.Load(ctx, local).Clear(ctx)
	local.Remove(ctx, domain.KeyPendingPayPal)
	log.Printf("INFO: Order %d paid with PayPal capture %s", pending.OrderID, details.CaptureID)
	if s.hooks.OnSuccess != nil {
		s.hooks.OnSuccess(ctx, local, pending.OrderID)
	}
	return result, nil
}

// CancelPayPal forgets the pending PayPal checkout. The cart is kept.
func (s *Service) CancelPayPal(ctx context.Context, local *store.Local) string {
	if p, ok := Pending(ctx, local); ok {
		log.Printf("INFO: Client %s cancelled PayPal order %s", local.ClientID(), p.PayPalOrderID)
	}
	local.Remove(ctx, domain.KeyPendingPayPal)
	if s.hooks.OnError != nil {
		s.hooks.OnError(ctx, local, msgCancelled)
	}
	return msgCancelled
}

// --- Order history ---

// Orders returns the buyer's local order history, newest first.
func Orders(ctx context.Context, local *store.Local) []domain.OrderRecord {
	var list []domain.OrderRecord
	local.GetJSON(ctx, domain.KeyOrders, &list)
	if list == nil {
		list = []domain.OrderRecord{}
	}
	return list
}

// ClearOrders empties the local order history.
func ClearOrders(ctx context.Context, local *store.Local) {
	local.Remove(ctx, domain.KeyOrders)
	local.Publish(events.ProfileUpdated(string(domain.RoleBuyer), session.CachedUser(ctx, local, domain.RoleBuyer)))
}
