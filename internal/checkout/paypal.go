package checkout

import (
	"context"
	"fmt"
	"log"

	"github.com/plutov/paypal/v4"

	"petit-storefront/internal/config"
)

// PayPal is the PayPalGateway backed by the PayPal Orders v2 REST API.
type PayPal struct {
	client   *paypal.Client
	currency string
	appCtx   paypal.ApplicationContext
}

// NewPayPal authenticates against PayPal with the configured credentials.
func NewPayPal(ctx context.Context, cfg config.PayPalConfig) (*PayPal, error) {
	base := paypal.APIBaseSandBox
	if cfg.Mode == "live" {
		base = paypal.APIBaseLive
	}
	c, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("checkout: paypal client: %w", err)
	}
	if _, err := c.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("checkout: paypal access token: %w", err)
	}
	log.Printf("INFO: PayPal gateway ready (%s mode, %s)", cfg.Mode, cfg.Currency)
	return &PayPal{
		client:   c,
		currency: cfg.Currency,
		appCtx: paypal.ApplicationContext{
			BrandName:          cfg.BrandName,
			ShippingPreference: paypal.ShippingPreferenceNoShipping,
			ReturnURL:          cfg.ReturnURL,
			CancelURL:          cfg.CancelURL,
		},
	}, nil
}

// CreateOrder opens a capture-intent order for amount.
func (p *PayPal) CreateOrder(ctx context.Context, amount, description string) (*GatewayOrder, error) {
	appCtx := p.appCtx
	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{{
		Amount:      &paypal.PurchaseUnitAmount{Currency: p.currency, Value: amount},
		Description: description,
	}}, nil, &appCtx)
	if err != nil {
		return nil, fmt.Errorf("checkout: paypal create order: %w", err)
	}
	out := &GatewayOrder{ID: order.ID}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
			break
		}
	}
	return out, nil
}

// CaptureOrder captures an approved order.
func (p *PayPal) CaptureOrder(ctx context.Context, paypalOrderID string) (*Capture, error) {
	res, err := p.client.CaptureOrder(ctx, paypalOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("checkout: paypal capture: %w", err)
	}
	out := &Capture{OrderID: res.ID, Status: res.Status}
	if res.Payer != nil {
		out.PayerID = res.Payer.PayerID
	}
	for _, pu := range res.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			out.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}
	if out.CaptureID == "" {
		return nil, fmt.Errorf("checkout: paypal capture of %s returned no capture id (status %s)", paypalOrderID, res.Status)
	}
	return out, nil
}
