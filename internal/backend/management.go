package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"petit-storefront/internal/domain"
)

// ManagementClient talks to the primary management API.
type ManagementClient struct {
	c client
}

// NewManagementClient creates a client for the API rooted at baseURL.
func NewManagementClient(baseURL string, timeout time.Duration) *ManagementClient {
	return &ManagementClient{c: newClient(baseURL, timeout)}
}

// BusinessInput is the writable part of a business.
type BusinessInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Country  string `json:"country"`
	City     string `json:"city"`
}

// PageInput creates or renames a page. BusinessID is the management id.
type PageInput struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	BusinessID int64  `json:"businessId"`
}

// CatalogItemInput creates or updates a listed product.
type CatalogItemInput struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Image    string  `json:"image,omitempty"`
	PageID   string  `json:"pageId"`
}

func businessPath(id string) string {
	return "/api/businesses/" + url.PathEscape(id)
}

// ListBusinesses returns the public business directory.
func (m *ManagementClient) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	var ws []wireBusiness
	if err := m.c.do(ctx, http.MethodGet, "/api/businesses", "", nil, &ws); err != nil {
		return nil, err
	}
	return businesses(ws), nil
}

// GetBusiness fetches one business with its pages. A missing business
// yields an error matching ErrNotFound.
func (m *ManagementClient) GetBusiness(ctx context.Context, token, id string) (*domain.Business, error) {
	var w wireBusiness
	if err := m.c.do(ctx, http.MethodGet, businessPath(id), token, nil, &w); err != nil {
		return nil, err
	}
	b := w.business()
	return &b, nil
}

// CreateBusiness creates a business and returns it with its assigned id.
func (m *ManagementClient) CreateBusiness(ctx context.Context, token string, in BusinessInput) (*domain.Business, error) {
	var w wireBusiness
	if err := m.c.do(ctx, http.MethodPost, "/api/businesses", token, in, &w); err != nil {
		return nil, err
	}
	b := w.business()
	return &b, nil
}

func (m *ManagementClient) UpdateBusiness(ctx context.Context, token string, id int64, in BusinessInput) error {
	return m.c.do(ctx, http.MethodPut, businessPath(strconv.FormatInt(id, 10)), token, in, nil)
}

func (m *ManagementClient) DeleteBusiness(ctx context.Context, token string, id int64) error {
	return m.c.do(ctx, http.MethodDelete, businessPath(strconv.FormatInt(id, 10)), token, nil, nil)
}

// ManagementBusinesses lists the signed-in seller's businesses with their
// nested pages and catalog items.
func (m *ManagementClient) ManagementBusinesses(ctx context.Context, token string) ([]domain.Business, error) {
	var ws []wireBusiness
	if err := m.c.do(ctx, http.MethodGet, "/api/management/businesses", token, nil, &ws); err != nil {
		return nil, err
	}
	return businesses(ws), nil
}

func (m *ManagementClient) CreatePage(ctx context.Context, token string, in PageInput) (*domain.Page, error) {
	var w wirePage
	if err := m.c.do(ctx, http.MethodPost, "/api/pages", token, in, &w); err != nil {
		return nil, err
	}
	p := w.page(strconv.FormatInt(in.BusinessID, 10))
	if p.ID == "" {
		p.ID = in.ID
	}
	if p.Title == "" {
		p.Title = in.Title
	}
	return &p, nil
}

func (m *ManagementClient) UpdatePage(ctx context.Context, token string, in PageInput) error {
	return m.c.do(ctx, http.MethodPut, "/api/pages/"+url.PathEscape(in.ID), token, in, nil)
}

func (m *ManagementClient) DeletePage(ctx context.Context, token, id string) error {
	return m.c.do(ctx, http.MethodDelete, "/api/pages/"+url.PathEscape(id), token, nil, nil)
}

// CreateCatalogItem lists a product on a page. The saved item is returned;
// fields the server leaves out are filled from in.
func (m *ManagementClient) CreateCatalogItem(ctx context.Context, token string, in CatalogItemInput) (*domain.CatalogItem, error) {
	var w wireItem
	if err := m.c.do(ctx, http.MethodPost, "/api/cartitems", token, in, &w); err != nil {
		return nil, err
	}
	item := w.catalogItem(in.PageID, "")
	if item.ID == "" {
		item.ID = in.ID
	}
	if item.Title == "" {
		item.Title = in.Title
	}
	if item.Price == 0 {
		item.Price = in.Price
	}
	if item.Category == "" {
		item.Category = in.Category
	}
	if item.Image == "" {
		item.Image = in.Image
	}
	return &item, nil
}

func (m *ManagementClient) UpdateCatalogItem(ctx context.Context, token string, in CatalogItemInput) error {
	return m.c.do(ctx, http.MethodPut, "/api/cartitems/"+url.PathEscape(in.ID), token, in, nil)
}

func (m *ManagementClient) DeleteCatalogItem(ctx context.Context, token, id string) error {
	return m.c.do(ctx, http.MethodDelete, "/api/cartitems/"+url.PathEscape(id), token, nil, nil)
}

// ListProducts returns the flat buyer-facing product listing.
func (m *ManagementClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var ws []wireItem
	if err := m.c.do(ctx, http.MethodGet, "/api/products", "", nil, &ws); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.product())
	}
	return out, nil
}

// --- Auth ---

// AuthResult is the login and register response. Register may answer
// with a verification link instead of a session.
type AuthResult struct {
	Token     string              `json:"token"`
	User      *domain.SessionUser `json:"user"`
	VerifyURL string              `json:"verifyUrl"`
}

// Credentials is the login body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register body. Sellers send their business name as Name.
type Registration struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func authPath(role domain.Role, action string) string {
	return "/api/auth/" + string(role) + "/" + action
}

func (m *ManagementClient) Login(ctx context.Context, role domain.Role, in Credentials) (*AuthResult, error) {
	var out AuthResult
	if err := m.c.do(ctx, http.MethodPost, authPath(role, "login"), "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *ManagementClient) Register(ctx context.Context, role domain.Role, in Registration) (*AuthResult, error) {
	var out AuthResult
	if err := m.c.do(ctx, http.MethodPost, authPath(role, "register"), "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile fetches the profile behind token.
func (m *ManagementClient) GetProfile(ctx context.Context, role domain.Role, token string) (*domain.SessionUser, error) {
	var out domain.SessionUser
	if err := m.c.do(ctx, http.MethodGet, authPath(role, "profile"), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile sends body as the new profile and returns the server's copy.
func (m *ManagementClient) UpdateProfile(ctx context.Context, role domain.Role, token string, body any) (*domain.SessionUser, error) {
	var out domain.SessionUser
	if err := m.c.do(ctx, http.MethodPut, authPath(role, "profile"), token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a reset mail. It reports whether the server
// confirmed delivery.
func (m *ManagementClient) ForgotPassword(ctx context.Context, email string) (bool, error) {
	var out struct {
		EmailSent bool `json:"emailSent"`
	}
	body := map[string]string{"email": email}
	if err := m.c.do(ctx, http.MethodPost, "/api/auth/forgot-password", "", body, &out); err != nil {
		return false, err
	}
	return out.EmailSent, nil
}

func (m *ManagementClient) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := map[string]string{"token": resetToken, "newPassword": newPassword}
	return m.c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", body, nil)
}

type merchantBody struct {
	PayPalMerchantID string `json:"payPalMerchantId"`
	Message          string `json:"message,omitempty"`
}

func (m *ManagementClient) GetPayPalMerchant(ctx context.Context, token string) (string, error) {
	var out merchantBody
	if err := m.c.do(ctx, http.MethodGet, "/api/auth/seller/paypal-merchant", token, nil, &out); err != nil {
		return "", err
	}
	return out.PayPalMerchantID, nil
}

// SetPayPalMerchant saves the merchant id and returns the server's
// confirmation message, if any.
func (m *ManagementClient) SetPayPalMerchant(ctx context.Context, token, merchantID string) (string, error) {
	var out merchantBody
	if err := m.c.do(ctx, http.MethodPut, "/api/auth/seller/paypal-merchant", token, merchantBody{PayPalMerchantID: merchantID}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// --- Orders ---

// OrderShipping is the flattened shipping block every order call carries.
type OrderShipping struct {
	ShippingFullName   string `json:"shippingFullName"`
	ShippingAddress1   string `json:"shippingAddress1"`
	ShippingAddress2   string `json:"shippingAddress2"`
	ShippingCity       string `json:"shippingCity"`
	ShippingState      string `json:"shippingState"`
	ShippingPostalCode string `json:"shippingPostalCode"`
	ShippingCountry    string `json:"shippingCountry"`
	ShippingPhone      string `json:"shippingPhone"`
	ShippingType       string `json:"shippingType"`
}

// FlattenShipping maps the checkout form onto the order fields.
func FlattenShipping(s domain.ShippingInfo) OrderShipping {
	return OrderShipping{
		ShippingFullName:   s.FullName,
		ShippingAddress1:   s.Address1,
		ShippingAddress2:   s.Address2,
		ShippingCity:       s.City,
		ShippingState:      s.State,
		ShippingPostalCode: s.PostalCode,
		ShippingCountry:    s.Country,
		ShippingPhone:      s.Phone,
		ShippingType:       s.ShippingType,
	}
}

// OrderRequest is the direct checkout body. ItemsJSON is the cart encoded
// as a JSON string.
type OrderRequest struct {
	UserID    *int64  `json:"userId"`
	ItemsJSON string  `json:"itemsJson"`
	Total     float64 `json:"total"`
	OrderShipping
}

// PayPalOrderRequest reserves an order before the PayPal approval.
type PayPalOrderRequest struct {
	ItemsJSON string  `json:"itemsJson"`
	Total     float64 `json:"total"`
	OrderShipping
}

// PayPalCapture finalizes a PayPal order after capture.
type PayPalCapture struct {
	OrderID       int64  `json:"orderId"`
	PayPalOrderID string `json:"payPalOrderId"`
	PayPalPayerID string `json:"payPalPayerId"`
	Status        string `json:"status"`
	CaptureID     string `json:"captureId"`
}

// CreateOrder records a direct order and returns its id.
func (m *ManagementClient) CreateOrder(ctx context.Context, token string, in OrderRequest) (int64, error) {
	var out struct {
		ID looseID `json:"id"`
	}
	if err := m.c.do(ctx, http.MethodPost, "/api/orders", token, in, &out); err != nil {
		return 0, err
	}
	id, _ := strconv.ParseInt(string(out.ID), 10, 64)
	return id, nil
}

// CreatePayPalOrder reserves a local order id for a PayPal checkout.
func (m *ManagementClient) CreatePayPalOrder(ctx context.Context, token string, in PayPalOrderRequest) (int64, error) {
	var out struct {
		OrderID looseID `json:"orderId"`
	}
	if err := m.c.do(ctx, http.MethodPost, "/api/orders/paypal/create", token, in, &out); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(string(out.OrderID), 10, 64)
	if err != nil {
		return 0, &APIError{StatusCode: http.StatusBadGateway, Message: "Failed to create order"}
	}
	return id, nil
}

// CapturePayPalOrder reports a completed capture. The response body is
// returned as-is.
func (m *ManagementClient) CapturePayPalOrder(ctx context.Context, token string, in PayPalCapture) (json.RawMessage, error) {
	data, err := m.c.raw(ctx, http.MethodPost, "/api/orders/paypal/capture", token, in)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
