package domain

import "time"

// ShippingInfo is the checkout address form.
type ShippingInfo struct {
	FullName     string `json:"fullName"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
	ShippingType string `json:"shippingType"`
}

// OrderRecord is one entry of the buyer's local purchase history.
type OrderRecord struct {
	ID        int64     `json:"id"`
	ItemsJSON string    `json:"itemsJson"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingPayPal remembers a started PayPal checkout between order creation
// and buyer approval.
type PendingPayPal struct {
	OrderID       int64         `json:"orderId"`
	PayPalOrderID string        `json:"payPalOrderId"`
	Total         string        `json:"total"`
	Shipping      *ShippingInfo `json:"shipping,omitempty"`
}

// FavoriteProduct is a product saved to the buyer's favorites.
type FavoriteProduct struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Image      string  `json:"image,omitempty"`
	BusinessID string  `json:"businessId,omitempty"`
}

// FavoriteBusiness is a business saved to the buyer's favorites.
type FavoriteBusiness struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	City     string `json:"city,omitempty"`
}

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}
