package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"petit-storefront/internal/domain"
)

// SellerClient talks to the secondary seller and chat service.
type SellerClient struct {
	c client
}

// NewSellerClient creates a client for the service rooted at baseURL.
func NewSellerClient(baseURL string, timeout time.Duration) *SellerClient {
	return &SellerClient{c: newClient(baseURL, timeout)}
}

// ListBusinesses returns the businesses the seller service holds.
func (s *SellerClient) ListBusinesses(ctx context.Context, token string) ([]domain.Business, error) {
	var ws []wireBusiness
	if err := s.c.do(ctx, http.MethodGet, "/seller/businesses", token, nil, &ws); err != nil {
		return nil, err
	}
	return businesses(ws), nil
}

// DeleteBusiness removes the seller service copy of a business.
func (s *SellerClient) DeleteBusiness(ctx context.Context, token, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/seller/businesses/"+url.PathEscape(id), token, nil, nil)
}

// SellerChatRequest is the seller assistant body.
type SellerChatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
	Seller  SellerRef            `json:"seller"`
}

// SellerRef names the seller to the assistant. A nil Name is sent as null.
type SellerRef struct {
	Name *string `json:"name"`
}

// SellerChat posts to the seller assistant and returns the raw reply body.
func (s *SellerClient) SellerChat(ctx context.Context, token string, in SellerChatRequest) ([]byte, error) {
	if in.History == nil {
		in.History = []domain.ChatMessage{}
	}
	return s.c.raw(ctx, http.MethodPost, "/seller/ai/chat", token, in)
}

// BuyerChatRequest is the buyer assistant body.
type BuyerChatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
	Buyer   json.RawMessage      `json:"buyer"`
}

// BuyerChat posts to the buyer assistant and returns the raw reply body.
func (s *SellerClient) BuyerChat(ctx context.Context, in BuyerChatRequest) ([]byte, error) {
	if in.History == nil {
		in.History = []domain.ChatMessage{}
	}
	if len(in.Buyer) == 0 {
		in.Buyer = json.RawMessage("null")
	}
	return s.c.raw(ctx, http.MethodPost, "/diff/ai/chat", "", in)
}
