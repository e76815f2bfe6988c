// Package chat relays buyer and seller messages to the assistant service.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

// ErrNotBuyer is returned when buyer chat is used without a buyer profile.
var ErrNotBuyer = errors.New("chat: buyer session required")

// AssistantAPI is the chat part of the seller service.
type AssistantAPI interface {
	BuyerChat(ctx context.Context, in backend.BuyerChatRequest) ([]byte, error)
	SellerChat(ctx context.Context, token string, in backend.SellerChatRequest) ([]byte, error)
}

// Service runs both conversations.
type Service struct {
	api AssistantAPI
}

// NewService creates a Service.
func NewService(api AssistantAPI) *Service {
	return &Service{api: api}
}

// Transcript returns the stored buyer conversation.
func Transcript(ctx context.Context, local *store.Local) []domain.ChatMessage {
	var msgs []domain.ChatMessage
	local.GetJSON(ctx, domain.KeyBuyerChat, &msgs)
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs
}

// SendBuyer appends message and the assistant's answer to the buyer
// transcript and returns it. Assistant failures become assistant messages;
// only a missing buyer profile is an error.
func (s *Service) SendBuyer(ctx context.Context, local *store.Local, message string) ([]domain.ChatMessage, error) {
	buyer := session.CachedUser(ctx, local, domain.RoleBuyer)
	if buyer == nil {
		return nil, backend.Failf(http.StatusForbidden, ErrNotBuyer, "Buyer chat is only available to signed-in buyers")
	}
	history := Transcript(ctx, local)
	if strings.TrimSpace(message) == "" {
		return history, nil
	}

	buyerJSON, err := json.Marshal(buyer)
	if err != nil {
		buyerJSON = []byte("null")
	}
	body, err := s.api.BuyerChat(ctx, backend.BuyerChatRequest{Message: message, History: history, Buyer: buyerJSON})
	reply := buyerReply(body, err)

	var msgs []domain.ChatMessage
	local.Update(func() {
		// another tab may have chatted while the assistant answered
		msgs = append(Transcript(ctx, local),
			domain.ChatMessage{Role: "user", Content: message},
			domain.ChatMessage{Role: "assistant", Content: reply},
		)
		local.SetJSON(ctx, domain.KeyBuyerChat, msgs)
	})
	return msgs, nil
}

func buyerReply(body []byte, err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		return "Error: " + apiErr.Body
	case err != nil:
		log.Printf("WARN: Buyer assistant unreachable: %v", err)
		return "Network error"
	}
	var data struct {
		Reply *string `json:"reply"`
		Raw   struct {
			Choices []struct {
				Message struct {
					Content *string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"raw"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "No reply"
	}
	if data.Reply != nil {
		return *data.Reply
	}
	if len(data.Raw.Choices) > 0 && data.Raw.Choices[0].Message.Content != nil {
		return *data.Raw.Choices[0].Message.Content
	}
	return "No reply"
}

// ClearTranscript forgets the buyer conversation.
func ClearTranscript(ctx context.Context, local *store.Local) {
	local.Remove(ctx, domain.KeyBuyerChat)
}

// SellerReply is the seller assistant's answer. Created is set when the
// assistant created a business.
type SellerReply struct {
	Reply   string          `json:"reply"`
	Created json.RawMessage `json:"created,omitempty"`
}

// SendSeller asks the seller assistant. Each message is sent without history.
func (s *Service) SendSeller(ctx context.Context, local *store.Local, message string) (*SellerReply, error) {
	token, err := session.RequireToken(ctx, local, domain.RoleSeller)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, backend.Failf(http.StatusBadRequest, nil, "Message is required")
	}

	var name *string
	if n := session.CachedUser(ctx, local, domain.RoleSeller).Field("name"); n != "" {
		name = &n
	}
	body, err := s.api.SellerChat(ctx, token, backend.SellerChatRequest{
		Message: message,
		Seller:  backend.SellerRef{Name: name},
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = fmt.Sprintf("HTTP %d", apiErr.StatusCode)
			}
			return &SellerReply{Reply: "Error: " + msg}, nil
		}
		log.Printf("WARN: Seller assistant unreachable: %v", err)
		return &SellerReply{Reply: "Error contacting seller AI: " + err.Error()}, nil
	}
	return sellerReply(body), nil
}

func sellerReply(body []byte) *SellerReply {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return &SellerReply{Reply: "No reply"}
	}
	var data struct {
		Reply   string          `json:"reply"`
		Raw     json.RawMessage `json:"raw"`
		Created json.RawMessage `json:"created"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return &SellerReply{Reply: text}
	}
	out := &SellerReply{Reply: data.Reply}
	if len(data.Created) > 0 && string(data.Created) != "null" {
		out.Created = data.Created
	}
	if out.Reply == "" {
		if len(data.Raw) > 0 && string(data.Raw) != "null" {
			out.Reply = string(data.Raw)
		} else {
			out.Reply = "No reply"
		}
	}
	return out
}
