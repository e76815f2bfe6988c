package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/store"
)

// BuyerProfileInput is the buyer profile form.
type BuyerProfileInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Bio        string `json:"bio"`
	PictureURL string `json:"pictureUrl"`
}

// SellerProfileInput is the seller profile form.
type SellerProfileInput struct {
	Email      string `json:"email" validate:"omitempty,contains=@"`
	PictureURL string `json:"pictureUrl"`
}

// BuyerProfile refreshes the buyer profile from the server. When the
// refresh fails the cached copy is returned.
func (s *Service) BuyerProfile(ctx context.Context, local *store.Local) (*domain.SessionUser, error) {
	tok, err := RequireToken(ctx, local, domain.RoleBuyer)
	if err != nil {
		return nil, err
	}
	fresh, err := s.api.GetProfile(ctx, domain.RoleBuyer, tok)
	if err != nil {
		log.Printf("WARN: Refreshing buyer profile for client %s failed: %v", local.ClientID(), err)
		if cached := CachedUser(ctx, local, domain.RoleBuyer); cached != nil {
			return cached, nil
		}
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load profile")
	}
	local.SetJSON(ctx, domain.RoleBuyer.UserKey(), fresh)
	return fresh, nil
}

// UpdateBuyerProfile saves the buyer profile.
func (s *Service) UpdateBuyerProfile(ctx context.Context, local *store.Local, in BuyerProfileInput) (*domain.SessionUser, error) {
	picture, err := s.media.Host(ctx, in.PictureURL)
	if err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Failed to save profile")
	}
	in.PictureURL = picture
	return s.saveProfile(ctx, local, domain.RoleBuyer, in)
}

// UpdateSellerProfile saves the seller profile.
func (s *Service) UpdateSellerProfile(ctx context.Context, local *store.Local, in SellerProfileInput) (*domain.SessionUser, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Enter a valid email")
	}
	picture, err := s.media.Host(ctx, in.PictureURL)
	if err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Failed to save profile")
	}
	in.PictureURL = picture
	return s.saveProfile(ctx, local, domain.RoleSeller, in)
}

// saveProfile PUTs body, merges the answer over the cached profile and
// tells every tab about it.
func (s *Service) saveProfile(ctx context.Context, local *store.Local, role domain.Role, body any) (*domain.SessionUser, error) {
	tok, err := RequireToken(ctx, local, role)
	if err != nil {
		return nil, err
	}
	saved, err := s.api.UpdateProfile(ctx, role, tok, body)
	if err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to save profile")
	}

	merged := CachedUser(ctx, local, role)
	if merged == nil {
		merged = &domain.SessionUser{}
	}
	merged.Merge(saved)
	local.SetJSON(ctx, role.UserKey(), merged)
	local.Publish(events.ProfileUpdated(string(role), merged))
	return merged, nil
}

// PayPalMerchant returns the seller's PayPal merchant id.
func (s *Service) PayPalMerchant(ctx context.Context, local *store.Local) (string, error) {
	tok, err := RequireToken(ctx, local, domain.RoleSeller)
	if err != nil {
		return "", err
	}
	id, err := s.api.GetPayPalMerchant(ctx, tok)
	if err != nil {
		return "", backend.Failf(backend.StatusOf(err), err, "Failed to load PayPal Merchant ID")
	}
	return id, nil
}

// SetPayPalMerchant saves the seller's PayPal merchant id and returns the
// confirmation to show.
func (s *Service) SetPayPalMerchant(ctx context.Context, local *store.Local, merchantID string) (string, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return "", backend.Failf(http.StatusBadRequest, nil, "Please enter your PayPal Merchant ID")
	}
	tok, err := RequireToken(ctx, local, domain.RoleSeller)
	if err != nil {
		return "", err
	}
	msg, err := s.api.SetPayPalMerchant(ctx, tok, merchantID)
	if err != nil {
		return "", backend.Failf(backend.StatusOf(err), err, "Failed to save PayPal Merchant ID")
	}
	if msg == "" {
		msg = "PayPal Merchant ID saved successfully!"
	}
	return msg, nil
}

// --- Password reset ---

// ResetInput is the reset-password form.
type ResetInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"min=6"`
	Confirm  string `json:"confirm" validate:"eqfield=Password"`
}

var resetMessages = map[string]string{
	"Token":    "Token is required",
	"Password": "Password must be at least 6 characters",
	"Confirm":  "Passwords do not match",
}

// ForgotPassword requests a reset mail and returns the message to show.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := s.validate.Var(email, "required,contains=@"); err != nil {
		return "", backend.Failf(http.StatusBadRequest, err, "Enter a valid email")
	}
	sent, err := s.api.ForgotPassword(ctx, email)
	if err != nil {
		return "", backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Failed to request password reset"))
	}
	if sent {
		return "Password reset email sent! Please check your inbox and spam folder.", nil
	}
	return "If an account with that email exists, a password reset email was sent.", nil
}

// ResetPassword sets a new password with a token from the reset mail.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		msg := "Invalid reset request"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if m, ok := resetMessages[verrs[0].Field()]; ok {
				msg = m
			}
		}
		return "", backend.Failf(http.StatusBadRequest, err, "%s", msg)
	}
	if err := s.api.ResetPassword(ctx, in.Token, in.Password); err != nil {
		return "", backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Failed to reset password"))
	}
	return "Password has been reset. You can now log in.", nil
}
