package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
)

// --- Session & auth handlers ---

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Role domain.Role         `json:"role"`
	User *domain.SessionUser `json:"user"`
}

func roleParam(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Unknown role")
		return "", false
	}
	return role, true
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.session.Status(r.Context(), localFrom(r)))
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var input session.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}
	user, err := h.session.Login(r.Context(), localFrom(r), role, input)
	if err != nil {
		respondWithFailure(w, "Login", err, "Login failed")
		return
	}
	respondWithJSON(w, http.StatusOK, LoginResponse{Role: role, User: user})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var input session.RegisterInput
	if !decodeJSON(w, r, &input) {
		return
	}
	msg, err := h.session.Register(r.Context(), localFrom(r), role, input)
	if err != nil {
		respondWithFailure(w, "Register", err, "Registration failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, MessageResponse{Message: msg})
}

// Logout signs out ?role=buyer|seller|all. Without a role both sessions end.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context(), localFrom(r), r.URL.Query().Get("role")); err != nil {
		respondWithFailure(w, "Logout", err, "Logout failed")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// ForgotPasswordInput is the forgot-password body.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

func (h *HTTPHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input ForgotPasswordInput
	if !decodeJSON(w, r, &input) {
		return
	}
	msg, err := h.session.ForgotPassword(r.Context(), input.Email)
	if err != nil {
		respondWithFailure(w, "ForgotPassword", err, "Request failed")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (h *HTTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input session.ResetInput
	if !decodeJSON(w, r, &input) {
		return
	}
	msg, err := h.session.ResetPassword(r.Context(), input)
	if err != nil {
		respondWithFailure(w, "ResetPassword", err, "Reset failed")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// --- Profile handlers ---

func (h *HTTPHandler) GetBuyerProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.session.BuyerProfile(r.Context(), localFrom(r))
	if err != nil {
		respondWithFailure(w, "BuyerProfile", err, "Failed to load profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) UpdateBuyerProfile(w http.ResponseWriter, r *http.Request) {
	var input session.BuyerProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}
	user, err := h.session.UpdateBuyerProfile(r.Context(), localFrom(r), input)
	if err != nil {
		respondWithFailure(w, "UpdateBuyerProfile", err, "Failed to save profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) UpdateSellerProfile(w http.ResponseWriter, r *http.Request) {
	var input session.SellerProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}
	user, err := h.session.UpdateSellerProfile(r.Context(), localFrom(r), input)
	if err != nil {
		respondWithFailure(w, "UpdateSellerProfile", err, "Failed to save profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// MerchantInput is the PayPal merchant id body and response.
type MerchantInput struct {
	MerchantID string `json:"merchantId"`
}

func (h *HTTPHandler) GetPayPalMerchant(w http.ResponseWriter, r *http.Request) {
	id, err := h.session.PayPalMerchant(r.Context(), localFrom(r))
	if err != nil {
		respondWithFailure(w, "PayPalMerchant", err, "Failed to load PayPal Merchant ID")
		return
	}
	respondWithJSON(w, http.StatusOK, MerchantInput{MerchantID: id})
}

func (h *HTTPHandler) SetPayPalMerchant(w http.ResponseWriter, r *http.Request) {
	var input MerchantInput
	if !decodeJSON(w, r, &input) {
		return
	}
	msg, err := h.session.SetPayPalMerchant(r.Context(), localFrom(r), input.MerchantID)
	if err != nil {
		respondWithFailure(w, "SetPayPalMerchant", err, "Failed to save PayPal Merchant ID")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msg})
}
