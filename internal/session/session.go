// Package session signs buyers and sellers in and out and keeps their
// profiles. At most one role holds a session at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/golang-jwt/jwt/v4"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/media"
	"petit-storefront/internal/store"
)

// ErrNotSignedIn means the role has no stored token.
var ErrNotSignedIn = errors.New("session: not signed in")

// AuthAPI is the part of the management API this package uses.
type AuthAPI interface {
	Login(ctx context.Context, role domain.Role, in backend.Credentials) (*backend.AuthResult, error)
	Register(ctx context.Context, role domain.Role, in backend.Registration) (*backend.AuthResult, error)
	GetProfile(ctx context.Context, role domain.Role, token string) (*domain.SessionUser, error)
	UpdateProfile(ctx context.Context, role domain.Role, token string, body any) (*domain.SessionUser, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	GetPayPalMerchant(ctx context.Context, token string) (string, error)
	SetPayPalMerchant(ctx context.Context, token, merchantID string) (string, error)
}

// Service implements the session flows on top of one client's storage.
type Service struct {
	api      AuthAPI
	media    *media.Hoster
	validate *validator.Validate
}

// NewService creates a Service. hoster may be nil.
func NewService(api AuthAPI, hoster *media.Hoster) *Service {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		log.Fatalf("ERROR: registering notblank validation: %v", err)
	}
	return &Service{api: api, media: hoster, validate: v}
}

// Token returns the stored bearer token for role.
func Token(ctx context.Context, local *store.Local, role domain.Role) (string, bool) {
	tok, ok := local.GetString(ctx, role.TokenKey())
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

// RequireToken is Token that fails with ErrNotSignedIn.
func RequireToken(ctx context.Context, local *store.Local, role domain.Role) (string, error) {
	tok, ok := Token(ctx, local, role)
	if !ok {
		return "", fmt.Errorf("%w as %s", ErrNotSignedIn, role)
	}
	return tok, nil
}

// CachedUser returns the stored profile for role, or nil.
func CachedUser(ctx context.Context, local *store.Local, role domain.Role) *domain.SessionUser {
	var u domain.SessionUser
	if !local.GetJSON(ctx, role.UserKey(), &u) || u.Raw == nil {
		return nil
	}
	return &u
}

// HasUser reports whether a profile is cached for role. The buyer views
// use it to tell a seller from a shopper.
func HasUser(ctx context.Context, local *store.Local, role domain.Role) bool {
	return local.Has(ctx, role.UserKey())
}

// --- Login, register, logout ---

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,contains=@"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the register form. BusinessName is required for sellers.
type RegisterInput struct {
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
	Email        string `json:"email" validate:"required,contains=@"`
	Password     string `json:"password" validate:"required,min=6"`
}

// Login signs role in. The other role's token and profile are removed
// first, so only one session survives.
func (s *Service) Login(ctx context.Context, local *store.Local, role domain.Role, in LoginInput) (*domain.SessionUser, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Enter valid credentials")
	}

	res, err := s.api.Login(ctx, role, backend.Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		return nil, loginError(err)
	}

	clearRole(ctx, local, role.Other())
	if res.Token != "" {
		local.SetString(ctx, role.TokenKey(), res.Token)
	}
	if res.User != nil {
		local.SetJSON(ctx, role.UserKey(), res.User)
	}
	local.Publish(events.ProfileUpdated(string(role), res.User))
	local.Publish(events.ProfileUpdated(string(role.Other()), nil))
	log.Printf("INFO: Client %s signed in as %s", local.ClientID(), role)
	return res.User, nil
}

func loginError(err error) error {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return backend.Failf(http.StatusBadGateway, err, "Login failed")
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return backend.Failf(http.StatusUnauthorized, err, "Invalid email or password")
	}
	if apiErr.Message != "" {
		return backend.Failf(backend.StatusOf(err), err, "%s", apiErr.Message)
	}
	return backend.Failf(backend.StatusOf(err), err, "Login failed (%d)", apiErr.StatusCode)
}

// Register creates an account. It does not sign in; the returned message
// tells the user what to do next. The other role's session and the cached
// buyer data are cleared so the new account starts fresh.
func (s *Service) Register(ctx context.Context, local *store.Local, role domain.Role, in RegisterInput) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", backend.Failf(http.StatusBadRequest, err, "%s", registerHint(role))
	}
	body := backend.Registration{Name: in.Name, Email: in.Email, Password: in.Password}
	if role == domain.RoleSeller {
		if err := s.validate.Var(in.BusinessName, "notblank"); err != nil {
			return "", backend.Failf(http.StatusBadRequest, err, "%s", registerHint(role))
		}
		body.Name = strings.TrimSpace(in.BusinessName)
	}

	res, err := s.api.Register(ctx, role, body)
	if err != nil {
		return "", backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Registration failed"))
	}

	clearRole(ctx, local, role.Other())
	local.Publish(events.ProfileUpdated(string(role.Other()), nil))
	for _, key := range []string{domain.KeyFavorites, domain.KeyFavoriteBusinesses, domain.KeyOrders} {
		local.Remove(ctx, key)
	}

	if res.VerifyURL != "" || res.Token != "" {
		msg := "Registered. Verification link: " + res.VerifyURL
		if res.Token != "" {
			msg += " (token: " + res.Token + ")"
		}
		return msg, nil
	}
	return "Registered. You can now log in.", nil
}

func registerHint(role domain.Role) string {
	if role == domain.RoleSeller {
		return "Enter a business name, valid email and a password (min 6 chars)"
	}
	return "Provide a valid email and password (min 6 chars)"
}

// Logout removes the stored session of which ("buyer", "seller" or "all")
// and asks every open tab to reload.
func (s *Service) Logout(ctx context.Context, local *store.Local, which string) error {
	switch which {
	case "all", "":
		clearRole(ctx, local, domain.RoleBuyer)
		clearRole(ctx, local, domain.RoleSeller)
	default:
		role, err := domain.ParseRole(which)
		if err != nil {
			return backend.Failf(http.StatusBadRequest, err, "Unknown role %q", which)
		}
		clearRole(ctx, local, role)
	}
	local.Publish(events.Event{Kind: events.KindReload})
	return nil
}

func clearRole(ctx context.Context, local *store.Local, role domain.Role) {
	local.Remove(ctx, role.TokenKey())
	local.Remove(ctx, role.UserKey())
}

// --- Status ---

// Status describes the client's current session.
type Status struct {
	Role      domain.Role         `json:"role,omitempty"`
	User      *domain.SessionUser `json:"user,omitempty"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
	Expired   bool                `json:"expired"`
}

// Status reports which role is signed in. The token is decoded without
// verification; the expiry is a hint for the UI, never an auth decision.
func (s *Service) Status(ctx context.Context, local *store.Local) Status {
	for _, role := range []domain.Role{domain.RoleSeller, domain.RoleBuyer} {
		tok, ok := Token(ctx, local, role)
		if !ok {
			continue
		}
		st := Status{Role: role, User: CachedUser(ctx, local, role)}
		if exp := tokenExpiry(tok); exp != nil {
			st.ExpiresAt = exp
			st.Expired = time.Now().After(*exp)
		}
		return st
	}
	return Status{}
}

func tokenExpiry(raw string) *time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time
	return &t
}
