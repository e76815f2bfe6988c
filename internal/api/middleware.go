package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

const (
	// ClientCookie carries the client id of a browser.
	ClientCookie = "petit_client"
	// ClientHeader carries the client id for callers without cookies.
	ClientHeader = "X-Client-ID"

	clientCookieMaxAge = 400 * 24 * time.Hour
)

type ctxKey int

const localKey ctxKey = iota

// clientID returns the client id the request carries, or "". Only UUIDs
// are accepted.
func clientID(r *http.Request) string {
	if v := r.Header.Get(ClientHeader); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			return id.String()
		}
	}
	if c, err := r.Cookie(ClientCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	return ""
}

// withClient attaches the caller's storage view to the request. A request
// without a client id gets a fresh one in a cookie.
func (h *HTTPHandler) withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(clientCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   h.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			log.Printf("INFO: Issued client id %s", id)
		}
		w.Header().Set(ClientHeader, id)
		local := store.NewLocal(h.storage, id, h.bus)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localKey, local)))
	})
}

// localFrom returns the storage view withClient attached.
func localFrom(r *http.Request) *store.Local {
	return r.Context().Value(localKey).(*store.Local)
}

// requireRole answers 401 with the login path when no token for role is
// stored. It does not check that the token is valid.
func (h *HTTPHandler) requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := session.Token(r.Context(), localFrom(r), role); !ok {
				respondWithJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:    "Please log in as a " + string(role) + " to continue",
					Redirect: role.LoginPath(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
