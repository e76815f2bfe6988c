package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/catalog"
	"petit-storefront/internal/chat"
	"petit-storefront/internal/checkout"
	"petit-storefront/internal/content"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/management"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

const serviceName = "PetitStorefront"

// Deps are the services the HTTP handlers call.
type Deps struct {
	Storage    store.ClientStorer
	Bus        *events.Bus
	Session    *session.Service
	Management *management.Service
	Catalog    *catalog.Service
	Checkout   *checkout.Service
	Chat       *chat.Service

	CookieSecure   bool
	RequestTimeout time.Duration // zero means 60s
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	storage    store.ClientStorer
	bus        *events.Bus
	session    *session.Service
	management *management.Service
	catalog    *catalog.Service
	checkout   *checkout.Service
	chat       *chat.Service
	validate   *validator.Validate

	cookieSecure   bool
	requestTimeout time.Duration
	keepAlive      time.Duration
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Deps) *HTTPHandler {
	bus := d.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPHandler{
		storage:        d.Storage,
		bus:            bus,
		session:        d.Session,
		management:     d.Management,
		catalog:        d.Catalog,
		checkout:       d.Checkout,
		chat:           d.Chat,
		validate:       validator.New(),
		cookieSecure:   d.CookieSecure,
		requestTimeout: timeout,
		keepAlive:      25 * time.Second,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses. Redirect
// is set when the client should send the user to a login page.
type ErrorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// MessageResponse carries a confirmation to show the user.
type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // 204 has no body
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
		}
	}
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// respondWithFailure logs err and answers with the message and status it
// carries, or fallback.
func respondWithFailure(w http.ResponseWriter, op string, err error, fallback string) {
	code := backend.StatusOf(err)
	msg := backend.UserMessage(err, fallback)
	var userErr *backend.UserError
	if errors.Is(err, session.ErrNotSignedIn) && !errors.As(err, &userErr) {
		code, msg = http.StatusUnauthorized, "You are not signed in"
	}
	if code >= http.StatusInternalServerError {
		log.Printf("ERROR: %s failed: %v", op, err)
	} else {
		log.Printf("WARN: %s rejected: %v", op, err)
	}
	respondWithError(w, code, msg)
}

// --- System handlers ---

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	storageStatus := "healthy"
	if err := h.storage.Ping(ctx); err != nil {
		storageStatus = "unhealthy"
		log.Printf("WARN: Health check storage ping failed: %v", err)
	}

	// always 200; the payload carries the details
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"serviceName": serviceName,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"storage":     storageStatus,
		"paypal":      h.checkout.PayPalEnabled(),
	})
}

func (h *HTTPHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	local := localFrom(r)
	_, seller := session.Token(r.Context(), local, domain.RoleSeller)
	page, ok := content.BySlug(chi.URLParam(r, "slug"), seller)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Page not found")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// ThemeInput is the theme toggle body.
type ThemeInput struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

func (h *HTTPHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, ok := localFrom(r).GetString(r.Context(), domain.KeyTheme)
	if !ok || (theme != "light" && theme != "dark") {
		theme = "light"
	}
	respondWithJSON(w, http.StatusOK, ThemeInput{Theme: theme})
}

func (h *HTTPHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var input ThemeInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	localFrom(r).SetString(r.Context(), domain.KeyTheme, input.Theme)
	respondWithJSON(w, http.StatusOK, input)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the storefront. Every route
// runs with a client identity; the event stream is exempt from the request
// timeout.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.withClient)

		r.Get("/events", h.StreamEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.requestTimeout))

			r.Get("/healthz", h.Healthz)
			r.Get("/content/{slug}", h.GetContent)
			r.Get("/theme", h.GetTheme)
			r.Put("/theme", h.SetTheme)

			r.Get("/session", h.GetSession)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/{role}/login", h.Login)
				r.Post("/{role}/register", h.Register)
				r.Post("/logout", h.Logout)
				r.Post("/forgot-password", h.ForgotPassword)
				r.Post("/reset-password", h.ResetPassword)
			})

			r.Route("/profile", func(r chi.Router) {
				r.With(h.requireRole(domain.RoleBuyer)).Get("/buyer", h.GetBuyerProfile)
				r.With(h.requireRole(domain.RoleBuyer)).Put("/buyer", h.UpdateBuyerProfile)
				r.Route("/seller", func(r chi.Router) {
					r.Use(h.requireRole(domain.RoleSeller))
					r.Put("/", h.UpdateSellerProfile)
					r.Get("/paypal-merchant", h.GetPayPalMerchant)
					r.Put("/paypal-merchant", h.SetPayPalMerchant)
				})
			})

			r.Get("/shop", h.Shop)
			r.Get("/directory", h.Directory)
			r.Get("/businesses/{businessId}", h.BusinessPage)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddCartItem)
				r.Route("/items/{itemId}", func(r chi.Router) {
					r.Put("/", h.SetCartQuantity)
					r.Delete("/", h.RemoveCartItem)
					r.Post("/decrement", h.DecrementCartItem)
					r.Post("/step-down", h.StepDownCartItem)
				})
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/products", h.ListFavorites)
				r.Post("/products", h.AddFavorite)
				r.Delete("/products", h.ClearFavorites)
				r.Delete("/products/{id}", h.RemoveFavorite)
				r.Get("/businesses", h.ListFavoriteBusinesses)
				r.Post("/businesses", h.AddFavoriteBusiness)
				r.Delete("/businesses", h.ClearFavoriteBusinesses)
				r.Delete("/businesses/{id}", h.RemoveFavoriteBusiness)
			})

			r.Get("/orders", h.ListOrders)
			r.Delete("/orders", h.ClearOrders)
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.Checkout)
				r.Get("/paypal", h.PendingPayPal)
				r.Post("/paypal", h.StartPayPal)
				r.Post("/paypal/capture", h.CapturePayPal)
				r.Post("/paypal/cancel", h.CancelPayPal)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/buyer", h.BuyerTranscript)
				r.Post("/buyer", h.BuyerChat)
				r.Delete("/buyer", h.ClearBuyerTranscript)
				r.With(h.requireRole(domain.RoleSeller)).Post("/seller", h.SellerChat)
			})

			r.Route("/seller/businesses", func(r chi.Router) {
				r.Use(h.requireRole(domain.RoleSeller))
				r.Get("/", h.ListSellerBusinesses)
				r.Post("/", h.CreateBusiness)
				r.Route("/{businessId}", func(r chi.Router) {
					r.Get("/", h.GetSellerBusiness)
					r.Put("/", h.UpdateBusiness)
					r.Delete("/", h.DeleteBusiness)
					r.Post("/pages", h.AddPage)
					r.Route("/pages/{pageId}", func(r chi.Router) {
						r.Put("/", h.RenamePage)
						r.Delete("/", h.DeletePage)
						r.Post("/items", h.AddItem)
						r.Put("/items/{itemId}", h.UpdateItem)
						r.Delete("/items/{itemId}", h.DeleteItem)
					})
				})
			})
		})
	})
}
