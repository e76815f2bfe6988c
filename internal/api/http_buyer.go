package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"petit-storefront/internal/cart"
	"petit-storefront/internal/catalog"
	"petit-storefront/internal/chat"
	"petit-storefront/internal/checkout"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
)

// --- Browsing handlers ---

func (h *HTTPHandler) Shop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.catalog.Shop(r.Context(), localFrom(r), q.Get("q"), q.Get("category"))
	if err != nil {
		respondWithFailure(w, "Shop", err, "Failed to load products")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) Directory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.catalog.Directory(r.Context(), localFrom(r), q.Get("q"), q.Get("category"))
	if err != nil {
		respondWithFailure(w, "Directory", err, "Failed to load businesses")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) BusinessPage(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Business(r.Context(), localFrom(r), chi.URLParam(r, "businessId"))
	if err != nil {
		respondWithFailure(w, "BusinessPage", err, "Failed to load business")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// --- Cart handlers ---

// CartAddInput adds a catalog item by reference, or a full line as shown
// in the shop listing.
type CartAddInput struct {
	BusinessID string           `json:"businessId"`
	ItemID     string           `json:"itemId"`
	Quantity   int              `json:"quantity" validate:"gte=0"`
	Item       *domain.LineItem `json:"item"`
}

// CartQuantityInput sets a line's quantity. Zero removes the line.
type CartQuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, cart.Load(r.Context(), localFrom(r)).Snapshot())
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := cart.Load(r.Context(), localFrom(r))
	c.Clear(r.Context())
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartAddInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	local := localFrom(r)
	if session.HasUser(r.Context(), local, domain.RoleSeller) {
		respondWithError(w, http.StatusForbidden, catalog.LabelSellerView)
		return
	}

	var line domain.LineItem
	switch {
	case input.Item != nil && strings.TrimSpace(input.Item.ID) != "":
		line = *input.Item
	case input.BusinessID != "" && input.ItemID != "":
		item, err := h.catalog.Item(r.Context(), input.BusinessID, input.ItemID)
		if err != nil {
			respondWithFailure(w, "AddCartItem", err, "Failed to add to cart")
			return
		}
		line = item.LineItem()
	default:
		respondWithError(w, http.StatusBadRequest, "Validation failed: businessId and itemId, or item, are required")
		return
	}

	c := cart.Load(r.Context(), local)
	c.Add(r.Context(), line, input.Quantity)
	log.Printf("INFO: Client %s added %s to the cart (qty %d)", local.ClientID(), line.ID, c.Quantity(line.ID))
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

// cartLine loads the cart and checks that the routed item is in it.
func cartLine(w http.ResponseWriter, r *http.Request) (*cart.Cart, string, bool) {
	id := chi.URLParam(r, "itemId")
	c := cart.Load(r.Context(), localFrom(r))
	if c.Quantity(id) == 0 {
		respondWithError(w, http.StatusNotFound, "Item not in cart")
		return nil, "", false
	}
	return c, id, true
}

func (h *HTTPHandler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var input CartQuantityInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	c, id, ok := cartLine(w, r)
	if !ok {
		return
	}
	c.SetQuantity(r.Context(), id, input.Quantity)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) DecrementCartItem(w http.ResponseWriter, r *http.Request) {
	c, id, ok := cartLine(w, r)
	if !ok {
		return
	}
	c.Decrement(r.Context(), id)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) StepDownCartItem(w http.ResponseWriter, r *http.Request) {
	c, id, ok := cartLine(w, r)
	if !ok {
		return
	}
	c.StepDown(r.Context(), id)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, id, ok := cartLine(w, r)
	if !ok {
		return
	}
	c.Remove(r.Context(), id)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

// --- Favorites handlers ---

func (h *HTTPHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, catalog.Favorites(r.Context(), localFrom(r)))
}

func (h *HTTPHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var input domain.FavoriteProduct
	if !decodeJSON(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.ID) == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: id is required")
		return
	}
	respondWithJSON(w, http.StatusOK, catalog.AddFavorite(r.Context(), localFrom(r), input))
}

func (h *HTTPHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, catalog.RemoveFavorite(r.Context(), localFrom(r), chi.URLParam(r, "id")))
}

func (h *HTTPHandler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	catalog.ClearFavorites(r.Context(), localFrom(r))
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListFavoriteBusinesses(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, catalog.FavoriteBusinesses(r.Context(), localFrom(r)))
}

func (h *HTTPHandler) AddFavoriteBusiness(w http.ResponseWriter, r *http.Request) {
	var input domain.FavoriteBusiness
	if !decodeJSON(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.ID) == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: id is required")
		return
	}
	respondWithJSON(w, http.StatusOK, catalog.AddFavoriteBusiness(r.Context(), localFrom(r), input))
}

func (h *HTTPHandler) RemoveFavoriteBusiness(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, catalog.RemoveFavoriteBusiness(r.Context(), localFrom(r), chi.URLParam(r, "id")))
}

func (h *HTTPHandler) ClearFavoriteBusinesses(w http.ResponseWriter, r *http.Request) {
	catalog.ClearFavoriteBusinesses(r.Context(), localFrom(r))
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Orders & checkout handlers ---

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, checkout.Orders(r.Context(), localFrom(r)))
}

func (h *HTTPHandler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	checkout.ClearOrders(r.Context(), localFrom(r))
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var input domain.ShippingInfo
	if !decodeJSON(w, r, &input) {
		return
	}
	receipt, err := h.checkout.Checkout(r.Context(), localFrom(r), input)
	if err != nil {
		respondWithFailure(w, "Checkout", err, "Checkout failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, receipt)
}

// PayPalStartInput optionally carries the shipping address.
type PayPalStartInput struct {
	Shipping *domain.ShippingInfo `json:"shipping"`
}

func (h *HTTPHandler) StartPayPal(w http.ResponseWriter, r *http.Request) {
	var input PayPalStartInput
	if !decodeJSON(w, r, &input) {
		return
	}
	start, err := h.checkout.StartPayPal(r.Context(), localFrom(r), input.Shipping)
	if err != nil {
		respondWithFailure(w, "StartPayPal", err, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusCreated, start)
}

func (h *HTTPHandler) PendingPayPal(w http.ResponseWriter, r *http.Request) {
	pending, ok := checkout.Pending(r.Context(), localFrom(r))
	if !ok {
		respondWithError(w, http.StatusNotFound, "No PayPal payment is waiting for capture")
		return
	}
	respondWithJSON(w, http.StatusOK, pending)
}

// CaptureInput names the approved PayPal order.
type CaptureInput struct {
	PayPalOrderID string `json:"payPalOrderId"`
}

// CaptureResponse is returned after a completed PayPal payment. Result is
// the management API's answer as it was received.
type CaptureResponse struct {
	Message string      `json:"message"`
	Result  interface{} `json:"result,omitempty"`
}

func (h *HTTPHandler) CapturePayPal(w http.ResponseWriter, r *http.Request) {
	var input CaptureInput
	if !decodeJSON(w, r, &input) {
		return
	}
	result, err := h.checkout.CapturePayPal(r.Context(), localFrom(r), input.PayPalOrderID)
	if err != nil {
		respondWithFailure(w, "CapturePayPal", err, "Failed to capture payment")
		return
	}
	resp := CaptureResponse{Message: "Payment completed successfully!"}
	if len(result) > 0 && json.Valid(result) {
		resp.Result = result
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) CancelPayPal(w http.ResponseWriter, r *http.Request) {
	msg := h.checkout.CancelPayPal(r.Context(), localFrom(r))
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// --- Buyer chat handlers ---

// ChatInput is one chat message.
type ChatInput struct {
	Message string `json:"message"`
}

func (h *HTTPHandler) BuyerTranscript(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, chat.Transcript(r.Context(), localFrom(r)))
}

func (h *HTTPHandler) BuyerChat(w http.ResponseWriter, r *http.Request) {
	var input ChatInput
	if !decodeJSON(w, r, &input) {
		return
	}
	transcript, err := h.chat.SendBuyer(r.Context(), localFrom(r), input.Message)
	if err != nil {
		respondWithFailure(w, "BuyerChat", err, "Chat is unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, transcript)
}

func (h *HTTPHandler) ClearBuyerTranscript(w http.ResponseWriter, r *http.Request) {
	chat.ClearTranscript(r.Context(), localFrom(r))
	respondWithJSON(w, http.StatusNoContent, nil)
}
