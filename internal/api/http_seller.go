package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"petit-storefront/internal/management"
)

// --- Seller business handlers ---
// All routes here sit behind requireRole(seller).

func (h *HTTPHandler) ListSellerBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.management.ListBusinesses(r.Context(), localFrom(r))
	if err != nil {
		respondWithFailure(w, "ListSellerBusinesses", err, "Failed to load businesses")
		return
	}
	if list == nil {
		list = []management.BusinessView{}
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) GetSellerBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.management.Business(r.Context(), localFrom(r), chi.URLParam(r, "businessId"))
	if err != nil {
		respondWithFailure(w, "GetSellerBusiness", err, "Business not found")
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

func (h *HTTPHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var input management.BusinessForm
	if !decodeJSON(w, r, &input) {
		return
	}
	b, err := h.management.CreateBusiness(r.Context(), localFrom(r), input)
	if err != nil {
		respondWithFailure(w, "CreateBusiness", err, "Failed to save business")
		return
	}
	respondWithJSON(w, http.StatusCreated, b)
}

func (h *HTTPHandler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	var input management.BusinessForm
	if !decodeJSON(w, r, &input) {
		return
	}
	b, err := h.management.UpdateBusiness(r.Context(), localFrom(r), chi.URLParam(r, "businessId"), input)
	if err != nil {
		respondWithFailure(w, "UpdateBusiness", err, "Update failed")
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

func (h *HTTPHandler) DeleteBusiness(w http.ResponseWriter, r *http.Request) {
	if err := h.management.DeleteBusiness(r.Context(), localFrom(r), chi.URLParam(r, "businessId")); err != nil {
		respondWithFailure(w, "DeleteBusiness", err, "Delete failed")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Page handlers ---

// PageInput is the add and rename page body. An empty title on add gets
// "Page N".
type PageInput struct {
	Title string `json:"title" validate:"max=200"`
}

func (h *HTTPHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	var input PageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	page, err := h.management.AddPage(r.Context(), localFrom(r), chi.URLParam(r, "businessId"), input.Title)
	if err != nil {
		respondWithFailure(w, "AddPage", err, "Failed to add page")
		return
	}
	respondWithJSON(w, http.StatusCreated, page)
}

func (h *HTTPHandler) RenamePage(w http.ResponseWriter, r *http.Request) {
	var input PageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	page, err := h.management.RenamePage(r.Context(), localFrom(r),
		chi.URLParam(r, "businessId"), chi.URLParam(r, "pageId"), input.Title)
	if err != nil {
		respondWithFailure(w, "RenamePage", err, "Failed to update page")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	err := h.management.DeletePage(r.Context(), localFrom(r), chi.URLParam(r, "businessId"), chi.URLParam(r, "pageId"))
	if err != nil {
		respondWithFailure(w, "DeletePage", err, "Failed to delete page")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Catalog item handlers ---

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input management.ItemForm
	if !decodeJSON(w, r, &input) {
		return
	}
	item, err := h.management.AddItem(r.Context(), localFrom(r),
		chi.URLParam(r, "businessId"), chi.URLParam(r, "pageId"), input)
	if err != nil {
		respondWithFailure(w, "AddItem", err, "Failed to save cart item")
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var input management.ItemForm
	if !decodeJSON(w, r, &input) {
		return
	}
	item, err := h.management.UpdateItem(r.Context(), localFrom(r),
		chi.URLParam(r, "businessId"), chi.URLParam(r, "pageId"), chi.URLParam(r, "itemId"), input)
	if err != nil {
		respondWithFailure(w, "UpdateItem", err, "Failed to update cart item")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	err := h.management.DeleteItem(r.Context(), localFrom(r),
		chi.URLParam(r, "businessId"), chi.URLParam(r, "pageId"), chi.URLParam(r, "itemId"))
	if err != nil {
		respondWithFailure(w, "DeleteItem", err, "Failed to delete cart item")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Seller chat ---

func (h *HTTPHandler) SellerChat(w http.ResponseWriter, r *http.Request) {
	var input ChatInput
	if !decodeJSON(w, r, &input) {
		return
	}
	reply, err := h.chat.SendSeller(r.Context(), localFrom(r), input.Message)
	if err != nil {
		respondWithFailure(w, "SellerChat", err, "Chat is unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, reply)
}
