package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartService is the per-user cart engine.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.View, error)
	AddItem(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*cart.View, error)
	UpdateQuantity(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*cart.View, error)
	RemoveItem(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*cart.View, error)
	ClearItem(ctx context.Context, userID string, item domain.CartLineItem) (*cart.View, error)
	ClearCart(ctx context.Context, userID string) error
	CheckAvailability(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (bool, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	Item     domain.CartLineItem `json:"item"`
	Quantity int                 `json:"quantity" validate:"required,min=1,max=99"`
}

// ItemQuantityRequestDTO addresses a line by the product in the path and an
// optional variant.
type ItemQuantityRequestDTO struct {
	VariantID int64 `json:"variantId" validate:"min=0"`
	Quantity  int   `json:"quantity" validate:"min=0,max=99"`
}

type AvailabilityResponseDTO struct {
	Available bool `json:"available"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.GetCart(ctx, getUserID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Item.ID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "item.id must be positive")
		return
	}

	view, err := h.carts.AddItem(ctx, getUserID(r.Context()), req.Item, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, req, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	view, err := h.carts.UpdateQuantity(ctx, getUserID(r.Context()), item, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/cart/items/{product_id}/remove
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, req, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	view, err := h.carts.RemoveItem(ctx, getUserID(r.Context()), item, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// DELETE /api/v1/cart/items/{product_id}?variantId=
func (h *CartHandler) ClearItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	item := domain.CartLineItem{Product: domain.Product{ID: productID}}
	if raw := r.URL.Query().Get("variantId"); raw != "" {
		variantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || variantID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_variant_id", "variantId must be a positive integer")
			return
		}
		item.VariantID = variantID
	}

	view, err := h.carts.ClearItem(ctx, getUserID(r.Context()), item)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getUserID(r.Context())); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/cart/availability
func (h *CartHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	available, err := h.carts.CheckAvailability(ctx, getUserID(r.Context()), req.Item, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AvailabilityResponseDTO{Available: available})
}

func (h *CartHandler) itemRequest(w http.ResponseWriter, r *http.Request) (domain.CartLineItem, ItemQuantityRequestDTO, bool) {
	var req ItemQuantityRequestDTO
	productID, ok := productIDParam(w, r)
	if !ok || !decodeJSON(w, r, &req) {
		return domain.CartLineItem{}, req, false
	}
	return domain.CartLineItem{Product: domain.Product{ID: productID}, VariantID: req.VariantID}, req, true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
