package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CatalogService searches products and manages their reviews.
type CatalogService interface {
	Search(ctx context.Context, query string) ([]domain.Product, error)
	Suggestions(ctx context.Context) ([]string, error)
	Product(ctx context.Context, id int64) (*catalog.ProductDetail, error)
	Reviews(ctx context.Context, productID int64) ([]domain.Review, error)
	CreateReview(ctx context.Context, userID string, productID int64, in catalog.ReviewInput) (*domain.Review, error)
	Reply(ctx context.Context, reviewID int64, reply string) (*domain.Review, error)
	DeleteReview(ctx context.Context, reviewID int64) error
}

type CatalogHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogService, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, timeout: timeout}
}

type CreateReviewRequestDTO struct {
	OrderID string   `json:"orderId"`
	Rating  int      `json:"rating" validate:"required,min=1,max=5"`
	Title   string   `json:"title" validate:"max=200"`
	Content string   `json:"content" validate:"required,max=5000"`
	Size    string   `json:"size"`
	Color   string   `json:"color"`
	Images  []string `json:"images" validate:"max=10"`
}

type ReplyReviewRequestDTO struct {
	Reply string `json:"reply" validate:"required,max=2000"`
}

// GET /api/v1/products?q=
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/suggestions
func (h *CatalogHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	suggestions, err := h.catalog.Suggestions(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestions)
}

// GET /api/v1/products/{product_id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	detail, err := h.catalog.Product(ctx, productID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// GET /api/v1/products/{product_id}/reviews
func (h *CatalogHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reviews, err := h.catalog.Reviews(ctx, productID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

// POST /api/v1/products/{product_id}/reviews
func (h *CatalogHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.catalog.CreateReview(ctx, getUserID(r.Context()), productID, catalog.ReviewInput{
		OrderID: req.OrderID,
		Rating:  req.Rating,
		Title:   req.Title,
		Content: req.Content,
		Size:    req.Size,
		Color:   req.Color,
		Images:  req.Images,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

// PATCH /api/v1/admin/reviews/{review_id}/reply
func (h *CatalogHandler) ReplyReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := reviewIDParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ReplyReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.catalog.Reply(ctx, reviewID, req.Reply)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}

// DELETE /api/v1/admin/reviews/{review_id}
func (h *CatalogHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := reviewIDParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteReview(ctx, reviewID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func reviewIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "review_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_review_id", "review_id must be a positive integer")
		return 0, false
	}
	return id, true
}
