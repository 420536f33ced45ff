// Package collections serves the collection-per-resource REST backend the
// storefront reads orders, users, products, variants and reviews from.
package collections

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/dataset"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Handler serves /orders from the repository and the other collections from
// an in-memory copy of the dataset. Users and reviews written through the API
// live as long as the process.
type Handler struct {
	orders  repository.OrderRepository
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	data *dataset.Dataset
}

func NewHandler(orders repository.OrderRepository, data *dataset.Dataset, log *zap.Logger, timeout time.Duration) *Handler {
	return &Handler{
		orders:  orders,
		data:    data.Clone(),
		log:     log,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewRouter mounts the collections. An empty apiKey disables the key check.
func NewRouter(h *Handler, apiKey string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(APIKeyMiddleware(apiKey))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}", h.PatchOrder)
			r.Delete("/{id}", h.DeleteOrder)
		})
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/product_variants/{id}", h.GetProductVariant)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", h.ListReviews)
			r.Post("/", h.CreateReview)
			r.Patch("/{id}/reply", h.ReplyReview)
			r.Delete("/{id}", h.DeleteReview)
		})
	})

	return otelhttp.NewHandler(r, "collections")
}

func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(apiKey)) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GET /orders?userId=
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, r.URL.Query().Get("userId"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var order domain.Order
	if !decodeJSON(w, r, &order) {
		return
	}
	if order.UserID == "" || order.OrderNumber == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "userId and orderNumber are required")
		return
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusReceived
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusPending
	}
	if !order.Status.IsValid() || !order.PaymentStatus.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid_argument", "unknown status or payment status")
		return
	}

	if err := h.orders.CreateOrder(ctx, &order); err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// PATCH /orders/{id}
func (h *Handler) PatchOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var patch domain.OrderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if (patch.Status != nil && !patch.Status.IsValid()) ||
		(patch.PaymentStatus != nil && !patch.PaymentStatus.IsValid()) {
		respondError(w, http.StatusBadRequest, "invalid_argument", "unknown status or payment status")
		return
	}

	order, err := h.orders.PatchOrder(ctx, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// DELETE /orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "id")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /users
//
// Passwords are included; the storefront checks them on login.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	users := append([]domain.User{}, h.data.Users...)
	h.mu.RUnlock()
	respondJSON(w, http.StatusOK, users)
}

// GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	user, ok := h.data.User(chi.URLParam(r, "id"))
	h.mu.RUnlock()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user.Public())
}

// POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if !decodeJSON(w, r, &user) {
		return
	}
	if user.Username == "" || user.Email == "" || user.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "username, email and password are required")
		return
	}
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}

	h.mu.Lock()
	var maxID int64
	for _, u := range h.data.Users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			h.mu.Unlock()
			respondError(w, http.StatusConflict, "already_exists", "user with this email or username already exists")
			return
		}
		maxID = max(maxID, u.ID)
	}
	user.ID = maxID + 1
	h.data.Users = append(h.data.Users, user)
	h.mu.Unlock()

	h.log.Info("user created", zap.Int64("user_id", user.ID))
	respondJSON(w, http.StatusCreated, user.Public())
}

// GET /product_variants/{id}
func (h *Handler) GetProductVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r)
	if !ok {
		return
	}
	h.mu.RLock()
	variant, found := h.data.Variant(id)
	h.mu.RUnlock()
	if !found {
		respondError(w, http.StatusNotFound, "not_found", "product variant not found")
		return
	}
	respondJSON(w, http.StatusOK, variant)
}

// GET /products?q=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	products := catalog.Search(h.data.Products, r.URL.Query().Get("q"))
	h.mu.RUnlock()
	respondJSON(w, http.StatusOK, products)
}

// GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r)
	if !ok {
		return
	}
	h.mu.RLock()
	product, found := h.data.Product(id)
	h.mu.RUnlock()
	if !found {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /reviews?productId=
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if raw := r.URL.Query().Get("productId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_id", "productId must be a positive integer")
			return
		}
		productID = id
	}

	h.mu.RLock()
	reviews := h.data.ReviewsFor(productID)
	h.mu.RUnlock()
	respondJSON(w, http.StatusOK, reviews)
}

// POST /reviews
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var review domain.Review
	if !decodeJSON(w, r, &review) {
		return
	}
	if review.Rating < domain.MinRating || review.Rating > domain.MaxRating || review.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_failed", "userId and a rating between 1 and 5 are required")
		return
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = h.now()
	}
	review.Reply, review.ReplyDate = "", nil

	h.mu.Lock()
	if _, ok := h.data.Product(review.ProductID); !ok {
		h.mu.Unlock()
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	var maxID int64
	for _, existing := range h.data.Reviews {
		maxID = max(maxID, existing.ID)
	}
	review.ID = maxID + 1
	h.data.Reviews = append(h.data.Reviews, review)
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, review)
}

// PATCH /reviews/{id}/reply
func (h *Handler) ReplyReview(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r)
	if !ok {
		return
	}
	var reply domain.ReviewReply
	if !decodeJSON(w, r, &reply) {
		return
	}
	if strings.TrimSpace(reply.Reply) == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "reply is required")
		return
	}
	if reply.ReplyDate.IsZero() {
		reply.ReplyDate = h.now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.data.Reviews {
		if h.data.Reviews[i].ID == id {
			h.data.Reviews[i].Reply = reply.Reply
			h.data.Reviews[i].ReplyDate = &reply.ReplyDate
			respondJSON(w, http.StatusOK, h.data.Reviews[i])
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "review not found")
}

// DELETE /reviews/{id}
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.data.Reviews {
		if h.data.Reviews[i].ID == id {
			h.data.Reviews = append(h.data.Reviews[:i], h.data.Reviews[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "review not found")
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, repository.ErrDuplicateID):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.log.Error("collection request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func int64Param(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
