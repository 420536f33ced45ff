package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	store     *orders.Store
	lifecycle *orders.Lifecycle
	notes     *notify.Recorder
	log       *zap.Logger
	timeout   time.Duration
}

func NewOrdersHandler(store *orders.Store, lifecycle *orders.Lifecycle, notes *notify.Recorder, log *zap.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		store:     store,
		lifecycle: lifecycle,
		notes:     notes,
		log:       log,
		timeout:   timeout,
	}
}

type RefundRequestDTO struct {
	Reason string   `json:"reason" validate:"required,max=1000"`
	Images []string `json:"images" validate:"max=10,dive,required"`
}

type ReturnShippingRequestDTO struct {
	TrackingNumber    string   `json:"trackingNumber" validate:"required"`
	ShippingCompany   string   `json:"shippingCompany" validate:"required"`
	ShippingImages    []string `json:"shippingImages" validate:"max=10,dive,required"`
	EstimatedDelivery string   `json:"estimatedDelivery"`
	Notes             string   `json:"notes" validate:"max=1000"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
	Reason string             `json:"reason" validate:"max=1000"`
}

type UpdatePaymentStatusRequestDTO struct {
	PaymentStatus domain.PaymentStatus `json:"paymentStatus" validate:"required"`
}

type RefundDecisionRequestDTO struct {
	Action        orders.RefundDecision `json:"action" validate:"required,oneof=approve reject"`
	AdminResponse string                `json:"adminResponse" validate:"max=1000"`
}

type ReturnApprovalRequestDTO struct {
	AdminResponse string   `json:"adminResponse" validate:"max=1000"`
	PaymentProof  []string `json:"paymentProof" validate:"max=10,dive,required"`
}

type ReloadResponseDTO struct {
	Source orders.Source `json:"source"`
	Total  int           `json:"total"`
}

type ReconcileResponseDTO struct {
	Synced  int    `json:"synced"`
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}

type StatsResponseDTO struct {
	TotalOrders     int                        `json:"totalOrders"`
	ExpectedRevenue float64                    `json:"expectedRevenue"`
	ActualRevenue   float64                    `json:"actualRevenue"`
	TotalRevenue    float64                    `json:"totalRevenue"`
	ByStatus        map[domain.OrderStatus]int `json:"byStatus"`
	Pending         int                        `json:"pending"`
	Loading         bool                       `json:"loading"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	list := h.store.OrdersForUser(getUserID(r.Context()))
	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	if details := h.store.OrderWithDetails(order.ID); details != nil {
		respondJSON(w, http.StatusOK, details)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{id}/refund
func (h *OrdersHandler) SubmitRefundRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedOrder(w, r); !ok {
		return
	}
	var req RefundRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.SubmitRefundRequest(ctx, id, orders.RefundInput{Reason: req.Reason, Images: req.Images})
	})
}

// POST /api/v1/orders/{id}/return-shipping
func (h *OrdersHandler) SubmitReturnShippingInfo(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedOrder(w, r); !ok {
		return
	}
	var req ReturnShippingRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.SubmitReturnShippingInfo(ctx, id, orders.ReturnShippingInput{
			TrackingNumber:    req.TrackingNumber,
			ShippingCompany:   req.ShippingCompany,
			ShippingImages:    req.ShippingImages,
			EstimatedDelivery: req.EstimatedDelivery,
			Notes:             req.Notes,
		})
	})
}

// GET /api/v1/admin/orders?q=&status=&paymentStatus=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	respondJSON(w, http.StatusOK, h.store.Filter(orders.OrderFilter{
		Query:         q.Get("q"),
		Status:        domain.OrderStatus(q.Get("status")),
		PaymentStatus: domain.PaymentStatus(q.Get("paymentStatus")),
	}))
}

// GET /api/v1/admin/orders/by-status
func (h *OrdersHandler) OrdersByStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.OrdersByStatus())
}

// GET /api/v1/admin/orders/stats
func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	byStatus := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for status, list := range h.store.OrdersByStatus() {
		byStatus[status] = len(list)
	}
	respondJSON(w, http.StatusOK, StatsResponseDTO{
		TotalOrders:     h.store.TotalOrders(),
		ExpectedRevenue: h.store.ExpectedRevenue(),
		ActualRevenue:   h.store.ActualRevenue(),
		TotalRevenue:    h.store.TotalRevenue(),
		ByStatus:        byStatus,
		Pending:         len(h.store.Pending()),
		Loading:         h.store.Loading(),
	})
}

// GET /api/v1/admin/orders/pending
func (h *OrdersHandler) Pending(w http.ResponseWriter, r *http.Request) {
	list := h.store.Pending()
	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// POST /api/v1/admin/orders/reload?reset=true
func (h *OrdersHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if r.URL.Query().Get("reset") == "true" {
		h.store.Reset()
	}
	src := h.store.Load(ctx)
	respondJSON(w, http.StatusOK, ReloadResponseDTO{Source: src, Total: h.store.TotalOrders()})
}

// POST /api/v1/admin/orders/reconcile
func (h *OrdersHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	synced, err := h.lifecycle.Reconcile(ctx)
	resp := ReconcileResponseDTO{Synced: synced, Pending: len(h.store.Pending())}
	if err != nil {
		h.log.Warn("reconcile incomplete", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/admin/orders/export
func (h *OrdersHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Export()
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="data.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /api/v1/admin/notifications
func (h *OrdersHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	list := h.notes.All()
	if list == nil {
		list = []notify.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if details := h.store.OrderWithDetails(id); details != nil {
		respondJSON(w, http.StatusOK, details)
		return
	}
	if order, ok := h.store.Order(id); ok {
		respondJSON(w, http.StatusOK, order)
		return
	}
	respondError(w, http.StatusNotFound, "not_found", "order not found")
}

// PATCH /api/v1/admin/orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.UpdateOrderStatus(ctx, id, req.Status, req.Reason)
	})
}

// PATCH /api/v1/admin/orders/{id}/payment-status
func (h *OrdersHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdatePaymentStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.UpdatePaymentStatus(ctx, id, req.PaymentStatus)
	})
}

// POST /api/v1/admin/orders/{id}/refund/decision
func (h *OrdersHandler) ProcessRefundRequest(w http.ResponseWriter, r *http.Request) {
	var req RefundDecisionRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.ProcessRefundRequest(ctx, id, req.Action, req.AdminResponse)
	})
}

// POST /api/v1/admin/orders/{id}/return-shipping/approve
func (h *OrdersHandler) ApproveReturnShipping(w http.ResponseWriter, r *http.Request) {
	var req ReturnApprovalRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	adminID := getUserID(r.Context())
	h.run(w, r, func(ctx context.Context, id string) (*domain.Order, error) {
		return h.lifecycle.ApproveReturnShipping(ctx, id, orders.ReturnApprovalInput{
			AdminResponse: req.AdminResponse,
			PaymentProof:  req.PaymentProof,
			AdminID:       adminID,
		})
	})
}

// POST /api/v1/admin/orders/{id}/return-received
func (h *OrdersHandler) ConfirmReturnReceived(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.lifecycle.ConfirmReturnShipmentReceived)
}

// POST /api/v1/admin/orders/{id}/refund-payment
func (h *OrdersHandler) ProcessRefundPayment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.lifecycle.ProcessRefundPayment)
}

// POST /api/v1/admin/orders/{id}/refund/complete
func (h *OrdersHandler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.lifecycle.CompleteRefund)
}

// DELETE /api/v1/admin/orders/{id}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.lifecycle.DeleteOrder(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) run(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*domain.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	order, err := op(ctx, id)
	if err != nil {
		h.log.Debug("order operation failed",
			zap.String("order_id", id),
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ownedOrder answers 404 unless the order belongs to the caller or the
// caller is an admin.
func (h *OrdersHandler) ownedOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id := chi.URLParam(r, "id")
	order, found := h.store.Order(id)
	if !found {
		if details := h.store.OrderWithDetails(id); details != nil {
			order, found = &details.Order, true
		}
	}

	claims := getClaims(r.Context())
	if !found || claims == nil || (order.UserID != claims.UserID() && !claims.IsAdmin()) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return nil, false
	}
	return order, true
}
