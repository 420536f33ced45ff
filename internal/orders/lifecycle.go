package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/remote"
	"go.uber.org/zap"
)

const DefaultAdminID = "admin"

type RefundDecision string

const (
	RefundApprove RefundDecision = "approve"
	RefundReject  RefundDecision = "reject"
)

type RefundInput struct {
	Reason string
	Images []string
}

type ReturnShippingInput struct {
	TrackingNumber    string
	ShippingCompany   string
	ShippingImages    []string
	EstimatedDelivery string
	Notes             string
}

type ReturnApprovalInput struct {
	AdminResponse string
	PaymentProof  []string
	AdminID       string
}

// Lifecycle persists order transitions to the remote collection. When the
// remote is unreachable the same change is applied locally and the order is
// left pending until Reconcile succeeds.
type Lifecycle struct {
	store  *Store
	remote Remote
	notify notify.Notifier
	log    *zap.Logger
	now    func() time.Time
	locks  keyedMutex
}

func NewLifecycle(store *Store, r Remote, n notify.Notifier, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		remote: r,
		notify: n,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// change builds the patch for the current state of an order.
type change struct {
	name     string
	build    func(current *domain.Order, now time.Time) (domain.OrderPatch, error)
	success  string
	degraded string
}

// UpdateOrderStatus moves an order along the fulfilment path or cancels it.
// Refund states are reached only through the refund operations.
func (l *Lifecycle) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "update_order_status",
		build: func(current *domain.Order, _ time.Time) (domain.OrderPatch, error) {
			if !status.IsValid() {
				return domain.OrderPatch{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
			}
			if !IsFulfillmentStatus(status) || !CanTransitionTo(current.Status, status) {
				return domain.OrderPatch{}, &TransitionError{From: current.Status, To: status}
			}
			patch := domain.OrderPatch{Status: &status}
			if status == domain.OrderStatusCancelled && reason != "" {
				patch.CancellationReason = &reason
			}
			return patch, nil
		},
		success:  fmt.Sprintf("Order status updated to %s", status),
		degraded: fmt.Sprintf("Order status updated to %s locally, sync pending", status),
	})
}

func (l *Lifecycle) SubmitRefundRequest(ctx context.Context, id string, in RefundInput) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "submit_refund_request",
		build: func(current *domain.Order, now time.Time) (domain.OrderPatch, error) {
			if _, err := Next(current.Status, ActionRequestRefund); err != nil {
				return domain.OrderPatch{}, err
			}
			images := in.Images
			if images == nil {
				images = []string{}
			}
			return domain.OrderPatch{
				RefundRequest: &domain.RefundRequest{
					Status:      domain.RefundStatusPending,
					Reason:      in.Reason,
					Images:      images,
					RequestedAt: now,
				},
			}, nil
		},
		success:  "Refund request submitted, waiting for review",
		degraded: "Refund request saved locally, sync pending",
	})
}

// ProcessRefundRequest approves or rejects the pending refund request.
// Approval moves the order to refund_approved.
func (l *Lifecycle) ProcessRefundRequest(ctx context.Context, id string, decision RefundDecision, adminResponse string) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "process_refund_request",
		build: func(current *domain.Order, now time.Time) (domain.OrderPatch, error) {
			if current.RefundRequest == nil {
				return domain.OrderPatch{}, ErrNoRefundRequest
			}

			var action Action
			var refundStatus domain.RefundStatus
			switch decision {
			case RefundApprove:
				action, refundStatus = ActionApproveRefund, domain.RefundStatusApproved
			case RefundReject:
				action, refundStatus = ActionRejectRefund, domain.RefundStatusRejected
			default:
				return domain.OrderPatch{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
			}
			next, err := Next(current.Status, action)
			if err != nil {
				return domain.OrderPatch{}, err
			}

			refund := *current.RefundRequest
			refund.Status = refundStatus
			refund.AdminResponse = adminResponse
			refund.ProcessedAt = &now
			patch := domain.OrderPatch{RefundRequest: &refund}
			if decision == RefundApprove {
				patch.Status = &next
			}
			return patch, nil
		},
		success:  fmt.Sprintf("Refund request %s", refundOutcome(decision)),
		degraded: fmt.Sprintf("Refund request %s locally, sync pending", refundOutcome(decision)),
	})
}

func (l *Lifecycle) SubmitReturnShippingInfo(ctx context.Context, id string, in ReturnShippingInput) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "submit_return_shipping_info",
		build: func(current *domain.Order, now time.Time) (domain.OrderPatch, error) {
			next, err := Next(current.Status, ActionSubmitReturnShipping)
			if err != nil {
				return domain.OrderPatch{}, err
			}
			images := in.ShippingImages
			if images == nil {
				images = []string{}
			}
			return domain.OrderPatch{
				Status: &next,
				ReturnShippingInfo: &domain.ReturnShippingInfo{
					TrackingNumber:    in.TrackingNumber,
					ShippingCompany:   in.ShippingCompany,
					ShippingImages:    images,
					ShippingDate:      now,
					EstimatedDelivery: in.EstimatedDelivery,
					Notes:             in.Notes,
				},
			}, nil
		},
		success:  "Return shipping info submitted, waiting for review",
		degraded: "Return shipping info saved locally, sync pending",
	})
}

func (l *Lifecycle) ApproveReturnShipping(ctx context.Context, id string, in ReturnApprovalInput) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "approve_return_shipping",
		build: func(current *domain.Order, now time.Time) (domain.OrderPatch, error) {
			if current.ReturnShippingInfo == nil {
				return domain.OrderPatch{}, ErrNoReturnShippingInfo
			}
			next, err := Next(current.Status, ActionApproveReturnShipping)
			if err != nil {
				return domain.OrderPatch{}, err
			}

			adminID := in.AdminID
			if adminID == "" {
				adminID = DefaultAdminID
			}
			info := *current.ReturnShippingInfo
			info.AdminApproval = &domain.AdminApproval{
				Approved:      true,
				AdminResponse: in.AdminResponse,
				ProcessedAt:   now,
				AdminID:       adminID,
			}
			if len(in.PaymentProof) > 0 {
				info.PaymentProof = in.PaymentProof
			}
			return domain.OrderPatch{Status: &next, ReturnShippingInfo: &info}, nil
		},
		success:  "Return shipping approved",
		degraded: "Return shipping approved locally, sync pending",
	})
}

func (l *Lifecycle) ConfirmReturnShipmentReceived(ctx context.Context, id string) (*domain.Order, error) {
	return l.apply(ctx, id, l.statusChange("confirm_return_received", ActionConfirmReturnReceived, nil,
		"Returned shipment received"))
}

// ProcessRefundPayment starts the payment reversal and marks payment refunded.
func (l *Lifecycle) ProcessRefundPayment(ctx context.Context, id string) (*domain.Order, error) {
	refunded := domain.PaymentStatusRefunded
	return l.apply(ctx, id, l.statusChange("process_refund_payment", ActionProcessRefundPayment, &refunded,
		"Refund payment processed"))
}

func (l *Lifecycle) CompleteRefund(ctx context.Context, id string) (*domain.Order, error) {
	return l.apply(ctx, id, l.statusChange("complete_refund", ActionCompleteRefund, nil,
		"Refund completed"))
}

// UpdatePaymentStatus sets the payment status only; it is not bound to the
// order state machine.
func (l *Lifecycle) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	return l.apply(ctx, id, change{
		name: "update_payment_status",
		build: func(*domain.Order, time.Time) (domain.OrderPatch, error) {
			if !status.IsValid() {
				return domain.OrderPatch{}, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
			}
			return domain.OrderPatch{PaymentStatus: &status}, nil
		},
		success:  fmt.Sprintf("Payment status updated to %s", status),
		degraded: fmt.Sprintf("Payment status updated to %s locally, sync pending", status),
	})
}

// DeleteOrder removes the order remotely, then locally. A remote failure is
// returned as is; there is no local fallback.
func (l *Lifecycle) DeleteOrder(ctx context.Context, id string) error {
	unlock := l.locks.Lock(id)
	defer unlock()
	defer l.store.track()()

	if err := l.remote.DeleteOrder(ctx, id); err != nil {
		l.log.Error("delete order failed", zap.String("order_id", id), zap.Error(err))
		l.notify.Notify(ctx, notify.Error(id, "Failed to delete order"))
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("delete order %s: %w", id, ErrOrderNotFound)
		}
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	l.store.remove(id)
	l.notify.Notify(ctx, notify.Success(id, "Order deleted"))
	return nil
}

// Reconcile replays pending local changes to the remote. Orders that still
// fail stay pending; their errors are joined into the result.
func (l *Lifecycle) Reconcile(ctx context.Context) (int, error) {
	patches := l.store.pendingPatches()
	ids := make([]string, 0, len(patches))
	for id := range patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	synced := 0
	var errs []error
	for _, id := range ids {
		if err := l.reconcileOne(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		synced++
	}

	if synced > 0 {
		l.notify.Notify(ctx, notify.Success("", fmt.Sprintf("Synced %d pending orders", synced)))
	}
	return synced, errors.Join(errs...)
}

func (l *Lifecycle) reconcileOne(ctx context.Context, id string) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	patch, ok := l.store.pendingPatches()[id]
	if !ok {
		return nil
	}
	updated, err := l.remote.PatchOrder(ctx, id, patch)
	if err != nil {
		l.log.Warn("reconcile order failed", zap.String("order_id", id), zap.Error(err))
		return fmt.Errorf("reconcile order %s: %w", id, err)
	}
	l.store.replace(updated)
	return nil
}

func (l *Lifecycle) statusChange(name string, action Action, payment *domain.PaymentStatus, success string) change {
	return change{
		name: name,
		build: func(current *domain.Order, _ time.Time) (domain.OrderPatch, error) {
			next, err := Next(current.Status, action)
			if err != nil {
				return domain.OrderPatch{}, err
			}
			return domain.OrderPatch{Status: &next, PaymentStatus: payment}, nil
		},
		success:  success,
		degraded: success + " locally, sync pending",
	}
}

func (l *Lifecycle) apply(ctx context.Context, id string, c change) (*domain.Order, error) {
	unlock := l.locks.Lock(id)
	defer unlock()
	defer l.store.track()()

	log := l.log.With(zap.String("op", c.name), zap.String("order_id", id))

	current, err := l.current(ctx, id)
	if err != nil {
		l.notify.Notify(ctx, notify.Error(id, "Order not found"))
		return nil, err
	}

	now := l.now()
	patch, err := c.build(current, now)
	if err != nil {
		log.Warn("order change rejected", zap.Error(err))
		l.notify.Notify(ctx, notify.Error(id, err.Error()))
		return nil, err
	}
	patch.UpdatedAt = now

	// Changes still waiting for sync go out together with this one.
	outgoing := patch
	if pending, ok := l.store.pendingPatches()[id]; ok {
		outgoing = pending.Merge(patch)
	}

	updated, err := l.remote.PatchOrder(ctx, id, outgoing)
	if err == nil {
		l.store.replace(updated)
		l.notify.Notify(ctx, notify.Success(id, c.success))
		return updated, nil
	}
	if errors.Is(err, remote.ErrNotFound) {
		l.notify.Notify(ctx, notify.Error(id, "Order not found"))
		return nil, fmt.Errorf("%s %s: %w", c.name, id, ErrOrderNotFound)
	}

	log.Warn("remote patch failed, applying locally", zap.Error(err))
	local, errLocal := l.store.applyLocal(id, patch)
	if errLocal != nil {
		l.notify.Notify(ctx, notify.Error(id, "Order change failed"))
		return nil, fmt.Errorf("%s %s: %w", c.name, id, errLocal)
	}
	l.notify.Notify(ctx, notify.Degraded(id, c.degraded))
	return local, nil
}

// current resolves the order from the collection, the dataset, then the remote.
func (l *Lifecycle) current(ctx context.Context, id string) (*domain.Order, error) {
	if o, ok := l.store.lookup(id); ok {
		return o, nil
	}
	o, err := l.remote.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("order %s: %w", id, errors.Join(ErrOrderNotFound, err))
	}
	return o, nil
}

func refundOutcome(d RefundDecision) string {
	if d == RefundApprove {
		return "approved"
	}
	return "rejected"
}
