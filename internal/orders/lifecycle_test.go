package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newFixedHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.lifecycle.now = func() time.Time { return fixedNow }
	h.store.Load(context.Background())
	return h
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("follows the state machine", func(t *testing.T) {
		h := newFixedHarness(t)

		o, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusPreparing, "")

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPreparing, o.Status)
		assert.Equal(t, fixedNow, o.UpdatedAt)
		stored, _ := h.remote.order("2")
		assert.Equal(t, domain.OrderStatusPreparing, stored.Status)
		local, _ := h.store.Order("2")
		assert.Equal(t, domain.SyncStateSynced, local.SyncState)
		last, _ := h.notes.Last()
		assert.Equal(t, notify.LevelSuccess, last.Level)
		assert.False(t, last.Degraded)
	})

	t.Run("rejects skipping states", func(t *testing.T) {
		h := newFixedHarness(t)

		_, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusDelivered, "")

		var transitionErr *TransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Zero(t, h.remote.patchCount())
		local, _ := h.store.Order("2")
		assert.Equal(t, domain.OrderStatusReceived, local.Status)
		last, _ := h.notes.Last()
		assert.Equal(t, notify.LevelError, last.Level)
	})

	t.Run("cancellation keeps the reason", func(t *testing.T) {
		h := newFixedHarness(t)

		o, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusCancelled, "customer changed mind")

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
		assert.Equal(t, "customer changed mind", o.CancellationReason)
	})

	t.Run("unknown status", func(t *testing.T) {
		h := newFixedHarness(t)

		_, err := h.lifecycle.UpdateOrderStatus(ctx, "2", "lost", "")

		require.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("unknown order", func(t *testing.T) {
		h := newFixedHarness(t)

		_, err := h.lifecycle.UpdateOrderStatus(ctx, "missing", domain.OrderStatusPreparing, "")

		require.ErrorIs(t, err, ErrOrderNotFound)
		last, _ := h.notes.Last()
		assert.Equal(t, notify.LevelError, last.Level)
	})

	t.Run("refund states need the refund operations", func(t *testing.T) {
		h := newFixedHarness(t)

		for _, target := range []domain.OrderStatus{
			domain.OrderStatusRefundApproved,
			domain.OrderStatusRefundProcessing,
			domain.OrderStatusRefundCompleted,
		} {
			_, err := h.lifecycle.UpdateOrderStatus(ctx, "1", target, "")

			var transitionErr *TransitionError
			require.ErrorAs(t, err, &transitionErr, target)
		}
		assert.Zero(t, h.remote.patchCount())
		local, _ := h.store.Order("1")
		assert.Equal(t, domain.OrderStatusDelivered, local.Status)
		assert.Nil(t, local.RefundRequest)
	})

	t.Run("same status is accepted", func(t *testing.T) {
		h := newFixedHarness(t)

		o, err := h.lifecycle.UpdateOrderStatus(ctx, "3", domain.OrderStatusShipping, "")

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipping, o.Status)
	})
}

func TestRefundLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)

	o, err := h.lifecycle.SubmitRefundRequest(ctx, "1", RefundInput{Reason: "Too small", Images: []string{"a.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, o.Status)
	require.NotNil(t, o.RefundRequest)
	assert.Equal(t, domain.RefundStatusPending, o.RefundRequest.Status)
	assert.Equal(t, fixedNow, o.RefundRequest.RequestedAt)

	o, err = h.lifecycle.ProcessRefundRequest(ctx, "1", RefundApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundApproved, o.Status)
	assert.Equal(t, domain.RefundStatusApproved, o.RefundRequest.Status)
	assert.Equal(t, "ok", o.RefundRequest.AdminResponse)
	require.NotNil(t, o.RefundRequest.ProcessedAt)
	assert.Equal(t, "Too small", o.RefundRequest.Reason)

	o, err = h.lifecycle.SubmitReturnShippingInfo(ctx, "1", ReturnShippingInput{
		TrackingNumber:    "TRK-1",
		ShippingCompany:   "GHN",
		EstimatedDelivery: "2024-06-05",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundReturnShippingPending, o.Status)
	require.NotNil(t, o.ReturnShippingInfo)
	assert.Equal(t, fixedNow, o.ReturnShippingInfo.ShippingDate)

	o, err = h.lifecycle.ApproveReturnShipping(ctx, "1", ReturnApprovalInput{AdminResponse: "received label", PaymentProof: []string{"proof.png"}})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundReturnShippingApproved, o.Status)
	require.NotNil(t, o.ReturnShippingInfo.AdminApproval)
	assert.True(t, o.ReturnShippingInfo.AdminApproval.Approved)
	assert.Equal(t, DefaultAdminID, o.ReturnShippingInfo.AdminApproval.AdminID)
	assert.Equal(t, []string{"proof.png"}, o.ReturnShippingInfo.PaymentProof)
	assert.Equal(t, "TRK-1", o.ReturnShippingInfo.TrackingNumber)

	o, err = h.lifecycle.ConfirmReturnShipmentReceived(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundReturnReceived, o.Status)

	o, err = h.lifecycle.ProcessRefundPayment(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundProcessing, o.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, o.PaymentStatus)

	o, err = h.lifecycle.CompleteRefund(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefundCompleted, o.Status)

	stored, _ := h.remote.order("1")
	assert.Equal(t, domain.OrderStatusRefundCompleted, stored.Status)
	for _, n := range h.notes.All() {
		assert.Equal(t, notify.LevelSuccess, n.Level, n.Message)
	}
}

func TestProcessRefundRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("without a refund request", func(t *testing.T) {
		h := newFixedHarness(t)

		_, err := h.lifecycle.ProcessRefundRequest(ctx, "1", RefundApprove, "")

		require.ErrorIs(t, err, ErrNoRefundRequest)
		local, _ := h.store.Order("1")
		assert.Equal(t, domain.OrderStatusDelivered, local.Status)
		assert.Nil(t, local.RefundRequest)
		assert.Zero(t, h.remote.patchCount())
		last, _ := h.notes.Last()
		assert.Equal(t, notify.LevelError, last.Level)
	})

	t.Run("reject keeps the order delivered", func(t *testing.T) {
		h := newFixedHarness(t)
		_, err := h.lifecycle.SubmitRefundRequest(ctx, "1", RefundInput{Reason: "late"})
		require.NoError(t, err)

		o, err := h.lifecycle.ProcessRefundRequest(ctx, "1", RefundReject, "no")

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusDelivered, o.Status)
		assert.Equal(t, domain.RefundStatusRejected, o.RefundRequest.Status)
	})

	t.Run("unknown decision", func(t *testing.T) {
		h := newFixedHarness(t)
		_, err := h.lifecycle.SubmitRefundRequest(ctx, "1", RefundInput{Reason: "late"})
		require.NoError(t, err)

		_, err = h.lifecycle.ProcessRefundRequest(ctx, "1", "maybe", "")

		require.ErrorIs(t, err, ErrInvalidDecision)
	})
}

func TestSubmitRefundRequest_RequiresDelivered(t *testing.T) {
	h := newFixedHarness(t)

	_, err := h.lifecycle.SubmitRefundRequest(context.Background(), "3", RefundInput{Reason: "late"})

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	local, _ := h.store.Order("3")
	assert.Nil(t, local.RefundRequest)
}

func TestApproveReturnShipping_RequiresShippingInfo(t *testing.T) {
	h := newFixedHarness(t)

	_, err := h.lifecycle.ApproveReturnShipping(context.Background(), "5", ReturnApprovalInput{AdminID: "7"})

	require.ErrorIs(t, err, ErrNoReturnShippingInfo)
	local, _ := h.store.Order("5")
	assert.Equal(t, domain.OrderStatusRefundApproved, local.Status)
}

func TestApproveReturnShipping_KeepsProofWhenEmpty(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)
	_, err := h.lifecycle.SubmitReturnShippingInfo(ctx, "5", ReturnShippingInput{TrackingNumber: "TRK-5"})
	require.NoError(t, err)

	o, err := h.lifecycle.ApproveReturnShipping(ctx, "5", ReturnApprovalInput{AdminID: "7"})

	require.NoError(t, err)
	assert.Empty(t, o.ReturnShippingInfo.PaymentProof)
	assert.Equal(t, "7", o.ReturnShippingInfo.AdminApproval.AdminID)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)

	o, err := h.lifecycle.UpdatePaymentStatus(ctx, "2", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusReceived, o.Status)

	_, err = h.lifecycle.UpdatePaymentStatus(ctx, "2", "bounced")
	require.ErrorIs(t, err, ErrInvalidPaymentStatus)
}

func TestLifecycle_DegradesWhenRemoteDown(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)
	h.remote.setDown(true)

	o, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusPreparing, "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPreparing, o.Status)
	assert.Equal(t, domain.SyncStatePending, o.SyncState)
	last, _ := h.notes.Last()
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.True(t, last.Degraded)

	pending := h.store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0].ID)
	stored, _ := h.remote.order("2")
	assert.Equal(t, domain.OrderStatusReceived, stored.Status)

	// a second local change builds on the first
	o, err = h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusShipping, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipping, o.Status)

	synced, err := h.lifecycle.Reconcile(ctx)
	require.Error(t, err)
	assert.Zero(t, synced)
	assert.Len(t, h.store.Pending(), 1)

	h.remote.setDown(false)
	synced, err = h.lifecycle.Reconcile(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Empty(t, h.store.Pending())
	stored, _ = h.remote.order("2")
	assert.Equal(t, domain.OrderStatusShipping, stored.Status)
	local, _ := h.store.Order("2")
	assert.Equal(t, domain.SyncStateSynced, local.SyncState)
}

func TestLifecycle_LaterChangeCarriesPendingPatch(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)
	h.remote.setDown(true)
	_, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusCancelled, "changed mind")
	require.NoError(t, err)

	h.remote.setDown(false)
	o, err := h.lifecycle.UpdatePaymentStatus(ctx, "2", domain.PaymentStatusFailed)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	assert.Equal(t, "changed mind", o.CancellationReason)
	assert.Equal(t, domain.PaymentStatusFailed, o.PaymentStatus)

	stored, _ := h.remote.order("2")
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	assert.Equal(t, "changed mind", stored.CancellationReason)
	assert.Equal(t, domain.PaymentStatusFailed, stored.PaymentStatus)

	local, _ := h.store.Order("2")
	assert.Equal(t, domain.OrderStatusCancelled, local.Status)
	assert.Equal(t, domain.SyncStateSynced, local.SyncState)
	assert.Empty(t, h.store.Pending())

	synced, err := h.lifecycle.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func TestLifecycle_PendingSurvivesReload(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)
	h.remote.setDown(true)
	_, err := h.lifecycle.UpdatePaymentStatus(ctx, "2", domain.PaymentStatusPaid)
	require.NoError(t, err)

	h.remote.setDown(false)
	h.store.Load(ctx)

	local, ok := h.store.Order("2")
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusPaid, local.PaymentStatus)
	assert.Equal(t, domain.SyncStatePending, local.SyncState)
}

func TestLifecycle_FallbackOnDatasetOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.lifecycle.now = func() time.Time { return fixedNow }
	h.remote.setDown(true)

	o, err := h.lifecycle.UpdateOrderStatus(ctx, "2", domain.OrderStatusPreparing, "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPreparing, o.Status)
	details := h.store.OrderWithDetails("2")
	require.NotNil(t, details)
	assert.Equal(t, domain.OrderStatusPreparing, details.Status)
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("removes remotely and locally", func(t *testing.T) {
		h := newFixedHarness(t)

		require.NoError(t, h.lifecycle.DeleteOrder(ctx, "4"))

		_, ok := h.store.Order("4")
		assert.False(t, ok)
		_, ok = h.remote.order("4")
		assert.False(t, ok)
		assert.Equal(t, 5, h.store.TotalOrders())
		assert.Nil(t, h.store.OrderWithDetails("4"))

		_, err := h.lifecycle.UpdateOrderStatus(ctx, "4", domain.OrderStatusPreparing, "")
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("removes dataset-only orders too", func(t *testing.T) {
		h := newFixedHarness(t)
		h.remote.setDown(true)
		h.store.Load(ctx)
		h.remote.setDown(false)

		require.NoError(t, h.lifecycle.DeleteOrder(ctx, "1"))

		assert.Nil(t, h.store.OrderWithDetails("1"))
		_, ok := h.store.Order("1")
		assert.False(t, ok)
	})

	t.Run("no local fallback", func(t *testing.T) {
		h := newFixedHarness(t)
		h.remote.setDown(true)

		err := h.lifecycle.DeleteOrder(ctx, "4")

		require.ErrorIs(t, err, errRemoteDown)
		_, ok := h.store.Order("4")
		assert.True(t, ok)
		last, _ := h.notes.Last()
		assert.Equal(t, notify.LevelError, last.Level)
	})

	t.Run("unknown order", func(t *testing.T) {
		h := newFixedHarness(t)

		err := h.lifecycle.DeleteOrder(ctx, "missing")

		require.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestLifecycle_ConcurrentUpdatesSameOrder(t *testing.T) {
	ctx := context.Background()
	h := newFixedHarness(t)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.lifecycle.UpdatePaymentStatus(ctx, "2", domain.PaymentStatusPaid)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 10, h.remote.patchCount())
	assert.False(t, h.store.Loading())
}
