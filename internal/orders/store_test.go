package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadFromRemote(t *testing.T) {
	h := newHarness(t)

	src := h.store.Load(context.Background())

	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, 6, h.store.TotalOrders())
	assert.Empty(t, h.notes.All())
	assert.False(t, h.store.Loading())
}

func TestStore_LoadFallsBackToDataset(t *testing.T) {
	h := newHarness(t)
	h.remote.setDown(true)

	src := h.store.Load(context.Background())

	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, 6, h.store.TotalOrders())
	last, ok := h.notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelWarning, last.Level)
	assert.False(t, h.store.Loading())
}

func TestStore_LoadingWhileInFlight(t *testing.T) {
	h := newHarness(t)
	release := h.remote.holdLoads()

	done := make(chan Source, 1)
	go func() { done <- h.store.Load(context.Background()) }()

	require.Eventually(t, h.store.Loading, time.Second, 5*time.Millisecond)

	close(release)
	select {
	case src := <-done:
		assert.Equal(t, SourceRemote, src)
	case <-time.After(time.Second):
		t.Fatal("load did not finish")
	}
	assert.False(t, h.store.Loading())
}

func TestStore_DerivedViews(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	assert.InDelta(t, 744.4, h.store.ExpectedRevenue(), 1e-9)
	assert.InDelta(t, 186.0, h.store.ActualRevenue(), 1e-9)
	assert.InDelta(t, 548.5, h.store.TotalRevenue(), 1e-9)
}

func TestStore_EmptyViews(t *testing.T) {
	h := newHarness(t)

	assert.Zero(t, h.store.TotalOrders())
	assert.Zero(t, h.store.ExpectedRevenue())
	assert.Empty(t, h.store.Orders())
	grouped := h.store.OrdersByStatus()
	assert.Len(t, grouped, len(domain.OrderStatuses))
	for status, bucket := range grouped {
		assert.NotNil(t, bucket, status)
		assert.Empty(t, bucket, status)
	}
}

func TestStore_OrdersByStatus(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	grouped := h.store.OrdersByStatus()

	assert.Len(t, grouped, 12)
	assert.Len(t, grouped[domain.OrderStatusDelivered], 1)
	assert.Len(t, grouped[domain.OrderStatusRefundApproved], 1)
	assert.Empty(t, grouped[domain.OrderStatusRefundCompleted])
	total := 0
	for _, bucket := range grouped {
		total += len(bucket)
	}
	assert.Equal(t, h.store.TotalOrders(), total)
}

func TestStore_Filter(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	tests := []struct {
		name   string
		filter OrderFilter
		want   []string
	}{
		{"empty matches all", OrderFilter{}, []string{"1", "2", "3", "4", "5", "6"}},
		{"order number is case-insensitive", OrderFilter{Query: "ord-2024-0003"}, []string{"3"}},
		{"user id substring", OrderFilter{Query: "9"}, []string{"6"}},
		{"status", OrderFilter{Status: domain.OrderStatusShipping}, []string{"3"}},
		{"payment status", OrderFilter{PaymentStatus: domain.PaymentStatusPaid}, []string{"1", "3", "5", "6"}},
		{"combined", OrderFilter{Query: "ord", PaymentStatus: domain.PaymentStatusFailed}, []string{"4"}},
		{"no match", OrderFilter{Query: "nothing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, o := range h.store.Filter(tt.filter) {
				got = append(got, o.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_OrdersForUser(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	got := h.store.OrdersForUser("2")

	require.Len(t, got, 3)
	for _, o := range got {
		assert.Equal(t, "2", o.UserID)
	}
	assert.Empty(t, h.store.OrdersForUser("42"))
}

func TestStore_ReturnsCopies(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	o, ok := h.store.Order("1")
	require.True(t, ok)
	o.Status = domain.OrderStatusCancelled
	h.store.Orders()[0].Status = domain.OrderStatusCancelled

	again, _ := h.store.Order("1")
	assert.Equal(t, domain.OrderStatusDelivered, again.Status)
}

func TestStore_OrderWithDetails(t *testing.T) {
	h := newHarness(t)

	t.Run("joins user, items, variants and products", func(t *testing.T) {
		details := h.store.OrderWithDetails("1")

		require.NotNil(t, details)
		assert.Equal(t, "ORD-2024-0001", details.OrderNumber)
		assert.Equal(t, "lan.nguyen", details.User.Username)
		assert.Empty(t, details.User.Password)
		require.Len(t, details.Items, 2)

		byVariant := map[int64]domain.OrderItemWithProduct{}
		for _, item := range details.Items {
			byVariant[item.ProductVariantID] = item
		}
		assert.Equal(t, int64(101), byVariant[101].Variant.ID)
		assert.Equal(t, int64(1), byVariant[101].Product.ID)
		assert.Equal(t, domain.ProductVariant{}, byVariant[999].Variant)
		assert.Equal(t, domain.Product{}, byVariant[999].Product)
	})

	t.Run("missing user", func(t *testing.T) {
		assert.Nil(t, h.store.OrderWithDetails("6"))
	})

	t.Run("missing order", func(t *testing.T) {
		assert.Nil(t, h.store.OrderWithDetails("missing"))
	})
}

func TestStore_ResetRestoresDataset(t *testing.T) {
	h := newHarness(t)
	h.remote.setDown(true)
	h.store.Load(context.Background())

	_, err := h.lifecycle.UpdateOrderStatus(context.Background(), "2", domain.OrderStatusPreparing, "")
	require.NoError(t, err)
	require.Len(t, h.store.Pending(), 1)

	h.store.Reset()
	h.store.Load(context.Background())

	o, ok := h.store.Order("2")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusReceived, o.Status)
	assert.Empty(t, h.store.Pending())
}

func TestStore_Export(t *testing.T) {
	h := newHarness(t)
	h.store.Load(context.Background())

	data, err := h.store.Export()
	require.NoError(t, err)

	var exported struct {
		Orders []domain.Order `json:"orders"`
		Users  []domain.User  `json:"users"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Len(t, exported.Orders, 6)
	assert.Len(t, exported.Users, 4)
	for _, u := range exported.Users {
		assert.Empty(t, u.Password, u.Username)
	}
}
