package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:          srv.URL,
		APIKey:           "secret-key",
		Timeout:          time.Second,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}, zap.NewNop())
}

func TestListOrders_SendsHeadersAndDecodes(t *testing.T) {
	var gotKey, gotAuth, gotUser string
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		gotUser = r.URL.Query().Get("userId")
		assert.Equal(t, "/orders", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.Order{{ID: "1", Status: domain.OrderStatusReceived}})
	})

	ctx := WithToken(context.Background(), "jwt-token")
	orders, err := sut.ListOrders(ctx, "2")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SyncStateSynced, orders[0].SyncState)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "Bearer jwt-token", gotAuth)
	assert.Equal(t, "2", gotUser)
}

func TestListOrders_NoTokenNoAuthorization(t *testing.T) {
	var gotAuth string
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	orders, err := sut.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, gotAuth)
}

func TestPatchOrder_SendsPartialDocument(t *testing.T) {
	var body map[string]any
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/orders/5", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(domain.Order{ID: "5", Status: domain.OrderStatusPreparing})
	})

	status := domain.OrderStatusPreparing
	order, err := sut.PatchOrder(context.Background(), "5", domain.OrderPatch{
		Status:    &status,
		UpdatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPreparing, order.Status)
	assert.Equal(t, "preparing", body["status"])
	assert.Equal(t, "2024-04-01T00:00:00Z", body["updatedAt"])
	assert.NotContains(t, body, "paymentStatus")
	assert.NotContains(t, body, "refundRequest")
}

func TestGetOrder_NotFound(t *testing.T) {
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := sut.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOrder_ServerError(t *testing.T) {
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := sut.DeleteOrder(context.Background(), "1")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 3; i++ {
		_, err := sut.ListUsers(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := sut.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		_, err := sut.GetUser(context.Background(), "9")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestProductVariant(t *testing.T) {
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product_variants/101", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":101,"productId":1,"sku":"LS-001-M-WHT","stockQuantity":4}`))
	})

	v, err := sut.ProductVariant(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 4, v.StockQuantity)
	assert.True(t, v.InStock(4))
	assert.False(t, v.InStock(5))
}

func TestUnreachableServer(t *testing.T) {
	sut := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, zap.NewNop())

	_, err := sut.ListOrders(context.Background(), "")
	assert.Error(t, err)
}

func TestOrderIDsAreEscaped(t *testing.T) {
	var paths []string
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		if strings.HasPrefix(r.URL.Path, "/users/") {
			_, _ = w.Write([]byte(`{"id":7}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"a/b c"}`))
	})
	ctx := context.Background()

	_, err := sut.GetOrder(ctx, "a/b c")
	require.NoError(t, err)
	_, err = sut.PatchOrder(ctx, "a/b c", domain.OrderPatch{})
	require.NoError(t, err)
	require.NoError(t, sut.DeleteOrder(ctx, "a/b c"))
	_, err = sut.GetUser(ctx, "7/8")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/orders/a%2Fb%20c",
		"/orders/a%2Fb%20c",
		"/orders/a%2Fb%20c",
		"/users/7%2F8",
	}, paths)
}

func TestCreateUser(t *testing.T) {
	var got domain.User
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		got.ID = 7
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(got)
	})

	created, err := sut.CreateUser(context.Background(), domain.User{Username: "new", Email: "new@example.com", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "new@example.com", got.Email)
}

func TestProductsAndReviews(t *testing.T) {
	replyDate := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	sut := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/products":
			assert.Equal(t, "linen shirt", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`[{"id":1,"name":"Linen Shirt","tags":["summer"]}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/products/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"Linen Shirt"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/reviews":
			assert.Equal(t, "1", r.URL.Query().Get("productId"))
			_, _ = w.Write([]byte(`[{"id":4,"productId":1,"rating":5,"content":"great"}]`))
		case r.Method == http.MethodPatch && r.URL.Path == "/reviews/4/reply":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "thanks", body["reply"])
			assert.Equal(t, "2024-05-01T09:00:00Z", body["replyDate"])
			_, _ = w.Write([]byte(`{"id":4,"productId":1,"rating":5,"content":"great","reply":"thanks","replyDate":"2024-05-01T09:00:00Z"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/reviews/4":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	products, err := sut.ListProducts(ctx, "linen shirt")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"summer"}, products[0].Tags)

	product, err := sut.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", product.Name)

	_, err = sut.GetProduct(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	reviews, err := sut.ListReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	updated, err := sut.ReplyReview(ctx, 4, domain.ReviewReply{Reply: "thanks", ReplyDate: replyDate})
	require.NoError(t, err)
	assert.Equal(t, "thanks", updated.Reply)
	require.NotNil(t, updated.ReplyDate)
	assert.True(t, replyDate.Equal(*updated.ReplyDate))

	require.NoError(t, sut.DeleteReview(ctx, 4))
}
