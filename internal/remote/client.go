// Package remote talks to the collection-per-resource REST backend.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("remote resource not found")
	ErrUnavailable = errors.New("remote unavailable")
)

// StatusError is a non-2xx answer other than 404.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Client struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker[*resty.Response]
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		rc.SetHeader("X-API-Key", cfg.APIKey)
	}

	cb := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "remote-collections",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{http: rc, cb: cb, log: log}
}

func (c *Client) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	path := "/orders"
	if userID != "" {
		path += "?userId=" + url.QueryEscape(userID)
	}
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].SyncState = domain.SyncStateSynced
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, orderPath(id), nil, &order); err != nil {
		return nil, err
	}
	order.SyncState = domain.SyncStateSynced
	return &order, nil
}

// PatchOrder sends a partial update and returns the stored record.
func (c *Client) PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPatch, orderPath(id), patch, &order); err != nil {
		return nil, err
	}
	order.SyncState = domain.SyncStateSynced
	return &order, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, orderPath(id), nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ProductVariant(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	var variant domain.ProductVariant
	path := "/product_variants/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &variant); err != nil {
		return nil, err
	}
	return &variant, nil
}

// CreateUser stores a new user; the collection assigns the id.
func (c *Client) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	var created domain.User
	if err := c.do(ctx, http.MethodPost, "/users", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListProducts lists the catalog. A non-empty query is passed on as q.
func (c *Client) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	path := "/products"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ListReviews lists the reviews of a product, or all of them for id 0.
func (c *Client) ListReviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	path := "/reviews"
	if productID != 0 {
		path += "?productId=" + strconv.FormatInt(productID, 10)
	}
	var reviews []domain.Review
	if err := c.do(ctx, http.MethodGet, path, nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (c *Client) CreateReview(ctx context.Context, review domain.Review) (*domain.Review, error) {
	var created domain.Review
	if err := c.do(ctx, http.MethodPost, "/reviews", review, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ReplyReview(ctx context.Context, id int64, reply domain.ReviewReply) (*domain.Review, error) {
	var updated domain.Review
	path := "/reviews/" + strconv.FormatInt(id, 10) + "/reply"
	if err := c.do(ctx, http.MethodPatch, path, reply, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteReview(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/reviews/"+strconv.FormatInt(id, 10), nil, nil)
}

func orderPath(id string) string {
	return "/orders/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx)
		if token := TokenFromContext(ctx); token != "" {
			req.SetAuthToken(token)
		}
		if body != nil {
			req.SetBody(body)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return resp, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
		}
		if resp.IsError() {
			return resp, &StatusError{Method: method, Path: path, Code: resp.StatusCode(), Body: string(resp.Body())}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
