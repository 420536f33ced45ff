package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicateID   = errors.New("order with this id already exists")
)

// CartRepository stores the whole line-item list of a user's cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository backs the /orders collection.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	Close() error
}
