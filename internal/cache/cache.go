package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// SessionStore keeps one session per user.
type SessionStore interface {
	GetSession(ctx context.Context, userID string) (*domain.Session, error)
	SetSession(ctx context.Context, userID string, session *domain.Session) error
	DeleteSession(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
