package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StockReader reads the current stock of a variant.
type StockReader interface {
	ProductVariant(ctx context.Context, id int64) (*domain.ProductVariant, error)
}

// View is a snapshot of a user's cart with its derived totals.
type View struct {
	UserID     string                `json:"userId"`
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"totalItems"`
	TotalPrice float64               `json:"totalPrice"`
}

// DefaultIdleTTL is how long an unused cart stays in memory.
const DefaultIdleTTL = 30 * time.Minute

type userCart struct {
	mu        sync.Mutex
	cart      *Cart
	createdAt time.Time
	// dirty is set while the last persist failed; such carts are never evicted.
	dirty bool

	// guarded by Service.mu
	refs     int
	lastUsed time.Time
}

// Service keeps the carts of active users in memory. Each mutation persists
// the full line-item list; persistence failures are logged, never returned.
// Carts unused for idleTTL are dropped and restored from cache or repository
// on the next request.
type Service struct {
	repo  repository.CartRepository
	cache cache.CartCache
	stock StockReader
	log   *zap.Logger
	sfg   singleflight.Group // Prevents cache stampede

	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	carts     map[string]*userCart
	lastSweep time.Time
}

func NewService(repo repository.CartRepository, cache cache.CartCache, stock StockReader, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		stock: stock,
		log:   log,
		carts: make(map[string]*userCart),

		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*View, error) {
	uc, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return newView(userID, uc.cart), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Add(item, quantity)
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.UpdateQuantity(item, quantity)
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Remove(item, quantity)
	})
}

func (s *Service) ClearItem(ctx context.Context, userID string, item domain.CartLineItem) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.ClearItem(item)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// CheckAvailability reports whether the variant stock covers the quantity
// already in the cart plus quantity. Items without a variant, or a Service
// without a StockReader, are always available.
func (s *Service) CheckAvailability(ctx context.Context, userID string, item domain.CartLineItem, quantity int) (bool, error) {
	if s.stock == nil || item.VariantID == 0 {
		return true, nil
	}

	inCart := 0
	if uc, release, err := s.acquire(ctx, userID); err == nil {
		uc.mu.Lock()
		inCart = uc.cart.Quantity(item.Key())
		uc.mu.Unlock()
		release()
	}

	variant, err := s.stock.ProductVariant(ctx, item.VariantID)
	if err != nil {
		return false, err
	}
	return variant.InStock(inCart + quantity), nil
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(c *Cart) error) (*View, error) {
	uc, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if err := fn(uc.cart); err != nil {
		return nil, err
	}

	s.persist(ctx, userID, uc)
	return newView(userID, uc.cart), nil
}

func (s *Service) persist(ctx context.Context, userID string, uc *userCart) {
	items := uc.cart.Items()

	var err error
	if len(items) == 0 {
		err = s.repo.DeleteCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			err = nil
		}
	} else {
		err = s.repo.UpsertCart(ctx, &domain.Cart{
			UserID:    userID,
			Items:     items,
			CreatedAt: uc.createdAt,
		})
	}
	uc.dirty = err != nil
	if err != nil {
		s.log.Warn("persist cart failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.invalidateCache(userID)
}

// acquire returns the user's cart, loading it when it is not in memory.
// The cart is not evicted until release is called.
func (s *Service) acquire(ctx context.Context, userID string) (*userCart, func(), error) {
	s.mu.Lock()
	s.evictIdle()
	if uc, ok := s.carts[userID]; ok {
		uc.refs++
		s.mu.Unlock()
		return uc, func() { s.release(uc) }, nil
	}
	s.mu.Unlock()

	stored, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uc, ok := s.carts[userID]
	if !ok {
		uc = &userCart{cart: New(stored.Items), createdAt: stored.CreatedAt}
		s.carts[userID] = uc
	}
	uc.refs++
	return uc, func() { s.release(uc) }, nil
}

func (s *Service) release(uc *userCart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc.refs--
	uc.lastUsed = s.now()
}

// evictIdle drops carts nobody holds that were unused for idleTTL. It runs at
// most once per idleTTL. s.mu must be held.
func (s *Service) evictIdle() {
	now := s.now()
	if now.Sub(s.lastSweep) < s.idleTTL {
		return
	}
	s.lastSweep = now

	for userID, uc := range s.carts {
		if uc.refs == 0 && !uc.dirty && now.Sub(uc.lastUsed) >= s.idleTTL {
			delete(s.carts, userID)
		}
	}
}

// load restores a stored cart: cache first, then repository. A user without
// a stored cart gets an empty one.
func (s *Service) load(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			return &domain.Cart{UserID: userID, CreatedAt: time.Now()}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				s.log.Warn("cache set failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func newView(userID string, c *Cart) *View {
	return &View{
		UserID:     userID,
		Items:      c.Items(),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}
