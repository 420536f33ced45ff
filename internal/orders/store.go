// Package orders keeps the order collection of a session and drives the
// order and refund lifecycle against the remote collection.
package orders

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_storefront/internal/dataset"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Remote is the order collection of the backend.
type Remote interface {
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	PatchOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// OrderFilter narrows Orders. Empty fields match everything.
type OrderFilter struct {
	Query         string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

// Store holds the loaded orders and the session's private copy of the
// fallback dataset. Returned orders are copies.
type Store struct {
	remote Remote
	notify notify.Notifier
	log    *zap.Logger
	seed   *dataset.Dataset

	mu      sync.RWMutex
	orders  []domain.Order
	data    *dataset.Dataset
	pending map[string]domain.OrderPatch

	inFlight atomic.Int32
}

func NewStore(remote Remote, seed *dataset.Dataset, n notify.Notifier, log *zap.Logger) *Store {
	return &Store{
		remote:  remote,
		notify:  n,
		log:     log,
		seed:    seed,
		data:    seed.Clone(),
		pending: make(map[string]domain.OrderPatch),
	}
}

// Load replaces the collection with the remote orders. When the remote is
// unreachable the dataset orders are used and a warning is emitted.
// Local changes still waiting for sync are kept on top of remote records.
func (s *Store) Load(ctx context.Context) Source {
	defer s.track()()

	remoteOrders, err := s.remote.ListOrders(ctx, "")
	if err != nil {
		s.log.Warn("load orders from remote failed, using local dataset", zap.Error(err))

		s.mu.Lock()
		s.orders = cloneOrders(s.data.Orders)
		count := len(s.orders)
		s.mu.Unlock()

		s.notify.Notify(ctx, notify.Warning("", "Could not reach the order service, showing local data"))
		s.log.Info("orders loaded", zap.String("source", string(SourceFallback)), zap.Int("count", count))
		return SourceFallback
	}

	s.mu.Lock()
	for i := range remoteOrders {
		if patch, ok := s.pending[remoteOrders[i].ID]; ok {
			patch.Apply(&remoteOrders[i])
			remoteOrders[i].SyncState = domain.SyncStatePending
		}
	}
	s.orders = remoteOrders
	s.mu.Unlock()

	s.log.Info("orders loaded", zap.String("source", string(SourceRemote)), zap.Int("count", len(remoteOrders)))
	return SourceRemote
}

// Reset drops loaded orders, pending changes and dataset mutations.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = nil
	s.data = s.seed.Clone()
	s.pending = make(map[string]domain.OrderPatch)
}

// Loading reports whether a load or lifecycle operation is in flight.
func (s *Store) Loading() bool {
	return s.inFlight.Load() > 0
}

func (s *Store) track() func() {
	s.inFlight.Add(1)
	return func() { s.inFlight.Add(-1) }
}

func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrders(s.orders)
}

func (s *Store) Order(id string) (*domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.orders[i].Clone(), true
	}
	return nil, false
}

func (s *Store) OrdersForUser(userID string) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for i := range s.orders {
		if s.orders[i].UserID == userID {
			out = append(out, *s.orders[i].Clone())
		}
	}
	return out
}

func (s *Store) TotalOrders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// ExpectedRevenue sums totals of every order that is not cancelled.
func (s *Store) ExpectedRevenue() float64 {
	return s.sum(func(o *domain.Order) bool { return o.Status != domain.OrderStatusCancelled })
}

// ActualRevenue sums totals of delivered orders.
func (s *Store) ActualRevenue() float64 {
	return s.sum(func(o *domain.Order) bool { return o.Status == domain.OrderStatusDelivered })
}

// TotalRevenue sums totals of paid orders.
func (s *Store) TotalRevenue() float64 {
	return s.sum(func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentStatusPaid })
}

func (s *Store) sum(match func(o *domain.Order) bool) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for i := range s.orders {
		if match(&s.orders[i]) {
			total = total.Add(decimal.NewFromFloat(s.orders[i].Total))
		}
	}
	return total.InexactFloat64()
}

// OrdersByStatus partitions orders by status. Every known status has a
// bucket; orders with an unknown status are left out.
func (s *Store) OrdersByStatus() map[domain.OrderStatus][]domain.Order {
	grouped := make(map[domain.OrderStatus][]domain.Order, len(domain.OrderStatuses))
	for _, status := range domain.OrderStatuses {
		grouped[status] = []domain.Order{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.orders {
		if bucket, ok := grouped[s.orders[i].Status]; ok {
			grouped[s.orders[i].Status] = append(bucket, *s.orders[i].Clone())
		}
	}
	return grouped
}

// Filter matches Query case-insensitively against the order number, or as
// a substring of the user id, and Status and PaymentStatus exactly.
func (s *Store) Filter(f OrderFilter) []domain.Order {
	query := strings.ToLower(f.Query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Order{}
	for i := range s.orders {
		o := &s.orders[i]
		matchesSearch := f.Query == "" ||
			strings.Contains(strings.ToLower(o.OrderNumber), query) ||
			strings.Contains(o.UserID, f.Query)
		matchesStatus := f.Status == "" || o.Status == f.Status
		matchesPayment := f.PaymentStatus == "" || o.PaymentStatus == f.PaymentStatus
		if matchesSearch && matchesStatus && matchesPayment {
			out = append(out, *o.Clone())
		}
	}
	return out
}

// OrderWithDetails joins an order with its user, items, variants and
// products from the dataset. It returns nil when the order or its user is
// unknown; a missing variant or product leaves the zero value in place.
func (s *Store) OrderWithDetails(id string) *domain.OrderWithDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var order *domain.Order
	if i := s.index(id); i >= 0 {
		order = &s.orders[i]
	} else {
		order = s.data.Order(id)
	}
	if order == nil {
		return nil
	}

	user, ok := s.data.User(order.UserID)
	if !ok {
		return nil
	}

	details := &domain.OrderWithDetails{
		Order: *order.Clone(),
		User:  user.Public(),
		Items: []domain.OrderItemWithProduct{},
	}
	for _, item := range s.data.ItemsFor(order.ID) {
		variant, _ := s.data.Variant(item.ProductVariantID)
		var product domain.Product
		if variant.ProductID != 0 {
			product, _ = s.data.Product(variant.ProductID)
		}
		details.Items = append(details.Items, domain.OrderItemWithProduct{
			OrderItem: item,
			Product:   product,
			Variant:   variant,
		})
	}
	return details
}

// Pending returns the orders whose local changes have not reached the remote.
func (s *Store) Pending() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for i := range s.orders {
		if s.orders[i].SyncState == domain.SyncStatePending {
			out = append(out, *s.orders[i].Clone())
		}
	}
	return out
}

// Export renders the dataset with the current collection as its orders.
// User passwords are left out.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Export(cloneOrders(s.orders))
}

// lookup returns a copy of the order from the collection, then the dataset.
func (s *Store) lookup(id string) (*domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.orders[i].Clone(), true
	}
	if o := s.data.Order(id); o != nil {
		return o.Clone(), true
	}
	return nil, false
}

// replace stores the remote version of an order and forgets pending changes.
func (s *Store) replace(updated *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[updated.ID]; ok {
		delete(s.pending, updated.ID)
		if o := s.data.Order(updated.ID); o != nil {
			o.SyncState = domain.SyncStateSynced
		}
	}
	if i := s.index(updated.ID); i >= 0 {
		s.orders[i] = *updated.Clone()
		s.orders[i].SyncState = domain.SyncStateSynced
	}
}

// applyLocal applies patch to the collection and the dataset and marks the
// order pending. It fails when the order is in neither.
func (s *Store) applyLocal(id string, patch domain.OrderPatch) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *domain.Order
	if o := s.data.Order(id); o != nil {
		patch.Apply(o)
		o.SyncState = domain.SyncStatePending
		result = o.Clone()
	}
	if i := s.index(id); i >= 0 {
		patch.Apply(&s.orders[i])
		s.orders[i].SyncState = domain.SyncStatePending
		result = s.orders[i].Clone()
	}
	if result == nil {
		return nil, ErrOrderNotFound
	}

	if prev, ok := s.pending[id]; ok {
		patch = prev.Merge(patch)
	}
	s.pending[id] = patch
	return result, nil
}

func (s *Store) pendingPatches() map[string]domain.OrderPatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.OrderPatch, len(s.pending))
	for id, p := range s.pending {
		out[id] = p
	}
	return out
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	s.data.RemoveOrder(id)
	if i := s.index(id); i >= 0 {
		s.orders = append(s.orders[:i], s.orders[i+1:]...)
	}
}

func (s *Store) index(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneOrders(in []domain.Order) []domain.Order {
	out := make([]domain.Order, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
