package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/fjod/go_storefront/internal/dataset"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/remote"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRemoteDown = errors.New("connection refused")

// fakeRemote is an in-memory order collection. Setting down makes every call
// fail like an unreachable server.
type fakeRemote struct {
	m       sync.RWMutex
	orders  map[string]domain.Order
	down    bool
	patches int
	// hold, when set, blocks ListOrders until it is closed.
	hold chan struct{}
}

func newFakeRemote(orders []domain.Order) *fakeRemote {
	f := &fakeRemote{orders: make(map[string]domain.Order, len(orders))}
	for _, o := range orders {
		f.orders[o.ID] = *o.Clone()
	}
	return f
}

func (f *fakeRemote) setDown(down bool) {
	f.m.Lock()
	defer f.m.Unlock()
	f.down = down
}

func (f *fakeRemote) holdLoads() chan struct{} {
	f.m.Lock()
	defer f.m.Unlock()
	f.hold = make(chan struct{})
	return f.hold
}

func (f *fakeRemote) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	f.m.RLock()
	hold := f.hold
	f.m.RUnlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.m.RLock()
	defer f.m.RUnlock()
	if f.down {
		return nil, errRemoteDown
	}
	out := []domain.Order{}
	for _, o := range f.orders {
		if userID == "" || o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	if f.down {
		return nil, errRemoteDown
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return o.Clone(), nil
}

func (f *fakeRemote) PatchOrder(_ context.Context, id string, patch domain.OrderPatch) (*domain.Order, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.patches++
	if f.down {
		return nil, errRemoteDown
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	patch.Apply(&o)
	f.orders[id] = o
	return o.Clone(), nil
}

func (f *fakeRemote) DeleteOrder(_ context.Context, id string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.down {
		return errRemoteDown
	}
	if _, ok := f.orders[id]; !ok {
		return remote.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeRemote) order(id string) (domain.Order, bool) {
	f.m.RLock()
	defer f.m.RUnlock()
	o, ok := f.orders[id]
	return o, ok
}

func (f *fakeRemote) patchCount() int {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.patches
}

type harness struct {
	remote    *fakeRemote
	store     *Store
	lifecycle *Lifecycle
	notes     *notify.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h, err := buildHarness()
	require.NoError(t, err)
	return h
}

// buildHarness wires a store and lifecycle over a remote seeded with the
// default dataset orders.
func buildHarness() (*harness, error) {
	data, err := dataset.Default()
	if err != nil {
		return nil, err
	}
	r := newFakeRemote(data.Orders)
	notes := &notify.Recorder{}
	log := zap.NewNop()
	store := NewStore(r, data, notes, log)
	return &harness{
		remote:    r,
		store:     store,
		lifecycle: NewLifecycle(store, r, notes, log),
		notes:     notes,
	}, nil
}
