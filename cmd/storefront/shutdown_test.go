package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/angelmondragon/shopfront/internal/persistence"
	"github.com/angelmondragon/shopfront/pkg/logger"
)

type stubServer struct {
	listenErr error
	block     chan struct{}
	shutdowns atomic.Int32
}

func (s *stubServer) ListenAndServe() error {
	if s.block != nil {
		<-s.block
		return http.ErrServerClosed
	}
	return s.listenErr
}

func (s *stubServer) Shutdown(context.Context) error {
	if s.shutdowns.Add(1) == 1 && s.block != nil {
		close(s.block)
	}
	return nil
}

type stubMachine struct {
	closed  atomic.Bool
	waited  atomic.Bool
	onClose func()
}

func (m *stubMachine) Close() {
	if m.closed.CompareAndSwap(false, true) && m.onClose != nil {
		m.onClose()
	}
}

func (m *stubMachine) Wait() { m.waited.Store(true) }

type stubPublisher struct {
	stopped atomic.Bool
}

func (p *stubPublisher) Stop() { p.stopped.Store(true) }

// gatedStore holds Put until release is closed. Tests open it from the
// machine's Close, so the snapshot only lands if shutdown runs.
type gatedStore struct {
	*persistence.MemoryStore
	release chan struct{}
}

func (s *gatedStore) Put(ctx context.Context, key string, payload []byte) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.MemoryStore.Put(ctx, key, payload)
}

type fixture struct {
	store     *cart.Store
	backing   *gatedStore
	machine   *stubMachine
	publisher *stubPublisher
	bg        *background
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backing := &gatedStore{MemoryStore: persistence.NewMemoryStore(), release: make(chan struct{})}
	adapter, err := persistence.NewAdapter(backing)
	require.NoError(t, err)

	store := cart.NewStore(nil)
	require.NoError(t, adapter.Attach(context.Background(), store))

	machine := &stubMachine{onClose: func() { close(backing.release) }}
	f := &fixture{store: store, backing: backing, machine: machine, publisher: &stubPublisher{}}
	f.bg = startBackground(f.machine, adapter, f.publisher)
	return f
}

func (f *fixture) assertDrained(t *testing.T) {
	t.Helper()
	assert.True(t, f.machine.closed.Load())
	assert.True(t, f.machine.waited.Load())
	assert.True(t, f.publisher.stopped.Load())

	payload, err := f.backing.MemoryStore.Get(context.Background(), persistence.DefaultKey)
	require.NoError(t, err)
	snapshot, err := persistence.Decode(payload)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, 2, snapshot.Lines[0].Quantity)
}

func (f *fixture) fillCart() {
	p := catalog.Product{ID: 1, Title: "Lamp", Price: decimal.RequireFromString("10")}
	f.store.Add(p)
	f.store.Add(p)
}

func TestServeListenFailureStillDrains(t *testing.T) {
	f := newFixture(t)
	f.fillCart()

	srv := &stubServer{listenErr: errors.New("listen tcp :8080: bind: address already in use")}
	err := serve(context.Background(), logger.Nop(), srv, 2*time.Second, f.bg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	assert.Equal(t, int32(1), srv.shutdowns.Load())
	f.assertDrained(t)
}

func TestServeSignalDrains(t *testing.T) {
	f := newFixture(t)
	f.fillCart()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := &stubServer{block: make(chan struct{})}
	err := serve(ctx, logger.Nop(), srv, 2*time.Second, f.bg)

	require.NoError(t, err)
	f.assertDrained(t)
}
