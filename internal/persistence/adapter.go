package persistence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
	"github.com/angelmondragon/shopfront/pkg/logger"
	"github.com/angelmondragon/shopfront/pkg/metrics"
)

const (
	DefaultKey   = "cart"
	drainTimeout = 5 * time.Second

	loadFound   = "found"
	loadMissing = "missing"
)

var errAlreadyAttached = errors.New("cart already attached")

// Cart is the surface the adapter needs from the cart store.
type Cart interface {
	Restore(cart.Snapshot)
	Subscribe(cart.Listener) func()
}

// Products resolves product data for saved lines that carry only an ID.
type Products interface {
	FetchProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Adapter mirrors cart snapshots into a SnapshotStore. Saves are queued for a
// single writer goroutine; a queued snapshot is replaced by a newer one.
type Adapter struct {
	store    SnapshotStore
	key      string
	logg     *logger.Logger
	metrics  *metrics.StateMetrics
	products Products
	ctx      context.Context

	mu          sync.Mutex
	pending     *cart.Snapshot
	observed    uint64
	written     uint64
	progress    chan struct{}
	unsubscribe func()

	wake chan struct{}
}

// Option configures optional adapter collaborators.
type Option func(*Adapter)

func WithKey(key string) Option {
	return func(a *Adapter) {
		if k := strings.TrimSpace(key); k != "" {
			a.key = k
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(a *Adapter) {
		if logg != nil {
			a.logg = logg
		}
	}
}

func WithMetrics(rec *metrics.StateMetrics) Option {
	return func(a *Adapter) {
		a.metrics = rec
	}
}

// WithProducts fills in saved lines that have no product data. Without it
// such lines are dropped on restore.
func WithProducts(p Products) Option {
	return func(a *Adapter) {
		a.products = p
	}
}

// NewAdapter wires the adapter to store.
func NewAdapter(store SnapshotStore, opts ...Option) (*Adapter, error) {
	if store == nil {
		return nil, errors.New("snapshot store required")
	}
	a := &Adapter{
		store:    store,
		key:      DefaultKey,
		logg:     logger.Nop(),
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.ctx = a.logg.WithFields(context.Background(), map[string]any{
		"component": "persistence",
		"cart_key":  a.key,
	})
	return a, nil
}

// Load reads the saved snapshot. found is false when nothing was saved.
func (a *Adapter) Load(ctx context.Context) (cart.Snapshot, bool, error) {
	payload, err := a.store.Get(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		return cart.Snapshot{}, false, nil
	}
	if err != nil {
		return cart.Snapshot{}, false, err
	}
	snapshot, err := Decode(payload)
	if err != nil {
		return cart.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Attach restores the cart from storage once and then follows every
// mutation. Load failures leave the cart empty.
func (a *Adapter) Attach(ctx context.Context, c Cart) error {
	if c == nil {
		return errors.New("cart required")
	}
	a.mu.Lock()
	if a.unsubscribe != nil {
		a.mu.Unlock()
		return errAlreadyAttached
	}
	a.mu.Unlock()

	snapshot, found, err := a.Load(ctx)
	switch {
	case err != nil:
		a.metrics.IncCartLoad(metrics.OutcomeFailure)
		a.logg.Error(a.ctx, "failed to load cart snapshot", err)
	case !found:
		a.metrics.IncCartLoad(loadMissing)
		a.logg.Info(a.ctx, "no saved cart snapshot")
	default:
		a.metrics.IncCartLoad(loadFound)
		c.Restore(a.resolveProducts(ctx, snapshot))
		a.logg.Info(a.logg.WithField(a.ctx, "lines", len(snapshot.Lines)), "cart snapshot restored")
	}

	unsubscribe := c.Subscribe(a.Save)
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
	return nil
}

// Detach stops following the cart.
func (a *Adapter) Detach() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Save queues snapshot for the writer and returns immediately.
func (a *Adapter) Save(snapshot cart.Snapshot) {
	a.mu.Lock()
	a.observed++
	a.pending = &snapshot
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run writes queued snapshots until ctx is canceled, then makes one last
// attempt at whatever is still queued.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			a.writePending(drainCtx)
			cancel()
			return nil
		case <-a.wake:
			a.writePending(ctx)
		}
	}
}

// Flush blocks until every snapshot observed so far has been written or has
// failed.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	target := a.observed
	a.mu.Unlock()

	for {
		a.mu.Lock()
		if a.written >= target {
			a.mu.Unlock()
			return nil
		}
		progress := a.progress
		a.mu.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resolveProducts looks up the product for every line saved without one.
// Lines that cannot be resolved are left as they are for Restore to drop.
func (a *Adapter) resolveProducts(ctx context.Context, snapshot cart.Snapshot) cart.Snapshot {
	for i, line := range snapshot.Lines {
		if line.HasProduct() || line.Quantity <= 0 || a.products == nil {
			continue
		}
		product, err := a.products.FetchProduct(ctx, line.ProductID)
		if err != nil {
			lineCtx := a.logg.WithField(a.ctx, "product_id", line.ProductID)
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				a.logg.Warn(lineCtx, "saved cart product no longer exists")
			} else {
				a.logg.Error(lineCtx, "failed to resolve saved cart product", err)
			}
			continue
		}
		snapshot.Lines[i].Product = product
	}
	return snapshot
}

func (a *Adapter) writePending(ctx context.Context) {
	a.mu.Lock()
	snapshot := a.pending
	version := a.observed
	a.pending = nil
	a.mu.Unlock()
	if snapshot == nil {
		return
	}

	if err := a.write(ctx, *snapshot); err != nil {
		a.metrics.IncCartSave(metrics.OutcomeFailure)
		a.logg.Error(a.ctx, "failed to save cart snapshot", err)
	} else {
		a.metrics.IncCartSave(metrics.OutcomeSuccess)
	}

	a.mu.Lock()
	a.written = version
	close(a.progress)
	a.progress = make(chan struct{})
	a.mu.Unlock()
}

func (a *Adapter) write(ctx context.Context, snapshot cart.Snapshot) error {
	payload, err := Encode(snapshot)
	if err != nil {
		return err
	}
	return a.store.Put(ctx, a.key, payload)
}
