package cart

import (
	"context"
	"sync"

	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/angelmondragon/shopfront/pkg/logger"
	"github.com/shopspring/decimal"
)

// Line is one product in the cart. Quantity is always at least one.
type Line struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   catalog.Product `json:"product"`
}

// HasProduct reports whether the line carries product data to price it with.
// Lines persisted with only an ID and a quantity do not.
func (l Line) HasProduct() bool {
	return l.Product.ID != 0 || l.Product.Title != ""
}

// Subtotal is quantity times unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an immutable view of the cart.
type Snapshot struct {
	Lines          []Line          `json:"lines"`
	TotalItemCount int             `json:"totalItemCount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// IsEmpty reports whether the snapshot holds no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Listener receives the snapshot produced by each committed mutation.
// Listeners run synchronously and must not mutate the store.
type Listener func(Snapshot)

// Store is the single authoritative cart. All operations are total.
type Store struct {
	mu          sync.Mutex
	lines       []Line
	totalItems  int
	totalAmount decimal.Decimal

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64

	logg *logger.Logger
	ctx  context.Context
}

// NewStore returns an empty cart.
func NewStore(logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		totalAmount: decimal.Zero,
		listeners:   map[uint64]Listener{},
		logg:        logg,
		ctx:         logg.WithComponent(context.Background(), "cart"),
	}
}

// Add appends product with quantity one, or increments the existing line.
func (s *Store) Add(product catalog.Product) {
	s.mutate(func() {
		for i := range s.lines {
			if s.lines[i].ProductID == product.ID {
				s.lines[i].Quantity++
				return
			}
		}
		s.lines = append(s.lines, Line{ProductID: product.ID, Quantity: 1, Product: product})
	})
}

// Remove deletes the line for productID if present.
func (s *Store) Remove(productID int64) {
	s.mutate(func() {
		s.removeLocked(productID)
	})
}

// SetQuantity sets a line's quantity. Non-positive quantities remove the line;
// unknown product IDs are ignored. Stock is not checked.
func (s *Store) SetQuantity(productID int64, quantity int) {
	s.mutate(func() {
		if quantity <= 0 {
			s.removeLocked(productID)
			return
		}
		for i := range s.lines {
			if s.lines[i].ProductID == productID {
				s.lines[i].Quantity = quantity
				return
			}
		}
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func() {
		s.lines = nil
	})
}

// Take returns the current cart and empties it in one step. Listeners are
// notified of the emptied cart unless it was already empty.
func (s *Store) Take() Snapshot {
	s.mu.Lock()
	taken := s.snapshotLocked()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return taken
	}
	s.lines = nil
	s.recomputeLocked()
	s.publishLocked(s.snapshotLocked())
	return taken
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Quantity returns the quantity held for productID, or zero.
func (s *Store) Quantity(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range s.lines {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

// Restore replaces the cart contents with a previously persisted snapshot.
// Lines with a non-positive quantity, repeated product IDs or no product data
// are dropped and totals are recomputed from what remains. Listeners are not
// notified.
func (s *Store) Restore(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(snapshot.Lines))
	lines := make([]Line, 0, len(snapshot.Lines))
	dropped := 0
	for _, line := range snapshot.Lines {
		if line.Quantity <= 0 {
			dropped++
			continue
		}
		if _, dup := seen[line.ProductID]; dup {
			dropped++
			continue
		}
		if !line.HasProduct() {
			dropped++
			continue
		}
		seen[line.ProductID] = struct{}{}
		if line.Product.ID == 0 {
			line.Product.ID = line.ProductID
		}
		lines = append(lines, line)
	}
	s.lines = lines
	s.recomputeLocked()

	if dropped > 0 {
		s.logg.Warn(s.logg.WithField(s.ctx, "dropped_lines", dropped), "restored cart contained invalid lines")
	}
}

// Subscribe registers fn for every subsequent mutation. The returned func
// removes the registration.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.listeners, id)
			s.notifyMu.Unlock()
		})
	}
}

// mutate applies change under the state lock, then delivers the resulting
// snapshot to listeners. notifyMu is taken before the state lock is released
// so deliveries follow mutation order.
func (s *Store) mutate(change func()) {
	s.mu.Lock()
	change()
	s.recomputeLocked()
	s.publishLocked(s.snapshotLocked())
}

// publishLocked releases s.mu and delivers snap to listeners.
func (s *Store) publishLocked(snap Snapshot) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range s.listeners {
		fn(snap)
	}
}

func (s *Store) removeLocked(productID int64) {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

func (s *Store) recomputeLocked() {
	items := 0
	amount := decimal.Zero
	for _, line := range s.lines {
		items += line.Quantity
		amount = amount.Add(line.Subtotal())
	}
	s.totalItems = items
	s.totalAmount = amount
}

func (s *Store) snapshotLocked() Snapshot {
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return Snapshot{
		Lines:          lines,
		TotalItemCount: s.totalItems,
		TotalAmount:    s.totalAmount,
	}
}
