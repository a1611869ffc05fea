package browse

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shopfront/internal/catalog"
	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
	"github.com/angelmondragon/shopfront/pkg/logger"
	"github.com/angelmondragon/shopfront/pkg/metrics"
)

// ErrClosed is returned by intents dispatched after Close.
var ErrClosed = errors.New("browse machine closed")

const categoriesKind = "categories"

// Listener receives every committed view.
type Listener func(View)

// Option configures optional machine collaborators.
type Option func(*Machine)

func WithLogger(logg *logger.Logger) Option {
	return func(m *Machine) {
		if logg != nil {
			m.logg = logg
		}
	}
}

func WithMetrics(rec *metrics.StateMetrics) Option {
	return func(m *Machine) {
		m.metrics = rec
	}
}

// WithLimit sets the page size for the all-products query.
func WithLimit(limit int) Option {
	return func(m *Machine) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// Machine owns the displayed catalog. Every submission takes the next
// sequence number and only the response carrying the current number may
// commit; older responses are dropped whether they succeeded or failed.
type Machine struct {
	gateway catalog.Gateway
	logg    *logger.Logger
	metrics *metrics.StateMetrics
	limit   int

	mu                sync.Mutex
	query             Query
	selected          string
	searchText        string
	state             ResultState
	categories        []catalog.Category
	categoriesLoaded  bool
	categoriesPending bool
	activated         bool
	seq               uint64
	closed            bool

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMachine builds an idle machine showing all products.
func NewMachine(gateway catalog.Gateway, opts ...Option) (*Machine, error) {
	if gateway == nil {
		return nil, errors.New("catalog gateway required")
	}

	m := &Machine{
		gateway:   gateway,
		logg:      logger.Nop(),
		limit:     catalog.DefaultLimit,
		query:     AllProducts(),
		selected:  catalog.AllCategorySlug,
		state:     Idle{},
		listeners: map[uint64]Listener{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.ctx, m.cancel = context.WithCancel(m.logg.WithComponent(context.Background(), "browse"))
	return m, nil
}

// Activate loads the category list once and submits the all-products query
// on the first call. A failed category load is retried by the next call.
func (m *Machine) Activate(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	if !m.categoriesLoaded && !m.categoriesPending {
		m.categoriesPending = true
		m.wg.Add(1)
		go m.loadCategories()
	}

	if m.activated {
		m.mu.Unlock()
		return nil
	}
	m.activated = true
	m.logg.Info(m.logg.WithComponent(ctx, "browse"), "catalog activated")
	m.submitLocked(AllProducts())
	m.publishLocked()
	return nil
}

// SelectCategory switches to slug, clears the search text and resubmits.
func (m *Machine) SelectCategory(slug string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = catalog.AllCategorySlug
	}
	return m.dispatch(func() bool {
		m.selected = slug
		m.searchText = ""
		m.submitLocked(m.categoryQueryLocked())
		return true
	})
}

// SetSearchText records the search box contents. Clearing the text while a
// search is active falls back to the selected category.
func (m *Machine) SetSearchText(text string) error {
	return m.dispatch(func() bool {
		m.searchText = text
		if strings.TrimSpace(text) == "" && m.query.Kind == QuerySearch {
			m.submitLocked(m.categoryQueryLocked())
		}
		return true
	})
}

// SubmitSearch searches for the current text, or resubmits the selected
// category when the text is blank.
func (m *Machine) SubmitSearch() error {
	return m.dispatch(func() bool {
		m.submitLocked(m.activeQueryLocked())
		return true
	})
}

// SubmitSearchText sets the text and submits it as one step.
func (m *Machine) SubmitSearchText(text string) error {
	return m.dispatch(func() bool {
		m.searchText = text
		m.submitLocked(m.activeQueryLocked())
		return true
	})
}

// Refresh resubmits the active query. Items on screen stay visible while the
// request runs and after it fails.
func (m *Machine) Refresh() error {
	return m.dispatch(func() bool {
		m.submitLocked(m.activeQueryLocked())
		return true
	})
}

// View returns the current snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Product finds a product among the displayed items, then asks the gateway.
func (m *Machine) Product(ctx context.Context, id int64) (catalog.Product, error) {
	m.mu.Lock()
	for _, p := range Items(m.state) {
		if p.ID == id {
			m.mu.Unlock()
			return p, nil
		}
	}
	m.mu.Unlock()

	return m.gateway.FetchProduct(ctx, id)
}

// Subscribe registers fn for every committed view.
func (m *Machine) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	m.notifyMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.notifyMu.Lock()
			delete(m.listeners, id)
			m.notifyMu.Unlock()
		})
	}
}

// Close rejects further intents and cancels in-flight requests.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
}

// Wait blocks until every in-flight request has returned.
func (m *Machine) Wait() {
	m.wg.Wait()
}

func (m *Machine) dispatch(change func() bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !change() {
		m.mu.Unlock()
		return nil
	}
	m.publishLocked()
	return nil
}

// publishLocked releases m.mu and delivers the view to listeners. notifyMu is
// taken first so deliveries follow commit order.
func (m *Machine) publishLocked() {
	view := m.viewLocked()
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	for _, fn := range m.listeners {
		fn(view)
	}
}

func (m *Machine) categoryQueryLocked() Query {
	if m.selected == catalog.AllCategorySlug {
		return AllProducts()
	}
	return ByCategory(m.selected)
}

func (m *Machine) activeQueryLocked() Query {
	if term := strings.TrimSpace(m.searchText); term != "" {
		return BySearchTerm(term)
	}
	return m.categoryQueryLocked()
}

func (m *Machine) submitLocked(q Query) {
	m.seq++
	seq := m.seq
	m.query = q
	m.state = Loading{Previous: Items(m.state)}

	m.wg.Add(1)
	go m.run(seq, q)
}

func (m *Machine) run(seq uint64, q Query) {
	defer m.wg.Done()

	ctx := m.logg.WithFields(m.ctx, map[string]any{"query": q.String(), "sequence": seq})
	start := time.Now()
	items, err := m.execute(ctx, q)
	elapsed := time.Since(start)

	m.mu.Lock()
	if m.closed || seq != m.seq {
		m.mu.Unlock()
		m.metrics.ObserveCatalogRequest(q.Kind.String(), metrics.OutcomeSuperseded, elapsed)
		m.logg.Debug(ctx, "catalog response superseded")
		return
	}

	previous := Items(m.state)
	if err != nil {
		m.state = Failed{Previous: previous, Message: failureMessage(err)}
		m.metrics.ObserveCatalogRequest(q.Kind.String(), metrics.OutcomeFailure, elapsed)
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "catalog request failed")
	} else {
		m.state = Loaded{Items: items}
		m.metrics.ObserveCatalogRequest(q.Kind.String(), metrics.OutcomeSuccess, elapsed)
	}
	m.publishLocked()
}

func (m *Machine) execute(ctx context.Context, q Query) ([]catalog.Product, error) {
	switch q.Kind {
	case QueryCategory:
		return m.gateway.FetchByCategory(ctx, q.Value)
	case QuerySearch:
		return m.gateway.Search(ctx, q.Value)
	default:
		return m.gateway.FetchAll(ctx, m.limit)
	}
}

func (m *Machine) loadCategories() {
	defer m.wg.Done()

	start := time.Now()
	categories, err := m.gateway.FetchCategories(m.ctx)
	elapsed := time.Since(start)

	m.mu.Lock()
	m.categoriesPending = false
	if err != nil {
		m.mu.Unlock()
		m.metrics.ObserveCatalogRequest(categoriesKind, metrics.OutcomeFailure, elapsed)
		m.logg.Error(m.ctx, "failed to load categories", err)
		return
	}
	m.categories = categories
	m.categoriesLoaded = true
	m.metrics.ObserveCatalogRequest(categoriesKind, metrics.OutcomeSuccess, elapsed)
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.publishLocked()
}

func (m *Machine) viewLocked() View {
	return View{
		Query:            m.query,
		SelectedCategory: m.selected,
		SearchText:       m.searchText,
		State:            m.state,
		Categories:       catalog.WithAllCategory(m.categories),
		Sequence:         m.seq,
	}
}

func failureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Describe()
	}
	return err.Error()
}
