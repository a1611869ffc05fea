package browse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/shopfront/internal/catalog"
	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
	"github.com/angelmondragon/shopfront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type reply struct {
	products   []catalog.Product
	categories []catalog.Category
	product    catalog.Product
	err        error
}

type call struct {
	kind  string
	value string
	reply chan reply
}

func (c *call) respond(r reply) {
	c.reply <- r
}

// fakeGateway parks every request until the test answers it.
type fakeGateway struct {
	mu    sync.Mutex
	calls []*call
}

var _ catalog.Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) park(ctx context.Context, kind, value string) reply {
	c := &call{kind: kind, value: value, reply: make(chan reply, 1)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	select {
	case r := <-c.reply:
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

func (f *fakeGateway) FetchAll(ctx context.Context, _ int) ([]catalog.Product, error) {
	r := f.park(ctx, "all", "")
	return r.products, r.err
}

func (f *fakeGateway) FetchByCategory(ctx context.Context, slug string) ([]catalog.Product, error) {
	r := f.park(ctx, "category", slug)
	return r.products, r.err
}

func (f *fakeGateway) Search(ctx context.Context, term string) ([]catalog.Product, error) {
	r := f.park(ctx, "search", term)
	return r.products, r.err
}

func (f *fakeGateway) FetchCategories(ctx context.Context) ([]catalog.Category, error) {
	r := f.park(ctx, "categories", "")
	return r.categories, r.err
}

func (f *fakeGateway) FetchProduct(ctx context.Context, id int64) (catalog.Product, error) {
	r := f.park(ctx, "product", "")
	return r.product, r.err
}

func (f *fakeGateway) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

// await returns the n-th (1-based) call of the given kind once it arrives.
func (f *fakeGateway) await(t *testing.T, kind string, n int) *call {
	t.Helper()
	var found *call
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		seen := 0
		for _, c := range f.calls {
			if c.kind == kind {
				seen++
				if seen == n {
					found = c
					return true
				}
			}
		}
		return false
	}, time.Second, time.Millisecond, "waiting for %s call #%d", kind, n)
	return found
}

func products(ids ...int64) []catalog.Product {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Product{ID: id, Title: "p", Price: decimal.NewFromInt(id), Images: []string{"i"}})
	}
	return out
}

func ids(items []catalog.Product) []int64 {
	out := make([]int64, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}

func newMachine(t *testing.T, opts ...Option) (*Machine, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	m, err := NewMachine(gw, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Close()
		m.Wait()
	})
	return m, gw
}

// activate runs Activate and answers the category and first product requests.
func activate(t *testing.T, m *Machine, gw *fakeGateway, items []catalog.Product) {
	t.Helper()
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{categories: []catalog.Category{{Slug: "shoes", Name: "Shoes"}}})
	gw.await(t, "all", 1).respond(reply{products: items})
	m.Wait()
	require.IsType(t, Loaded{}, m.View().State)
}

func TestNewMachineRequiresGateway(t *testing.T) {
	_, err := NewMachine(nil)
	require.Error(t, err)
}

func TestInitialView(t *testing.T) {
	m, _ := newMachine(t)

	view := m.View()
	assert.Equal(t, AllProducts(), view.Query)
	assert.Equal(t, catalog.AllCategorySlug, view.SelectedCategory)
	assert.Equal(t, Idle{}, view.State)
	assert.Equal(t, []catalog.Category{{Slug: "all", Name: "All"}}, view.Categories)
	assert.Zero(t, view.Sequence)
}

func TestActivateLoadsOnce(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1, 2))

	view := m.View()
	assert.Equal(t, []int64{1, 2}, ids(Items(view.State)))
	assert.Equal(t, []catalog.Category{{Slug: "all", Name: "All"}, {Slug: "shoes", Name: "Shoes"}}, view.Categories)

	require.NoError(t, m.Activate(context.Background()))
	m.Wait()
	assert.Equal(t, 1, gw.count("all"))
	assert.Equal(t, 1, gw.count("categories"))
}

func TestSubmitEntersLoadingWithPreviousItems(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1, 2))

	require.NoError(t, m.SelectCategory("shoes"))

	view := m.View()
	assert.Equal(t, ByCategory("shoes"), view.Query)
	loading, ok := view.State.(Loading)
	require.True(t, ok, "expected Loading, got %T", view.State)
	assert.Equal(t, []int64{1, 2}, ids(loading.Previous))

	gw.await(t, "category", 1).respond(reply{products: products(9)})
	m.Wait()
	assert.Equal(t, Loaded{Items: products(9)}, m.View().State)
}

func TestStaleResponseArrivingLateIsDiscarded(t *testing.T) {
	m, gw := newMachine(t)
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{})
	first := gw.await(t, "all", 1)

	require.NoError(t, m.SelectCategory("shoes"))
	second := gw.await(t, "category", 1)
	require.Equal(t, "shoes", second.value)

	second.respond(reply{products: products(20, 21)})
	require.Eventually(t, func() bool {
		_, ok := m.View().State.(Loaded)
		return ok
	}, time.Second, time.Millisecond)

	first.respond(reply{products: products(1, 2, 3)})
	m.Wait()

	view := m.View()
	assert.Equal(t, uint64(2), view.Sequence)
	assert.Equal(t, []int64{20, 21}, ids(Items(view.State)))
}

func TestStaleResponseArrivingEarlyIsDiscarded(t *testing.T) {
	m, gw := newMachine(t)
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{})
	first := gw.await(t, "all", 1)
	require.NoError(t, m.SelectCategory("shoes"))
	second := gw.await(t, "category", 1)

	first.respond(reply{products: products(1)})
	assert.IsType(t, Loading{}, m.View().State)

	second.respond(reply{products: products(5)})
	m.Wait()
	assert.Equal(t, []int64{5}, ids(Items(m.View().State)))
}

func TestSearchThenCategorySwitchShowsCategory(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))

	require.NoError(t, m.SubmitSearchText("phone"))
	search := gw.await(t, "search", 1)
	require.Equal(t, "phone", search.value)

	require.NoError(t, m.SelectCategory("electronics"))
	electronics := gw.await(t, "category", 1)

	electronics.respond(reply{products: products(30, 31)})
	search.respond(reply{products: products(40)})
	m.Wait()

	view := m.View()
	assert.Equal(t, ByCategory("electronics"), view.Query)
	assert.Empty(t, view.SearchText)
	assert.Equal(t, []int64{30, 31}, ids(Items(view.State)))
}

func TestStaleFailureIsDiscarded(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))

	require.NoError(t, m.Refresh())
	stale := gw.await(t, "all", 2)
	require.NoError(t, m.SelectCategory("shoes"))
	gw.await(t, "category", 1).respond(reply{products: products(7)})
	stale.respond(reply{err: errors.New("timeout")})
	m.Wait()

	assert.Equal(t, Loaded{Items: products(7)}, m.View().State)
}

func TestFailureKeepsPreviousItemsAndMessage(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1, 2))

	require.NoError(t, m.Refresh())
	gw.await(t, "all", 2).respond(reply{err: pkgerrors.Wrap(pkgerrors.CodeNetwork, errors.New("connection reset"), "fetch products")})
	m.Wait()

	failed, ok := m.View().State.(Failed)
	require.True(t, ok, "expected Failed, got %T", m.View().State)
	assert.Equal(t, "fetch products: connection reset", failed.Message)
	assert.Equal(t, []int64{1, 2}, ids(failed.Previous))
}

func TestFailureFromEmptyHasNoItems(t *testing.T) {
	m, gw := newMachine(t)
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{})
	gw.await(t, "all", 1).respond(reply{err: errors.New("offline")})
	m.Wait()

	assert.Equal(t, Failed{Message: "offline"}, m.View().State)
}

func TestClearingSearchTextResubmitsCategory(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))
	require.NoError(t, m.SelectCategory("shoes"))
	gw.await(t, "category", 1).respond(reply{products: products(2)})
	require.NoError(t, m.SubmitSearchText("boot"))
	gw.await(t, "search", 1).respond(reply{products: products(3)})
	m.Wait()

	require.NoError(t, m.SetSearchText(""))
	gw.await(t, "category", 2).respond(reply{products: products(2)})
	m.Wait()

	view := m.View()
	assert.Equal(t, ByCategory("shoes"), view.Query)
	assert.Equal(t, []int64{2}, ids(Items(view.State)))
}

func TestSetSearchTextOutsideSearchModeDoesNotSubmit(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))

	require.NoError(t, m.SetSearchText("sne"))
	require.NoError(t, m.SetSearchText(""))
	m.Wait()

	view := m.View()
	assert.Equal(t, uint64(1), view.Sequence)
	assert.Equal(t, AllProducts(), view.Query)
}

func TestBlankSubmitFallsBackToCategory(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))

	require.NoError(t, m.SetSearchText("   "))
	require.NoError(t, m.SubmitSearch())
	gw.await(t, "all", 2).respond(reply{products: products(4)})
	m.Wait()

	assert.Equal(t, AllProducts(), m.View().Query)
	assert.Zero(t, gw.count("search"))
}

func TestRefreshUsesSearchTextWhenPresent(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1))

	require.NoError(t, m.SetSearchText("lamp"))
	require.NoError(t, m.Refresh())
	call := gw.await(t, "search", 1)
	assert.Equal(t, "lamp", call.value)
	call.respond(reply{products: products(8)})
	m.Wait()

	assert.Equal(t, BySearchTerm("lamp"), m.View().Query)
}

func TestCategoryLoadFailureIsRetriedOnActivate(t *testing.T) {
	m, gw := newMachine(t)
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{err: errors.New("boom")})
	gw.await(t, "all", 1).respond(reply{products: products(1)})
	m.Wait()
	assert.Len(t, m.View().Categories, 1)

	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 2).respond(reply{categories: []catalog.Category{{Slug: "tops", Name: "Tops"}}})
	m.Wait()

	assert.Len(t, m.View().Categories, 2)
	assert.Equal(t, 1, gw.count("all"))
}

func TestProductPrefersDisplayedItems(t *testing.T) {
	m, gw := newMachine(t)
	activate(t, m, gw, products(1, 2))

	p, err := m.Product(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Zero(t, gw.count("product"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := m.Product(context.Background(), 77)
		assert.NoError(t, err)
		assert.Equal(t, int64(77), got.ID)
	}()
	gw.await(t, "product", 1).respond(reply{product: catalog.Product{ID: 77}})
	<-done
	assert.Equal(t, uint64(1), m.View().Sequence)
}

func TestSubscribersSeeCommitsInOrder(t *testing.T) {
	m, gw := newMachine(t)
	var (
		mu       sync.Mutex
		statuses []string
	)
	unsubscribe := m.Subscribe(func(v View) {
		mu.Lock()
		statuses = append(statuses, v.State.Status())
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "all", 1).respond(reply{products: products(1)})
	require.Eventually(t, func() bool {
		_, ok := m.View().State.(Loaded)
		return ok
	}, time.Second, time.Millisecond)
	gw.await(t, "categories", 1).respond(reply{})
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"loading", "loaded", "loaded"}, statuses)
}

func TestCloseCancelsInFlightAndRejectsIntents(t *testing.T) {
	gw := &fakeGateway{}
	m, err := NewMachine(gw)
	require.NoError(t, err)
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "all", 1)

	m.Close()
	m.Wait()

	assert.ErrorIs(t, m.SelectCategory("shoes"), ErrClosed)
	assert.ErrorIs(t, m.Refresh(), ErrClosed)
	assert.ErrorIs(t, m.Activate(context.Background()), ErrClosed)
	assert.IsType(t, Loading{}, m.View().State)
}

func TestSupersededResponsesAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, gw := newMachine(t, WithMetrics(metrics.NewStateMetrics(reg)))
	require.NoError(t, m.Activate(context.Background()))
	gw.await(t, "categories", 1).respond(reply{})
	first := gw.await(t, "all", 1)
	require.NoError(t, m.SelectCategory("shoes"))
	gw.await(t, "category", 1).respond(reply{products: products(1)})
	first.respond(reply{products: products(2)})
	m.Wait()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var superseded float64
	for _, mf := range mfs {
		if mf.GetName() != "catalog_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["kind"] == "all" && labels["outcome"] == metrics.OutcomeSuperseded {
				superseded = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), superseded)
}
