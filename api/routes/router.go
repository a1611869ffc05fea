package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopfront/api/controllers"
	"github.com/angelmondragon/shopfront/api/middleware"
	"github.com/angelmondragon/shopfront/pkg/config"
	"github.com/angelmondragon/shopfront/pkg/logger"
)

// Deps groups the collaborators served by the router.
type Deps struct {
	Catalog  controllers.CatalogMachine
	Cart     controllers.CartStore
	Checkout controllers.OrderPlacer
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", controllers.CatalogView(deps.Catalog))
			r.Get("/categories", controllers.CatalogCategories(deps.Catalog))
			r.Post("/category", controllers.CatalogSelectCategory(deps.Catalog, logg))
			r.Put("/search", controllers.CatalogSetSearchText(deps.Catalog, logg))
			r.Post("/search", controllers.CatalogSubmitSearch(deps.Catalog, logg))
			r.Post("/refresh", controllers.CatalogRefresh(deps.Catalog, logg))
		})

		r.Get("/products/{id}", controllers.ProductDetail(deps.Catalog, deps.Cart, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart))
			r.Delete("/", controllers.CartClear(deps.Cart))
			r.Post("/lines", controllers.CartAddLine(deps.Cart, deps.Catalog, logg))
			r.Put("/lines/{productId}", controllers.CartSetQuantity(deps.Cart, logg))
			r.Delete("/lines/{productId}", controllers.CartRemoveLine(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.CheckoutPlaceOrder(deps.Checkout, logg))
	})

	return r
}
