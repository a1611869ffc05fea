package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfront/api/controllers"
	"github.com/angelmondragon/shopfront/api/routes"
	"github.com/angelmondragon/shopfront/internal/browse"
	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/angelmondragon/shopfront/internal/checkout"
	"github.com/angelmondragon/shopfront/internal/persistence"
	"github.com/angelmondragon/shopfront/pkg/config"
	"github.com/angelmondragon/shopfront/pkg/db"
	"github.com/angelmondragon/shopfront/pkg/logger"
	"github.com/angelmondragon/shopfront/pkg/metrics"
	"github.com/angelmondragon/shopfront/pkg/migrate"
	"github.com/angelmondragon/shopfront/pkg/pubsub"
	"github.com/angelmondragon/shopfront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "storefront stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stateMetrics := metrics.NewStateMetrics(reg)

	snapshots, storagePinger, storageCloser, err := newSnapshotStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	if storageCloser != nil {
		closers = append(closers, storageCloser)
	}
	ready := map[string]controllers.Pinger{}
	if storagePinger != nil {
		ready["storage"] = storagePinger
	}

	gateway, err := catalog.NewClient(
		cfg.Catalog.BaseURL,
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithDefaultLimit(cfg.Catalog.DefaultLimit),
	)
	if err != nil {
		return err
	}

	machine, err := browse.NewMachine(gateway,
		browse.WithLogger(logg),
		browse.WithMetrics(stateMetrics),
		browse.WithLimit(cfg.Catalog.DefaultLimit),
	)
	if err != nil {
		return err
	}

	store := cart.NewStore(logg)
	adapter, err := persistence.NewAdapter(snapshots,
		persistence.WithKey(cfg.Storage.CartKey),
		persistence.WithLogger(logg),
		persistence.WithMetrics(stateMetrics),
		persistence.WithProducts(gateway),
	)
	if err != nil {
		return err
	}

	checkoutOpts := []checkout.Option{checkout.WithLogger(logg)}
	var publisher *pubsub.EventPublisher
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "pubsub unavailable, order events disabled", err)
		} else {
			closers = append(closers, psClient)
			ready["pubsub"] = psClient
			publisher = psClient.OrdersPublisher()
			if publisher != nil {
				checkoutOpts = append(checkoutOpts, checkout.WithPublisher(publisher))
			}
		}
	}

	checkoutSvc, err := checkout.NewService(store, checkoutOpts...)
	if err != nil {
		return err
	}

	if err := adapter.Attach(ctx, store); err != nil {
		return err
	}
	bg := startBackground(machine, adapter, publisher)

	if err := machine.Activate(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		return multierr.Append(err, bg.stop(stopCtx))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"storage_backend": cfg.Storage.Backend,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Catalog:  machine,
			Cart:     store,
			Checkout: checkoutSvc,
			Ready:    ready,
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return serve(serverCtx, logg, server, cfg.App.ShutdownTimeout, bg)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newSnapshotStore builds the configured cart snapshot backend.
func newSnapshotStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (persistence.SnapshotStore, controllers.Pinger, io.Closer, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		logg.Warn(ctx, "using in-memory cart storage; the cart will not survive restarts")
		return persistence.NewMemoryStore(), nil, nil, nil

	case config.StorageBackendSQL:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			_ = dbClient.Close()
			return nil, nil, nil, err
		}
		store, err := persistence.NewSQLStore(dbClient.DB())
		if err != nil {
			_ = dbClient.Close()
			return nil, nil, nil, err
		}
		return store, dbClient, closerFunc(dbClient.Close), nil

	default:
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := persistence.NewRedisStore(redisClient)
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, nil, err
		}
		return store, redisClient, redisClient, nil
	}
}
