package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfront/pkg/logger"
)

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type catalogWorker interface {
	Close()
	Wait()
}

type cartWriter interface {
	Run(ctx context.Context) error
	Flush(ctx context.Context) error
	Detach()
}

type eventPublisher interface {
	Stop()
}

// background owns the goroutines that must be drained before exit.
type background struct {
	machine    catalogWorker
	adapter    cartWriter
	publisher  eventPublisher
	stopWriter context.CancelFunc
	writerDone chan struct{}
}

// startBackground launches the cart snapshot writer.
func startBackground(machine catalogWorker, adapter cartWriter, publisher eventPublisher) *background {
	writerCtx, stopWriter := context.WithCancel(context.Background())
	bg := &background{
		machine:    machine,
		adapter:    adapter,
		publisher:  publisher,
		stopWriter: stopWriter,
		writerDone: make(chan struct{}),
	}
	go func() {
		defer close(bg.writerDone)
		_ = adapter.Run(writerCtx)
	}()
	return bg
}

// stop waits for in-flight catalog requests, writes the last cart snapshot
// and stops the writer.
func (b *background) stop(ctx context.Context) error {
	b.machine.Close()
	b.machine.Wait()
	err := b.adapter.Flush(ctx)
	b.adapter.Detach()
	b.stopWriter()
	<-b.writerDone
	if b.publisher != nil {
		b.publisher.Stop()
	}
	return err
}

// serve runs srv until ctx is done or the listener fails. Either way the
// server and background work go through the same shutdown.
func serve(ctx context.Context, logg *logger.Logger, srv httpServer, timeout time.Duration, bg *background) error {
	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting storefront server")
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "storefront server stopped unexpectedly", err)
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	runErr = multierr.Append(runErr, srv.Shutdown(shutdownCtx))
	runErr = multierr.Append(runErr, bg.stop(shutdownCtx))

	logg.Info(ctx, "storefront stopped")
	return runErr
}
