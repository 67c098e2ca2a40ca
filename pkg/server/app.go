package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ForexDash/internal/usecase"
	"ForexDash/pkg/config"
	xhttp "ForexDash/pkg/http"
	applogger "ForexDash/pkg/logger"
)

// Closer is an infrastructure client released after every component has stopped.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	windows    *usecase.WindowService
	collector  *usecase.RevealCollector
	httpServer *xhttp.Server
	closers    []Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	windows *usecase.WindowService,
	collector *usecase.RevealCollector,
	httpServer *xhttp.Server,
	closers ...Closer,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		windows:    windows,
		collector:  collector,
		httpServer: httpServer,
		closers:    closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs every component until ctx is done or one of them fails,
// then releases infrastructure clients.
func (a *App) RunContext(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.windows.Start(gctx) })
	if a.collector != nil {
		g.Go(func() error { return a.collector.Start(gctx) })
	}
	if a.httpServer != nil {
		g.Go(func() error { return a.httpServer.Run(gctx) })
	}
	a.logger.Info("app started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("upstream", a.cfg.Upstream.BaseURL),
		applogger.String("mode", a.cfg.Upstream.Mode))

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("app stopped with error", applogger.Error(err))
	} else {
		err = nil
		a.logger.Info("shutdown signal received")
	}
	a.shutdown()
	return err
}

// shutdown flushes the error-log collector, then releases clients in reverse order of acquisition.
func (a *App) shutdown() {
	a.logger.RemoveCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", applogger.String("component", c.Name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}
