// Package daemon runs the leasedesk HTTP API with its background workers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/api"
	"github.com/tOgg1/leasedesk/internal/app"
	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/events"
)

// Options override configuration for a single daemon instance.
type Options struct {
	// ListenAddr overrides api.listen_addr when set.
	ListenAddr string

	// DisableRetention skips the event pruner even when configured.
	DisableRetention bool
}

// Daemon is the long-running leasedesk server.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger
	opts   Options
	app    *app.App
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New opens the database and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Daemon, error) {
	if cfg.API.JWTSecret == "" {
		return nil, fmt.Errorf("api.jwt_secret is required (set %s)", config.EnvVar("api.jwt_secret"))
	}
	issuer, err := auth.NewIssuer(cfg.API.JWTSecret, cfg.API.TokenTTL)
	if err != nil {
		return nil, err
	}

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Publisher.Subscribe("audit-log", events.Filter{}, events.LogHandler(logger))

	handler := api.NewServer(a.Store, a.Engine, a.Signers, issuer).Handler()
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		opts:   opts,
		app:    a,
		server: &http.Server{
			Handler:           handler,
			ReadTimeout:       cfg.API.ReadTimeout,
			ReadHeaderTimeout: cfg.API.ReadTimeout,
		},
		ready: make(chan struct{}),
	}, nil
}

// App returns the wired services.
func (d *Daemon) App() *app.App {
	return d.app
}

func (d *Daemon) bindAddr() string {
	if d.opts.ListenAddr != "" {
		return d.opts.ListenAddr
	}
	return d.cfg.API.ListenAddr
}

// Addr returns the bound address once the daemon is listening.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Ready is closed once the listener is bound.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.bindAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.bindAddr(), err)
	}
	d.mu.Lock()
	d.listener = listener
	d.mu.Unlock()
	close(d.ready)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopWorkers()
		wg.Wait()
	}()

	if d.cfg.EventRetention.Enabled && !d.opts.DisableRetention {
		pruner := &eventPruner{
			events:    d.app.Store.Events,
			logger:    d.logger.With().Str("worker", "event-retention").Logger(),
			maxAge:    d.cfg.EventRetention.MaxAge,
			interval:  d.cfg.EventRetention.CleanupInterval,
			batchSize: d.cfg.EventRetention.BatchSize,
			now:       time.Now,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			pruner.run(workerCtx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.Serve(listener)
	}()
	d.logger.Info().Str("addr", listener.Addr().String()).Msg("leasedeskd listening")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.API.ShutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases the database.
func (d *Daemon) Close() error {
	return d.app.Close()
}
