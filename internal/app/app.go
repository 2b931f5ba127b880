// Package app wires configuration, logging, metrics, tracing, storage and the
// HTTP server into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"bestcity-api/internal/config"
	"bestcity-api/internal/logging"
	"bestcity-api/internal/metrics"
	web "bestcity-api/internal/server"
	"bestcity-api/internal/store"
	"bestcity-api/internal/tracing"
	"bestcity-api/internal/worker"

	"go.uber.org/zap"
)

type App struct {
	cfg     config.Config
	logger  *logging.Logger
	store   store.Store
	hybrid  *store.HybridStore
	server  *web.Server

	shutdownTracing tracing.ShutdownFunc
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
		Level:       cfg.Log.Level,
		Production:  cfg.App.Production(),
		Dir:         cfg.Log.Dir,
		DisableFile: cfg.Log.DisableFile,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
}

// New assembles the server. A missing or unreachable MongoDB is not an error:
// the API starts degraded and every note call fails with a 500.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	m := metrics.New(logger.Logger)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}

	st, hybrid, err := OpenStore(ctx, cfg, m, logger.Logger, true)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	st = store.Instrument(st, m)

	srv := web.NewServer(st, logger, m, web.Options{
		Environment:  cfg.App.Env,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})

	return &App{
		cfg:             cfg,
		logger:          logger,
		store:           st,
		hybrid:          hybrid,
		server:          srv,
		shutdownTracing: shutdownTracing,
	}, nil
}

// OpenStore opens the configured backend. For the hybrid backend it also
// returns the concrete store so callers can run value-log GC; withBodies=false
// opens it in Redis-only mode, leaving the Badger directory to the server.
func OpenStore(ctx context.Context, cfg config.Config, status store.StatusRecorder, logger *zap.Logger, withBodies bool) (store.Store, *store.HybridStore, error) {
	switch cfg.Store.Backend {
	case config.BackendHybrid:
		path := cfg.Hybrid.BadgerPath
		if !withBodies {
			path = ""
		}
		h, err := store.NewHybridStore(cfg.Hybrid.RedisAddr, path)
		if err != nil {
			status.SetDBConnected(false)
			return nil, nil, fmt.Errorf("failed to init store: %w", err)
		}
		status.SetDBConnected(true)
		logger.Info("Hybrid store ready",
			zap.String("redis", cfg.Hybrid.RedisAddr),
			zap.String("badger", path),
		)
		return h, h, nil
	default:
		return store.Connect(ctx, cfg.Mongo, status, logger), nil, nil
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down
// gracefully. A listener failure or a panic while serving is logged to the
// rejections or exceptions sink and returned, after the listener is closed.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.hybrid != nil {
		w := worker.NewWorker(a.hybrid, a.cfg.Hybrid.GCInterval, a.logger.Named("worker"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Exception(rec, debug.Stack())
				errCh <- fmt.Errorf("panic while serving: %v", rec)
			}
		}()
		if err := a.server.Start(a.cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Rejection(err)
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case runErr = <-errCh:
	}
	stop()

	err := a.shutdown(&wg)
	if runErr != nil {
		return runErr
	}
	if err == nil {
		a.logger.Info("Goodbye!")
	}
	return err
}

func (a *App) shutdown(wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	wg.Wait()
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	return errors.Join(errs...)
}
