// Package app wires configuration, adapters, and acquisition loops into the
// command-line tools.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/adapter/httpadapter"
	"github.com/couchcryptid/seisdb-acquire/internal/config"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

// Env carries the process-wide dependencies every tool needs.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewEnv loads the configuration and builds the logger and the metrics
// registered with the default registry.
func NewEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &Env{
		Config:  cfg,
		Logger:  observability.NewLogger(cfg),
		Metrics: observability.NewMetrics(),
	}, nil
}

// startServer serves health, run status, and metrics while a run is in
// progress when METRICS_ADDR is set. The returned func shuts the server down.
func (e *Env) startServer(run httpadapter.Run) func() {
	if e.Config.MetricsAddr == "" {
		return func() {}
	}
	srv := httpadapter.NewServer(e.Config.MetricsAddr, run, e.Logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Error("http server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.Config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			e.Logger.Error("http server shutdown error", "error", err)
		}
	}
}

// push sends the run's metrics to the Pushgateway when PUSHGATEWAY_URL is set.
func (e *Env) push(job string) {
	if e.Config.PushgatewayURL == "" {
		return
	}
	start := time.Now()
	if err := observability.Push(e.Config.PushgatewayURL, job); err != nil {
		e.Logger.Warn("metrics push failed", "url", e.Config.PushgatewayURL, "error", err)
		return
	}
	e.Logger.Debug("metrics pushed", "job", job, "duration", time.Since(start))
}
