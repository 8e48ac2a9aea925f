// Command fdsn-waveforms-phase downloads waveforms and StationXML around
// catalog events in windows anchored on seismic phase arrivals.
//
// Usage:
//
//	fdsn-waveforms-phase -o archive catalog.xml
//	fdsn-waveforms-phase -per-station -channel 'BH?' catalog.csv
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/seisdb-acquire/internal/app"
	"github.com/couchcryptid/seisdb-acquire/internal/config"
)

func main() {
	flags, err := app.ParseWaveformFlags("fdsn-waveforms-phase", os.Args[1:], true, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		os.Exit(1)
	}

	env, err := app.NewEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := env.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := app.RunWaveforms(ctx, env, "fdsn_waveforms_phase", config.PhaseProfile(), flags)
	if err != nil {
		logger.Error("waveform download failed", "error", err, "summary", summary.String())
		stop()
		os.Exit(1)
	}
	logger.Info("shutdown complete", "summary", summary.String())
}
