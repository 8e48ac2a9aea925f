// Command fdsn-waveforms downloads waveforms and StationXML around catalog
// events from FDSN data centers, in a window anchored on the origin time.
//
// Usage:
//
//	fdsn-waveforms -o archive catalog.xml
//	fdsn-waveforms -profile profile.yaml -providers IRIS,GFZ catalog.csv
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
	flags, err := app.ParseWaveformFlags("fdsn-waveforms", os.Args[1:], false, os.Stderr)
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

	summary, err := app.RunWaveforms(ctx, env, "fdsn_waveforms", config.OriginProfile(), flags)
	if err != nil {
		logger.Error("waveform download failed", "error", err, "summary", summary.String())
		stop()
		os.Exit(1)
	}
	logger.Info("shutdown complete", "summary", summary.String())
}
