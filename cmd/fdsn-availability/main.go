// Command fdsn-availability prints the data availability extent of seismic
// stations from the FDSN availability service.
//
// Usage:
//
//	fdsn-availability IM 'TX*'
//	fdsn-availability -o responses -list stations.txt
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
)

func main() {
	flags, err := app.ParseAvailabilityFlags("fdsn-availability", os.Args[1:], os.Stderr)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := app.RunAvailability(ctx, env, "fdsn_availability", flags, os.Stdout)
	stop()
	os.Exit(code)
}
