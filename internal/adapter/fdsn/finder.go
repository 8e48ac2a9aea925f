package fdsn

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// Finder implements domain.ChannelFinder over an ordered list of providers.
// A station served by an earlier provider is not taken from later ones.
type Finder struct {
	client    *Client
	providers []domain.Provider
	logger    *slog.Logger
}

// NewFinder creates a channel finder querying providers in order.
func NewFinder(client *Client, providers []domain.Provider, logger *slog.Logger) *Finder {
	return &Finder{client: client, providers: providers, logger: logger}
}

// FindChannels queries every provider and merges the channels. A provider that
// fails is logged and skipped; the error is returned only when all of them fail.
func (f *Finder) FindChannels(ctx context.Context, q domain.ChannelQuery) ([]domain.Channel, error) {
	var (
		out     []domain.Channel
		claimed = make(map[string]string)
		failed  int
		lastErr error
	)
	for _, p := range f.providers {
		channels, err := f.client.Stations(ctx, p, q)
		if errors.Is(err, domain.ErrNoData) {
			f.logger.Debug("provider has no matching channels", "provider", p.Name)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("channel discovery failed", "provider", p.Name, "error", err)
			failed++
			lastErr = err
			continue
		}

		added := 0
		for _, ch := range channels {
			key := ch.StationKey()
			if owner, ok := claimed[key]; ok && owner != p.Name {
				continue
			}
			if !q.Region.Contains(ch.Latitude, ch.Longitude) {
				continue
			}
			claimed[key] = p.Name
			out = append(out, ch)
			added++
		}
		f.logger.Info("channels discovered", "provider", p.Name, "channels", added)
	}
	if failed > 0 && failed == len(f.providers) {
		return nil, lastErr
	}
	return out, nil
}
