// Package acquire runs the availability and waveform acquisition loops.
//
// Every unit of work (availability target, event, station, channel) is
// isolated: its failure is logged, counted, and the loop moves on.
package acquire

import (
	"context"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// ExtentSource queries the availability extent of a network/station target.
type ExtentSource interface {
	Extent(ctx context.Context, availabilityURL string, t domain.StationTarget) ([]domain.AvailabilityRecord, []byte, error)
}

// WaveformSource fetches waveform payloads and station metadata from a provider.
type WaveformSource interface {
	Waveforms(ctx context.Context, p domain.Provider, id domain.NSLC, w domain.TimeWindow) ([]byte, error)
	StationXML(ctx context.Context, p domain.Provider, network, station string, w domain.TimeWindow) ([]byte, error)
	Spans(ctx context.Context, p domain.Provider, id domain.NSLC, w domain.TimeWindow) ([]domain.AvailabilityRecord, error)
}

// Archive stores files under slash-separated relative paths.
type Archive interface {
	Exists(rel string) (bool, error)
	Write(rel string, data []byte) error
}

// Notifier announces waveforms written to the archive.
type Notifier interface {
	Notify(ctx context.Context, files []domain.ArchivedFile) error
}

// Failure stages used in the item_failures_total metric.
const (
	stageTarget     = "target"
	stageEvent      = "event"
	stageStation    = "station"
	stageChannel    = "channel"
	stageStationXML = "stationxml"
	stageNotify     = "notify"
)
