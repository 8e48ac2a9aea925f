package domain

import (
	"context"
	"time"
)

// ChannelQuery selects channels from station services.
type ChannelQuery struct {
	Region   Region
	Window   TimeWindow
	Network  string
	Station  string
	Location string
	Channel  string
}

// ChannelFinder discovers channels, tagged with the provider serving them.
type ChannelFinder interface {
	FindChannels(ctx context.Context, q ChannelQuery) ([]Channel, error)
}

// ArchivedFile records a waveform written to the archive.
type ArchivedFile struct {
	EventID    string    `json:"event_id"`
	NSLC       NSLC      `json:"nslc"`
	Start      time.Time `json:"starttime"`
	End        time.Time `json:"endtime"`
	Provider   string    `json:"provider"`
	Path       string    `json:"path"`
	Size       int       `json:"size"`
	ArchivedAt time.Time `json:"archived_at"`
}

// NewArchivedFile stamps a written waveform with the current time.
func NewArchivedFile(eventID string, ch Channel, w TimeWindow, p string, size int) ArchivedFile {
	return ArchivedFile{
		EventID:    eventID,
		NSLC:       ch.NSLC,
		Start:      w.Start,
		End:        w.End,
		Provider:   ch.Provider.Name,
		Path:       p,
		Size:       size,
		ArchivedAt: Now(),
	}
}
