package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Options describes one waveform download run.
type Options struct {
	Window       domain.WindowSpec
	Region       func(domain.Event) domain.Region
	Restrictions domain.Restrictions
	// Select narrows the station query; Region and Window are ignored.
	Select domain.ChannelQuery
	// RequestInterval is the minimum spacing between waveform requests.
	RequestInterval time.Duration
}

// Summary counts the outcome of a waveform download run.
type Summary struct {
	Events       int `json:"events"`
	FailedEvents int `json:"failed_events"`
	Stations     int `json:"stations"`
	Attempted    int `json:"attempted"` // channels considered
	Archived     int `json:"archived"`
	Existing     int `json:"existing"`
	NoData       int `json:"no_data"`
	Rejected     int `json:"rejected"`
	Failed       int `json:"failed"`
	StationXML   int `json:"stationxml"`
}

func (s Summary) String() string {
	return fmt.Sprintf("events=%d (failed %d) stations=%d channels=%d archived=%d existing=%d nodata=%d rejected=%d failed=%d stationxml=%d",
		s.Events, s.FailedEvents, s.Stations, s.Attempted, s.Archived, s.Existing, s.NoData, s.Rejected, s.Failed, s.StationXML)
}

// Downloader fetches waveforms around catalog events into the archive.
type Downloader struct {
	finder   domain.ChannelFinder
	source   WaveformSource
	tt       domain.TravelTimer // required for phase-relative windows
	archive  Archive
	notifier Notifier // optional
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	started     atomic.Bool
	lastRequest time.Time

	mu     sync.Mutex
	status Summary
}

// NewDownloader wires a downloader. tt may be nil for origin-relative
// windows and notifier may be nil to disable notifications.
func NewDownloader(finder domain.ChannelFinder, source WaveformSource, tt domain.TravelTimer, archive Archive, notifier Notifier, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	return &Downloader{
		finder:   finder,
		source:   source,
		tt:       tt,
		archive:  archive,
		notifier: notifier,
		opts:     opts,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetClock replaces the clock used for request pacing.
func (d *Downloader) SetClock(c clockwork.Clock) {
	d.clock = c
}

// CheckReadiness returns nil once a run has started.
func (d *Downloader) CheckReadiness(_ context.Context) error {
	if !d.started.Load() {
		return errors.New("acquisition run has not started")
	}
	return nil
}

// Status returns the counts of the current or last run, updated after
// every station.
func (d *Downloader) Status() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Downloader) publish(s Summary) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// Run processes every event in order. Failures are confined to their
// event, station, or channel; only cancellation stops the run early.
func (d *Downloader) Run(ctx context.Context, events []domain.Event) (Summary, error) {
	if err := d.opts.Window.Validate(); err != nil {
		return Summary{}, err
	}
	if d.opts.Window.PhaseRelative() && d.tt == nil {
		return Summary{}, errors.New("phase-relative windows need a travel time source")
	}

	d.started.Store(true)
	d.metrics.RunActive.Set(1)
	defer d.metrics.RunActive.Set(0)

	var s Summary
	d.publish(s)
	defer func() { d.publish(s) }()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Events++
		d.metrics.EventsProcessed.Inc()
		logger := d.logger.With("event_id", ev.ID())

		if err := d.processEvent(ctx, ev, &s, logger); err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			s.FailedEvents++
			d.metrics.ItemFailures.WithLabelValues(stageEvent).Inc()
			logger.Warn("event failed, skipping", "error", err)
		}
		d.publish(s)
	}
	d.logger.Info("download run complete", "summary", s.String())
	return s, nil
}

// job is one station query and the window shared by its stations.
type job struct {
	region domain.Region
	window domain.TimeWindow
}

func (d *Downloader) processEvent(ctx context.Context, ev domain.Event, s *Summary, logger *slog.Logger) error {
	jobs, err := d.plan(ctx, ev)
	if err != nil {
		return err
	}

	var (
		archived []domain.ArchivedFile
		failed   int
		lastErr  error
	)
	seen := make(map[string]bool)
	for _, j := range jobs {
		files, err := d.processJob(ctx, ev, j, seen, s, logger)
		archived = append(archived, files...)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			lastErr = err
			logger.Warn("station query failed", "window_start", j.window.Start, "window_end", j.window.End, "error", err)
		}
	}
	d.notify(ctx, archived, logger)
	if failed > 0 && failed == len(jobs) {
		return lastErr
	}
	return nil
}

// plan turns the window spec into station queries for one event.
func (d *Downloader) plan(ctx context.Context, ev domain.Event) ([]job, error) {
	region := d.opts.Region(ev)
	spec := d.opts.Window

	if !spec.PhaseRelative() || spec.PerStation {
		// Per-station windows are computed later; the origin window bounds the query.
		w, err := domain.OriginWindow(ev, spec.StartOffset, spec.EndOffset)
		if err != nil {
			return nil, err
		}
		return []job{{region: region, window: w}}, nil
	}

	minR, maxR := 0.0, 180.0
	if region.Circle != nil {
		minR, maxR = region.Circle.MinRadius, region.Circle.MaxRadius
	}
	bands, err := domain.PlanBands(ctx, ev, spec, minR, maxR, d.tt)
	if err != nil {
		return nil, err
	}
	jobs := make([]job, 0, len(bands))
	for _, b := range bands {
		jobs = append(jobs, job{region: region.WithRing(b.MinRadius, b.MaxRadius), window: b.Window})
	}
	return jobs, nil
}

func (d *Downloader) processJob(ctx context.Context, ev domain.Event, j job, seen map[string]bool, s *Summary, logger *slog.Logger) ([]domain.ArchivedFile, error) {
	q := d.opts.Select
	q.Region = j.region
	q.Window = j.window
	if q.Channel == "" {
		q.Channel = domain.QueryChannels(d.opts.Restrictions.ChannelPriorities)
	}

	channels, err := d.finder.FindChannels(ctx, q)
	if errors.Is(err, domain.ErrNoData) {
		logger.Info("no channels in query window")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := d.opts.Restrictions
	selected := domain.SelectByPriority(channels, r.ChannelPriorities, r.LocationPriorities)
	selected = domain.FilterInterstation(selected, r.MinimumInterstationDistance)
	order, groups := domain.GroupByStation(selected)

	var archived []domain.ArchivedFile
	for _, key := range order {
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		s.Stations++
		files, err := d.processStation(ctx, ev, j.window, groups[key], s, logger.With("station", key))
		d.publish(*s)
		archived = append(archived, files...)
		if err != nil {
			if ctx.Err() != nil {
				return archived, ctx.Err()
			}
			d.metrics.ItemFailures.WithLabelValues(stageStation).Inc()
			logger.Warn("station failed, skipping", "station", key, "error", err)
		}
	}
	return archived, nil
}

func (d *Downloader) processStation(ctx context.Context, ev domain.Event, w domain.TimeWindow, channels []domain.Channel, s *Summary, logger *slog.Logger) ([]domain.ArchivedFile, error) {
	first := channels[0]
	if d.opts.Window.PhaseRelative() && d.opts.Window.PerStation {
		sw, err := domain.StationWindow(ctx, ev, first, d.opts.Window, d.tt)
		if err != nil {
			s.Failed += len(channels)
			s.Attempted += len(channels)
			return nil, fmt.Errorf("station window: %w", err)
		}
		w = sw
	}

	if d.opts.Restrictions.Sanitize {
		if err := d.ensureStationXML(ctx, ev, first, w, s); err != nil {
			s.Attempted += len(channels)
			s.Failed += len(channels)
			return nil, fmt.Errorf("stationxml required: %w", err)
		}
	}

	var (
		archived []domain.ArchivedFile
		haveData bool
	)
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		s.Attempted++
		out, file, err := d.processChannel(ctx, ev, ch, w)
		if err != nil {
			if ctx.Err() != nil {
				return archived, ctx.Err()
			}
			s.Failed++
			d.metrics.ItemFailures.WithLabelValues(stageChannel).Inc()
			logger.Warn("channel failed, skipping", "nslc", ch.Key(), "error", err)
			continue
		}
		switch out {
		case outcomeArchived:
			s.Archived++
			archived = append(archived, file)
			haveData = true
		case outcomeExisting:
			s.Existing++
			haveData = true
		case outcomeNoData:
			s.NoData++
		case outcomeRejected:
			s.Rejected++
		}
	}

	if haveData && !d.opts.Restrictions.Sanitize {
		if err := d.ensureStationXML(ctx, ev, first, w, s); err != nil {
			if ctx.Err() != nil {
				return archived, ctx.Err()
			}
			d.metrics.ItemFailures.WithLabelValues(stageStationXML).Inc()
			logger.Warn("stationxml download failed", "error", err)
		}
	}
	return archived, nil
}

type outcome int

const (
	outcomeArchived outcome = iota
	outcomeExisting
	outcomeNoData
	outcomeRejected
)

func (d *Downloader) processChannel(ctx context.Context, ev domain.Event, ch domain.Channel, w domain.TimeWindow) (outcome, domain.ArchivedFile, error) {
	rel := domain.WaveformPath(ev.ID(), ch.NSLC, w)
	exists, err := d.archive.Exists(rel)
	if err != nil {
		return 0, domain.ArchivedFile{}, err
	}
	if exists {
		d.metrics.WaveformsSkipped.WithLabelValues("existing").Inc()
		return outcomeExisting, domain.ArchivedFile{}, nil
	}

	if d.opts.Restrictions.NeedsAvailability() {
		out, err := d.checkAvailability(ctx, ch, w)
		if err != nil {
			return 0, domain.ArchivedFile{}, err
		}
		if out != outcomeArchived {
			return out, domain.ArchivedFile{}, nil
		}
	}

	if err := d.pace(ctx); err != nil {
		return 0, domain.ArchivedFile{}, err
	}
	data, err := d.source.Waveforms(ctx, ch.Provider, ch.NSLC, w)
	if errors.Is(err, domain.ErrNoData) {
		d.metrics.WaveformsSkipped.WithLabelValues("nodata").Inc()
		return outcomeNoData, domain.ArchivedFile{}, nil
	}
	if err != nil {
		return 0, domain.ArchivedFile{}, err
	}

	if err := d.archive.Write(rel, data); err != nil {
		return 0, domain.ArchivedFile{}, err
	}
	d.metrics.WaveformsArchived.Inc()
	d.metrics.BytesWritten.Add(float64(len(data)))
	return outcomeArchived, domain.NewArchivedFile(ev.ID(), ch, w, rel, len(data)), nil
}

// checkAvailability applies the gap and minimum length restrictions.
// outcomeArchived means the channel may be downloaded.
func (d *Downloader) checkAvailability(ctx context.Context, ch domain.Channel, w domain.TimeWindow) (outcome, error) {
	records, err := d.source.Spans(ctx, ch.Provider, ch.NSLC, w)
	switch {
	case errors.Is(err, domain.ErrUnsupported):
		d.logger.Debug("availability unsupported, downloading unchecked", "provider", ch.Provider.Name, "nslc", ch.Key())
		return outcomeArchived, nil
	case errors.Is(err, domain.ErrNoData):
		d.metrics.WaveformsSkipped.WithLabelValues("nodata").Inc()
		return outcomeNoData, nil
	case err != nil:
		return 0, err
	}

	if reason := d.opts.Restrictions.Check(domain.Spans(records), w); reason != "" {
		d.logger.Debug("channel rejected", "nslc", ch.Key(), "reason", reason)
		d.metrics.WaveformsSkipped.WithLabelValues("rejected").Inc()
		return outcomeRejected, nil
	}
	return outcomeArchived, nil
}

func (d *Downloader) ensureStationXML(ctx context.Context, ev domain.Event, ch domain.Channel, w domain.TimeWindow, s *Summary) error {
	rel := domain.StationXMLPath(ev.ID(), ch.Network, ch.Station)
	exists, err := d.archive.Exists(rel)
	if err != nil || exists {
		return err
	}
	if err := d.pace(ctx); err != nil {
		return err
	}
	data, err := d.source.StationXML(ctx, ch.Provider, ch.Network, ch.Station, w)
	if err != nil {
		return err
	}
	if err := d.archive.Write(rel, data); err != nil {
		return err
	}
	s.StationXML++
	d.metrics.StationXMLWritten.Inc()
	d.metrics.BytesWritten.Add(float64(len(data)))
	return nil
}

// pace waits until RequestInterval has passed since the previous request.
func (d *Downloader) pace(ctx context.Context) error {
	interval := d.opts.RequestInterval
	if interval <= 0 {
		return nil
	}
	if !d.lastRequest.IsZero() {
		if wait := interval - d.clock.Since(d.lastRequest); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(wait):
			}
		}
	}
	d.lastRequest = d.clock.Now()
	return nil
}

func (d *Downloader) notify(ctx context.Context, files []domain.ArchivedFile, logger *slog.Logger) {
	if d.notifier == nil || len(files) == 0 {
		return
	}
	if err := d.notifier.Notify(ctx, files); err != nil {
		d.metrics.ItemFailures.WithLabelValues(stageNotify).Inc()
		logger.Warn("archive notification failed", "files", len(files), "error", err)
	}
}
