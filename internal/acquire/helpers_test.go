package acquire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/adapter/filestore"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

// --- fakes ---

type fakeFinder struct {
	queries []domain.ChannelQuery
	find    func(q domain.ChannelQuery) ([]domain.Channel, error)
}

func (f *fakeFinder) FindChannels(_ context.Context, q domain.ChannelQuery) ([]domain.Channel, error) {
	f.queries = append(f.queries, q)
	return f.find(q)
}

func staticFinder(channels ...domain.Channel) *fakeFinder {
	return &fakeFinder{find: func(domain.ChannelQuery) ([]domain.Channel, error) { return channels, nil }}
}

type fakeSource struct {
	mu            sync.Mutex
	waveformErrs  map[string]error // by NSLC key
	spans         map[string][]domain.AvailabilityRecord
	spanErr       error
	stationXMLErr map[string]error // by NET.STA
	waveformCalls []string
	windows       map[string]domain.TimeWindow
	xmlCalls      int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		waveformErrs:  map[string]error{},
		spans:         map[string][]domain.AvailabilityRecord{},
		stationXMLErr: map[string]error{},
		windows:       map[string]domain.TimeWindow{},
	}
}

func payload(id domain.NSLC) []byte {
	return []byte("miniseed:" + id.Key())
}

func (f *fakeSource) Waveforms(_ context.Context, _ domain.Provider, id domain.NSLC, w domain.TimeWindow) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waveformCalls = append(f.waveformCalls, id.Key())
	f.windows[id.Key()] = w
	if err := f.waveformErrs[id.Key()]; err != nil {
		return nil, err
	}
	return payload(id), nil
}

func (f *fakeSource) StationXML(_ context.Context, _ domain.Provider, network, station string, _ domain.TimeWindow) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.xmlCalls++
	if err := f.stationXMLErr[network+"."+station]; err != nil {
		return nil, err
	}
	return []byte("<FDSNStationXML/>"), nil
}

func (f *fakeSource) Spans(_ context.Context, _ domain.Provider, id domain.NSLC, _ domain.TimeWindow) ([]domain.AvailabilityRecord, error) {
	if f.spanErr != nil {
		return nil, f.spanErr
	}
	recs, ok := f.spans[id.Key()]
	if !ok {
		return nil, domain.ErrNoData
	}
	return recs, nil
}

type fakeNotifier struct {
	files []domain.ArchivedFile
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, files []domain.ArchivedFile) error {
	n.files = append(n.files, files...)
	return n.err
}

// linearTimer answers 10 seconds per degree.
type linearTimer struct {
	err error
}

func (l linearTimer) TravelTimes(_ context.Context, q domain.TravelTimeQuery) ([]float64, error) {
	if l.err != nil {
		return nil, l.err
	}
	return []float64{q.Distance * 10}, nil
}

// --- fixtures ---

var testOrigin = time.Date(2024, 1, 1, 7, 10, 9, 0, time.UTC)

var testProvider = domain.Provider{Name: "TEST"}

func testEvent() domain.Event {
	return domain.Event{OriginTime: testOrigin, Latitude: 0, Longitude: 0, Depth: 10, Magnitude: 7.5}
}

func channel(net, sta, loc, cha string, lat, lon float64) domain.Channel {
	return domain.Channel{
		NSLC:      domain.NSLC{Network: net, Station: sta, Location: loc, Channel: cha},
		Latitude:  lat,
		Longitude: lon,
		Provider:  testProvider,
	}
}

func circleRegion(minR, maxR float64) func(domain.Event) domain.Region {
	return func(ev domain.Event) domain.Region {
		return domain.Region{Circle: &domain.Circle{
			Latitude: ev.Latitude, Longitude: ev.Longitude, MinRadius: minR, MaxRadius: maxR,
		}}
	}
}

func originOptions() Options {
	return Options{
		Window: domain.WindowSpec{StartOffset: 0, EndOffset: 1800 * time.Second},
		Region: circleRegion(0, 90),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	store    *filestore.Store
	source   *fakeSource
	notifier *fakeNotifier
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		store:    filestore.New(t.TempDir()),
		source:   newFakeSource(),
		notifier: &fakeNotifier{},
		metrics:  observability.NewMetricsForTesting(),
	}
}

func (h *harness) downloader(finder domain.ChannelFinder, tt domain.TravelTimer, opts Options) *Downloader {
	return NewDownloader(finder, h.source, tt, h.store, h.notifier, opts, discardLogger(), h.metrics)
}

var errBoom = errors.New("boom")
