package acquire

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originWindow() domain.TimeWindow {
	return domain.TimeWindow{Start: testOrigin, End: testOrigin.Add(1800 * time.Second)}
}

func countFiles(t *testing.T, h *harness, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, h.store.Walk(dir, func(string, int64) error {
		n++
		return nil
	}))
	return n
}

func TestDownloader_OriginWindow_ArchivesEveryChannel(t *testing.T) {
	h := newHarness(t)
	anmo := channel("IU", "ANMO", "00", "BHZ", 10, 10)
	cola := channel("IU", "COLA", "", "BHZ", 20, 20)
	finder := staticFinder(anmo, cola)

	s, err := h.downloader(finder, nil, originOptions()).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Events)
	assert.Equal(t, 2, s.Stations)
	assert.Equal(t, 2, s.Attempted)
	assert.Equal(t, 2, s.Archived)
	assert.Equal(t, 2, s.StationXML)

	for _, ch := range []domain.Channel{anmo, cola} {
		rel := domain.WaveformPath("20240101071009", ch.NSLC, originWindow())
		data, err := os.ReadFile(h.store.Path(rel))
		require.NoError(t, err)
		assert.Equal(t, payload(ch.NSLC), data)
	}
	ok, err := h.store.Exists("stations/20240101071009/IU.ANMO.xml")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, finder.queries, 1)
	q := finder.queries[0]
	assert.Equal(t, originWindow(), q.Window)
	require.NotNil(t, q.Region.Circle)
	assert.InDelta(t, 90, q.Region.Circle.MaxRadius, 1e-9)

	require.Len(t, h.notifier.files, 2)
	assert.Equal(t, "20240101071009", h.notifier.files[0].EventID)
	assert.Equal(t, "TEST", h.notifier.files[0].Provider)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.WaveformsArchived))
}

func TestDownloader_NoDataWritesNoFile(t *testing.T) {
	h := newHarness(t)
	empty := channel("IU", "EMPTY", "00", "BHZ", 5, 5)
	good := channel("IU", "GOOD", "00", "BHZ", 6, 6)
	h.source.waveformErrs[empty.Key()] = domain.ErrNoData

	s, err := h.downloader(staticFinder(empty, good), nil, originOptions()).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)

	assert.Equal(t, 1, s.NoData)
	assert.Equal(t, 1, s.Archived)
	assert.Zero(t, s.Failed)
	ok, err := h.store.Exists(domain.WaveformPath("20240101071009", empty.NSLC, originWindow()))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.store.Exists("stations/20240101071009/IU.EMPTY.xml")
	require.NoError(t, err)
	assert.False(t, ok, "stations without data get no StationXML")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.WaveformsSkipped.WithLabelValues("nodata")))
}

func TestDownloader_FailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	var channels []domain.Channel
	for i, sta := range []string{"STA1", "STA2", "STA3", "STA4", "STA5"} {
		channels = append(channels, channel("XX", sta, "", "BHZ", float64(i), float64(i)))
	}
	h.source.waveformErrs["XX.STA2..BHZ"] = errBoom
	h.source.waveformErrs["XX.STA4..BHZ"] = errBoom

	s, err := h.downloader(staticFinder(channels...), nil, originOptions()).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)

	assert.Len(t, h.source.waveformCalls, 5, "every station is attempted")
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 3, s.Archived)
	assert.LessOrEqual(t, countFiles(t, h, "mseed"), 5-2)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.ItemFailures.WithLabelValues(stageChannel)))
}

func TestDownloader_RerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	finder := staticFinder(channel("IU", "ANMO", "00", "BHZ", 1, 1), channel("IU", "ANMO", "00", "BHN", 1, 1))
	events := []domain.Event{testEvent()}

	first, err := h.downloader(finder, nil, originOptions()).Run(context.Background(), events)
	require.NoError(t, err)
	require.Equal(t, 2, first.Archived)

	rel := domain.WaveformPath("20240101071009", domain.NSLC{Network: "IU", Station: "ANMO", Location: "00", Channel: "BHZ"}, originWindow())
	before, err := os.ReadFile(h.store.Path(rel))
	require.NoError(t, err)

	calls := len(h.source.waveformCalls)
	second, err := h.downloader(finder, nil, originOptions()).Run(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 2, second.Existing)
	assert.Zero(t, second.Archived)
	assert.Zero(t, second.StationXML)
	assert.Len(t, h.source.waveformCalls, calls, "existing files are not fetched again")

	after, err := os.ReadFile(h.store.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, countFiles(t, h, "mseed"))
}

func TestDownloader_EventFailureDoesNotStopRun(t *testing.T) {
	h := newHarness(t)
	failing := testEvent()
	failing.OriginTime = testOrigin.Add(-24 * time.Hour)
	finder := &fakeFinder{find: func(q domain.ChannelQuery) ([]domain.Channel, error) {
		if q.Window.Start.Before(testOrigin) {
			return nil, errBoom
		}
		return []domain.Channel{channel("IU", "ANMO", "00", "BHZ", 1, 1)}, nil
	}}

	s, err := h.downloader(finder, nil, originOptions()).Run(context.Background(), []domain.Event{failing, testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Events)
	assert.Equal(t, 1, s.FailedEvents)
	assert.Equal(t, 1, s.Archived)
}

func TestDownloader_NoChannelsIsNotAFailure(t *testing.T) {
	h := newHarness(t)
	finder := &fakeFinder{find: func(domain.ChannelQuery) ([]domain.Channel, error) { return nil, domain.ErrNoData }}

	s, err := h.downloader(finder, nil, originOptions()).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	assert.Zero(t, s.FailedEvents)
	assert.Zero(t, s.Attempted)
}

func TestDownloader_PhaseBands(t *testing.T) {
	h := newHarness(t)
	near := channel("IU", "NEAR", "00", "BHZ", 0, 10)
	far := channel("IU", "FAR", "00", "BHZ", 0, 40)
	finder := &fakeFinder{find: func(q domain.ChannelQuery) ([]domain.Channel, error) {
		if q.Region.Circle.MinRadius == 0 {
			return []domain.Channel{near}, nil
		}
		// the outer band sees NEAR again; it must not be downloaded twice
		return []domain.Channel{near, far}, nil
	}}
	opts := Options{
		Window: domain.WindowSpec{
			StartPhases: []string{"ttp"}, EndPhases: []string{"ttp"},
			StartOffset: -120 * time.Second, EndOffset: 1800 * time.Second,
			RadiusStep: 30, Model: "iasp91",
		},
		Region:       circleRegion(0, 60),
		Restrictions: domain.Restrictions{ChannelPriorities: []string{"BH[ZNE]"}},
	}

	s, err := h.downloader(finder, linearTimer{}, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Archived)
	assert.Equal(t, 2, s.Stations)

	require.Len(t, finder.queries, 2)
	assert.Equal(t, "BH?", finder.queries[0].Channel)
	assert.InDelta(t, 30, finder.queries[1].Region.Circle.MinRadius, 1e-9)
	assert.InDelta(t, 60, finder.queries[1].Region.Circle.MaxRadius, 1e-9)

	nearWindow := h.source.windows[near.Key()]
	assert.Equal(t, testOrigin.Add(-120*time.Second), nearWindow.Start)
	assert.Equal(t, testOrigin.Add(300*time.Second+1800*time.Second), nearWindow.End)

	farWindow := h.source.windows[far.Key()]
	assert.Equal(t, testOrigin.Add(300*time.Second-120*time.Second), farWindow.Start)
	assert.Equal(t, testOrigin.Add(600*time.Second+1800*time.Second), farWindow.End)
	assert.True(t, farWindow.End.After(farWindow.Start))
}

func TestDownloader_PerStationWindows(t *testing.T) {
	h := newHarness(t)
	sta := channel("IU", "TEN", "00", "BHZ", 0, 10)
	opts := Options{
		Window: domain.WindowSpec{
			StartPhases: []string{"ttp"}, EndPhases: []string{"tts"},
			StartOffset: -120 * time.Second, EndOffset: 1800 * time.Second,
			Model: "iasp91", PerStation: true,
		},
		Region: circleRegion(0, 90),
	}

	s, err := h.downloader(staticFinder(sta), linearTimer{}, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	require.Equal(t, 1, s.Archived)

	w := h.source.windows[sta.Key()]
	assert.Equal(t, testOrigin.Add(100*time.Second-120*time.Second), w.Start)
	assert.Equal(t, testOrigin.Add(100*time.Second+1800*time.Second), w.End)
}

func TestDownloader_PhaseWindowErrorFailsEventOnly(t *testing.T) {
	h := newHarness(t)
	opts := Options{
		Window: domain.WindowSpec{
			StartPhases: []string{"PKIKP"}, EndPhases: []string{"PKIKP"},
			RadiusStep: 30, Model: "iasp91", EndOffset: time.Minute,
		},
		Region: circleRegion(0, 30),
	}

	d := h.downloader(staticFinder(), linearTimer{err: domain.ErrNoArrival}, opts)
	s, err := d.Run(context.Background(), []domain.Event{testEvent(), testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 2, s.FailedEvents)
}

func TestDownloader_PhaseWindowsNeedTravelTimes(t *testing.T) {
	h := newHarness(t)
	opts := Options{
		Window: domain.WindowSpec{StartPhases: []string{"P"}, EndPhases: []string{"S"}, RadiusStep: 30, Model: "iasp91"},
		Region: circleRegion(0, 30),
	}
	_, err := h.downloader(staticFinder(), nil, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.Error(t, err)
}

func TestDownloader_AvailabilityRestrictions(t *testing.T) {
	h := newHarness(t)
	w := originWindow()
	whole := channel("IU", "WHOLE", "00", "BHZ", 1, 1)
	gappy := channel("IU", "GAPPY", "00", "BHZ", 2, 2)
	short := channel("IU", "SHORT", "00", "BHZ", 3, 3)
	missing := channel("IU", "MISSING", "00", "BHZ", 4, 4)

	rec := func(ch domain.Channel, start, end time.Duration) domain.AvailabilityRecord {
		return domain.AvailabilityRecord{NSLC: ch.NSLC, Span: domain.TimeWindow{Start: w.Start.Add(start), End: w.Start.Add(end)}}
	}
	h.source.spans[whole.Key()] = []domain.AvailabilityRecord{rec(whole, -time.Hour, time.Hour)}
	h.source.spans[gappy.Key()] = []domain.AvailabilityRecord{rec(gappy, 0, 10*time.Minute), rec(gappy, 11*time.Minute, time.Hour)}
	h.source.spans[short.Key()] = []domain.AvailabilityRecord{rec(short, 0, 10*time.Minute)}

	opts := originOptions()
	opts.Restrictions = domain.Restrictions{RejectChannelsWithGaps: true, MinimumLength: 0.5}

	s, err := h.downloader(staticFinder(whole, gappy, short, missing), nil, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Archived)
	assert.Equal(t, 2, s.Rejected)
	assert.Equal(t, 1, s.NoData)
	assert.Equal(t, []string{"IU.WHOLE.00.BHZ"}, h.source.waveformCalls)
}

func TestDownloader_AvailabilityUnsupportedDownloadsUnchecked(t *testing.T) {
	h := newHarness(t)
	h.source.spanErr = domain.ErrUnsupported
	opts := originOptions()
	opts.Restrictions = domain.Restrictions{RejectChannelsWithGaps: true}

	s, err := h.downloader(staticFinder(channel("GE", "WLF", "", "BHZ", 1, 1)), nil, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Archived)
}

func TestDownloader_SanitizeSkipsStationsWithoutStationXML(t *testing.T) {
	h := newHarness(t)
	h.source.stationXMLErr["IU.BAD"] = errBoom
	opts := originOptions()
	opts.Restrictions = domain.Restrictions{Sanitize: true}

	bad := []domain.Channel{channel("IU", "BAD", "00", "BHZ", 1, 1), channel("IU", "BAD", "00", "BHN", 1, 1)}
	good := channel("IU", "GOOD", "00", "BHZ", 2, 2)

	s, err := h.downloader(staticFinder(append(bad, good)...), nil, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Archived)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.StationXML)
	assert.Equal(t, []string{"IU.GOOD.00.BHZ"}, h.source.waveformCalls)
}

func TestDownloader_InterstationDistance(t *testing.T) {
	h := newHarness(t)
	a := channel("IU", "AAA", "00", "BHZ", 10, 10)
	b := channel("IU", "BBB", "00", "BHZ", 10, 10.0001) // about 11 m east of AAA
	c := channel("IU", "CCC", "00", "BHZ", 20, 20)
	opts := originOptions()
	opts.Restrictions = domain.Restrictions{MinimumInterstationDistance: 1000}

	s, err := h.downloader(staticFinder(a, b, c), nil, opts).Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Archived)
	assert.ElementsMatch(t, []string{"IU.AAA.00.BHZ", "IU.CCC.00.BHZ"}, h.source.waveformCalls)
}

func TestDownloader_NotifyFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errBoom

	s, err := h.downloader(staticFinder(channel("IU", "ANMO", "00", "BHZ", 1, 1)), nil, originOptions()).
		Run(context.Background(), []domain.Event{testEvent()})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Archived)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ItemFailures.WithLabelValues(stageNotify)))
}

func TestDownloader_PacesRequests(t *testing.T) {
	h := newHarness(t)
	clock := clockwork.NewFakeClock()
	opts := originOptions()
	opts.RequestInterval = time.Second

	d := h.downloader(staticFinder(channel("IU", "ANMO", "00", "BHZ", 1, 1), channel("IU", "ANMO", "00", "BHN", 1, 1)), nil, opts)
	d.SetClock(clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan Summary, 1)
	go func() {
		s, err := d.Run(ctx, []domain.Event{testEvent()})
		assert.NoError(t, err)
		done <- s
	}()

	// Second waveform request, then the StationXML request, each wait one interval.
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case s := <-done:
		assert.Equal(t, 2, s.Archived)
		assert.Equal(t, 1, s.StationXML)
	case <-ctx.Done():
		t.Fatal("run did not finish")
	}
}

func TestDownloader_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := h.downloader(staticFinder(), nil, originOptions()).Run(ctx, []domain.Event{testEvent()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Events)
}

func TestDownloader_CheckReadiness(t *testing.T) {
	h := newHarness(t)
	d := h.downloader(staticFinder(), nil, originOptions())
	require.Error(t, d.CheckReadiness(context.Background()))

	_, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, d.CheckReadiness(context.Background()))
}

func TestDownloader_StatusFollowsRun(t *testing.T) {
	h := newHarness(t)
	second := testEvent()
	second.OriginTime = second.OriginTime.Add(time.Hour)

	var d *Downloader
	var during []Summary
	finder := &fakeFinder{find: func(domain.ChannelQuery) ([]domain.Channel, error) {
		during = append(during, d.Status())
		return []domain.Channel{channel("IU", "ANMO", "00", "BHZ", 1, 1)}, nil
	}}
	d = h.downloader(finder, nil, originOptions())
	assert.Zero(t, d.Status())

	s, err := d.Run(context.Background(), []domain.Event{testEvent(), second})
	require.NoError(t, err)

	require.Len(t, during, 2)
	assert.Zero(t, during[0])
	assert.Equal(t, Summary{Events: 1, Stations: 1, Attempted: 1, Archived: 1, StationXML: 1}, during[1])
	assert.Equal(t, s, d.Status())
	assert.Equal(t, 2, s.Archived)
}
