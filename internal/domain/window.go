package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// TimeWindow is a closed-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Validate returns ErrInvalidWindow unless End is strictly after Start.
func (w TimeWindow) Validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow,
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Clamp returns the overlap of w and bounds, and false when they do not overlap.
func (w TimeWindow) Clamp(bounds TimeWindow) (TimeWindow, bool) {
	out := w
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out, out.End.After(out.Start)
}

// TravelTimeQuery asks for the arrival times of phases at an epicentral distance.
type TravelTimeQuery struct {
	Model    string
	Depth    float64 // source depth, km
	Distance float64 // degrees
	Phases   []string
}

// TravelTimer computes phase travel times in seconds after the origin.
type TravelTimer interface {
	TravelTimes(ctx context.Context, q TravelTimeQuery) ([]float64, error)
}

// WindowSpec describes how the waveform window is derived from an event.
// With no phases the window is anchored on the origin time.
type WindowSpec struct {
	StartPhases []string
	EndPhases   []string
	StartOffset time.Duration
	EndOffset   time.Duration
	RadiusStep  float64 // degrees, band mode only
	Model       string
	PerStation  bool
}

// PhaseRelative reports whether the window is anchored on phase arrivals.
func (s WindowSpec) PhaseRelative() bool {
	return len(s.StartPhases) > 0 || len(s.EndPhases) > 0
}

// Validate checks that the phase lists are given together and the band step is usable.
func (s WindowSpec) Validate() error {
	if (len(s.StartPhases) == 0) != (len(s.EndPhases) == 0) {
		return errors.New("start and end reference phases must be either both or neither set")
	}
	if s.PhaseRelative() && !s.PerStation && s.RadiusStep <= 0 {
		return errors.New("radius step must be positive")
	}
	if s.PhaseRelative() && s.Model == "" {
		return errors.New("velocity model is required for phase-relative windows")
	}
	return nil
}

// OriginWindow anchors a window on the event origin time.
func OriginWindow(ev Event, startOffset, endOffset time.Duration) (TimeWindow, error) {
	w := TimeWindow{
		Start: ev.OriginTime.Add(startOffset),
		End:   ev.OriginTime.Add(endOffset),
	}
	return w, w.Validate()
}

// Band is one epicentral distance band with its window.
type Band struct {
	MinRadius float64
	MaxRadius float64
	Window    TimeWindow
}

// Bands splits [minRadius, maxRadius] into bands on a grid of step degrees
// starting at 0. Zero-width bands are dropped unless the whole range is one point.
func Bands(minRadius, maxRadius, step float64) [][2]float64 {
	if step <= 0 {
		return nil
	}
	var out [][2]float64
	for i := 0; float64(i)*step <= 180; i++ {
		r, next := float64(i)*step, float64(i+1)*step
		if next < minRadius || r > maxRadius {
			continue
		}
		lo := math.Max(r, minRadius)
		hi := math.Min(next, maxRadius)
		if lo >= hi && minRadius != maxRadius {
			continue
		}
		out = append(out, [2]float64{lo, hi})
	}
	return out
}

// PlanBands computes phase-relative windows for each distance band. The band
// starts at the first start-phase arrival at its inner radius and ends at the
// last end-phase arrival at its outer radius.
func PlanBands(ctx context.Context, ev Event, spec WindowSpec, minRadius, maxRadius float64, tt TravelTimer) ([]Band, error) {
	var bands []Band
	for _, b := range Bands(minRadius, maxRadius, spec.RadiusStep) {
		w, err := phaseWindow(ctx, ev, spec, b[0], b[1], tt)
		if err != nil {
			return nil, fmt.Errorf("band %g-%g deg: %w", b[0], b[1], err)
		}
		bands = append(bands, Band{MinRadius: b[0], MaxRadius: b[1], Window: w})
	}
	return bands, nil
}

// StationWindow computes the phase-relative window at the channel's own
// epicentral distance, rounded to 0.01 degree.
func StationWindow(ctx context.Context, ev Event, ch Channel, spec WindowSpec, tt TravelTimer) (TimeWindow, error) {
	dist := math.Round(Distance(ev.Latitude, ev.Longitude, ch.Latitude, ch.Longitude)*100) / 100
	return phaseWindow(ctx, ev, spec, dist, dist, tt)
}

func phaseWindow(ctx context.Context, ev Event, spec WindowSpec, startDist, endDist float64, tt TravelTimer) (TimeWindow, error) {
	startTimes, err := tt.TravelTimes(ctx, TravelTimeQuery{
		Model: spec.Model, Depth: ev.Depth, Distance: startDist, Phases: spec.StartPhases,
	})
	if err != nil {
		return TimeWindow{}, fmt.Errorf("start phases: %w", err)
	}
	endTimes, err := tt.TravelTimes(ctx, TravelTimeQuery{
		Model: spec.Model, Depth: ev.Depth, Distance: endDist, Phases: spec.EndPhases,
	})
	if err != nil {
		return TimeWindow{}, fmt.Errorf("end phases: %w", err)
	}
	if len(startTimes) == 0 || len(endTimes) == 0 {
		return TimeWindow{}, ErrNoArrival
	}

	w := TimeWindow{
		Start: ev.OriginTime.Add(Seconds(minOf(startTimes))).Add(spec.StartOffset),
		End:   ev.OriginTime.Add(Seconds(maxOf(endTimes))).Add(spec.EndOffset),
	}
	return w, w.Validate()
}

// Seconds converts fractional seconds to a Duration rounded to the microsecond.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}
