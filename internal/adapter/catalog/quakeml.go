package catalog

import (
	"encoding/xml"
	"fmt"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// QuakeML elements are matched by local name so both the BED 1.2 and
// 2.0 namespaces decode.
type quakeML struct {
	XMLName xml.Name   `xml:"quakeml"`
	Events  []qmlEvent `xml:"eventParameters>event"`
}

type qmlEvent struct {
	PublicID             string         `xml:"publicID,attr"`
	PreferredOriginID    string         `xml:"preferredOriginID"`
	PreferredMagnitudeID string         `xml:"preferredMagnitudeID"`
	Origins              []qmlOrigin    `xml:"origin"`
	Magnitudes           []qmlMagnitude `xml:"magnitude"`
}

type qmlOrigin struct {
	PublicID  string      `xml:"publicID,attr"`
	Time      qmlQuantity `xml:"time"`
	Latitude  qmlQuantity `xml:"latitude"`
	Longitude qmlQuantity `xml:"longitude"`
	Depth     qmlQuantity `xml:"depth"`
}

type qmlMagnitude struct {
	PublicID string      `xml:"publicID,attr"`
	Mag      qmlQuantity `xml:"mag"`
}

type qmlQuantity struct {
	Value string `xml:"value"`
}

// ParseQuakeML extracts the preferred origin and magnitude of every event,
// falling back to the first of each. Depth is converted from meters to km.
func ParseQuakeML(data []byte) ([]domain.Event, error) {
	var doc quakeML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode quakeml: %w", err)
	}

	events := make([]domain.Event, 0, len(doc.Events))
	for i, e := range doc.Events {
		ev, err := e.toDomain()
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i+1, e.PublicID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e qmlEvent) toDomain() (domain.Event, error) {
	origin, ok := e.origin()
	if !ok {
		return domain.Event{}, fmt.Errorf("no origin")
	}

	t, err := domain.ParseTime(origin.Time.Value)
	if err != nil {
		return domain.Event{}, fmt.Errorf("origin time: %w", err)
	}
	ev := domain.Event{OriginTime: t}

	fields := []struct {
		name     string
		value    string
		dst      *float64
		optional bool
	}{
		{"latitude", origin.Latitude.Value, &ev.Latitude, false},
		{"longitude", origin.Longitude.Value, &ev.Longitude, false},
		{"depth", origin.Depth.Value, &ev.Depth, true},
	}
	for _, f := range fields {
		if f.value == "" && f.optional {
			continue
		}
		if *f.dst, err = parseFloat(f.value); err != nil {
			return domain.Event{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	ev.Depth /= 1000

	if mag, ok := e.magnitude(); ok && mag.Mag.Value != "" {
		if ev.Magnitude, err = parseFloat(mag.Mag.Value); err != nil {
			return domain.Event{}, fmt.Errorf("magnitude: %w", err)
		}
	}
	return ev, nil
}

func (e qmlEvent) origin() (qmlOrigin, bool) {
	for _, o := range e.Origins {
		if e.PreferredOriginID != "" && o.PublicID == e.PreferredOriginID {
			return o, true
		}
	}
	if len(e.Origins) == 0 {
		return qmlOrigin{}, false
	}
	return e.Origins[0], true
}

func (e qmlEvent) magnitude() (qmlMagnitude, bool) {
	for _, m := range e.Magnitudes {
		if e.PreferredMagnitudeID != "" && m.PublicID == e.PreferredMagnitudeID {
			return m, true
		}
	}
	if len(e.Magnitudes) == 0 {
		return qmlMagnitude{}, false
	}
	return e.Magnitudes[0], true
}
