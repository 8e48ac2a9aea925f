package domain

import "time"

// eventIDLayout formats origin times into event IDs and archive directory names.
const eventIDLayout = "20060102150405"

// Event is an earthquake origin read from a catalog.
type Event struct {
	OriginTime time.Time `json:"time"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Depth      float64   `json:"depth"` // km
	Magnitude  float64   `json:"magnitude"`
}

// ID returns the event identifier derived from the origin time.
func (e Event) ID() string {
	return e.OriginTime.UTC().Format(eventIDLayout)
}
