package domain

import (
	"fmt"
	"strings"
	"time"
)

// NSLC is a SEED channel identifier: network, station, location, channel.
type NSLC struct {
	Network  string `json:"network"`
	Station  string `json:"station"`
	Location string `json:"location"`
	Channel  string `json:"channel"`
}

// Key returns the dotted NET.STA.LOC.CHA form.
func (n NSLC) Key() string {
	return fmt.Sprintf("%s.%s.%s.%s", n.Network, n.Station, n.Location, n.Channel)
}

// StationKey returns NET.STA.
func (n NSLC) StationKey() string {
	return n.Network + "." + n.Station
}

// QueryLocation returns the location code as FDSN services expect it,
// with the empty code spelled "--".
func (n NSLC) QueryLocation() string {
	return QueryLocation(n.Location)
}

// QueryLocation maps an empty location code to "--".
func QueryLocation(loc string) string {
	if strings.TrimSpace(loc) == "" {
		return "--"
	}
	return loc
}

// Provider is an FDSN data center and its service endpoints.
type Provider struct {
	Name            string
	StationURL      string // .../fdsnws/station/1/
	DataselectURL   string // .../fdsnws/dataselect/1/
	AvailabilityURL string // optional, .../fdsnws/availability/1/
}

// Channel is a channel epoch as reported by a station service.
type Channel struct {
	NSLC
	Latitude   float64
	Longitude  float64
	Elevation  float64
	Depth      float64
	SampleRate float64
	StartTime  time.Time
	EndTime    time.Time // zero for open epochs
	Provider   Provider
}

// StationTarget is a network/station selection, possibly with wildcards or comma lists.
type StationTarget struct {
	Network string
	Station string
}

func (t StationTarget) String() string {
	return t.Network + "." + t.Station
}

// GroupByStation groups channels by NET.STA preserving first-seen order.
func GroupByStation(channels []Channel) ([]string, map[string][]Channel) {
	var order []string
	groups := make(map[string][]Channel)
	for _, ch := range channels {
		key := ch.StationKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ch)
	}
	return order, groups
}
