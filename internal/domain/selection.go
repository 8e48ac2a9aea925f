package domain

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Restrictions mirror the selection rules of a mass download.
type Restrictions struct {
	RejectChannelsWithGaps      bool
	MinimumLength               float64 // fraction of the window that must be covered, 0..1
	MinimumInterstationDistance float64 // meters
	ChannelPriorities           []string
	LocationPriorities          []string
	Sanitize                    bool // drop waveforms of stations without StationXML
}

// NeedsAvailability reports whether channels must be checked against the
// availability service before download.
func (r Restrictions) NeedsAvailability() bool {
	return r.RejectChannelsWithGaps || r.MinimumLength > 0
}

// Check decides whether the available spans satisfy the restrictions for w.
// The returned reason is empty when the channel is accepted.
func (r Restrictions) Check(spans []TimeWindow, w TimeWindow) string {
	var covered []TimeWindow
	for _, s := range spans {
		if c, ok := s.Clamp(w); ok {
			covered = append(covered, c)
		}
	}
	if len(covered) == 0 {
		return "no data in window"
	}
	if r.RejectChannelsWithGaps && len(covered) > 1 {
		return "gaps"
	}
	if r.MinimumLength > 0 {
		var total float64
		for _, c := range covered {
			total += c.Duration().Seconds()
		}
		if total/w.Duration().Seconds() < r.MinimumLength {
			return "too short"
		}
	}
	return ""
}

// bracketRe matches a SEED character class such as [ZNE12].
var bracketRe = regexp.MustCompile(`\[[^\]]*\]`)

// QueryChannels converts channel priorities into a comma list the station
// service understands. Character classes become "?" and duplicates are dropped.
func QueryChannels(priorities []string) string {
	seen := make(map[string]bool, len(priorities))
	var out []string
	for _, p := range priorities {
		q := bracketRe.ReplaceAllString(strings.TrimSpace(p), "?")
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return strings.Join(out, ",")
}

// SelectByPriority keeps, per station, the channels matching the first
// channel priority that matches at all, then the first location priority
// that still has channels. Stations matching no priority are dropped.
func SelectByPriority(channels []Channel, channelPriorities, locationPriorities []string) []Channel {
	order, groups := GroupByStation(channels)
	var out []Channel
	for _, key := range order {
		kept := groups[key]
		if len(channelPriorities) > 0 {
			kept = firstMatch(kept, channelPriorities, func(ch Channel, p string) bool {
				ok, err := path.Match(p, ch.Channel)
				return err == nil && ok
			})
		}
		if len(locationPriorities) > 0 {
			kept = firstMatch(kept, locationPriorities, func(ch Channel, p string) bool {
				return ch.Location == strings.Trim(p, "-")
			})
		}
		out = append(out, kept...)
	}
	return out
}

func firstMatch(channels []Channel, priorities []string, match func(Channel, string) bool) []Channel {
	for _, p := range priorities {
		var hits []Channel
		for _, ch := range channels {
			if match(ch, p) {
				hits = append(hits, ch)
			}
		}
		if len(hits) > 0 {
			return hits
		}
	}
	return nil
}

// FilterInterstation keeps stations, in key order, that are at least
// minMeters from every station kept before them.
func FilterInterstation(channels []Channel, minMeters float64) []Channel {
	if minMeters <= 0 {
		return channels
	}
	order, groups := GroupByStation(channels)
	sort.Strings(order)

	var kept []Channel // one representative per kept station
	var out []Channel
	for _, key := range order {
		rep := groups[key][0]
		tooClose := false
		for _, k := range kept {
			if DistanceMeters(k.Latitude, k.Longitude, rep.Latitude, rep.Longitude) < minMeters {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		kept = append(kept, rep)
		out = append(out, groups[key]...)
	}
	return out
}
