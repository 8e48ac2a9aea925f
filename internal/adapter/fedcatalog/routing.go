package fedcatalog

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/adapter/fdsn"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// Route is one datacenter section of a fedcatalog response.
type Route struct {
	Datacenter    string
	URL           string
	StationURL    string
	DataselectURL string
	Lines         []string
}

// Provider converts the route into the service endpoints of its datacenter.
func (r Route) Provider() domain.Provider {
	return domain.Provider{
		Name:          r.Datacenter,
		StationURL:    withSlash(r.StationURL),
		DataselectURL: withSlash(r.DataselectURL),
	}
}

// ParseRoutes splits a format=request fedcatalog response into datacenter sections.
// Sections without request lines are dropped.
func ParseRoutes(data []byte) ([]Route, error) {
	var (
		routes []Route
		cur    *Route
	)
	flush := func() {
		if cur != nil && len(cur.Lines) > 0 {
			routes = append(routes, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			flush()
		case strings.HasPrefix(text, "#"):
		case strings.Contains(text, "="):
			key, value, _ := strings.Cut(text, "=")
			if key == "DATACENTER" {
				flush()
				name, site, _ := strings.Cut(value, ",")
				cur = &Route{Datacenter: name, URL: site}
				continue
			}
			if cur == nil {
				return nil, fmt.Errorf("line %d: %s outside a datacenter section", line, key)
			}
			switch key {
			case "STATIONSERVICE":
				cur.StationURL = value
			case "DATASELECTSERVICE":
				cur.DataselectURL = value
			}
		default:
			if cur == nil {
				return nil, fmt.Errorf("line %d: request line outside a datacenter section", line)
			}
			if n := len(strings.Fields(text)); n != 6 {
				return nil, fmt.Errorf("line %d: expected 6 fields, got %d", line, n)
			}
			cur.Lines = append(cur.Lines, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan routing response: %w", err)
	}
	flush()
	return routes, nil
}

// FilterRoutes keeps routes matching an include entry (when any are given) and
// drops routes matching an exclude entry. Entries are datacenter names, known
// provider short names, or URLs.
func FilterRoutes(routes []Route, include, exclude []string) []Route {
	var out []Route
	for _, r := range routes {
		if len(include) > 0 && !matchesAny(r, include) {
			continue
		}
		if matchesAny(r, exclude) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesAny(r Route, entries []string) bool {
	for _, e := range entries {
		if matches(r, e) {
			return true
		}
	}
	return false
}

func matches(r Route, entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.EqualFold(r.Datacenter, entry) {
		return true
	}
	if base, ok := fdsn.BaseURL(entry); ok {
		entry = base
	}
	want := host(entry)
	if want == "" {
		return false
	}
	for _, u := range []string{r.URL, r.StationURL, r.DataselectURL} {
		if strings.EqualFold(host(u), want) {
			return true
		}
	}
	return false
}

func host(s string) string {
	if !strings.Contains(s, "://") {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return u.Host
}

func withSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
