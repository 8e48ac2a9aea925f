package fdsn

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

const (
	stationPath    = "/fdsnws/station/1/"
	dataselectPath = "/fdsnws/dataselect/1/"
)

// Base URLs of the FDSN data centers known by short name.
var knownProviders = map[string]string{
	"IRIS":       "http://service.iris.edu",
	"GFZ":        "http://geofon.gfz-potsdam.de",
	"ORFEUS":     "http://www.orfeus-eu.org",
	"ETH":        "http://eida.ethz.ch",
	"INGV":       "http://webservices.ingv.it",
	"NCEDC":      "https://service.ncedc.org",
	"SCEDC":      "https://service.scedc.caltech.edu",
	"RESIF":      "http://ws.resif.fr",
	"USP":        "http://sismo.iag.usp.br",
	"GEONET":     "http://service.geonet.org.nz",
	"BGR":        "http://eida.bgr.de",
	"KOERI":      "http://eida.koeri.boun.edu.tr",
	"NOA":        "http://eida.gein.noa.gr",
	"LMU":        "http://erde.geophysik.uni-muenchen.de",
	"NIEP":       "http://eida-sc3.infp.ro",
	"UIB-NORSAR": "http://eida.geo.uib.no",
	"RASPISHAKE": "https://data.raspberryshake.org",
	"AUSPASS":    "http://auspass.edu.au",
}

// KnownProviders lists the short names accepted by ResolveProviders.
func KnownProviders() []string {
	names := make([]string, 0, len(knownProviders))
	for name := range knownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveProviders maps provider short names or base URLs to service endpoints.
// ALL expands to every known provider. availabilityURL is attached to IRIS,
// the only data center whose availability service the tools rely on.
func ResolveProviders(names []string, availabilityURL string) ([]domain.Provider, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no providers given")
	}
	var expanded []string
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "ALL") {
			expanded = append(expanded, KnownProviders()...)
			continue
		}
		expanded = append(expanded, name)
	}
	out := make([]domain.Provider, 0, len(expanded))
	seen := make(map[string]bool)
	for _, name := range expanded {
		p, err := resolveProvider(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		if p.Name == "IRIS" {
			p.AvailabilityURL = availabilityURL
		}
		out = append(out, p)
	}
	return out, nil
}

func resolveProvider(name string) (domain.Provider, error) {
	if base, ok := knownProviders[strings.ToUpper(name)]; ok {
		return fromBase(strings.ToUpper(name), base), nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		u, err := url.Parse(name)
		if err != nil || u.Host == "" {
			return domain.Provider{}, fmt.Errorf("invalid provider URL %q", name)
		}
		return fromBase(u.Host, strings.TrimRight(name, "/")), nil
	}
	return domain.Provider{}, fmt.Errorf("unknown provider %q (known: %s)", name, strings.Join(KnownProviders(), ", "))
}

func fromBase(name, base string) domain.Provider {
	return domain.Provider{
		Name:          name,
		StationURL:    base + stationPath,
		DataselectURL: base + dataselectPath,
	}
}

// BaseURL returns the base URL of a known provider short name.
func BaseURL(name string) (string, bool) {
	base, ok := knownProviders[strings.ToUpper(name)]
	return base, ok
}
