package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"gopkg.in/yaml.v3"
)

// RegionProfile selects stations around the event. The rectangle is used
// only when all four bounds are set.
type RegionProfile struct {
	MinRadius    float64  `yaml:"minradius"`
	MaxRadius    float64  `yaml:"maxradius"`
	MinLatitude  *float64 `yaml:"minlatitude"`
	MaxLatitude  *float64 `yaml:"maxlatitude"`
	MinLongitude *float64 `yaml:"minlongitude"`
	MaxLongitude *float64 `yaml:"maxlongitude"`
}

// WindowProfile describes the waveform window. Offsets are in seconds.
type WindowProfile struct {
	StartRefPhase []string `yaml:"startrefphase"`
	EndRefPhase   []string `yaml:"endrefphase"`
	StartOffset   float64  `yaml:"startoffset"`
	EndOffset     float64  `yaml:"endoffset"`
	RadiusStep    float64  `yaml:"radius_step"`
	Model         string   `yaml:"model"`
	PerStation    bool     `yaml:"per_station"`
}

// RestrictionsProfile mirrors domain.Restrictions with mass-download key names.
type RestrictionsProfile struct {
	RejectChannelsWithGaps         bool     `yaml:"reject_channels_with_gaps"`
	MinimumLength                  float64  `yaml:"minimum_length"`
	MinimumInterstationDistanceInM float64  `yaml:"minimum_interstation_distance_in_m"`
	ChannelPriorities              []string `yaml:"channel_priorities"`
	LocationPriorities             []string `yaml:"location_priorities"`
	Sanitize                       bool     `yaml:"sanitize"`
}

// SelectProfile narrows the station query with FDSN code patterns.
type SelectProfile struct {
	Network  string `yaml:"network"`
	Station  string `yaml:"station"`
	Location string `yaml:"location"`
	Channel  string `yaml:"channel"`
}

// Profile is a per-run download profile.
type Profile struct {
	Region       RegionProfile       `yaml:"domain"`
	Window       WindowProfile       `yaml:"window"`
	Providers    []string            `yaml:"providers"`
	Restrictions RestrictionsProfile `yaml:"restrictions"`
	Select       SelectProfile       `yaml:"select"`
}

// OriginProfile returns the defaults of the origin-anchored waveform tool.
func OriginProfile() Profile {
	return Profile{
		Region: RegionProfile{MinRadius: 0, MaxRadius: 90},
		Window: WindowProfile{StartOffset: 0, EndOffset: 1800},
		Restrictions: RestrictionsProfile{
			MinimumLength:                  0.5,
			MinimumInterstationDistanceInM: 10e3,
			ChannelPriorities:              []string{"BH[ZNE12]", "HH[ZNE12]", "EH[ZNE12]", "SH[ZNE12]", "LH[ZNE12]"},
		},
	}
}

// PhaseProfile returns the defaults of the phase-anchored waveform tool.
func PhaseProfile() Profile {
	return Profile{
		Region: RegionProfile{MinRadius: 0, MaxRadius: 90},
		Window: WindowProfile{
			StartRefPhase: []string{"ttp"},
			EndRefPhase:   []string{"ttp"},
			StartOffset:   -120,
			EndOffset:     1800,
			RadiusStep:    30,
			Model:         "iasp91",
		},
		Restrictions: RestrictionsProfile{
			MinimumLength:                  0.9,
			MinimumInterstationDistanceInM: 100,
			ChannelPriorities:              []string{"BH?", "HH?", "SH?"},
		},
	}
}

// LoadProfile overlays the YAML file at path onto base and validates the result.
func LoadProfile(path string, base Profile) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks ranges and the consistency of the window description.
func (p Profile) Validate() error {
	r := p.Region
	if r.MinRadius < 0 || r.MaxRadius > 180 || r.MinRadius > r.MaxRadius {
		return fmt.Errorf("invalid radius range [%g, %g]", r.MinRadius, r.MaxRadius)
	}
	set := 0
	for _, v := range []*float64{r.MinLatitude, r.MaxLatitude, r.MinLongitude, r.MaxLongitude} {
		if v != nil {
			set++
		}
	}
	if set != 0 && set != 4 {
		return errors.New("rectangle needs all of minlatitude, maxlatitude, minlongitude, maxlongitude")
	}
	if m := p.Restrictions.MinimumLength; m < 0 || m > 1 {
		return fmt.Errorf("minimum_length must be within [0, 1], got %g", m)
	}
	if p.Restrictions.MinimumInterstationDistanceInM < 0 {
		return errors.New("minimum_interstation_distance_in_m must not be negative")
	}
	return p.WindowSpec().Validate()
}

// WindowSpec converts the window section.
func (p Profile) WindowSpec() domain.WindowSpec {
	return domain.WindowSpec{
		StartPhases: p.Window.StartRefPhase,
		EndPhases:   p.Window.EndRefPhase,
		StartOffset: domain.Seconds(p.Window.StartOffset),
		EndOffset:   domain.Seconds(p.Window.EndOffset),
		RadiusStep:  p.Window.RadiusStep,
		Model:       p.Window.Model,
		PerStation:  p.Window.PerStation,
	}
}

// DomainRestrictions converts the restrictions section.
func (p Profile) DomainRestrictions() domain.Restrictions {
	r := p.Restrictions
	return domain.Restrictions{
		RejectChannelsWithGaps:      r.RejectChannelsWithGaps,
		MinimumLength:               r.MinimumLength,
		MinimumInterstationDistance: r.MinimumInterstationDistanceInM,
		ChannelPriorities:           r.ChannelPriorities,
		LocationPriorities:          r.LocationPriorities,
		Sanitize:                    r.Sanitize,
	}
}

// RegionFor centers the region's circle on the event epicenter.
func (p Profile) RegionFor(ev domain.Event) domain.Region {
	r := p.Region
	region := domain.Region{
		Circle: &domain.Circle{
			Latitude:  ev.Latitude,
			Longitude: ev.Longitude,
			MinRadius: r.MinRadius,
			MaxRadius: r.MaxRadius,
		},
	}
	if r.MinLatitude != nil && r.MaxLatitude != nil && r.MinLongitude != nil && r.MaxLongitude != nil {
		region.Rectangle = &domain.Rectangle{
			MinLatitude:  *r.MinLatitude,
			MaxLatitude:  *r.MaxLatitude,
			MinLongitude: *r.MinLongitude,
			MaxLongitude: *r.MaxLongitude,
		}
	}
	return region
}
