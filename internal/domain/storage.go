package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// fileTimeLayout is the time format used in archive file names.
const fileTimeLayout = "2006-01-02T15-04-05Z"

// WaveformPath returns the archive-relative path of a waveform file.
func WaveformPath(eventID string, id NSLC, w TimeWindow) string {
	name := fmt.Sprintf("%s__%s__%s.mseed", id.Key(),
		w.Start.UTC().Format(fileTimeLayout), w.End.UTC().Format(fileTimeLayout))
	return path.Join("mseed", eventID, name)
}

// StationXMLPath returns the archive-relative path of a station's StationXML.
func StationXMLPath(eventID, network, station string) string {
	return path.Join("stations", eventID, network+"."+station+".xml")
}

// AvailabilityPath returns the file name for a raw availability response.
// Wildcards and list separators are replaced so the name stays portable.
func AvailabilityPath(t StationTarget) string {
	r := strings.NewReplacer("*", "_", "?", "_", ",", "+", "/", "_")
	return r.Replace(t.Network) + "." + r.Replace(t.Station) + ".availability.txt"
}

// WaveformFile is a waveform path parsed back into its parts.
type WaveformFile struct {
	EventID string
	NSLC
	Window TimeWindow
}

// ParseWaveformPath is the inverse of WaveformPath.
func ParseWaveformPath(p string) (WaveformFile, error) {
	parts := strings.Split(path.Clean(p), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "mseed" {
		return WaveformFile{}, fmt.Errorf("not a waveform path: %q", p)
	}
	eventID := parts[len(parts)-2]
	if _, err := time.Parse(eventIDLayout, eventID); err != nil {
		return WaveformFile{}, fmt.Errorf("bad event id %q: %w", eventID, err)
	}

	name, ok := strings.CutSuffix(parts[len(parts)-1], ".mseed")
	if !ok {
		return WaveformFile{}, fmt.Errorf("not a miniSEED file: %q", p)
	}
	pieces := strings.Split(name, "__")
	if len(pieces) != 3 {
		return WaveformFile{}, fmt.Errorf("bad waveform file name: %q", name)
	}
	codes := strings.Split(pieces[0], ".")
	if len(codes) != 4 {
		return WaveformFile{}, fmt.Errorf("bad channel id: %q", pieces[0])
	}
	start, err := time.Parse(fileTimeLayout, pieces[1])
	if err != nil {
		return WaveformFile{}, fmt.Errorf("bad start time: %w", err)
	}
	end, err := time.Parse(fileTimeLayout, pieces[2])
	if err != nil {
		return WaveformFile{}, fmt.Errorf("bad end time: %w", err)
	}

	return WaveformFile{
		EventID: eventID,
		NSLC:    NSLC{Network: codes[0], Station: codes[1], Location: codes[2], Channel: codes[3]},
		Window:  TimeWindow{Start: start, End: end},
	}, nil
}
