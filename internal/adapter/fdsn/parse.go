package fdsn

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// Column positions of the station service text format at level=channel:
//
//	Network|Station|Location|Channel|Latitude|Longitude|Elevation|Depth|Azimuth|Dip|
//	SensorDescription|Scale|ScaleFreq|ScaleUnits|SampleRate|StartTime|EndTime
const (
	colNetwork = iota
	colStation
	colLocation
	colChannel
	colLatitude
	colLongitude
	colElevation
	colDepth
	colAzimuth
	colDip
	colSensor
	colScale
	colScaleFreq
	colScaleUnits
	colSampleRate
	colStartTime
	colEndTime
	channelColumns
)

func parseChannelText(data []byte, provider domain.Provider) ([]domain.Channel, error) {
	var channels []domain.Channel
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ch, err := parseChannelLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ch.Provider = provider
		channels = append(channels, ch)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan channel text: %w", err)
	}
	return channels, nil
}

func parseChannelLine(text string) (domain.Channel, error) {
	fields := strings.Split(text, "|")
	if len(fields) < channelColumns-1 {
		return domain.Channel{}, fmt.Errorf("expected %d columns, got %d", channelColumns, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	ch := domain.Channel{
		NSLC: domain.NSLC{
			Network:  fields[colNetwork],
			Station:  fields[colStation],
			Location: fields[colLocation],
			Channel:  fields[colChannel],
		},
	}

	var err error
	floats := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"latitude", colLatitude, &ch.Latitude},
		{"longitude", colLongitude, &ch.Longitude},
		{"elevation", colElevation, &ch.Elevation},
		{"depth", colDepth, &ch.Depth},
		{"sample rate", colSampleRate, &ch.SampleRate},
	}
	for _, f := range floats {
		if fields[f.col] == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(fields[f.col], 64); err != nil {
			return domain.Channel{}, fmt.Errorf("%s %q: %w", f.name, fields[f.col], err)
		}
	}

	if ch.StartTime, err = domain.ParseTime(fields[colStartTime]); err != nil {
		return domain.Channel{}, fmt.Errorf("start time: %w", err)
	}
	if len(fields) > colEndTime && fields[colEndTime] != "" {
		if ch.EndTime, err = domain.ParseTime(fields[colEndTime]); err != nil {
			return domain.Channel{}, fmt.Errorf("end time: %w", err)
		}
	}
	return ch, nil
}

// bulkLine renders one FDSN POST request line.
func bulkLine(id domain.NSLC, w domain.TimeWindow) string {
	return fmt.Sprintf("%s %s %s %s %s %s",
		id.Network, id.Station, id.QueryLocation(), id.Channel,
		domain.FormatQueryTime(w.Start), domain.FormatQueryTime(w.End))
}
