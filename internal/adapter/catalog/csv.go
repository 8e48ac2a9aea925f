package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

var csvColumns = []string{"time", "longitude", "latitude", "depth", "magnitude"}

// ParseCSV reads a catalog with a header row naming the columns
// time, longitude, latitude, depth (km) and magnitude, in any order.
func ParseCSV(data []byte) ([]domain.Event, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	events := make([]domain.Event, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ev, err := parseRow(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseRow(row []string, colIdx map[string]int) (domain.Event, error) {
	t, err := domain.ParseTime(row[colIdx["time"]])
	if err != nil {
		return domain.Event{}, err
	}
	ev := domain.Event{OriginTime: t}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{"longitude", &ev.Longitude},
		{"latitude", &ev.Latitude},
		{"depth", &ev.Depth},
		{"magnitude", &ev.Magnitude},
	} {
		if *f.dst, err = parseFloat(row[colIdx[f.col]]); err != nil {
			return domain.Event{}, fmt.Errorf("%s: %w", f.col, err)
		}
	}
	return ev, nil
}

// WriteCSV writes events in the CSV catalog format ParseCSV reads.
func WriteCSV(w io.Writer, events []domain.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ev := range events {
		record := []string{
			ev.OriginTime.UTC().Format(time.RFC3339Nano),
			formatFloat(ev.Longitude),
			formatFloat(ev.Latitude),
			formatFloat(ev.Depth),
			formatFloat(ev.Magnitude),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write event %s: %w", ev.ID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
