package domain

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// AvailabilityRecord is one time span for which a provider holds data.
type AvailabilityRecord struct {
	NSLC
	Span TimeWindow
}

// ParseRequestLines parses the FDSN "request" format:
//
//	NET STA LOC CHA START END
//
// Blank lines and lines starting with '#' are skipped; "--" means an empty location.
func ParseRequestLines(data []byte) ([]AvailabilityRecord, error) {
	var records []AvailabilityRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, fmt.Errorf("line %d: expected 6 fields, got %d", line, len(fields))
		}
		start, err := ParseTime(fields[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: start: %w", line, err)
		}
		end, err := ParseTime(fields[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: end: %w", line, err)
		}
		loc := fields[2]
		if loc == "--" {
			loc = ""
		}
		records = append(records, AvailabilityRecord{
			NSLC: NSLC{Network: fields[0], Station: fields[1], Location: loc, Channel: fields[3]},
			Span: TimeWindow{Start: start, End: end},
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan request lines: %w", err)
	}
	return records, nil
}

// SummarizeExtent returns the earliest start and latest end over all records.
func SummarizeExtent(records []AvailabilityRecord) (TimeWindow, error) {
	if len(records) == 0 {
		return TimeWindow{}, ErrNoData
	}
	out := records[0].Span
	for _, r := range records[1:] {
		if r.Span.Start.Before(out.Start) {
			out.Start = r.Span.Start
		}
		if r.Span.End.After(out.End) {
			out.End = r.Span.End
		}
	}
	return out, nil
}

// Spans returns the time spans of the records.
func Spans(records []AvailabilityRecord) []TimeWindow {
	out := make([]TimeWindow, len(records))
	for i, r := range records {
		out[i] = r.Span
	}
	return out
}
