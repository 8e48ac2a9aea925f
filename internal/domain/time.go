package domain

import (
	"fmt"
	"strings"
	"time"
)

// queryTimeLayout is the time format sent to FDSN services.
const queryTimeLayout = "2006-01-02T15:04:05.000000"

// FormatQueryTime formats t for an FDSN query parameter.
func FormatQueryTime(t time.Time) string {
	return t.UTC().Format(queryTimeLayout)
}

var fdsnTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the time formats found in FDSN responses and catalogs.
// Times without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range fdsnTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %q", s)
}
