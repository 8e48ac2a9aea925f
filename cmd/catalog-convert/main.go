// Command catalog-convert reads a QuakeML or CSV earthquake catalog and
// writes the CSV catalog read by the waveform tools, so QuakeML catalogs can
// be edited as CSV and fed back.
//
// Usage:
//
//	go run ./cmd/catalog-convert -in events.xml -out events.csv
//	go run ./cmd/catalog-convert -in events.xml -min-magnitude 6.5 -sort
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/adapter/catalog"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "input catalog (.xml, .quakeml or .csv)")
	out := flag.String("out", "", "output CSV path (default stdout)")
	minMag := flag.Float64("min-magnitude", math.Inf(-1), "drop events below this magnitude")
	sortByTime := flag.Bool("sort", false, "sort events by origin time")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -in")
	}

	events, err := catalog.Read(*in)
	if err != nil {
		return err
	}
	log.Printf("%s: %d events", *in, len(events))

	events = filterMagnitude(events, *minMag)
	if *sortByTime {
		sort.SliceStable(events, func(i, j int) bool { return events[i].OriginTime.Before(events[j].OriginTime) })
	}

	if *out == "" {
		if err := catalog.WriteCSV(os.Stdout, events); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
	} else {
		if err := writeCatalog(*out, events); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
		log.Printf("wrote %d events: %s", len(events), *out)
	}

	printStats(os.Stderr, events)
	return nil
}

func filterMagnitude(events []domain.Event, minMag float64) []domain.Event {
	kept := events[:0:0]
	for _, ev := range events {
		if ev.Magnitude >= minMag {
			kept = append(kept, ev)
		}
	}
	return kept
}

func writeCatalog(path string, events []domain.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := catalog.WriteCSV(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printStats reports the time span and a magnitude histogram of the catalog.
func printStats(w io.Writer, events []domain.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	first, last := events[0].OriginTime, events[0].OriginTime
	bins := map[int]int{}
	for _, ev := range events {
		if ev.OriginTime.Before(first) {
			first = ev.OriginTime
		}
		if ev.OriginTime.After(last) {
			last = ev.OriginTime
		}
		bins[int(math.Floor(ev.Magnitude))]++
	}

	fmt.Fprintf(w, "\n%d events from %s to %s\n", len(events), first.Format("2006-01-02"), last.Format("2006-01-02"))
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  M%d-%d  %5d  %s\n", k, k+1, bins[k], strings.Repeat("#", min(bins[k], 50)))
	}
}
