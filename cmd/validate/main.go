// Command validate checks the integrity of a waveform archive written by the
// acquisition tools: file names parse back into channel and window, windows
// are non-empty, and every station with waveforms has its StationXML.
//
// Usage:
//
//	go run ./cmd/validate -dir archive
//	go run ./cmd/validate -dir archive -catalog events.xml
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/couchcryptid/seisdb-acquire/internal/adapter/catalog"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/filestore"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "archive root written by the waveform tools")
	catalogPath := flag.String("catalog", "", "optional catalog the archive was built from")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *dir, *catalogPath); code != 0 {
		os.Exit(code)
	}
}

// archiveFile is a waveform file found in the archive.
type archiveFile struct {
	rel  string
	size int64
}

func run(out io.Writer, dir, catalogPath string) int {
	fmt.Fprintln(out, "=== Waveform Archive Validation ===")
	fmt.Fprintln(out)

	store := filestore.New(dir)
	waveforms, err := listFiles(store, "mseed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list waveforms: %v\n", err)
		return 1
	}
	stationXML, err := listFiles(store, "stations")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list stationxml: %v\n", err)
		return 1
	}

	parsed, names := validateFileNames(waveforms)
	phases := []*phase{
		names,
		validateStationXML(parsed, stationXML),
	}
	if catalogPath != "" {
		events, err := catalog.Read(catalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
			return 1
		}
		phases = append(phases, validateCatalog(parsed, events))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d waveforms, %d StationXML, %d events\n",
		len(waveforms), len(stationXML), countEvents(parsed))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func listFiles(store *filestore.Store, dir string) ([]archiveFile, error) {
	var files []archiveFile
	err := store.Walk(dir, func(rel string, size int64) error {
		files = append(files, archiveFile{rel: rel, size: size})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, err
}

func countEvents(files []domain.WaveformFile) int {
	ids := map[string]bool{}
	for _, f := range files {
		ids[f.EventID] = true
	}
	return len(ids)
}

// ── Phase 1: File names ──

func validateFileNames(files []archiveFile) ([]domain.WaveformFile, *phase) {
	p := &phase{name: "Phase 1: Waveform file names"}
	var parsed []domain.WaveformFile
	for _, f := range files {
		wf, err := domain.ParseWaveformPath(f.rel)
		if err != nil {
			p.errorf("%s: %v", f.rel, err)
			continue
		}
		if !wf.Window.End.After(wf.Window.Start) {
			p.errorf("%s: window end %s is not after start %s", f.rel, wf.Window.End, wf.Window.Start)
		}
		if f.size == 0 {
			p.errorf("%s: empty file", f.rel)
		}
		parsed = append(parsed, wf)
	}
	return parsed, p
}

// ── Phase 2: StationXML coverage ──

func validateStationXML(waveforms []domain.WaveformFile, stationXML []archiveFile) *phase {
	p := &phase{name: "Phase 2: StationXML coverage"}
	have := map[string]bool{}
	for _, f := range stationXML {
		if path.Ext(f.rel) != ".xml" {
			p.errorf("%s: unexpected file", f.rel)
			continue
		}
		if f.size == 0 {
			p.errorf("%s: empty file", f.rel)
		}
		have[f.rel] = true
	}

	reported := map[string]bool{}
	for _, wf := range waveforms {
		want := domain.StationXMLPath(wf.EventID, wf.Network, wf.Station)
		if !have[want] && !reported[want] {
			reported[want] = true
			p.errorf("event %s station %s: missing %s", wf.EventID, wf.StationKey(), want)
		}
	}
	return p
}

// ── Phase 3: Catalog cross-reference ──

func validateCatalog(waveforms []domain.WaveformFile, events []domain.Event) *phase {
	p := &phase{name: "Phase 3: Catalog cross-reference"}
	known := map[string]bool{}
	for _, ev := range events {
		known[ev.ID()] = true
	}
	reported := map[string]bool{}
	for _, wf := range waveforms {
		if !known[wf.EventID] && !reported[wf.EventID] {
			reported[wf.EventID] = true
			p.errorf("event directory %s matches no catalog event", wf.EventID)
		}
	}
	return p
}
