package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/acquire"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/fdsn"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/filestore"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// AvailabilityFlags are the command-line settings of the availability tool.
type AvailabilityFlags struct {
	OutputDir string
	Targets   []domain.StationTarget
	// FromList is set when the targets were read from -list.
	FromList bool
}

// ParseAvailabilityFlags parses either a positional NETWORK STATION pair or
// a -list file of pairs.
func ParseAvailabilityFlags(name string, args []string, stderr io.Writer) (AvailabilityFlags, error) {
	var (
		f    AvailabilityFlags
		list string
	)
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] NETWORK STATION\n       %s [flags] -list stations.txt\n", name, name)
		fs.PrintDefaults()
	}
	fs.StringVar(&list, "list", "", "file with one NETWORK STATION pair per line")
	fs.StringVar(&f.OutputDir, "o", "", "also write each raw response to this directory")
	if err := fs.Parse(args); err != nil {
		return f, err
	}

	switch {
	case list != "" && fs.NArg() == 0:
		file, err := os.Open(list)
		if err != nil {
			return f, fmt.Errorf("open station list: %w", err)
		}
		defer file.Close()
		targets, err := ReadTargetList(file)
		if err != nil {
			return f, fmt.Errorf("station list %s: %w", list, err)
		}
		f.Targets, f.FromList = targets, true
	case list == "" && fs.NArg() == 2:
		f.Targets = []domain.StationTarget{{Network: fs.Arg(0), Station: fs.Arg(1)}}
	default:
		fs.Usage()
		return f, errors.New("give either NETWORK STATION or -list FILE")
	}
	return f, nil
}

// ReadTargetList reads NETWORK STATION pairs, one per line. Blank lines and
// lines starting with '#' are ignored.
func ReadTargetList(r io.Reader) ([]domain.StationTarget, error) {
	var targets []domain.StationTarget
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want NETWORK STATION, got %q", n, line)
		}
		targets = append(targets, domain.StationTarget{Network: fields[0], Station: fields[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets")
	}
	return targets, nil
}

// RunAvailability prints the availability extent of every target to stdout
// and returns the process exit code.
func RunAvailability(ctx context.Context, env *Env, job string, f AvailabilityFlags, stdout io.Writer) int {
	cfg := env.Config
	client := fdsn.NewClient(cfg.FDSNTimeout, cfg.UserAgent, env.Metrics, env.Logger)

	var archive acquire.Archive
	if f.OutputDir != "" {
		archive = filestore.New(f.OutputDir)
	}
	r := acquire.NewAvailabilityRunner(client, cfg.AvailabilityURL, stdout, archive, env.Logger, env.Metrics)

	s, err := r.Run(ctx, f.Targets)
	env.push(job)
	if err != nil {
		env.Logger.Error("availability run aborted", "error", err)
		return 1
	}
	if s.Failed > 0 && (!f.FromList || s.Failed == s.Targets) {
		return 1
	}
	return 0
}
