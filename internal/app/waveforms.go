package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/acquire"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/catalog"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/fdsn"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/fedcatalog"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/filestore"
	kafkaadapter "github.com/couchcryptid/seisdb-acquire/internal/adapter/kafka"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/traveltime"
	"github.com/couchcryptid/seisdb-acquire/internal/config"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// WaveformFlags are the command-line settings shared by the waveform tools.
type WaveformFlags struct {
	Profile    string
	OutputDir  string
	Network    string
	Station    string
	Location   string
	Channel    string
	Providers  string
	PerStation bool
	Catalog    string
}

// ParseWaveformFlags parses the arguments of a waveform tool. The
// per-station flag is only registered for phase-relative tools.
func ParseWaveformFlags(name string, args []string, phase bool, stderr io.Writer) (WaveformFlags, error) {
	var f WaveformFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] catalog.{xml,quakeml,csv}\n", name)
		fs.PrintDefaults()
	}
	fs.StringVar(&f.Profile, "profile", "", "YAML download profile overlaying the tool defaults")
	fs.StringVar(&f.OutputDir, "o", "", "archive root (default OUTPUT_DIR)")
	fs.StringVar(&f.Network, "network", "", "network code pattern")
	fs.StringVar(&f.Station, "station", "", "station code pattern")
	fs.StringVar(&f.Location, "location", "", "location code pattern")
	fs.StringVar(&f.Channel, "channel", "", "channel code pattern, overrides channel priorities in the query")
	fs.StringVar(&f.Providers, "providers", "", "comma list of provider names or base URLs")
	if phase {
		fs.BoolVar(&f.PerStation, "per-station", false, "compute the window at each station's own distance")
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return f, fmt.Errorf("expected one catalog file, got %d arguments", fs.NArg())
	}
	f.Catalog = fs.Arg(0)
	return f, nil
}

// resolveProfile loads the profile file over base and applies the flags.
func resolveProfile(base config.Profile, f WaveformFlags) (config.Profile, error) {
	p := base
	if f.Profile != "" {
		loaded, err := config.LoadProfile(f.Profile, base)
		if err != nil {
			return config.Profile{}, err
		}
		p = loaded
	}
	if f.PerStation {
		p.Window.PerStation = true
	}
	override(&p.Select.Network, f.Network)
	override(&p.Select.Station, f.Station)
	override(&p.Select.Location, f.Location)
	override(&p.Select.Channel, f.Channel)
	if f.Providers != "" {
		p.Providers = strings.Split(f.Providers, ",")
	}
	if err := p.Validate(); err != nil {
		return config.Profile{}, err
	}
	return p, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// RunWaveforms downloads waveforms for every event of the catalog. Item
// failures are reported in the summary; an error means the run could not
// be set up or was cancelled.
func RunWaveforms(ctx context.Context, env *Env, job string, base config.Profile, f WaveformFlags) (acquire.Summary, error) {
	cfg, logger, metrics := env.Config, env.Logger, env.Metrics

	profile, err := resolveProfile(base, f)
	if err != nil {
		return acquire.Summary{}, err
	}
	events, err := catalog.Read(f.Catalog)
	if err != nil {
		return acquire.Summary{}, err
	}
	logger.Info("catalog loaded", "path", f.Catalog, "events", len(events))

	client := fdsn.NewClient(cfg.FDSNTimeout, cfg.UserAgent, metrics, logger)
	finder, err := newFinder(env, client, profile)
	if err != nil {
		return acquire.Summary{}, err
	}

	spec := profile.WindowSpec()
	var tt domain.TravelTimer
	if spec.PhaseRelative() {
		tt = traveltime.NewCachedTravelTimer(
			traveltime.NewClient(cfg.TravelTimeURL, cfg.FDSNTimeout, cfg.UserAgent, metrics, logger),
			cfg.TravelTimeCacheSize, metrics)
		logger.Info("phase-relative windows", "start_phases", spec.StartPhases, "end_phases", spec.EndPhases,
			"model", spec.Model, "per_station", spec.PerStation)
	}

	var notifier acquire.Notifier
	if cfg.NotificationsEnabled() {
		n := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("archive notifications enabled", "topic", cfg.KafkaTopic)
	}

	outDir := f.OutputDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	store := filestore.New(outDir)

	d := acquire.NewDownloader(finder, client, tt, store, notifier, acquire.Options{
		Window:       spec,
		Region:       profile.RegionFor,
		Restrictions: profile.DomainRestrictions(),
		Select: domain.ChannelQuery{
			Network:  profile.Select.Network,
			Station:  profile.Select.Station,
			Location: profile.Select.Location,
			Channel:  profile.Select.Channel,
		},
		RequestInterval: cfg.RequestInterval,
	}, logger, metrics)

	stop := env.startServer(d)
	defer stop()

	summary, err := d.Run(ctx, events)
	env.push(job)
	return summary, err
}

// newFinder picks direct provider queries or federated routing.
func newFinder(env *Env, client *fdsn.Client, profile config.Profile) (domain.ChannelFinder, error) {
	cfg := env.Config
	if cfg.Routing == config.RoutingFederator {
		env.Logger.Info("federated routing", "url", cfg.FedcatalogURL,
			"include", cfg.IncludeProviders, "exclude", cfg.ExcludeProviders)
		return fedcatalog.NewRouter(fedcatalog.Options{
			BaseURL:          cfg.FedcatalogURL,
			Timeout:          cfg.FDSNTimeout,
			IncludeProviders: cfg.IncludeProviders,
			ExcludeProviders: cfg.ExcludeProviders,
			AvailabilityURL:  cfg.AvailabilityURL,
			UserAgent:        cfg.UserAgent,
		}, client, env.Metrics, env.Logger), nil
	}

	names := profile.Providers
	if len(names) == 0 {
		names = cfg.Providers
	}
	providers, err := fdsn.ResolveProviders(names, cfg.AvailabilityURL)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("direct routing", "providers", len(providers))
	return fdsn.NewFinder(client, providers, env.Logger), nil
}
