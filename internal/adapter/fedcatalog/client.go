package fedcatalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

const service = "fedcatalog"

// StationLookup resolves routed request lines to channels at a datacenter.
type StationLookup interface {
	StationsBulk(ctx context.Context, p domain.Provider, lines []string) ([]domain.Channel, error)
}

// Router implements domain.ChannelFinder through the IRIS federator catalog.
type Router struct {
	httpClient      *http.Client
	baseURL         string
	stations        StationLookup
	include         []string
	exclude         []string
	availabilityURL string
	userAgent       string
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// Options configures a Router.
type Options struct {
	BaseURL          string
	Timeout          time.Duration
	IncludeProviders []string
	ExcludeProviders []string
	AvailabilityURL  string // attached to the IRISDMC route
	UserAgent        string
}

// NewRouter creates a federated channel finder.
func NewRouter(opts Options, stations StationLookup, metrics *observability.Metrics, logger *slog.Logger) *Router {
	return &Router{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		stations:        stations,
		include:         opts.IncludeProviders,
		exclude:         opts.ExcludeProviders,
		availabilityURL: opts.AvailabilityURL,
		userAgent:       opts.UserAgent,
		metrics:         metrics,
		logger:          logger,
	}
}

// Routes asks the federator which datacenters serve the query and applies
// the provider filters. Nothing left after filtering is domain.ErrNoData.
func (r *Router) Routes(ctx context.Context, q domain.ChannelQuery) ([]Route, error) {
	params := url.Values{
		"format":    {"request"},
		"starttime": {domain.FormatQueryTime(q.Window.Start)},
		"endtime":   {domain.FormatQueryTime(q.Window.End)},
	}
	for key, value := range map[string]string{
		"net": q.Network,
		"sta": q.Station,
		"cha": q.Channel,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}
	if q.Location != "" {
		params.Set("loc", domain.QueryLocation(q.Location))
	}
	q.Region.QueryParams(params)

	body, err := r.get(ctx, r.baseURL+"/query?"+params.Encode())
	if err != nil {
		return nil, err
	}
	routes, err := ParseRoutes(body)
	if err != nil {
		return nil, fmt.Errorf("parse routing response: %w", err)
	}
	routes = FilterRoutes(routes, r.include, r.exclude)
	if len(routes) == 0 {
		return nil, fmt.Errorf("nothing left after provider filters: %w", domain.ErrNoData)
	}
	return routes, nil
}

// FindChannels routes the query and resolves each datacenter's request lines
// with a bulk station request. Failing datacenters are logged and skipped.
func (r *Router) FindChannels(ctx context.Context, q domain.ChannelQuery) ([]domain.Channel, error) {
	routes, err := r.Routes(ctx, q)
	if err != nil {
		return nil, err
	}

	var (
		out     []domain.Channel
		claimed = make(map[string]string)
		failed  int
		lastErr error
	)
	for _, route := range routes {
		p := route.Provider()
		if route.Datacenter == "IRISDMC" {
			p.AvailabilityURL = r.availabilityURL
		}
		channels, err := r.stations.StationsBulk(ctx, p, route.Lines)
		if errors.Is(err, domain.ErrNoData) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("routed station lookup failed", "provider", p.Name, "error", err)
			failed++
			lastErr = err
			continue
		}
		for _, ch := range channels {
			key := ch.StationKey()
			if owner, ok := claimed[key]; ok && owner != p.Name {
				continue
			}
			if !q.Region.Contains(ch.Latitude, ch.Longitude) {
				continue
			}
			claimed[key] = p.Name
			out = append(out, ch)
		}
		r.logger.Info("routed channels resolved", "provider", p.Name, "requests", len(route.Lines), "channels", len(channels))
	}
	if failed > 0 && failed == len(routes) {
		return nil, lastErr
	}
	return out, nil
}

func (r *Router) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	start := time.Now()
	body, err := r.roundTrip(req)
	if r.metrics != nil {
		outcome := "success"
		switch {
		case errors.Is(err, domain.ErrNoData):
			outcome = "nodata"
		case err != nil:
			outcome = "error"
		}
		r.metrics.Requests.WithLabelValues(service, outcome).Inc()
		r.metrics.RequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	}
	return body, err
}

func (r *Router) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fedcatalog request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, domain.ErrNoData
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fedcatalog API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fedcatalog response: %w", err)
	}
	return body, nil
}
