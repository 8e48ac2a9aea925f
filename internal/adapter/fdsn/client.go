package fdsn

import (
	"bytes"
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

// Service labels used in request metrics.
const (
	serviceStation      = "station"
	serviceDataselect   = "dataselect"
	serviceAvailability = "availability"
)

// Client issues FDSN station, dataselect and availability queries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an FDSN web service client.
func NewClient(timeout time.Duration, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// Stations queries a station service at level=channel and parses the text response.
func (c *Client) Stations(ctx context.Context, p domain.Provider, q domain.ChannelQuery) ([]domain.Channel, error) {
	params := url.Values{
		"level":     {"channel"},
		"format":    {"text"},
		"starttime": {domain.FormatQueryTime(q.Window.Start)},
		"endtime":   {domain.FormatQueryTime(q.Window.End)},
	}
	setIfNotEmpty(params, "network", q.Network)
	setIfNotEmpty(params, "station", q.Station)
	if q.Location != "" {
		params.Set("location", domain.QueryLocation(q.Location))
	}
	setIfNotEmpty(params, "channel", q.Channel)
	q.Region.QueryParams(params)

	body, err := c.get(ctx, serviceStation, p.StationURL+"query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%s station query: %w", p.Name, err)
	}
	channels, err := parseChannelText(body, p)
	if err != nil {
		return nil, fmt.Errorf("%s station response: %w", p.Name, err)
	}
	return channels, nil
}

// StationsBulk POSTs request lines (NET STA LOC CHA START END) to a station service.
func (c *Client) StationsBulk(ctx context.Context, p domain.Provider, lines []string) ([]domain.Channel, error) {
	var buf bytes.Buffer
	buf.WriteString("level=channel\nformat=text\n")
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	body, err := c.do(ctx, serviceStation, http.MethodPost, p.StationURL+"query", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s station bulk query: %w", p.Name, err)
	}
	channels, err := parseChannelText(body, p)
	if err != nil {
		return nil, fmt.Errorf("%s station response: %w", p.Name, err)
	}
	return channels, nil
}

// Waveforms fetches raw miniSEED for one channel and window.
func (c *Client) Waveforms(ctx context.Context, p domain.Provider, id domain.NSLC, w domain.TimeWindow) ([]byte, error) {
	params := url.Values{
		"network":   {id.Network},
		"station":   {id.Station},
		"location":  {id.QueryLocation()},
		"channel":   {id.Channel},
		"starttime": {domain.FormatQueryTime(w.Start)},
		"endtime":   {domain.FormatQueryTime(w.End)},
	}
	body, err := c.get(ctx, serviceDataselect, p.DataselectURL+"query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%s dataselect %s: %w", p.Name, id.Key(), err)
	}
	if len(body) == 0 {
		return nil, domain.ErrNoData
	}
	return body, nil
}

// StationXML fetches the response-level StationXML document for one station.
func (c *Client) StationXML(ctx context.Context, p domain.Provider, network, station string, w domain.TimeWindow) ([]byte, error) {
	params := url.Values{
		"network":   {network},
		"station":   {station},
		"level":     {"response"},
		"starttime": {domain.FormatQueryTime(w.Start)},
		"endtime":   {domain.FormatQueryTime(w.End)},
	}
	body, err := c.get(ctx, serviceStation, p.StationURL+"query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%s stationxml %s.%s: %w", p.Name, network, station, err)
	}
	return body, nil
}

// Extent queries the availability extent of a network/station target. The raw
// response is returned along with the parsed records so it can be kept verbatim.
func (c *Client) Extent(ctx context.Context, availabilityURL string, t domain.StationTarget) ([]domain.AvailabilityRecord, []byte, error) {
	params := url.Values{
		"net":    {t.Network},
		"sta":    {t.Station},
		"format": {"request"},
		"nodata": {"204"},
	}
	body, err := c.get(ctx, serviceAvailability, strings.TrimRight(availabilityURL, "/")+"/extent?"+params.Encode())
	if err != nil {
		return nil, nil, fmt.Errorf("availability extent %s: %w", t, err)
	}
	records, err := domain.ParseRequestLines(body)
	if err != nil {
		return nil, nil, fmt.Errorf("availability extent %s: %w", t, err)
	}
	if len(records) == 0 {
		return nil, body, domain.ErrNoData
	}
	return records, body, nil
}

// Spans queries the availability time spans of one channel within a window.
// Providers without an availability service return domain.ErrUnsupported.
func (c *Client) Spans(ctx context.Context, p domain.Provider, id domain.NSLC, w domain.TimeWindow) ([]domain.AvailabilityRecord, error) {
	if p.AvailabilityURL == "" {
		return nil, domain.ErrUnsupported
	}
	params := url.Values{
		"net":       {id.Network},
		"sta":       {id.Station},
		"loc":       {id.QueryLocation()},
		"cha":       {id.Channel},
		"starttime": {domain.FormatQueryTime(w.Start)},
		"endtime":   {domain.FormatQueryTime(w.End)},
		"format":    {"request"},
		"nodata":    {"204"},
	}
	body, err := c.get(ctx, serviceAvailability, strings.TrimRight(p.AvailabilityURL, "/")+"/query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("availability query %s: %w", id.Key(), err)
	}
	records, err := domain.ParseRequestLines(body)
	if err != nil {
		return nil, fmt.Errorf("availability query %s: %w", id.Key(), err)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, service, fullURL string) ([]byte, error) {
	return c.do(ctx, service, http.MethodGet, fullURL, nil)
}

func (c *Client) do(ctx context.Context, service, method, fullURL string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	c.logger.Debug("fdsn request", "service", service, "method", method, "url", fullURL)
	start := time.Now()
	data, err := c.roundTrip(req, service)
	c.observe(service, start, err)
	return data, err
}

func (c *Client) roundTrip(req *http.Request, service string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, domain.ErrNoData
	case resp.StatusCode == http.StatusNotFound && service == serviceAvailability:
		// Availability requests ask for 204 on no data, so 404 means no such service.
		return nil, domain.ErrUnsupported
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNoData
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s service error: status %d: %s", service, resp.StatusCode, bytes.TrimSpace(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", service, err)
	}
	return data, nil
}

func (c *Client) observe(service string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrNoData):
		outcome = "nodata"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Requests.WithLabelValues(service, outcome).Inc()
	c.metrics.RequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
