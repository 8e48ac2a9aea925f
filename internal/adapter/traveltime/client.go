package traveltime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

const service = "traveltime"

// Client implements domain.TravelTimer using the IRIS traveltime web service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a traveltime client. baseURL is the full query endpoint.
func NewClient(baseURL string, timeout time.Duration, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// TravelTimes returns the arrival times in seconds after origin of the
// requested phases. No arrival at all is domain.ErrNoArrival.
func (c *Client) TravelTimes(ctx context.Context, q domain.TravelTimeQuery) ([]float64, error) {
	params := url.Values{
		"model":          {q.Model},
		"evdepth":        {strconv.FormatFloat(q.Depth, 'f', -1, 64)},
		"distdeg":        {strconv.FormatFloat(q.Distance, 'f', -1, 64)},
		"phases":         {strings.Join(q.Phases, ",")},
		"traveltimeonly": {"true"},
		"noheader":       {"true"},
	}

	start := time.Now()
	times, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("travel times %s at %g deg: %w", strings.Join(q.Phases, ","), q.Distance, err)
	}
	return times, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("traveltime request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, domain.ErrNoArrival
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("traveltime API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return parseTimes(string(body))
}

func parseTimes(body string) ([]float64, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, domain.ErrNoArrival
	}
	times := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("decode response: %q: %w", f, err)
		}
		times = append(times, v)
	}
	return times, nil
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrNoArrival):
		outcome = "nodata"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Requests.WithLabelValues(service, outcome).Inc()
	c.metrics.RequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
