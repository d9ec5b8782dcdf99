package firms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
	"github.com/geih-labs/firewatch/internal/logger"
)

// SourceName is the name the connector registers under.
const SourceName = "nasa-firms"

// DefaultBaseURL is the FIRMS area API root.
const DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov/api/area"

// Ensure Connector implements the port.
var _ driven.SourceConnector = (*Connector)(nil)

// Connector talks to the NASA FIRMS area API. Each instance is built for
// one run and owned by it exclusively; no fetch-level locking is needed.
type Connector struct {
	cfg     domain.SourceConfig
	client  *http.Client
	limiter *rateLimiter

	mu     sync.Mutex
	closed bool
}

// New constructs a connector from per-source settings. It is the
// registry constructor for SourceName.
func New(cfg domain.SourceConfig) (driven.SourceConnector, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("firms connector: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Connector{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		limiter: newRateLimiter(),
	}, nil
}

// Connect verifies reachability and credentials against the API's help
// endpoint. Expected failures come back typed, never as panics: a bad key
// is domain.ErrUnauthorized, an unreachable host domain.ErrUnreachable.
func (c *Connector) Connect(ctx context.Context) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	probe := strings.TrimRight(c.cfg.BaseURL, "/") + "/help"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return fmt.Errorf("build connect probe: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.cfg.APIKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", probe, classifyTransport(err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("probe %s: %w", probe, domain.ErrUnauthorized)
	default:
		return fmt.Errorf("probe %s: status %d: %w", probe, resp.StatusCode, domain.ErrUnreachable)
	}
}

// Fetch retrieves the window's data with the source-specific filters from
// the connector configuration. Safe to repeat for the same window; if the
// upstream is still landing data a retry may return more rows, which is
// accepted rather than hidden.
func (c *Connector) Fetch(ctx context.Context, window domain.Window) (*domain.RawPayload, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	q := req.URL.Query()
	q.Set("key", c.cfg.APIKey)
	q.Set("area", c.cfg.Area)
	q.Set("dateRange", window.DateRange())
	q.Set("format", wireFormat(c.cfg.Format))
	if c.cfg.Satellite != "" {
		q.Set("satellite", c.cfg.Satellite)
	}
	req.URL.RawQuery = q.Encode()

	logger.Debug("FIRMS fetch: %s %s", c.cfg.Area, window.DateRange())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch window %s: %w", window, classifyTransport(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("fetch window %s: %w", window, domain.ErrUnauthorized)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.recordRateLimitError(retryAfterSeconds(resp))
		return nil, fmt.Errorf("fetch window %s: %w", window, &domain.UpstreamError{Code: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch window %s: %w", window, &domain.UpstreamError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", classifyTransport(err))
	}

	format := formatForContentType(resp.Header.Get("Content-Type"))
	if format == domain.FormatJSON && !json.Valid(body) {
		return nil, fmt.Errorf("fetch window %s: declared JSON is not parseable: %w", window, domain.ErrMalformedResponse)
	}

	return &domain.RawPayload{
		SourceName: c.cfg.Name,
		Format:     format,
		Content:    body,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Validate performs the source-aware structural check: structured answers
// must carry a features list, delimited answers a latitude header column,
// binary answers must simply be non-empty. The payload is not mutated.
func (c *Connector) Validate(payload *domain.RawPayload) bool {
	if payload == nil {
		return false
	}

	switch payload.Format {
	case domain.FormatJSON:
		var top map[string]json.RawMessage
		if err := json.Unmarshal(payload.Content, &top); err != nil {
			return false
		}
		_, ok := top["features"]
		return ok
	case domain.FormatCSV:
		text := strings.TrimSpace(string(payload.Content))
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) < 2 {
			return false
		}
		return strings.Contains(strings.ToLower(lines[0]), "latitude")
	case domain.FormatBinary:
		return len(payload.Content) > 0
	default:
		return false
	}
}

// Describe returns the source metadata. The descriptor is immutable.
func (c *Connector) Describe() domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Name:               SourceName,
		Description:        "Fire Information for Resource Management System",
		Formats:            []domain.Format{domain.FormatCSV, domain.FormatJSON, domain.FormatBinary},
		SpatialCoverage:    "global",
		TemporalResolution: "daily",
		DocumentationURL:   "https://firms.modaps.eosdis.nasa.gov/api/",
	}
}

// Close releases connection state. Safe to call multiple times.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.client.CloseIdleConnections()
	return nil
}

func (c *Connector) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("firms connector: already closed")
	}
	return nil
}

// classifyTransport maps transport errors onto the taxonomy. Timeouts and
// unreachable hosts are the retryable Unreachable class.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", domain.ErrUnreachable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout", domain.ErrUnreachable)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, urlErr.Err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
}

// wireFormat maps the pipeline format onto the API's format parameter.
func wireFormat(f domain.Format) string {
	switch f {
	case domain.FormatJSON:
		return "json"
	case domain.FormatBinary:
		return "binary"
	default:
		return "csv"
	}
}

// formatForContentType dispatches on the declared content type: JSON and
// CSV are recognised, anything else is treated as opaque binary.
func formatForContentType(contentType string) domain.Format {
	switch {
	case strings.Contains(contentType, "application/json"),
		strings.Contains(contentType, "application/geo+json"):
		return domain.FormatJSON
	case strings.Contains(contentType, "text/csv"):
		return domain.FormatCSV
	default:
		return domain.FormatBinary
	}
}

func retryAfterSeconds(resp *http.Response) int {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		return 0
	}
	return seconds
}
