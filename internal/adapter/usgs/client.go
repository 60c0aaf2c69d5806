package usgs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
)

// DefaultEndpoint is the USGS FDSN event query endpoint.
const DefaultEndpoint = "https://earthquake.usgs.gov/fdsnws/event/1/query"

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	userAgent = "quake-report/1.0"
)

// Client fetches and parses the USGS GeoJSON event feed. It makes exactly
// one request per call and never retries.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. connectTimeout bounds dialing and the TLS
// handshake. readTimeout bounds every read from the connection, the wait for
// response headers included, so a body that keeps arriving is never cut off
// while a stalled one fails after readTimeout.
func NewClient(connectTimeout, readTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &readDeadlineConn{Conn: conn, timeout: readTimeout}, nil
		},
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		// One connection per call, torn down when the call returns.
		DisableKeepAlives: true,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		metrics:    metrics,
		logger:     logger,
	}
}

// readDeadlineConn arms a fresh read deadline before each Read.
type readDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readDeadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// FetchEarthquakes performs one GET against rawURL and parses the response.
// Any error is a *domain.FetchError; on error the returned slice is nil.
func (c *Client) FetchEarthquakes(ctx context.Context, rawURL string) ([]domain.Earthquake, error) {
	start := time.Now()
	quakes, err := c.fetch(ctx, rawURL)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(domain.FetchErrorKind(err).String()).Inc()
		c.logger.Warn("earthquake fetch failed", "url", rawURL, "error", err)
		return nil, err
	}

	c.metrics.FetchRequests.WithLabelValues("success").Inc()
	c.metrics.RecordsParsed.Add(float64(len(quakes)))
	c.metrics.FeedSize.Observe(float64(len(quakes)))
	c.logger.Debug("earthquake fetch complete", "url", rawURL, "count", len(quakes))
	return quakes, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]domain.Earthquake, error) {
	u, err := parseRequestURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.NewFetchError(domain.KindInvalidURL, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(domain.KindNetwork, fmt.Errorf("feed request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewFetchError(domain.KindNetwork,
			fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(domain.KindNetwork, fmt.Errorf("read response: %w", err))
	}

	return ParseFeed(body)
}

// parseRequestURL rejects anything that is not an absolute http(s) URL.
func parseRequestURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, domain.NewFetchError(domain.KindInvalidURL, errors.New("empty url"))
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewFetchError(domain.KindInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.NewFetchError(domain.KindInvalidURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.NewFetchError(domain.KindInvalidURL, errors.New("missing host"))
	}
	return u, nil
}
