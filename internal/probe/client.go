package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config controls the probe HTTP client.
type Config struct {
	// Timeout bounds every individual probe request.
	Timeout time.Duration
	// UserAgent identifies the indexer to the servers it probes.
	UserAgent string
	// Scheme overrides https, for tests against local listeners only.
	Scheme string
	// RequestsPerSecond throttles probes per target host. Zero disables
	// throttling.
	RequestsPerSecond float64
	// Burst is the per-host token bucket size when throttling is on.
	Burst int
}

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "mxindex/0.1"
	maxBodyBytes     = 1 << 20
)

// client wraps http.Client with the JSON-document semantics every probe
// shares: bounded body, success status required, validated decode.
type client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	scheme    string
	limiter   *limiter
}

func newClient(cfg Config) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return &client{
		http:      &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: ua,
		scheme:    scheme,
		limiter:   newLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// getJSON fetches path from host and decodes the body into out. Any network
// error, non-2xx status, or undecodable body is returned as an error; callers
// translate that into field absence.
func (c *client) getJSON(ctx context.Context, host, path string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.wait(reqCtx, host); err != nil {
		return err
	}

	url := c.scheme + "://" + host + path

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
