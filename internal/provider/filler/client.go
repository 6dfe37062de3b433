// Package filler implements the upstream filler/canon dataset sources.
package filler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mydehq/anitrack/internal/types"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps an upstream response. Larger bodies are rejected whole.
var maxBodyBytes int64 = 8 << 20

// client is the HTTP plumbing shared by both sources
type client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *log.Logger
}

func newClient(cfg types.UpstreamConfig, logger *log.Logger) client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}

	if logger == nil {
		logger = log.New(io.Discard)
	}

	return client{
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: ua,
		logger:    logger,
	}
}

// get performs one paced GET and returns the body of a 200 response
func (c client) get(ctx context.Context, service, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.ErrAPIError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status for %s", url),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return nil, fmt.Errorf("response for %s exceeds %d bytes", url, maxBodyBytes)
	}
	return body, nil
}
