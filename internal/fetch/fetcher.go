// Package fetch implements the page fetcher using gocolly. Redirects are
// never followed and non-2xx statuses are returned as responses, so
// callers can classify 3xx, 404 and 5xx individually.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/metrics"
)

const maxAttempts = 3

// Fixed backoff between retry attempts. Transport failures, 429 and 5xx
// are retried; any other status is returned to the caller as-is.
var backoffs = []time.Duration{1 * time.Second, 3 * time.Second, 7 * time.Second}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Response is one completed HTTP exchange. A non-2xx status is a valid
// Response, not an error.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches single pages with a cloned collector per request.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	// Hold the first 3xx instead of following it; the status reaches
	// OnResponse and the caller decides what a redirect means.
	c.SetRedirectHandler(func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	})

	return &Fetcher{cfg: cfg, base: c, logger: logger}
}

// Get performs a single GET attempt.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	var (
		result   *Response
		fetchErr error
	)
	start := time.Now()

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		result = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if result == nil {
		return nil, fmt.Errorf("fetch %s: no response", url)
	}
	return result, nil
}

// GetRetry fetches with the fixed retry policy, returning the last
// response or error once attempts are exhausted.
func (f *Fetcher) GetRetry(ctx context.Context, url string) (*Response, error) {
	var (
		lastResp *Response
		lastErr  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := f.Get(ctx, url)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastResp, lastErr = resp, err

		if attempt < maxAttempts {
			metrics.ObserveFetchRetry()
			f.logger.Debug("fetch retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if err := sleepCtx(ctx, backoffs[attempt-1]); err != nil {
				return nil, err
			}
		}
	}
	return lastResp, lastErr
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
