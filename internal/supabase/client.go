// Package supabase implements a thin retrying client for the Supabase
// PostgREST surface: remote procedure calls plus the handful of table
// operations the pipeline needs (read-one, upsert, insert, delete-where).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxAttempts = 3

// Fixed backoff between attempts. Transport failures, 429 and 5xx are
// retried; any other 4xx is surfaced immediately.
var backoffs = []time.Duration{1 * time.Second, 3 * time.Second, 7 * time.Second}

// APIError is a non-retryable (or retry-exhausted) HTTP failure from the
// backend, carrying the final status and response body.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.Status, e.Body)
}

// Client talks to one Supabase project using the service-role key.
type Client struct {
	baseURL string
	key     string
	httpc   *http.Client
	logger  *zap.Logger
}

// New builds a Client. The timeout applies per request attempt.
func New(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     serviceKey,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// RPC invokes a named stored procedure. An empty or "null" response body
// maps to nil, meaning "no result".
func (c *Client) RPC(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc %s payload: %w", name, err)
	}
	url := c.baseURL + "/rest/v1/rpc/" + name
	body, err := c.do(ctx, "rpc "+name, http.MethodPost, url, data, nil)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// SelectOne returns the first row of a filtered read, or nil when the
// filter matches nothing.
func (c *Client) SelectOne(ctx context.Context, table, query string) (json.RawMessage, error) {
	url := c.baseURL + "/rest/v1/" + table + "?" + query
	body, err := c.do(ctx, "select "+table, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("select %s: decode rows: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Upsert inserts rows, merging on conflict over the given column set.
func (c *Client) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal upsert %s rows: %w", table, err)
	}
	url := c.baseURL + "/rest/v1/" + table + "?on_conflict=" + onConflict
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	_, err = c.do(ctx, "upsert "+table, http.MethodPost, url, data, headers)
	return err
}

// Insert appends rows. An empty row set is a no-op and issues no request.
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal insert %s rows: %w", table, err)
	}
	if s := string(data); s == "[]" || s == "null" {
		return nil
	}
	headers := map[string]string{"Prefer": "return=minimal"}
	_, err = c.do(ctx, "insert "+table, http.MethodPost, c.baseURL+"/rest/v1/"+table, data, headers)
	return err
}

// DeleteWhere removes every row matching the filter query.
func (c *Client) DeleteWhere(ctx context.Context, table, filter string) error {
	url := c.baseURL + "/rest/v1/" + table + "?" + filter
	headers := map[string]string{"Prefer": "return=minimal"}
	_, err := c.do(ctx, "delete "+table, http.MethodDelete, url, nil, headers)
	return err
}

// do executes one operation under the retry policy and returns the
// response body on success. The request body is rebuilt per attempt.
func (c *Client) do(ctx context.Context, op, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		respBody, status, err := c.doOnce(ctx, method, url, body, headers)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%s: %w", op, err)
		case status < 400:
			return respBody, nil
		default:
			apiErr := &APIError{Op: op, Status: status, Body: string(respBody)}
			if status != http.StatusTooManyRequests && status < 500 {
				return nil, apiErr
			}
			lastErr = apiErr
		}

		if attempt < maxAttempts {
			c.logger.Debug("backend call retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := sleepCtx(ctx, backoffs[attempt-1]); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
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
