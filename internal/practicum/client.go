// Package practicum talks to the homework-review status API.
package practicum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reviewbot/internal/apperr"
	logx "reviewbot/pkg/logx"
)

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client issues one authenticated GET per call. It never retries;
// the poll loop retries on its next cycle.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// WithHTTPClient swaps the underlying transport (tests, proxies).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// GetAPIAnswer fetches submissions changed since fromDate (Unix seconds) and
// returns the decoded JSON body as-is. JSON numbers are kept as json.Number.
func (c *Client) GetAPIAnswer(ctx context.Context, fromDate int64) (any, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, apperr.UpstreamRequest(fmt.Errorf("endpoint: %w", err))
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(fromDate, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, apperr.UpstreamRequest(err)
	}
	req.Header.Set("Authorization", "OAuth "+strings.TrimSpace(c.cfg.Token))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.UpstreamRequest(err)
	}
	defer resp.Body.Close()

	c.log.Debug("api response",
		logx.Int("status", resp.StatusCode),
		logx.Int64("from_date", fromDate),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, apperr.UpstreamStatus(resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, apperr.UpstreamRequest(fmt.Errorf("decode body: %w", err))
	}
	return payload, nil
}
