// Package fetcher retrieves a unit's balance page and extracts the remaining
// kWh from it. The target pages are built for mobile browsers and reject
// obvious bots, so every request carries a browser-like header set.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultPattern matches a signed decimal number followed by the "度" (kWh)
// suffix. The first capture group is the value.
const DefaultPattern = `([+-]?\d+(?:\.\d+)?)\s*度`

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Mobile Safari/537.36"
	maxBodyBytes     = 2 << 20
)

// ErrBalanceNotFound is returned when the page loads but carries no balance.
var ErrBalanceNotFound = errors.New("balance not found in page")

// ClientConfig holds fetcher tuning.
type ClientConfig struct {
	Timeout   time.Duration // per request
	Delay     time.Duration // courtesy pause before each request
	Pattern   string        // balance regex, DefaultPattern when empty
	UserAgent string        // defaultUserAgent when empty
}

// Client fetches balance pages.
type Client struct {
	httpClient *http.Client
	pattern    *regexp.Regexp
	delay      time.Duration
}

// browserTransport stamps browser headers on every outgoing request.
type browserTransport struct {
	transport http.RoundTripper
	userAgent string
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	return t.transport.RoundTrip(req)
}

// NewClient creates a new balance page client
func NewClient(cfg ClientConfig) (*Client, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid balance pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("balance pattern %q must have a capture group", pattern)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &browserTransport{transport: http.DefaultTransport, userAgent: ua},
			Timeout:   timeout,
		},
		pattern: re,
		delay:   cfg.Delay,
	}, nil
}

// Fetch performs one GET against url and returns the balance in kWh. Any
// failure is returned as an error; callers treat it as "no reading".
func (c *Client) Fetch(ctx context.Context, url string) (float64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch balance page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance page returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to read balance page: %w", err)
	}
	text, err := decodeBody(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return 0, fmt.Errorf("failed to decode balance page: %w", err)
	}

	kwh, ok := c.Extract(text)
	if !ok {
		return 0, ErrBalanceNotFound
	}
	return kwh, nil
}

// Extract finds the first balance in text.
func (c *Client) Extract(text string) (float64, bool) {
	m := c.pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// decodeBody converts a page to UTF-8 when the header, a BOM or a meta tag
// declares another charset (many campus systems still serve GBK). The
// windows-1252 guess for undeclared pages is ignored: they are read as UTF-8.
func decodeBody(data []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if name == "utf-8" || (!certain && name == "windows-1252") {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
