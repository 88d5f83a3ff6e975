package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

const maxAttempts = 3

// Config holds shopping search client settings
type Config struct {
	APIKey   string
	BaseURL  string
	Engine   string
	ProxyURL string // when set, the search URL is fetched through the content proxy
	PerHour  int    // provider requests allowed per hour
}

// Client handles communication with the shopping search provider
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	engine      string
	proxyURL    string
	rateLimiter *rate.Limiter
	backoffBase time.Duration
	logger      *zap.Logger
}

// NewClient creates a new search provider client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	perHour := cfg.PerHour
	if perHour <= 0 {
		perHour = 1000
	}
	engine := cfg.Engine
	if engine == "" {
		engine = "google_shopping"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		engine:      engine,
		proxyURL:    cfg.ProxyURL,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perHour)/3600), 10),
		backoffBase: 500 * time.Millisecond,
		logger:      logger.Named("search"),
	}
}

// exponentialBackoff returns the wait before the next attempt: base, 2*base, 4*base...
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// requestURL builds the provider URL, optionally wrapped by the content proxy
func (c *Client) requestURL(query string) string {
	params := url.Values{}
	params.Add("engine", c.engine)
	params.Add("q", query)
	params.Add("api_key", c.apiKey)

	target := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	if c.proxyURL != "" {
		return c.proxyURL + target
	}
	return target
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Outfitter/1.0")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTerminalRemote, err)
	}

	return resp, nil
}

// Search runs a shopping search. It returns an empty slice (not an error) when the
// provider reports zero results, and ErrMissingCredentials when no key is configured.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResultItem, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingCredentials
	}

	reqURL := c.requestURL(query)
	c.logger.Debug("search", zap.String("query", query), zap.Bool("proxied", c.proxyURL != ""))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, reqURL)
		metrics.RemoteCallDuration.WithLabelValues("search", "search").Observe(time.Since(start).Seconds())
		if err != nil {
			c.logger.Warn("request error", zap.Int("attempt", attempt), zap.Error(err))
			metrics.RemoteCallsTotal.WithLabelValues("search", "search", "error").Inc()
			return nil, err
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if readErr != nil {
			metrics.RemoteCallsTotal.WithLabelValues("search", "search", "error").Inc()
			return nil, fmt.Errorf("%w: read body: %v", domain.ErrTerminalRemote, readErr)
		}

		// Retry only on throttling and server errors
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("provider error, retrying",
				zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrTransientRemote, resp.StatusCode)
			if attempt < maxAttempts {
				if err := sleepCtx(ctx, exponentialBackoff(c.backoffBase, attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			metrics.RemoteCallsTotal.WithLabelValues("search", "search", "error").Inc()
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrTerminalRemote, resp.StatusCode, truncate(string(body), 200))
		}

		items, err := parseShoppingResponse(body)
		if err != nil {
			c.logger.Warn("decode error", zap.Error(err))
			metrics.RemoteCallsTotal.WithLabelValues("search", "search", "error").Inc()
			return nil, err
		}

		metrics.RemoteCallsTotal.WithLabelValues("search", "search", "ok").Inc()
		c.logger.Debug("search results", zap.String("query", query), zap.Int("count", len(items)))
		return items, nil
	}

	metrics.RemoteCallsTotal.WithLabelValues("search", "search", "error").Inc()
	c.logger.Warn("all retries failed", zap.String("query", query))
	return nil, lastErr
}

// parseShoppingResponse cuts the JSON object out of a (possibly proxied) text
// payload and maps it onto search result items.
func parseShoppingResponse(body []byte) ([]domain.SearchResultItem, error) {
	raw, ok := extractJSONObject(string(body))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in provider response", domain.ErrParse)
	}

	var sr shoppingResponse
	if err := json.Unmarshal([]byte(raw), &sr); err != nil {
		return nil, fmt.Errorf("%w: decode provider response: %v", domain.ErrParse, err)
	}

	if sr.Error != "" {
		if isZeroResultMessage(sr.Error) {
			return []domain.SearchResultItem{}, nil
		}
		return nil, fmt.Errorf("%w: provider error: %s", domain.ErrTerminalRemote, sr.Error)
	}

	return mapShoppingResults(sr.ShoppingResults), nil
}

// extractJSONObject returns the text between the first '{' and the last '}'
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func isZeroResultMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "hasn't returned any results") || strings.Contains(m, "no results")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
