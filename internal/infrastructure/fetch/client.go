package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

const maxBodyBytes = 4 << 20

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Config holds content proxy settings
type Config struct {
	ProxyURL        string // prefix prepended to the page URL; empty means direct fetch
	Timeout         time.Duration
	MaxContentChars int
	PerSecond       float64
}

// Client fetches cleaned page text through the content-fetch proxy
type Client struct {
	httpClient  *http.Client
	proxyURL    string
	maxChars    int
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new content fetch client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxChars := cfg.MaxContentChars
	if maxChars <= 0 {
		maxChars = 20000
	}
	perSecond := cfg.PerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		proxyURL:    cfg.ProxyURL,
		maxChars:    maxChars,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		logger:      logger.Named("fetch"),
	}
}

// Fetch returns the readable text of pageURL. HTML responses are run through
// readability extraction; anything else is treated as already-cleaned text.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url %q", domain.ErrFetchFailed, pageURL)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.proxyURL+pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "Outfitter/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteCallDuration.WithLabelValues("fetch", "page").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "error").Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "error").Inc()
		return "", fmt.Errorf("%w: status %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "error").Inc()
		return "", fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}

	text := string(body)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		article, err := readability.FromReader(bytes.NewReader(body), parsed)
		if err != nil {
			c.logger.Debug("readability failed", zap.String("url", pageURL), zap.Error(err))
			metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "error").Inc()
			return "", fmt.Errorf("%w: readability: %v", domain.ErrFetchFailed, err)
		}
		text = article.TextContent
	}

	text = normalizeText(text, c.maxChars)
	if text == "" {
		metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "error").Inc()
		return "", fmt.Errorf("%w: empty page", domain.ErrFetchFailed)
	}

	metrics.RemoteCallsTotal.WithLabelValues("fetch", "page", "ok").Inc()
	return text, nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 256)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// normalizeText collapses whitespace and truncates to maxChars runes
func normalizeText(s string, maxChars int) string {
	s = strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
	r := []rune(s)
	if len(r) > maxChars {
		return string(r[:maxChars])
	}
	return s
}
