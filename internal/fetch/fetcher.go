// Package fetch downloads remote documents for the knowledge index.
// Requests honour robots.txt and a per-host rate, and bodies are cached by URL.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/lexbrief/internal/cache"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// ErrDisallowed is returned when robots.txt forbids the URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Options configures a Fetcher
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	PerHostRate   float64 // Requests per second per host, 0 disables limiting
	HTTPProxy     string
	HTTPSProxy    string
	Cache         cache.Cache // Optional
	CacheTTL      time.Duration
}

// OptionsFromConfig builds fetch options from the HTTP section of the config
func OptionsFromConfig(cfg model.HTTPConfig) Options {
	return Options{
		Timeout:       cfg.Timeout,
		UserAgent:     cfg.UserAgent,
		MaxBytes:      cfg.MaxBodyBytes,
		RespectRobots: cfg.RespectRobots,
		PerHostRate:   cfg.PerHostRate,
		HTTPProxy:     cfg.HTTPProxy,
		HTTPSProxy:    cfg.HTTPSProxy,
	}
}

// Fetcher retrieves remote documents
type Fetcher struct {
	httpClient *http.Client
	robots     *RobotsChecker
	limiter    *HostLimiter
	cache      cache.Cache
	cacheTTL   time.Duration
	userAgent  string
	maxBytes   int64
}

// Result is a fetched document body
type Result struct {
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	FinalURL    string `json:"final_url"`
	FromCache   bool   `json:"-"`
}

// NewFetcher creates a new Fetcher with the given options
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "lexbrief/0.1"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy)

	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(f.httpClient, opts.UserAgent)
	}
	f.limiter = NewHostLimiter(opts.PerHostRate)
	return f
}

// Fetch downloads rawURL. There are no retries: a failed fetch is reported to the caller.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	key := cache.Key("fetch", rawURL)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				logger.Debug("fetch cache hit: %s", rawURL)
				cached.FromCache = true
				return &cached, nil
			}
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	if f.robots != nil {
		rule := f.robots.Check(ctx, u)
		if !rule.Allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		f.limiter.ApplyCrawlDelay(u.Host, rule.CrawlDelay)
	}

	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,text/html,application/xhtml+xml,*/*;q=0.8")

	logger.Debug("fetching %s", rawURL)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", f.maxBytes)
	}

	result := &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}

	if f.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := f.cache.Set(key, data, f.cacheTTL); err != nil {
				logger.Warn("cache write failed for %s: %v", rawURL, err)
			}
		}
	}

	return result, nil
}
