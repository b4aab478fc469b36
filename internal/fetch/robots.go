package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/lexbrief/internal/logger"
)

// robotsRule is the decision for one URL
type robotsRule struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker evaluates robots.txt, keeping one parsed file per host
type RobotsChecker struct {
	mu     sync.Mutex
	hosts  map[string]*robotstxt.RobotsData
	client *http.Client
	agent  string
}

// NewRobotsChecker creates a checker that fetches robots.txt through client
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		hosts:  make(map[string]*robotstxt.RobotsData),
		client: client,
		agent:  productToken(userAgent),
	}
}

// Check decides whether u may be fetched. An unreachable or unparsable
// robots.txt allows everything.
func (r *RobotsChecker) Check(ctx context.Context, u *url.URL) robotsRule {
	data := r.load(ctx, u)
	if data == nil {
		return robotsRule{Allowed: true}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	rule := robotsRule{Allowed: data.TestAgent(path, r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		rule.CrawlDelay = group.CrawlDelay
	}
	return rule
}

func (r *RobotsChecker) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	r.mu.Lock()
	data, ok := r.hosts[u.Host]
	r.mu.Unlock()
	if ok {
		return data
	}

	data, err := r.fetch(ctx, fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host))
	if err != nil {
		logger.Debug("robots.txt for %s unavailable: %v", u.Host, err)
		if ctx.Err() != nil {
			return nil
		}
	}

	// Failures are remembered too so a host is asked once
	r.mu.Lock()
	r.hosts[u.Host] = data
	r.mu.Unlock()
	return data
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return robotstxt.FromResponse(resp)
}

// productToken reduces "lexbrief/0.1 (+url)" to "lexbrief" for group matching
func productToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.SplitN(parts[0], "/", 2)[0]
}
