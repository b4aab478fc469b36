package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per host with a burst of one. A robots.txt
// crawl delay can only slow a host down.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	rate  rate.Limit
}

// NewHostLimiter allows requestsPerSecond per host; <= 0 means unlimited
// until a crawl delay applies.
func NewHostLimiter(requestsPerSecond float64) *HostLimiter {
	r := rate.Inf
	if requestsPerSecond > 0 {
		r = rate.Limit(requestsPerSecond)
	}
	return &HostLimiter{hosts: make(map[string]*rate.Limiter), rate: r}
}

func (l *HostLimiter) host(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.rate, 1)
		l.hosts[host] = lim
	}
	return lim
}

// Wait blocks until host has a free slot or ctx is done
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.host(host).Wait(ctx)
}

// ApplyCrawlDelay lowers host's rate to one request per delay when that is slower
func (l *HostLimiter) ApplyCrawlDelay(host string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	lim := l.host(host)
	if every := rate.Every(delay); every < lim.Limit() {
		lim.SetLimit(every)
	}
}

// Rate reports the current rate for host
func (l *HostLimiter) Rate(host string) rate.Limit {
	return l.host(host).Limit()
}
