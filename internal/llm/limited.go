package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// LimitedProvider shares one request quota across every caller
type LimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewLimitedProvider allows requestsPerSecond completions with a burst of one
func NewLimitedProvider(inner Provider, requestsPerSecond float64) *LimitedProvider {
	return &LimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Name returns the wrapped provider's name
func (p *LimitedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *LimitedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete waits for quota, then calls the wrapped provider once
func (p *LimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit: %w", err)
	}
	return p.inner.Complete(ctx, req)
}
