package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/lexbrief/internal/cache"
	"github.com/ppiankov/lexbrief/internal/logger"
)

// CachedProvider memoises identical completion requests
type CachedProvider struct {
	inner Provider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps inner with a response cache
func NewCachedProvider(inner Provider, c cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete returns a cached response for an identical request, otherwise
// calls the wrapped provider. Only non-empty responses that pass
// req.Accept are cached, so a rejected answer is retried next time.
func (p *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := cache.Key("llm", p.inner.Name(), req.Model, req.System, req.Prompt,
		strconv.Itoa(req.MaxTokens), strconv.FormatFloat(float64(req.Temperature), 'g', -1, 32))

	if data, ok := p.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			logger.Debug("llm cache hit (%s)", p.inner.Name())
			return &resp, nil
		}
	}

	resp, err := p.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if !cacheable(req, resp) {
		logger.Debug("llm response not cached (%s)", p.inner.Name())
		return resp, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode cached response: %w", err)
	}
	if err := p.cache.Set(key, data, p.ttl); err != nil {
		logger.Warn("llm cache write failed: %v", err)
	}
	return resp, nil
}

func cacheable(req CompletionRequest, resp *CompletionResponse) bool {
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return false
	}
	return req.Accept == nil || req.Accept(resp.Content) == nil
}
