package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingProvider memoizes completions by request content. Requests with a
// temperature above MaxTemperature bypass the cache.
type CachingProvider struct {
	provider Provider
	cache    *lru.Cache[string, CompletionResponse]

	// MaxTemperature is the highest temperature considered repeatable.
	MaxTemperature float64
}

// NewCachingProvider wraps provider with an LRU of size entries.
func NewCachingProvider(provider Provider, size int) (*CachingProvider, error) {
	cache, err := lru.New[string, CompletionResponse](size)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{provider: provider, cache: cache, MaxTemperature: 1}, nil
}

// Name returns the wrapped provider's name.
func (p *CachingProvider) Name() string { return p.provider.Name() }

// Complete serves a cached response for an identical request, otherwise
// forwards it and caches the answer.
func (p *CachingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Temperature != nil && *req.Temperature > p.MaxTemperature {
		return p.provider.Complete(ctx, req)
	}
	key := cacheKey(req)
	if resp, ok := p.cache.Get(key); ok {
		return &resp, nil
	}
	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, *resp)
	return resp, nil
}

// Len returns the number of cached responses.
func (p *CachingProvider) Len() int { return p.cache.Len() }

func cacheKey(req CompletionRequest) string {
	payload, _ := json.Marshal(struct {
		Messages    []Message
		Model       string
		Temperature *float64
		MaxTokens   *int
	}{req.Messages, req.Model, req.Temperature, req.MaxTokens})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
