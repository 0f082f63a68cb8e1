package providers

import (
	"context"
	"fmt"

	"github.com/tombee/squash/pkg/errors"
	"github.com/tombee/squash/pkg/llm"
)

// Options selects and configures a provider chain.
type Options struct {
	// Provider is anthropic, gemini or offline.
	Provider string
	Model    string

	AnthropicAPIKey string
	GeminiAPIKey    string

	// CacheSize bounds the response cache. Zero disables caching.
	CacheSize int

	// Retry configures retries for remote providers. Nil uses the defaults.
	Retry *llm.RetryConfig

	// Tracker, when set, records token usage of every completion.
	Tracker *llm.UsageTracker
}

// New builds the provider named by opts and wraps it as
// tracking(cache(retry(provider))). The offline provider is never retried.
func New(ctx context.Context, opts Options) (llm.Provider, error) {
	var (
		base   llm.Provider
		remote = true
	)
	switch opts.Provider {
	case "anthropic":
		p, err := NewAnthropicProvider(opts.AnthropicAPIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		base = p
	case "gemini":
		p, err := NewGeminiProvider(ctx, opts.GeminiAPIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		base = p
	case "offline", "":
		base = NewOfflineProvider()
		remote = false
	default:
		return nil, &errors.ConfigError{
			Key:    "LLM_PROVIDER",
			Reason: fmt.Sprintf("unknown provider %q", opts.Provider),
		}
	}

	p := base
	if remote {
		cfg := llm.DefaultRetryConfig()
		if opts.Retry != nil {
			cfg = *opts.Retry
		}
		p = llm.NewRetryableProvider(p, cfg)
	}
	if opts.CacheSize > 0 {
		cached, err := llm.NewCachingProvider(p, opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "creating response cache")
		}
		p = cached
	}
	if opts.Tracker != nil {
		p = llm.NewTrackingProvider(p, opts.Tracker)
	}
	return p, nil
}
