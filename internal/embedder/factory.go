package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local; empty auto-detects from API keys
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
	CacheSize int // 0 disables the cache

	// Limits shared by every worker using this embedder
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int

	Retry RetryConfig
}

// New creates an embedder with explicit configuration.
// When APIKey is empty the provider's environment variable is consulted.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := DetectProvider(cfg)

	opts := []Option{
		WithModel(cfg.Model),
		WithBaseURL(cfg.BaseURL),
		WithDimension(cfg.Dimension),
		WithTimeout(cfg.Timeout),
		WithRetry(cfg.Retry),
		WithLimiter(NewLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.MaxConcurrent)),
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(apiKey(cfg.APIKey, EnvJinaAPIKey), cache, opts...)
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey(cfg.APIKey, EnvOpenAIAPIKey), cache, opts...)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use for cfg.
// Priority: explicit cfg.Provider, then OPENAI_API_KEY, then JINA_API_KEY, then local.
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}

	return ProviderLocal
}

func apiKey(configured, envKey string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envKey)
}
