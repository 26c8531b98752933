package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/docindex/pkg/types"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Default endpoints (POST {base}/embeddings)
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 30 * time.Second

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// Environment variables consulted when no API key is configured
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Option customizes an APIProvider
type Option func(*APIProvider)

// WithModel overrides the default model
func WithModel(model string) Option {
	return func(p *APIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) Option {
	return func(p *APIProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithDimension overrides the advertised embedding dimension
func WithDimension(dim int) Option {
	return func(p *APIProvider) {
		if dim > 0 {
			p.dimension = dim
		}
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(p *APIProvider) {
		if timeout > 0 {
			p.httpClient.Timeout = timeout
		}
	}
}

// WithLimiter shares a request limiter with the provider
func WithLimiter(l *Limiter) Option {
	return func(p *APIProvider) {
		p.limiter = l
	}
}

// WithRetry sets the retry policy for transient failures
func WithRetry(cfg RetryConfig) Option {
	return func(p *APIProvider) {
		p.retry = cfg.withDefaults()
	}
}

// APIProvider implements Embedder for OpenAI-compatible embedding endpoints.
// OpenAI and Jina AI share the same request and response format.
type APIProvider struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	limiter    *Limiter
	retry      RetryConfig
}

func newAPIProvider(name, apiKey, envKey, model, baseURL string, dim int, cache *Cache, opts []Option) (*APIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, envKey)
	}

	p := &APIProvider{
		name:      name,
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: dim,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(apiKey string, cache *Cache, opts ...Option) (*APIProvider, error) {
	return newAPIProvider(ProviderOpenAI, apiKey, EnvOpenAIAPIKey, DefaultOpenAIModel,
		DefaultOpenAIBaseURL, OpenAIDimension, cache, opts)
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey string, cache *Cache, opts ...Option) (*APIProvider, error) {
	return newAPIProvider(ProviderJina, apiKey, EnvJinaAPIKey, DefaultJinaModel,
		DefaultJinaBaseURL, JinaDimension, cache, opts)
}

func (p *APIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, &types.ProviderError{Provider: p.name, Err: err}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	hash := ComputeHash(req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(model, hash); ok {
			return emb, nil
		}
	}

	emb, attempts, err := retryWithBackoff(ctx, p.retry, func() (*Embedding, error) {
		return p.callAPI(ctx, req.Text, model)
	})
	if err != nil {
		var perr *types.ProviderError
		if errors.As(err, &perr) {
			return nil, &types.ProviderError{
				Provider:   perr.Provider,
				StatusCode: perr.StatusCode,
				Retryable:  perr.Retryable,
				Err:        fmt.Errorf("%w after %d attempts: %w", ErrProviderFailed, attempts, perr.Err),
			}
		}
		return nil, &types.ProviderError{Provider: p.name, Err: err}
	}

	emb.Hash = hash
	if p.cache != nil {
		p.cache.Set(model, hash, emb)
	}

	return emb, nil
}

// embeddingResponse is the OpenAI-compatible response body
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *APIProvider) callAPI(ctx context.Context, text, model string) (*Embedding, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &types.ProviderError{Provider: p.name, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &types.ProviderError{Provider: p.name, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &types.ProviderError{
			Provider:  p.name,
			Retryable: ctx.Err() == nil,
			Err:       fmt.Errorf("api call: %w", err),
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &types.ProviderError{
			Provider:   p.name,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        fmt.Errorf("api error: %s", strings.TrimSpace(string(bodyBytes))),
		}
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &types.ProviderError{Provider: p.name, Err: fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)}
	}

	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, &types.ProviderError{Provider: p.name, Err: fmt.Errorf("%w: no embedding data", ErrMalformedResponse)}
	}

	vector := apiResp.Data[0].Embedding
	respModel := apiResp.Model
	if respModel == "" {
		respModel = model
	}

	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  p.name,
		Model:     respModel,
		Usage:     Usage{TotalTokens: apiResp.Usage.TotalTokens},
	}, nil
}

func (p *APIProvider) Dimension() int {
	return p.dimension
}

func (p *APIProvider) Provider() string {
	return p.name
}

func (p *APIProvider) Model() string {
	return p.model
}

func (p *APIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic hash-derived vectors without network access.
// It is meant for offline runs and tests, not for retrieval quality.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, &types.ProviderError{Provider: ProviderLocal, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.ProviderError{Provider: ProviderLocal, Err: err}
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(l.model, hash); ok {
			return emb, nil
		}
	}

	vector := make([]float32, LocalDimension)
	textHash := sha256.Sum256([]byte(req.Text))
	for i := 0; i < LocalDimension && i < len(textHash); i++ {
		vector[i] = float32(textHash[i]) / 255.0
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
		Usage:     Usage{TotalTokens: types.EstimateTokens(req.Text)},
	}

	if l.cache != nil {
		l.cache.Set(l.model, hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
