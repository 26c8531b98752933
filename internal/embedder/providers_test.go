package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func writeEmbedding(t *testing.T, w http.ResponseWriter, vector []float32, tokens int) {
	t.Helper()
	resp := map[string]interface{}{
		"model": "test-model",
		"data": []map[string]interface{}{
			{"index": 0, "embedding": vector},
		},
		"usage": map[string]interface{}{"prompt_tokens": tokens, "total_tokens": tokens},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestAPIProvider_GenerateEmbedding(t *testing.T) {
	var gotInput []string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotInput = body.Input
		assert.Equal(t, "custom-model", body.Model)

		writeEmbedding(t, w, []float32{0.1, 0.2}, 5)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("test-key", nil, WithBaseURL(server.URL), WithModel("custom-model"), WithRetry(fastRetry()))
	require.NoError(t, err)
	defer p.Close()

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello world"})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2}, emb.Vector)
	assert.Equal(t, 2, emb.Dimension)
	assert.Equal(t, 5, emb.Usage.TotalTokens)
	assert.Equal(t, ProviderOpenAI, emb.Provider)
	assert.Equal(t, ComputeHash("hello world"), emb.Hash)
	assert.Equal(t, []string{"hello world"}, gotInput)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestAPIProvider_CacheHit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEmbedding(t, w, []float32{1, 2, 3}, 3)
	}))
	defer server.Close()

	p, err := NewJinaProvider("k", NewCache(10), WithBaseURL(server.URL))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
	require.NoError(t, err)
	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []float32{1, 2, 3}, emb.Vector)
	assert.Equal(t, ProviderJina, emb.Provider)
}

func TestAPIProvider_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeEmbedding(t, w, []float32{0.5}, 1)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("k", nil, WithBaseURL(server.URL), WithRetry(fastRetry()))
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, emb.Vector)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAPIProvider_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("k", nil, WithBaseURL(server.URL), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.Error(t, err)

	var perr *types.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.True(t, errors.Is(err, ErrProviderFailed))
	assert.Equal(t, int32(3), calls.Load())
}

func TestAPIProvider_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"input too long"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("k", nil, WithBaseURL(server.URL), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.Error(t, err)

	var perr *types.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.False(t, perr.Retryable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIProvider_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>"},
		{name: "no data", body: `{"data":[],"model":"m"}`},
		{name: "empty vector", body: `{"data":[{"index":0,"embedding":[]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, err := NewOpenAIProvider("k", nil, WithBaseURL(server.URL), WithRetry(fastRetry()))
			require.NoError(t, err)

			_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestAPIProvider_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbedding(t, w, []float32{1}, 1)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("k", nil, WithBaseURL(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAPIProvider_EmptyText(t *testing.T) {
	p, err := NewOpenAIProvider("k", nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: ""})
	assert.True(t, errors.Is(err, ErrEmptyText))
}

func TestAPIProvider_Metadata(t *testing.T) {
	p, err := NewJinaProvider("k", nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, p.Provider())
	assert.Equal(t, DefaultJinaModel, p.Model())
	assert.Equal(t, JinaDimension, p.Dimension())

	p, err = NewOpenAIProvider("k", nil, WithDimension(3072), WithModel("text-embedding-3-large"))
	require.NoError(t, err)
	assert.Equal(t, 3072, p.Dimension())
	assert.Equal(t, "text-embedding-3-large", p.Model())
}

func TestNewAPIProvider_MissingKey(t *testing.T) {
	_, err := NewOpenAIProvider("", nil)
	assert.True(t, errors.Is(err, ErrNoProviderEnabled))
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	c, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "world"})
	require.NoError(t, err)

	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, a.Vector, b.Vector)
	assert.NotEqual(t, a.Vector, c.Vector)
	assert.Equal(t, 1, a.Usage.TotalTokens)
}
