package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrMalformedResponse = errors.New("malformed embedding response")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Usage reports provider accounting for one request
type Usage struct {
	TotalTokens int
}

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
	Usage     Usage
}

// EmbeddingRequest represents a request to generate an embedding
type EmbeddingRequest struct {
	Text  string
	Model string // Optional: override default model
}

// Embedder generates vector embeddings for section text
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text.
	// Failures are returned as *types.ProviderError.
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// DefaultCacheSize is the number of embeddings NewCache keeps when given a
// non-positive size
const DefaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by model and content hash, so a section
// that reappears unchanged (a re-run after a failure, a forced pass) is not
// sent to the provider again. Entries are copied in and out.
type Cache struct {
	lru *lru.Cache[string, Embedding]
}

// NewCache creates a cache holding at most size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size
	c, _ := lru.New[string, Embedding](size)
	return &Cache{lru: c}
}

func cacheKey(model, hash string) string {
	return model + "\x00" + hash
}

// Get returns a copy of the embedding cached for model and hash
func (c *Cache) Get(model, hash string) (*Embedding, bool) {
	emb, ok := c.lru.Get(cacheKey(model, hash))
	if !ok {
		return nil, false
	}
	emb.Vector = slices.Clone(emb.Vector)
	return &emb, true
}

// Set caches a copy of emb under model and hash
func (c *Cache) Set(model, hash string, emb *Embedding) {
	stored := *emb
	stored.Vector = slices.Clone(emb.Vector)
	c.lru.Add(cacheKey(model, hash), stored)
}

// Len returns the number of cached embeddings
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache
func (c *Cache) Purge() {
	c.lru.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// NormalizeInput prepares section text for the provider: embedding models give
// better results when newlines are replaced with spaces.
func NormalizeInput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	return strings.ReplaceAll(text, "\n", " ")
}
