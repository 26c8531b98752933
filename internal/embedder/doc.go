// Package embedder generates vector embeddings for document sections.
//
// Providers: OpenAI and Jina AI (both through the OpenAI-compatible /embeddings
// endpoint) and a deterministic local provider for offline runs and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai", APIKey: key})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: embedder.NormalizeInput(section.Content),
//	})
//	fmt.Println(len(result.Vector), result.Usage.TotalTokens)
//
// # Provider Selection
//
//  1. Config.Provider if set
//  2. OPENAI_API_KEY present -> openai
//  3. JINA_API_KEY present -> jina
//  4. local
//
// # Limits and Retries
//
// A Limiter (token bucket plus in-flight semaphore) is shared by all workers so
// concurrent indexing stays within the provider's rate limits. HTTP 429, 5xx and
// transport errors are retried with exponential backoff up to RetryConfig.MaxRetries
// attempts; other failures return immediately. All failures are *types.ProviderError.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by the SHA-256 of the input text, so
// unchanged sections of an edited document are not sent to the provider again.
package embedder
