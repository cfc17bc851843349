// Package embeddings maps text to fixed-dimension dense vectors.
//
// Embedding is an external concern: the provider interface hides whether
// vectors come from a local Ollama instance or any OpenAI-compatible server.
// Batches are order-preserving and a provider failure aborts the enclosing
// operation; no degenerate vectors are ever substituted.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrUnavailable indicates the embedding provider cannot be reached or
	// rejected the request. The enclosing ingestion or query aborts.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch indicates the provider produced vectors whose
	// dimensionality differs from the configured system-wide dimension.
	// This is a configuration error, detected at startup.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DefaultBatchSize is the number of texts sent per provider call when the
// caller does not configure one.
const DefaultBatchSize = 32

// Provider generates vector embeddings from text.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, batched up to
	// the configured batch size. Output order matches input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed embedding dimensionality.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for an embedding provider.
type Config struct {
	// BaseURL is the provider endpoint (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimension is the system-wide embedding dimensionality. Every stored
	// chunk vector and every query vector must have exactly this size.
	Dimension int

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dimension)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	return nil
}
