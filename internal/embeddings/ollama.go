package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

// DefaultBaseURL is the local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// Ollama generates embeddings through an Ollama server.
type Ollama struct {
	embedder *lcembeddings.EmbedderImpl
	cfg      Config
	logger   *zap.Logger
}

var _ Provider = (*Ollama)(nil)

// NewOllama creates an Ollama-backed embedding provider.
func NewOllama(cfg Config, logger *zap.Logger) (*Ollama, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client: %v", ErrUnavailable, err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm,
		lcembeddings.WithBatchSize(cfg.BatchSize),
		lcembeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating embedder: %v", ErrInvalidConfig, err)
	}

	return &Ollama{embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Warmup embeds a trivial input so the model is resident before the first
// real request, and verifies the provider's output dimensionality against
// the configured system-wide dimension.
func (o *Ollama) Warmup(ctx context.Context) error {
	vec, err := o.EmbedQuery(ctx, "warmup")
	if err != nil {
		return err
	}
	if len(vec) != o.cfg.Dimension {
		return fmt.Errorf("%w: model %q produced %d dimensions, configured %d",
			ErrDimensionMismatch, o.cfg.Model, len(vec), o.cfg.Dimension)
	}
	o.logger.Info("embedding model warmed up",
		zap.String("model", o.cfg.Model),
		zap.Int("dimension", o.cfg.Dimension))
	return nil
}

// EmbedDocuments generates embeddings for texts, preserving input order.
// The underlying embedder issues sequential batches of at most BatchSize.
func (o *Ollama) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (o *Ollama) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return vec, nil
}

// Dimension returns the configured embedding dimensionality.
func (o *Ollama) Dimension() int {
	return o.cfg.Dimension
}

// Close is a no-op: the Ollama client holds no persistent connections.
func (o *Ollama) Close() error {
	return nil
}
