package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

// Generator produces text from a prompt, pushing pieces through emit as they
// arrive from the model.
type Generator interface {
	Generate(ctx context.Context, prompt string, emit func(string) error) error
	// Ping verifies the model backend is reachable.
	Ping(ctx context.Context) error
	// Model names the configured chat model.
	Model() string
}

// GeneratorConfig holds chat model settings.
type GeneratorConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaGenerator streams completions from a local Ollama server.
type OllamaGenerator struct {
	llm     *ollama.LLM
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a Generator backed by Ollama.
func NewOllamaGenerator(cfg GeneratorConfig, logger *zap.Logger) (*OllamaGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	logger.Info("chat model configured",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))

	return &OllamaGenerator{
		llm:     llm,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, emit func(string) error) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return emit(string(chunk))
		}))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

// Ping probes the Ollama tag listing endpoint; the client library exposes no
// health call of its own.
func (g *OllamaGenerator) Ping(ctx context.Context) error {
	u, err := url.JoinPath(g.baseURL, "/api/tags")
	if err != nil {
		return fmt.Errorf("build health url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("model backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model backend returned status %d", resp.StatusCode)
	}
	return nil
}

func (g *OllamaGenerator) Model() string { return g.model }
