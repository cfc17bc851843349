// Package rag assembles retrieved context and streams grounded answers and
// summaries from a chat model, with latency accounting.
package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/reranker"
	"github.com/matthias-truyzelaere/documindr/internal/retrieval"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// ErrEmptyQuery is returned when a chat query is blank.
var ErrEmptyQuery = errors.New("query must not be empty")

const (
	// noAnswerMessage is yielded verbatim when retrieval finds nothing.
	noAnswerMessage = "I cannot find this information in the provided text."

	// noContentMessage is yielded when a document has no chunks to
	// summarize.
	noContentMessage = "Unable to generate summary: no content found for this document."

	logQueryLimit = 100
)

// percentSpacing collapses "50 %" into "50%"; models trained on spaced
// corpora reintroduce the gap.
var percentSpacing = regexp.MustCompile(`(\d+)\s+%`)

func fixPercentSpacing(text string) string {
	return percentSpacing.ReplaceAllString(text, "$1%")
}

// Retriever is the slice of the retrieval API the service needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, scope *uuid.UUID) (*retrieval.Result, error)
}

// Answer is a streamed response plus the sources that grounded it. Sources
// are "filename:page:ordinal" references; empty for fallback answers.
type Answer struct {
	*Stream
	Sources []string
}

// ChatOptions tune a single chat request.
type ChatOptions struct {
	// TopK overrides the configured chunk count when positive.
	TopK int
	// DocumentID restricts retrieval to one document.
	DocumentID *uuid.UUID
}

// Service answers questions and summarizes documents over the ingested
// corpus.
type Service struct {
	retriever Retriever
	store     store.Store
	generator Generator
	metrics   *Metrics
	logger    *zap.Logger
	topK      int
}

// NewService creates the rag service. metrics may be nil to disable
// instrument recording; topK <= 0 selects retrieval.DefaultTopK.
func NewService(rt Retriever, st store.Store, gen Generator, metrics *Metrics, topK int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &Service{
		retriever: rt,
		store:     st,
		generator: gen,
		metrics:   metrics,
		logger:    logger,
		topK:      topK,
	}
}

// Chat retrieves context for the query and streams a grounded answer. When
// retrieval yields nothing the stream carries the fixed fallback message and
// the model is never invoked. A scoped request against an unknown document
// fails with store.ErrNotFound.
func (s *Service) Chat(ctx context.Context, query string, opts ChatOptions) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	s.metrics.recordRequest(ctx, "chat")

	if opts.DocumentID != nil {
		ok, err := s.store.DocumentExists(ctx, *opts.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("check document: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, *opts.DocumentID)
		}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}

	result, err := s.retriever.Retrieve(ctx, query, topK, opts.DocumentID)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return nil, ErrEmptyQuery
		}
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	s.metrics.recordRetrieval(ctx, result.Elapsed)

	if len(result.Chunks) == 0 {
		s.logger.Info("query received",
			zap.String("query", truncate(query, logQueryLimit)),
			zap.Int("results", 0))
		return &Answer{Stream: staticStream(ctx, noAnswerMessage)}, nil
	}

	sources := extractSources(result.Chunks)
	s.logger.Info("query received",
		zap.String("query", truncate(query, logQueryLimit)),
		zap.Strings("sources", sources),
		zap.Duration("retrieval", result.Elapsed))

	prompt := renderChatPrompt(buildScoredContext(result.Chunks), query)
	return &Answer{
		Stream:  s.generate(ctx, "chat", prompt),
		Sources: sources,
	}, nil
}

// Summarize streams a summary of one complete document at the requested
// length. All chunks are assembled in ordinal order; retrieval is bypassed.
func (s *Service) Summarize(ctx context.Context, documentID uuid.UUID, length SummaryLength) (*Answer, error) {
	s.metrics.recordRequest(ctx, "summary")

	ok, err := s.store.DocumentExists(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("check document: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, documentID)
	}

	chunks, err := s.store.AllChunksOrdered(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	s.logger.Info("summary requested",
		zap.String("document_id", documentID.String()),
		zap.String("length", string(length)),
		zap.Int("chunks", len(chunks)))

	if len(chunks) == 0 {
		return &Answer{Stream: staticStream(ctx, noContentMessage)}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	prompt := renderSummaryPrompt(length, buildContext(texts))
	return &Answer{Stream: s.generate(ctx, "summary", prompt)}, nil
}

// generate streams model output, trimming leading blank space off the first
// token, fixing percent spacing, and recording latency metrics.
func (s *Service) generate(ctx context.Context, kind, prompt string) *Stream {
	return newStream(ctx, func(ctx context.Context, emit func(string) error) error {
		start := time.Now()
		var firstAt time.Time
		total := 0

		err := s.generator.Generate(ctx, prompt, func(token string) error {
			if token == "" {
				return nil
			}
			if firstAt.IsZero() {
				firstAt = time.Now()
				token = strings.TrimLeft(token, "\n\r ")
				if token == "" {
					return nil
				}
			}
			total += len(token)
			return emit(fixPercentSpacing(token))
		})
		if err != nil {
			return err
		}

		elapsed := time.Since(start)
		ttft := elapsed
		genPhase := elapsed
		if !firstAt.IsZero() {
			ttft = firstAt.Sub(start)
			genPhase = time.Since(firstAt)
		}
		throughput := 0.0
		if genPhase > 0 {
			throughput = float64(total) / genPhase.Seconds()
		}
		s.metrics.recordGeneration(ctx, kind, ttft, elapsed, throughput)
		s.logger.Info("generation complete",
			zap.String("kind", kind),
			zap.Duration("response_time", elapsed),
			zap.Duration("first_token", ttft),
			zap.Float64("chars_per_second", throughput))
		return nil
	})
}

// buildScoredContext labels each retrieved chunk and joins them with a
// separator the model can attribute answers against.
func buildScoredContext(chunks []reranker.Scored) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return buildContext(texts)
}

func buildContext(texts []string) string {
	parts := make([]string, len(texts))
	for i, text := range texts {
		parts[i] = fmt.Sprintf("[Chunk %d]\n%s", i+1, text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// extractSources renders "filename:page:ordinal" references from chunk
// metadata.
func extractSources(chunks []reranker.Scored) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		name := "unknown"
		if source, ok := c.Metadata["source"].(string); ok && source != "" {
			name = filepath.Base(source)
		}
		out[i] = fmt.Sprintf("%s:%d:%d", name, metaInt(c.Metadata, "page"), c.Ordinal)
	}
	return out
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
