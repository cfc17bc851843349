// Package retrieval runs hybrid search: semantic similarity narrows the
// corpus to a candidate superset, lexical re-ranking orders it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/embeddings"
	"github.com/matthias-truyzelaere/documindr/internal/reranker"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// ErrEmptyQuery is returned when the query is blank.
var ErrEmptyQuery = errors.New("query must not be empty")

const (
	// DefaultTopK is the number of chunks returned when the caller does
	// not specify one.
	DefaultTopK = 5

	// candidateMultiplier widens the similarity search so the lexical
	// pass has more to choose from. Clamped to [minMultiplier,
	// maxMultiplier].
	candidateMultiplier = 3
	minMultiplier       = 2
	maxMultiplier       = 4
)

// Result is the outcome of one retrieval pass.
type Result struct {
	Chunks []reranker.Scored
	// CandidateCount is the size of the similarity search superset the
	// chunks were chosen from.
	CandidateCount int
	// Elapsed is the wall time of the whole pass, embedding included.
	Elapsed time.Duration
}

// Retriever performs hybrid retrieval over the chunk store.
type Retriever struct {
	embedder embeddings.Provider
	store    store.Store
	reranker reranker.Reranker
	logger   *zap.Logger
}

// New creates a Retriever.
func New(embedder embeddings.Provider, st store.Store, rr reranker.Reranker, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: st, reranker: rr, logger: logger}
}

// Retrieve embeds the query, pulls a candidate superset by cosine
// similarity, re-ranks it lexically, and returns the topK best chunks. A
// non-nil scope restricts the search to one document. An empty corpus (or
// empty scope) yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, scope *uuid.UUID) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidateK := topK * clampMultiplier(candidateMultiplier)
	candidates, err := r.store.SimilaritySearch(ctx, vector, candidateK, scope)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(candidates) == 0 {
		return &Result{Chunks: []reranker.Scored{}, Elapsed: time.Since(start)}, nil
	}

	scored, err := r.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	elapsed := time.Since(start)
	r.logger.Debug("retrieval complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(scored)),
		zap.Duration("elapsed", elapsed))

	return &Result{
		Chunks:         scored,
		CandidateCount: len(candidates),
		Elapsed:        elapsed,
	}, nil
}

func clampMultiplier(m int) int {
	if m < minMultiplier {
		return minMultiplier
	}
	if m > maxMultiplier {
		return maxMultiplier
	}
	return m
}
