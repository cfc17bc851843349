// Package reranker re-scores similarity search candidates with lexical
// signals to improve retrieval quality.
package reranker

import (
	"context"

	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// Scored is a candidate annotated with re-ranking scores.
type Scored struct {
	store.Candidate
	// LexicalScore is the normalized lexical relevance in [0, 1]. It
	// decides the final ordering.
	LexicalScore float64
	// OriginalRank is the candidate's position in the similarity search
	// results (0-indexed).
	OriginalRank int
}

// Reranker orders candidates by relevance to a query.
type Reranker interface {
	// Rerank scores candidates against the query and returns the topK
	// best, sorted by LexicalScore descending. Ties keep the original
	// similarity search order. Only the candidates passed in are scored;
	// no further lookups happen.
	Rerank(ctx context.Context, query string, candidates []store.Candidate, topK int) ([]Scored, error)
}
