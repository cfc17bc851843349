package reranker

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// BM25 parameters. k1 controls term frequency saturation, b controls
// document length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Lexical scores candidates with BM25 over the candidate set itself. It is
// stateless; document frequencies are computed per call from the candidates
// alone, so scoring cost is bounded by the candidate superset size.
type Lexical struct{}

// NewLexical creates a Lexical reranker.
func NewLexical() *Lexical {
	return &Lexical{}
}

var _ Reranker = (*Lexical)(nil)

// Rerank scores each candidate with normalized BM25 lexical relevance and
// returns the topK best. Candidates with equal lexical scores keep their
// similarity search order; when the query yields no usable terms the
// original similarity order stands untouched.
func (r *Lexical) Rerank(ctx context.Context, query string, candidates []store.Candidate, topK int) ([]Scored, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	queryTerms := tokenize(query)

	scored := make([]Scored, len(candidates))
	docTerms := make([]map[string]int, len(candidates))
	totalLen := 0
	for i, c := range candidates {
		terms := tokenize(c.Content)
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		docTerms[i] = freq
		totalLen += len(terms)
		scored[i] = Scored{Candidate: c, OriginalRank: i}
	}

	if len(queryTerms) == 0 {
		return head(scored, topK), nil
	}

	avgLen := float64(totalLen) / float64(len(candidates))
	if avgLen == 0 {
		avgLen = 1
	}

	// Document frequency per query term across the candidate set.
	df := make(map[string]int, len(queryTerms))
	for _, t := range queryTerms {
		if _, seen := df[t]; seen {
			continue
		}
		for _, freq := range docTerms {
			if freq[t] > 0 {
				df[t]++
			}
		}
	}

	n := float64(len(candidates))
	maxLexical := 0.0
	lexical := make([]float64, len(candidates))
	for i, freq := range docTerms {
		docLen := 0
		for _, tf := range freq {
			docLen += tf
		}
		var score float64
		for t, termDF := range df {
			tf := float64(freq[t])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(termDF)+0.5)/(float64(termDF)+0.5))
			norm := bm25K1 * (1 - bm25B + bm25B*float64(docLen)/avgLen)
			score += idf * (tf * (bm25K1 + 1)) / (tf + norm)
		}
		lexical[i] = score
		if score > maxLexical {
			maxLexical = score
		}
	}

	for i := range scored {
		if maxLexical > 0 {
			scored[i].LexicalScore = lexical[i] / maxLexical
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].LexicalScore > scored[j].LexicalScore
	})
	return head(scored, topK), nil
}

func head(scored []Scored, topK int) []Scored {
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// tokenize splits text into lowercase terms, dropping stopwords and terms
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "this": true,
	"that": true, "these": true, "those": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
	"can": true, "not": true, "its": true, "their": true, "there": true,
	"about": true, "into": true, "over": true, "under": true, "such": true,
}
