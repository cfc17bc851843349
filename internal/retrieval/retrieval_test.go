package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthias-truyzelaere/documindr/internal/reranker"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// axisEmbedder maps texts onto a 3-dimensional space by keyword so tests
// control semantic proximity exactly.
type axisEmbedder struct{}

func (axisEmbedder) embed(text string) []float32 {
	v := []float32{0.1, 0.1, 0.1}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "finance") || strings.Contains(lower, "revenue") {
		v[0] = 1
	}
	if strings.Contains(lower, "weather") || strings.Contains(lower, "climate") {
		v[1] = 1
	}
	if strings.Contains(lower, "sport") {
		v[2] = 1
	}
	return v
}

func (e axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (axisEmbedder) Dimension() int { return 3 }
func (axisEmbedder) Close() error   { return nil }

func seedStore(t *testing.T) (*store.Memory, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	e := axisEmbedder{}

	finance, err := m.InsertDocument(ctx, store.Document{Filename: "finance.pdf", FileType: "pdf", ContentHash: "f"})
	require.NoError(t, err)
	weather, err := m.InsertDocument(ctx, store.Document{Filename: "weather.txt", FileType: "txt", ContentHash: "w"})
	require.NoError(t, err)

	financeTexts := []string{
		"Revenue rose sharply in the fourth quarter, driven by finance products.",
		"Operating finance costs remained flat year over year.",
		"Sport sponsorships were cut from the finance budget.",
	}
	weatherTexts := []string{
		"Weather patterns shifted due to climate oscillation.",
		"Climate models predict wetter weather next decade.",
	}

	insert := func(id uuid.UUID, texts []string) {
		chunks := make([]store.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = store.Chunk{Ordinal: i, Content: text, Embedding: e.embed(text)}
		}
		require.NoError(t, m.InsertChunks(ctx, id, chunks))
	}
	insert(finance, financeTexts)
	insert(weather, weatherTexts)
	require.NoError(t, m.MarkCompleted(ctx, finance))
	require.NoError(t, m.MarkCompleted(ctx, weather))

	return m, finance, weather
}

func newRetriever(m *store.Memory) *Retriever {
	return New(axisEmbedder{}, m, reranker.NewLexical(), nil)
}

func TestRetrieveRanksRelevantFirst(t *testing.T) {
	m, _, _ := seedStore(t)
	r := newRetriever(m)

	res, err := r.Retrieve(context.Background(), "revenue in the fourth quarter", 2, nil)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	assert.Contains(t, res.Chunks[0].Content, "Revenue rose sharply")
	assert.GreaterOrEqual(t, res.CandidateCount, 2)
	assert.Positive(t, res.Elapsed)
}

func TestRetrieveScopeIsolation(t *testing.T) {
	m, _, weather := seedStore(t)
	r := newRetriever(m)

	res, err := r.Retrieve(context.Background(), "finance revenue", 5, &weather)
	require.NoError(t, err)
	for _, c := range res.Chunks {
		assert.Equal(t, weather, c.DocumentID, "scoped retrieval must never leak other documents")
	}
	assert.Len(t, res.Chunks, 2)
}

func TestRetrieveTopKPrefix(t *testing.T) {
	m, _, _ := seedStore(t)
	r := newRetriever(m)

	small, err := r.Retrieve(context.Background(), "finance revenue", 2, nil)
	require.NoError(t, err)
	large, err := r.Retrieve(context.Background(), "finance revenue", 4, nil)
	require.NoError(t, err)

	require.Len(t, small.Chunks, 2)
	require.GreaterOrEqual(t, len(large.Chunks), 2)
	for i := range small.Chunks {
		assert.Equal(t, large.Chunks[i].Content, small.Chunks[i].Content,
			"a smaller topK must be a prefix of a larger one")
	}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	r := newRetriever(store.NewMemory())

	res, err := r.Retrieve(context.Background(), "anything at all", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
	assert.Zero(t, res.CandidateCount)
}

func TestRetrieveEmptyScope(t *testing.T) {
	m, _, _ := seedStore(t)
	r := newRetriever(m)

	ghost := uuid.New()
	res, err := r.Retrieve(context.Background(), "finance", 5, &ghost)
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
}

func TestRetrieveRejectsBlankQuery(t *testing.T) {
	m, _, _ := seedStore(t)
	r := newRetriever(m)

	_, err := r.Retrieve(context.Background(), "   ", 5, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestClampMultiplier(t *testing.T) {
	assert.Equal(t, 2, clampMultiplier(1))
	assert.Equal(t, 3, clampMultiplier(3))
	assert.Equal(t, 4, clampMultiplier(9))
}
