package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(hash string) Document {
	return Document{
		Filename:    "report.pdf",
		FileType:    "pdf",
		FileSize:    1024,
		ContentHash: hash,
	}
}

func TestMemoryInsertDocument(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	doc, err := m.DocumentByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, StatusProcessing, doc.Status)
}

func TestMemoryDuplicateContent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)

	second, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.ErrorIs(t, err, ErrDuplicateContent)
	assert.Equal(t, first, second, "duplicate insert must resolve to the existing document")

	docs, err := m.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryMarkCompleted(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)

	require.NoError(t, m.MarkCompleted(ctx, id))

	doc, err := m.DocumentByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Status)

	// The transition is one-way; a second attempt targets nothing.
	assert.ErrorIs(t, m.MarkCompleted(ctx, id), ErrNotFound)
	assert.ErrorIs(t, m.MarkCompleted(ctx, uuid.New()), ErrNotFound)
}

func TestMemoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)
	require.NoError(t, m.InsertChunks(ctx, id, []Chunk{
		{Ordinal: 0, Content: "first", Embedding: []float32{1, 0}},
		{Ordinal: 1, Content: "second", Embedding: []float32{0, 1}},
	}))

	n, err := m.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	chunks, err := m.AllChunksOrdered(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = m.DocumentByHash(ctx, "aaa")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op, not an error.
	n, err = m.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The fingerprint is free for re-upload after deletion.
	_, err = m.InsertDocument(ctx, testDoc("aaa"))
	assert.NoError(t, err)
}

func TestMemorySimilaritySearch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)
	require.NoError(t, m.InsertChunks(ctx, id, []Chunk{
		{Ordinal: 0, Content: "east", Embedding: []float32{1, 0}},
		{Ordinal: 1, Content: "north", Embedding: []float32{0, 1}},
		{Ordinal: 2, Content: "northeast", Embedding: []float32{1, 1}},
	}))

	got, err := m.SimilaritySearch(ctx, []float32{1, 0.1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "east", got[0].Content)
	assert.Equal(t, "northeast", got[1].Content)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestMemorySimilaritySearchScope(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)
	second, err := m.InsertDocument(ctx, testDoc("bbb"))
	require.NoError(t, err)

	require.NoError(t, m.InsertChunks(ctx, first, []Chunk{
		{Ordinal: 0, Content: "mine", Embedding: []float32{1, 0}},
	}))
	require.NoError(t, m.InsertChunks(ctx, second, []Chunk{
		{Ordinal: 0, Content: "other", Embedding: []float32{1, 0}},
	}))

	got, err := m.SimilaritySearch(ctx, []float32{1, 0}, 10, &first)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].Content)
	assert.Equal(t, first, got[0].DocumentID)
}

func TestMemoryAllChunksOrdered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)

	// Inserted out of order on purpose.
	require.NoError(t, m.InsertChunks(ctx, id, []Chunk{
		{Ordinal: 2, Content: "c", Embedding: []float32{1}},
		{Ordinal: 0, Content: "a", Embedding: []float32{1}},
		{Ordinal: 1, Content: "b", Embedding: []float32{1}},
	}))

	chunks, err := m.AllChunksOrdered(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestMemoryListStuckProcessing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	stuck, err := m.InsertDocument(ctx, testDoc("aaa"))
	require.NoError(t, err)
	done, err := m.InsertDocument(ctx, testDoc("bbb"))
	require.NoError(t, err)
	require.NoError(t, m.MarkCompleted(ctx, done))

	got, err := m.ListStuckProcessing(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stuck, got[0].ID)
}

func TestMemoryConcurrentDuplicateInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const workers = 8
	type result struct {
		id  uuid.UUID
		err error
	}
	results := make(chan result, workers)
	for i := 0; i < workers; i++ {
		go func() {
			id, err := m.InsertDocument(ctx, testDoc("race"))
			results <- result{id, err}
		}()
	}

	var winner uuid.UUID
	var dups int
	for i := 0; i < workers; i++ {
		r := <-results
		switch {
		case r.err == nil:
			require.Equal(t, uuid.Nil, winner, "exactly one insert may win")
			winner = r.id
		default:
			require.ErrorIs(t, r.err, ErrDuplicateContent)
			dups++
		}
	}
	assert.Equal(t, workers-1, dups)

	docs, err := m.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestPostgresConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{DSN: "postgres://localhost/documindr", Dimension: 768},
		},
		{
			name:    "missing dsn",
			cfg:     Config{Dimension: 768},
			wantErr: "dsn is required",
		},
		{
			name:    "zero dimension",
			cfg:     Config{DSN: "postgres://localhost/documindr"},
			wantErr: "dimension must be positive",
		},
		{
			name:    "min above max",
			cfg:     Config{DSN: "postgres://localhost/documindr", Dimension: 768, MaxConns: 2, MinConns: 5},
			wantErr: "min connections exceeds max connections",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTrimHash(t *testing.T) {
	hash := fmt.Sprintf("%-64s", "abc")
	assert.Equal(t, "abc", trimHash(hash))
	assert.Equal(t, "abc", trimHash("abc"))
	assert.Equal(t, "", trimHash(""))
}
