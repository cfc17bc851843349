package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same contract as Postgres. It backs
// tests and embedded runs where no database is available.
type Memory struct {
	mu      sync.RWMutex
	docs    map[uuid.UUID]*Document
	chunks  map[uuid.UUID][]Chunk
	byHash  map[string]uuid.UUID
	inserts int
	order   map[uuid.UUID]int
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[uuid.UUID]*Document),
		chunks: make(map[uuid.UUID][]Chunk),
		byHash: make(map[string]uuid.UUID),
		order:  make(map[uuid.UUID]int),
	}
}

func (m *Memory) InsertDocument(_ context.Context, doc Document) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byHash[doc.ContentHash]; ok {
		return existing, ErrDuplicateContent
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Status = StatusProcessing
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	m.docs[doc.ID] = &doc
	m.byHash[doc.ContentHash] = doc.ID
	m.order[doc.ID] = m.inserts
	m.inserts++
	return doc.ID, nil
}

func (m *Memory) DocumentByHash(_ context.Context, hash string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	doc := *m.docs[id]
	return &doc, nil
}

func (m *Memory) DocumentExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok, nil
}

func (m *Memory) InsertChunks(_ context.Context, documentID uuid.UUID, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[documentID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	stored := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.DocumentID = documentID
		stored[i] = c
	}
	m.chunks[documentID] = append(m.chunks[documentID], stored...)
	return nil
}

func (m *Memory) MarkCompleted(_ context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok || doc.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	doc.Status = StatusCompleted
	return nil
}

func (m *Memory) SimilaritySearch(_ context.Context, vector []float32, k int, scope *uuid.UUID) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Candidate
	for docID, chunks := range m.chunks {
		if scope != nil && docID != *scope {
			continue
		}
		for _, c := range chunks {
			out = append(out, Candidate{Chunk: c, Distance: cosineDistance(vector, c.Embedding)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *Memory) AllChunksOrdered(_ context.Context, documentID uuid.UUID) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Chunk, len(m.chunks[documentID]))
	copy(out, m.chunks[documentID])
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (m *Memory) DeleteDocument(_ context.Context, documentID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return 0, nil
	}
	delete(m.byHash, doc.ContentHash)
	delete(m.docs, documentID)
	delete(m.chunks, documentID)
	delete(m.order, documentID)
	return 1, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.order[out[i].ID] > m.order[out[j].ID]
	})
	return out, nil
}

func (m *Memory) ListStuckProcessing(_ context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, doc := range m.docs {
		if doc.Status == StatusProcessing {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Stats() PoolStats { return PoolStats{} }

func (m *Memory) Close() {}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
