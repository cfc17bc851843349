package store

import (
	"time"

	"github.com/google/uuid"
)

// Status is the ingestion lifecycle state of a document.
type Status string

const (
	// StatusProcessing marks a document whose chunks are not yet fully
	// persisted.
	StatusProcessing Status = "processing"

	// StatusCompleted marks a fully ingested document. Only completed
	// documents should be trusted by retrieval consumers.
	StatusCompleted Status = "completed"
)

// Document is a single ingested source file.
type Document struct {
	ID          uuid.UUID
	Filename    string
	FileType    string
	FileSize    int64
	ContentHash string
	Status      Status
	CreatedAt   time.Time
}

// Chunk is one retrievable fragment of a document together with its
// embedding vector.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Ordinal    int
	Content    string
	Embedding  []float32
	Metadata   map[string]any
}

// Candidate is a chunk returned from similarity search, annotated with its
// cosine distance to the query (lower is closer).
type Candidate struct {
	Chunk
	Distance float64
}

// PoolStats is a snapshot of connection pool usage.
type PoolStats struct {
	Total   int32
	Idle    int32
	InUse   int32
	MaxSize int32
}
