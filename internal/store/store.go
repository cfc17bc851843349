// Package store persists documents and chunk vectors and serves similarity
// search.
//
// The storage engine is consumed through the narrow Store interface: the
// rest of the system never sees SQL or connection handling. Two
// implementations exist: Postgres (pgvector) for production and Memory for
// tests and embedded runs.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateContent indicates a document with the same content
	// fingerprint already exists. This is a dedup signal, not a failure:
	// the returned identifier points at the existing document.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrUnavailable indicates the storage engine cannot be reached.
	ErrUnavailable = errors.New("storage engine unavailable")
)

// Store is the contract for the vector-capable document store.
//
// All methods take a context and suspend only for their own I/O; no
// connection is held across calls.
type Store interface {
	// InsertDocument creates a document record in processing status and
	// returns its identifier. If a document with the same content hash
	// already exists (including a concurrent insert racing this one), the
	// existing identifier is returned together with ErrDuplicateContent.
	InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error)

	// DocumentByHash returns the document with the given content hash, or
	// ErrNotFound.
	DocumentByHash(ctx context.Context, hash string) (*Document, error)

	// DocumentExists reports whether a document with the given ID exists.
	DocumentExists(ctx context.Context, id uuid.UUID) (bool, error)

	// InsertChunks persists a batch of chunks for one document. Chunk
	// ordinals must be contiguous from zero; the batch is atomic.
	InsertChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error

	// MarkCompleted transitions a document from processing to completed.
	// The transition is one-way.
	MarkCompleted(ctx context.Context, documentID uuid.UUID) error

	// SimilaritySearch returns up to k chunks ordered by ascending cosine
	// distance to the query vector. A non-nil scope restricts results to
	// chunks owned by that document.
	SimilaritySearch(ctx context.Context, vector []float32, k int, scope *uuid.UUID) ([]Candidate, error)

	// AllChunksOrdered returns every chunk of a document in ordinal order.
	AllChunksOrdered(ctx context.Context, documentID uuid.UUID) ([]Chunk, error)

	// DeleteDocument removes a document and, by cascade, all of its chunks.
	// Returns the number of documents removed (0 or 1).
	DeleteDocument(ctx context.Context, documentID uuid.UUID) (int64, error)

	// ListDocuments returns all documents, most recent first.
	ListDocuments(ctx context.Context) ([]Document, error)

	// ListStuckProcessing returns documents still in processing status; a
	// crash mid-ingestion leaves these behind (surfaced, never hidden).
	ListStuckProcessing(ctx context.Context) ([]Document, error)

	// Ping verifies the storage engine is reachable.
	Ping(ctx context.Context) error

	// Stats reports connection pool usage for health reporting.
	Stats() PoolStats

	// Close releases the underlying connections.
	Close()
}
