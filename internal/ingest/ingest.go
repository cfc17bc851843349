// Package ingest turns uploaded files into embedded, searchable chunks.
//
// The pipeline is: detect format, fingerprint, dedup, extract text, chunk,
// embed, persist. Embedding runs before any database write, so a model
// failure leaves no partial document behind; only a crash between the chunk
// write and the completion mark leaves a document in processing status,
// which ReportStuck surfaces at startup.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/chunker"
	"github.com/matthias-truyzelaere/documindr/internal/embeddings"
	"github.com/matthias-truyzelaere/documindr/internal/fingerprint"
	"github.com/matthias-truyzelaere/documindr/internal/loader"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

var (
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when an upload exceeds the size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// DefaultMaxFileSize caps uploads at 50 MiB.
const DefaultMaxFileSize = 50 << 20

// Config tunes the ingestion pipeline.
type Config struct {
	// MaxFileSize caps upload size in bytes. Defaults to
	// DefaultMaxFileSize.
	MaxFileSize int64
	// BatchSize is the number of chunks embedded per model call.
	BatchSize int
}

// Result describes the outcome of one ingestion.
type Result struct {
	DocumentID uuid.UUID
	Filename   string
	Chunks     int
	// Duplicate is true when a document with identical content already
	// existed; DocumentID then points at the existing document and no new
	// data was written.
	Duplicate bool
	Elapsed   time.Duration
}

// Service runs the ingestion pipeline.
type Service struct {
	store    store.Store
	chunker  *chunker.Chunker
	embedder embeddings.Provider
	logger   *zap.Logger
	cfg      Config
}

// NewService creates the ingestion service.
func NewService(st store.Store, ch *chunker.Chunker, embedder embeddings.Provider, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embeddings.DefaultBatchSize
	}
	return &Service{store: st, chunker: ch, embedder: embedder, logger: logger, cfg: cfg}
}

// Ingest processes one uploaded file. Re-uploading identical content is
// idempotent: the existing document is returned with Duplicate set,
// regardless of filename.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*Result, error) {
	start := time.Now()

	filename = sanitizeFilename(filename)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filename)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, cap is %d", ErrFileTooLarge, filename, len(data), s.cfg.MaxFileSize)
	}
	kind, err := loader.Detect(filename)
	if err != nil {
		return nil, err
	}

	hash := fingerprint.SumBytes(data)
	if existing, err := s.store.DocumentByHash(ctx, hash); err == nil {
		s.logger.Info("duplicate upload skipped",
			zap.String("filename", filename),
			zap.String("existing_id", existing.ID.String()))
		return &Result{
			DocumentID: existing.ID,
			Filename:   existing.Filename,
			Duplicate:  true,
			Elapsed:    time.Since(start),
		}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	blocks, err := loader.Load(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunker.Split(blocks)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no usable text in %s", loader.ErrExtractionFailed, filename)
	}

	vectors, err := s.embedBatches(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}

	docID, err := s.store.InsertDocument(ctx, store.Document{
		Filename:    filename,
		FileType:    kind.String(),
		FileSize:    int64(len(data)),
		ContentHash: hash,
	})
	if err != nil {
		// Another upload with identical content won the race; treat it
		// exactly like the up-front dedup hit.
		if errors.Is(err, store.ErrDuplicateContent) {
			s.logger.Info("concurrent duplicate upload skipped",
				zap.String("filename", filename),
				zap.String("existing_id", docID.String()))
			// Report the winning document's filename, matching the
			// up-front dedup path.
			existingName := filename
			if existing, lookErr := s.store.DocumentByHash(ctx, hash); lookErr == nil {
				existingName = existing.Filename
			}
			return &Result{
				DocumentID: docID,
				Filename:   existingName,
				Duplicate:  true,
				Elapsed:    time.Since(start),
			}, nil
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	stored := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		stored[i] = store.Chunk{
			Ordinal:   c.Ordinal,
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata: map[string]any{
				"source":     filename,
				"page":       c.Page,
				"chunkIndex": c.Ordinal,
			},
		}
	}
	if err := s.store.InsertChunks(ctx, docID, stored); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}
	if err := s.store.MarkCompleted(ctx, docID); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	elapsed := time.Since(start)
	s.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.String("document_id", docID.String()),
		zap.String("file_type", kind.String()),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", elapsed))

	return &Result{
		DocumentID: docID,
		Filename:   filename,
		Chunks:     len(chunks),
		Elapsed:    elapsed,
	}, nil
}

// filenameUnsafe matches characters outside word characters, whitespace,
// dots, and hyphens.
var filenameUnsafe = regexp.MustCompile(`[^\w\s.-]`)

// sanitizeFilename strips traversal sequences and unsafe characters from a
// client-supplied filename. Path separators become underscores, everything
// outside the allowed set is removed, and the result is capped at 255
// characters.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	name = filenameUnsafe.ReplaceAllString(name, "")
	if runes := []rune(name); len(runes) > 255 {
		name = string(runes[:255])
	}
	return name
}

// embedBatches embeds chunk texts in sequential fixed-size batches. One
// failed batch aborts the whole ingestion.
func (s *Service) embedBatches(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	out := make([][]float32, 0, len(texts))
	for begin := 0; begin < len(texts); begin += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := begin + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts[begin:end])
		if err != nil {
			return nil, fmt.Errorf("batch at %d: %w", begin, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Delete removes a document and all of its chunks.
func (s *Service) Delete(ctx context.Context, documentID uuid.UUID) error {
	n, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, documentID)
	}
	s.logger.Info("document deleted", zap.String("document_id", documentID.String()))
	return nil
}

// List returns all documents, most recent first.
func (s *Service) List(ctx context.Context) ([]store.Document, error) {
	return s.store.ListDocuments(ctx)
}

// ReportStuck logs documents left in processing status by an earlier crash
// and returns them. They stay visible until deleted and re-ingested.
func (s *Service) ReportStuck(ctx context.Context) ([]store.Document, error) {
	stuck, err := s.store.ListStuckProcessing(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stuck documents: %w", err)
	}
	for _, doc := range stuck {
		s.logger.Warn("document stuck in processing",
			zap.String("document_id", doc.ID.String()),
			zap.String("filename", doc.Filename),
			zap.Time("created_at", doc.CreatedAt))
	}
	return stuck, nil
}
