// Documindr is a retrieval-augmented document service: it ingests documents
// into a pgvector-backed store and answers questions and summary requests
// against them through a local Ollama model.
//
// Configuration is loaded from an optional YAML file plus environment
// variables. See internal/config for the full key list.
//
// Usage:
//
//	# Start with defaults (Postgres and Ollama on localhost)
//	documindr
//
//	# Configure via file and environment
//	DATABASE_DSN=postgres://user:pass@db:5432/documindr documindr -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/chunker"
	"github.com/matthias-truyzelaere/documindr/internal/config"
	"github.com/matthias-truyzelaere/documindr/internal/embeddings"
	"github.com/matthias-truyzelaere/documindr/internal/health"
	"github.com/matthias-truyzelaere/documindr/internal/ingest"
	"github.com/matthias-truyzelaere/documindr/internal/logging"
	"github.com/matthias-truyzelaere/documindr/internal/rag"
	"github.com/matthias-truyzelaere/documindr/internal/reranker"
	"github.com/matthias-truyzelaere/documindr/internal/retrieval"
	"github.com/matthias-truyzelaere/documindr/internal/server"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "documindr: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	st, err := store.NewPostgres(ctx, store.Config{
		DSN:       cfg.Database.DSN,
		MaxConns:  cfg.Database.MaxConns,
		MinConns:  cfg.Database.MinConns,
		Dimension: cfg.Embeddings.Dimension,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	embedder, err := embeddings.NewOllama(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		BatchSize: cfg.Embeddings.BatchSize,
	}, logger)
	if err != nil {
		return err
	}
	defer embedder.Close() //nolint:errcheck

	// A dimension mismatch between the model and the schema poisons every
	// stored vector, so it is fatal at startup.
	if err := embedder.Warmup(ctx); err != nil {
		return fmt.Errorf("embedding warmup: %w", err)
	}

	generator, err := rag.NewOllamaGenerator(rag.GeneratorConfig{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	ch, err := chunker.New(chunker.Config{
		BaseSize: cfg.Chunking.BaseSize,
		MinChars: cfg.Chunking.MinChars,
		Overlap:  cfg.Chunking.Overlap,
	})
	if err != nil {
		return err
	}

	metrics, err := rag.NewMetrics()
	if err != nil {
		return err
	}

	ingestSvc := ingest.NewService(st, ch, embedder, ingest.Config{
		MaxFileSize: cfg.Server.MaxUploadSize,
		BatchSize:   cfg.Embeddings.BatchSize,
	}, logger)
	retriever := retrieval.New(embedder, st, reranker.NewLexical(), logger)
	ragSvc := rag.NewService(retriever, st, generator, metrics, cfg.Retrieval.TopK, logger)

	checker := health.NewChecker(st, generator, logger)
	report := checker.Check(ctx)
	logger.Info("startup health check",
		zap.String("status", string(report.Status)),
		zap.Int32("pool_max", report.Pool.MaxSize))

	// Surface documents a previous crash left half-ingested.
	if _, err := ingestSvc.ReportStuck(ctx); err != nil {
		logger.Warn("stuck document scan failed", zap.Error(err))
	}

	logger.Info("documindr ready",
		zap.String("embedding_model", cfg.Embeddings.Model),
		zap.String("chat_model", cfg.Generation.Model),
		zap.Int("top_k", cfg.Retrieval.TopK))

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadSize:   cfg.Server.MaxUploadSize,
	}, ingestSvc, ragSvc, checker, logger)

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}
