// Package server exposes the ingestion, retrieval, and generation services
// over HTTP. Generated answers stream to the client as plain text chunks.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/health"
	"github.com/matthias-truyzelaere/documindr/internal/ingest"
	"github.com/matthias-truyzelaere/documindr/internal/rag"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	MaxUploadSize   int64
}

// Server is the documindr HTTP API.
type Server struct {
	echo    *echo.Echo
	cfg     Config
	ingest  *ingest.Service
	rag     *rag.Service
	checker *health.Checker
	logger  *zap.Logger
}

// New builds the server and registers all routes.
func New(cfg Config, ingestSvc *ingest.Service, ragSvc *rag.Service, checker *health.Checker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = ingest.DefaultMaxFileSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadSize>>20)))

	s := &Server{
		echo:    e,
		cfg:     cfg,
		ingest:  ingestSvc,
		rag:     ragSvc,
		checker: checker,
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.GET("", s.handleRoot)
	api.GET("/health", s.handleHealth)

	api.POST("/upload", s.handleUpload)
	api.GET("/documents", s.handleListDocuments)
	api.DELETE("/documents/:id", s.handleDeleteDocument)

	api.POST("/chat", s.handleChat)
	api.POST("/chat/:id", s.handleChatWithDocument)
	api.POST("/chat/:id/summary", s.handleSummary)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()
	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}
