package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/health"
	"github.com/matthias-truyzelaere/documindr/internal/ingest"
	"github.com/matthias-truyzelaere/documindr/internal/loader"
	"github.com/matthias-truyzelaere/documindr/internal/rag"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// apiResponse is the envelope every non-streaming endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type uploadData struct {
	Filename      string `json:"filename"`
	DocumentID    string `json:"document_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

type documentItem struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type documentsListData struct {
	Documents []documentItem `json:"documents"`
	Total     int            `json:"total"`
}

type healthData struct {
	Status        string `json:"status"`
	Model         string `json:"model"`
	Database      string `json:"database"`
	PoolSize      int32  `json:"pool_size"`
	PoolAvailable int32  `json:"pool_available"`
}

type chatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k"`
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, apiResponse{Success: false, Code: code, Message: message})
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Code:    "SERVICE_INFO",
		Message: "documindr document retrieval service",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	report := s.checker.Check(c.Request().Context())

	data := healthData{
		Status:        string(report.Status),
		PoolSize:      report.Pool.Total,
		PoolAvailable: report.Pool.Idle,
	}
	for _, comp := range report.Components {
		state := "healthy"
		if !comp.Healthy {
			state = "unhealthy"
		}
		switch comp.Name {
		case "storage":
			data.Database = state
		case "model":
			data.Model = state
		}
	}

	code := "HEALTH_OK"
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		code = "HEALTH_DEGRADED"
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, apiResponse{
		Success: report.Status == health.StatusHealthy,
		Code:    code,
		Message: "Service is " + string(report.Status),
		Data:    data,
	})
}

func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "UPLOAD_MISSING_FILE", "Request must carry a file field.")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "UPLOAD_UNREADABLE", "Uploaded file could not be read.")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadSize+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "UPLOAD_UNREADABLE", "Uploaded file could not be read.")
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		return fail(c, http.StatusRequestEntityTooLarge, "UPLOAD_FILE_TOO_LARGE", "File exceeds the upload size limit.")
	}

	res, err := s.ingest.Ingest(c.Request().Context(), fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, loader.ErrUnsupportedFormat):
			return fail(c, http.StatusBadRequest, "UPLOAD_INVALID_FILE_TYPE", err.Error())
		case errors.Is(err, ingest.ErrFileTooLarge):
			return fail(c, http.StatusRequestEntityTooLarge, "UPLOAD_FILE_TOO_LARGE", err.Error())
		case errors.Is(err, ingest.ErrEmptyFile), errors.Is(err, loader.ErrExtractionFailed):
			return fail(c, http.StatusBadRequest, "UPLOAD_PROCESSING_ERROR", err.Error())
		default:
			s.logger.Error("upload failed", zap.String("filename", fileHeader.Filename), zap.Error(err))
			return fail(c, http.StatusInternalServerError, "UPLOAD_UNKNOWN_ERROR", "An unexpected error occurred during file upload.")
		}
	}

	message := "File uploaded and indexed successfully."
	if res.Duplicate {
		message = "File was already indexed. Skipped duplicate processing."
	}
	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Code:    "UPLOAD_SUCCESS",
		Message: message,
		Data: uploadData{
			Filename:      res.Filename,
			DocumentID:    res.DocumentID.String(),
			ChunksIndexed: res.Chunks,
		},
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.ingest.List(c.Request().Context())
	if err != nil {
		s.logger.Error("document listing failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DOCUMENTS_LIST_ERROR", "Documents could not be retrieved.")
	}

	items := make([]documentItem, len(docs))
	for i, d := range docs {
		items[i] = documentItem{
			ID:        d.ID.String(),
			Filename:  d.Filename,
			FileType:  d.FileType,
			FileSize:  d.FileSize,
			Status:    string(d.Status),
			CreatedAt: d.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Code:    "DOCUMENTS_LIST_SUCCESS",
		Message: "Documents retrieved successfully",
		Data:    documentsListData{Documents: items, Total: len(items)},
	})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "DOCUMENT_INVALID_ID", "Document id must be a UUID.")
	}

	if err := s.ingest.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document with id "+id.String()+" not found.")
		}
		s.logger.Error("document deletion failed", zap.String("document_id", id.String()), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DOCUMENT_DELETE_ERROR", "Document could not be deleted.")
	}
	return c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Code:    "DOCUMENT_DELETED",
		Message: "Document deleted successfully",
	})
}

func (s *Server) handleChat(c echo.Context) error {
	return s.chat(c, nil)
}

func (s *Server) handleChatWithDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "DOCUMENT_INVALID_ID", "Document id must be a UUID.")
	}
	return s.chat(c, &id)
}

func (s *Server) chat(c echo.Context, documentID *uuid.UUID) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "CHAT_INVALID_BODY", "Request body must be JSON.")
	}
	if strings.TrimSpace(req.Message) == "" {
		return fail(c, http.StatusBadRequest, "CHAT_EMPTY_MESSAGE", "Message cannot be empty.")
	}
	if containsDangerousPattern(req.Message) {
		return fail(c, http.StatusBadRequest, "CHAT_INVALID_INPUT", "Invalid characters in message.")
	}

	answer, err := s.rag.Chat(c.Request().Context(), req.Message, rag.ChatOptions{
		TopK:       req.TopK,
		DocumentID: documentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmptyQuery):
			return fail(c, http.StatusBadRequest, "CHAT_EMPTY_MESSAGE", "Message cannot be empty.")
		case errors.Is(err, store.ErrNotFound):
			return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document with id "+documentID.String()+" not found.")
		default:
			s.logger.Error("chat failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "CHAT_ERROR", "Chat request could not be processed.")
		}
	}
	return s.streamAnswer(c, answer)
}

func (s *Server) handleSummary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "DOCUMENT_INVALID_ID", "Document id must be a UUID.")
	}
	length, err := rag.ParseSummaryLength(c.QueryParam("length"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "SUMMARY_INVALID_LENGTH", err.Error())
	}

	answer, err := s.rag.Summarize(c.Request().Context(), id, length)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document with id "+id.String()+" not found.")
		}
		s.logger.Error("summary failed", zap.String("document_id", id.String()), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "SUMMARY_ERROR", "Summary request could not be processed.")
	}
	return s.streamAnswer(c, answer)
}

// streamAnswer writes the generated text to the client chunk by chunk. Once
// the first chunk is written the status is committed; mid-stream failures
// can only be logged and the connection cut.
func (s *Server) streamAnswer(c echo.Context, answer *rag.Answer) error {
	defer answer.Close() //nolint:errcheck

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	resp.Header().Set("X-Request-Timeout", "300")
	resp.WriteHeader(http.StatusOK)

	for {
		token, err := answer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("stream aborted", zap.Error(err))
			return nil
		}
		if _, err := resp.Write([]byte(token)); err != nil {
			return nil
		}
		resp.Flush()
	}
}

func containsDangerousPattern(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"<script", "javascript:", "onerror="} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
