package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthias-truyzelaere/documindr/internal/chunker"
	"github.com/matthias-truyzelaere/documindr/internal/health"
	"github.com/matthias-truyzelaere/documindr/internal/ingest"
	"github.com/matthias-truyzelaere/documindr/internal/rag"
	"github.com/matthias-truyzelaere/documindr/internal/reranker"
	"github.com/matthias-truyzelaere/documindr/internal/retrieval"
	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// flatEmbedder returns constant vectors; retrieval order then falls to the
// lexical pass, which is deterministic.
type flatEmbedder struct{}

func (flatEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (flatEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (flatEmbedder) Dimension() int { return 3 }
func (flatEmbedder) Close() error   { return nil }

type echoGenerator struct{ tokens []string }

func (g echoGenerator) Generate(_ context.Context, _ string, emit func(string) error) error {
	for _, t := range g.tokens {
		if err := emit(t); err != nil {
			return err
		}
	}
	return nil
}

func (echoGenerator) Ping(context.Context) error { return nil }
func (echoGenerator) Model() string              { return "echo" }

func newTestServer(t *testing.T, gen rag.Generator) (*Server, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	ch, err := chunker.New(chunker.Config{BaseSize: 200, MinChars: 20, Overlap: 30})
	require.NoError(t, err)

	emb := flatEmbedder{}
	ingestSvc := ingest.NewService(m, ch, emb, ingest.Config{BatchSize: 32}, nil)
	retriever := retrieval.New(emb, m, reranker.NewLexical(), nil)
	ragSvc := rag.NewService(retriever, m, gen, nil, 5, nil)
	checker := health.NewChecker(m, gen, nil)

	return New(Config{Port: 0}, ingestSvc, ragSvc, checker, nil), m
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const sampleDoc = "This paragraph carries enough narrative content to stand on its own as a retrievable chunk of text.\n\n" +
	"A second paragraph continues the document with further substantial body text for the splitter to work with.\n\n" +
	"The third paragraph rounds out the upload so several chunks come out of ingestion."

func TestUploadAndList(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	rec := doUpload(t, s, "notes.txt", sampleDoc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "UPLOAD_SUCCESS", resp.Code)
	assert.Equal(t, "File uploaded and indexed successfully.", resp.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Data documentsListData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Data.Total)
	assert.Equal(t, "notes.txt", list.Data.Documents[0].Filename)
	assert.Equal(t, "completed", list.Data.Documents[0].Status)
}

func TestUploadSanitizesFilename(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	rec := doUpload(t, s, "../trick<y>.txt", sampleDoc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	listRec := httptest.NewRecorder()
	s.echo.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var list struct {
		Data documentsListData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Data.Total)
	assert.Equal(t, "_tricky.txt", list.Data.Documents[0].Filename)
}

func TestUploadDuplicate(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	first := decode(t, doUpload(t, s, "notes.txt", sampleDoc))
	second := decode(t, doUpload(t, s, "copy.txt", sampleDoc))

	assert.Equal(t, "File was already indexed. Skipped duplicate processing.", second.Message)

	firstData, err := json.Marshal(first.Data)
	require.NoError(t, err)
	secondData, err := json.Marshal(second.Data)
	require.NoError(t, err)
	var a, b uploadData
	require.NoError(t, json.Unmarshal(firstData, &a))
	require.NoError(t, json.Unmarshal(secondData, &b))
	assert.Equal(t, a.DocumentID, b.DocumentID)
	assert.Zero(t, b.ChunksIndexed)
}

func TestUploadUnsupportedType(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	rec := doUpload(t, s, "tool.exe", "binary")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UPLOAD_INVALID_FILE_TYPE", decode(t, rec).Code)
}

func TestUploadMissingFile(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("no multipart"))
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	s, m := newTestServer(t, echoGenerator{})

	decode(t, doUpload(t, s, "notes.txt", sampleDoc))
	docs, err := m.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	target := fmt.Sprintf("/api/documents/%s", docs[0].ID)
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOCUMENT_DELETED", decode(t, rec).Code)

	// Deleting again is a 404.
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, target, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DOCUMENT_NOT_FOUND", decode(t, rec).Code)
}

func TestDeleteInvalidID(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func chatJSON(t *testing.T, s *Server, path, message string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"message": message})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestChatStreamsResponse(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{tokens: []string{"The answer ", "is here."}})

	decode(t, doUpload(t, s, "notes.txt", sampleDoc))

	rec := chatJSON(t, s, "/api/chat", "what does the narrative content say?")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
	assert.Equal(t, "The answer is here.", rec.Body.String())
}

func TestChatEmptyCorpusFallback(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{tokens: []string{"unused"}})

	rec := chatJSON(t, s, "/api/chat", "anything")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I cannot find this information in the provided text.", rec.Body.String())
}

func TestChatValidation(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	rec := chatJSON(t, s, "/api/chat", "   ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CHAT_EMPTY_MESSAGE", decode(t, rec).Code)

	rec = chatJSON(t, s, "/api/chat", "look <script>alert(1)</script>")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CHAT_INVALID_INPUT", decode(t, rec).Code)
}

func TestChatScopedToUnknownDocument(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	rec := chatJSON(t, s, "/api/chat/"+uuid.NewString(), "question")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DOCUMENT_NOT_FOUND", decode(t, rec).Code)
}

func TestSummaryEndpoint(t *testing.T) {
	s, m := newTestServer(t, echoGenerator{tokens: []string{"A short summary."}})

	decode(t, doUpload(t, s, "notes.txt", sampleDoc))
	docs, err := m.ListDocuments(context.Background())
	require.NoError(t, err)

	path := fmt.Sprintf("/api/chat/%s/summary?length=concise", docs[0].ID)
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A short summary.", rec.Body.String())
}

func TestSummaryInvalidLength(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	path := fmt.Sprintf("/api/chat/%s/summary?length=epic", uuid.NewString())
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SUMMARY_INVALID_LENGTH", decode(t, rec).Code)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, echoGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "HEALTH_OK", resp.Code)
}
