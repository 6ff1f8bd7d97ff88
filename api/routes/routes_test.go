package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/resume-extractor/api/handlers"
	"github.com/feichai0017/resume-extractor/api/middleware"
	"github.com/feichai0017/resume-extractor/internal/agent/document"
	"github.com/feichai0017/resume-extractor/internal/agent/document/ocr"
	"github.com/feichai0017/resume-extractor/internal/agent/document/pdf"
	"github.com/feichai0017/resume-extractor/internal/agent/document/pdf/pdftest"
	"github.com/feichai0017/resume-extractor/internal/models"
	docservice "github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/internal/service/extraction"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
	"github.com/feichai0017/resume-extractor/pkg/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopQueue struct{}

func (nopQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	return nil
}

func (nopQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	return nil, queue.ErrTaskNotFound
}

func (nopQueue) CancelTask(ctx context.Context, taskID string) error {
	return nil
}

func (nopQueue) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	return nil
}

var (
	textPDF    = pdftest.Build("Jane Doe, Senior Go Engineer. Ten years building document pipelines in Go.")
	scannedPDF = pdftest.Build("")
)

func ocrOK(text string) document.Extractor {
	return document.ExtractorFunc(func(ctx context.Context, f models.File) models.ExtractionResult {
		return models.Succeeded(text, 1, models.MethodOCRRemote)
	})
}

func ocrRateLimited() document.Extractor {
	return document.ExtractorFunc(func(ctx context.Context, f models.File) models.ExtractionResult {
		return models.Failed(models.TransportError(http.StatusTooManyRequests, "Too Many Requests"))
	})
}

func newRouter(t *testing.T, remote document.Extractor, health *handlers.HealthHandler) *gin.Engine {
	t.Helper()
	log := logger.NewTestLogger()
	native := pdf.NewProcessor(nil, pdf.Config{}, log)
	orch := extraction.New(extraction.Config{ExecutionContext: models.ContextServer}, native, remote, nil, log)
	svc := docservice.NewService(orch, nopQueue{}, memory.New(), log, nil)

	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(svc, remote, 0, health, log), nil, log)
	return r
}

func upload(t *testing.T, path, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestExtractEndpointNativeText(t *testing.T) {
	r := newRouter(t, ocrOK("unused"), nil)

	rec := serve(r, upload(t, "/api/v1/extract", "cv.pdf", "application/pdf", textPDF))
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Contains(t, res.Text, "Jane Doe")
	assert.Equal(t, models.MethodNative, res.Method())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestExtractEndpointFailureIsStillOK(t *testing.T) {
	r := newRouter(t, ocrRateLimited(), nil)

	rec := serve(r, upload(t, "/api/v1/extract", "scan.pdf", "application/pdf", scannedPDF))
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, models.MsgRateLimited, res.UserMessage())

	rec = serve(r, upload(t, "/api/v1/extract", "cv.txt", "text/plain", []byte("plain text")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.KindInvalidInput, res.FailureKind())
}

func TestExtractEndpointMissingFile(t *testing.T) {
	r := newRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractParseWithoutParser(t *testing.T) {
	r := newRouter(t, nil, nil)

	rec := serve(r, upload(t, "/api/v1/extract/parse", "cv.pdf", "application/pdf", textPDF))
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.ParseOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Extraction.Success)
	assert.Nil(t, out.Resume)
	assert.NotEmpty(t, out.ParseError)
}

func TestOCREndpoint(t *testing.T) {
	tests := []struct {
		name        string
		provider    document.Extractor
		filename    string
		contentType string
		data        []byte
		wantStatus  int
		wantSuccess bool
	}{
		{"success", ocrOK("Scanned resume text"), "scan.pdf", "application/pdf", scannedPDF, http.StatusOK, true},
		{"ocr failure", ocrRateLimited(), "scan.pdf", "application/pdf", scannedPDF, http.StatusUnprocessableEntity, false},
		{"wrong type", ocrOK("x"), "scan.png", "image/png", []byte("\x89PNG\r\n"), http.StatusBadRequest, false},
		{"bad signature", ocrOK("x"), "scan.pdf", "application/pdf", []byte("not a pdf"), http.StatusBadRequest, false},
		{"too large", ocrOK("x"), "scan.pdf", "application/pdf", append([]byte("%PDF-"), make([]byte, 1<<20)...), http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, tt.provider, nil)
			rec := serve(r, upload(t, "/api/v1/ocr", tt.filename, tt.contentType, tt.data))
			require.Equal(t, tt.wantStatus, rec.Code)

			var body ocr.LocalResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantSuccess, body.Success)
			if !tt.wantSuccess {
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

// A browser-context orchestrator falls back to this server's /ocr endpoint.
func TestBrowserCascadeThroughOCREndpoint(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, ocrOK("Recovered by server-side OCR"), nil))
	defer srv.Close()

	log := logger.NewTestLogger()
	orch := extraction.New(
		extraction.Config{ExecutionContext: models.ContextBrowser},
		pdf.NewProcessor(nil, pdf.Config{}, log),
		ocrRateLimited(),
		ocr.NewLocalServiceExtractor(srv.URL+"/api/v1/ocr", 0, srv.Client(), log),
		log,
	)

	res := orch.ExtractText(context.Background(), models.NewFile("scan.pdf", "application/pdf", scannedPDF))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Recovered by server-side OCR", res.Text)
	assert.Equal(t, models.MethodOCRLocal, res.Method())
	assert.Equal(t, true, res.Metadata[models.MetaServerSide])
	assert.NotEmpty(t, res.Metadata[models.MetaOCRError])
}

func TestBrowserCascadeServerRateLimited(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, ocrRateLimited(), nil))
	defer srv.Close()

	log := logger.NewTestLogger()
	orch := extraction.New(
		extraction.Config{ExecutionContext: models.ContextBrowser},
		pdf.NewProcessor(nil, pdf.Config{}, log),
		ocrRateLimited(),
		ocr.NewLocalServiceExtractor(srv.URL+"/api/v1/ocr", 0, srv.Client(), log),
		log,
	)

	res := orch.ExtractText(context.Background(), models.NewFile("scan.pdf", "application/pdf", scannedPDF))
	assert.False(t, res.Success)
	assert.Equal(t, models.MsgRateLimited, res.UserMessage())
	assert.NotEmpty(t, res.Metadata[models.MetaLocalOCRError])
}

func TestHealthEndpoint(t *testing.T) {
	health := handlers.NewHealthHandler()
	health.Register("redis", func(ctx context.Context) error { return nil })
	r := newRouter(t, nil, health)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	health.Register("storage", func(ctx context.Context) error { return errors.New("bucket missing") })
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket missing")
}

func TestDocumentStatusNotFound(t *testing.T) {
	r := newRouter(t, nil, nil)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/status/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentProcessRejectsNonPDF(t *testing.T) {
	r := newRouter(t, nil, nil)

	rec := serve(r, upload(t, "/api/v1/documents/process", "cv.txt", "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_MIME_TYPE", body.Code)
}

func TestDocumentProcessAccepted(t *testing.T) {
	r := newRouter(t, nil, nil)

	rec := serve(r, upload(t, "/api/v1/documents/process?parse=true", "cv.pdf", "application/pdf", textPDF))
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.TaskID)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, ".pdf", body.FileType)
}

func TestRequestIDPropagated(t *testing.T) {
	r := newRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")

	rec := serve(r, req)
	assert.Equal(t, "req-123", rec.Header().Get(middleware.RequestIDHeader))
}
