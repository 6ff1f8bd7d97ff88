package document

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/resume-extractor/internal/agent/document/pdf/pdftest"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
	"github.com/feichai0017/resume-extractor/pkg/storage/memory"
)

type fakeQueue struct {
	mu       sync.Mutex
	tasks    []*queue.Task
	statuses map[string]*queue.TaskStatus
	enqErr   error
	canceled []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{statuses: make(map[string]*queue.TaskStatus)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqErr != nil {
		return q.enqErr
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[taskID]
	if !ok {
		return nil, queue.ErrTaskNotFound
	}
	cp := *st
	return &cp, nil
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.canceled = append(q.canceled, taskID)
	return nil
}

func (q *fakeQueue) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *status
	q.statuses[status.TaskID] = &cp
	return nil
}

type fakePipeline struct {
	result models.ExtractionResult
	parsed *models.ParsedResumeData
	files  []models.File
}

func (p *fakePipeline) ExtractText(ctx context.Context, file models.File) models.ExtractionResult {
	p.files = append(p.files, file)
	return p.result.Clone()
}

func (p *fakePipeline) ExtractAndParse(ctx context.Context, file models.File) models.ParseOutcome {
	return models.ParseOutcome{Extraction: p.ExtractText(ctx, file), Resume: p.parsed}
}

func fileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
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

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 22)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

var samplePDF = pdftest.Build(strings.Repeat("Jane Doe Senior Go Engineer ", 4))

func newTestService(p Pipeline) (*DocumentService, *fakeQueue, *memory.Storage) {
	q := newFakeQueue()
	store := memory.New()
	svc := NewService(p, q, store, logger.NewTestLogger(), &ServiceConfig{RetentionPeriod: time.Hour})
	return svc, q, store
}

func TestExtractRunsPipeline(t *testing.T) {
	p := &fakePipeline{result: models.Succeeded("Jane Doe", 1, models.MethodNative)}
	svc, _, _ := newTestService(p)

	res, err := svc.Extract(context.Background(), fileHeader(t, "cv.pdf", "application/pdf", samplePDF))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, p.files, 1)
	assert.Equal(t, "cv.pdf", p.files[0].Name)
	assert.Equal(t, samplePDF, p.files[0].Data)
}

func TestExtractRejectsInvalidUploadAsResult(t *testing.T) {
	p := &fakePipeline{}
	svc, _, _ := newTestService(p)

	res, err := svc.Extract(context.Background(), fileHeader(t, "cv.txt", "text/plain", []byte("hello")))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.KindInvalidInput, res.FailureKind())
	assert.Empty(t, p.files)
}

func TestProcessFileStoresAndEnqueues(t *testing.T) {
	svc, q, store := newTestService(&fakePipeline{})

	task, err := svc.ProcessFile(context.Background(), fileHeader(t, "cv.pdf", "application/pdf", samplePDF), JobOptions{Parse: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, queue.TaskTypeResumeExtract, task.Type)
	assert.Equal(t, 2, task.Priority)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, task.ID, q.tasks[0].ID)
	assert.Equal(t, true, q.tasks[0].Payload["parse"])
	assert.Equal(t, "uploads/"+task.ID+"/cv.pdf", q.tasks[0].Payload["fileId"])
	assert.Equal(t, 1, store.Len())

	status, err := svc.GetProcessingStatus(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)
}

func TestProcessFileRejectsNonPDF(t *testing.T) {
	svc, q, store := newTestService(&fakePipeline{})

	_, err := svc.ProcessFile(context.Background(), fileHeader(t, "cv.png", "image/png", []byte("\x89PNG....")), JobOptions{})
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.Empty(t, q.tasks)
	assert.Equal(t, 0, store.Len())
}

func TestProcessFileEnqueueFailure(t *testing.T) {
	svc, q, _ := newTestService(&fakePipeline{})
	q.enqErr = errors.New("redis down")

	_, err := svc.ProcessFile(context.Background(), fileHeader(t, "cv.pdf", "application/pdf", samplePDF), JobOptions{})
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Contains(t, err.Error(), "redis down")
}

func TestProcessBatchKeepsOrder(t *testing.T) {
	svc, q, _ := newTestService(&fakePipeline{})
	headers := []*multipart.FileHeader{
		fileHeader(t, "a.pdf", "application/pdf", samplePDF),
		fileHeader(t, "b.pdf", "application/pdf", samplePDF),
		fileHeader(t, "c.pdf", "application/pdf", samplePDF),
	}

	tasks, err := svc.ProcessBatch(context.Background(), headers, JobOptions{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.Equal(t, name, tasks[i].Metadata["filename"])
	}
	assert.Len(t, q.tasks, 3)
}

func TestHandleDocumentCompletes(t *testing.T) {
	p := &fakePipeline{
		result: models.Succeeded("Jane Doe\n\nExperience", 1, models.MethodNative),
		parsed: &models.ParsedResumeData{Name: "Jane Doe"},
	}
	svc, q, _ := newTestService(p)
	ctx := context.Background()

	task, err := svc.ProcessFile(ctx, fileHeader(t, "cv.pdf", "application/pdf", samplePDF), JobOptions{Parse: true})
	require.NoError(t, err)
	require.NoError(t, svc.HandleDocument(ctx, q.tasks[0]))

	status, err := svc.GetProcessingStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 1.0, status.Progress)

	doc, err := svc.GetProcessedDocument(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, doc.TaskID)
	assert.Equal(t, "completed", doc.Status)
	assert.Len(t, doc.Content, 2)
	require.NotNil(t, doc.Resume)
	assert.Equal(t, "Jane Doe", doc.Resume.Name)
	assert.Equal(t, "cv.pdf", doc.Metadata.FileName)
	assert.Equal(t, "application/pdf", p.files[0].MimeType)
}

func TestHandleDocumentStoresFailedExtraction(t *testing.T) {
	p := &fakePipeline{result: models.Failed(models.TransportError(429, "Too Many Requests"))}
	svc, q, _ := newTestService(p)
	ctx := context.Background()

	task, err := svc.ProcessFile(ctx, fileHeader(t, "scan.pdf", "application/pdf", samplePDF), JobOptions{})
	require.NoError(t, err)
	require.NoError(t, svc.HandleDocument(ctx, q.tasks[0]))

	status, err := svc.GetProcessingStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status.Status)
	assert.Contains(t, status.Error, "rate limit")

	doc, err := svc.GetProcessedDocument(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, models.MsgRateLimited, doc.Metadata.UserMessage)
}

func TestHandleDocumentInvalidTask(t *testing.T) {
	svc, _, _ := newTestService(&fakePipeline{})
	assert.Error(t, svc.HandleDocument(context.Background(), nil))
	assert.Error(t, svc.HandleDocument(context.Background(), &queue.Task{
		ID:       "x",
		Payload:  map[string]interface{}{},
		Metadata: map[string]string{},
	}))
	assert.Error(t, svc.HandleDocument(context.Background(), &queue.Task{
		ID:       "x",
		Payload:  map[string]interface{}{"fileId": "uploads/missing"},
		Metadata: map[string]string{},
	}))
}

func TestGetProcessedDocumentNotReady(t *testing.T) {
	svc, q, _ := newTestService(&fakePipeline{})
	require.NoError(t, q.SaveStatus(context.Background(), &queue.TaskStatus{TaskID: "t1", Status: "running"}))

	_, err := svc.GetProcessedDocument(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrTaskNotReady)

	_, err = svc.GetProcessedDocument(context.Background(), "unknown")
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)
}

func TestCancelTask(t *testing.T) {
	svc, q, _ := newTestService(&fakePipeline{})
	require.NoError(t, svc.CancelTask(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, q.canceled)

	status, err := svc.GetProcessingStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status.Status)
}

func TestCleanupTasks(t *testing.T) {
	svc, _, store := newTestService(&fakePipeline{})
	_, _ = store.Store(context.Background(), strings.NewReader("x"), "fresh")

	require.NoError(t, svc.CleanupTasks(context.Background()))
	assert.Equal(t, 1, store.Len())
}
