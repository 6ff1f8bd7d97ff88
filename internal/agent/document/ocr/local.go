package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/internal/utils/validator"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// LocalResponse is the body returned by the first-party OCR endpoint.
type LocalResponse struct {
	Success   bool            `json:"success"`
	Text      string          `json:"text,omitempty"`
	PageCount int             `json:"pageCount,omitempty"`
	Error     string          `json:"error,omitempty"`
	Metadata  models.Metadata `json:"metadata,omitempty"`
}

// NewLocalResponse converts an extraction result into the endpoint's body.
func NewLocalResponse(res models.ExtractionResult) LocalResponse {
	return LocalResponse{
		Success:   res.Success,
		Text:      res.Text,
		PageCount: res.PageCount,
		Error:     res.Error,
		Metadata:  res.Metadata,
	}
}

// LocalServiceExtractor posts the file to the first-party /api/v1/ocr
// endpoint, which runs OCR with the server-held API key.
type LocalServiceExtractor struct {
	url         string
	maxFileSize int64
	httpClient  *http.Client
	logger      logger.Logger
}

func NewLocalServiceExtractor(url string, maxFileSize int64, client *http.Client, log logger.Logger) *LocalServiceExtractor {
	if maxFileSize <= 0 {
		maxFileSize = validator.DefaultMaxFileSize
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LocalServiceExtractor{
		url:         url,
		maxFileSize: maxFileSize,
		httpClient:  client,
		logger:      log.Named("ocr-local"),
	}
}

func (e *LocalServiceExtractor) Name() string { return string(models.MethodOCRLocal) }

func (e *LocalServiceExtractor) Extract(ctx context.Context, file models.File) models.ExtractionResult {
	start := time.Now()
	res, err := e.call(ctx, file)
	if err != nil {
		e.logger.Warn("Local OCR service failed",
			logger.String("file", file.Name),
			logger.String("url", e.url),
			logger.Error(err),
		)
		res = models.Failed(err)
		res.Set(models.MetaExtractionMethod, string(models.MethodOCRLocal))
		res.Set(models.MetaServerSide, true)
		return res
	}

	e.logger.Info("Local OCR service finished",
		logger.String("file", file.Name),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res
}

func (e *LocalServiceExtractor) call(ctx context.Context, file models.File) (models.ExtractionResult, error) {
	// separate trust boundary, checked again here
	if err := validator.ValidatePDF(file, e.maxFileSize); err != nil {
		return models.ExtractionResult{}, err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := writeFilePart(w, file); err != nil {
		return models.ExtractionResult{}, models.NewExtractError(models.KindTransport, "failed to build OCR request", err)
	}
	if err := w.Close(); err != nil {
		return models.ExtractionResult{}, models.NewExtractError(models.KindTransport, "failed to build OCR request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, buf)
	if err != nil {
		return models.ExtractionResult{}, models.NewExtractError(models.KindTransport, fmt.Sprintf("failed to create request: %v", err), err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return models.ExtractionResult{}, transportFailure("local OCR service unreachable", err)
	}
	defer resp.Body.Close()

	var body LocalResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body)

	if decodeErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return models.ExtractionResult{}, &models.ExtractError{
				Kind:    models.KindTransport,
				Status:  resp.StatusCode,
				Message: fmt.Sprintf("local OCR service error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			}
		}
		return models.ExtractionResult{}, models.NewExtractError(models.KindTransport,
			fmt.Sprintf("failed to decode local OCR response: %v", decodeErr), decodeErr)
	}

	if !body.Success {
		kind := models.KindTransport
		if k, ok := body.Metadata[models.MetaFailureKind].(string); ok && k != "" {
			kind = models.FailureKind(k)
		}
		msg := body.Error
		if msg == "" {
			msg = fmt.Sprintf("local OCR service error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		status := 0
		if kind == models.KindTransport && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			status = resp.StatusCode
		}
		if s, ok := body.Metadata[models.MetaStatus].(float64); ok && s > 0 {
			status = int(s)
		}
		return models.ExtractionResult{}, &models.ExtractError{Kind: kind, Status: status, Message: msg}
	}

	pages := body.PageCount
	if pages <= 0 {
		pages = 1
	}
	res := models.Succeeded(body.Text, pages, models.MethodOCRLocal)
	if !res.Success {
		res.Set(models.MetaServerSide, true)
		return res, nil
	}
	for k, v := range body.Metadata {
		if _, reserved := res.Metadata[k]; !reserved {
			res.Metadata[k] = v
		}
	}
	res.Set(models.MetaServerSide, true)
	res.Set(models.MetaUserMessage, models.MsgLocalOCRSuccess)
	return res, nil
}
