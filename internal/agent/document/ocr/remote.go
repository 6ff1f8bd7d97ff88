package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

const (
	DefaultEndpoint = "https://api.ocr.space/parse/image"
	DefaultLanguage = "eng"
	// engine 2 is the higher accuracy variant
	DefaultEngine  = "2"
	DefaultTimeout = 60 * time.Second

	maxResponseSize = 10 << 20
)

// RemoteConfig OCR.space 客户端配置
type RemoteConfig struct {
	Endpoint string
	// APIKey 只在服务端上下文中可用
	APIKey   string
	Language string
	Engine   string
	// Timeout bounds the whole HTTP exchange, 0 disables it
	Timeout time.Duration
}

// ocrSpaceResponse is the subset of the OCR.space response we read.
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string      `json:"ParsedText"`
		ErrorMessage      messageList `json:"ErrorMessage"`
		FileParseExitCode int         `json:"FileParseExitCode"`
	} `json:"ParsedResults"`
	OCRExitCode           int         `json:"OCRExitCode"`
	IsErroredOnProcessing bool        `json:"IsErroredOnProcessing"`
	ErrorMessage          messageList `json:"ErrorMessage"`
	ErrorDetails          string      `json:"ErrorDetails"`
}

// messageList accepts a JSON string, an array of strings or null.
type messageList []string

func (m *messageList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*m = messageList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*m = many
	return nil
}

func (m messageList) String() string { return strings.Join(m, "; ") }

// RemoteExtractor uploads the file to an OCR.space compatible endpoint.
type RemoteExtractor struct {
	config     RemoteConfig
	httpClient *http.Client
	logger     logger.Logger
}

// NewRemoteExtractor creates a remote OCR strategy. A nil client gets one
// bounded by config.Timeout.
func NewRemoteExtractor(config RemoteConfig, client *http.Client, log logger.Logger) *RemoteExtractor {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Language == "" {
		config.Language = DefaultLanguage
	}
	if config.Engine == "" {
		config.Engine = DefaultEngine
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RemoteExtractor{
		config:     config,
		httpClient: client,
		logger:     log.Named("ocr-remote"),
	}
}

func (e *RemoteExtractor) Name() string { return string(models.MethodOCRRemote) }

// HasAPIKey reports whether requests carry an API key.
func (e *RemoteExtractor) HasAPIKey() bool { return e.config.APIKey != "" }

// Extract runs OCR on the file. Failures come back as a failed result.
func (e *RemoteExtractor) Extract(ctx context.Context, file models.File) models.ExtractionResult {
	start := time.Now()
	text, err := e.recognize(ctx, file)
	if err != nil {
		e.logger.Warn("Remote OCR failed",
			logger.String("file", file.Name),
			logger.Int("status", models.StatusOf(err)),
			logger.Error(err),
		)
		res := models.Failed(err)
		res.Set(models.MetaExtractionMethod, string(models.MethodOCRRemote))
		return res
	}

	// OCR.space does not report a page count, 1 is a placeholder
	res := models.Succeeded(text, 1, models.MethodOCRRemote)
	if res.Success {
		res.Set(models.MetaUserMessage, models.MsgOCRSuccess)
		res.Set(models.MetaProvider, "ocrspace")
	}
	e.logger.Info("Remote OCR finished",
		logger.String("file", file.Name),
		logger.Int("chars", len(text)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res
}

func (e *RemoteExtractor) recognize(ctx context.Context, file models.File) (string, error) {
	body, contentType, err := e.buildForm(file)
	if err != nil {
		return "", models.NewExtractError(models.KindTransport, fmt.Sprintf("failed to build OCR request: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, body)
	if err != nil {
		return "", models.NewExtractError(models.KindTransport, fmt.Sprintf("failed to create OCR request: %v", err), err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", transportFailure("OCR request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return "", models.TransportError(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var result ocrSpaceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return "", models.NewExtractError(models.KindNoText, fmt.Sprintf("failed to decode OCR response: %v", err), err)
	}

	texts := make([]string, 0, len(result.ParsedResults))
	for _, r := range result.ParsedResults {
		texts = append(texts, r.ParsedText)
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text != "" {
		return text, nil
	}

	return "", models.NewExtractError(models.KindNoText, result.failureMessage(), nil)
}

// failureMessage surfaces the service's own message when there is one.
func (r *ocrSpaceResponse) failureMessage() string {
	if len(r.ErrorMessage) > 0 {
		return r.ErrorMessage.String()
	}
	if r.ErrorDetails != "" {
		return r.ErrorDetails
	}
	for _, pr := range r.ParsedResults {
		if len(pr.ErrorMessage) > 0 {
			return pr.ErrorMessage.String()
		}
	}
	return "OCR returned no text"
}

func (e *RemoteExtractor) buildForm(file models.File) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := writeFilePart(w, file); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"language", e.config.Language},
		{"isOverlayRequired", "false"},
		{"OCREngine", e.config.Engine},
	}
	if e.config.APIKey != "" {
		fields = append(fields, [2]string{"apikey", e.config.APIKey})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, file models.File) error {
	name := file.Name
	if name == "" {
		name = "document.pdf"
	}
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/pdf"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}

// transportFailure wraps a network error, keeping context errors
// visible to models.KindOf.
func transportFailure(msg string, err error) error {
	kind := models.KindOf(err)
	if kind != models.KindTimeout && kind != models.KindCanceled {
		kind = models.KindTransport
	}
	return models.NewExtractError(kind, fmt.Sprintf("%s: %v", msg, err), err)
}
