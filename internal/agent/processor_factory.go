package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/agent/document"
	"github.com/feichai0017/resume-extractor/internal/agent/document/ocr"
	"github.com/feichai0017/resume-extractor/internal/agent/document/pdf"
	"github.com/feichai0017/resume-extractor/internal/agent/resume"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// Strategies are the extractors the orchestrator cascades through.
// Remote and Local are nil when unavailable in the execution context.
type Strategies struct {
	Native document.Extractor
	Remote document.Extractor
	Local  document.Extractor
}

// ProcessorFactory builds extraction strategies from configuration.
type ProcessorFactory struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     logger.Logger
}

// FactoryOption customizes a ProcessorFactory.
type FactoryOption func(*ProcessorFactory)

// WithHTTPClient sets the client shared by the HTTP based OCR strategies.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *ProcessorFactory) { f.httpClient = c }
}

func NewProcessorFactory(cfg *config.Config, log logger.Logger, opts ...FactoryOption) *ProcessorFactory {
	if log == nil {
		log = logger.NewNop()
	}
	f := &ProcessorFactory{
		cfg:    cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExecutionContext returns the configured execution context.
func (f *ProcessorFactory) ExecutionContext() models.ExecutionContext {
	return models.ParseExecutionContext(f.cfg.Extraction.Context)
}

// Native builds the text-layer extractor.
func (f *ProcessorFactory) Native() *pdf.Processor {
	ext := f.cfg.Extraction
	return pdf.NewProcessor(
		&pdf.ReaderFactory{MaxPages: ext.MaxPages},
		pdf.Config{Timeout: ext.NativeTimeout, MinTextLength: ext.MinTextLength},
		f.logger,
	)
}

// Remote builds the OCR provider strategy. The browser context always talks
// to OCR.space since it holds no cloud credentials.
func (f *ProcessorFactory) Remote(ctx context.Context) (document.Extractor, error) {
	provider := f.cfg.OCR.Provider
	if f.ExecutionContext() == models.ContextBrowser {
		provider = config.OCRProviderOCRSpace
	}

	switch provider {
	case config.OCRProviderOCRSpace:
		c := f.cfg.OCR
		remote := ocr.NewRemoteExtractor(ocr.RemoteConfig{
			Endpoint: c.Endpoint,
			APIKey:   c.APIKey,
			Language: c.Language,
			Engine:   c.Engine,
			Timeout:  c.Timeout,
		}, f.httpClient, f.logger)
		if !remote.HasAPIKey() {
			f.logger.Warn("OCR API key not set, requests will likely be rejected")
		}
		return remote, nil
	case config.OCRProviderTextract:
		c := f.cfg.Textract
		client, err := ocr.NewTextractClient(ctx, ocr.TextractConfig{
			Region:    c.Region,
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create textract client: %w", err)
		}
		return ocr.NewTextractExtractor(client, c.MinConfidence, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported ocr provider: %s", provider)
	}
}

// Local builds the first-party OCR service client, browser context only.
func (f *ProcessorFactory) Local() document.Extractor {
	if f.ExecutionContext() != models.ContextBrowser || f.cfg.OCR.LocalServiceURL == "" {
		return nil
	}
	return ocr.NewLocalServiceExtractor(f.cfg.OCR.LocalServiceURL, f.cfg.Extraction.MaxFileSize, f.httpClient, f.logger)
}

// Build returns every strategy for the configured execution context.
func (f *ProcessorFactory) Build(ctx context.Context) (Strategies, error) {
	remote, err := f.Remote(ctx)
	if err != nil {
		return Strategies{}, err
	}
	s := Strategies{
		Native: f.Native(),
		Remote: remote,
		Local:  f.Local(),
	}
	f.logger.Info("Extraction strategies ready",
		logger.String("context", string(f.ExecutionContext())),
		logger.String("remote", remote.Name()),
		logger.Bool("local", s.Local != nil),
	)
	return s, nil
}

// Parser builds the structured resume parser, or nil when disabled.
func (f *ProcessorFactory) Parser(ctx context.Context) (resume.Parser, error) {
	c := f.cfg.Parser
	if !c.Enabled {
		return nil, nil
	}
	if c.Provider != "googleai" {
		return nil, fmt.Errorf("unsupported parser provider: %s", c.Provider)
	}
	model, err := resume.NewGeminiModel(ctx, c.APIKey, c.Model)
	if err != nil {
		return nil, err
	}
	return resume.NewLLMParser(model, c.Timeout, f.logger), nil
}
