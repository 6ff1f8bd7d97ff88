package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/feichai0017/resume-extractor/internal/agent/document"
	"github.com/feichai0017/resume-extractor/internal/agent/resume"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/internal/utils/validator"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// Config 编排器配置
type Config struct {
	ExecutionContext models.ExecutionContext
	MaxFileSize      int64
}

// Orchestrator runs the extraction cascade: native text layer, then remote
// OCR, then (browser context only) the first-party OCR service.
// Strategies run one after another, never in parallel.
type Orchestrator struct {
	config Config
	native document.Extractor
	remote document.Extractor
	local  document.Extractor
	parser resume.Parser
	logger logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParser enables ExtractAndParse.
func WithParser(p resume.Parser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// New creates an orchestrator. remote and local may be nil when the
// strategy is not available; local is only used in browser context.
func New(config Config, native, remote, local document.Extractor, log logger.Logger, opts ...Option) *Orchestrator {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = validator.DefaultMaxFileSize
	}
	if config.ExecutionContext == "" {
		config.ExecutionContext = models.ContextServer
	}
	if log == nil {
		log = logger.NewNop()
	}
	o := &Orchestrator{
		config: config,
		native: native,
		remote: remote,
		local:  local,
		logger: log.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecutionContext returns the context strategies were selected for.
func (o *Orchestrator) ExecutionContext() models.ExecutionContext {
	return o.config.ExecutionContext
}

// ExtractText always returns a result, failures included.
func (o *Orchestrator) ExtractText(ctx context.Context, file models.File) (res models.ExtractionResult) {
	start := time.Now()
	log := logger.FromContext(ctx, o.logger).With(
		logger.String("file", file.Name),
		logger.String("context", string(o.config.ExecutionContext)),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Extraction panicked", logger.Any("panic", r))
			res = models.Failed(models.NewExtractError(models.KindCorrupt, fmt.Sprintf("extraction failed: %v", r), nil))
		}
		log.Info("Extraction finished",
			logger.Bool("success", res.Success),
			logger.String("method", string(res.Method())),
			logger.Duration("elapsed", time.Since(start)),
		)
	}()

	if err := validator.ValidatePDF(file, o.config.MaxFileSize); err != nil {
		log.Warn("Input rejected", logger.Error(err))
		return models.Failed(err)
	}

	// NATIVE
	nativeRes := o.run(ctx, o.native, file)
	if nativeRes.Success {
		nativeRes.Set(models.MetaTriedNative, true)
		nativeRes.Set(models.MetaTriedOCR, false)
		return nativeRes
	}
	log.Info("Native extraction insufficient, falling back to OCR",
		logger.String("kind", string(nativeRes.FailureKind())),
		logger.String("error", nativeRes.Error),
	)

	if o.remote == nil || ctx.Err() != nil {
		return o.exhausted(nativeRes, nil, nil)
	}

	// REMOTE_OCR
	remoteRes := o.run(ctx, o.remote, file)
	if remoteRes.Success {
		return o.fromOCR(remoteRes, nativeRes, nil)
	}

	if o.config.ExecutionContext != models.ContextBrowser || o.local == nil || ctx.Err() != nil {
		return o.exhausted(nativeRes, &remoteRes, nil)
	}
	log.Info("Remote OCR failed, trying local OCR service", logger.String("error", remoteRes.Error))

	// LOCAL_OCR
	localRes := o.run(ctx, o.local, file)
	if localRes.Success {
		return o.fromOCR(localRes, nativeRes, &remoteRes)
	}
	return o.exhausted(nativeRes, &remoteRes, &localRes)
}

func (o *Orchestrator) run(ctx context.Context, e document.Extractor, file models.File) models.ExtractionResult {
	if e == nil {
		return models.Failed(models.NewExtractError(models.KindTransport, "strategy not configured", nil))
	}
	return e.Extract(ctx, file).Clone()
}

// fromOCR tags a successful OCR result with the earlier failures.
func (o *Orchestrator) fromOCR(res, native models.ExtractionResult, remote *models.ExtractionResult) models.ExtractionResult {
	res.Set(models.MetaUsedOCR, true)
	res.Set(models.MetaTriedNative, true)
	res.Set(models.MetaTriedOCR, true)
	res.Set(models.MetaOriginalMethod, string(models.MethodNative))
	res.Set(models.MetaOriginalError, native.Error)
	if remote != nil {
		res.Set(models.MetaOCRError, remote.Error)
	}
	return res
}

// exhausted builds the terminal failure. The primary error is the first
// meaningful one; an encryption diagnostic from the native step always wins.
func (o *Orchestrator) exhausted(native models.ExtractionResult, remote, local *models.ExtractionResult) models.ExtractionResult {
	attempts := []models.ExtractionResult{native}
	if remote != nil {
		attempts = append(attempts, *remote)
	}
	if local != nil {
		attempts = append(attempts, *local)
	}

	primary := attempts[len(attempts)-1]
	if native.FailureKind() == models.KindEncrypted {
		primary = native
	} else {
		for _, a := range attempts {
			if a.FailureKind().Meaningful() {
				primary = a
				break
			}
		}
	}

	res := primary.Clone()
	res.Text = ""
	res.Success = false
	if res.Error == "" {
		res.Error = "extraction failed"
	}
	res.Set(models.MetaUsedOCR, false)
	res.Set(models.MetaTriedNative, true)
	res.Set(models.MetaTriedOCR, remote != nil)
	res.Set(models.MetaOriginalMethod, string(models.MethodNative))
	res.Set(models.MetaOriginalError, native.Error)
	if remote != nil {
		res.Set(models.MetaOCRError, remote.Error)
	}
	if local != nil {
		res.Set(models.MetaLocalOCRError, local.Error)
	}
	if res.UserMessage() == "" {
		res.Set(models.MetaUserMessage, models.MsgExtractionFailed)
	}
	return res
}

// ExtractAndParse extracts text and forwards it to the structured parser
// when it is long enough to be worth parsing.
func (o *Orchestrator) ExtractAndParse(ctx context.Context, file models.File) models.ParseOutcome {
	out := models.ParseOutcome{Extraction: o.ExtractText(ctx, file)}
	if !out.Extraction.Success {
		return out
	}
	if o.parser == nil {
		out.ParseError = "structured parser not configured"
		return out
	}
	if !resume.Parseable(out.Extraction.Text) {
		out.ParseError = fmt.Sprintf("extracted text shorter than %d characters", resume.MinParseLength)
		return out
	}

	parsed, err := o.parser.Parse(ctx, out.Extraction.Text)
	if err != nil {
		logger.FromContext(ctx, o.logger).Warn("Structured parse failed",
			logger.String("file", file.Name),
			logger.Error(err),
		)
		out.ParseError = err.Error()
		return out
	}
	out.Resume = parsed
	return out
}
