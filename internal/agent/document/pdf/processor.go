package pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultMinTextLength = 50
)

// Config 原生提取器配置
type Config struct {
	// Timeout bounds parse + extract. The parser cannot be interrupted, so on
	// timeout the work is abandoned and finishes in the background.
	Timeout       time.Duration
	MinTextLength int
}

// Processor extracts the embedded text layer of a PDF.
type Processor struct {
	factory ParserFactory
	config  Config
	logger  logger.Logger
}

// NewProcessor creates a native extractor. A nil factory uses DefaultParserFactory.
func NewProcessor(factory ParserFactory, config Config, log logger.Logger) *Processor {
	if factory == nil {
		factory = DefaultParserFactory()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MinTextLength <= 0 {
		config.MinTextLength = DefaultMinTextLength
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		factory: factory,
		config:  config,
		logger:  log.Named("native"),
	}
}

func (p *Processor) Name() string { return string(models.MethodNative) }

type outcome struct {
	text      string
	firstPage string
	pages     int
	err       error
}

// Extract runs native extraction against the configured timeout.
func (p *Processor) Extract(ctx context.Context, file models.File) models.ExtractionResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	// buffered so the abandoned goroutine never blocks
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: models.NewExtractError(models.KindCorrupt,
					fmt.Sprintf("failed to parse PDF: %v", r), nil)}
			}
		}()
		done <- p.extract(ctx, file.Data)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = p.interrupted(ctx.Err())
	}

	res := p.result(out)
	res.Set(models.MetaTriedNative, true)
	res.Set(models.MetaExtractionMethod, string(models.MethodNative))

	fields := []logger.Field{
		logger.String("file", file.Name),
		logger.Int("pages", res.PageCount),
		logger.Bool("success", res.Success),
		logger.Duration("elapsed", time.Since(start)),
	}
	if res.Success {
		p.logger.Info("Native extraction finished", fields...)
	} else {
		p.logger.Warn("Native extraction failed", append(fields,
			logger.String("kind", string(res.FailureKind())),
			logger.String("error", res.Error))...)
	}
	return res
}

// interrupted tags a context error as Timeout or Canceled.
func (p *Processor) interrupted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewExtractError(models.KindTimeout,
			fmt.Sprintf("native extraction timed out after %s", p.config.Timeout), err)
	}
	return models.NewExtractError(models.KindCanceled, "native extraction canceled", err)
}

func (p *Processor) result(out outcome) models.ExtractionResult {
	if out.err != nil {
		res := models.Failed(out.err)
		res.PageCount = out.pages
		return res
	}
	if !sufficient(out.text, out.firstPage, p.config.MinTextLength) {
		res := models.Failed(models.NewExtractError(models.KindInsufficientText, "insufficient text", nil))
		res.PageCount = out.pages
		return res
	}
	res := models.Succeeded(out.text, out.pages, models.MethodNative)
	res.Set(models.MetaUserMessage, models.MsgNativeSuccess)
	return res
}

func (p *Processor) extract(ctx context.Context, data []byte) outcome {
	doc, err := p.factory.Open(data)
	if err != nil {
		return outcome{err: err}
	}

	n := doc.NumPage()
	if n <= 0 {
		return outcome{}
	}

	var firstPage string
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		// 超时后调用方已不再等待, 提前退出
		if ctx.Err() != nil {
			return outcome{pages: n, err: p.interrupted(ctx.Err())}
		}

		runs, err := doc.PageRuns(i)
		if err != nil {
			p.logger.Warn("Skipping unreadable page",
				logger.Int("page", i),
				logger.Error(err),
			)
			continue
		}
		text := normalize(joinRuns(runs))
		if i == 1 {
			firstPage = text
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	return outcome{
		text:      normalize(joinPages(pages)),
		firstPage: firstPage,
		pages:     n,
	}
}
