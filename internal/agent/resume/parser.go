package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// MinParseLength is the shortest extracted text worth sending to the parser.
const MinParseLength = 100

const maxPromptText = 20000

// ErrTextTooShort is returned for text below MinParseLength.
var ErrTextTooShort = errors.New("text too short to parse")

// Parser turns extracted resume text into structured fields.
type Parser interface {
	Parse(ctx context.Context, text string) (*models.ParsedResumeData, error)
}

// Parseable reports whether text is long enough for Parse.
func Parseable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > MinParseLength
}

const extractionPrompt = `You extract structured data from resume text.
Return one JSON object only, without markdown fences, with these fields:
name, email, phone, location, summary (strings), skills (array of strings),
experience (array of {company, title, startDate, endDate, description}),
education (array of {institution, degree, field, year}).
Use null for missing values. Do not invent information.

RESUME TEXT:
%s`

// LLMParser asks a language model for the structured fields and validates
// the answer against a JSON schema.
type LLMParser struct {
	model   llms.Model
	timeout time.Duration
	logger  logger.Logger
}

func NewLLMParser(model llms.Model, timeout time.Duration, log logger.Logger) *LLMParser {
	if log == nil {
		log = logger.NewNop()
	}
	return &LLMParser{
		model:   model,
		timeout: timeout,
		logger:  log.Named("resume-parser"),
	}
}

// NewGeminiModel creates the Gemini model used in production.
func NewGeminiModel(ctx context.Context, apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return llm, nil
}

func (p *LLMParser) Parse(ctx context.Context, text string) (*models.ParsedResumeData, error) {
	if !Parseable(text) {
		return nil, ErrTextTooShort
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if utf8.RuneCountInString(text) > maxPromptText {
		text = string([]rune(text)[:maxPromptText])
	}

	start := time.Now()
	resp, err := llms.GenerateFromSinglePrompt(ctx, p.model, fmt.Sprintf(extractionPrompt, text),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate structured resume: %w", err)
	}

	raw := stripCodeFence(resp)
	if err := validate([]byte(raw)); err != nil {
		p.logger.Warn("Model returned invalid resume JSON", logger.Error(err))
		return nil, err
	}

	var parsed models.ParsedResumeData
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode structured resume: %w", err)
	}

	p.logger.Info("Parsed resume",
		logger.Int("skills", len(parsed.Skills)),
		logger.Int("experience", len(parsed.Experience)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return &parsed, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
