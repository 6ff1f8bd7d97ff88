package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// TextractAPI is the part of the Textract client the extractor uses.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type TextractConfig struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

// NewTextractClient builds a Textract client. Static credentials are used
// when both keys are set, otherwise the default AWS chain applies.
func NewTextractClient(ctx context.Context, cfg TextractConfig) (*textract.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// TextractExtractor runs synchronous Textract text detection.
// The synchronous API accepts single-page PDFs only.
type TextractExtractor struct {
	client        TextractAPI
	minConfidence float32
	logger        logger.Logger
}

func NewTextractExtractor(client TextractAPI, minConfidence float32, log logger.Logger) *TextractExtractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &TextractExtractor{
		client:        client,
		minConfidence: minConfidence,
		logger:        log.Named("ocr-textract"),
	}
}

func (e *TextractExtractor) Name() string { return "textract" }

func (e *TextractExtractor) Extract(ctx context.Context, file models.File) models.ExtractionResult {
	start := time.Now()
	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: file.Data},
	})
	if err != nil {
		err = classifyTextractError(err)
		e.logger.Warn("Textract detection failed",
			logger.String("file", file.Name),
			logger.Error(err),
		)
		res := models.Failed(err)
		res.Set(models.MetaExtractionMethod, string(models.MethodOCRRemote))
		res.Set(models.MetaProvider, "textract")
		return res
	}

	lines := make([]string, 0, len(out.Blocks))
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < e.minConfidence {
			continue
		}
		lines = append(lines, *block.Text)
	}

	pages := 1
	if out.DocumentMetadata != nil && out.DocumentMetadata.Pages != nil && *out.DocumentMetadata.Pages > 0 {
		pages = int(*out.DocumentMetadata.Pages)
	}

	res := models.Succeeded(strings.TrimSpace(strings.Join(lines, "\n")), pages, models.MethodOCRRemote)
	res.Set(models.MetaProvider, "textract")
	if res.Success {
		res.Set(models.MetaUserMessage, models.MsgOCRSuccess)
	}
	e.logger.Info("Textract detection finished",
		logger.String("file", file.Name),
		logger.Int("lines", len(lines)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res
}

// classifyTextractError maps Textract API errors onto the OCR status categories.
func classifyTextractError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException", "LimitExceededException":
			return wrapStatus(http.StatusTooManyRequests, err)
		case "AccessDeniedException", "UnrecognizedClientException":
			return wrapStatus(http.StatusForbidden, err)
		case "UnsupportedDocumentException", "BadDocumentException", "DocumentTooLargeException":
			return models.NewExtractError(models.KindNoText, fmt.Sprintf("Textract rejected the document: %s", apiErr.ErrorMessage()), err)
		}
	}
	return transportFailure("Textract request failed", err)
}

func wrapStatus(status int, err error) error {
	e := models.TransportError(status, http.StatusText(status))
	e.Err = err
	return e
}
