package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

func TestFactoryServerContext(t *testing.T) {
	cfg := config.Default()
	f := NewProcessorFactory(cfg, logger.NewTestLogger())

	s, err := f.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ContextServer, f.ExecutionContext())
	assert.Equal(t, "native", s.Native.Name())
	assert.Equal(t, "ocr-remote", s.Remote.Name())
	assert.Nil(t, s.Local)
}

func TestFactoryBrowserContext(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.Context = "browser"
	cfg.OCR.Provider = config.OCRProviderTextract

	s, err := NewProcessorFactory(cfg, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ocr-remote", s.Remote.Name())
	require.NotNil(t, s.Local)
	assert.Equal(t, "ocr-local", s.Local.Name())
}

func TestFactoryTextractProvider(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.Provider = config.OCRProviderTextract
	cfg.Textract.Region = "us-east-1"
	cfg.Textract.AccessKey = "key"
	cfg.Textract.SecretKey = "secret"

	remote, err := NewProcessorFactory(cfg, nil).Remote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "textract", remote.Name())
}

func TestFactoryUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.Provider = "tesseract"
	_, err := NewProcessorFactory(cfg, nil).Build(context.Background())
	assert.Error(t, err)
}

func TestFactoryParser(t *testing.T) {
	cfg := config.Default()
	f := NewProcessorFactory(cfg, nil)

	p, err := f.Parser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg.Parser.Enabled = true
	cfg.Parser.APIKey = ""
	_, err = f.Parser(context.Background())
	assert.Error(t, err)

	cfg.Parser.Provider = "openai"
	_, err = f.Parser(context.Background())
	assert.Error(t, err)
}
