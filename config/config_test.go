package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), cfg.Extraction.MaxFileSize)
	assert.Equal(t, 15*time.Second, cfg.Extraction.NativeTimeout)
	assert.Equal(t, 60*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, "2", cfg.OCR.Engine)
	assert.Equal(t, 24*time.Hour, cfg.Queue.StatusTTL)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
extraction:
  context: browser
  nativeTimeout: 3s
ocr:
  provider: textract
  timeout: 0s
storage:
  type: minio
  minio:
    bucketName: resumes
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "browser", cfg.Extraction.Context)
	assert.Equal(t, 3*time.Second, cfg.Extraction.NativeTimeout)
	assert.Equal(t, int64(1<<20), cfg.Extraction.MaxFileSize)
	assert.Equal(t, OCRProviderTextract, cfg.OCR.Provider)
	assert.Zero(t, cfg.OCR.Timeout)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "resumes", cfg.Storage.Minio.BucketName)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	t.Setenv("OCR_API_KEY", "k-123")
	t.Setenv("EXTRACTION_MAX_FILE_SIZE", "2048")
	t.Setenv("MINIO_USE_SSL", "true")
	path := writeYAML(t, "ocr:\n  apiKey: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.OCR.APIKey)
	assert.Equal(t, int64(2048), cfg.Extraction.MaxFileSize)
	assert.True(t, cfg.Storage.Minio.UseSSL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"context":  "extraction:\n  context: desktop\n",
		"provider": "ocr:\n  provider: tesseract\n",
		"size":     "extraction:\n  maxFileSize: 0\n",
		"timeout":  "ocr:\n  timeout: -1s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
