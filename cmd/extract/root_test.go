package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/resume-extractor/internal/agent/document/pdf/pdftest"
	"github.com/feichai0017/resume-extractor/internal/models"
)

const resumeLine = "Jane Doe, Senior Go Engineer. Ten years building document pipelines in Go."

func writePDF(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestExtractPrintsText(t *testing.T) {
	path := writePDF(t, "cv.pdf", pdftest.Build(resumeLine))

	stdout, _, err := execute(t, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Jane Doe, Senior Go Engineer")
}

func TestExtractJSON(t *testing.T) {
	path := writePDF(t, "cv.pdf", pdftest.Build(resumeLine))

	stdout, _, err := execute(t, "--json", "--context", "server", path)
	require.NoError(t, err)

	var res models.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, models.MethodNative, res.Method())
}

func TestExtractRejectsNonPDF(t *testing.T) {
	path := writePDF(t, "notes.txt", []byte("just some notes"))

	_, stderr, err := execute(t, path)
	assert.ErrorIs(t, err, errExtractionFailed)
	assert.Contains(t, stderr, models.MsgInvalidInput)
}

func TestExtractMissingFile(t *testing.T) {
	_, stderr, err := execute(t, filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, stderr, "failed to read")
}

func TestExtractInvalidContext(t *testing.T) {
	path := writePDF(t, "cv.pdf", pdftest.Build(resumeLine))

	_, _, err := execute(t, "--context", "desktop", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction.context")
}

func TestLoadConfigBrowserDropsKey(t *testing.T) {
	t.Setenv("OCR_API_KEY", "secret")

	cfg, err := loadConfig(&options{context: "browser", server: "http://localhost:9000/"})
	require.NoError(t, err)
	assert.Empty(t, cfg.OCR.APIKey)
	assert.Equal(t, "http://localhost:9000/api/v1/ocr", cfg.OCR.LocalServiceURL)
}

func TestExtractRequiresOneArg(t *testing.T) {
	_, _, err := execute(t)
	assert.Error(t, err)
}
