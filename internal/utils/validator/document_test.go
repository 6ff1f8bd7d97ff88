package validator

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

func pdfBytes(n int) []byte {
	b := make([]byte, n)
	copy(b, "%PDF-1.4\n")
	for i := 9; i < n; i++ {
		b[i] = 'a'
	}
	return b
}

func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name string
		file models.File
		code string
	}{
		{"empty", models.NewFile("a.pdf", PDFMimeType, nil), CodeFileEmpty},
		{"too large", models.NewFile("a.pdf", PDFMimeType, pdfBytes(2<<20)), CodeFileTooLarge},
		{"declared size too large", models.File{Name: "a.pdf", MimeType: PDFMimeType, Data: pdfBytes(64), Size: 2 << 20}, CodeFileTooLarge},
		{"wrong mime", models.NewFile("a.png", "image/png", pdfBytes(64)), CodeInvalidMimeType},
		{"bad signature", models.NewFile("a.pdf", PDFMimeType, []byte("hello world")), CodeInvalidSignature},
		{"ok", models.NewFile("a.pdf", PDFMimeType, pdfBytes(64)), ""},
		{"ok with params", models.NewFile("a.pdf", "application/pdf; charset=binary", pdfBytes(64)), ""},
		{"exactly at cap", models.NewFile("a.pdf", PDFMimeType, pdfBytes(1<<20)), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePDF(tt.file, DefaultMaxFileSize)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
		})
	}
}

func TestValidatePDFEmptyMessage(t *testing.T) {
	err := ValidatePDF(models.NewFile("a.pdf", PDFMimeType, []byte{}), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func fileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(4<<20))
	return req.MultipartForm.File["file"][0]
}

func TestDocumentValidatorValidateFile(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	res, err := v.ValidateFile(fileHeader(t, "cv.pdf", PDFMimeType, pdfBytes(128)))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Len(t, res.File.Data, 128)
	assert.Len(t, res.FileInfo.Hash, 64)
	assert.NoError(t, res.FirstError())

	res, err = v.ValidateFile(fileHeader(t, "cv.txt", "text/plain", []byte(strings.Repeat("x", 10))))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, CodeInvalidMimeType, res.Errors[0].Code)
	assert.Error(t, res.FirstError())
}

func TestDocumentValidatorDetectsMimeWhenMissing(t *testing.T) {
	v := NewDocumentValidator(nil, &ValidatorConfig{MaxFileSize: 1024})
	res, err := v.ValidateFile(fileHeader(t, "cv.pdf", "application/octet-stream", pdfBytes(200)))
	require.NoError(t, err)
	assert.Equal(t, PDFMimeType, res.FileInfo.MimeType)
	assert.True(t, res.IsValid)
}

func TestDocumentValidatorRejectsOversizedHeader(t *testing.T) {
	v := NewDocumentValidator(nil, &ValidatorConfig{MaxFileSize: 100})
	res, err := v.ValidateFile(fileHeader(t, "cv.pdf", PDFMimeType, pdfBytes(500)))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, CodeFileTooLarge, res.Errors[0].Code)
}
