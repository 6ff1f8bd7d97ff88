// internal/utils/validator/document.go
package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// DefaultMaxFileSize is the per-file cap enforced at every trust boundary.
const DefaultMaxFileSize int64 = 1 << 20

const PDFMimeType = "application/pdf"

var pdfSignature = []byte("%PDF")

// validation error codes
const (
	CodeFileEmpty        = "FILE_EMPTY"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidMimeType  = "INVALID_MIME_TYPE"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeUnreadable       = "FILE_UNREADABLE"
)

// ValidatePDF is the fail-fast gate run before any extraction strategy.
func ValidatePDF(file models.File, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	size := file.Size
	if size == 0 {
		size = int64(len(file.Data))
	}
	if size <= 0 || len(file.Data) == 0 {
		return models.InvalidInputError(CodeFileEmpty, "file is empty")
	}
	if size > maxSize || int64(len(file.Data)) > maxSize {
		return models.InvalidInputError(CodeFileTooLarge,
			fmt.Sprintf("file size exceeds maximum limit of %d bytes", maxSize))
	}
	if !IsPDFMimeType(file.MimeType) {
		return models.InvalidInputError(CodeInvalidMimeType,
			fmt.Sprintf("unsupported file type: %q, expected %s", file.MimeType, PDFMimeType))
	}
	if !bytes.HasPrefix(file.Data, pdfSignature) {
		return models.InvalidInputError(CodeInvalidSignature, "not a valid PDF: missing %PDF signature")
	}
	return nil
}

// IsPDFMimeType accepts application/pdf with optional parameters.
func IsPDFMimeType(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt == PDFMimeType
}

// CodeOf returns the validation code of an input-gate error.
func CodeOf(err error) string {
	var ee *models.ExtractError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// DocumentValidator validates multipart uploads at the HTTP boundary
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
	mu     sync.RWMutex
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64 // bytes
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
	File     models.File       `json:"-"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil || config.MaxFileSize <= 0 {
		config = &ValidatorConfig{MaxFileSize: DefaultMaxFileSize}
	}
	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// MaxFileSize returns the configured cap.
func (v *DocumentValidator) MaxFileSize() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.config.MaxFileSize
}

// ValidateFile reads an uploaded file and runs the PDF gate on it.
// The header size is checked before the body is read so oversized uploads are never buffered.
func (v *DocumentValidator) ValidateFile(header *multipart.FileHeader) (*ValidationResult, error) {
	maxSize := v.MaxFileSize()
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  header.Filename,
			Size:      header.Size,
			MimeType:  header.Header.Get("Content-Type"),
			Extension: strings.ToLower(filepath.Ext(header.Filename)),
		},
	}

	if header.Size > maxSize {
		v.reject(result, models.InvalidInputError(CodeFileTooLarge,
			fmt.Sprintf("file size exceeds maximum limit of %d bytes", maxSize)))
		return result, nil
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	// read one byte past the cap to catch a lying header
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if result.FileInfo.MimeType == "" || result.FileInfo.MimeType == "application/octet-stream" {
		result.FileInfo.MimeType = v.detectMimeType(data)
	}
	result.FileInfo.Hash = calculateHash(data)
	result.File = models.File{
		Name:     header.Filename,
		MimeType: result.FileInfo.MimeType,
		Data:     data,
		Size:     int64(len(data)),
	}

	if err := ValidatePDF(result.File, maxSize); err != nil {
		v.reject(result, err)
	}
	return result, nil
}

// FirstError returns the first validation failure as an error.
func (r *ValidationResult) FirstError() error {
	if r.IsValid || len(r.Errors) == 0 {
		return nil
	}
	return models.InvalidInputError(r.Errors[0].Code, r.Errors[0].Message)
}

func (v *DocumentValidator) reject(result *ValidationResult, err error) {
	result.IsValid = false
	result.Errors = append(result.Errors, ValidationError{
		Code:    CodeOf(err),
		Message: err.Error(),
		Field:   fieldFor(CodeOf(err)),
	})
	if v.logger != nil {
		v.logger.Warn("Upload rejected",
			logger.String("filename", result.FileInfo.Filename),
			logger.String("code", CodeOf(err)),
		)
	}
}

func fieldFor(code string) string {
	switch code {
	case CodeFileTooLarge, CodeFileEmpty:
		return "size"
	case CodeInvalidMimeType:
		return "mimeType"
	default:
		return "file"
	}
}

// 检测MIME类型
func (v *DocumentValidator) detectMimeType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}

// 计算文件哈希
func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
