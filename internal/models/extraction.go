package models

import "strings"

// ExtractionMethod identifies the strategy that produced a result
type ExtractionMethod string

const (
	MethodNative    ExtractionMethod = "native"
	MethodOCRRemote ExtractionMethod = "ocr-remote"
	MethodOCRLocal  ExtractionMethod = "ocr-local"
)

// ExecutionContext selects which OCR strategies are reachable.
// A browser context has no OCR API key and may proxy through the first-party service,
// a server context holds the key and calls the OCR provider directly.
type ExecutionContext string

const (
	ContextBrowser ExecutionContext = "browser"
	ContextServer  ExecutionContext = "server"
)

// ParseExecutionContext maps a config value to an ExecutionContext, defaulting to server.
func ParseExecutionContext(s string) ExecutionContext {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ContextBrowser), "client":
		return ContextBrowser
	default:
		return ContextServer
	}
}

// metadata keys
const (
	MetaExtractionMethod = "extractionMethod"
	MetaUsedOCR          = "usedOcr"
	MetaUserMessage      = "userMessage"
	MetaTriedNative      = "triedNative"
	MetaTriedOCR         = "triedOcr"
	MetaOriginalError    = "originalError"
	MetaOriginalMethod   = "originalMethod"
	MetaServerSide       = "serverSide"
	MetaFailureKind      = "failureKind"
	MetaOCRError         = "ocrError"
	MetaLocalOCRError    = "localOcrError"
	MetaProvider         = "provider"
	MetaStatus           = "status"
)

// user-facing messages
const (
	MsgNativeSuccess     = "Text extracted from the PDF text layer"
	MsgOCRSuccess        = "Text extracted using OCR because native extraction was insufficient"
	MsgLocalOCRSuccess   = "Text extracted using server-side OCR because native extraction was insufficient"
	MsgExtractionFailed  = "PDF text extraction failed. Please ensure the PDF contains selectable text or try a different file."
	MsgEncrypted         = "This PDF is password protected. Please remove the password and upload it again."
	MsgInvalidInput      = "Please upload a valid PDF file no larger than 1 MB."
	MsgRateLimited       = "The OCR service is busy right now. Please try again in a few minutes."
	MsgNativeTimeout     = "Reading the PDF took too long."
	MsgInsufficientText  = "The PDF does not contain enough selectable text."
	MsgCorruptDocument   = "The PDF appears to be damaged or uses an unsupported structure."
	MsgOCRNoTextDetected = "No text could be recognized in the document."
)

// File is the input to an extraction call.
type File struct {
	Name     string
	MimeType string
	Data     []byte
	Size     int64
}

// NewFile builds a File whose Size matches its data.
func NewFile(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MimeType: mimeType,
		Data:     data,
		Size:     int64(len(data)),
	}
}

// Metadata carries diagnostics and UI messaging for an ExtractionResult
type Metadata map[string]interface{}

// ExtractionResult is the single shape every strategy and the orchestrator return.
type ExtractionResult struct {
	Text      string   `json:"text"`
	PageCount int      `json:"pageCount"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

// Succeeded builds a successful result. An empty text is turned into a NoText failure
// so that Success always implies non-empty Text.
func Succeeded(text string, pageCount int, method ExtractionMethod) ExtractionResult {
	if strings.TrimSpace(text) == "" {
		res := Failed(NewExtractError(KindNoText, "no text extracted", nil))
		res.Metadata[MetaExtractionMethod] = string(method)
		return res
	}
	return ExtractionResult{
		Text:      text,
		PageCount: pageCount,
		Success:   true,
		Metadata: Metadata{
			MetaExtractionMethod: string(method),
			MetaUsedOCR:          method != MethodNative,
		},
	}
}

// Failed builds a failed result from err.
func Failed(err error) ExtractionResult {
	msg := "extraction failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	kind := KindOf(err)
	res := ExtractionResult{
		Text:    "",
		Success: false,
		Error:   msg,
		Metadata: Metadata{
			MetaFailureKind: string(kind),
			MetaUserMessage: UserMessageFor(err),
		},
	}
	if status := StatusOf(err); status > 0 {
		res.Metadata[MetaStatus] = status
	}
	return res
}

// Clone returns a copy with an independent metadata map.
func (r ExtractionResult) Clone() ExtractionResult {
	out := r
	out.Metadata = make(Metadata, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// Method returns the extraction method recorded in metadata.
func (r ExtractionResult) Method() ExtractionMethod {
	s, _ := r.Metadata[MetaExtractionMethod].(string)
	return ExtractionMethod(s)
}

// UsedOCR reports whether an OCR strategy produced the text.
func (r ExtractionResult) UsedOCR() bool {
	b, _ := r.Metadata[MetaUsedOCR].(bool)
	return b
}

// FailureKind returns the failure kind recorded in metadata, if any.
func (r ExtractionResult) FailureKind() FailureKind {
	s, _ := r.Metadata[MetaFailureKind].(string)
	return FailureKind(s)
}

// UserMessage returns the UI message recorded in metadata.
func (r ExtractionResult) UserMessage() string {
	s, _ := r.Metadata[MetaUserMessage].(string)
	return s
}

// Set writes a metadata key, allocating the map when needed.
func (r *ExtractionResult) Set(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(Metadata)
	}
	r.Metadata[key] = value
}
