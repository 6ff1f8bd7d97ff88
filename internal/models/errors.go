package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FailureKind is the closed set of reasons a strategy can fail
type FailureKind string

const (
	KindInvalidInput     FailureKind = "invalid_input"
	KindTimeout          FailureKind = "timeout"
	KindEncrypted        FailureKind = "encrypted"
	KindCorrupt          FailureKind = "corrupt"
	KindInsufficientText FailureKind = "insufficient_text"
	KindTransport        FailureKind = "transport"
	KindNoText           FailureKind = "no_text"
	KindCanceled         FailureKind = "canceled"
)

// ExtractError is produced at the point of failure so callers branch on Kind
// instead of matching message substrings.
type ExtractError struct {
	Kind    FailureKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ExtractError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// NewExtractError creates an ExtractError of the given kind.
func NewExtractError(kind FailureKind, message string, err error) *ExtractError {
	return &ExtractError{Kind: kind, Message: message, Err: err}
}

// InvalidInputError is returned by the input gate.
func InvalidInputError(code, message string) *ExtractError {
	return &ExtractError{Kind: KindInvalidInput, Code: code, Message: message}
}

// TransportError maps an OCR HTTP status to an error.
func TransportError(status int, statusText string) *ExtractError {
	var msg string
	switch status {
	case http.StatusForbidden:
		msg = "OCR API access denied: rate limited or missing API key"
	case http.StatusTooManyRequests:
		msg = "OCR API rate limit exceeded, retry later"
	default:
		msg = fmt.Sprintf("OCR API error: %d %s", status, statusText)
	}
	return &ExtractError{Kind: KindTransport, Status: status, Message: msg}
}

// KindOf extracts the FailureKind from err. Context errors are classified as well.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindTransport
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Status
	}
	return 0
}

// UserMessageFor picks a UI message for a failure.
func UserMessageFor(err error) string {
	switch KindOf(err) {
	case KindEncrypted:
		return MsgEncrypted
	case KindInvalidInput:
		return MsgInvalidInput
	case KindTimeout:
		return MsgNativeTimeout
	case KindInsufficientText:
		return MsgInsufficientText
	case KindCorrupt:
		return MsgCorruptDocument
	case KindNoText:
		return MsgOCRNoTextDetected
	case KindTransport:
		if StatusOf(err) == http.StatusTooManyRequests {
			return MsgRateLimited
		}
	}
	return MsgExtractionFailed
}

// Meaningful reports whether a failure kind carries a diagnostic worth surfacing
// over a later strategy's error. An empty text layer says nothing about why OCR failed.
func (k FailureKind) Meaningful() bool {
	switch k {
	case KindInsufficientText, "":
		return false
	}
	return true
}
