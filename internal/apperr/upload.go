package apperr

import (
	"fmt"
	"strings"
)

// UploadReason identifies why an upload was rejected.
type UploadReason string

const (
	UploadTransport  UploadReason = "transport"
	UploadNoFile     UploadReason = "no_file"
	UploadTooLarge   UploadReason = "too_large"
	UploadExtension  UploadReason = "extension"
	UploadMIMEType   UploadReason = "mime_type"
	UploadMoveFailed UploadReason = "move_failed"
)

// UploadError is returned when an uploaded file cannot be accepted. It matches
// ErrUpload under errors.Is and exposes the reason via errors.As.
type UploadError struct {
	Reason UploadReason
	Detail string
	Err    error
}

func (e *UploadError) Error() string {
	var b strings.Builder
	b.WriteString(ErrUpload.Error())
	b.WriteString(": ")
	b.WriteString(string(e.Reason))
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UploadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpload}
	}
	return []error{ErrUpload, e.Err}
}

// NewUploadError builds an UploadError with a formatted detail message.
func NewUploadError(reason UploadReason, format string, args ...any) *UploadError {
	return &UploadError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
