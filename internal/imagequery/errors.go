package imagequery

import (
	"errors"
	"net/http"

	"imagequery/internal/inference"
)

// Public messages returned to clients.
const (
	MsgBothRequired = "Both image and query are required"
	MsgInvalidImage = "Invalid image file: "
	MsgUploadFailed = "Failed to upload image"
)

// ValidationError reports malformed or incomplete client input (400).
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string   { return e.Msg }
func (e *ValidationError) Unwrap() error   { return e.Err }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// UploadError reports a failed hosting step (500). The client only sees
// MsgUploadFailed; the cause is kept for logs.
type UploadError struct {
	Strategy string
	Err      error
}

func (e *UploadError) Error() string   { return MsgUploadFailed }
func (e *UploadError) Unwrap() error   { return e.Err }
func (e *UploadError) StatusCode() int { return http.StatusInternalServerError }

// InferenceError reports a failed model call (500). Its message is the
// provider's own message; Unwrap exposes the provider classification.
type InferenceError struct {
	Provider string
	Err      error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return "inference failed"
	}
	return e.Err.Error()
}
func (e *InferenceError) Unwrap() error   { return e.Err }
func (e *InferenceError) StatusCode() int { return http.StatusInternalServerError }

// Retryable reports whether the provider failure looked transient.
func (e *InferenceError) Retryable() bool { return inference.IsRetryable(e.Err) }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUpload reports whether err is an UploadError.
func IsUpload(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}

// IsInference reports whether err is an InferenceError.
func IsInference(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}

func providerError(err error) *inference.ProviderError {
	var pe *inference.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
