package inference

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a normalized failure reported by an inference backend.
// Message is the provider's own text and is what callers surface to clients.
type ProviderError struct {
	Provider  string
	Status    int    // upstream HTTP status; 0 for transport failures
	Code      string // provider error code or type, when present
	Message   string
	RequestID string
	Err       error
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) Unwrap() error { return e.Err }

// Detail renders the error with its classification for logs.
func (e *ProviderError) Detail() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s, request_id=%s)", e.Provider, e.Message, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("%s: %s (status=%d, code=%s)", e.Provider, e.Message, e.Status, e.Code)
}

// Retryable reports whether the failure looks transient: transport errors,
// rate limiting and upstream 5xx.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err carries a ProviderError classified as transient.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// ErrNoChoices is returned when the provider answers without any completion.
var ErrNoChoices = errors.New("inference: provider returned no choices")

func newNetworkError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}
