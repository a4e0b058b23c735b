package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoProvider means the routing chain is empty or every provider is down.
	ErrNoProvider = errors.New("no provider available")

	// ErrModelUnknown means the requested model is not in the model table.
	ErrModelUnknown = errors.New("unknown model")

	// ErrChainExhausted means every provider in the fallback chain failed.
	ErrChainExhausted = errors.New("fallback chain exhausted")
)

// ProviderError is a failure from a specific provider call.
type ProviderError struct {
	Provider  string
	Status    int
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError classifies an HTTP status into a retryable or terminal
// provider error. 429 and 5xx are retryable on the next provider in the
// chain; 4xx request errors are not.
func newProviderError(provider string, status int, err error) *ProviderError {
	retryable := status == 0 ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
	return &ProviderError{Provider: provider, Status: status, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err allows falling through to the next provider.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
