package llm

import (
	"errors"
	"fmt"
)

// ProviderError wraps any failure of an LLM call: transport, auth, rate limit,
// timeout or an unusable response.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(provider string, status int, err error) error {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return err
	}
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}

// IsProviderError reports whether err came from a provider call.
func IsProviderError(err error) bool {
	var pErr *ProviderError
	return errors.As(err, &pErr)
}
