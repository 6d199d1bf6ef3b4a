package registry

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for registry lookups.
type ErrorCategory string

const (
	// ErrorNotFound means the registry does not know the CNPJ (HTTP 404).
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRemote covers transport failures: timeout, connection refused, TLS,
	// DNS, cancellation, an open circuit breaker.
	ErrorRemote ErrorCategory = "remote"

	// ErrorUnexpectedStatus is any other non-200 response.
	ErrorUnexpectedStatus ErrorCategory = "unexpected_status"

	// ErrorMalformedResponse is a 200 whose body is not a company record.
	ErrorMalformedResponse ErrorCategory = "malformed_response"
)

// Sentinels for errors.Is checks against a *RegistryError.
var (
	ErrNotFound          = errors.New("company not found in registry")
	ErrRemote            = errors.New("registry unreachable")
	ErrUnexpectedStatus  = errors.New("unexpected registry status")
	ErrMalformedResponse = errors.New("malformed registry response")
)

var sentinels = map[ErrorCategory]error{
	ErrorNotFound:          ErrNotFound,
	ErrorRemote:            ErrRemote,
	ErrorUnexpectedStatus:  ErrUnexpectedStatus,
	ErrorMalformedResponse: ErrMalformedResponse,
}

// RegistryError wraps a lookup failure with its category.
type RegistryError struct {
	Category   ErrorCategory
	CNPJ       string
	StatusCode int
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	msg := fmt.Sprintf("registry lookup %s [%s]: %s", e.CNPJ, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

// Unwrap supports error unwrapping
func (e *RegistryError) Unwrap() error {
	return e.Underlying
}

// Is matches the category sentinel, so errors.Is(err, ErrNotFound) works.
func (e *RegistryError) Is(target error) bool {
	return sentinels[e.Category] == target
}

func newError(category ErrorCategory, cnpj, message string, underlying error) *RegistryError {
	return &RegistryError{
		Category:   category,
		CNPJ:       cnpj,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory extracts the category from err, or "" when err is not a
// registry error.
func GetCategory(err error) ErrorCategory {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}
