package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorMarker prefixes every failure returned as answer text by Complete.
const ErrorMarker = "Error"

// IsError reports whether text is an error-marked gateway result.
func IsError(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

var ErrMissingAPIKey = errors.New("Error: API Key is missing.")

// CallError is a transport failure or a non-200 reply.
type CallError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Error calling LLM: HTTP %d - %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("Error calling LLM: %v", e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// FormatError means the reply parsed but did not have the expected shape.
type FormatError struct {
	Vendor string
	Body   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("Error: Unexpected response format from %s. Response: %s", e.Vendor, e.Body)
}

type OptionError struct {
	Field  string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid model option %s: %s", e.Field, e.Reason)
}
