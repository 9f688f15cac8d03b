package llm

import (
	"context"
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		expected string
	}{
		{
			name:     "unsupported provider - openrouter",
			provider: "openrouter",
			expected: "unsupported LLM provider: openrouter",
		},
		{
			name:     "unsupported provider - empty",
			provider: "",
			expected: "unsupported LLM provider: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrUnsupportedProvider{Provider: tt.provider}
			if err.Error() != tt.expected {
				t.Errorf("expected error message '%s', got '%s'", tt.expected, err.Error())
			}
		})
	}
}

func TestGatewayErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"http status", &CallError{StatusCode: 401, Body: `{"error":"bad key"}`}, `Error calling LLM: HTTP 401 - {"error":"bad key"}`},
		{"transport", &CallError{Err: context.DeadlineExceeded}, "Error calling LLM: context deadline exceeded"},
		{"format", &FormatError{Vendor: "Anthropic", Body: "{}"}, "Error: Unexpected response format from Anthropic. Response: {}"},
		{"missing key", ErrMissingAPIKey, "Error: API Key is missing."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
			if !IsError(tt.err.Error()) {
				t.Errorf("expected %q to carry the error marker", tt.err.Error())
			}
		})
	}
}

func TestCallError_Unwrap(t *testing.T) {
	err := &CallError{Err: context.Canceled}
	if !errors.Is(err, context.Canceled) {
		t.Fatal("expected wrapped context error")
	}
}

func TestIsError(t *testing.T) {
	if IsError("Sunny, 21 °C") {
		t.Fatal("plain answer flagged as error")
	}
	if !IsError("Error: anything") {
		t.Fatal("marker not detected")
	}
}
