package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/geo"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

type Completer interface {
	Complete(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) string
}

// FailedError carries the gateway's error-marked text. Callers search
// with the original query instead.
type FailedError struct {
	Reason string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("Optimization failed: %s", e.Reason)
}

type Optimizer struct {
	gateway Completer
}

func NewOptimizer(gateway Completer) *Optimizer {
	return &Optimizer{gateway: gateway}
}

// TextInput is the user turn sent for rewriting: the original query plus
// the resolved place, if any.
func TextInput(original string, place *geo.PlaceHint) string {
	if place == nil {
		return original
	}
	if name := place.SearchName(); name != "" {
		return fmt.Sprintf("%s (Location: %s)", original, name)
	}
	if name := place.DisplayName(); name != "" {
		return fmt.Sprintf("%s (Location: %s)", original, name)
	}
	return original
}

// VisionHint is appended to the vision question when reverse geocoding
// found a city.
func VisionHint(place *geo.PlaceHint) string {
	if place == nil || place.City == "" {
		return ""
	}
	return fmt.Sprintf(" (Location identified from coordinates: %s)", place.DisplayName())
}

func (o *Optimizer) Optimize(ctx context.Context, endpoint llm.Endpoint, original string, place *geo.PlaceHint) (string, error) {
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, textSystemPrompt),
		llm.Text(llm.RoleUser, TextInput(original, place)),
	}
	return o.complete(ctx, endpoint, messages)
}

func (o *Optimizer) OptimizeVision(ctx context.Context, endpoint llm.Endpoint, original string, place *geo.PlaceHint, image llm.ImagePart) (string, error) {
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, visionSystemPrompt),
		{Role: llm.RoleUser, Parts: []llm.Part{
			image,
			llm.TextPart{Text: fmt.Sprintf("User Question: %s%s\nGenerate a search query:", original, VisionHint(place))},
		}},
	}
	return o.complete(ctx, endpoint, messages)
}

func (o *Optimizer) complete(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) (string, error) {
	reply := o.gateway.Complete(ctx, endpoint, messages)
	if llm.IsError(reply) {
		return "", &FailedError{Reason: reply}
	}
	rewritten := strings.TrimSpace(reply)
	if rewritten == "" {
		return "", &FailedError{Reason: "empty rewrite"}
	}
	return rewritten, nil
}
