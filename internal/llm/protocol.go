package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol encodes one provider wire format.
type Protocol interface {
	Path() string
	Headers(e Endpoint) map[string]string
	Payload(e Endpoint, messages []ChatMessage) map[string]any
	Extract(body []byte) (string, error)
}

func ProtocolFor(kind ProtocolKind) Protocol {
	switch kind {
	case VendorMessages:
		return vendorMessages{}
	case TokenResponses:
		return tokenResponses{}
	default:
		return standardChat{}
	}
}

type standardChat struct{}

func (standardChat) Path() string { return "/chat/completions" }

func (standardChat) Headers(e Endpoint) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if e.APIKey != "" {
		headers["Authorization"] = "Bearer " + e.APIKey
	}
	return headers
}

func (standardChat) Payload(e Endpoint, messages []ChatMessage) map[string]any {
	encoded := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		encoded = append(encoded, map[string]any{
			"role":    msg.Role,
			"content": chatContent(msg),
		})
	}
	payload := map[string]any{
		"model":    e.Model,
		"messages": encoded,
		"stream":   false,
	}
	if !e.OmitTemperature {
		payload["temperature"] = e.Temperature
	}
	if !e.OmitMaxTokens {
		payload["max_tokens"] = e.MaxTokens
	}
	return payload
}

func chatContent(msg ChatMessage) any {
	if msg.textOnly() {
		return msg.PlainText()
	}
	parts := make([]map[string]any, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case TextPart:
			parts = append(parts, map[string]any{"type": "text", "text": p.Text})
		case ImagePart:
			image := map[string]any{"url": p.URL}
			if p.Detail != "" {
				image["detail"] = p.Detail
			}
			parts = append(parts, map[string]any{"type": "image_url", "image_url": image})
		case RawPart:
			parts = append(parts, map[string]any{"type": "text", "text": p.String()})
		}
	}
	return parts
}

func (standardChat) Extract(body []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &CallError{Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &FormatError{Vendor: "LLM provider", Body: compactBody(body)}
	}
	if parsed.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *parsed.Choices[0].Message.Content, nil
}

type vendorMessages struct{}

func (vendorMessages) Path() string { return "/messages" }

func (vendorMessages) Headers(e Endpoint) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         e.APIKey,
		"anthropic-version": "2023-06-01",
	}
}

// Payload lifts system turns into the top-level system field; the messages
// array only carries user and assistant turns.
func (vendorMessages) Payload(e Endpoint, messages []ChatMessage) map[string]any {
	system := []string{}
	encoded := []map[string]any{}
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := msg.PlainText(); text != "" {
				system = append(system, text)
			}
			continue
		}
		encoded = append(encoded, map[string]any{
			"role":    msg.Role,
			"content": vendorContent(msg),
		})
	}
	payload := map[string]any{
		"model":      e.Model,
		"max_tokens": e.MaxTokens,
		"messages":   encoded,
	}
	if len(system) > 0 {
		payload["system"] = strings.Join(system, "\n\n")
	}
	if !e.OmitTemperature {
		payload["temperature"] = e.Temperature
	}
	return payload
}

func vendorContent(msg ChatMessage) any {
	if msg.textOnly() {
		return msg.PlainText()
	}
	blocks := make([]map[string]any, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case TextPart:
			blocks = append(blocks, map[string]any{"type": "text", "text": p.Text})
		case ImagePart:
			source := map[string]any{"type": "url", "url": p.URL}
			if mediaType, data, ok := ParseDataURL(p.URL); ok {
				source = map[string]any{"type": "base64", "media_type": mediaType, "data": data}
			}
			blocks = append(blocks, map[string]any{"type": "image", "source": source})
		case RawPart:
			blocks = append(blocks, map[string]any{"type": "text", "text": p.String()})
		}
	}
	return blocks
}

func (vendorMessages) Extract(body []byte) (string, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &CallError{Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	blocks, ok := parsed["content"].([]any)
	if !ok || len(blocks) == 0 {
		return "", &FormatError{Vendor: "Anthropic", Body: compactBody(body)}
	}
	var b strings.Builder
	for _, block := range blocks {
		blockMap, ok := block.(map[string]any)
		if !ok || blockMap["type"] != "text" {
			continue
		}
		text, _ := blockMap["text"].(string)
		b.WriteString(text)
	}
	if b.Len() == 0 {
		return compactBody(body), nil
	}
	return b.String(), nil
}

type tokenResponses struct{}

func (tokenResponses) Path() string { return "/responses" }

func (tokenResponses) Headers(e Endpoint) map[string]string {
	return standardChat{}.Headers(e)
}

func (tokenResponses) Payload(e Endpoint, messages []ChatMessage) map[string]any {
	payload := map[string]any{
		"model": e.Model,
		"input": responsesInput(messages),
	}
	if !e.OmitTemperature {
		payload["temperature"] = e.Temperature
	}
	if e.MaxTokens > 0 && !e.OmitMaxTokens {
		payload["max_output_tokens"] = e.MaxTokens
	}
	return payload
}

func responsesInput(messages []ChatMessage) []map[string]any {
	input := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		parts := []map[string]any{}
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case TextPart:
				if p.Text == "" && len(msg.Parts) == 1 {
					continue
				}
				parts = append(parts, map[string]any{"type": "input_text", "text": p.Text})
			case ImagePart:
				image := map[string]any{"type": "input_image", "image_url": p.URL}
				if p.Detail != "" {
					image["detail"] = p.Detail
				}
				parts = append(parts, image)
			case RawPart:
				parts = append(parts, map[string]any{"type": "input_text", "text": p.String()})
			}
		}
		if len(parts) == 0 {
			parts = append(parts, map[string]any{"type": "input_text", "text": ""})
		}
		role := msg.Role
		if role == "" {
			role = RoleUser
		}
		input = append(input, map[string]any{"role": role, "content": parts})
	}
	return input
}

func (tokenResponses) Extract(body []byte) (string, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &CallError{Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	switch outputText := parsed["output_text"].(type) {
	case string:
		if outputText != "" {
			return strings.TrimSpace(outputText), nil
		}
	case []any:
		if len(outputText) > 0 {
			texts := make([]string, 0, len(outputText))
			for _, item := range outputText {
				texts = append(texts, fmt.Sprint(item))
			}
			return strings.TrimSpace(strings.Join(texts, "\n")), nil
		}
	}

	collected := []string{}
	items, _ := parsed["output"].([]any)
	for _, item := range items {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch itemMap["type"] {
		case "message":
			content, _ := itemMap["content"].([]any)
			for _, part := range content {
				partMap, ok := part.(map[string]any)
				if !ok {
					continue
				}
				switch partMap["type"] {
				case "output_text", "text", "input_text":
					text, _ := partMap["text"].(string)
					collected = append(collected, text)
				}
			}
		case "output_text", "text":
			text, _ := itemMap["text"].(string)
			collected = append(collected, text)
		}
	}
	if len(collected) > 0 {
		return strings.TrimSpace(strings.Join(collected, "\n")), nil
	}
	return compactBody(body), nil
}

func compactBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		return buf.String()
	}
	return strings.TrimSpace(string(body))
}
