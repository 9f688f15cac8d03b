package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is one element of a message body: TextPart, ImagePart or RawPart.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

// ImagePart references an image by URL, usually a base64 data URL. Detail is
// omitted from the wire when empty.
type ImagePart struct {
	URL    string
	Detail string
}

// RawPart carries a value with no dedicated encoding. Protocols send it as
// text, JSON-encoded when it is not already a string.
type RawPart struct {
	Value any
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}
func (RawPart) isPart()   {}

type ChatMessage struct {
	Role  string
	Parts []Part
}

func Text(role, text string) ChatMessage {
	return ChatMessage{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// PlainText joins the text of every part. Images are skipped.
func (m ChatMessage) PlainText() string {
	var b strings.Builder
	for _, part := range m.Parts {
		switch p := part.(type) {
		case TextPart:
			b.WriteString(p.Text)
		case RawPart:
			b.WriteString(p.String())
		}
	}
	return b.String()
}

func (m ChatMessage) textOnly() bool {
	for _, part := range m.Parts {
		if _, ok := part.(ImagePart); ok {
			return false
		}
	}
	return true
}

func (p RawPart) String() string {
	switch v := p.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	}
	encoded, err := json.Marshal(p.Value)
	if err != nil {
		return fmt.Sprint(p.Value)
	}
	return string(encoded)
}

func DataURL(mediaType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURL splits a base64 data URL into media type and payload.
func ParseDataURL(raw string) (mediaType string, data string, ok bool) {
	rest, found := strings.CutPrefix(raw, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}
