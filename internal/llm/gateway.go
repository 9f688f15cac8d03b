package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/httpx"
)

// Gateway sends one chat round-trip using the endpoint's protocol.
type Gateway struct {
	transport httpx.Poster
}

func NewGateway(transport httpx.Poster) *Gateway {
	if transport == nil {
		transport = httpx.New()
	}
	return &Gateway{transport: transport}
}

func (g *Gateway) Generate(ctx context.Context, e Endpoint, messages []ChatMessage) (string, error) {
	if e.APIKey == "" && !e.Anonymous {
		return "", ErrMissingAPIKey
	}
	protocol := ProtocolFor(e.Protocol)
	body, err := json.Marshal(protocol.Payload(e, messages))
	if err != nil {
		return "", &CallError{Err: err}
	}
	url := strings.TrimRight(e.BaseURL, "/") + protocol.Path()
	resp, err := g.transport.Post(ctx, url, protocol.Headers(e), body, e.Timeout, e.Proxy)
	if err != nil {
		return "", &CallError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &CallError{StatusCode: resp.StatusCode, Body: compactBody(resp.Body)}
	}
	return protocol.Extract(resp.Body)
}

// Complete is Generate with failures folded into error-marked text.
func (g *Gateway) Complete(ctx context.Context, e Endpoint, messages []ChatMessage) string {
	text, err := g.Generate(ctx, e, messages)
	if err != nil {
		return err.Error()
	}
	return text
}
