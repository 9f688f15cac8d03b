package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

var ErrQueryRequired = errors.New("query required")

// Input is the serializable form of a request. It is what the API accepts
// and what async runs persist; Build turns it into a Request.
type Input struct {
	Query          string        `json:"query"`
	Provider       string        `json:"provider"`
	TextModel      string        `json:"text_model,omitempty"`
	VisionModel    string        `json:"vision_model,omitempty"`
	APIKey         string        `json:"api_key,omitempty"`
	BaseURL        string        `json:"base_url,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	TimeoutSeconds int           `json:"timeout_seconds,omitempty"`
	Search         SearchOptions `json:"search"`
	Image          string        `json:"image,omitempty"`
	Role           string        `json:"role,omitempty"`
}

func (in Input) Build(ctx context.Context, catalog *llm.Catalog, keys llm.KeySource) (Request, error) {
	if strings.TrimSpace(in.Query) == "" && strings.TrimSpace(in.Image) == "" {
		return Request{}, ErrQueryRequired
	}
	settings, err := ConfigureSearch(in.Search)
	if err != nil {
		return Request{}, err
	}
	if settings.Mode == ModeText && strings.TrimSpace(in.Query) == "" {
		return Request{}, ErrQueryRequired
	}
	model, err := llm.ConfigureModel(ctx, catalog, keys, llm.ModelOptions{
		Provider:    in.Provider,
		TextModel:   in.TextModel,
		VisionModel: in.VisionModel,
		APIKey:      in.APIKey,
		BaseURL:     in.BaseURL,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		Timeout:     time.Duration(in.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return Request{}, err
	}
	var image []byte
	if strings.TrimSpace(in.Image) != "" {
		image, err = DecodeImageInput(in.Image)
		if err != nil {
			return Request{}, err
		}
	}
	return Request{
		Query:    in.Query,
		Model:    model,
		Settings: settings,
		Image:    image,
		Role:     in.Role,
	}, nil
}

// Redacted drops the inline API key so the input can be stored.
func (in Input) Redacted() Input {
	in.APIKey = ""
	return in
}

func (in Input) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(in.Redacted())
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func InputFromMap(values map[string]any) (Input, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Input{}, err
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return Input{}, err
	}
	return in, nil
}
