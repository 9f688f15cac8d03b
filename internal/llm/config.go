package llm

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 120 * time.Second

	minTimeout   = 10 * time.Second
	maxTimeout   = 600 * time.Second
	maxMaxTokens = 128000
)

// KeySource resolves a stored credential for provider, returning fallback
// when nothing is configured.
type KeySource interface {
	GetAPIKey(ctx context.Context, provider string, fallback string) string
}

type ModelOptions struct {
	Provider    string
	TextModel   string
	VisionModel string
	// APIKey and BaseURL override the key source and the catalogue default.
	APIKey      string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// ModelConfig is an immutable, validated model selection. Build it with
// ConfigureModel.
type ModelConfig struct {
	Provider     string
	ProviderName string
	TextModel    string
	VisionModel  string
	APIKey       string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration

	anonymous       bool
	omitImageDetail bool
	text            Capability
	vision          Capability
}

// Endpoint is the per-call view of a ModelConfig.
type Endpoint struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
	Proxy           string
	Anonymous       bool
	OmitImageDetail bool
	Capability
}

func ConfigureModel(ctx context.Context, catalog *Catalog, keys KeySource, opts ModelOptions) (ModelConfig, error) {
	spec, ok := catalog.Provider(opts.Provider)
	if !ok {
		return ModelConfig{}, ErrUnsupportedProvider{Provider: opts.Provider}
	}

	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return ModelConfig{}, &OptionError{Field: "temperature", Reason: "must be between 0 and 2"}
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxTokens < 1 || maxTokens > maxMaxTokens {
		return ModelConfig{}, &OptionError{Field: "max_tokens", Reason: "must be between 1 and 128000"}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < minTimeout || timeout > maxTimeout {
		return ModelConfig{}, &OptionError{Field: "timeout", Reason: "must be between 10s and 600s"}
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = spec.BaseURL
	}
	if baseURL == "" {
		return ModelConfig{}, &OptionError{Field: "base_url", Reason: "required for provider " + spec.ID}
	}

	textModel := strings.TrimSpace(opts.TextModel)
	if textModel == "" && len(spec.TextModels) > 0 {
		textModel = spec.TextModels[0]
	}
	visionModel := strings.TrimSpace(opts.VisionModel)
	if visionModel == "" && len(spec.VisionModels) > 0 {
		visionModel = spec.VisionModels[0]
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" && keys != nil {
		apiKey = strings.TrimSpace(keys.GetAPIKey(ctx, spec.ID, ""))
	}

	return ModelConfig{
		Provider:        spec.ID,
		ProviderName:    spec.Name,
		TextModel:       textModel,
		VisionModel:     visionModel,
		APIKey:          apiKey,
		BaseURL:         baseURL,
		Temperature:     temperature,
		MaxTokens:       maxTokens,
		Timeout:         timeout,
		anonymous:       spec.Anonymous,
		omitImageDetail: spec.OmitImageDetail,
		text:            spec.Capability(textModel),
		vision:          spec.Capability(visionModel),
	}, nil
}

// MissingKey reports a non-anonymous provider configured without a key.
func (c ModelConfig) MissingKey() bool {
	return c.APIKey == "" && !c.anonymous
}

func (c ModelConfig) Model(vision bool) string {
	if vision {
		return c.VisionModel
	}
	return c.TextModel
}

func (c ModelConfig) Endpoint(vision bool, proxy string) Endpoint {
	capability := c.text
	if vision {
		capability = c.vision
	}
	return Endpoint{
		Provider:        c.Provider,
		Model:           c.Model(vision),
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		Timeout:         c.Timeout,
		Proxy:           strings.TrimSpace(proxy),
		Anonymous:       c.anonymous,
		OmitImageDetail: c.omitImageDetail,
		Capability:      capability,
	}
}

// ImagePart wraps an image URL with the detail level this endpoint accepts.
func (e Endpoint) ImagePart(url string) ImagePart {
	if e.OmitImageDetail {
		return ImagePart{URL: url}
	}
	return ImagePart{URL: url, Detail: "auto"}
}
