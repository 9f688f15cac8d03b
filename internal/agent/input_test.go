package agent

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

type staticKeys map[string]string

func (s staticKeys) GetAPIKey(ctx context.Context, provider string, fallback string) string {
	if v, ok := s[provider]; ok {
		return v
	}
	return fallback
}

func TestInputBuild(t *testing.T) {
	temperature := 0.2
	in := Input{
		Query:          "weather in Oslo",
		Provider:       "deepseek",
		Temperature:    &temperature,
		TimeoutSeconds: 30,
		Search:         SearchOptions{EnableWebSearch: true, NumResults: 5},
	}
	req, err := in.Build(context.Background(), llm.DefaultCatalog(), staticKeys{"deepseek": "sk-stored"})
	require.NoError(t, err)
	require.Equal(t, "weather in Oslo", req.Query)
	require.Equal(t, "sk-stored", req.Model.APIKey)
	require.Equal(t, 0.2, req.Model.Temperature)
	require.Equal(t, 5, req.Settings.NumResults)
	require.Nil(t, req.Image)
}

func TestInputBuild_Errors(t *testing.T) {
	catalog := llm.DefaultCatalog()
	_, err := Input{Provider: "deepseek"}.Build(context.Background(), catalog, nil)
	require.ErrorIs(t, err, ErrQueryRequired)

	_, err = Input{Query: "q", Provider: "nope"}.Build(context.Background(), catalog, nil)
	require.EqualError(t, err, "unsupported LLM provider: nope")

	_, err = Input{Query: "q", Provider: "deepseek", Search: SearchOptions{NumResults: 50}}.Build(context.Background(), catalog, nil)
	require.Error(t, err)

	_, err = Input{Query: "q", Provider: "qwen", Search: SearchOptions{Mode: "TI2T"}, Image: "!!"}.Build(context.Background(), catalog, nil)
	require.Error(t, err)

	_, err = Input{Image: "AAAA", Provider: "qwen"}.Build(context.Background(), catalog, nil)
	require.ErrorIs(t, err, ErrQueryRequired, "text mode needs a query")
}

func TestInputBuild_VisionWithoutQuery(t *testing.T) {
	image := base64.StdEncoding.EncodeToString(pngBytes(t))
	req, err := Input{Provider: "qwen", APIKey: "sk", Image: image, Search: SearchOptions{Mode: "TI2T"}}.Build(context.Background(), llm.DefaultCatalog(), nil)
	require.NoError(t, err)
	require.Equal(t, ModeVision, req.Settings.Mode)
	require.NotEmpty(t, req.Image)
}

func TestInputMapRoundTripRedactsKey(t *testing.T) {
	in := Input{Query: "q", Provider: "openai", APIKey: "sk-secret", Search: SearchOptions{OptimizeQuery: true}}
	values, err := in.ToMap()
	require.NoError(t, err)
	require.NotContains(t, values, "api_key")

	back, err := InputFromMap(values)
	require.NoError(t, err)
	require.Equal(t, in.Redacted(), back)
}
