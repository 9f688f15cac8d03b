package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/geo"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) string {
	args := m.Called(endpoint, messages)
	return args.String(0)
}

func TestTextInput(t *testing.T) {
	require.Equal(t, "weather", TextInput("weather", nil))
	require.Equal(t, "weather (Location: Beijing Haidian)", TextInput("weather", &geo.PlaceHint{City: "Beijing", District: "Haidian", Country: "China"}))
	require.Equal(t, "weather (Location: Greece)", TextInput("weather", &geo.PlaceHint{Country: "Greece"}))
	require.Equal(t, "weather", TextInput("weather", &geo.PlaceHint{}))
}

func TestVisionHint(t *testing.T) {
	require.Equal(t, "", VisionHint(nil))
	require.Equal(t, "", VisionHint(&geo.PlaceHint{Country: "France"}))
	require.Equal(t, " (Location identified from coordinates: Paris, France)", VisionHint(&geo.PlaceHint{City: "Paris", Country: "France"}))
}

func TestOptimize(t *testing.T) {
	gateway := &mockCompleter{}
	endpoint := llm.Endpoint{Provider: "deepseek", Model: "deepseek-chat"}
	gateway.On("Complete", endpoint, mock.MatchedBy(func(messages []llm.ChatMessage) bool {
		return len(messages) == 2 &&
			messages[0].Role == llm.RoleSystem &&
			strings.Contains(messages[0].PlainText(), "Search Query Generator Tool") &&
			messages[1].PlainText() == "北京现在的天气 (Location: Beijing)"
	})).Return("  current weather Beijing China\n").Once()

	optimizer := NewOptimizer(gateway)
	rewritten, err := optimizer.Optimize(context.Background(), endpoint, "北京现在的天气", &geo.PlaceHint{City: "Beijing"})
	require.NoError(t, err)
	require.Equal(t, "current weather Beijing China", rewritten)
	gateway.AssertExpectations(t)
}

func TestOptimize_Failure(t *testing.T) {
	gateway := &mockCompleter{}
	gateway.On("Complete", mock.Anything, mock.Anything).Return("Error calling LLM: HTTP 500 - boom").Once()
	gateway.On("Complete", mock.Anything, mock.Anything).Return("   ").Once()

	optimizer := NewOptimizer(gateway)
	_, err := optimizer.Optimize(context.Background(), llm.Endpoint{}, "q", nil)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, "Error calling LLM: HTTP 500 - boom", failed.Reason)
	require.Equal(t, "Optimization failed: Error calling LLM: HTTP 500 - boom", err.Error())

	_, err = optimizer.Optimize(context.Background(), llm.Endpoint{}, "q", nil)
	require.ErrorAs(t, err, &failed)
}

func TestOptimizeVision(t *testing.T) {
	gateway := &mockCompleter{}
	image := llm.ImagePart{URL: "data:image/png;base64,AAAA", Detail: "auto"}
	gateway.On("Complete", mock.Anything, mock.MatchedBy(func(messages []llm.ChatMessage) bool {
		if len(messages) != 2 || !strings.Contains(messages[0].PlainText(), "Visual Search Assistant") {
			return false
		}
		parts := messages[1].Parts
		return len(parts) == 2 &&
			parts[0] == image &&
			parts[1] == llm.TextPart{Text: "User Question: what time is it here? (Location identified from coordinates: Paris, France)\nGenerate a search query:"}
	})).Return("current local time weather Eiffel Tower Paris France").Once()

	optimizer := NewOptimizer(gateway)
	rewritten, err := optimizer.OptimizeVision(context.Background(), llm.Endpoint{}, "what time is it here?", &geo.PlaceHint{City: "Paris", Country: "France"}, image)
	require.NoError(t, err)
	require.Equal(t, "current local time weather Eiffel Tower Paris France", rewritten)
	gateway.AssertExpectations(t)
}
