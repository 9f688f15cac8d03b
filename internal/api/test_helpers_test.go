package api

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetProviderKey(ctx context.Context, provider string) (*store.ProviderKey, error) {
	args := m.Called(ctx, provider)
	var result *store.ProviderKey
	if value := args.Get(0); value != nil {
		result = value.(*store.ProviderKey)
	}
	return result, args.Error(1)
}

func (m *MockStore) UpsertProviderKey(ctx context.Context, key store.ProviderKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) DeleteProviderKey(ctx context.Context, provider string) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

func (m *MockStore) ListProviderKeys(ctx context.Context) ([]store.ProviderKey, error) {
	args := m.Called(ctx)
	var result []store.ProviderKey
	if value := args.Get(0); value != nil {
		result = value.([]store.ProviderKey)
	}
	return result, args.Error(1)
}

func (m *MockStore) CreateSearchRun(ctx context.Context, run store.SearchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) UpdateSearchRun(ctx context.Context, run store.SearchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) GetSearchRun(ctx context.Context, runID string) (*store.SearchRun, error) {
	args := m.Called(ctx, runID)
	var result *store.SearchRun
	if value := args.Get(0); value != nil {
		result = value.(*store.SearchRun)
	}
	return result, args.Error(1)
}

func (m *MockStore) ListSearchRuns(ctx context.Context, limit int) ([]store.SearchRun, error) {
	args := m.Called(ctx, limit)
	var result []store.SearchRun
	if value := args.Get(0); value != nil {
		result = value.([]store.SearchRun)
	}
	return result, args.Error(1)
}

func (m *MockStore) DeleteSearchRun(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	args := m.Called(ctx, runID)
	var seq int64
	if value := args.Get(0); value != nil {
		seq = value.(int64)
	}
	return seq, args.Error(1)
}

func (m *MockStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	args := m.Called(ctx, runID, afterSeq)
	var result []store.RunEvent
	if value := args.Get(0); value != nil {
		result = value.([]store.RunEvent)
	}
	return result, args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.RunEvent) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, runID string) <-chan events.RunEvent {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.RunEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.RunEvent); ok {
			return ch
		}
	}
	return nil
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartSearch(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelSearch(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

// stubRunner replays a fixed result and emits the given stage events
// through the request's observer.
type stubRunner struct {
	mu      sync.Mutex
	result  agent.Result
	emit    []string
	request agent.Request
	calls   int
}

func (s *stubRunner) Run(ctx context.Context, req agent.Request) agent.Result {
	s.mu.Lock()
	s.request = req
	s.calls++
	s.mu.Unlock()
	for _, eventType := range s.emit {
		req.Observer.Observe(ctx, eventType, map[string]any{})
	}
	return s.result
}

type stubPinger struct {
	reply    string
	err      error
	endpoint llm.Endpoint
	messages []llm.ChatMessage
}

func (s *stubPinger) Generate(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) (string, error) {
	s.endpoint = endpoint
	s.messages = messages
	return s.reply, s.err
}

type staticKeys map[string]string

func (k staticKeys) GetAPIKey(ctx context.Context, provider string, fallback string) string {
	if value, ok := k[strings.ToLower(provider)]; ok {
		return value
	}
	return fallback
}

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	c, err := secrets.NewCipher(base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, store store.Store, broker Broker, workflows WorkflowService, cfg config.Config, opts ...Option) *httptest.Server {
	t.Helper()
	server := NewServer(store, broker, workflows, cfg, opts...)
	return httptest.NewServer(server.Router())
}
