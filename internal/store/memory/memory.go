package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

type MemoryStore struct {
	mu     sync.RWMutex
	keys   map[string]store.ProviderKey
	runs   map[string]store.SearchRun
	events map[string][]store.RunEvent
	seq    map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		keys:   map[string]store.ProviderKey{},
		runs:   map[string]store.SearchRun{},
		events: map[string][]store.RunEvent{},
		seq:    map[string]int64{},
	}
}

func (m *MemoryStore) GetProviderKey(ctx context.Context, provider string) (*store.ProviderKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[normalizeProvider(provider)]
	if !ok {
		return nil, nil
	}
	return &key, nil
}

func (m *MemoryStore) UpsertProviderKey(ctx context.Context, key store.ProviderKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key.Provider = normalizeProvider(key.Provider)
	if existing, ok := m.keys[key.Provider]; ok && existing.CreatedAt != "" {
		key.CreatedAt = existing.CreatedAt
	}
	if key.CreatedAt == "" {
		key.CreatedAt = now()
	}
	if key.UpdatedAt == "" {
		key.UpdatedAt = key.CreatedAt
	}
	m.keys[key.Provider] = key
	return nil
}

func (m *MemoryStore) DeleteProviderKey(ctx context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, normalizeProvider(provider))
	return nil
}

func (m *MemoryStore) ListProviderKeys(ctx context.Context) ([]store.ProviderKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.ProviderKey, 0, len(m.keys))
	for _, key := range m.keys {
		results = append(results, key)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Provider < results[j].Provider
	})
	return results, nil
}

func (m *MemoryStore) CreateSearchRun(ctx context.Context, run store.SearchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.Status == "" {
		run.Status = store.RunStatusRunning
	}
	if run.CreatedAt == "" {
		run.CreatedAt = now()
	}
	if run.UpdatedAt == "" {
		run.UpdatedAt = run.CreatedAt
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *MemoryStore) UpdateSearchRun(ctx context.Context, run store.SearchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.ID]
	if !ok {
		return store.ErrNotFound
	}
	run.CreatedAt = existing.CreatedAt
	if run.Request == nil {
		run.Request = existing.Request
	}
	if run.UpdatedAt == "" {
		run.UpdatedAt = now()
	}
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *MemoryStore) GetSearchRun(ctx context.Context, runID string) (*store.SearchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := cloneRun(run)
	return &copied, nil
}

func (m *MemoryStore) ListSearchRuns(ctx context.Context, limit int) ([]store.SearchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.SearchRun, 0, len(m.runs))
	for _, run := range m.runs {
		results = append(results, cloneRun(run))
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CreatedAt == results[j].CreatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStore) DeleteSearchRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	delete(m.events, runID)
	delete(m.seq, runID)
	return nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[runID]++
	return m.seq[runID], nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.Timestamp == "" {
		event.Timestamp = now()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	m.events[event.RunID] = append(m.events[event.RunID], event)
	if event.Seq > m.seq[event.RunID] {
		m.seq[event.RunID] = event.Seq
	}
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := []store.RunEvent{}
	for _, event := range m.events[runID] {
		if event.Seq > afterSeq {
			results = append(results, event)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Seq < results[j].Seq
	})
	return results, nil
}

func cloneRun(run store.SearchRun) store.SearchRun {
	if run.Sources != nil {
		run.Sources = append([]string(nil), run.Sources...)
	}
	if run.Request != nil {
		request := make(map[string]any, len(run.Request))
		for k, v := range run.Request {
			request[k] = v
		}
		run.Request = request
	}
	return run
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
