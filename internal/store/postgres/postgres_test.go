//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	storepkg "github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

var testConn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tcpostgres.Run(
		ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("livesearch"),
		tcpostgres.WithUsername("livesearch"),
		tcpostgres.WithPassword("livesearch"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start postgres container:", err)
		os.Exit(1)
	}
	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintln(os.Stderr, "connection string:", err)
		os.Exit(1)
	}
	testConn = conn
	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	st, err := New(testConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = st.db.Exec("TRUNCATE provider_keys, search_runs, run_events, run_event_sequences")
		_ = st.Close()
	})
	return st
}

func TestPostgresProviderKeys(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.UpsertProviderKey(ctx, storepkg.ProviderKey{Provider: "OpenAI", APIKeyEnc: "enc-1"}))
	first, err := st.GetProviderKey(ctx, "openai")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, st.UpsertProviderKey(ctx, storepkg.ProviderKey{Provider: "openai", APIKeyEnc: "enc-2"}))
	second, err := st.GetProviderKey(ctx, "openai")
	require.NoError(t, err)
	require.Equal(t, "enc-2", second.APIKeyEnc)
	require.Equal(t, first.CreatedAt, second.CreatedAt)

	keys, err := st.ListProviderKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, st.DeleteProviderKey(ctx, "openai"))
	gone, err := st.GetProviderKey(ctx, "openai")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestPostgresSearchRunLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	runID := uuid.NewString()

	require.NoError(t, st.CreateSearchRun(ctx, storepkg.SearchRun{
		ID:       runID,
		Query:    "weather in Oslo",
		Provider: "deepseek",
		Model:    "deepseek-chat",
		Request:  map[string]any{"query": "weather in Oslo", "num_results": float64(3)},
	}))

	run, err := st.GetSearchRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, storepkg.RunStatusRunning, run.Status)
	require.Equal(t, "T2T", run.Mode)
	require.Equal(t, float64(3), run.Request["num_results"])

	require.NoError(t, st.UpdateSearchRun(ctx, storepkg.SearchRun{
		ID:          runID,
		Status:      storepkg.RunStatusCompleted,
		Answer:      "Cloudy, 4°C",
		Sources:     []string{"https://www.timeanddate.com/weather/norway/oslo"},
		Trace:       "Original: weather in Oslo\nOptimized: Oslo Norway weather",
		CompletedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}))

	runs, err := st.ListSearchRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "Cloudy, 4°C", runs[0].Answer)
	require.NotEmpty(t, runs[0].CompletedAt)

	require.ErrorIs(t, st.UpdateSearchRun(ctx, storepkg.SearchRun{ID: "missing", Status: storepkg.RunStatusFailed}), storepkg.ErrNotFound)
}

func TestPostgresEventsAndDeleteCascade(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	runID := uuid.NewString()
	require.NoError(t, st.CreateSearchRun(ctx, storepkg.SearchRun{ID: runID, Query: "time in Tokyo"}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := st.NextSeq(ctx, runID)
			if err != nil {
				t.Errorf("next seq: %v", err)
				return
			}
			if err := st.AppendEvent(ctx, storepkg.RunEvent{
				RunID:   runID,
				Seq:     seq,
				Type:    "fetch.completed",
				Source:  "agent",
				TraceID: uuid.NewString(),
				Payload: map[string]any{"seq": seq},
			}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	events, err := st.ListEvents(ctx, runID, 5)
	require.NoError(t, err)
	require.Len(t, events, 5)
	require.Equal(t, int64(6), events[0].Seq)

	require.NoError(t, st.DeleteSearchRun(ctx, runID))
	events, err = st.ListEvents(ctx, runID, 0)
	require.NoError(t, err)
	require.Empty(t, events)
	seq, err := st.NextSeq(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}
