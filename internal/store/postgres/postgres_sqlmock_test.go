package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	cleanup := func() {
		_ = db.Close()
	}
	return &PostgresStore{db: db}, mock, cleanup
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNew_AppliesSchemaAndVerifies(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	orig := openDB
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("driver = %q", driverName)
		}
		return db, nil
	}
	t.Cleanup(func() { openDB = orig })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS provider_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range []string{"provider_keys", "search_runs", "run_events", "run_event_sequences"} {
		mock.ExpectQuery("SELECT to_regclass").WithArgs("public." + table).
			WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(table))
	}

	st, err := New("postgres://example")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if st == nil {
		t.Fatal("expected store")
	}
	expectationsMet(t, mock)
}

func TestNew_OpenError(t *testing.T) {
	orig := openDB
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("open failed")
	}
	t.Cleanup(func() { openDB = orig })

	if _, err := New("postgres://example"); err == nil {
		t.Fatal("expected open error")
	}
}

func TestVerifySchema_MissingTable(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT to_regclass").WithArgs("public.provider_keys").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))
	err := verifySchema(ctx, pgStore.db)
	if err == nil || err.Error() != "database schema missing: provider_keys table not found" {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestVerifySchema_QueryError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("query error"))
	if err := verifySchema(ctx, pgStore.db); err == nil {
		t.Fatalf("expected schema verification error")
	}
	expectationsMet(t, mock)
}

func TestGetProviderKey(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT provider, api_key_enc, created_at, updated_at").
		WithArgs("openai").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "api_key_enc", "created_at", "updated_at"}).
			AddRow("openai", "enc", created, created))

	key, err := pgStore.GetProviderKey(ctx, " OpenAI ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if key == nil || key.APIKeyEnc != "enc" || key.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected key: %+v", key)
	}
	expectationsMet(t, mock)
}

func TestGetProviderKey_NoRows(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT provider, api_key_enc").WithArgs("grok").WillReturnError(sql.ErrNoRows)
	key, err := pgStore.GetProviderKey(ctx, "grok")
	if err != nil || key != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", key, err)
	}
	expectationsMet(t, mock)
}

func TestUpsertAndDeleteProviderKey(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO provider_keys").
		WithArgs("anthropic", "enc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM provider_keys").WithArgs("anthropic").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := pgStore.UpsertProviderKey(ctx, store.ProviderKey{Provider: "Anthropic", APIKeyEnc: "enc"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := pgStore.DeleteProviderKey(ctx, "anthropic"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectationsMet(t, mock)
}

func TestListProviderKeys_RowsErr(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"provider", "api_key_enc", "created_at", "updated_at"}).
		AddRow("a", "x", time.Now(), time.Now()).
		AddRow("b", "y", time.Now(), time.Now())
	rows.RowError(1, errors.New("row error"))
	mock.ExpectQuery("SELECT provider, api_key_enc, created_at, updated_at").WillReturnRows(rows)

	if _, err := pgStore.ListProviderKeys(ctx); err == nil {
		t.Fatal("expected rows error")
	}
	expectationsMet(t, mock)
}

func TestCreateSearchRun_Defaults(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO search_runs").
		WithArgs(
			"run-1",
			store.RunStatusRunning,
			"weather in Oslo",
			"T2T",
			"openai",
			nil,
			"",
			[]byte("[]"),
			"",
			nil,
			[]byte(`{"query":"weather in Oslo"}`),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pgStore.CreateSearchRun(ctx, store.SearchRun{
		ID:       "run-1",
		Query:    "weather in Oslo",
		Provider: "openai",
		Request:  map[string]any{"query": "weather in Oslo"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateSearchRun_NotFound(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE search_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	err := pgStore.UpdateSearchRun(ctx, store.SearchRun{ID: "missing", Status: store.RunStatusCompleted})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateSearchRun_Success(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE search_runs").
		WithArgs("run-1", store.RunStatusCompleted, "answer", []byte(`["https://a.example/x"]`), "trace", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := pgStore.UpdateSearchRun(ctx, store.SearchRun{
		ID:          "run-1",
		Status:      store.RunStatusCompleted,
		Answer:      "answer",
		Sources:     []string{"https://a.example/x"},
		Trace:       "trace",
		CompletedAt: "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	expectationsMet(t, mock)
}

func searchRunRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "status", "query", "mode", "provider", "model", "answer", "sources",
		"trace", "error", "request", "created_at", "updated_at", "completed_at",
	})
}

func TestGetSearchRun(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(5 * time.Second)
	mock.ExpectQuery("SELECT id, status, query, mode").WithArgs("run-1").WillReturnRows(
		searchRunRows().AddRow(
			"run-1", "completed", "time in Tokyo", "T2T", "openai", "gpt-4o", "It is noon.",
			[]byte(`["https://www.timeanddate.com/worldclock/japan/tokyo"]`),
			"Original: time in Tokyo\nOptimized: current local time Tokyo Japan", nil,
			[]byte(`{"query":"time in Tokyo"}`), created, completed, completed,
		),
	)

	run, err := pgStore.GetSearchRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run == nil || run.Answer != "It is noon." || len(run.Sources) != 1 || run.Model != "gpt-4o" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.CompletedAt != "2026-03-01T10:00:05Z" || run.Request["query"] != "time in Tokyo" {
		t.Fatalf("unexpected timestamps/request: %+v", run)
	}
	expectationsMet(t, mock)
}

func TestGetSearchRun_NoRows(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, status, query, mode").WithArgs("gone").WillReturnError(sql.ErrNoRows)
	run, err := pgStore.GetSearchRun(ctx, "gone")
	if err != nil || run != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", run, err)
	}
	expectationsMet(t, mock)
}

func TestListSearchRuns_DefaultLimitAndScanError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, status, query, mode").WithArgs(100).WillReturnRows(
		searchRunRows().AddRow(
			"run-1", "running", "q", "T2T", nil, nil, "", []byte("[]"), "", nil, []byte("{}"),
			"not-a-time", time.Now(), nil,
		),
	)
	if _, err := pgStore.ListSearchRuns(ctx, 0); err == nil {
		t.Fatal("expected scan error")
	}
	expectationsMet(t, mock)
}

func TestDeleteSearchRun(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM run_event_sequences").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM search_runs").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := pgStore.DeleteSearchRun(ctx, "run-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDeleteSearchRun_RollsBack(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM run_event_sequences").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	if err := pgStore.DeleteSearchRun(ctx, "run-1"); err == nil {
		t.Fatal("expected error")
	}
	expectationsMet(t, mock)
}

func TestNextSeq(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO run_event_sequences").WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(7)))
	seq, err := pgStore.NextSeq(ctx, "run-1")
	if err != nil || seq != 7 {
		t.Fatalf("unexpected seq %d err %v", seq, err)
	}
	expectationsMet(t, mock)
}

func TestAppendEvent_NormalizesTypeAndDropsInvalidTrace(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO run_events").
		WithArgs("run-1", int64(3), "search.completed", sqlmock.AnyArg(), "agent", nil, []byte(`{"results":2}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pgStore.AppendEvent(ctx, store.RunEvent{
		RunID:   "run-1",
		Seq:     3,
		Type:    " Search_Completed ",
		Source:  "agent",
		TraceID: "not-a-uuid",
		Payload: map[string]any{"results": 2},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	expectationsMet(t, mock)
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	traceID := "6f1f7f7c-8f5c-4c0e-9d3b-0f3c2f0a1b2c"
	rows := sqlmock.NewRows([]string{"run_id", "seq", "type", "timestamp", "source", "trace_id", "payload"}).
		AddRow("run-1", int64(1), "geo.resolved", time.Now(), "agent", traceID, []byte(`{"place":"Oslo, Norway"}`)).
		AddRow("run-1", int64(2), "search.completed", time.Now(), "agent", nil, nil)
	mock.ExpectQuery("SELECT run_id, seq, type, timestamp").WithArgs("run-1", int64(0)).WillReturnRows(rows)

	events, err := pgStore.ListEvents(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].TraceID != traceID || events[0].Payload["place"] != "Oslo, Norway" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].TraceID != "" || events[1].Payload == nil {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	expectationsMet(t, mock)
}
