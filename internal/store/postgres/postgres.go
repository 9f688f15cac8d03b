package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

//go:embed migrations/001_init.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

// New connects, applies the embedded schema and verifies the required tables.
func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"provider_keys",
		"search_runs",
		"run_events",
		"run_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found", table)
		}
	}
	return nil
}

func (p *PostgresStore) GetProviderKey(ctx context.Context, provider string) (*store.ProviderKey, error) {
	const query = `
		SELECT provider, api_key_enc, created_at, updated_at
		FROM provider_keys
		WHERE provider = $1
	`
	var createdAt time.Time
	var updatedAt time.Time
	key := store.ProviderKey{}
	if err := p.db.QueryRowContext(ctx, query, normalizeProvider(provider)).Scan(
		&key.Provider,
		&key.APIKeyEnc,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	key.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	key.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &key, nil
}

func (p *PostgresStore) UpsertProviderKey(ctx context.Context, key store.ProviderKey) error {
	const query = `
		INSERT INTO provider_keys (provider, api_key_enc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider)
		DO UPDATE SET
			api_key_enc = EXCLUDED.api_key_enc,
			updated_at = EXCLUDED.updated_at
	`
	createdAt := parseTimestampValue(key.CreatedAt)
	updatedAt := createdAt
	if strings.TrimSpace(key.UpdatedAt) != "" {
		updatedAt = parseTimestampValue(key.UpdatedAt)
	}
	_, err := p.db.ExecContext(ctx, query, normalizeProvider(key.Provider), key.APIKeyEnc, createdAt, updatedAt)
	return err
}

func (p *PostgresStore) DeleteProviderKey(ctx context.Context, provider string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM provider_keys WHERE provider = $1", normalizeProvider(provider))
	return err
}

func (p *PostgresStore) ListProviderKeys(ctx context.Context) ([]store.ProviderKey, error) {
	const query = `
		SELECT provider, api_key_enc, created_at, updated_at
		FROM provider_keys
		ORDER BY provider ASC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.ProviderKey{}
	for rows.Next() {
		var createdAt time.Time
		var updatedAt time.Time
		var key store.ProviderKey
		if err := rows.Scan(&key.Provider, &key.APIKeyEnc, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		key.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		key.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		results = append(results, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) CreateSearchRun(ctx context.Context, run store.SearchRun) error {
	status := strings.TrimSpace(run.Status)
	if status == "" {
		status = store.RunStatusRunning
	}
	mode := strings.TrimSpace(run.Mode)
	if mode == "" {
		mode = "T2T"
	}
	sources, err := encodeStringSlice(run.Sources)
	if err != nil {
		return err
	}
	request, err := encodeJSONMap(run.Request)
	if err != nil {
		return err
	}
	createdAt := parseTimestampValue(run.CreatedAt)
	updatedAt := createdAt
	if strings.TrimSpace(run.UpdatedAt) != "" {
		updatedAt = parseTimestampValue(run.UpdatedAt)
	}
	const query = `
		INSERT INTO search_runs (
			id,
			status,
			query,
			mode,
			provider,
			model,
			answer,
			sources,
			trace,
			error,
			request,
			created_at,
			updated_at,
			completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		run.ID,
		status,
		run.Query,
		mode,
		nullString(run.Provider),
		nullString(run.Model),
		run.Answer,
		sources,
		run.Trace,
		nullString(run.Error),
		request,
		createdAt,
		updatedAt,
		parseTimestampNull(run.CompletedAt),
	)
	return err
}

func (p *PostgresStore) UpdateSearchRun(ctx context.Context, run store.SearchRun) error {
	sources, err := encodeStringSlice(run.Sources)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()
	if strings.TrimSpace(run.UpdatedAt) != "" {
		updatedAt = parseTimestampValue(run.UpdatedAt)
	}
	const query = `
		UPDATE search_runs
		SET status = $2,
			answer = $3,
			sources = $4,
			trace = $5,
			error = $6,
			updated_at = $7,
			completed_at = $8
		WHERE id = $1
	`
	result, err := p.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Status,
		run.Answer,
		sources,
		run.Trace,
		nullString(run.Error),
		updatedAt,
		parseTimestampNull(run.CompletedAt),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const searchRunColumns = `id, status, query, mode, provider, model, answer, sources, trace, error, request, created_at, updated_at, completed_at`

func (p *PostgresStore) GetSearchRun(ctx context.Context, runID string) (*store.SearchRun, error) {
	query := `SELECT ` + searchRunColumns + ` FROM search_runs WHERE id = $1`
	run, err := scanSearchRun(p.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (p *PostgresStore) ListSearchRuns(ctx context.Context, limit int) ([]store.SearchRun, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + searchRunColumns + ` FROM search_runs ORDER BY created_at DESC, id ASC LIMIT $1`
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.SearchRun{}
	for rows.Next() {
		run, err := scanSearchRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) DeleteSearchRun(ctx context.Context, runID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_event_sequences WHERE run_id = $1", runID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM search_runs WHERE id = $1", runID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	const query = `
		INSERT INTO run_event_sequences (run_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (run_id)
		DO UPDATE SET last_seq = run_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, runID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	event.Type = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(event.Type)), "_", ".")
	encoded, err := encodeJSONMap(event.Payload)
	if err != nil {
		return err
	}
	var traceID any
	if trimmed := strings.TrimSpace(event.TraceID); trimmed != "" {
		if _, err := uuid.Parse(trimmed); err == nil {
			traceID = trimmed
		}
	}
	const query = `
		INSERT INTO run_events (run_id, seq, type, timestamp, source, trace_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.db.ExecContext(ctx, query, event.RunID, event.Seq, event.Type, parseTimestampValue(event.Timestamp), event.Source, traceID, encoded)
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	const query = `
		SELECT run_id, seq, type, timestamp, source, trace_id, payload
		FROM run_events
		WHERE run_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, runID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.RunEvent{}
	for rows.Next() {
		var payloadBytes []byte
		var timestamp time.Time
		var traceID sql.NullString
		var event store.RunEvent
		if err := rows.Scan(&event.RunID, &event.Seq, &event.Type, &timestamp, &event.Source, &traceID, &payloadBytes); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		if traceID.Valid {
			event.TraceID = traceID.String
		}
		payload, err := decodeJSONMap(payloadBytes)
		if err != nil {
			return nil, err
		}
		event.Payload = payload
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearchRun(row rowScanner) (store.SearchRun, error) {
	var run store.SearchRun
	var provider sql.NullString
	var model sql.NullString
	var runErr sql.NullString
	var sources []byte
	var request []byte
	var createdAt time.Time
	var updatedAt time.Time
	var completedAt sql.NullTime
	if err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Query,
		&run.Mode,
		&provider,
		&model,
		&run.Answer,
		&sources,
		&run.Trace,
		&runErr,
		&request,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		return store.SearchRun{}, err
	}
	run.Provider = provider.String
	run.Model = model.String
	run.Error = runErr.String
	run.Sources = decodeStringSlice(sources)
	decoded, err := decodeJSONMap(request)
	if err != nil {
		return store.SearchRun{}, err
	}
	run.Request = decoded
	run.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	run.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time.UTC().Format(time.RFC3339Nano)
	}
	return run, nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func parseTimestampNull(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func encodeStringSlice(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeStringSlice(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	values := []string{}
	if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
		return nil
	}
	return values
}

func encodeJSONMap(value map[string]any) ([]byte, error) {
	if value == nil {
		value = map[string]any{}
	}
	return json.Marshal(value)
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	decoded := map[string]any{}
	if len(raw) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
