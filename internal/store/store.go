package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

type ProviderKey struct {
	Provider  string
	APIKeyEnc string
	CreatedAt string
	UpdatedAt string
}

// SearchRun records one grounded answer request and its outcome.
type SearchRun struct {
	ID          string
	Status      string
	Query       string
	Mode        string
	Provider    string
	Model       string
	Answer      string
	Sources     []string
	Trace       string
	Error       string
	Request     map[string]any
	CreatedAt   string
	UpdatedAt   string
	CompletedAt string
}

type RunEvent struct {
	RunID     string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	TraceID   string
	Payload   map[string]any
}

type Store interface {
	GetProviderKey(ctx context.Context, provider string) (*ProviderKey, error)
	UpsertProviderKey(ctx context.Context, key ProviderKey) error
	DeleteProviderKey(ctx context.Context, provider string) error
	ListProviderKeys(ctx context.Context) ([]ProviderKey, error)

	CreateSearchRun(ctx context.Context, run SearchRun) error
	UpdateSearchRun(ctx context.Context, run SearchRun) error
	GetSearchRun(ctx context.Context, runID string) (*SearchRun, error)
	ListSearchRuns(ctx context.Context, limit int) ([]SearchRun, error)
	DeleteSearchRun(ctx context.Context, runID string) error

	NextSeq(ctx context.Context, runID string) (int64, error)
	AppendEvent(ctx context.Context, event RunEvent) error
	ListEvents(ctx context.Context, runID string, afterSeq int64) ([]RunEvent, error)
}
