package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

var marshalJSON = json.Marshal

type ExecuteSearchInput struct {
	RunID string
}

type ExecuteSearchOutput struct {
	Status  string
	Sources int
}

type RunFailureInput struct {
	RunID string
	Error string
}

type Runner interface {
	Run(ctx context.Context, req agent.Request) agent.Result
}

type SearchActivities struct {
	store          store.Store
	runner         Runner
	catalog        *llm.Catalog
	keys           llm.KeySource
	controlPlane   string
	httpClient     *http.Client
	requestTimeout time.Duration
}

func NewSearchActivities(store store.Store, runner Runner, catalog *llm.Catalog, keys llm.KeySource, controlPlaneURL string) *SearchActivities {
	if catalog == nil {
		catalog = llm.DefaultCatalog()
	}
	return &SearchActivities{
		store:          store,
		runner:         runner,
		catalog:        catalog,
		keys:           keys,
		controlPlane:   strings.TrimRight(controlPlaneURL, "/"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		requestTimeout: 10 * time.Second,
	}
}

// ExecuteSearch replays the stored request through the pipeline and
// records the outcome. Stage events go to the API so live subscribers see
// them; the store is written directly when the API is unreachable.
func (a *SearchActivities) ExecuteSearch(ctx context.Context, input ExecuteSearchInput) (ExecuteSearchOutput, error) {
	if strings.TrimSpace(input.RunID) == "" {
		return ExecuteSearchOutput{}, errors.New("run_id required")
	}
	run, err := a.store.GetSearchRun(ctx, input.RunID)
	if err != nil {
		return ExecuteSearchOutput{}, err
	}
	if run == nil {
		return ExecuteSearchOutput{}, fmt.Errorf("run %s not found", input.RunID)
	}
	if run.Status != store.RunStatusRunning {
		return ExecuteSearchOutput{Status: run.Status}, nil
	}

	in, err := agent.InputFromMap(run.Request)
	if err != nil {
		return ExecuteSearchOutput{}, fmt.Errorf("decode stored request: %w", err)
	}
	req, err := in.Build(ctx, a.catalog, a.keys)
	if err != nil {
		return ExecuteSearchOutput{}, err
	}
	req.Observer = agent.ObserverFunc(func(ctx context.Context, eventType string, payload map[string]any) {
		if err := a.emitEvent(ctx, input.RunID, eventType, payload); err != nil {
			log.Printf("[livesearch] run %s: dropped %s event: %v", input.RunID, eventType, err)
		}
	})

	result := a.runner.Run(ctx, req)

	current, err := a.store.GetSearchRun(ctx, input.RunID)
	if err != nil {
		return ExecuteSearchOutput{}, err
	}
	if current != nil && current.Status == store.RunStatusCancelled {
		return ExecuteSearchOutput{Status: store.RunStatusCancelled}, nil
	}

	completed := applyResult(*run, result)
	if err := a.store.UpdateSearchRun(ctx, completed); err != nil {
		return ExecuteSearchOutput{}, err
	}
	eventType := events.TypeRunCompleted
	if completed.Status == store.RunStatusFailed {
		eventType = events.TypeRunFailed
	}
	payload := map[string]any{
		"status":  completed.Status,
		"sources": len(completed.Sources),
	}
	if err := a.emitEvent(ctx, input.RunID, eventType, payload); err != nil {
		return ExecuteSearchOutput{}, err
	}
	return ExecuteSearchOutput{Status: completed.Status, Sources: len(completed.Sources)}, nil
}

// applyResult copies an answer onto its run. An error-marked answer fails
// the run and is kept as both answer and error text.
func applyResult(run store.SearchRun, result agent.Result) store.SearchRun {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run.Answer = result.Answer
	run.Sources = result.SourceURLs
	if run.Sources == nil {
		run.Sources = []string{}
	}
	run.Trace = result.Trace
	run.Status = store.RunStatusCompleted
	run.Error = ""
	if llm.IsError(result.Answer) {
		run.Status = store.RunStatusFailed
		run.Error = result.Answer
	}
	run.UpdatedAt = now
	run.CompletedAt = now
	return run
}

func (a *SearchActivities) HandleSearchFailure(ctx context.Context, input RunFailureInput) error {
	if strings.TrimSpace(input.RunID) == "" {
		return errors.New("run_id required")
	}
	detail := strings.TrimSpace(input.Error)
	if detail == "" {
		detail = "unknown workflow activity error"
	}
	run, err := a.store.GetSearchRun(ctx, input.RunID)
	if err != nil {
		log.Printf("[livesearch] run %s: load for failure failed: %v", input.RunID, err)
	}
	if run != nil && run.Status == store.RunStatusRunning {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		run.Status = store.RunStatusFailed
		run.Error = detail
		run.UpdatedAt = now
		run.CompletedAt = now
		if err := a.store.UpdateSearchRun(ctx, *run); err != nil {
			log.Printf("[livesearch] run %s: record failure failed: %v", input.RunID, err)
		}
	}
	return a.emitEvent(ctx, input.RunID, events.TypeRunFailed, map[string]any{
		"error":             detail,
		"status":            store.RunStatusFailed,
		"completion_reason": "activity_error",
	})
}

func (a *SearchActivities) emitEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if err := a.postEvent(ctx, runID, eventType, payload); err == nil {
		return nil
	}
	return a.appendLocalEvent(ctx, runID, eventType, events.SourceWorker, payload)
}

func (a *SearchActivities) appendLocalEvent(ctx context.Context, runID string, eventType string, source string, payload map[string]any) error {
	seq, err := a.store.NextSeq(ctx, runID)
	if err != nil {
		return err
	}
	return a.store.AppendEvent(ctx, store.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    source,
		TraceID:   uuid.New().String(),
		Payload:   payload,
	})
}

func (a *SearchActivities) postEvent(ctx context.Context, runID string, eventType string, payload map[string]any) error {
	if a.controlPlane == "" {
		return errors.New("control plane url not configured")
	}
	url := fmt.Sprintf("%s/runs/%s/events", a.controlPlane, runID)
	body, err := marshalJSON(map[string]any{
		"type":      eventType,
		"source":    events.SourceWorker,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"trace_id":  uuid.New().String(),
		"payload":   payload,
	})
	if err != nil {
		return err
	}
	requestCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("control plane event failed: %s", resp.Status)
	}
	return nil
}
