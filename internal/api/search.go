package api

import (
	"context"
	"encoding/json"
	"errors"
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

type searchRequest struct {
	agent.Input
	Async bool `json:"async"`
}

type searchResponse struct {
	RunID   string   `json:"run_id"`
	Status  string   `json:"status"`
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources"`
	Trace   string   `json:"trace,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = s.cfg.DefaultProvider
	}
	if req.Async && s.workflows == nil {
		http.Error(w, "async runs unavailable", http.StatusServiceUnavailable)
		return
	}
	if req.Async && strings.TrimSpace(req.APIKey) != "" {
		http.Error(w, "api_key cannot be sent with async runs; store it under /settings/keys", http.StatusBadRequest)
		return
	}

	request, err := req.Build(r.Context(), s.catalog, s.keys)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := req.ToMap()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	run := store.SearchRun{
		ID:        uuid.New().String(),
		Status:    store.RunStatusRunning,
		Query:     request.Query,
		Mode:      string(request.Settings.Mode),
		Provider:  request.Model.Provider,
		Model:     request.Model.Model(request.Settings.Mode == agent.ModeVision),
		Sources:   []string{},
		Request:   stored,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSearchRun(r.Context(), run); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Async {
		if err := s.workflows.StartSearch(r.Context(), run.ID); err != nil {
			run.Status = store.RunStatusFailed
			run.Error = err.Error()
			run.CompletedAt = time.Now().UTC().Format(time.RFC3339Nano)
			run.UpdatedAt = run.CompletedAt
			_ = s.store.UpdateSearchRun(r.Context(), run)
			s.recordNew(r.Context(), run.ID, events.TypeRunFailed, map[string]any{"error": run.Error})
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSONStatus(w, searchResponse{RunID: run.ID, Status: run.Status, Sources: []string{}}, http.StatusAccepted)
		return
	}

	request.Observer = s.observer(run.ID)
	result := s.runner.Run(r.Context(), request)
	run = s.finishRun(r.Context(), run, result)
	writeJSON(w, searchResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Answer:  result.Answer,
		Sources: run.Sources,
		Trace:   result.Trace,
	})
}

// finishRun stores the outcome and emits the terminal event. An
// error-marked answer marks the run failed while keeping the answer text.
func (s *Server) finishRun(ctx context.Context, run store.SearchRun, result agent.Result) store.SearchRun {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run.Answer = result.Answer
	run.Sources = result.SourceURLs
	if run.Sources == nil {
		run.Sources = []string{}
	}
	run.Trace = result.Trace
	run.Status = store.RunStatusCompleted
	if llm.IsError(result.Answer) {
		run.Status = store.RunStatusFailed
		run.Error = result.Answer
	}
	run.UpdatedAt = now
	run.CompletedAt = now
	if err := s.store.UpdateSearchRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[livesearch] failed to record run %s: %v", run.ID, err)
	}

	eventType := events.TypeRunCompleted
	if run.Status == store.RunStatusFailed {
		eventType = events.TypeRunFailed
	}
	s.recordNew(ctx, run.ID, eventType, map[string]any{
		"status":  run.Status,
		"sources": len(run.Sources),
	})
	return run
}
