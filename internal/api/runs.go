package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 200
)

type runResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Query       string   `json:"query"`
	Mode        string   `json:"mode"`
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Sources     []string `json:"sources"`
	Trace       string   `json:"trace,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

func toRunResponse(run store.SearchRun) runResponse {
	sources := run.Sources
	if sources == nil {
		sources = []string{}
	}
	return runResponse{
		ID:          run.ID,
		Status:      run.Status,
		Query:       run.Query,
		Mode:        run.Mode,
		Provider:    run.Provider,
		Model:       run.Model,
		Answer:      run.Answer,
		Sources:     sources,
		Trace:       run.Trace,
		Error:       run.Error,
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
		CompletedAt: run.CompletedAt,
	}
}

func parseLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultRunListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultRunListLimit
	}
	if limit > maxRunListLimit {
		return maxRunListLimit
	}
	return limit
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListSearchRuns(r.Context(), parseLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}
	writeJSON(w, response)
}

// loadRun writes the error response itself and returns nil when the run
// cannot be served.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) *store.SearchRun {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return nil
	}
	run, err := s.store.GetSearchRun(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil
	}
	return run
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run := s.loadRun(w, r)
	if run == nil {
		return
	}
	writeJSON(w, toRunResponse(*run))
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	run := s.loadRun(w, r)
	if run == nil {
		return
	}
	if s.workflows != nil && run.Status == store.RunStatusRunning {
		_ = s.workflows.CancelSearch(r.Context(), run.ID)
	}
	if err := s.store.DeleteSearchRun(r.Context(), run.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	run := s.loadRun(w, r)
	if run == nil {
		return
	}
	if run.Status != store.RunStatusRunning {
		http.Error(w, "run is not running", http.StatusConflict)
		return
	}
	if s.workflows != nil {
		if err := s.workflows.CancelSearch(r.Context(), run.ID); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run.Status = store.RunStatusCancelled
	run.UpdatedAt = now
	run.CompletedAt = now
	if err := s.store.UpdateSearchRun(r.Context(), *run); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordNew(r.Context(), run.ID, events.TypeRunCancelled, map[string]any{"reason": "user_requested"})
	w.WriteHeader(http.StatusAccepted)
}
