package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

type Server struct {
	store     store.Store
	broker    Broker
	workflows WorkflowService
	cfg       config.Config
	runner    Runner
	catalog   *llm.Catalog
	keys      llm.KeySource
	cipher    *secrets.Cipher
	pinger    Pinger
}

type Broker interface {
	Publish(event events.RunEvent)
	Subscribe(ctx context.Context, runID string) <-chan events.RunEvent
}

type WorkflowService interface {
	StartSearch(ctx context.Context, runID string) error
	CancelSearch(ctx context.Context, runID string) error
}

// Runner executes one grounded answer request synchronously.
type Runner interface {
	Run(ctx context.Context, req agent.Request) agent.Result
}

// Pinger performs the round-trip used to verify a stored key.
type Pinger interface {
	Generate(ctx context.Context, endpoint llm.Endpoint, messages []llm.ChatMessage) (string, error)
}

type Option func(*Server)

func WithRunner(runner Runner) Option {
	return func(s *Server) { s.runner = runner }
}

func WithCatalog(catalog *llm.Catalog) Option {
	return func(s *Server) { s.catalog = catalog }
}

func WithKeys(keys llm.KeySource) Option {
	return func(s *Server) { s.keys = keys }
}

func WithCipher(c *secrets.Cipher) Option {
	return func(s *Server) { s.cipher = c }
}

func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

func NewServer(store store.Store, broker Broker, workflows WorkflowService, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		store:     store,
		broker:    broker,
		workflows: workflows,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = llm.DefaultCatalog()
	}
	if s.keys == nil {
		s.keys = secrets.NewKeyring(nil, store, s.cipher)
	}
	if s.pinger == nil {
		s.pinger = llm.NewGateway(nil)
	}
	if s.runner == nil {
		s.runner = agent.New(agent.Config{Catalog: s.catalog})
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/search", s.search)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)
	r.Delete("/runs/{id}", s.deleteRun)
	r.Post("/runs/{id}/cancel", s.cancelRun)
	r.Post("/runs/{id}/events", s.ingestEvent)
	r.Get("/runs/{id}/events", s.streamEvents)
	r.Get("/providers", s.listProviders)
	r.Get("/settings/keys", s.listKeys)
	r.Post("/settings/keys/{provider}", s.putKey)
	r.Delete("/settings/keys/{provider}", s.deleteKey)
	r.Post("/settings/keys/{provider}/test", s.testKey)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if strings.HasSuffix(cleanPath, "/events") && (method == http.MethodPost || method == http.MethodGet) {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/runs" || cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListSearchRuns(ctx, 1); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.workflows == nil {
		subsystems["temporal"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["temporal"] = subsystemStatus{Status: "ok"}
	}
	if s.cipher == nil {
		subsystems["secrets"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["secrets"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

// record persists a stage event and fans it out to live subscribers.
func (s *Server) record(ctx context.Context, event events.RunEvent) events.RunEvent {
	seq, err := s.store.NextSeq(ctx, event.RunID)
	if err != nil {
		s.broker.Publish(event)
		return event
	}
	event.Seq = seq
	_ = s.store.AppendEvent(ctx, fromEvent(event))
	s.broker.Publish(event)
	return event
}

func (s *Server) recordNew(ctx context.Context, runID, eventType string, payload map[string]any) {
	s.record(ctx, events.New(runID, eventType, events.SourceControlPlane, payload))
}

// observer adapts record to the pipeline's stage callbacks.
func (s *Server) observer(runID string) agent.Observer {
	return agent.ObserverFunc(func(ctx context.Context, eventType string, payload map[string]any) {
		s.recordNew(ctx, runID, eventType, payload)
	})
}

type ingestEventRequest struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	Payload   map[string]any `json:"payload"`
}

func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "event type required", http.StatusBadRequest)
		return
	}
	if strings.Contains(req.Type, "_") {
		http.Error(w, "event type must use dot notation", http.StatusBadRequest)
		return
	}

	event := events.New(runID, req.Type, req.Source, req.Payload)
	if req.Timestamp != "" {
		event.Ts = req.Timestamp
	}
	if _, err := uuid.Parse(strings.TrimSpace(req.TraceID)); err == nil {
		event.TraceID = strings.TrimSpace(req.TraceID)
	}
	if isTransientPayload(req.Payload) {
		s.broker.Publish(event)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.record(r.Context(), event)
	w.WriteHeader(http.StatusAccepted)
}

func isTransientPayload(payload map[string]any) bool {
	if payload == nil {
		return false
	}
	if value, ok := payload["transient"]; ok {
		if flag, ok := value.(bool); ok {
			return flag
		}
	}
	return false
}

// streamEvents replays stored events after the client's cursor, then
// follows the live broker until a terminal event or disconnect.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx, runID)
	afterSeq := parseAfterSeq(runID, r)
	stored, err := s.store.ListEvents(ctx, runID, afterSeq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, event := range stored {
		sendSSE(w, toEvent(event))
		flusher.Flush()
		afterSeq = event.Seq
		if events.Terminal(event.Type) {
			return
		}
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			if event.Seq != 0 && event.Seq <= afterSeq {
				continue
			}
			sendSSE(w, event)
			flusher.Flush()
			if events.Terminal(event.Type) {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.RunEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.RunID, event.Seq)
	fmt.Fprint(w, "event: run_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func toEvent(event store.RunEvent) events.RunEvent {
	return events.RunEvent{
		RunID:   event.RunID,
		Seq:     event.Seq,
		Type:    events.NormalizeType(event.Type),
		Ts:      event.Timestamp,
		Source:  event.Source,
		TraceID: event.TraceID,
		Payload: event.Payload,
	}
}

func fromEvent(event events.RunEvent) store.RunEvent {
	return store.RunEvent{
		RunID:     event.RunID,
		Seq:       event.Seq,
		Type:      event.Type,
		Timestamp: event.Ts,
		Source:    event.Source,
		TraceID:   event.TraceID,
		Payload:   event.Payload,
	}
}

func parseAfterSeq(runID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	parts := strings.Split(lastEventID, ":")
	if len(parts) != 2 {
		return 0
	}
	if parts[0] != runID {
		return 0
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
