package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage event types emitted while a search run progresses.
const (
	TypeRunStarted        = "run.started"
	TypeGeoResolved       = "geo.resolved"
	TypeQueryOptimized    = "query.optimized"
	TypeQueryFailed       = "query.failed"
	TypeSearchCompleted   = "search.completed"
	TypeFetchCompleted    = "fetch.completed"
	TypeFetchFailed       = "fetch.failed"
	TypeFetchSkipped      = "fetch.skipped"
	TypeEarlyStop         = "fetch.early_stop"
	TypeAnswerStarted     = "answer.started"
	TypeAnswerCompleted   = "answer.completed"
	TypeRunCompleted      = "run.completed"
	TypeRunFailed         = "run.failed"
	TypeRunCancelled      = "run.cancelled"
	SourceControlPlane    = "livesearch"
	SourceWorker          = "worker"
	subscriberBufferDepth = 32
)

type RunEvent struct {
	RunID   string         `json:"run_id"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Source  string         `json:"source"`
	TraceID string         `json:"trace_id,omitempty"`
	Payload map[string]any `json:"payload"`
}

// New stamps an event with the current time and a fresh trace ID. Seq is
// assigned by the store when the event is appended.
func New(runID, eventType, source string, payload map[string]any) RunEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return RunEvent{
		RunID:   runID,
		Type:    NormalizeType(eventType),
		Ts:      time.Now().UTC().Format(time.RFC3339Nano),
		Source:  source,
		TraceID: uuid.NewString(),
		Payload: payload,
	}
}

// Terminal reports whether no further events follow this one.
func Terminal(eventType string) bool {
	switch NormalizeType(eventType) {
	case TypeRunCompleted, TypeRunFailed, TypeRunCancelled:
		return true
	}
	return false
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan RunEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan RunEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan RunEvent {
	ch := make(chan RunEvent, subscriberBufferDepth)

	b.mu.Lock()
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = map[chan RunEvent]struct{}{}
	}
	b.subscribers[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[runID] != nil {
			delete(b.subscribers[runID], ch)
			if len(b.subscribers[runID]) == 0 {
				delete(b.subscribers, runID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish never blocks; a subscriber with a full buffer misses the event
// and must catch up from the store.
func (b *Broker) Publish(event RunEvent) {
	b.mu.RLock()
	subscribers := b.subscribers[event.RunID]
	chans := make([]chan RunEvent, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Broker) SubscriberCount(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[runID])
}
