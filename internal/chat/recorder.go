package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
)

// EventKind selects the logging endpoint for an Event.
type EventKind string

const (
	EventConversation EventKind = "conversation"
	EventPreference   EventKind = "preference"
)

// Event is one best-effort log write.
type Event struct {
	Kind         EventKind
	Conversation domain.ConversationLog
	Preference   domain.PreferencePair
}

// ConversationEvent wraps a session snapshot.
func ConversationEvent(log domain.ConversationLog) Event {
	return Event{Kind: EventConversation, Conversation: log}
}

// PreferenceEvent wraps a preference pair.
func PreferenceEvent(pair domain.PreferencePair) Event {
	return Event{Kind: EventPreference, Preference: pair}
}

// Recorder accepts log events. Record must return promptly and never report
// failure to the caller.
type Recorder interface {
	Record(ev Event)
}

// NopRecorder discards every event.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Event) {}

// Sink delivers events to their destination.
type Sink interface {
	LogConversation(ctx context.Context, log domain.ConversationLog) error
	LogPreference(ctx context.Context, pair domain.PreferencePair) error
}

const (
	defaultRecorderQueue = 64
	recordTimeout        = 10 * time.Second
)

// AsyncRecorder delivers events to a Sink from a single background goroutine.
// Events are dropped with a warning when the queue is full. Delivery failures
// are logged and not retried.
type AsyncRecorder struct {
	sink   Sink
	logger *slog.Logger
	queue  chan Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncRecorder starts the delivery goroutine. Close stops it.
func NewAsyncRecorder(sink Sink, queueSize int, logger *slog.Logger) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = defaultRecorderQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &AsyncRecorder{
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues ev without blocking.
func (r *AsyncRecorder) Record(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("Recorder closed, dropping event", "kind", ev.Kind)
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("Recorder queue full, dropping event", "kind", ev.Kind)
	}
}

// Close delivers queued events and stops the goroutine.
func (r *AsyncRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *AsyncRecorder) run() {
	defer r.wg.Done()
	for ev := range r.queue {
		r.deliver(ev)
	}
}

func (r *AsyncRecorder) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var err error
	var sessionID string
	switch ev.Kind {
	case EventConversation:
		sessionID = ev.Conversation.SessionID
		err = r.sink.LogConversation(ctx, ev.Conversation)
	case EventPreference:
		sessionID = ev.Preference.SessionID
		err = r.sink.LogPreference(ctx, ev.Preference)
	default:
		r.logger.Warn("Unknown log event kind", "kind", ev.Kind)
		return
	}
	if err != nil {
		r.logger.Error("Failed to record event", "kind", ev.Kind, "session_id", sessionID, "error", err)
	}
}
