package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
)

// Messages shown to the user when generation fails.
const (
	ApologyMessage = "I apologize, but I encountered an error. Please try again."
	RetryMessage   = "Sorry, something went wrong generating responses. Please try again."
)

var (
	ErrEmptyInput       = errors.New("empty input")
	ErrBusy             = errors.New("a request is already in progress")
	ErrNoCandidates     = errors.New("no candidate responses")
	ErrGeneration       = errors.New("generation failed")
	ErrWrongPhase       = errors.New("action not valid in the current phase")
	ErrInvalidChoice    = errors.New("invalid candidate index")
	ErrNoPendingChoice  = errors.New("no candidates awaiting a choice")
	errUnexpectedResult = errors.New("expected exactly two candidates")
)

// Phase is the position in the two-phase interaction.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseChoosing
	PhaseContinuing
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseChoosing:
		return "choosing"
	case PhaseContinuing:
		return "continuing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Generator produces candidate and single-model replies.
type Generator interface {
	GenerateDual(ctx context.Context, userInput string) ([]domain.Candidate, error)
	Generate(ctx context.Context, model, userInput string) (string, error)
}

// StatusFunc receives the elapsed time of an outstanding generation call.
type StatusFunc func(elapsed time.Duration)

// FlowOptions configures a Flow.
type FlowOptions struct {
	// DualResponse enables the initial two-candidate choice. When false the
	// first prompt goes straight to DefaultModel.
	DualResponse   bool
	DefaultModel   string
	Status         StatusFunc
	StatusInterval time.Duration // default 1s
	Logger         *slog.Logger
}

// Flow runs the response-selection interaction for one session. Only one
// generation call may be outstanding; overlapping calls fail with ErrBusy.
type Flow struct {
	busy sync.Mutex

	mu           sync.Mutex
	phase        Phase
	model        string
	pending      []domain.Candidate
	pendingInput string
	prefix       []domain.Message

	session        *Session
	gen            Generator
	rec            Recorder
	dual           bool
	defaultModel   string
	status         StatusFunc
	statusInterval time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewFlow creates a Flow. A nil rec discards log events.
func NewFlow(session *Session, gen Generator, rec Recorder, opts FlowOptions) *Flow {
	if rec == nil {
		rec = NopRecorder{}
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Flow{
		session:        session,
		gen:            gen,
		rec:            rec,
		dual:           opts.DualResponse,
		defaultModel:   opts.DefaultModel,
		status:         opts.Status,
		statusInterval: opts.StatusInterval,
		logger:         opts.Logger,
		now:            time.Now,
	}
}

// Session returns the session the flow appends to.
func (f *Flow) Session() *Session { return f.session }

// Phase returns the current phase.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Dual reports whether the first prompt asks for two candidates.
func (f *Flow) Dual() bool { return f.dual }

// Model returns the model used for continuation, or "" before a choice.
func (f *Flow) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

// Submit sends the first prompt and returns two candidates in slot order.
// On failure the caller shows RetryMessage and may submit again.
func (f *Flow) Submit(ctx context.Context, text string) ([]domain.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if !f.busy.TryLock() {
		return nil, ErrBusy
	}
	defer f.busy.Unlock()

	if !f.dual || f.Phase() != PhaseInitial {
		return nil, ErrWrongPhase
	}

	prefix := f.session.Messages()
	f.session.Append(domain.SpeakerUser, text)
	f.rec.Record(ConversationEvent(f.session.Snapshot(false)))

	stop := f.startStatus()
	candidates, err := f.gen.GenerateDual(ctx, text)
	stop()
	if err == nil && len(candidates) != 2 {
		err = fmt.Errorf("%w: got %d", errUnexpectedResult, len(candidates))
	}
	if err != nil {
		f.logger.Error("Error generating responses", "session_id", f.session.ID(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}

	f.mu.Lock()
	f.pending = candidates
	f.pendingInput = text
	f.prefix = prefix
	f.phase = PhaseChoosing
	f.mu.Unlock()

	return append([]domain.Candidate(nil), candidates...), nil
}

// Choose accepts the candidate at index and rejects the other. The chosen
// model is used for the rest of the session.
func (f *Flow) Choose(index int) (domain.Candidate, error) {
	if !f.busy.TryLock() {
		return domain.Candidate{}, ErrBusy
	}
	defer f.busy.Unlock()

	f.mu.Lock()
	if f.phase != PhaseChoosing {
		f.mu.Unlock()
		return domain.Candidate{}, ErrNoPendingChoice
	}
	if index < 0 || index >= len(f.pending) {
		f.mu.Unlock()
		return domain.Candidate{}, fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	chosen := f.pending[index]
	rejected := f.pending[1-index]
	pair := domain.PreferencePair{
		SessionID:           f.session.ID(),
		UserInput:           f.pendingInput,
		ChosenResponse:      chosen.Content,
		RejectedResponse:    rejected.Content,
		Timestamp:           f.now(),
		ConversationContext: f.prefix,
	}
	f.model = chosen.Model
	f.phase = PhaseContinuing
	f.pending = nil
	f.pendingInput = ""
	f.prefix = nil
	f.mu.Unlock()

	f.session.Append(domain.SpeakerAssistant, chosen.Content)
	f.rec.Record(ConversationEvent(f.session.Snapshot(false)))
	f.rec.Record(PreferenceEvent(pair))

	return chosen, nil
}

// Continue sends a follow-up prompt to the chosen model. On failure it
// returns ApologyMessage with an error wrapping ErrGeneration; the apology is
// not added to the session.
func (f *Flow) Continue(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if !f.busy.TryLock() {
		return "", ErrBusy
	}
	defer f.busy.Unlock()

	f.mu.Lock()
	switch {
	case f.phase == PhaseContinuing:
	case f.phase == PhaseInitial && !f.dual:
		f.model = f.defaultModel
		f.phase = PhaseContinuing
	default:
		f.mu.Unlock()
		return "", ErrWrongPhase
	}
	model := f.model
	f.mu.Unlock()

	f.session.Append(domain.SpeakerUser, text)
	f.rec.Record(ConversationEvent(f.session.Snapshot(false)))

	stop := f.startStatus()
	reply, err := f.gen.Generate(ctx, model, text)
	stop()
	if err != nil {
		f.logger.Error("Error generating response", "session_id", f.session.ID(), "model", model, "error", err)
		return ApologyMessage, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	f.session.Append(domain.SpeakerAssistant, reply)
	f.rec.Record(ConversationEvent(f.session.Snapshot(false)))
	return reply, nil
}

// Complete sends the terminal session snapshot if anything was said.
func (f *Flow) Complete() {
	if f.session.Len() == 0 {
		return
	}
	f.rec.Record(ConversationEvent(f.session.Snapshot(true)))
}

// startStatus reports elapsed time every interval until the returned stop
// function is called.
func (f *Flow) startStatus() (stop func()) {
	if f.status == nil {
		return func() {}
	}

	start := time.Now()
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(f.statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				f.status(time.Since(start))
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
