package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
)

type fakeGenerator struct {
	mu       sync.Mutex
	dual     []domain.Candidate
	dualErr  error
	reply    string
	replyErr error
	models   []string
	gate     chan struct{}
	entered  chan struct{}
}

func (g *fakeGenerator) wait(ctx context.Context) error {
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.gate == nil {
		return nil
	}
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGenerator) GenerateDual(ctx context.Context, _ string) ([]domain.Candidate, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.dual, g.dualErr
}

func (g *fakeGenerator) Generate(ctx context.Context, model, _ string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.models = append(g.models, model)
	g.mu.Unlock()
	return g.reply, g.replyErr
}

type captureRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *captureRecorder) Record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *captureRecorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoCandidates() []domain.Candidate {
	return []domain.Candidate{
		{Content: "Start with one habit.", Model: "model-a"},
		{Content: "Write three goals down.", Model: "model-b"},
	}
}

func newTestFlow(gen Generator, rec Recorder, dual bool) *Flow {
	return NewFlow(NewSession(), gen, rec, FlowOptions{
		DualResponse: dual,
		DefaultModel: "model-default",
		Logger:       quietLogger(),
	})
}

func TestSubmitEmptyInputIsNoop(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	f := newTestFlow(&fakeGenerator{dual: twoCandidates()}, rec, true)

	if _, err := f.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if f.Session().Len() != 0 || len(rec.events) != 0 {
		t.Error("empty input must not touch the session or the recorder")
	}
}

func TestSubmitChooseContinue(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{dual: twoCandidates(), reply: "Pick a date."}
	rec := &captureRecorder{}
	f := newTestFlow(gen, rec, true)

	got, err := f.Submit(context.Background(), "  help me plan 2025 ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(got) != 2 || got[1].Model != "model-b" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if f.Phase() != PhaseChoosing {
		t.Fatalf("expected choosing phase, got %s", f.Phase())
	}

	chosen, err := f.Choose(1)
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if chosen.Model != "model-b" || f.Model() != "model-b" {
		t.Errorf("chosen model not adopted: %+v / %q", chosen, f.Model())
	}

	prefs := rec.ofKind(EventPreference)
	if len(prefs) != 1 {
		t.Fatalf("expected one preference event, got %d", len(prefs))
	}
	pair := prefs[0].Preference
	if pair.UserInput != "help me plan 2025" || pair.ChosenResponse != "Write three goals down." || pair.RejectedResponse != "Start with one habit." {
		t.Errorf("unexpected pair %+v", pair)
	}
	if len(pair.ConversationContext) != 0 {
		t.Errorf("context should be the prefix before this exchange, got %+v", pair.ConversationContext)
	}

	reply, err := f.Continue(context.Background(), "what next?")
	if err != nil || reply != "Pick a date." {
		t.Fatalf("Continue = %q, %v", reply, err)
	}
	if gen.models[0] != "model-b" {
		t.Errorf("continuation used %q, want chosen model", gen.models[0])
	}

	msgs := f.Session().Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[1].Speaker != domain.SpeakerAssistant || msgs[1].Text != "Write three goals down." {
		t.Errorf("chosen text not appended: %+v", msgs[1])
	}

	want := 0
	for _, m := range msgs {
		want += domain.EstimateTokens(m.Text)
	}
	if f.Session().TokenCount() != want {
		t.Errorf("token count %d, want %d", f.Session().TokenCount(), want)
	}
}

func TestSubmitPartialFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{dualErr: errors.New("500")}
	f := newTestFlow(gen, &captureRecorder{}, true)

	if _, err := f.Submit(context.Background(), "hi"); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if f.Phase() != PhaseInitial {
		t.Errorf("failure must leave the flow ready for retry, got %s", f.Phase())
	}

	gen.dualErr = nil
	gen.dual = twoCandidates()[:1]
	if _, err := f.Submit(context.Background(), "hi"); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("one candidate must count as failure, got %v", err)
	}

	gen.dual = twoCandidates()
	if _, err := f.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestContinueFailureReturnsApologyWithoutAppending(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{dual: twoCandidates(), replyErr: errors.New("timeout")}
	f := newTestFlow(gen, &captureRecorder{}, true)
	if _, err := f.Submit(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Choose(0); err != nil {
		t.Fatal(err)
	}
	before := f.Session().Len()

	text, err := f.Continue(context.Background(), "more")
	if !errors.Is(err, ErrGeneration) || text != ApologyMessage {
		t.Fatalf("expected apology, got %q, %v", text, err)
	}
	if f.Session().Len() != before+1 {
		t.Errorf("only the user message should be appended, got %d -> %d", before, f.Session().Len())
	}
}

func TestConcurrentSubmitIsBusy(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{dual: twoCandidates(), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newTestFlow(gen, &captureRecorder{}, true)

	done := make(chan error)
	go func() {
		_, err := f.Submit(context.Background(), "first")
		done <- err
	}()
	<-gen.entered

	if _, err := f.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := f.Choose(0); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for choose, got %v", err)
	}
	close(gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestChooseErrors(t *testing.T) {
	t.Parallel()

	f := newTestFlow(&fakeGenerator{dual: twoCandidates()}, &captureRecorder{}, true)
	if _, err := f.Choose(0); !errors.Is(err, ErrNoPendingChoice) {
		t.Errorf("expected ErrNoPendingChoice, got %v", err)
	}
	if _, err := f.Submit(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Choose(2); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("expected ErrInvalidChoice, got %v", err)
	}
	if _, err := f.Continue(context.Background(), "skip"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("expected ErrWrongPhase before choosing, got %v", err)
	}
}

func TestSingleModelModeSkipsChoice(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "Sure."}
	f := newTestFlow(gen, &captureRecorder{}, false)

	if _, err := f.Submit(context.Background(), "hi"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("expected Submit to be disabled, got %v", err)
	}
	if reply, err := f.Continue(context.Background(), "hi"); err != nil || reply != "Sure." {
		t.Fatalf("Continue = %q, %v", reply, err)
	}
	if gen.models[0] != "model-default" {
		t.Errorf("expected default model, got %q", gen.models[0])
	}
}

func TestCompleteSendsTerminalSnapshot(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	f := newTestFlow(&fakeGenerator{dual: twoCandidates()}, rec, true)

	f.Complete()
	if len(rec.events) != 0 {
		t.Fatal("Complete on an empty session must not log")
	}

	if _, err := f.Submit(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	f.Complete()

	convs := rec.ofKind(EventConversation)
	last := convs[len(convs)-1].Conversation
	if !last.Complete || len(last.Messages) != 1 || last.SessionID != f.Session().ID() {
		t.Errorf("unexpected terminal snapshot %+v", last)
	}
}

func TestStatusTicksWhileGenerating(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var ticks []time.Duration
	gen := &fakeGenerator{dual: twoCandidates(), gate: make(chan struct{})}
	f := NewFlow(NewSession(), gen, nil, FlowOptions{
		DualResponse:   true,
		StatusInterval: time.Millisecond,
		Status: func(d time.Duration) {
			mu.Lock()
			ticks = append(ticks, d)
			mu.Unlock()
		},
		Logger: quietLogger(),
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gen.gate)
	}()
	if _, err := f.Submit(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	n := len(ticks)
	mu.Unlock()
	if n == 0 {
		t.Fatal("expected status ticks while generation was outstanding")
	}

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != n {
		t.Error("status ticks continued after generation finished")
	}
}
