package chat

import (
	"testing"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
	"github.com/google/uuid"
)

func TestSessionAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newSessionAt(func() time.Time { return clock })

	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Fatalf("session id is not a uuid: %v", err)
	}

	s.Append(domain.SpeakerUser, "help me plan 2025")
	clock = clock.Add(time.Second)
	msg := s.Append(domain.SpeakerAssistant, "ok")

	if !msg.Timestamp.Equal(clock) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, clock)
	}
	if s.TokenCount() != 6 {
		t.Errorf("token count = %d, want 6", s.TokenCount())
	}

	snap := s.Snapshot(false)
	snap.Messages[0].Text = "mutated"
	if s.Messages()[0].Text != "help me plan 2025" {
		t.Error("snapshot shares storage with the session")
	}
	if snap.StartTime == nil || !snap.StartTime.Equal(s.StartTime()) {
		t.Errorf("unexpected start time %v", snap.StartTime)
	}
}

func TestNewSessionIDsAreUnique(t *testing.T) {
	t.Parallel()

	if NewSession().ID() == NewSession().ID() {
		t.Fatal("expected distinct session ids")
	}
}
