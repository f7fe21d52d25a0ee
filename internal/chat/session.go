// Package chat drives the conversation side of the page: the session log,
// the two-phase response-selection flow, and best-effort logging to the proxy.
package chat

import (
	"sync"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
	"github.com/google/uuid"
)

// Session is the client-held conversation log. Messages are append-only and
// the token estimate never decreases.
type Session struct {
	mu         sync.Mutex
	id         string
	startTime  time.Time
	messages   []domain.Message
	tokenCount int
	now        func() time.Time
}

// NewSession starts a session with a fresh id.
func NewSession() *Session {
	return newSessionAt(time.Now)
}

func newSessionAt(now func() time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		startTime: now(),
		now:       now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time { return s.startTime }

// Append adds a message and updates the token estimate.
func (s *Session) Append(speaker domain.Speaker, text string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{Speaker: speaker, Text: text, Timestamp: s.now()}
	s.messages = append(s.messages, msg)
	s.tokenCount += domain.EstimateTokens(text)
	return msg
}

// Messages returns a copy of the log.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// TokenCount returns the running token estimate.
func (s *Session) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCount
}

// Snapshot returns the full log in the shape sent to /api/log.
func (s *Session) Snapshot(complete bool) domain.ConversationLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.startTime
	return domain.ConversationLog{
		SessionID:  s.id,
		Messages:   append([]domain.Message{}, s.messages...),
		TokenCount: s.tokenCount,
		StartTime:  &start,
		Complete:   complete,
	}
}
