package domain

import "time"

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	UserInput     string `json:"userInput"`
	SelectedModel string `json:"selectedModel,omitempty"`
}

// SingleResponse is returned when a model was selected.
type SingleResponse struct {
	Response string `json:"response"`
}

// DualResponse is returned for the initial two-model generation.
type DualResponse struct {
	Responses []Candidate `json:"responses"`
}

// ConversationLog is the body of POST /api/log. Exactly one of Message and
// Messages is expected; Messages is a full snapshot of the session.
type ConversationLog struct {
	SessionID  string     `json:"sessionId"`
	Message    *Message   `json:"message,omitempty"`
	Messages   []Message  `json:"messages,omitempty"`
	TokenCount int        `json:"tokenCount"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	Complete   bool       `json:"complete,omitempty"`
}

// Status event types sent over the generation status websocket.
const (
	StatusTick   = "status"
	StatusResult = "result"
	StatusError  = "error"
)

// StatusEvent is one frame on the generation status websocket. Ticks carry
// the elapsed whole seconds; the final frame carries the result or an error.
type StatusEvent struct {
	Type      string      `json:"type"`
	Elapsed   int         `json:"elapsed"`
	Response  string      `json:"response,omitempty"`
	Responses []Candidate `json:"responses,omitempty"`
	Error     string      `json:"error,omitempty"`
}
