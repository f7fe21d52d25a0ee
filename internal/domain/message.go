// Package domain contains core domain types shared by the proxy server and the
// conversation client.
package domain

import (
	"time"
	"unicode/utf8"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message is a single entry in a conversation log.
type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Role maps the speaker to a chat-completion role.
func (m Message) Role() string {
	if m.Speaker == SpeakerAssistant {
		return "assistant"
	}
	return "user"
}

// EstimateTokens returns ceil(len(text)/4), counting runes.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Candidate is one generated response together with the model that produced it.
type Candidate struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}
