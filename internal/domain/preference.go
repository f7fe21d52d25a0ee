package domain

import "time"

// PreferencePair records one accepted and one rejected response to the same
// prompt. It is created once per selection and never updated.
type PreferencePair struct {
	SessionID           string    `json:"sessionId"`
	UserInput           string    `json:"userInput"`
	ChosenResponse      string    `json:"chosenResponse"`
	RejectedResponse    string    `json:"rejectedResponse"`
	Timestamp           time.Time `json:"timestamp"`
	ConversationContext []Message `json:"conversationContext,omitempty"`
}

// ChatMessage is a role/content pair in the preference training format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DPOInput is the prompt side of a preference training example.
type DPOInput struct {
	Messages          []ChatMessage `json:"messages"`
	Tools             []any         `json:"tools"`
	ParallelToolCalls bool          `json:"parallel_tool_calls"`
}

// DPORecord is the stored preference training example.
type DPORecord struct {
	Input              DPOInput      `json:"input"`
	PreferredOutput    []ChatMessage `json:"preferred_output"`
	NonPreferredOutput []ChatMessage `json:"non_preferred_output"`
}

// NewDPORecord converts a preference pair into the training schema. Context
// messages precede the final user turn.
func NewDPORecord(p PreferencePair) DPORecord {
	messages := make([]ChatMessage, 0, len(p.ConversationContext)+1)
	for _, m := range p.ConversationContext {
		messages = append(messages, ChatMessage{Role: m.Role(), Content: m.Text})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: p.UserInput})

	return DPORecord{
		Input: DPOInput{
			Messages:          messages,
			Tools:             []any{},
			ParallelToolCalls: true,
		},
		PreferredOutput:    []ChatMessage{{Role: "assistant", Content: p.ChosenResponse}},
		NonPreferredOutput: []ChatMessage{{Role: "assistant", Content: p.RejectedResponse}},
	}
}
