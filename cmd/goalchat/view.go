package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ashureev/newyears25/internal/modal"
)

const helpText = `Type a goal-setting prompt and press Enter.
You will get two answers; pick one with 1 or 2, then keep chatting.

Commands:
  /help        show this help
  /settings    show local settings
  /key <value> save the API key
  /close       close the open panel
  /quit        exit`

// terminalView renders modals and the privacy notice as text.
type terminalView struct {
	mu     sync.Mutex
	out    io.Writer
	apiKey func() string
}

func (v *terminalView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *terminalView) HasModal(kind modal.Kind) bool {
	return kind == modal.Help || kind == modal.Settings
}

func (v *terminalView) ShowModal(kind modal.Kind) error {
	switch kind {
	case modal.Help:
		v.printf("\n--- help ---\n%s\n------------\n", helpText)
	case modal.Settings:
		key := ""
		if v.apiKey != nil {
			key = v.apiKey()
		}
		v.printf("\n--- settings ---\nOPENAI_API_KEY: %s\n(use /key <value> to change)\n----------------\n", mask(key))
	default:
		return fmt.Errorf("%w: %s", modal.ErrModalNotFound, kind)
	}
	return nil
}

func (v *terminalView) HideModal(kind modal.Kind) error {
	switch kind {
	case modal.Help, modal.Settings:
		return nil
	default:
		return fmt.Errorf("%w: %s", modal.ErrModalNotFound, kind)
	}
}

func (v *terminalView) ShowNotice() {
	v.printf("\n[privacy] Conversations are logged to improve responses. Start typing to dismiss.\n")
}

func (v *terminalView) HideNotice() {}

func (v *terminalView) SetCountdown(remaining int) {
	if remaining > 0 && remaining%4 == 0 {
		v.printf("[privacy] closing in %ds\n", remaining)
	}
}

func mask(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 6 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-6) + key[len(key)-3:]
}
