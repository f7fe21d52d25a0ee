// Package modal implements the page's modal and privacy-notice visibility
// state machine.
package modal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind names a modal dialog.
type Kind string

const (
	None     Kind = ""
	Help     Kind = "help"
	Settings Kind = "settings"
)

// ErrModalNotFound is returned by a View for a modal kind it has no element for.
var ErrModalNotFound = errors.New("modal not found")

// View renders the visible elements. Notice calls are made with the
// manager's state lock held, so implementations must not call back into the
// Manager. Modal and notice calls may arrive from different goroutines.
type View interface {
	HasModal(kind Kind) bool
	ShowModal(kind Kind) error
	HideModal(kind Kind) error
	ShowNotice()
	HideNotice()
	SetCountdown(remaining int)
}

// State is a snapshot of the manager.
type State struct {
	ActiveModal          Kind
	TransitionInProgress bool
	PrivacyNoticeVisible bool
	CountdownRemaining   int
}

// Options tunes the privacy-notice timing.
type Options struct {
	CountdownFrom int           // default 12
	Tick          time.Duration // default 1s
	StartDelay    time.Duration // default 300ms
	Logger        *slog.Logger
}

// Manager owns modal visibility. At most one modal is active. Open attempts
// made while another Open is running are dropped; Close waits for a running
// Open to finish.
type Manager struct {
	transition sync.Mutex

	mu            sync.Mutex
	view          View
	active        Kind
	inProgress    bool
	noticeVisible bool
	dismissed     bool
	countdown     int
	stopNotice    context.CancelFunc

	countdownFrom int
	tick          time.Duration
	startDelay    time.Duration
	logger        *slog.Logger
}

// NewManager creates a Manager that renders through view.
func NewManager(view View, opts Options) *Manager {
	if opts.CountdownFrom <= 0 {
		opts.CountdownFrom = 12
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.StartDelay < 0 {
		opts.StartDelay = 0
	} else if opts.StartDelay == 0 {
		opts.StartDelay = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		view:          view,
		countdown:     opts.CountdownFrom,
		countdownFrom: opts.CountdownFrom,
		tick:          opts.Tick,
		startDelay:    opts.StartDelay,
		logger:        opts.Logger,
	}
}

// Init renders the initial countdown and schedules the privacy notice. The
// countdown runs until it reaches zero, the notice is dismissed, or ctx ends.
func (m *Manager) Init(ctx context.Context) State {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopNotice != nil {
		m.stopNotice()
	}
	m.stopNotice = cancel
	m.countdown = m.countdownFrom
	m.view.SetCountdown(m.countdown)
	state := m.stateLocked()
	m.mu.Unlock()

	go m.runNotice(ctx)
	return state
}

func (m *Manager) runNotice(ctx context.Context) {
	timer := time.NewTimer(m.startDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if !m.showNotice() {
		return
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.countdownTick() {
				return
			}
		}
	}
}

func (m *Manager) showNotice() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inProgress || m.dismissed {
		m.logger.Debug("Privacy notice skipped", "in_progress", m.inProgress, "dismissed", m.dismissed)
		return false
	}
	m.noticeVisible = true
	m.view.ShowNotice()
	return true
}

// countdownTick reports whether the countdown is finished.
func (m *Manager) countdownTick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.noticeVisible {
		return true
	}
	if m.countdown > 0 {
		m.countdown--
	}
	m.view.SetCountdown(m.countdown)
	if m.countdown == 0 {
		m.hideNoticeLocked()
		return true
	}
	return false
}

// HidePrivacyNotice hides the notice and stops the countdown. Safe to call
// repeatedly and before the notice has appeared.
func (m *Manager) HidePrivacyNotice() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dismissed = true
	m.hideNoticeLocked()
	return m.stateLocked()
}

// NotifyTyping dismisses the privacy notice when the user starts typing.
func (m *Manager) NotifyTyping() State { return m.HidePrivacyNotice() }

// NotifyNoticeClicked dismisses the privacy notice when it is clicked.
func (m *Manager) NotifyNoticeClicked() State { return m.HidePrivacyNotice() }

// hideNoticeLocked stops the countdown and hides a visible notice.
func (m *Manager) hideNoticeLocked() {
	if m.stopNotice != nil {
		m.stopNotice()
		m.stopNotice = nil
	}
	if !m.noticeVisible {
		return
	}
	m.noticeVisible = false
	m.view.HideNotice()
}

// Open shows the requested modal. It is dropped without effect if another
// Open is in progress. Failures are logged and leave the machine usable.
func (m *Manager) Open(kind Kind) State {
	if !m.transition.TryLock() {
		m.logger.Debug("Modal transition in progress, ignoring open request", "modal", kind)
		return m.State()
	}
	func() {
		defer m.transition.Unlock()
		m.setInProgress(true)
		defer m.setInProgress(false)

		if err := m.open(kind); err != nil {
			m.logger.Error("Error opening modal", "modal", kind, "error", err)
		}
	}()
	return m.State()
}

func (m *Manager) open(kind Kind) error {
	if kind == None {
		return fmt.Errorf("%w: empty kind", ErrModalNotFound)
	}
	if !m.view.HasModal(kind) {
		return fmt.Errorf("%w: %s", ErrModalNotFound, kind)
	}

	m.mu.Lock()
	if m.noticeVisible {
		m.hideNoticeLocked()
	}
	prev := m.active
	m.mu.Unlock()

	if prev != None && prev != kind {
		if err := m.close(prev); err != nil {
			return err
		}
	}

	if err := m.view.ShowModal(kind); err != nil {
		return fmt.Errorf("show %s: %w", kind, err)
	}

	m.mu.Lock()
	m.active = kind
	m.mu.Unlock()
	return nil
}

// Close hides the modal and clears it as active if it was. Close waits for
// an in-flight Open rather than being dropped.
func (m *Manager) Close(kind Kind) State {
	m.transition.Lock()
	func() {
		defer m.transition.Unlock()
		if err := m.close(kind); err != nil {
			m.logger.Error("Error closing modal", "modal", kind, "error", err)
		}
	}()
	return m.State()
}

func (m *Manager) close(kind Kind) error {
	if err := m.view.HideModal(kind); err != nil {
		return fmt.Errorf("hide %s: %w", kind, err)
	}

	m.mu.Lock()
	if m.active == kind {
		m.active = None
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) setInProgress(v bool) {
	m.mu.Lock()
	m.inProgress = v
	m.mu.Unlock()
}

// State returns a snapshot of the manager.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{
		ActiveModal:          m.active,
		TransitionInProgress: m.inProgress,
		PrivacyNoticeVisible: m.noticeVisible,
		CountdownRemaining:   m.countdown,
	}
}
