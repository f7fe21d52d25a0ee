// Package page wires the page-level components together. Feature toggles
// select which pieces are active.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/newyears25/internal/chat"
	"github.com/ashureev/newyears25/internal/modal"
	"github.com/ashureev/newyears25/internal/settings"
)

// Options selects the page features and their collaborators.
type Options struct {
	SettingsPanel   bool
	InferenceStatus bool
	DualResponse    bool

	ProxyURL     string
	DefaultModel string // used for the first prompt when DualResponse is false
	Stream       bool   // generate over /ws/generate instead of POST /api/generate
	SettingsPath string // required when SettingsPanel is set

	View           modal.View
	Status         chat.StatusFunc
	StatusInterval time.Duration
	Notice         modal.Options
	RecorderQueue  int
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Page holds the initialised components.
type Page struct {
	Modals   *modal.Manager
	Flow     *chat.Flow
	Settings *settings.Store // nil unless the settings panel is enabled

	apiKey    string
	recorder  *chat.AsyncRecorder
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Init builds the page and starts the privacy notice.
func Init(ctx context.Context, opts Options) (*Page, error) {
	if opts.View == nil {
		return nil, errors.New("page: view is required")
	}
	if opts.ProxyURL == "" {
		return nil, errors.New("page: proxy URL is required")
	}
	if opts.SettingsPanel && opts.SettingsPath == "" {
		return nil, errors.New("page: settings path is required with the settings panel")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Page{}

	if opts.SettingsPanel {
		p.Settings = settings.New(opts.SettingsPath)
		key, err := p.Settings.APIKey()
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		p.apiKey = key
	}

	var status chat.StatusFunc
	if opts.InferenceStatus {
		status = opts.Status
	}

	proxy := chat.NewProxyClient(opts.ProxyURL, opts.HTTPClient)
	var gen chat.Generator = proxy
	flowStatus := status
	if opts.Stream {
		gen = chat.NewStreamClient(opts.ProxyURL, status)
		flowStatus = nil
	}

	p.recorder = chat.NewAsyncRecorder(proxy, opts.RecorderQueue, opts.Logger)
	p.Flow = chat.NewFlow(chat.NewSession(), gen, p.recorder, chat.FlowOptions{
		DualResponse:   opts.DualResponse,
		DefaultModel:   opts.DefaultModel,
		Status:         flowStatus,
		StatusInterval: opts.StatusInterval,
		Logger:         opts.Logger,
	})

	noticeOpts := opts.Notice
	if noticeOpts.Logger == nil {
		noticeOpts.Logger = opts.Logger
	}
	p.Modals = modal.NewManager(panelView{View: opts.View, settings: opts.SettingsPanel}, noticeOpts)

	ctx, p.cancel = context.WithCancel(ctx)
	p.Modals.Init(ctx)

	opts.Logger.Info("Page initialized",
		"session_id", p.Flow.Session().ID(),
		"settings_panel", opts.SettingsPanel,
		"inference_status", opts.InferenceStatus,
		"dual_response", opts.DualResponse,
	)
	return p, nil
}

// APIKey returns the key loaded at init or last saved.
func (p *Page) APIKey() string { return p.apiKey }

// SaveAPIKey persists the key as entered.
func (p *Page) SaveAPIKey(value string) error {
	if p.Settings == nil {
		return errors.New("settings panel is disabled")
	}
	if err := p.Settings.SetAPIKey(value); err != nil {
		return err
	}
	p.apiKey = value
	return nil
}

// Close signals conversation completion, flushes pending log events and
// stops the privacy notice.
func (p *Page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.Flow.Complete()
		err = p.recorder.Close()
		p.cancel()
	})
	return err
}

// panelView hides the settings modal when the panel is disabled.
type panelView struct {
	modal.View
	settings bool
}

func (v panelView) HasModal(kind modal.Kind) bool {
	if kind == modal.Settings && !v.settings {
		return false
	}
	return v.View.HasModal(kind)
}

func (v panelView) ShowModal(kind modal.Kind) error {
	if kind == modal.Settings && !v.settings {
		return modal.ErrModalNotFound
	}
	return v.View.ShowModal(kind)
}

func (v panelView) HideModal(kind modal.Kind) error {
	if kind == modal.Settings && !v.settings {
		return modal.ErrModalNotFound
	}
	return v.View.HideModal(kind)
}
