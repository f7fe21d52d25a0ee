// goalchat is a terminal client for the newyears25 proxy.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/newyears25/internal/chat"
	"github.com/ashureev/newyears25/internal/config"
	"github.com/ashureev/newyears25/internal/modal"
	"github.com/ashureev/newyears25/internal/page"
	"github.com/ashureev/newyears25/internal/settings"
)

func main() {
	defaultSettings, _ := settings.DefaultPath()

	proxyURL := flag.String("proxy", envOr("GOALCHAT_PROXY", "http://localhost:8787"), "proxy base URL")
	settingsPath := flag.String("settings", defaultSettings, "settings file path")
	noSettings := flag.Bool("no-settings", false, "disable the settings panel")
	single := flag.Bool("single", false, "skip the two-answer choice")
	model := flag.String("model", config.DefaultModels().Dual[0], "model used with -single")
	stream := flag.Bool("stream", false, "use the websocket status stream")
	status := flag.Bool("status", true, "show elapsed time while waiting")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Parse()

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := &terminalView{out: os.Stdout}
	p, err := page.Init(ctx, page.Options{
		SettingsPanel:   !*noSettings && *settingsPath != "",
		InferenceStatus: *status,
		DualResponse:    !*single,
		ProxyURL:        *proxyURL,
		DefaultModel:    *model,
		Stream:          *stream,
		SettingsPath:    *settingsPath,
		View:            view,
		Status: func(elapsed time.Duration) {
			view.printf("  ... %ds\n", int(elapsed/time.Second))
		},
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "goalchat:", err)
		os.Exit(1)
	}
	view.apiKey = p.APIKey
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Failed to close page", "error", err)
		}
	}()

	view.printf("What are your goals for 2025? (/help for commands)\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, p, view, line); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, p *page.Page, view *terminalView, line string) (quit bool) {
	p.Modals.NotifyTyping()
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "/") {
		return handleCommand(p, view, line)
	}

	switch p.Flow.Phase() {
	case chat.PhaseInitial:
		if p.Flow.Dual() {
			submit(ctx, p, view, line)
		} else {
			continueChat(ctx, p, view, line)
		}
	case chat.PhaseChoosing:
		choose(p, view, line)
	case chat.PhaseContinuing:
		continueChat(ctx, p, view, line)
	}
	return false
}

func handleCommand(p *page.Page, view *terminalView, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		p.Modals.Open(modal.Help)
	case "/settings":
		p.Modals.Open(modal.Settings)
	case "/close":
		if active := p.Modals.State().ActiveModal; active != modal.None {
			p.Modals.Close(active)
		}
	case "/key":
		if err := p.SaveAPIKey(strings.TrimSpace(arg)); err != nil {
			view.printf("could not save key: %v\n", err)
			return false
		}
		view.printf("key saved\n")
	case "/quit", "/exit":
		return true
	default:
		view.printf("unknown command %s\n", cmd)
	}
	return false
}

func submit(ctx context.Context, p *page.Page, view *terminalView, text string) {
	candidates, err := p.Flow.Submit(ctx, text)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return
	case errors.Is(err, chat.ErrBusy):
		view.printf("still working on the last request\n")
		return
	case err != nil:
		view.printf("%s\n", chat.RetryMessage)
		return
	}
	for i, c := range candidates {
		view.printf("\n[%d] %s\n", i+1, c.Content)
	}
	view.printf("\nPick 1 or 2.\n")
}

func choose(p *page.Page, view *terminalView, text string) {
	var index int
	switch text {
	case "1":
		index = 0
	case "2":
		index = 1
	default:
		view.printf("Pick 1 or 2.\n")
		return
	}
	if _, err := p.Flow.Choose(index); err != nil {
		view.printf("could not select: %v\n", err)
		return
	}
	view.printf("Thanks. Keep going.\n")
}

func continueChat(ctx context.Context, p *page.Page, view *terminalView, text string) {
	reply, err := p.Flow.Continue(ctx, text)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return
	case errors.Is(err, chat.ErrBusy):
		view.printf("still working on the last request\n")
		return
	case errors.Is(err, chat.ErrWrongPhase):
		view.printf("Pick 1 or 2 first.\n")
		return
	}
	view.printf("\n%s\n(tokens: %d)\n", reply, p.Flow.Session().TokenCount())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
