package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HandleGenerateStatus handles GET /ws/generate. The client sends one
// GenerateRequest; the server answers with elapsed-time ticks while the
// upstream call is outstanding, then a single result or error frame, then
// closes the connection.
func (h *Handler) HandleGenerateStatus(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "done"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var req domain.GenerateRequest
	if err := wsjson.Read(ctx, ws, &req); err != nil {
		if websocket.CloseStatus(err) != -1 {
			slog.Debug("WebSocket closed before request", "error", err)
			return
		}
		slog.Warn("WebSocket read error", "error", err)
		h.writeStatus(ctx, ws, domain.StatusEvent{Type: domain.StatusError, Error: msgGenerateFailed})
		return
	}

	type outcome struct {
		resp any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := h.generate(ctx, req)
		done <- outcome{resp: resp, err: err}
	}()

	// Reads only to notice a client hang-up; the client sends nothing else.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	start := time.Now()
	ticker := time.NewTicker(h.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Generation status stream cancelled", "error", ctx.Err())
			return
		case <-ticker.C:
			elapsed := int(time.Since(start) / time.Second)
			if err := h.writeStatus(ctx, ws, domain.StatusEvent{Type: domain.StatusTick, Elapsed: elapsed}); err != nil {
				return
			}
		case out := <-done:
			elapsed := int(time.Since(start) / time.Second)
			if out.err != nil {
				slog.Error("Error generating responses", "error", out.err, "selected_model", req.SelectedModel)
				h.writeStatus(ctx, ws, domain.StatusEvent{Type: domain.StatusError, Elapsed: elapsed, Error: msgGenerateFailed})
				return
			}
			ev := domain.StatusEvent{Type: domain.StatusResult, Elapsed: elapsed}
			switch v := out.resp.(type) {
			case domain.SingleResponse:
				ev.Response = v.Response
			case domain.DualResponse:
				ev.Responses = v.Responses
			}
			h.writeStatus(ctx, ws, ev)
			return
		}
	}
}

func (h *Handler) writeStatus(ctx context.Context, ws *websocket.Conn, ev domain.StatusEvent) error {
	if err := wsjson.Write(ctx, ws, ev); err != nil {
		slog.Debug("WebSocket write error", "error", err, "type", ev.Type)
		return err
	}
	return nil
}

// originHosts converts configured origins into websocket origin patterns,
// which match against the Origin host.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
