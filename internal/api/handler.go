// Package api provides the HTTP handlers for the generation and logging proxy.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/newyears25/internal/completion"
	"github.com/ashureev/newyears25/internal/config"
	"github.com/ashureev/newyears25/internal/store"
	"github.com/go-chi/chi/v5"
)

// Plain-text bodies returned to the page.
const (
	msgNotFound       = "Not found"
	msgLogged         = "Logged"
	msgDPOLogged      = "DPO data logged"
	msgGenerateFailed = "Error generating responses"
	msgLogFailed      = "Error logging data"
	msgDPOFailed      = "Error logging DPO data"
	msgDumpFailed     = "Error fetching data"
)

const maxRequestBodySize = 1 << 20

// Handler serves the proxy routes.
type Handler struct {
	conversations  store.KV
	dpo            store.KV
	completer      completion.Completer
	models         config.Models
	recordTTL      time.Duration
	statusInterval time.Duration
	originPatterns []string
	now            func() time.Time
}

// NewHandler creates a Handler over the given backend and completion client.
func NewHandler(backend store.Backend, completer completion.Completer, models config.Models, cfg *config.Config) *Handler {
	return &Handler{
		conversations:  backend.Namespace(store.NamespaceConversations),
		dpo:            backend.Namespace(store.NamespaceDPO),
		completer:      completer,
		models:         models,
		recordTTL:      cfg.RecordTTL,
		statusInterval: statusInterval(cfg.StatusInterval),
		originPatterns: originHosts(cfg.AllowedOrigins),
		now:            time.Now,
	}
}

// RegisterRoutes mounts the proxy routes. generateMW wraps only the
// generation endpoints.
func (h *Handler) RegisterRoutes(r chi.Router, generateMW ...func(http.Handler) http.Handler) {
	r.With(generateMW...).Post("/api/generate", h.HandleGenerate)
	r.With(generateMW...).Get("/ws/generate", h.HandleGenerateStatus)

	r.Post("/api/log", h.HandleLog)
	r.Post("/api/dpo", h.HandleDPO)
	r.Get("/api/dump/conversations", h.HandleDumpConversations)
	r.Get("/api/dump/dpo", h.HandleDumpDPO)

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	Text(w, http.StatusNotFound, msgNotFound)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Text writes a plain-text response with the given status code.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func statusInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}
