package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/newyears25/internal/completion"
	"github.com/ashureev/newyears25/internal/domain"
)

// HandleGenerate handles POST /api/generate. With selectedModel set it
// returns {response}; otherwise both roster models are asked concurrently and
// {responses:[...]} is returned only if both succeed.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Error("Error generating responses", "error", fmt.Errorf("decode request: %w", err))
		Text(w, http.StatusInternalServerError, msgGenerateFailed)
		return
	}

	resp, err := h.generate(r.Context(), req)
	if err != nil {
		slog.Error("Error generating responses", "error", err, "selected_model", req.SelectedModel)
		Text(w, http.StatusInternalServerError, msgGenerateFailed)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// generate returns a domain.SingleResponse or a domain.DualResponse.
func (h *Handler) generate(ctx context.Context, req domain.GenerateRequest) (any, error) {
	if req.SelectedModel != "" {
		text, err := h.completer.Complete(ctx, req.SelectedModel, h.models.SystemPrompt, req.UserInput)
		if err != nil {
			return nil, err
		}
		return domain.SingleResponse{Response: text}, nil
	}

	candidates, err := completion.GenerateAll(ctx, h.completer, h.models.Dual[:], h.models.SystemPrompt, req.UserInput)
	if err != nil {
		return nil, err
	}
	return domain.DualResponse{Responses: candidates}, nil
}
