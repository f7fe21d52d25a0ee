// Package completion calls an OpenAI-compatible chat-completion endpoint.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUpstreamStatus is returned for a non-2xx upstream response.
	ErrUpstreamStatus = errors.New("upstream returned error status")
	// ErrMalformedResponse is returned when the upstream body has no usable choice.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// maxErrorBody bounds how much of an upstream error body is kept in the error.
const maxErrorBody = 512

// Completer generates text for a single model.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Config configures the HTTP client.
type Config struct {
	URL         string
	APIKey      string
	Temperature float64
	Timeout     time.Duration // 0 = no timeout
}

// Client implements Completer over HTTP.
type Client struct {
	httpClient  *http.Client
	url         string
	apiKey      string
	temperature float64
}

// NewClient creates a chat-completion client.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
	}
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system + user exchange to model and returns the first choice.
func (c *Client) Complete(ctx context.Context, model, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: no message content", ErrMalformedResponse)
	}

	return *parsed.Choices[0].Message.Content, nil
}

// GenerateAll asks every model concurrently with the same prompt. Either all
// calls succeed and the candidates come back in model order, or the first
// error is returned and no candidates are.
func GenerateAll(ctx context.Context, c Completer, models []string, system, user string) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, len(models))

	g, gctx := errgroup.WithContext(ctx)
	for i, model := range models {
		g.Go(func() error {
			text, err := c.Complete(gctx, model, system, user)
			if err != nil {
				return fmt.Errorf("model %s: %w", model, err)
			}
			candidates[i] = domain.Candidate{Content: text, Model: model}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return candidates, nil
}
