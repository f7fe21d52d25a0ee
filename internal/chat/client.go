package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashureev/newyears25/internal/domain"
)

// ErrUnexpectedStatus is returned when the proxy answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected proxy status")

// ProxyClient calls the proxy's HTTP endpoints. It implements Generator and Sink.
type ProxyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxyClient creates a client for the proxy at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewProxyClient(baseURL string, httpClient *http.Client) *ProxyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ProxyClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// GenerateDual requests the two initial candidates.
func (c *ProxyClient) GenerateDual(ctx context.Context, userInput string) ([]domain.Candidate, error) {
	var resp domain.DualResponse
	if err := c.postJSON(ctx, "/api/generate", domain.GenerateRequest{UserInput: userInput}, &resp); err != nil {
		return nil, err
	}
	return resp.Responses, nil
}

// Generate requests a single reply from model.
func (c *ProxyClient) Generate(ctx context.Context, model, userInput string) (string, error) {
	var resp domain.SingleResponse
	req := domain.GenerateRequest{UserInput: userInput, SelectedModel: model}
	if err := c.postJSON(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// LogConversation posts a session snapshot to /api/log.
func (c *ProxyClient) LogConversation(ctx context.Context, log domain.ConversationLog) error {
	return c.postJSON(ctx, "/api/log", log, nil)
}

// LogPreference posts a preference pair to /api/dpo.
func (c *ProxyClient) LogPreference(ctx context.Context, pair domain.PreferencePair) error {
	return c.postJSON(ctx, "/api/dpo", pair, nil)
}

// postJSON sends body and decodes the reply into out when out is non-nil.
func (c *ProxyClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s: %d %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
