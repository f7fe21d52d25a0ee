package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/newyears25/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ErrGenerationRejected is returned when the status stream ends in an error frame.
var ErrGenerationRejected = errors.New("proxy reported generation error")

// StreamClient generates through the proxy's /ws/generate status stream and
// reports each server tick to OnStatus. It implements Generator.
type StreamClient struct {
	url      string
	OnStatus StatusFunc
}

// NewStreamClient targets the proxy at baseURL (http or https).
func NewStreamClient(baseURL string, onStatus StatusFunc) *StreamClient {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &StreamClient{url: u + "/ws/generate", OnStatus: onStatus}
}

// GenerateDual implements Generator.
func (c *StreamClient) GenerateDual(ctx context.Context, userInput string) ([]domain.Candidate, error) {
	ev, err := c.run(ctx, domain.GenerateRequest{UserInput: userInput})
	if err != nil {
		return nil, err
	}
	return ev.Responses, nil
}

// Generate implements Generator.
func (c *StreamClient) Generate(ctx context.Context, model, userInput string) (string, error) {
	ev, err := c.run(ctx, domain.GenerateRequest{UserInput: userInput, SelectedModel: model})
	if err != nil {
		return "", err
	}
	return ev.Response, nil
}

func (c *StreamClient) run(ctx context.Context, req domain.GenerateRequest) (domain.StatusEvent, error) {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return domain.StatusEvent{}, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer func() { _ = conn.CloseNow() }()

	if err := wsjson.Write(ctx, conn, req); err != nil {
		return domain.StatusEvent{}, fmt.Errorf("send request: %w", err)
	}

	for {
		var ev domain.StatusEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return domain.StatusEvent{}, fmt.Errorf("read status: %w", err)
		}
		switch ev.Type {
		case domain.StatusTick:
			if c.OnStatus != nil {
				c.OnStatus(time.Duration(ev.Elapsed) * time.Second)
			}
		case domain.StatusResult:
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return ev, nil
		case domain.StatusError:
			return domain.StatusEvent{}, fmt.Errorf("%w: %s", ErrGenerationRejected, ev.Error)
		default:
			return domain.StatusEvent{}, fmt.Errorf("unexpected status frame %q", ev.Type)
		}
	}
}
