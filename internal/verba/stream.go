package verba

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"
)

// streamRoute is the backend websocket endpoint for streamed generation. It
// lives beside /api, not under it.
const streamRoute = "/ws/generate_stream"

// streamChunk is one frame of the generation stream. The frame carrying
// finish_reason "stop" is the distinguished terminal.
type streamChunk struct {
	Message      string `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Stream is a pull-based view of a streamed generation. Fragments are yielded
// in the order the backend sends them and must be concatenated as received.
// After the terminal frame, Next returns io.EOF. Callers that stop pulling
// early must still call Close to release the connection.
type Stream struct {
	conn *websocket.Conn
	done bool
}

// GenerateStream opens a generation stream for the elaborated query, shared
// context, and conversation history. The caller owns the returned Stream and
// must Close it on every exit path.
func (c *Client) GenerateStream(ctx context.Context, query, docContext string, conversation []ConversationItem) (*Stream, error) {
	url := c.streamURL()
	slog.Info("opening generation stream", "url", url)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	payload := GeneratePayload{Query: query, Context: docContext, Conversation: conversation}
	if err := conn.WriteJSON(payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending stream request: %w", err)
	}

	return &Stream{conn: conn}, nil
}

// streamURL rewrites the API base into the websocket endpoint URL.
func (c *Client) streamURL() string {
	base := strings.TrimSuffix(c.baseAPIURL, "/api")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + streamRoute
}

// Next returns the next text fragment. Exhaustion is signalled with io.EOF,
// never as a failure; any other error means the stream broke mid-flight.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	var chunk streamChunk
	if err := s.conn.ReadJSON(&chunk); err != nil {
		s.done = true
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		return "", fmt.Errorf("reading stream frame: %w", err)
	}

	if chunk.FinishReason == "stop" {
		s.done = true
		if chunk.Message == "" {
			return "", io.EOF
		}
		return chunk.Message, nil
	}
	return chunk.Message, nil
}

// Close releases the underlying connection. It is safe to call after Next
// returned io.EOF, and required when abandoning the stream early.
func (s *Stream) Close() error {
	return s.conn.Close()
}
