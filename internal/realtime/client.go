package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/voice-client/internal/audio"
	"github.com/rs/zerolog"
)

// TransportError indicates the remote session failed to open or closed
// unexpectedly. Fatal to the whole session; no automatic reconnect.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("realtime transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config holds realtime session parameters
type Config struct {
	URL              string
	APIKey           string
	Model            string
	Voice            string
	OutputSampleRate int
}

// Client is a websocket client for the remote conversational AI session.
// A single read loop feeds the Events channel, so delivery order matches
// wire order.
type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger
	events chan ServerEvent

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
}

// Dial opens the session, sends the session configuration, and starts the
// read loop.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	c := &Client{
		conn:   conn,
		logger: logger,
		events: make(chan ServerEvent, 64),
	}

	update := sessionUpdate{
		Type: "session.update",
		Session: sessionSettings{
			Model:        cfg.Model,
			Voice:        cfg.Voice,
			InputFormat:  audio.MimeTypePCM16Mono16k,
			OutputFormat: fmt.Sprintf("audio/pcm;rate=%d", cfg.OutputSampleRate),
		},
	}
	if err := c.writeJSON(update); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "configure session", Err: err}
	}

	go c.readLoop()

	return c, nil
}

// Events returns the server event channel. It closes after a terminal
// error event or Close.
func (c *Client) Events() <-chan ServerEvent {
	return c.events
}

// SendAudio submits one captured wire chunk. No acknowledgment is awaited.
func (c *Client) SendAudio(chunk audio.WireChunk) error {
	msg := audioAppend{
		Type:     "input_audio.append",
		Audio:    chunk.Payload,
		MimeType: chunk.MimeType,
	}
	if err := c.writeJSON(msg); err != nil {
		return &TransportError{Op: "send audio", Err: err}
	}
	return nil
}

// CommitAudio marks the end of the current user utterance
func (c *Client) CommitAudio() error {
	if err := c.writeJSON(audioCommit{Type: "input_audio.commit"}); err != nil {
		return &TransportError{Op: "commit audio", Err: err}
	}
	return nil
}

// Close shuts down the session connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn().Err(err).Msg("Session connection lost")
				c.events <- ServerEvent{
					Type: EventError,
					Err:  &TransportError{Op: "read", Err: err},
				}
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error().Err(err).Msg("Failed to parse server message")
			continue
		}

		switch msg.Type {
		case EventSessionCreated:
			c.events <- ServerEvent{Type: EventSessionCreated}

		case EventAudioDelta:
			c.events <- ServerEvent{Type: EventAudioDelta, Audio: msg.Audio}

		case EventTranscriptDelta:
			if msg.Transcript == nil {
				c.logger.Warn().Msg("Transcript delta without transcript payload")
				continue
			}
			c.events <- ServerEvent{Type: EventTranscriptDelta, Transcript: msg.Transcript}

		case EventTurnComplete:
			c.events <- ServerEvent{Type: EventTurnComplete}

		case EventError:
			reason := "unknown server error"
			if msg.Error != nil {
				reason = fmt.Sprintf("%s: %s", msg.Error.Code, msg.Error.Message)
			}
			c.events <- ServerEvent{
				Type: EventError,
				Err:  &TransportError{Op: "session", Err: fmt.Errorf("%s", reason)},
			}
			return

		default:
			// Unknown event types are ignored
			c.logger.Debug().Str("type", msg.Type).Msg("Ignoring server event")
		}
	}
}
