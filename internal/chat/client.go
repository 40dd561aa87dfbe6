// Package chat implements the streaming chat client. One turn at a
// time: a user message goes out, ordered text chunks and out-of-band
// status events come back, and a terminal complete event seals the
// turn.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/logging"
	"github.com/eaili5/eaili5/internal/ws"
)

// Sentinel errors for rejected sends.
var (
	ErrTurnInFlight = errors.New("chat: a turn is already in flight")
	ErrNoSession    = errors.New("chat: session token is empty")
	ErrNotConnected = errors.New("chat: transport is not connected")
)

// State of the current turn.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
)

// Callbacks deliver turn progress to the caller. All callbacks fire on
// the read loop goroutine; nil callbacks are skipped.
type Callbacks struct {
	OnChunk    func(turnID, chunk string)
	OnStatus   func(activity domain.AgentActivity)
	OnComplete func(turnID string, result domain.TurnResult)
	OnError    func(turnID string, err error)
}

// Client is the streaming chat client. It owns one transport
// connection exclusively; state transitions happen under a single
// mutex in response to transport frames and Send calls.
type Client struct {
	dialer   ws.Dialer
	endpoint string
	cb       Callbacks
	log      *logging.Logger

	mu        sync.Mutex
	conn      ws.Conn
	connected bool

	// Per-turn state. turnID identifies the in-flight turn; chunks
	// carrying a different turn id are late arrivals of a superseded
	// turn and are dropped.
	inFlight bool
	state    State
	turnID   string
	buf      strings.Builder
	msgIdx   int // index into history of the streaming assistant message, -1 when none
	activity domain.ActivityLog
	history  []domain.ChatMessage
}

// NewClient creates a chat client for the given WebSocket endpoint.
func NewClient(dialer ws.Dialer, endpoint string, cb Callbacks, log *logging.Logger) *Client {
	return &Client{
		dialer:   dialer,
		endpoint: endpoint,
		cb:       cb,
		log:      log.Sub("chat"),
		state:    StateIdle,
		msgIdx:   -1,
	}
}

// Connect dials the chat channel and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		return fmt.Errorf("chat: dial %s: %w", c.endpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Info().Str("endpoint", c.endpoint).Msg("chat channel connected")
	go c.readLoop(conn)
	return nil
}

// Close tears down the transport with a normal closure.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(true)
}

// Connected reports the transport status flag.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// State returns the current turn state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send starts a new turn. It is rejected while a turn is in flight,
// when the session token is empty, or when the transport is down.
// Returns the turn id on success.
func (c *Client) Send(message, identity, sessionToken string, learningLevel int) (string, error) {
	if sessionToken == "" {
		return "", ErrNoSession
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrTurnInFlight
	}

	turnID := uuid.New().String()
	c.inFlight = true
	c.state = StateSending
	c.turnID = turnID
	c.buf.Reset()
	c.msgIdx = -1
	c.activity.Clear()
	c.history = append(c.history, domain.ChatMessage{
		Role:      domain.RoleUser,
		Content:   message,
		Timestamp: time.Now(),
	})
	conn := c.conn
	c.mu.Unlock()

	frame := NewChatFrame(turnID, message, identity, sessionToken, learningLevel)
	if err := conn.WriteJSON(frame); err != nil {
		c.mu.Lock()
		c.inFlight = false
		c.state = StateIdle
		c.mu.Unlock()
		return "", fmt.Errorf("chat: send turn: %w", err)
	}

	c.log.Debug().Str("turnId", turnID).Str("identity", identity).Msg("turn sent")
	return turnID, nil
}

// History returns a copy of the conversation so far, including the
// partially streamed assistant message of an in-flight turn.
func (c *Client) History() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// Activity returns the retained sub-agent activities of the current turn.
func (c *Client) Activity() []domain.AgentActivity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity.Entries()
}

// readLoop delivers inbound frames until the transport fails.
func (c *Client) readLoop(conn ws.Conn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportError(err)
			return
		}

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.handleFrame(f)
	}
}

// handleTransportError flags the connection down and aborts any
// in-flight turn. The partial buffer stays in history.
func (c *Client) handleTransportError(err error) {
	c.mu.Lock()
	c.connected = false
	wasInFlight := c.inFlight
	turnID := c.turnID
	c.inFlight = false
	c.state = StateIdle
	c.msgIdx = -1
	c.mu.Unlock()

	if ws.IsNormalClosure(err) {
		c.log.Info().Msg("chat channel closed")
	} else {
		c.log.Warn().Err(err).Msg("chat transport failed")
	}
	if wasInFlight && c.cb.OnError != nil {
		c.cb.OnError(turnID, fmt.Errorf("chat: transport: %w", err))
	}
}

// handleFrame applies one inbound frame to the turn state machine.
func (c *Client) handleFrame(f Frame) {
	switch f.Type {
	case FrameTypeConnection:
		c.log.Debug().Str("status", f.Status).Msg("connection status")

	case FrameTypeAIResponse:
		switch f.Event {
		case EventChunk:
			c.applyChunk(f)
		case EventStatus:
			c.applyStatus(f)
		case EventComplete:
			c.applyComplete(f)
		default:
			c.log.Warn().Str("event", f.Event).Msg("unknown ai_response event")
		}

	case FrameTypeError:
		c.applyError(f)

	default:
		c.log.Warn().Str("type", f.Type).Msg("unknown frame type")
	}
}

// currentTurnLocked reports whether a frame belongs to the in-flight turn.
// Frames without a turn id are attributed to it; frames carrying a
// different id belong to a superseded turn and are dropped.
func (c *Client) currentTurnLocked(f Frame) bool {
	if !c.inFlight {
		return false
	}
	return f.TurnID == "" || f.TurnID == c.turnID
}

func (c *Client) applyChunk(f Frame) {
	c.mu.Lock()
	if !c.currentTurnLocked(f) {
		c.mu.Unlock()
		c.log.Debug().Str("turnId", f.TurnID).Msg("dropping chunk for superseded turn")
		return
	}

	c.state = StateStreaming
	c.buf.WriteString(f.Chunk)

	if c.msgIdx < 0 {
		c.history = append(c.history, domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Agent:     f.Agent,
			Timestamp: time.Now(),
		})
		c.msgIdx = len(c.history) - 1
	}
	c.history[c.msgIdx].Content = c.buf.String()
	turnID := c.turnID
	c.mu.Unlock()

	if c.cb.OnChunk != nil {
		c.cb.OnChunk(turnID, f.Chunk)
	}
}

func (c *Client) applyStatus(f Frame) {
	activity := domain.AgentActivity{
		Agent:     f.Agent,
		Status:    f.Status,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	if !c.currentTurnLocked(f) {
		c.mu.Unlock()
		return
	}
	c.activity.Add(activity)
	c.mu.Unlock()

	if c.cb.OnStatus != nil {
		c.cb.OnStatus(activity)
	}
}

func (c *Client) applyComplete(f Frame) {
	c.mu.Lock()
	if !c.currentTurnLocked(f) {
		c.mu.Unlock()
		return
	}

	turnID := c.turnID
	result := domain.TurnResult{
		Content:       c.buf.String(),
		Suggestions:   f.Suggestions,
		LearningLevel: f.LearningLevel,
	}

	// Seal the turn: buffer immutable, activity discarded, guard released.
	c.inFlight = false
	c.state = StateIdle
	c.msgIdx = -1
	c.activity.Clear()
	c.mu.Unlock()

	c.log.Debug().Str("turnId", turnID).Int("suggestions", len(result.Suggestions)).Msg("turn complete")
	if c.cb.OnComplete != nil {
		c.cb.OnComplete(turnID, result)
	}
}

func (c *Client) applyError(f Frame) {
	c.mu.Lock()
	if !c.currentTurnLocked(f) {
		c.mu.Unlock()
		return
	}

	turnID := c.turnID
	// Abort without rollback: the partial buffer stays in history.
	c.inFlight = false
	c.state = StateIdle
	c.msgIdx = -1
	c.mu.Unlock()

	c.log.Warn().Str("turnId", turnID).Str("error", f.Error).Msg("turn failed")
	if c.cb.OnError != nil {
		c.cb.OnError(turnID, errors.New(f.Error))
	}
}
