package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/logging"
	"github.com/eaili5/eaili5/internal/ws"
)

// fakeConn is a scriptable transport. ReadMessage blocks on a channel
// so the read loop stays parked; tests drive the state machine through
// handleFrame directly.
type fakeConn struct {
	mu       sync.Mutex
	written  []Frame
	writeErr error
	inbox    chan []byte
	closed   bool
	normal   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte)}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	msg, ok := <-f.inbox
	if !ok {
		return nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
	return msg, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v.(Frame))
	return nil
}

func (f *fakeConn) Close(normal bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.normal = normal
		close(f.inbox)
	}
	return nil
}

func (f *fakeConn) sentFrames() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.written))
	copy(out, f.written)
	return out
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context, string) (ws.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// recorder collects callback invocations.
type recorder struct {
	mu        sync.Mutex
	chunks    []string
	statuses  []domain.AgentActivity
	completes []domain.TurnResult
	errs      []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(_, chunk string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.chunks = append(r.chunks, chunk)
		},
		OnStatus: func(a domain.AgentActivity) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, a)
		},
		OnComplete: func(_ string, res domain.TurnResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, res)
		},
		OnError: func(_ string, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func testLog() *logging.Logger { return logging.New(io.Discard, "silent") }

func connectedClient(t *testing.T) (*Client, *fakeConn, *recorder) {
	t.Helper()
	conn := newFakeConn()
	rec := &recorder{}
	c := NewClient(&fakeDialer{conn: conn}, "ws://test/ws/chat", rec.callbacks(), testLog())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c, conn, rec
}

func TestSendRejectedWithoutToken(t *testing.T) {
	c, _, _ := connectedClient(t)
	_, err := c.Send("what is a rug pull?", "anonymous", "", 2)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSendRejectedWhenDisconnected(t *testing.T) {
	rec := &recorder{}
	c := NewClient(&fakeDialer{conn: newFakeConn()}, "ws://test/ws/chat", rec.callbacks(), testLog())
	_, err := c.Send("hi", "anonymous", "sess-1", 2)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendWhileInFlightIsNoOp(t *testing.T) {
	c, conn, _ := connectedClient(t)

	turnID, err := c.Send("first", "anonymous", "sess-1", 2)
	require.NoError(t, err)

	histBefore := c.History()
	_, err = c.Send("second", "anonymous", "sess-1", 2)
	assert.ErrorIs(t, err, ErrTurnInFlight)

	// State and buffers unchanged: still one outbound frame, history intact.
	assert.Len(t, conn.sentFrames(), 1)
	assert.Equal(t, histBefore, c.History())
	assert.Equal(t, turnID, conn.sentFrames()[0].TurnID)
}

func TestChunksAssembleInDeliveryOrder(t *testing.T) {
	c, _, rec := connectedClient(t)

	turnID, err := c.Send("explain liquidity pools", "anonymous", "sess-1", 2)
	require.NoError(t, err)

	chunks := []string{"A liquidity pool ", "is a pot of tokens ", "people trade against."}
	for _, chunk := range chunks {
		c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turnID, Chunk: chunk})
	}
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turnID})

	require.Len(t, rec.completes, 1)
	assert.Equal(t, "A liquidity pool is a pot of tokens people trade against.", rec.completes[0].Content)
	assert.Equal(t, chunks, rec.chunks)

	hist := c.History()
	require.Len(t, hist, 2)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
	assert.Equal(t, domain.RoleAssistant, hist[1].Role)
	assert.Equal(t, rec.completes[0].Content, hist[1].Content)
}

func TestLateChunkForSupersededTurnIgnored(t *testing.T) {
	c, _, rec := connectedClient(t)

	turn1, err := c.Send("first question", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turn1, Chunk: "partial"})
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turn1})

	turn2, err := c.Send("second question", "anonymous", "sess-1", 2)
	require.NoError(t, err)

	// A straggler from turn 1 arrives mid-turn-2.
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turn1, Chunk: "stale"})
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turn2, Chunk: "fresh"})
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turn2})

	require.Len(t, rec.completes, 2)
	assert.Equal(t, "fresh", rec.completes[1].Content)
	assert.NotContains(t, rec.chunks, "stale")
}

func TestStatusEventsFeedBoundedActivityLog(t *testing.T) {
	c, _, rec := connectedClient(t)

	turnID, err := c.Send("analyze BONK", "anonymous", "sess-1", 3)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		c.handleFrame(Frame{
			Type: FrameTypeAIResponse, Event: EventStatus, TurnID: turnID,
			Agent: "researcher", Status: "scanning on-chain data",
		})
	}

	assert.Len(t, rec.statuses, 7, "every status surfaced to the callback")
	assert.Len(t, c.Activity(), 5, "log bounded to last 5")

	// Status events never touch the text buffer.
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turnID})
	assert.Equal(t, "", rec.completes[0].Content)
}

func TestCompleteClearsActivityAndReleasesGuard(t *testing.T) {
	c, _, rec := connectedClient(t)

	turnID, err := c.Send("hello", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventStatus, TurnID: turnID, Agent: "explainer", Status: "writing"})
	c.handleFrame(Frame{
		Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turnID,
		Suggestions: []string{"What is slippage?"}, LearningLevel: 3,
	})

	assert.Empty(t, c.Activity(), "activity cleared on complete")
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, rec.completes, 1)
	assert.Equal(t, []string{"What is slippage?"}, rec.completes[0].Suggestions)
	assert.Equal(t, 3, rec.completes[0].LearningLevel)

	// Guard released: a new turn may start.
	_, err = c.Send("next", "anonymous", "sess-1", 2)
	assert.NoError(t, err)
}

func TestCompleteWithoutStatusEventsStillUnblocks(t *testing.T) {
	c, _, _ := connectedClient(t)

	turnID, err := c.Send("hi", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turnID})

	assert.Empty(t, c.Activity())
	_, err = c.Send("again", "anonymous", "sess-1", 2)
	assert.NoError(t, err)
}

func TestErrorFrameAbortsWithoutRollback(t *testing.T) {
	c, _, rec := connectedClient(t)

	turnID, err := c.Send("hello", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turnID, Chunk: "partial answer"})
	c.handleFrame(Frame{Type: FrameTypeError, TurnID: turnID, Error: "backend exploded"})

	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0].Error(), "backend exploded")

	// Partial buffer remains in history.
	hist := c.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "partial answer", hist[1].Content)

	// Guard released.
	_, err = c.Send("retry", "anonymous", "sess-1", 2)
	assert.NoError(t, err)
}

func TestFramesWithoutTurnIDAttributedToCurrentTurn(t *testing.T) {
	c, _, rec := connectedClient(t)

	_, err := c.Send("hello", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, Chunk: "no id chunk"})
	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete})

	require.Len(t, rec.completes, 1)
	assert.Equal(t, "no id chunk", rec.completes[0].Content)
}

func TestSendWriteFailureReleasesGuard(t *testing.T) {
	c, conn, _ := connectedClient(t)
	conn.writeErr = errors.New("broken pipe")

	_, err := c.Send("hello", "anonymous", "sess-1", 2)
	require.Error(t, err)

	conn.writeErr = nil
	_, err = c.Send("hello again", "anonymous", "sess-1", 2)
	assert.NoError(t, err)
}

func TestTransportErrorAbortsInFlightTurn(t *testing.T) {
	c, _, rec := connectedClient(t)

	_, err := c.Send("hello", "anonymous", "sess-1", 2)
	require.NoError(t, err)

	c.handleTransportError(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})

	require.Len(t, rec.errs, 1)
	assert.False(t, c.Connected())
	assert.Equal(t, StateIdle, c.State())
}

func TestOutboundFrameShape(t *testing.T) {
	c, conn, _ := connectedClient(t)

	turnID, err := c.Send("what is staking?", "7xKX", "sess-9", 4)
	require.NoError(t, err)

	frames := conn.sentFrames()
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Equal(t, FrameTypeChat, f.Type)
	assert.Equal(t, turnID, f.TurnID)
	assert.Equal(t, "what is staking?", f.Message)
	assert.Equal(t, "7xKX", f.Identity)
	assert.Equal(t, "sess-9", f.SessionToken)
	assert.Equal(t, 4, f.LearningLevel)
}

func TestStreamingStateTransitions(t *testing.T) {
	c, _, _ := connectedClient(t)
	assert.Equal(t, StateIdle, c.State())

	turnID, err := c.Send("hi", "anonymous", "sess-1", 2)
	require.NoError(t, err)
	assert.Equal(t, StateSending, c.State())

	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventChunk, TurnID: turnID, Chunk: "x"})
	assert.Equal(t, StateStreaming, c.State())

	c.handleFrame(Frame{Type: FrameTypeAIResponse, Event: EventComplete, TurnID: turnID})
	assert.Equal(t, StateIdle, c.State())
}
