package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/logging"
	"github.com/eaili5/eaili5/internal/ws"
)

type readResult struct {
	msg []byte
	err error
}

// feedConn is a scriptable transport for the feed client.
type feedConn struct {
	mu      sync.Mutex
	written []Frame
	inbox   chan readResult
	done    chan struct{}
	once    sync.Once
	normal  bool
}

func newFeedConn() *feedConn {
	return &feedConn{
		inbox: make(chan readResult, 16),
		done:  make(chan struct{}),
	}
}

func (c *feedConn) push(t *testing.T, f Frame) {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	c.inbox <- readResult{msg: data}
}

func (c *feedConn) fail(code int) {
	c.inbox <- readResult{err: &websocket.CloseError{Code: code}}
}

func (c *feedConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-c.inbox:
		return r.msg, r.err
	case <-c.done:
		return nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (c *feedConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v.(Frame))
	return nil
}

func (c *feedConn) Close(normal bool) error {
	c.once.Do(func() {
		c.mu.Lock()
		c.normal = normal
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *feedConn) sentFrames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.written))
	copy(out, c.written)
	return out
}

// seqDialer hands out conns (or errors) in order.
type seqDialer struct {
	mu    sync.Mutex
	conns []*feedConn
	errs  []error
	calls int
}

func (d *seqDialer) Dial(context.Context, string) (ws.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("no more conns scripted")
}

func (d *seqDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// manualTimer records scheduled callbacks for explicit firing.
type manualTimer struct {
	mu        sync.Mutex
	delays    []time.Duration
	pending   []func()
	cancelled int
}

func (m *manualTimer) fn(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancelled++
	}
}

func (m *manualTimer) scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// fireNext runs the next unfired callback.
func (m *manualTimer) fireNext(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	require.NotEmpty(t, m.pending, "no pending timer")
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	fn()
}

func (m *manualTimer) allDelays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}

type terminalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *terminalRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *terminalRecorder) terminal() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

func testLog() *logging.Logger { return logging.New(io.Discard, "silent") }

func newTestClient(dialer ws.Dialer, cb Callbacks) (*Client, *manualTimer) {
	timer := &manualTimer{}
	c := NewClient(Config{
		Endpoint:       "ws://test/ws/tokens",
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		MaxAttempts:    5,
	}, dialer, cb, testLog())
	c.timer = timer.fn
	return c, timer
}

func waitState(t *testing.T, c *Client, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		2*time.Second, time.Millisecond, "want state %s", want)
}

func TestUpdatesMergeIntoBook(t *testing.T) {
	conn := newFeedConn()
	var mu sync.Mutex
	var updates []domain.TokenSnapshot
	c, _ := newTestClient(&seqDialer{conns: []*feedConn{conn}}, Callbacks{
		OnUpdate: func(s domain.TokenSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			updates = append(updates, s)
		},
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	sym := "BONK"
	price1 := decimal.RequireFromString("0.000021")
	vol := decimal.RequireFromString("1250000")
	conn.push(t, Frame{Type: FrameTypeTokenUpdate, Token: &domain.TokenUpdate{
		Address: "0xabc", Symbol: &sym, Price: &price1, Volume24h: &vol,
	}})

	// A later partial update carries only the price.
	price2 := decimal.RequireFromString("0.000025")
	conn.push(t, Frame{Type: FrameTypeTokenUpdate, Token: &domain.TokenUpdate{
		Address: "0xabc", Price: &price2,
	}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 2
	}, 2*time.Second, time.Millisecond)

	snap, ok := c.Book().Get("0xabc")
	require.True(t, ok)
	assert.True(t, snap.Price.Equal(price2))
	assert.Equal(t, "BONK", snap.Symbol, "field omitted by the update is preserved")
	assert.True(t, snap.Volume24h.Equal(vol))
}

func TestBulkPriceUpdate(t *testing.T) {
	conn := newFeedConn()
	c, _ := newTestClient(&seqDialer{conns: []*feedConn{conn}}, Callbacks{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	p1 := decimal.NewFromInt(1)
	p2 := decimal.NewFromInt(2)
	conn.push(t, Frame{Type: FrameTypePriceUpdate, Tokens: []domain.TokenUpdate{
		{Address: "0xa", Price: &p1},
		{Address: "0xb", Price: &p2},
	}})

	require.Eventually(t, func() bool { return c.Book().Len() == 2 },
		2*time.Second, time.Millisecond)
}

func TestNormalClosureDoesNotReconnect(t *testing.T) {
	conn := newFeedConn()
	c, timer := newTestClient(&seqDialer{conns: []*feedConn{conn}}, Callbacks{})
	require.NoError(t, c.Connect(context.Background()))

	conn.fail(websocket.CloseNormalClosure)

	waitState(t, c, StateDisconnected)
	assert.Zero(t, timer.scheduled(), "no reconnect for close code 1000")
}

func TestAbnormalClosureSchedulesBackoff(t *testing.T) {
	conn := newFeedConn()
	c, timer := newTestClient(&seqDialer{conns: []*feedConn{conn}}, Callbacks{})
	require.NoError(t, c.Connect(context.Background()))

	conn.fail(websocket.CloseAbnormalClosure)

	waitState(t, c, StateBackoff)
	require.Equal(t, 1, timer.scheduled())
	assert.Equal(t, time.Second, timer.allDelays()[0])
}

func TestFiveConsecutiveFailuresSurfaceTerminalError(t *testing.T) {
	// One live conn that drops abnormally, then every reconnect dial is
	// refused. Failures only count as consecutive with no successful
	// open in between.
	refused := errors.New("connection refused")
	conn := newFeedConn()
	dialer := &seqDialer{
		conns: []*feedConn{conn},
		errs:  []error{nil, refused, refused, refused, refused},
	}
	rec := &terminalRecorder{}
	c, timer := newTestClient(dialer, Callbacks{OnTerminal: rec.record})

	require.NoError(t, c.Connect(context.Background()))

	// Failure 1: abnormal closure of the live conn.
	conn.fail(websocket.CloseAbnormalClosure)
	waitState(t, c, StateBackoff)

	// Failures 2-4: each fired reconnect dial is refused and schedules
	// the next attempt with a doubled delay.
	for i := 0; i < 3; i++ {
		timer.fireNext(t)
	}

	// Failure 5 abandons reconnecting.
	timer.fireNext(t)
	require.Eventually(t, func() bool { return len(rec.terminal()) == 1 },
		2*time.Second, time.Millisecond)

	assert.Contains(t, rec.terminal()[0].Error(), "failed to reconnect")
	assert.Equal(t, StateDisconnected, c.State())
	assert.Zero(t, timer.scheduled(), "no further reconnects")
	assert.Equal(t, 5, dialer.dialCount())
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, timer.allDelays(), "exponential backoff from 1s")
}

func TestSuccessfulOpenResetsAttemptCounter(t *testing.T) {
	// Drop, refused redial, successful redial, drop again: the last
	// failure is scheduled at the initial delay, not the escalated one.
	refused := errors.New("connection refused")
	conns := []*feedConn{newFeedConn(), nil, newFeedConn()}
	c, timer := newTestClient(&seqDialer{
		conns: conns,
		errs:  []error{nil, refused},
	}, Callbacks{})

	require.NoError(t, c.Connect(context.Background()))

	// Failure 1: abnormal closure. Failure 2: refused redial.
	conns[0].fail(websocket.CloseAbnormalClosure)
	waitState(t, c, StateBackoff)
	timer.fireNext(t)

	// The next redial succeeds, resetting the attempt counter.
	timer.fireNext(t)
	waitState(t, c, StateConnected)

	conns[2].fail(websocket.CloseAbnormalClosure)
	waitState(t, c, StateBackoff)

	delays := timer.allDelays()
	require.Len(t, delays, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, delays)
}

func TestStateChangeCallbackMayReenterClient(t *testing.T) {
	// OnStateChange fires outside the client lock, so a consumer may
	// read client state from inside it.
	var (
		c    *Client
		mu   sync.Mutex
		seen []ConnState
	)
	dialer := &seqDialer{errs: []error{errors.New("connection refused")}}
	c, _ = newTestClient(dialer, Callbacks{
		OnStateChange: func(s ConnState) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, c.State())
		},
	})

	require.Error(t, c.Connect(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2, "connecting then backoff")
	assert.Equal(t, StateBackoff, c.State())
}

func TestDialFailureEntersBackoff(t *testing.T) {
	dialer := &seqDialer{errs: []error{errors.New("connection refused")}, conns: []*feedConn{nil, newFeedConn()}}
	c, timer := newTestClient(dialer, Callbacks{})

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateBackoff, c.State())
	assert.Equal(t, 1, timer.scheduled())
}

func TestBackoffDelayCap(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(time.Second, 30*time.Second, tt.failures),
			"failures=%d", tt.failures)
	}
}

func TestCloseSendsNormalClosureAndSuppressesReconnect(t *testing.T) {
	conn := newFeedConn()
	c, timer := newTestClient(&seqDialer{conns: []*feedConn{conn}}, Callbacks{})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())

	waitState(t, c, StateDisconnected)
	conn.mu.Lock()
	normal := conn.normal
	conn.mu.Unlock()
	assert.True(t, normal, "caller disconnect uses close code 1000")
	assert.Zero(t, timer.scheduled())
}

func TestSubscribeWritesFrameAndReplaysOnReconnect(t *testing.T) {
	conns := []*feedConn{newFeedConn(), newFeedConn()}
	c, timer := newTestClient(&seqDialer{conns: conns}, Callbacks{})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Subscribe("0xabc", "0xdef"))
	frames := conns[0].sentFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, FrameTypeSubscribe, frames[0].Type)
	assert.Equal(t, []string{"0xabc", "0xdef"}, frames[0].Addresses)

	require.NoError(t, c.Unsubscribe("0xdef"))

	// Drop and reconnect: the surviving subscription is replayed.
	conns[0].fail(websocket.CloseAbnormalClosure)
	waitState(t, c, StateBackoff)
	timer.fireNext(t)
	waitState(t, c, StateConnected)

	require.Eventually(t, func() bool { return len(conns[1].sentFrames()) == 1 },
		2*time.Second, time.Millisecond)
	resub := conns[1].sentFrames()[0]
	assert.Equal(t, FrameTypeSubscribe, resub.Type)
	assert.Equal(t, []string{"0xabc"}, resub.Addresses)
}

func TestSubscribeBeforeConnect(t *testing.T) {
	c, _ := newTestClient(&seqDialer{}, Callbacks{})
	assert.ErrorIs(t, c.Subscribe("0xabc"), ws.ErrConnClosed)
}
