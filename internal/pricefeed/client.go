// Package pricefeed maintains the real-time token price channel. It
// merges partial updates into an address-keyed token book and
// reconnects with capped exponential backoff when the transport drops
// abnormally.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/logging"
	"github.com/eaili5/eaili5/internal/ws"
)

// ConnState is the connection state machine position.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateBackoff      ConnState = "backoff"
)

// TimerFunc schedules fn after d and returns a cancel function. The
// default is time.AfterFunc; tests inject a manual timer.
type TimerFunc func(d time.Duration, fn func()) (cancel func())

func stdTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Config tunes the feed connection.
type Config struct {
	Endpoint       string
	InitialBackoff time.Duration // first reconnect delay, doubled per failure
	MaxBackoff     time.Duration // delay cap
	MaxAttempts    int           // consecutive failures before giving up
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// Callbacks deliver feed events. All fire on feed goroutines; nil
// callbacks are skipped.
type Callbacks struct {
	OnUpdate      func(snap domain.TokenSnapshot)
	OnStateChange func(state ConnState)
	OnTerminal    func(err error) // reconnect abandoned
}

// Client is the real-time token price client. It owns one transport
// connection and is the only writer of its token book; consumers read
// snapshot copies.
type Client struct {
	cfg    Config
	dialer ws.Dialer
	timer  TimerFunc
	book   *domain.TokenBook
	cb     Callbacks
	log    *logging.Logger

	mu          sync.Mutex
	ctx         context.Context
	state       ConnState
	conn        ws.Conn
	failures    int
	closing     bool
	subs        map[string]bool // targeted topic subscriptions, replayed on reconnect
	cancelTimer func()
}

// NewClient creates a price feed client.
func NewClient(cfg Config, dialer ws.Dialer, cb Callbacks, log *logging.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		dialer: dialer,
		timer:  stdTimer,
		book:   domain.NewTokenBook(),
		cb:     cb,
		log:    log.Sub("pricefeed"),
		state:  StateDisconnected,
		subs:   make(map[string]bool),
	}
}

// Book returns the token book. It is safe for concurrent reads.
func (c *Client) Book() *domain.TokenBook { return c.book }

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection state machine. A dial failure is
// returned but also enters the backoff path, so callers may ignore it
// and rely on OnStateChange/OnTerminal.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected || c.closing {
		c.mu.Unlock()
		return fmt.Errorf("pricefeed: already started")
	}
	c.ctx = ctx
	c.failures = 0
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.notifyState(changed, StateConnecting)

	return c.dialAndRun()
}

// Close tears the connection down with a normal closure code so the
// reconnect path is not triggered.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	conn := c.conn
	c.conn = nil
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
	c.notifyState(changed, StateDisconnected)

	if conn == nil {
		return nil
	}
	return conn.Close(true)
}

// Subscribe asks the feed for targeted updates on the given addresses.
// The baseline feed needs no subscription; this narrows interest.
func (c *Client) Subscribe(addresses ...string) error {
	return c.sendTopics(FrameTypeSubscribe, addresses, true)
}

// Unsubscribe removes targeted subscriptions.
func (c *Client) Unsubscribe(addresses ...string) error {
	return c.sendTopics(FrameTypeUnsubscribe, addresses, false)
}

func (c *Client) sendTopics(typ string, addresses []string, subscribed bool) error {
	c.mu.Lock()
	conn := c.conn
	for _, a := range addresses {
		if subscribed {
			c.subs[a] = true
		} else {
			delete(c.subs, a)
		}
	}
	c.mu.Unlock()

	if conn == nil {
		return ws.ErrConnClosed
	}
	return conn.WriteJSON(Frame{Type: typ, Addresses: addresses})
}

// dialAndRun attempts one connection and starts the read loop.
func (c *Client) dialAndRun() error {
	conn, err := c.dialer.Dial(c.ctx, c.cfg.Endpoint)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("dial failed")
		c.onFailure()
		return fmt.Errorf("pricefeed: dial %s: %w", c.cfg.Endpoint, err)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return conn.Close(true)
	}
	c.conn = conn
	c.failures = 0 // successful open resets the attempt counter
	changed := c.setStateLocked(StateConnected)
	resub := make([]string, 0, len(c.subs))
	for a := range c.subs {
		resub = append(resub, a)
	}
	c.mu.Unlock()
	c.notifyState(changed, StateConnected)

	c.log.Info().Str("endpoint", c.cfg.Endpoint).Msg("price feed connected")
	if len(resub) > 0 {
		if err := conn.WriteJSON(Frame{Type: FrameTypeSubscribe, Addresses: resub}); err != nil {
			c.log.Warn().Err(err).Msg("resubscribe failed")
		}
	}

	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn ws.Conn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
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

func (c *Client) handleReadError(err error) {
	c.mu.Lock()
	closing := c.closing
	c.conn = nil
	c.mu.Unlock()

	if closing || ws.IsNormalClosure(err) {
		c.mu.Lock()
		changed := c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		c.notifyState(changed, StateDisconnected)
		c.log.Info().Msg("price feed closed")
		return
	}

	c.log.Warn().Err(err).Int("closeCode", ws.CloseCode(err)).Msg("price feed dropped")
	c.onFailure()
}

// onFailure advances the backoff state machine after a dial failure or
// abnormal closure.
func (c *Client) onFailure() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}

	c.failures++
	if c.failures >= c.cfg.MaxAttempts {
		changed := c.setStateLocked(StateDisconnected)
		failures := c.failures
		c.mu.Unlock()
		c.notifyState(changed, StateDisconnected)

		err := fmt.Errorf("pricefeed: failed to reconnect after %d attempts", failures)
		c.log.Error().Int("attempts", failures).Msg("failed to reconnect, giving up")
		if c.cb.OnTerminal != nil {
			c.cb.OnTerminal(err)
		}
		return
	}

	delay := backoffDelay(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.failures)
	changed := c.setStateLocked(StateBackoff)
	c.log.Info().Dur("delay", delay).Int("failures", c.failures).Msg("scheduling reconnect")
	c.cancelTimer = c.timer(delay, func() {
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return
		}
		c.cancelTimer = nil
		reconnecting := c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		c.notifyState(reconnecting, StateConnecting)
		_ = c.dialAndRun()
	})
	c.mu.Unlock()
	c.notifyState(changed, StateBackoff)
}

// backoffDelay returns the delay before attempt failures+1: the initial
// delay doubled per prior failure, capped.
func backoffDelay(initial, max time.Duration, failures int) time.Duration {
	d := initial
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// setStateLocked records a transition and reports whether it changed
// anything. Callers fire notifyState after releasing the lock so the
// callback may safely call back into the client.
func (c *Client) setStateLocked(s ConnState) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Client) notifyState(changed bool, s ConnState) {
	if changed && c.cb.OnStateChange != nil {
		c.cb.OnStateChange(s)
	}
}

// handleFrame merges one inbound frame into the book.
func (c *Client) handleFrame(f Frame) {
	switch f.Type {
	case FrameTypeTokenUpdate:
		if f.Token == nil {
			return
		}
		c.apply(*f.Token)
	case FrameTypePriceUpdate:
		for _, u := range f.Tokens {
			c.apply(u)
		}
	default:
		c.log.Debug().Str("type", f.Type).Msg("ignoring unknown frame type")
	}
}

func (c *Client) apply(u domain.TokenUpdate) {
	if u.Address == "" {
		return
	}
	snap := c.book.Apply(u)
	if c.cb.OnUpdate != nil {
		c.cb.OnUpdate(snap)
	}
}
