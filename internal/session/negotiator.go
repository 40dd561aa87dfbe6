// Package session negotiates and caches backend session tokens. The
// negotiator is an explicitly constructed object handed to its users;
// there is no package-level singleton.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eaili5/eaili5/internal/logging"
)

// AnonymousIdentity is the sentinel identity for users without a wallet.
const AnonymousIdentity = "anonymous"

// Creator obtains a fresh session token for an identity. Implemented
// by the api client.
type Creator interface {
	CreateSession(ctx context.Context, identity string) (string, error)
}

// TokenStore persists negotiated tokens across process restarts.
// Implemented by the sqlite store; may be nil for ephemeral use.
type TokenStore interface {
	SaveSessionToken(identity, token string) error
	LoadSessionToken(identity string) (string, bool, error)
	DeleteSessionToken(identity string) error
}

// Negotiator caches one opaque session token per identity. Repeated
// calls with the same identity are idempotent while the cached token
// is valid; after a failure callers may receive a different token on
// retry.
type Negotiator struct {
	creator Creator
	store   TokenStore
	log     *logging.Logger

	// RetryDelay is the fixed pause before the single automatic retry
	// in GetOrCreateWithRetry. Overridable in tests.
	RetryDelay time.Duration

	mu     sync.Mutex
	tokens map[string]string // identity → token
}

// NewNegotiator creates a session negotiator. store may be nil.
func NewNegotiator(creator Creator, store TokenStore, log *logging.Logger) *Negotiator {
	return &Negotiator{
		creator:    creator,
		store:      store,
		log:        log.Sub("session"),
		RetryDelay: time.Second,
		tokens:     make(map[string]string),
	}
}

// GetOrCreate returns the cached token for identity, negotiating a new
// one with the backend when none is cached.
func (n *Negotiator) GetOrCreate(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		identity = AnonymousIdentity
	}

	n.mu.Lock()
	if tok, ok := n.tokens[identity]; ok && tok != "" {
		n.mu.Unlock()
		return tok, nil
	}
	n.mu.Unlock()

	if n.store != nil {
		if tok, ok, err := n.store.LoadSessionToken(identity); err == nil && ok && tok != "" {
			n.cache(identity, tok)
			return tok, nil
		}
	}

	tok, err := n.creator.CreateSession(ctx, identity)
	if err != nil {
		return "", err
	}

	n.cache(identity, tok)
	if n.store != nil {
		if err := n.store.SaveSessionToken(identity, tok); err != nil {
			n.log.Warn().Err(err).Str("identity", identity).Msg("failed to persist session token")
		}
	}
	n.log.Info().Str("identity", identity).Msg("session negotiated")
	return tok, nil
}

// GetOrCreateWithRetry is GetOrCreate with a single automatic retry
// after a fixed delay, matching what the dashboard UI does on first
// load.
func (n *Negotiator) GetOrCreateWithRetry(ctx context.Context, identity string) (string, error) {
	tok, err := n.GetOrCreate(ctx, identity)
	if err == nil {
		return tok, nil
	}

	n.log.Warn().Err(err).Str("identity", identity).Msg("session negotiation failed, retrying once")
	select {
	case <-time.After(n.RetryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return n.GetOrCreate(ctx, identity)
}

// Refresh drops the cached token and negotiates a fresh one.
func (n *Negotiator) Refresh(ctx context.Context, identity string) (string, error) {
	n.Invalidate(identity)
	return n.GetOrCreate(ctx, identity)
}

// Invalidate clears the cached (and persisted) token for identity,
// e.g. on logout or when the backend reports it expired.
func (n *Negotiator) Invalidate(identity string) {
	if identity == "" {
		identity = AnonymousIdentity
	}
	n.mu.Lock()
	delete(n.tokens, identity)
	n.mu.Unlock()
	if n.store != nil {
		_ = n.store.DeleteSessionToken(identity)
	}
}

func (n *Negotiator) cache(identity, token string) {
	n.mu.Lock()
	n.tokens[identity] = token
	n.mu.Unlock()
}

// sessionErrorMarkers are the substrings the backend uses in free-text
// errors about missing, expired, or invalid sessions.
var sessionErrorMarkers = []string{
	"session",
	"token",
	"unauthorized",
	"expired",
}

// IsSessionError classifies an error as a session problem by substring
// match on its text. The backend defines no structured codes.
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithSessionRetry runs op with a valid token. If op fails with a
// session error the token is refreshed and op retried exactly once;
// any other error is returned as-is.
func (n *Negotiator) WithSessionRetry(ctx context.Context, identity string, op func(token string) error) error {
	tok, err := n.GetOrCreate(ctx, identity)
	if err != nil {
		return err
	}

	err = op(tok)
	if err == nil || !IsSessionError(err) {
		return err
	}

	n.log.Info().Str("identity", identity).Msg("session error, refreshing and retrying")
	tok, rerr := n.Refresh(ctx, identity)
	if rerr != nil {
		return rerr
	}
	return op(tok)
}
