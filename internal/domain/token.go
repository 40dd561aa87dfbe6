package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TokenSnapshot is the full view of a token. The base snapshot comes
// from a REST list fetch; real-time updates overlay individual fields.
// Address uniquely identifies a token across both sources.
type TokenSnapshot struct {
	Address     string          `json:"address"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Change24h   float64         `json:"change24h"`
	Volume24h   decimal.Decimal `json:"volume24h"`
	MarketCap   decimal.Decimal `json:"marketCap"`
	SafetyScore int             `json:"safetyScore"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TokenUpdate is a partial real-time update. Nil fields were not
// carried by the frame and must not clear the existing values.
type TokenUpdate struct {
	Address     string           `json:"address"`
	Symbol      *string          `json:"symbol,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Change24h   *float64         `json:"change24h,omitempty"`
	Volume24h   *decimal.Decimal `json:"volume24h,omitempty"`
	MarketCap   *decimal.Decimal `json:"marketCap,omitempty"`
	SafetyScore *int             `json:"safetyScore,omitempty"`
	Timestamp   time.Time        `json:"timestamp,omitempty"`
}

// TokenBook is the address-keyed map of current token state. It is
// mutated only by the price feed client; readers always receive
// copies and may mutate them freely.
type TokenBook struct {
	mu     sync.RWMutex
	tokens map[string]TokenSnapshot
}

// NewTokenBook creates an empty token book.
func NewTokenBook() *TokenBook {
	return &TokenBook{tokens: make(map[string]TokenSnapshot)}
}

// Seed replaces the entry for a token with a full snapshot.
func (b *TokenBook) Seed(snap TokenSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[snap.Address] = snap
}

// Apply merges a partial update into the book field by field. Fields
// the update omits keep their current values. Returns the merged
// snapshot.
func (b *TokenBook) Apply(u TokenUpdate) TokenSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.tokens[u.Address]
	snap.Address = u.Address
	if u.Symbol != nil {
		snap.Symbol = *u.Symbol
	}
	if u.Name != nil {
		snap.Name = *u.Name
	}
	if u.Price != nil {
		snap.Price = *u.Price
	}
	if u.Change24h != nil {
		snap.Change24h = *u.Change24h
	}
	if u.Volume24h != nil {
		snap.Volume24h = *u.Volume24h
	}
	if u.MarketCap != nil {
		snap.MarketCap = *u.MarketCap
	}
	if u.SafetyScore != nil {
		snap.SafetyScore = *u.SafetyScore
	}
	if !u.Timestamp.IsZero() {
		snap.UpdatedAt = u.Timestamp
	} else {
		snap.UpdatedAt = time.Now()
	}
	b.tokens[u.Address] = snap
	return snap
}

// Get returns the snapshot for an address.
func (b *TokenBook) Get(address string) (TokenSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.tokens[address]
	return snap, ok
}

// All returns a copy of every snapshot in the book.
func (b *TokenBook) All() []TokenSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TokenSnapshot, 0, len(b.tokens))
	for _, snap := range b.tokens {
		out = append(out, snap)
	}
	return out
}

// Len returns the number of tracked tokens.
func (b *TokenBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tokens)
}
