package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLog_BoundedToFive(t *testing.T) {
	var log ActivityLog
	for i := 0; i < 8; i++ {
		log.Add(AgentActivity{
			Agent:  fmt.Sprintf("agent-%d", i),
			Status: "working",
		})
	}

	require.Equal(t, 5, log.Len())
	entries := log.Entries()
	assert.Equal(t, "agent-3", entries[0].Agent, "oldest retained entry")
	assert.Equal(t, "agent-7", entries[4].Agent, "newest entry")
}

func TestActivityLog_Clear(t *testing.T) {
	var log ActivityLog
	log.Add(AgentActivity{Agent: "researcher", Status: "searching"})
	log.Clear()
	assert.Zero(t, log.Len())
	assert.Empty(t, log.Entries())
}

func TestActivityLog_EntriesReturnsCopy(t *testing.T) {
	var log ActivityLog
	log.Add(AgentActivity{Agent: "explainer", Status: "thinking"})

	entries := log.Entries()
	entries[0].Agent = "mutated"

	assert.Equal(t, "explainer", log.Entries()[0].Agent)
}

func TestTokenBook_ApplyMergesFieldWise(t *testing.T) {
	book := NewTokenBook()
	book.Seed(TokenSnapshot{
		Address:     "0xabc",
		Symbol:      "BONK",
		Name:        "Bonk",
		Price:       decimal.RequireFromString("0.000021"),
		Change24h:   3.4,
		Volume24h:   decimal.RequireFromString("1250000"),
		SafetyScore: 72,
	})

	newPrice := decimal.RequireFromString("0.000025")
	merged := book.Apply(TokenUpdate{Address: "0xabc", Price: &newPrice})

	assert.True(t, merged.Price.Equal(newPrice))
	assert.Equal(t, "BONK", merged.Symbol, "omitted field preserved")
	assert.Equal(t, 3.4, merged.Change24h, "omitted field preserved")
	assert.True(t, merged.Volume24h.Equal(decimal.RequireFromString("1250000")))
	assert.Equal(t, 72, merged.SafetyScore)
}

func TestTokenBook_ApplyUnknownAddressCreatesEntry(t *testing.T) {
	book := NewTokenBook()
	price := decimal.RequireFromString("1.5")
	book.Apply(TokenUpdate{Address: "0xnew", Price: &price})

	snap, ok := book.Get("0xnew")
	require.True(t, ok)
	assert.True(t, snap.Price.Equal(price))
	assert.Equal(t, "0xnew", snap.Address)
}

func TestTokenBook_UpdateTimestamp(t *testing.T) {
	book := NewTokenBook()
	ts := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	price := decimal.NewFromInt(2)
	snap := book.Apply(TokenUpdate{Address: "0xabc", Price: &price, Timestamp: ts})
	assert.Equal(t, ts, snap.UpdatedAt)

	// Without a frame timestamp the book stamps arrival time.
	snap = book.Apply(TokenUpdate{Address: "0xabc", Price: &price})
	assert.WithinDuration(t, time.Now(), snap.UpdatedAt, time.Minute)
}

func TestTokenBook_AllReturnsSnapshots(t *testing.T) {
	book := NewTokenBook()
	book.Seed(TokenSnapshot{Address: "0xa", Symbol: "AAA"})
	book.Seed(TokenSnapshot{Address: "0xb", Symbol: "BBB"})

	all := book.All()
	require.Len(t, all, 2)

	// Mutating the returned slice must not affect the book.
	all[0].Symbol = "ZZZ"
	found := 0
	for _, snap := range book.All() {
		if snap.Symbol == "AAA" || snap.Symbol == "BBB" {
			found++
		}
	}
	assert.Equal(t, 2, found)
}
