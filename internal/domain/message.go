// Package domain defines the shared entities of the EAILI5 client:
// chat messages, agent activity, and token market data.
package domain

import "time"

// Role constants for chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a single turn entry in a conversation.
// Content is mutable while the turn streams and sealed once the
// terminal event for the turn arrives.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentActivity records which backend sub-agent is currently working
// on a turn. Activities are transient and discarded at the start of
// the next turn.
type AgentActivity struct {
	Agent     string    `json:"agent"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// activityCap bounds how many activity entries are kept per turn.
const activityCap = 5

// ActivityLog is a bounded ring of the most recent agent activities
// for the current turn. The zero value is ready to use.
type ActivityLog struct {
	entries []AgentActivity
}

// Add appends an activity, evicting the oldest entry when full.
func (l *ActivityLog) Add(a AgentActivity) {
	l.entries = append(l.entries, a)
	if len(l.entries) > activityCap {
		l.entries = l.entries[len(l.entries)-activityCap:]
	}
}

// Entries returns a copy of the current activities, oldest first.
func (l *ActivityLog) Entries() []AgentActivity {
	out := make([]AgentActivity, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained activities.
func (l *ActivityLog) Len() int { return len(l.entries) }

// Clear discards all activities. Called when a turn completes.
func (l *ActivityLog) Clear() { l.entries = nil }

// TurnResult carries the terminal payload of a completed turn.
type TurnResult struct {
	Content       string   `json:"content"`
	Suggestions   []string `json:"suggestions,omitempty"`
	LearningLevel int      `json:"learningLevel,omitempty"`
}
