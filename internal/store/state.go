package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/eaili5/eaili5/internal/domain"
)

// Preference keys mirror the dashboard's storage keys so state survives
// the web and terminal clients interchangeably.
const (
	prefCollapsedFmt  = "eaili5_%s_collapsed"
	prefDrawerOpen    = "eaili5_tokenlist_drawer_open"
	prefLearningLevel = "eaili5_learning_level"
)

func (db *DB) setPref(key, value string) error {
	_, err := db.sql.Exec(`
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("saving pref %s: %w", key, err)
	}
	return nil
}

func (db *DB) pref(key string) (string, bool, error) {
	var value string
	err := db.sql.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading pref %s: %w", key, err)
	}
	return value, true, nil
}

// SetCollapsed persists the collapse state of a dashboard panel.
func (db *DB) SetCollapsed(componentID string, collapsed bool) error {
	return db.setPref(fmt.Sprintf(prefCollapsedFmt, componentID), strconv.FormatBool(collapsed))
}

// Collapsed reports whether a panel is collapsed. Unknown panels are expanded.
func (db *DB) Collapsed(componentID string) (bool, error) {
	v, ok, err := db.pref(fmt.Sprintf(prefCollapsedFmt, componentID))
	if err != nil || !ok {
		return false, err
	}
	return strconv.ParseBool(v)
}

// SetDrawerOpen persists the token list drawer state.
func (db *DB) SetDrawerOpen(open bool) error {
	return db.setPref(prefDrawerOpen, strconv.FormatBool(open))
}

// DrawerOpen reports whether the token list drawer is open.
func (db *DB) DrawerOpen() (bool, error) {
	v, ok, err := db.pref(prefDrawerOpen)
	if err != nil || !ok {
		return false, err
	}
	return strconv.ParseBool(v)
}

// SetLearningLevel persists the user's learning level.
func (db *DB) SetLearningLevel(level int) error {
	return db.setPref(prefLearningLevel, strconv.Itoa(level))
}

// LearningLevel returns the persisted learning level, or def when unset.
func (db *DB) LearningLevel(def int) (int, error) {
	v, ok, err := db.pref(prefLearningLevel)
	if err != nil || !ok {
		return def, err
	}
	return strconv.Atoi(v)
}

// SaveSessionToken persists a negotiated session token for an identity.
// Implements session.TokenStore.
func (db *DB) SaveSessionToken(identity, token string) error {
	_, err := db.sql.Exec(`
		INSERT INTO sessions (identity, token, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(identity) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		identity, token)
	if err != nil {
		return fmt.Errorf("saving session for %s: %w", identity, err)
	}
	return nil
}

// LoadSessionToken returns the persisted token for an identity.
func (db *DB) LoadSessionToken(identity string) (string, bool, error) {
	var token string
	err := db.sql.QueryRow("SELECT token FROM sessions WHERE identity = ?", identity).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading session for %s: %w", identity, err)
	}
	return token, true, nil
}

// DeleteSessionToken removes the persisted token for an identity.
func (db *DB) DeleteSessionToken(identity string) error {
	_, err := db.sql.Exec("DELETE FROM sessions WHERE identity = ?", identity)
	if err != nil {
		return fmt.Errorf("deleting session for %s: %w", identity, err)
	}
	return nil
}

// AppendChatMessage records one chat turn entry for an identity.
func (db *DB) AppendChatMessage(identity string, msg domain.ChatMessage) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := db.sql.Exec(`
		INSERT INTO chat_messages (identity, role, content, agent, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		identity, msg.Role, msg.Content, msg.Agent, ts.UTC().Format(time.DateTime))
	if err != nil {
		return fmt.Errorf("appending chat message: %w", err)
	}
	return nil
}

// ChatHistory returns the most recent limit messages for an identity,
// oldest first. limit <= 0 returns everything.
func (db *DB) ChatHistory(identity string, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT role, content, agent, created_at FROM (
			SELECT id, role, content, agent, created_at
			FROM chat_messages WHERE identity = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.sql.Query(query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var createdAt string
		if err := rows.Scan(&m.Role, &m.Content, &m.Agent, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.DateTime, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearChatHistory removes all stored messages for an identity.
func (db *DB) ClearChatHistory(identity string) error {
	_, err := db.sql.Exec("DELETE FROM chat_messages WHERE identity = ?", identity)
	if err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}
