package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create prefs and sessions",
		SQL: `
			CREATE TABLE prefs (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE sessions (
				identity   TEXT PRIMARY KEY,
				token      TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create chat messages",
		SQL: `
			CREATE TABLE chat_messages (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				identity   TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				agent      TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_chat_messages_identity ON chat_messages (identity, id);
		`,
	},
}
