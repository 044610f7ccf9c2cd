package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store backed by a local SQLite database, for single-host
// and development deployments where Postgres is overkill.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.ragcore/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragcore")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    profile_id       TEXT    NOT NULL,
    conversation_id  TEXT    NOT NULL DEFAULT '',
    role             TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content          TEXT    NOT NULL,
    created_at       INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_messages_profile_created
    ON messages (profile_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists a single message.
func (s *SQLiteStore) Append(ctx context.Context, msg Message) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	const q = `INSERT INTO messages (profile_id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, msg.ProfileID, msg.ConversationID, string(msg.Role), msg.Content, created.Unix()); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the profile, ordered
// oldest-first. Uses a subquery to select the tail then re-order for injection.
func (s *SQLiteStore) Recent(ctx context.Context, profileID string, n int) ([]Message, error) {
	const q = `
SELECT profile_id, conversation_id, role, content, created_at FROM (
    SELECT id, profile_id, conversation_id, role, content, created_at
    FROM   messages
    WHERE  profile_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, profileID, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&m.ProfileID, &m.ConversationID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return msgs, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
