package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// messageRow is the bun model for the messages table. The schema mirrors
// the hosted (Supabase) table so the store works against an existing
// deployment unchanged.
type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             int64     `bun:"id,pk,autoincrement"`
	ProfileID      string    `bun:"profile_id,notnull"`
	ConversationID string    `bun:"conversation_id"`
	Role           string    `bun:"role,notnull"`
	Content        string    `bun:"content,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PostgresStore is a Store backed by a Postgres (or Supabase) database.
type PostgresStore struct {
	db *bun.DB
}

// PostgresConfig holds the settings for constructing a PostgresStore.
type PostgresConfig struct {
	// DSN is the Postgres connection string.
	DSN string
	// Debug enables verbose query logging via bundebug.
	Debug bool
}

// OpenPostgres connects to Postgres, runs the schema migration, and returns
// a ready-to-use store.
func OpenPostgres(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history: postgres backend requires DATABASE_URL")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the messages table if it does not already exist.
func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*messageRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists a single message.
func (s *PostgresStore) Append(ctx context.Context, msg Message) error {
	row := &messageRow{
		ProfileID:      msg.ProfileID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the profile, oldest-first.
// The tail is fetched newest-first then reversed into chronological order.
func (s *PostgresStore) Recent(ctx context.Context, profileID string, n int) ([]Message, error) {
	var rows []messageRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("profile_id = ?", profileID).
		OrderExpr("created_at DESC, id DESC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}

	msgs := make([]Message, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = Message{
			ProfileID:      row.ProfileID,
			ConversationID: row.ConversationID,
			Role:           Role(row.Role),
			Content:        row.Content,
			CreatedAt:      row.CreatedAt,
		}
	}
	return msgs, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
