package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect captures the few places SQLite and PostgreSQL disagree
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// fills match_participant from documents stored before the table existed
	participantSeed string
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		participantSeed: `INSERT INTO match_participant (player_id, match_id, game_start_ts)
			SELECT p.value, m.match_id, m.game_start_ts
			FROM "match" AS m, json_each(m.detail, '$.metadata.participants') AS p
			WHERE m.game_start_ts IS NOT NULL
				AND NOT EXISTS (SELECT 1 FROM match_participant)
			ON CONFLICT DO NOTHING`,
	}
	postgresDialect = dialect{
		name:     "postgres",
		numbered: true,
		participantSeed: `INSERT INTO match_participant (player_id, match_id, game_start_ts)
			SELECT p.v, m.match_id, m.game_start_ts
			FROM "match" AS m, json_array_elements_text(m.detail->'metadata'->'participants') AS p(v)
			WHERE m.game_start_ts IS NOT NULL
				AND NOT EXISTS (SELECT 1 FROM match_participant)
			ON CONFLICT DO NOTHING`,
	}
)

// Repository handles all database operations
type Repository struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to PostgreSQL for postgres:// URLs and to a SQLite file otherwise
func Open(databaseURL string) (*Repository, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return newRepository(db, postgresDialect)
	}
	return NewRepository(databaseURL)
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; callers never hold rows open across other queries
	db.SetMaxOpenConns(1)

	return newRepository(db, sqliteDialect)
}

func newRepository(db *sql.DB, d dialect) (*Repository, error) {
	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db, dialect: d}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS account (
			player_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			tracked BOOLEAN NOT NULL DEFAULT FALSE,
			last_synced TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS "match" (
			match_id TEXT PRIMARY KEY,
			detail JSON,
			game_start_ts TIMESTAMP,
			announced BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS rank_snapshot (
			ts TIMESTAMP NOT NULL,
			player_id TEXT NOT NULL,
			queue TEXT NOT NULL,
			tier TEXT NOT NULL,
			rank TEXT NOT NULL DEFAULT '',
			lp INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (ts, player_id, queue)
		)`,
		`CREATE TABLE IF NOT EXISTS match_participant (
			player_id TEXT NOT NULL,
			match_id TEXT NOT NULL,
			game_start_ts TIMESTAMP NOT NULL,
			PRIMARY KEY (player_id, match_id)
		)`,
		`CREATE TABLE IF NOT EXISTS identity_association (
			player_id TEXT PRIMARY KEY,
			chat_user_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_backfill ON account(tracked, last_synced)`,
		`CREATE INDEX IF NOT EXISTS idx_match_unresolved ON "match"(match_id) WHERE detail IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_match_pending ON "match"(game_start_ts) WHERE announced = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_rank_snapshot_latest ON rank_snapshot(player_id, queue, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_match_participant_start ON match_participant(player_id, game_start_ts)`,
		r.dialect.participantSeed,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// q adapts a ?-placeholder query to the active dialect
func (r *Repository) q(query string) string {
	if !r.dialect.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// withTx runs fn inside a transaction that is rolled back on every path except success
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// placeholders returns "?, ?, ..." for n arguments
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
