// Package history persists conversation turns per tenant and contact so
// the AI capability can see recent context.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id   TEXT NOT NULL,
		contact     TEXT NOT NULL,
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_turns_convo ON turns(tenant_id, contact, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Recent returns the last limit turns for one tenant/contact pair in
// chronological order.
func (s *SQLiteStore) Recent(ctx context.Context, tenantID, contact string, limit int) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM (
			SELECT id, role, content FROM turns
			WHERE tenant_id = ? AND contact = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		tenantID, contact, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, tenantID, contact, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (tenant_id, contact, role, content) VALUES (?, ?, ?, ?)`,
		tenantID, contact, role, content,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
