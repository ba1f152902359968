package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"podradio/internal/domain"
)

// SQLite persists subscriptions in a small database. Row position is the
// navigation order; the cursor lives in a one-row metadata table.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", pragma, err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
            position INTEGER PRIMARY KEY,
            id TEXT NOT NULL,
            name TEXT NOT NULL,
            feed_url TEXT NOT NULL,
            description TEXT,
            last_updated INTEGER NOT NULL,
            enabled INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS metadata (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load() ([]domain.Subscription, int, error) {
	rows, err := s.db.Query(`SELECT id, name, feed_url, COALESCE(description, ''), last_updated, enabled
FROM subscriptions ORDER BY position`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var lastUpdated int64
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.FeedURL, &sub.Description, &lastUpdated, &sub.Enabled); err != nil {
			return nil, 0, err
		}
		sub.LastUpdated = time.Unix(lastUpdated, 0)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	currentIndex := 0
	var value string
	err = s.db.QueryRow("SELECT value FROM metadata WHERE key = 'current_index'").Scan(&value)
	if err == nil {
		fmt.Sscanf(value, "%d", &currentIndex)
	} else if err != sql.ErrNoRows {
		return nil, 0, err
	}

	return subs, currentIndex, nil
}

// Save replaces the whole table in one transaction. The store is small, so a
// full rewrite is cheaper than diffing positions.
func (s *SQLite) Save(subs []domain.Subscription, currentIndex int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec("DELETE FROM subscriptions"); err != nil {
		return err
	}
	for i, sub := range subs {
		if _, err := tx.Exec(`INSERT INTO subscriptions (position, id, name, feed_url, description, last_updated, enabled)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, sub.ID, sub.Name, sub.FeedURL, sub.Description, sub.LastUpdated.Unix(), sub.Enabled); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES ('current_index', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", currentIndex)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
