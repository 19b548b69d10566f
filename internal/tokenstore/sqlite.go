package tokenstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"userconsole/pkg/logging"
)

// SQLiteFileName is the database file used by the sqlite backend.
const SQLiteFileName = "tokens.db"

// SQLiteStore keeps the slots in a single-table SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	// One writer at a time; slot traffic is tiny.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS slots (
			name   TEXT PRIMARY KEY,
			value  TEXT NOT NULL
		);`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init 'slots' table schema: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to restrict token database permissions: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(slot Slot) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM slots WHERE name = ?", string(slot)).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Error("TokenStore", err, "Failed to read slot %s", slot)
		}
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) Set(slot Slot, value string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT INTO slots (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		string(slot), value,
	)
	if err != nil {
		return fmt.Errorf("failed to store slot %s: %w", slot, err)
	}
	logging.Audit("TokenStore", "slot_stored", "slot", string(slot))
	return nil
}

func (s *SQLiteStore) Remove(slot Slot) error {
	if _, err := s.db.Exec("DELETE FROM slots WHERE name = ?", string(slot)); err != nil {
		return fmt.Errorf("failed to remove slot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	res, err := s.db.Exec("DELETE FROM slots")
	if err != nil {
		return fmt.Errorf("failed to clear token database: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.Audit("TokenStore", "tokens_cleared", "slots", n)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
