package client

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// TokenStore persists the reconnect token (the last joined room code)
// across client restarts. It holds at most one row: clients belong to at
// most one room, and the token is cleared the moment a participant
// explicitly leaves. A persisted code never implies the room still
// exists; it has to be validated by a live join.
type TokenStore struct {
	db *sql.DB
}

// OpenTokenStore opens (or creates) the store at path.
func OpenTokenStore(path string) (*TokenStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		room_code TEXT NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &TokenStore{db: db}, nil
}

// Load returns the persisted room code, or "" when none is stored.
func (s *TokenStore) Load() (string, error) {
	var code string
	err := s.db.QueryRow("SELECT room_code FROM session WHERE id = 1").Scan(&code)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// Save records the room code, replacing any previous token.
func (s *TokenStore) Save(code string) error {
	_, err := s.db.Exec(`
		INSERT INTO session (id, room_code, saved_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET room_code = excluded.room_code, saved_at = CURRENT_TIMESTAMP`,
		code)
	return err
}

// Clear removes the token.
func (s *TokenStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM session WHERE id = 1")
	return err
}

func (s *TokenStore) Close() error {
	return s.db.Close()
}
