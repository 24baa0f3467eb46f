// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// StorageKey is the fixed name the serialized state blob is stored under.
const StorageKey = "ollama-chat-storage"

// Persister stores and restores the serialized whole-state blob.
type Persister interface {
	// Save writes the blob, replacing any previous one.
	Save(blob []byte) error

	// Load returns the stored blob, or (nil, nil) when none exists.
	Load() ([]byte, error)

	// Close releases underlying resources.
	Close() error
}

// =============================================================================
// SQLITE PERSISTER
// =============================================================================

// SQLitePersister keeps the state blob in a single-row key/value table.
// The whole state is one value; there is no per-conversation row.
type SQLitePersister struct {
	db *sql.DB
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS app_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
) WITHOUT ROWID;
`

// OpenSQLitePersister opens (creating if needed) the state database at path.
func OpenSQLitePersister(path string) (*SQLitePersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLitePersister{db: db}, nil
}

// Save upserts the blob under the fixed storage key.
func (p *SQLitePersister) Save(blob []byte) error {
	_, err := p.db.Exec(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		StorageKey, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns the stored blob, or (nil, nil) on first run.
func (p *SQLitePersister) Load() ([]byte, error) {
	var blob []byte
	err := p.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, StorageKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return blob, nil
}

// Close closes the database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// =============================================================================
// MEMORY PERSISTER
// =============================================================================

// MemoryPersister keeps the blob in memory. Used by tests and ephemeral runs.
type MemoryPersister struct {
	mu   sync.Mutex
	blob []byte

	// Saves counts completed Save calls, for debounce assertions.
	Saves int
}

// Save stores a copy of the blob.
func (p *MemoryPersister) Save(blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blob = append([]byte(nil), blob...)
	p.Saves++
	return nil
}

// Load returns the stored blob, or (nil, nil) when none has been saved.
func (p *MemoryPersister) Load() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), p.blob...), nil
}

// Close is a no-op.
func (p *MemoryPersister) Close() error {
	return nil
}
