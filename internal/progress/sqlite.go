package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	statusDone   = "done"
	statusFailed = "failed"
)

// SQLiteStore persists state in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	// One writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate progress database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		doc_key TEXT PRIMARY KEY,
		total INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS units (
		doc_key TEXT NOT NULL,
		idx INTEGER NOT NULL,
		status TEXT NOT NULL,
		translated TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (doc_key, idx)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the state for key, empty if the document was never run
func (s *SQLiteStore) Load(ctx context.Context, key string) (*State, error) {
	state := NewState(key)

	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT total, processed, updated_at FROM runs WHERE doc_key = ?", key,
	).Scan(&state.Total, &state.Processed, &updated)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if updated.Valid {
		state.UpdatedAt = updated.Time
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT idx, status, translated, reason FROM units WHERE doc_key = ? ORDER BY idx", key)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx                        int
			status, translated, reason string
		)
		if err := rows.Scan(&idx, &status, &translated, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		switch status {
		case statusDone:
			state.Completed[idx] = translated
		case statusFailed:
			state.Failed[idx] = reason
		}
	}
	return state, rows.Err()
}

// MarkCompleted records a translated unit and updates the run counters in
// one transaction
func (s *SQLiteStore) MarkCompleted(ctx context.Context, key string, index int, translated string, total int) error {
	if err := checkIndex(index, total); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (doc_key, idx, status, translated, reason, updated_at)
			VALUES (?, ?, ?, ?, '', ?)
			ON CONFLICT(doc_key, idx) DO UPDATE SET
				status = excluded.status,
				translated = excluded.translated,
				reason = '',
				updated_at = excluded.updated_at`,
			key, index, statusDone, translated, time.Now())
		if err != nil {
			return err
		}
		return s.updateRun(ctx, tx, key, total)
	})
}

// MarkFailed records a unit failure; a completed unit stays completed
func (s *SQLiteStore) MarkFailed(ctx context.Context, key string, index int, reason string, total int) error {
	if err := checkIndex(index, total); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (doc_key, idx, status, translated, reason, updated_at)
			VALUES (?, ?, ?, '', ?, ?)
			ON CONFLICT(doc_key, idx) DO UPDATE SET
				status = excluded.status,
				reason = excluded.reason,
				updated_at = excluded.updated_at
			WHERE units.status != ?`,
			key, index, statusFailed, reason, time.Now(), statusDone)
		if err != nil {
			return err
		}
		return s.updateRun(ctx, tx, key, total)
	})
}

// Reset deletes all state of key
func (s *SQLiteStore) Reset(ctx context.Context, key string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE doc_key = ?", key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE doc_key = ?", key)
		return err
	})
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) updateRun(ctx context.Context, tx *sql.Tx, key string, total int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (doc_key, total, processed, updated_at)
		VALUES (?, ?, (SELECT COUNT(*) FROM units WHERE doc_key = ? AND status = ?), ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			total = excluded.total,
			processed = excluded.processed,
			updated_at = excluded.updated_at`,
		key, total, key, statusDone, time.Now())
	return err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return tx.Commit()
}
