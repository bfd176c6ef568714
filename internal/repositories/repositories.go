// Package repositories implements SQLite persistence for the configuration
// and metadata store.
//
// [SQLiteStore] satisfies services.ConfigStore for deployments that run
// without a hosted backend. Media rows carry atomic sequence numbers for
// stable human-readable ordering and are soft-deleted via deleted_at
// timestamps; queries exclude deleted rows by default.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
)

// SQLiteStore is a services.ConfigStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB

	mu       sync.Mutex
	settings *models.Settings
}

var _ services.ConfigStore = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an open database connection. The caller is expected
// to have run migrations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for rows. They are NOT
// exposed in output but used internally for sorting and debugging.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
