package batch

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// migration is one schema step applied in version order.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{ //nolint:gochecknoglobals // Ordered schema definition.
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	total INTEGER NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS batch_items (
	batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	item_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (batch_id, item_index)
);
INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// SQLiteStore is a StateStore backed by a local SQLite database, so batch
// progress survives process restarts.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath, enables WAL
// mode, and applies any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes concurrent worker writes and keeps
	// :memory: databases coherent under the database/sql pool.
	db.SetMaxOpenConns(1)

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations applies outstanding migrations in version order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// InitializeBatch registers the batch run; re-registering is a no-op.
func (s *SQLiteStore) InitializeBatch(ctx context.Context, batchID string, total int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO batches (id, total) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		batchID, total,
	)
	if err != nil {
		return fmt.Errorf("initializing batch %s: %w", batchID, err)
	}
	return nil
}

// LoadProcessedIndices returns the indices with recorded outcomes.
func (s *SQLiteStore) LoadProcessedIndices(ctx context.Context, batchID string) (map[int]struct{}, error) {
	var indices []int
	err := s.db.SelectContext(ctx, &indices,
		"SELECT item_index FROM batch_items WHERE batch_id = ?", batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading processed indices for batch %s: %w", batchID, err)
	}

	processed := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		processed[idx] = struct{}{}
	}
	return processed, nil
}

// RecordResult stores the outcome for one index. Outcomes are immutable:
// a conflicting insert leaves the first record in place.
func (s *SQLiteStore) RecordResult(ctx context.Context, batchID string, outcome ItemOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_items (batch_id, item_index, status, error)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(batch_id, item_index) DO NOTHING`,
		batchID, outcome.Index, string(outcome.Status), outcome.Error,
	)
	if err != nil {
		return fmt.Errorf("recording result for batch %s index %d: %w", batchID, outcome.Index, err)
	}
	return nil
}

// UpdateBatchPosition advances the scheduling high-water mark.
func (s *SQLiteStore) UpdateBatchPosition(ctx context.Context, batchID string, index int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE batches SET position = MAX(position, ?) WHERE id = ?",
		index, batchID,
	)
	if err != nil {
		return fmt.Errorf("updating position for batch %s: %w", batchID, err)
	}
	return nil
}

// CleanupBatch removes the batch and all item records.
func (s *SQLiteStore) CleanupBatch(ctx context.Context, batchID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM batches WHERE id = ?", batchID)
	if err != nil {
		return fmt.Errorf("cleaning up batch %s: %w", batchID, err)
	}
	return nil
}

// Outcomes returns all recorded outcomes for a batch ordered by index, for
// the CLI's batch status output.
func (s *SQLiteStore) Outcomes(ctx context.Context, batchID string) ([]ItemOutcome, error) {
	rows := []struct {
		Index  int    `db:"item_index"`
		Status string `db:"status"`
		Error  string `db:"error"`
	}{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT item_index, status, error FROM batch_items WHERE batch_id = ? ORDER BY item_index",
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading outcomes for batch %s: %w", batchID, err)
	}

	outcomes := make([]ItemOutcome, len(rows))
	for i, r := range rows {
		outcomes[i] = ItemOutcome{Index: r.Index, Status: ItemStatus(r.Status), Error: r.Error}
	}
	return outcomes, nil
}
