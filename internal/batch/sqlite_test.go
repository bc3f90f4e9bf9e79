package batch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgoat/mailgoat/internal/client"
)

// newSQLiteTestStore creates an in-memory SQLite store with migrations
// applied and closes it when the test completes.
func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InitializeBatch(ctx, "batch-1", 5))
	// Re-initializing a known batch is a no-op.
	require.NoError(t, s.InitializeBatch(ctx, "batch-1", 5))

	processed, err := s.LoadProcessedIndices(ctx, "batch-1")
	require.NoError(t, err)
	assert.Empty(t, processed)

	require.NoError(t, s.RecordResult(ctx, "batch-1", ItemOutcome{Index: 0, Status: StatusSent}))
	require.NoError(t, s.RecordResult(ctx, "batch-1", ItemOutcome{
		Index:  3,
		Status: StatusFailed,
		Error:  "server error (500)",
	}))

	processed, err = s.LoadProcessedIndices(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, processed, 2)
	assert.Contains(t, processed, 0)
	assert.Contains(t, processed, 3)

	outcomes, err := s.Outcomes(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, ItemOutcome{Index: 0, Status: StatusSent}, outcomes[0])
	assert.Equal(t, ItemOutcome{Index: 3, Status: StatusFailed, Error: "server error (500)"}, outcomes[1])

	require.NoError(t, s.CleanupBatch(ctx, "batch-1"))
	processed, err = s.LoadProcessedIndices(ctx, "batch-1")
	require.NoError(t, err)
	assert.Empty(t, processed)
}

func TestSQLiteStoreOutcomesAreImmutable(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InitializeBatch(ctx, "batch-2", 1))
	require.NoError(t, s.RecordResult(ctx, "batch-2", ItemOutcome{Index: 0, Status: StatusSent}))

	// A second write for the same index leaves the first record in place.
	require.NoError(t, s.RecordResult(ctx, "batch-2", ItemOutcome{
		Index:  0,
		Status: StatusFailed,
		Error:  "should not overwrite",
	}))

	outcomes, err := s.Outcomes(ctx, "batch-2")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSent, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Error)
}

func TestSQLiteStoreOutOfOrderRecords(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InitializeBatch(ctx, "batch-3", 4))
	for _, idx := range []int{3, 1, 0, 2} {
		require.NoError(t, s.RecordResult(ctx, "batch-3", ItemOutcome{Index: idx, Status: StatusSent}))
	}

	outcomes, err := s.Outcomes(ctx, "batch-3")
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
	}
}

func TestSQLiteStoreUpdateBatchPosition(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InitializeBatch(ctx, "batch-4", 10))
	require.NoError(t, s.UpdateBatchPosition(ctx, "batch-4", 5))
	// Position is a high-water mark; lower indices do not move it back.
	require.NoError(t, s.UpdateBatchPosition(ctx, "batch-4", 2))

	var position int
	require.NoError(t, s.db.Get(&position, "SELECT position FROM batches WHERE id = ?", "batch-4"))
	assert.Equal(t, 5, position)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "batches.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.InitializeBatch(ctx, "batch-5", 3))
	require.NoError(t, s.RecordResult(ctx, "batch-5", ItemOutcome{Index: 1, Status: StatusSent}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	processed, err := reopened.LoadProcessedIndices(ctx, "batch-5")
	require.NoError(t, err)
	assert.Contains(t, processed, 1)
}

func TestEngineWithSQLiteStoreResumes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "batches.db")
	ctx := context.Background()
	messages := testMessages(6)

	// First run: items 0-2 succeed, the rest fail at the upstream.
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	engine := NewEngine(store, zerolog.Nop())
	var mu sync.Mutex
	sent := map[int]int{}

	report, err := engine.Run(ctx, messages, func(_ context.Context, index int, _ *client.SendRequest) error {
		mu.Lock()
		sent[index]++
		mu.Unlock()
		if index >= 3 {
			return &client.Error{Kind: client.KindServer, Message: "server error (500)"}
		}
		return nil
	}, Options{BatchID: "resume-run", Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	require.NoError(t, store.Close())

	// Second run against the same database resumes: every index already
	// has a recorded outcome (sent or failed), so nothing is re-attempted.
	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	engine = NewEngine(store, zerolog.Nop())
	report, err = engine.Run(ctx, messages, func(_ context.Context, index int, _ *client.SendRequest) error {
		mu.Lock()
		sent[index]++
		mu.Unlock()
		return nil
	}, Options{BatchID: "resume-run", Concurrency: 2, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Attempted)

	for idx, count := range sent {
		assert.Equal(t, 1, count, "index %d attempted more than once", idx)
	}
}
