package batch

import "context"

// ItemStatus is the terminal outcome of one batch item.
type ItemStatus string

const (
	// StatusSent marks an item whose send completed successfully.
	StatusSent ItemStatus = "sent"

	// StatusFailed marks an item whose send terminally failed.
	StatusFailed ItemStatus = "failed"
)

// ItemOutcome records the terminal result for one item index. An outcome is
// written once and is immutable afterwards; a resumed run skips any index
// that already has one.
type ItemOutcome struct {
	// Index is the item's position in the batch's ordered message list.
	Index int

	// Status is sent or failed.
	Status ItemStatus

	// Error holds the classified error text when Status is failed.
	Error string
}

// StateStore persists per-item batch progress so an interrupted run can be
// resumed. Implementations must tolerate out-of-order RecordResult calls,
// since items complete in any order, and must uphold at-least-once-recorded
// semantics: an index recorded as processed is never re-attempted on resume.
type StateStore interface {
	// InitializeBatch registers a batch run. Calling it again for a known
	// batch is a no-op, so a resumed run can pass through the same path.
	InitializeBatch(ctx context.Context, batchID string, total int) error

	// LoadProcessedIndices returns the set of indices that already have a
	// recorded outcome for the batch.
	LoadProcessedIndices(ctx context.Context, batchID string) (map[int]struct{}, error)

	// RecordResult durably stores the outcome for one index. This is the
	// durability checkpoint: once it returns for a sent item, a crash will
	// not cause that item to be re-sent.
	RecordResult(ctx context.Context, batchID string, outcome ItemOutcome) error

	// UpdateBatchPosition advances the high-water mark of scheduled work,
	// a diagnostic for operators inspecting an interrupted run.
	UpdateBatchPosition(ctx context.Context, batchID string, index int) error

	// CleanupBatch removes all recorded state for a batch.
	CleanupBatch(ctx context.Context, batchID string) error
}
