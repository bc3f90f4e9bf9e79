package batch

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory StateStore. Progress does not survive the
// process, so it suits one-shot runs and tests; durable runs use SQLiteStore.
type MemoryStore struct {
	mu       sync.Mutex
	batches  map[string]int
	position map[string]int
	outcomes map[string]map[int]ItemOutcome
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:  make(map[string]int),
		position: make(map[string]int),
		outcomes: make(map[string]map[int]ItemOutcome),
	}
}

// InitializeBatch registers the batch if it is not already known.
func (s *MemoryStore) InitializeBatch(_ context.Context, batchID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		s.batches[batchID] = total
		s.outcomes[batchID] = make(map[int]ItemOutcome)
	}
	return nil
}

// LoadProcessedIndices returns the indices with recorded outcomes.
func (s *MemoryStore) LoadProcessedIndices(_ context.Context, batchID string) (map[int]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	processed := make(map[int]struct{}, len(s.outcomes[batchID]))
	for idx := range s.outcomes[batchID] {
		processed[idx] = struct{}{}
	}
	return processed, nil
}

// RecordResult stores the outcome for one index. The first write wins;
// outcomes are immutable once recorded.
func (s *MemoryStore) RecordResult(_ context.Context, batchID string, outcome ItemOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.outcomes[batchID]
	if !ok {
		m = make(map[int]ItemOutcome)
		s.outcomes[batchID] = m
	}
	if _, exists := m[outcome.Index]; !exists {
		m[outcome.Index] = outcome
	}
	return nil
}

// UpdateBatchPosition keeps the highest index handed to a worker.
func (s *MemoryStore) UpdateBatchPosition(_ context.Context, batchID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index > s.position[batchID] {
		s.position[batchID] = index
	}
	return nil
}

// CleanupBatch forgets everything recorded for the batch.
func (s *MemoryStore) CleanupBatch(_ context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.batches, batchID)
	delete(s.position, batchID)
	delete(s.outcomes, batchID)
	return nil
}

// Outcome returns the recorded outcome for an index, for tests and
// diagnostics.
func (s *MemoryStore) Outcome(batchID string, index int) (ItemOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := s.outcomes[batchID][index]
	return outcome, ok
}
