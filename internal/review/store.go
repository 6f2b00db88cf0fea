package review

import (
	"context"
	"slices"
	"sync"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// Lister fetches the full record set
type Lister interface {
	List(ctx context.Context) ([]expense.Record, error)
}

// Snapshot is a consistent view of the cached records and their metrics
type Snapshot struct {
	Records []expense.Record
	Metrics expense.Metrics
}

// Store caches the record set and the metrics derived from it.
// The set is only ever replaced wholesale by Refresh.
type Store struct {
	lister Lister

	mu          sync.RWMutex
	records     []expense.Record
	metrics     expense.Metrics
	started     uint64
	applied     uint64
	subscribers []func(Snapshot)
}

// NewStore creates an empty Store
func NewStore(lister Lister) *Store {
	return &Store{
		lister:  lister,
		records: []expense.Record{},
		metrics: expense.Aggregate(nil),
	}
}

// Refresh refetches the record set. On failure the previous set is kept.
// A result that arrives after a later refresh has already been applied is dropped.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.mu.Unlock()

	records, err := s.lister.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		return nil
	}
	s.applied = seq
	s.records = slices.Clone(records)
	if s.records == nil {
		s.records = []expense.Record{}
	}
	s.metrics = expense.Aggregate(s.records)
	snap := s.snapshotLocked()
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
	return nil
}

// All returns the cached records in the order the service returned them
func (s *Store) All() []expense.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Metrics returns the metrics of the cached records
func (s *Store) Metrics() expense.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Snapshot returns records and metrics from the same refresh
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to be called after every applied refresh
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Records: slices.Clone(s.records), Metrics: s.metrics}
}
