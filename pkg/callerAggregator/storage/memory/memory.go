package memory

import (
	"context"
	"sync"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator/storage"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
)

// InMemoryCallerAggregateStore implements CallerAggregateStore with in-memory storage
type InMemoryCallerAggregateStore struct {
	mu         sync.RWMutex
	closed     bool
	aggregates map[string]*types.CallerAggregate
	order      []string
}

// NewInMemoryCallerAggregateStore creates a new in-memory caller aggregate store
func NewInMemoryCallerAggregateStore() *InMemoryCallerAggregateStore {
	return &InMemoryCallerAggregateStore{
		aggregates: make(map[string]*types.CallerAggregate),
		order:      make([]string, 0),
	}
}

// Update applies fn to the stored aggregate in place
func (s *InMemoryCallerAggregateStore) Update(ctx context.Context, caller string, fn storage.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	if caller == "" {
		return storage.ErrInvalidCaller
	}

	aggregate, exists := s.aggregates[caller]
	if !exists {
		aggregate = types.NewCallerAggregate(caller)
	}
	if err := fn(aggregate); err != nil {
		return err
	}

	if !exists {
		s.aggregates[caller] = aggregate
		s.order = append(s.order, caller)
	}
	return nil
}

// Get retrieves a copy of a caller's aggregate
func (s *InMemoryCallerAggregateStore) Get(ctx context.Context, caller string) (*types.CallerAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	aggregate, exists := s.aggregates[caller]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return aggregate.Clone(), nil
}

// List returns all aggregates in first-observed order
func (s *InMemoryCallerAggregateStore) List(ctx context.Context) ([]*types.CallerAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	aggregates := make([]*types.CallerAggregate, 0, len(s.order))
	for _, caller := range s.order {
		aggregates = append(aggregates, s.aggregates[caller].Clone())
	}
	return aggregates, nil
}

func (s *InMemoryCallerAggregateStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, storage.ErrStoreClosed
	}
	return len(s.order), nil
}

// Close closes the store
func (s *InMemoryCallerAggregateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
