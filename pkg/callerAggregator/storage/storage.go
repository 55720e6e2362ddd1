package storage

import (
	"context"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
)

// UpdateFunc mutates an aggregate in place. Returning an error keeps a new
// caller from being stored; changes already made to an existing caller's
// aggregate are not rolled back.
type UpdateFunc func(aggregate *types.CallerAggregate) error

// CallerAggregateStore defines the interface for caller aggregate persistence
type CallerAggregateStore interface {
	// Update applies fn to the caller's aggregate, creating it on first use
	Update(ctx context.Context, caller string, fn UpdateFunc) error
	// Get returns a copy of the caller's aggregate or ErrNotFound
	Get(ctx context.Context, caller string) (*types.CallerAggregate, error)
	// List returns copies of every aggregate in the order callers were first observed
	List(ctx context.Context) ([]*types.CallerAggregate, error)
	// Count returns the number of callers observed
	Count(ctx context.Context) (int, error)

	Close() error
}
