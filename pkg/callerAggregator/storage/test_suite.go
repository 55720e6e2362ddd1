package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite defines a test suite that all storage implementations must pass
type TestSuite struct {
	NewStore func() (CallerAggregateStore, error)
}

// Run executes all storage interface compliance tests
func (s *TestSuite) Run(t *testing.T) {
	t.Run("UpdateAndGet", s.testUpdateAndGet)
	t.Run("FirstObservedOrder", s.testFirstObservedOrder)
	t.Run("FailedUpdate", s.testFailedUpdate)
	t.Run("Isolation", s.testIsolation)
	t.Run("Lifecycle", s.testLifecycle)
	t.Run("ConcurrentAccess", s.testConcurrentAccess)
	t.Run("ManyUpdatesOneCaller", s.testManyUpdatesOneCaller)
}

func addSender(sender string) UpdateFunc {
	return func(a *types.CallerAggregate) error {
		a.AddSender(sender)
		return nil
	}
}

func (s *TestSuite) testUpdateAndGet(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	caller := "0xcaller1"

	_, err = store.Get(ctx, caller)
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.Update(ctx, caller, addSender("0xsenderA")))
	require.NoError(t, store.Update(ctx, caller, func(a *types.CallerAggregate) error {
		a.AddSender("0xsenderB")
		a.AddCall(&types.ExtractedCall{Id: "fillOrder", Fills: 1, Updates: 1})
		return nil
	}))

	aggregate, err := store.Get(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, caller, aggregate.Caller)
	assert.Equal(t, map[string]uint64{"0xsenderA": 1, "0xsenderB": 1}, aggregate.Senders)
	assert.Equal(t, map[string]uint64{"fillOrder": 1}, aggregate.Methods)
	assert.Equal(t, uint64(1), aggregate.FillCount)
	assert.Equal(t, uint64(1), aggregate.UpdateCount)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = store.Update(ctx, "", addSender("0xsender"))
	assert.ErrorIs(t, err, ErrInvalidCaller)
}

func (s *TestSuite) testFirstObservedOrder(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	callers := []string{"0xccc", "0xaaa", "0xbbb"}
	for _, caller := range callers {
		require.NoError(t, store.Update(ctx, caller, addSender("0xsender")))
	}
	// revisiting a caller must not move it
	require.NoError(t, store.Update(ctx, "0xccc", addSender("0xother")))

	aggregates, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, aggregates, 3)
	for i, caller := range callers {
		assert.Equal(t, caller, aggregates[i].Caller)
	}
	assert.Equal(t, uint64(1), aggregates[0].Senders["0xother"])
}

func (s *TestSuite) testFailedUpdate(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	boom := errors.New("boom")

	err = store.Update(ctx, "0xnew", func(a *types.CallerAggregate) error {
		a.AddSender("0xsender")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = store.Get(ctx, "0xnew")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.Update(ctx, "0xexisting", addSender("0xsender")))
	err = store.Update(ctx, "0xexisting", func(a *types.CallerAggregate) error {
		a.AddSender("0xsender")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// updates are applied in place, so nothing is rolled back
	aggregate, err := store.Get(ctx, "0xexisting")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), aggregate.Senders["0xsender"])

	aggregates, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Equal(t, "0xexisting", aggregates[0].Caller)
}

func (s *TestSuite) testIsolation(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "0xcaller", addSender("0xsender")))

	aggregate, err := store.Get(ctx, "0xcaller")
	require.NoError(t, err)
	aggregate.AddSender("0xsender")
	aggregate.OrderCount = 100

	stored, err := store.Get(ctx, "0xcaller")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Senders["0xsender"])
	assert.Equal(t, uint64(0), stored.OrderCount)
}

func (s *TestSuite) testLifecycle(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "0xcaller", addSender("0xsender")))
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Update(ctx, "0xcaller", addSender("0xsender")), ErrStoreClosed)
	_, err = store.Get(ctx, "0xcaller")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	// closing twice is not an error
	assert.NoError(t, store.Close())
}

func (s *TestSuite) testConcurrentAccess(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	numGoroutines := 10
	numUpdates := 20

	var wg sync.WaitGroup
	errCh := make(chan error, numGoroutines*numUpdates)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				caller := fmt.Sprintf("0xcaller%d", j%4)
				if err := store.Update(ctx, caller, addSender(fmt.Sprintf("0xsender%d", id))); err != nil {
					errCh <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent update failed: %v", err)
	}

	aggregates, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, aggregates, 4)

	var total uint64
	for _, a := range aggregates {
		for _, n := range a.Senders {
			total += n
		}
	}
	assert.Equal(t, uint64(numGoroutines*numUpdates), total)
}

func (s *TestSuite) testManyUpdatesOneCaller(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	numSenders := 5000
	for i := 0; i < numSenders; i++ {
		require.NoError(t, store.Update(ctx, "0xproxy", addSender(fmt.Sprintf("0xsender%d", i))))
	}

	aggregate, err := store.Get(ctx, "0xproxy")
	require.NoError(t, err)
	assert.Len(t, aggregate.Senders, numSenders)
}
