package callerAggregator

import (
	"context"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator/storage"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator/storage/badger"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator/storage/memory"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/profilerConfig"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CallerAggregator folds extracted calls into per-caller statistics.
type CallerAggregator struct {
	store  storage.CallerAggregateStore
	logger *zap.Logger
}

func NewCallerAggregator(store storage.CallerAggregateStore, logger *zap.Logger) *CallerAggregator {
	return &CallerAggregator{
		store:  store,
		logger: logger,
	}
}

// Observe attributes a record and the calls extracted from it to the
// record's caller. The sender is counted once per record.
func (ca *CallerAggregator) Observe(ctx context.Context, record *types.CallRecord, calls []*types.ExtractedCall) error {
	caller := record.CallerAddress()
	err := ca.store.Update(ctx, caller, func(aggregate *types.CallerAggregate) error {
		aggregate.AddSender(record.FromAddress)
		for _, call := range calls {
			aggregate.AddCall(call)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to observe call for caller %s", caller)
	}
	return nil
}

// Snapshot returns every aggregate in the order callers were first observed.
func (ca *CallerAggregator) Snapshot(ctx context.Context) ([]*types.CallerAggregate, error) {
	aggregates, err := ca.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list caller aggregates")
	}
	return aggregates, nil
}

func (ca *CallerAggregator) CallerCount(ctx context.Context) (int, error) {
	return ca.store.Count(ctx)
}

// NewCallerAggregateStore opens the store selected by the storage config.
func NewCallerAggregateStore(cfg *profilerConfig.StorageConfig, logger *zap.Logger) (storage.CallerAggregateStore, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == profilerConfig.StoreTypeMemory {
		logger.Sugar().Debugw("Using in-memory caller aggregate store")
		return memory.NewInMemoryCallerAggregateStore(), nil
	}
	if cfg.Type != profilerConfig.StoreTypeBadger {
		return nil, errors.Errorf("unsupported store type '%s'", cfg.Type)
	}
	if cfg.BadgerConfig == nil {
		return nil, errors.New("badger store requires a badger config")
	}
	logger.Sugar().Infow("Using badger caller aggregate store",
		"dir", cfg.BadgerConfig.Dir,
		"inMemory", cfg.BadgerConfig.InMemory,
		"resume", cfg.BadgerConfig.Resume,
	)
	store, err := badger.NewBadgerCallerAggregateStore(cfg.BadgerConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger store")
	}
	return store, nil
}
