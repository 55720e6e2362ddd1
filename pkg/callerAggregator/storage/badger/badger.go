package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerv3 "github.com/dgraph-io/badger/v3"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator/storage"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/profilerConfig"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
)

// Key prefixes for different data types
const (
	prefixAggregate = "aggregate:%s"
	prefixOrder     = "order:"
	keyOrder        = prefixOrder + "%020d" // first-observed sequence number
	keySequence     = "meta:sequence"

	sequenceBandwidth = 1000

	defaultWriteCacheSize = 1024
)

// aggregateRecord is the stored form of an aggregate
type aggregateRecord struct {
	Sequence  uint64                 `json:"sequence"`
	Aggregate *types.CallerAggregate `json:"aggregate"`
}

// cachedAggregate is an aggregate changed since the last flush
type cachedAggregate struct {
	record *aggregateRecord
	isNew  bool
}

// BadgerCallerAggregateStore implements the CallerAggregateStore interface using BadgerDB.
//
// Updates are applied to aggregates held in a write cache and written out
// in one batch once the cache holds WriteCacheSize callers, and before any
// read. A caller that is updated again and again is decoded from the
// database at most once per flush.
type BadgerCallerAggregateStore struct {
	db        *badgerv3.DB
	seq       *badgerv3.Sequence
	mu        sync.RWMutex
	writeMu   sync.Mutex
	closed    bool
	closeCh   chan struct{}
	gcTicker  *time.Ticker
	cache     map[string]*cachedAggregate
	cacheSize int
}

// NewBadgerCallerAggregateStore creates a new BadgerDB-backed caller aggregate store
func NewBadgerCallerAggregateStore(cfg *profilerConfig.BadgerConfig) (*BadgerCallerAggregateStore, error) {
	if cfg == nil {
		return nil, errors.New("badger config is nil")
	}

	opts := badgerv3.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Disable BadgerDB's default logging

	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = cfg.NumVersionsToKeep
	}
	if cfg.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = cfg.NumLevelZeroTables
	}
	if cfg.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = cfg.NumLevelZeroTablesStall
	}

	db, err := badgerv3.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if !cfg.Resume {
		populated, err := hasAggregates(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to inspect badger db: %w", err)
		}
		if populated {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", cfg.Dir, storage.ErrStoreNotEmpty)
		}
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open caller sequence: %w", err)
	}

	cacheSize := cfg.WriteCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultWriteCacheSize
	}

	s := &BadgerCallerAggregateStore{
		db:        db,
		seq:       seq,
		closeCh:   make(chan struct{}),
		cache:     make(map[string]*cachedAggregate),
		cacheSize: cacheSize,
	}

	// Start garbage collection routine
	s.gcTicker = time.NewTicker(5 * time.Minute)
	go s.runGC()

	return s, nil
}

// runGC runs periodic garbage collection
func (s *BadgerCallerAggregateStore) runGC() {
	for {
		select {
		case <-s.gcTicker.C:
			s.mu.RLock()
			if s.closed {
				s.mu.RUnlock()
				return
			}
			s.mu.RUnlock()

			// Run value log GC
			_ = s.db.RunValueLogGC(0.5)
		case <-s.closeCh:
			return
		}
	}
}

func hasAggregates(db *badgerv3.DB) (bool, error) {
	found := false
	err := db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = []byte(prefixOrder)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		found = it.Valid()
		return nil
	})
	return found, err
}

func aggregateKey(caller string) []byte {
	return []byte(fmt.Sprintf(prefixAggregate, caller))
}

func readRecord(item *badgerv3.Item) (*aggregateRecord, error) {
	var record aggregateRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregate: %w", err)
	}
	return &record, nil
}

func (s *BadgerCallerAggregateStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Update applies fn to the caller's cached aggregate, loading it from the
// database on first use. A failed update of a caller not yet stored leaves
// no trace; changes fn made to an existing aggregate before failing are kept.
func (s *BadgerCallerAggregateStore) Update(ctx context.Context, caller string, fn storage.UpdateFunc) error {
	if s.isClosed() {
		return storage.ErrStoreClosed
	}
	if caller == "" {
		return storage.ErrInvalidCaller
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosed() {
		return storage.ErrStoreClosed
	}

	entry, cached := s.cache[caller]
	if !cached {
		record, err := s.load(caller)
		switch {
		case err == nil:
			entry = &cachedAggregate{record: record}
		case errors.Is(err, storage.ErrNotFound):
			sequence, err := s.seq.Next()
			if err != nil {
				return fmt.Errorf("failed to allocate caller sequence: %w", err)
			}
			entry = &cachedAggregate{
				record: &aggregateRecord{
					Sequence:  sequence,
					Aggregate: types.NewCallerAggregate(caller),
				},
				isNew: true,
			}
		default:
			return fmt.Errorf("failed to update aggregate for %s: %w", caller, err)
		}
	}

	fnErr := fn(entry.record.Aggregate)
	if fnErr != nil && !cached && entry.isNew {
		return fnErr
	}
	s.cache[caller] = entry

	if len(s.cache) >= s.cacheSize {
		if err := s.flushLocked(); err != nil {
			return err
		}
	}
	return fnErr
}

// load reads a stored aggregate, bypassing the write cache
func (s *BadgerCallerAggregateStore) load(caller string) (*aggregateRecord, error) {
	var record *aggregateRecord
	err := s.db.View(func(txn *badgerv3.Txn) error {
		item, err := txn.Get(aggregateKey(caller))
		if err != nil {
			if errors.Is(err, badgerv3.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		record, err = readRecord(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// flushLocked writes every cached aggregate in one batch. writeMu must be held.
func (s *BadgerCallerAggregateStore) flushLocked() error {
	if len(s.cache) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for caller, entry := range s.cache {
		value, err := json.Marshal(entry.record)
		if err != nil {
			return fmt.Errorf("failed to marshal aggregate: %w", err)
		}
		if err := wb.Set(aggregateKey(caller), value); err != nil {
			return fmt.Errorf("failed to write aggregate for %s: %w", caller, err)
		}
		if entry.isNew {
			if err := wb.Set([]byte(fmt.Sprintf(keyOrder, entry.record.Sequence)), []byte(caller)); err != nil {
				return fmt.Errorf("failed to index caller %s: %w", caller, err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush aggregates: %w", err)
	}
	s.cache = make(map[string]*cachedAggregate)
	return nil
}

// flush writes out pending updates so reads see them
func (s *BadgerCallerAggregateStore) flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosed() {
		return storage.ErrStoreClosed
	}
	return s.flushLocked()
}

// Get retrieves a caller's aggregate
func (s *BadgerCallerAggregateStore) Get(ctx context.Context, caller string) (*types.CallerAggregate, error) {
	if s.isClosed() {
		return nil, storage.ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosed() {
		return nil, storage.ErrStoreClosed
	}

	if entry, ok := s.cache[caller]; ok {
		return entry.record.Aggregate.Clone(), nil
	}
	record, err := s.load(caller)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return record.Aggregate, nil
}

// List walks the first-observed index and returns every aggregate in that order
func (s *BadgerCallerAggregateStore) List(ctx context.Context) ([]*types.CallerAggregate, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}

	aggregates := make([]*types.CallerAggregate, 0)
	err := s.db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = []byte(prefixOrder)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			caller, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(aggregateKey(string(caller)))
			if err != nil {
				return fmt.Errorf("index entry for %s has no aggregate: %w", caller, err)
			}
			record, err := readRecord(item)
			if err != nil {
				return err
			}
			aggregates = append(aggregates, record.Aggregate)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	return aggregates, nil
}

func (s *BadgerCallerAggregateStore) Count(ctx context.Context) (int, error) {
	if err := s.flush(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = []byte(prefixOrder)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count aggregates: %w", err)
	}
	return count, nil
}

// Close closes the store
func (s *BadgerCallerAggregateStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	close(s.closeCh)
	s.gcTicker.Stop()

	if err := s.flushLocked(); err != nil {
		_ = s.seq.Release()
		_ = s.db.Close()
		return err
	}
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to release caller sequence: %w", err)
	}
	return s.db.Close()
}
