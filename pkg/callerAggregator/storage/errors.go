package storage

import "errors"

var (
	// ErrNotFound is returned when a requested item is not found in storage
	ErrNotFound = errors.New("item not found")

	// ErrStoreClosed is returned when attempting to use a closed storage instance
	ErrStoreClosed = errors.New("storage is closed")

	// ErrInvalidCaller is returned when an aggregate is keyed by an empty caller
	ErrInvalidCaller = errors.New("invalid caller")

	// ErrStoreNotEmpty is returned when a persistent store already holds aggregates from an earlier run
	ErrStoreNotEmpty = errors.New("storage already holds aggregates")
)
