package callDataDecoder

import "github.com/pkg/errors"

var (
	// ErrDecodeFailure is returned when argument bytes do not match the schema
	ErrDecodeFailure = errors.New("failed to decode arguments")

	// ErrMaxDepthExceeded is returned when a value tree or a chain of wrapped
	// calls nests deeper than the configured limit
	ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")
)
