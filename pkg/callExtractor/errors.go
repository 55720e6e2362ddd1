package callExtractor

import "github.com/pkg/errors"

var (
	// ErrCallDataTooShort is returned when a payload has no room for a selector
	ErrCallDataTooShort = errors.New("call data shorter than a selector")
)
