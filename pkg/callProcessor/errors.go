package callProcessor

import "github.com/pkg/errors"

var (
	// ErrMalformedRecord is returned for log lines that are not valid call records
	ErrMalformedRecord = errors.New("malformed call record")
)
