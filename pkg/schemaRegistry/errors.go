package schemaRegistry

import "github.com/pkg/errors"

var (
	// ErrUnknownSelector is returned when no loaded schema matches a call's selector
	ErrUnknownSelector = errors.New("unknown selector")

	// ErrUnrecognizedSchemaDocument is returned for documents that are neither a
	// descriptor list nor a compiler artifact
	ErrUnrecognizedSchemaDocument = errors.New("unrecognized schema document")
)
