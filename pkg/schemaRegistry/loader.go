package schemaRegistry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// compilerArtifact covers the two artifact layouts we accept: 0x's
// compiler output ({"compilerOutput": {"abi": [...]}}) and the plain
// {"abi": [...]} layout of hardhat and foundry.
type compilerArtifact struct {
	CompilerOutput *struct {
		Abi []json.RawMessage `json:"abi"`
	} `json:"compilerOutput"`
	Abi []json.RawMessage `json:"abi"`
}

// ParseSchemaDocument extracts the method descriptors from a single ABI document.
func ParseSchemaDocument(data []byte) ([]MethodDescriptor, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(ErrUnrecognizedSchemaDocument, "empty document")
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal descriptor list")
		}
	case '{':
		var artifact compilerArtifact
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal compiler artifact")
		}
		switch {
		case artifact.CompilerOutput != nil && artifact.CompilerOutput.Abi != nil:
			entries = artifact.CompilerOutput.Abi
		case artifact.Abi != nil:
			entries = artifact.Abi
		default:
			return nil, errors.Wrap(ErrUnrecognizedSchemaDocument, "object has no abi")
		}
	default:
		return nil, ErrUnrecognizedSchemaDocument
	}

	descriptors := make([]MethodDescriptor, 0, len(entries))
	for i, entry := range entries {
		var desc MethodDescriptor
		if err := json.Unmarshal(entry, &desc); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal descriptor %d", i)
		}
		desc.Raw = entry
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

// LoadSchemaFiles reads every file matched by the glob patterns. Paths are
// sorted before reading so the first-definition-wins rule of NewRegistry
// does not depend on directory enumeration order.
func LoadSchemaFiles(patterns []string, logger *zap.Logger) ([][]MethodDescriptor, error) {
	pathSet := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid schema pattern '%s'", pattern)
		}
		for _, m := range matches {
			pathSet[m] = true
		}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	docs := make([][]MethodDescriptor, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read schema file '%s'", path)
		}
		descriptors, err := ParseSchemaDocument(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse schema file '%s'", path)
		}
		logger.Sugar().Debugw("Loaded schema file", "path", path, "descriptors", len(descriptors))
		docs = append(docs, descriptors)
	}
	return docs, nil
}

// NewRegistryFromFiles loads and merges schema files into a registry.
func NewRegistryFromFiles(patterns []string, logger *zap.Logger) (*Registry, error) {
	docs, err := LoadSchemaFiles(patterns, logger)
	if err != nil {
		return nil, err
	}
	return NewRegistry(docs, logger), nil
}
