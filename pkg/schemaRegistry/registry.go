package schemaRegistry

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Registry maps function selectors to method schemas. It is built once and
// is safe for concurrent reads.
type Registry struct {
	methods map[[4]byte]*MethodSchema
}

// NewRegistry merges descriptor lists into a selector index.
//
// Documents are flattened in the order given. Only functions are kept, and
// for every function name the first parseable definition wins; later
// definitions with the same name are dropped silently. Entries the ABI
// parser rejects are logged and skipped.
func NewRegistry(docs [][]MethodDescriptor, logger *zap.Logger) *Registry {
	r := &Registry{
		methods: make(map[[4]byte]*MethodSchema),
	}
	seenNames := make(map[string]bool)

	for _, doc := range docs {
		for _, desc := range doc {
			if !desc.IsFunction() || seenNames[desc.Name] {
				continue
			}

			schema, err := parseMethod(desc)
			if err != nil {
				logger.Sugar().Warnw("Skipping unparseable method descriptor",
					"name", desc.Name,
					"error", err,
				)
				continue
			}
			seenNames[desc.Name] = true
			if existing, ok := r.methods[schema.Selector]; ok {
				logger.Sugar().Warnw("Selector collision, keeping first definition",
					"selector", schema.SelectorHex(),
					"kept", existing.Signature,
					"dropped", schema.Signature,
				)
				continue
			}
			r.methods[schema.Selector] = schema
		}
	}
	logger.Sugar().Debugw("Built schema registry", "methods", len(r.methods))
	return r
}

// functionFragment is the part of a function descriptor needed to decode
// its call data. Outputs are dropped: they are never decoded and may hold
// tuples the parser rejects.
type functionFragment struct {
	Type            string                   `json:"type"`
	Name            string                   `json:"name"`
	Inputs          []abi.ArgumentMarshaling `json:"inputs"`
	StateMutability string                   `json:"stateMutability,omitempty"`
	Constant        bool                     `json:"constant,omitempty"`
	Payable         bool                     `json:"payable,omitempty"`
}

func parseMethod(desc MethodDescriptor) (*MethodSchema, error) {
	var fragment functionFragment
	if err := json.Unmarshal(desc.Raw, &fragment); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal method '%s'", desc.Name)
	}
	fragment.Type = "function"
	nameAnonymousComponents(fragment.Inputs)

	encoded, err := json.Marshal([]functionFragment{fragment})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal method '%s'", desc.Name)
	}
	parsed, err := abi.JSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse method '%s'", desc.Name)
	}
	for _, method := range parsed.Methods {
		schema := &MethodSchema{
			Name:      method.RawName,
			Signature: method.Sig,
			Inputs:    method.Inputs,
			Shape:     shapeOf(method.Inputs),
		}
		copy(schema.Selector[:], method.ID)
		return schema, nil
	}
	return nil, errors.Errorf("descriptor '%s' does not define a function", desc.Name)
}

// nameAnonymousComponents gives tuple components without a usable name a
// positional placeholder, since the ABI parser builds a struct field per
// component. Top-level arguments may stay unnamed.
func nameAnonymousComponents(args []abi.ArgumentMarshaling) {
	for i := range args {
		components := args[i].Components
		for j := range components {
			if abi.ToCamelCase(components[j].Name) == "" {
				components[j].Name = types.PositionalName(j)
			}
		}
		nameAnonymousComponents(components)
	}
}

// Resolve returns the schema for a selector.
func (r *Registry) Resolve(selector [4]byte) (*MethodSchema, error) {
	schema, ok := r.methods[selector]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSelector, "selector %s", hexutil.Encode(selector[:]))
	}
	return schema, nil
}

func (r *Registry) Len() int {
	return len(r.methods)
}

// Methods lists every schema sorted by name.
func (r *Registry) Methods() []*MethodSchema {
	methods := make([]*MethodSchema, 0, len(r.methods))
	for _, m := range r.methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}
