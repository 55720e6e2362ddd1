package callDataDecoder

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultMaxDepth = 16

// CallDataDecoder turns ABI-encoded argument bytes into a types.Value tree.
// The byte-level decoding is done by go-ethereum's abi package; this type
// walks the resulting Go values using the declared ABI types and
// canonicalises every leaf.
type CallDataDecoder struct {
	maxDepth int
	logger   *zap.Logger
}

// NewCallDataDecoder creates a decoder. A non-positive maxDepth selects DefaultMaxDepth.
func NewCallDataDecoder(maxDepth int, logger *zap.Logger) *CallDataDecoder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CallDataDecoder{
		maxDepth: maxDepth,
		logger:   logger,
	}
}

type component struct {
	name  string
	typ   abi.Type
	value reflect.Value
}

// Decode decodes the argument section of a call (everything after the
// selector) against the method's inputs.
//
// Each record in the result carries positional alias fields ("0", "1", ...)
// and a length marker next to the named fields, all flagged as artifacts.
// Use Clean to strip them.
func (d *CallDataDecoder) Decode(data []byte, inputs abi.Arguments) (record *types.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = errors.Wrapf(ErrDecodeFailure, "panic while decoding: %v", r)
		}
	}()

	values, err := inputs.Unpack(data)
	if err != nil {
		d.logger.Sugar().Debugw("Failed to unpack arguments", "bytes", len(data), "error", err)
		return nil, errors.Wrap(ErrDecodeFailure, err.Error())
	}
	if len(values) != len(inputs) {
		return nil, errors.Wrapf(ErrDecodeFailure, "expected %d values, got %d", len(inputs), len(values))
	}

	components := make([]component, len(inputs))
	for i, input := range inputs {
		components[i] = component{
			name:  input.Name,
			typ:   input.Type,
			value: reflect.ValueOf(values[i]),
		}
	}
	return d.toRecord(components, 0)
}

func (d *CallDataDecoder) toRecord(components []component, depth int) (*types.Record, error) {
	record := types.NewRecord()
	for i, c := range components {
		v, err := d.toValue(c.typ, c.value, depth+1)
		if err != nil {
			return nil, err
		}
		record.AddArtifact(strconv.Itoa(i), v)
		if c.name != "" && !types.IsPositionalName(c.name) {
			record.Add(c.name, v)
		}
	}
	record.AddArtifact(types.LengthMarkerKey, types.NewScalar(len(components)))
	return record, nil
}

func (d *CallDataDecoder) toValue(t abi.Type, v reflect.Value, depth int) (types.Value, error) {
	if depth > d.maxDepth {
		return nil, errors.Wrapf(ErrMaxDepthExceeded, "value nested %d levels deep", depth)
	}
	if v.IsValid() && v.Kind() == reflect.Ptr && t.T != abi.IntTy && t.T != abi.UintTy {
		v = v.Elem()
	}

	switch t.T {
	case abi.TupleTy:
		if v.Kind() != reflect.Struct {
			return nil, errors.Wrapf(ErrDecodeFailure, "expected struct for %s, got %s", t.String(), v.Kind())
		}
		if v.NumField() != len(t.TupleElems) {
			return nil, errors.Wrapf(ErrDecodeFailure, "tuple %s has %d fields, expected %d", t.String(), v.NumField(), len(t.TupleElems))
		}
		components := make([]component, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			components[i] = component{
				name:  t.TupleRawNames[i],
				typ:   *elem,
				value: v.Field(i),
			}
		}
		return d.toRecord(components, depth)

	case abi.SliceTy, abi.ArrayTy:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, errors.Wrapf(ErrDecodeFailure, "expected sequence for %s, got %s", t.String(), v.Kind())
		}
		seq := make(types.Sequence, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := d.toValue(*t.Elem, v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			seq[i] = item
		}
		return seq, nil

	default:
		return scalarOf(t, v)
	}
}

// scalarOf canonicalises a leaf: integers become decimal strings, addresses
// checksummed hex and byte strings 0x-prefixed hex.
func scalarOf(t abi.Type, v reflect.Value) (*types.Scalar, error) {
	if !v.IsValid() {
		return nil, errors.Wrapf(ErrDecodeFailure, "missing value for %s", t.String())
	}
	raw := v.Interface()

	switch t.T {
	case abi.IntTy, abi.UintTy:
		if n, ok := raw.(*big.Int); ok {
			if n == nil {
				return types.NewScalar("0"), nil
			}
			return types.NewScalar(n.String()), nil
		}
		return types.NewScalar(fmt.Sprintf("%d", raw)), nil
	case abi.BoolTy:
		b, ok := raw.(bool)
		if !ok {
			return nil, unexpectedType(t, raw)
		}
		return types.NewScalar(b), nil
	case abi.StringTy:
		s, ok := raw.(string)
		if !ok {
			return nil, unexpectedType(t, raw)
		}
		return types.NewScalar(s), nil
	case abi.AddressTy:
		addr, ok := raw.(common.Address)
		if !ok {
			return nil, unexpectedType(t, raw)
		}
		return types.NewScalar(addr.Hex()), nil
	case abi.BytesTy:
		b, ok := raw.([]byte)
		if !ok {
			return nil, unexpectedType(t, raw)
		}
		return types.NewScalar(hexutil.Encode(b)), nil
	case abi.FixedBytesTy, abi.HashTy, abi.FunctionTy:
		if v.Kind() != reflect.Array {
			return nil, unexpectedType(t, raw)
		}
		b := make([]byte, v.Len())
		for i := range b {
			b[i] = byte(v.Index(i).Uint())
		}
		return types.NewScalar(hexutil.Encode(b)), nil
	default:
		return nil, errors.Wrapf(ErrDecodeFailure, "unsupported type %s", t.String())
	}
}

func unexpectedType(t abi.Type, raw interface{}) error {
	return errors.Wrapf(ErrDecodeFailure, "unexpected Go type %T for %s", raw, t.String())
}
