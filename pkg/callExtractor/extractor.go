package callExtractor

import (
	"regexp"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callDataDecoder"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultWrapperMethod    = "executeTransaction"
	DefaultWrapperDataField = "data"
	DefaultWrappedPrefix    = "wrapped_"

	selectorLength = 4
)

// fillPattern matches method names that execute orders rather than only
// changing their state.
var fillPattern = regexp.MustCompile(`(?i)fill|buy|sell|match`)

type CallExtractorConfig struct {
	// WrapperMethod is the meta-transaction method whose inner payload is unwrapped
	WrapperMethod string
	// WrapperDataField is the dotted path of the inner payload in the wrapper's arguments
	WrapperDataField string
	// WrappedPrefix is prepended to the id of every unwrapped call
	WrappedPrefix string
	// MaxDepth bounds the number of nested wrapper calls
	MaxDepth int
}

func (c *CallExtractorConfig) applyDefaults() {
	if c.WrapperMethod == "" {
		c.WrapperMethod = DefaultWrapperMethod
	}
	if c.WrapperDataField == "" {
		c.WrapperDataField = DefaultWrapperDataField
	}
	if c.WrappedPrefix == "" {
		c.WrappedPrefix = DefaultWrappedPrefix
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = callDataDecoder.DefaultMaxDepth
	}
}

// CallExtractor turns raw call data into extracted calls. It holds no mutable
// state and can be shared between goroutines.
type CallExtractor struct {
	registry *schemaRegistry.Registry
	decoder  *callDataDecoder.CallDataDecoder
	config   CallExtractorConfig
	logger   *zap.Logger
}

func NewCallExtractor(
	registry *schemaRegistry.Registry,
	decoder *callDataDecoder.CallDataDecoder,
	cfg *CallExtractorConfig,
	logger *zap.Logger,
) *CallExtractor {
	config := CallExtractorConfig{}
	if cfg != nil {
		config = *cfg
	}
	config.applyDefaults()
	return &CallExtractor{
		registry: registry,
		decoder:  decoder,
		config:   config,
		logger:   logger,
	}
}

// ExtractHexCalls is ExtractCalls for 0x-prefixed hex call data.
func (ce *CallExtractor) ExtractHexCalls(callDataHex string, kind types.CallType) ([]*types.ExtractedCall, error) {
	callData, err := hexutil.Decode(callDataHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid call data hex")
	}
	return ce.ExtractCalls(callData, kind)
}

// ExtractCalls decodes a call and every call wrapped inside it. The first
// element is always the outer call; calls unwrapped from a meta-transaction
// follow it with their ids prefixed.
func (ce *CallExtractor) ExtractCalls(callData []byte, kind types.CallType) ([]*types.ExtractedCall, error) {
	return ce.extract(callData, kind, 0)
}

func (ce *CallExtractor) extract(callData []byte, kind types.CallType, depth int) ([]*types.ExtractedCall, error) {
	if depth > ce.config.MaxDepth {
		return nil, errors.Wrapf(callDataDecoder.ErrMaxDepthExceeded, "wrapped calls nested %d levels deep", depth)
	}
	if len(callData) < selectorLength {
		return nil, errors.Wrapf(ErrCallDataTooShort, "got %d bytes", len(callData))
	}

	var selector [selectorLength]byte
	copy(selector[:], callData[:selectorLength])
	method, err := ce.registry.Resolve(selector)
	if err != nil {
		return nil, err
	}

	args := ce.decodeArguments(method, callData[selectorLength:])

	call := &types.ExtractedCall{
		Id: method.Name,
	}
	if err := ce.collectOrders(call, method, args); err != nil {
		return nil, err
	}
	if kind == types.CallTypeCall {
		call.Updates = uint64(len(call.Orders))
		if fillPattern.MatchString(method.Name) {
			call.Fills = uint64(len(call.Orders))
		}
	}

	calls := []*types.ExtractedCall{call}
	if method.Name != ce.config.WrapperMethod {
		return calls, nil
	}

	inner, ok := ce.innerPayload(args)
	if !ok {
		ce.logger.Sugar().Warnw("Wrapper call has no inner payload",
			"method", method.Name,
			"field", ce.config.WrapperDataField,
		)
		return calls, nil
	}
	wrapped, err := ce.extract(inner, kind, depth+1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to extract call wrapped in %s", method.Name)
	}
	for _, w := range wrapped {
		w.Id = ce.config.WrappedPrefix + w.Id
		calls = append(calls, w)
	}
	return calls, nil
}

// decodeArguments decodes and cleans the argument section. A payload that
// does not match the schema yields an empty argument set.
func (ce *CallExtractor) decodeArguments(method *schemaRegistry.MethodSchema, data []byte) *types.Record {
	decoded, err := ce.decoder.Decode(data, method.Inputs)
	if err != nil {
		ce.logger.Sugar().Warnw("Failed to decode call arguments",
			"method", method.Name,
			"selector", method.SelectorHex(),
			"error", err,
		)
		return types.NewRecord()
	}
	return callDataDecoder.CleanArguments(decoded)
}

func (ce *CallExtractor) collectOrders(call *types.ExtractedCall, method *schemaRegistry.MethodSchema, args *types.Record) error {
	orderParams, signatureParams := schemaRegistry.OrderParams(method.Shape)

	var orderValues, signatureValues []types.Value
	if method.Shape == types.ShapeOrderList {
		orderValues = sequenceField(args, orderParams[0])
		signatureValues = sequenceField(args, signatureParams[0])
	} else {
		for i, name := range orderParams {
			v, ok := args.Get(name)
			if !ok {
				continue
			}
			orderValues = append(orderValues, v)
			sig, _ := args.Get(signatureParams[i])
			signatureValues = append(signatureValues, sig)
		}
	}

	for i, v := range orderValues {
		fields, ok := v.(*types.Record)
		if !ok {
			ce.logger.Sugar().Debugw("Ignoring order argument that is not a record",
				"method", method.Name,
				"kind", kindOf(v),
			)
			continue
		}
		hash, err := HashOrder(fields)
		if err != nil {
			return errors.Wrapf(err, "failed to hash order %d of %s", i, method.Name)
		}
		call.Orders = append(call.Orders, &types.Order{Fields: fields, Hash: hash})

		var sig types.Value
		if i < len(signatureValues) {
			sig = signatureValues[i]
		}
		call.Signatures = append(call.Signatures, sig)
	}
	return nil
}

func (ce *CallExtractor) innerPayload(args *types.Record) ([]byte, bool) {
	v, ok := args.Lookup(ce.config.WrapperDataField)
	if !ok {
		return nil, false
	}
	s, ok := v.(*types.Scalar)
	if !ok {
		return nil, false
	}
	data, err := hexutil.Decode(s.String())
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func sequenceField(args *types.Record, name string) []types.Value {
	v, ok := args.Get(name)
	if !ok {
		return nil
	}
	if seq, ok := v.(types.Sequence); ok {
		return seq
	}
	return nil
}

func kindOf(v types.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
