package schemaRegistry

import (
	"encoding/json"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MethodDescriptor is a single entry of an ABI document. Only the fields
// needed for filtering are decoded eagerly; Raw is handed to the ABI parser.
type MethodDescriptor struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

func (md MethodDescriptor) IsFunction() bool {
	// an entry without a type defaults to a function in the ABI JSON format
	return md.Type == "function" || md.Type == ""
}

// MethodSchema is an immutable, resolved function definition.
type MethodSchema struct {
	Name      string
	Signature string
	Selector  [4]byte
	Inputs    abi.Arguments
	Shape     types.ArgumentShape
}

func (ms *MethodSchema) SelectorHex() string {
	return hexutil.Encode(ms.Selector[:])
}

const (
	ordersParam         = "orders"
	orderParam          = "order"
	leftOrderParam      = "leftOrder"
	rightOrderParam     = "rightOrder"
	SignaturesParam     = "signatures"
	SignatureParam      = "signature"
	LeftSignatureParam  = "leftSignature"
	RightSignatureParam = "rightSignature"
)

// OrderParams returns the parameter names holding orders for a shape, in
// extraction order.
func OrderParams(shape types.ArgumentShape) (orders []string, signatures []string) {
	switch shape {
	case types.ShapeOrderList:
		return []string{ordersParam}, []string{SignaturesParam}
	case types.ShapeSingleOrder:
		return []string{orderParam}, []string{SignatureParam}
	case types.ShapePairedOrders:
		return []string{leftOrderParam, rightOrderParam}, []string{LeftSignatureParam, RightSignatureParam}
	default:
		return nil, nil
	}
}

// shapeOf classifies a method by the names of its declared parameters.
// "orders" wins over "order", which wins over a left/right pair.
func shapeOf(inputs abi.Arguments) types.ArgumentShape {
	names := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		names[input.Name] = true
	}
	switch {
	case names[ordersParam]:
		return types.ShapeOrderList
	case names[orderParam]:
		return types.ShapeSingleOrder
	case names[leftOrderParam] && names[rightOrderParam]:
		return types.ShapePairedOrders
	default:
		return types.ShapeNone
	}
}
