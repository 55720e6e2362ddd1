package types

import (
	"bytes"
	"fmt"
)

const (
	MakerAddressField        = "makerAddress"
	FeeRecipientAddressField = "feeRecipientAddress"
	SenderAddressField       = "senderAddress"
)

// ArgumentShape describes where a method keeps its order arguments. It is
// derived once from the declared parameter names of the method.
type ArgumentShape int

const (
	ShapeNone ArgumentShape = iota
	// ShapeOrderList methods take "orders" and "signatures" arrays.
	ShapeOrderList
	// ShapeSingleOrder methods take a single "order" and "signature".
	ShapeSingleOrder
	// ShapePairedOrders methods take "leftOrder"/"rightOrder" and their signatures.
	ShapePairedOrders
)

func (s ArgumentShape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeOrderList:
		return "orderList"
	case ShapeSingleOrder:
		return "singleOrder"
	case ShapePairedOrders:
		return "pairedOrders"
	default:
		return fmt.Sprintf("ArgumentShape(%d)", int(s))
	}
}

// Order is a normalized order record with its content hash.
type Order struct {
	Fields *Record
	Hash   string
}

func (o *Order) MakerAddress() string {
	return o.Fields.StringField(MakerAddressField)
}

func (o *Order) FeeRecipientAddress() string {
	return o.Fields.StringField(FeeRecipientAddressField)
}

func (o *Order) SenderAddress() string {
	return o.Fields.StringField(SenderAddressField)
}

// MarshalJSON renders the order fields followed by its hash.
func (o *Order) MarshalJSON() ([]byte, error) {
	record := o.Fields
	if record == nil {
		record = NewRecord()
	}
	fields, err := MarshalCanonical(record)
	if err != nil {
		return nil, err
	}
	hash, err := MarshalCanonical(NewScalar(o.Hash))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(bytes.TrimSuffix(fields, []byte("}")))
	if len(record.Fields) > 0 {
		buf.WriteByte(',')
	}
	buf.WriteString(`"hash":`)
	buf.Write(hash)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ExtractedCall is one logical call decoded from a payload. Wrapped calls
// unwrapped from a meta-transaction carry a prefixed Id.
type ExtractedCall struct {
	Id         string   `json:"id"`
	Orders     []*Order `json:"orders"`
	Signatures []Value  `json:"signatures"`
	Fills      uint64   `json:"fills"`
	Updates    uint64   `json:"updates"`
}
