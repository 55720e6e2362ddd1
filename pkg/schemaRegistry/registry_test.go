package schemaRegistry

import (
	"testing"

	"github.com/dorothy-zbornak/0x-user-clusters/internal/testUtils"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func selectorOf(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func mustParse(t *testing.T, doc string) []MethodDescriptor {
	descriptors, err := ParseSchemaDocument([]byte(doc))
	require.NoError(t, err)
	return descriptors
}

func Test_Registry(t *testing.T) {
	t.Run("Should index functions by selector", func(t *testing.T) {
		r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.Erc20AbiJson)}, zaptest.NewLogger(t))
		require.Equal(t, 1, r.Len())

		schema, err := r.Resolve(selectorOf("transfer(address,uint256)"))
		require.NoError(t, err)
		assert.Equal(t, "transfer", schema.Name)
		assert.Equal(t, "transfer(address,uint256)", schema.Signature)
		assert.Equal(t, "0xa9059cbb", schema.SelectorHex())
		assert.Len(t, schema.Inputs, 2)
		assert.Equal(t, types.ShapeNone, schema.Shape)
	})

	t.Run("Should skip events and keep every exchange function", func(t *testing.T) {
		r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.ExchangeAbiJson)}, zaptest.NewLogger(t))
		assert.Equal(t, 9, r.Len())

		names := make([]string, 0)
		for _, m := range r.Methods() {
			names = append(names, m.Name)
		}
		assert.Equal(t, []string{
			"batchCancelOrders", "batchFillOrders", "cancelOrder", "cancelOrdersUpTo",
			"executeTransaction", "fillOrder", "marketBuyOrders", "matchOrders", "preSign",
		}, names)
	})

	t.Run("Should fail with ErrUnknownSelector for unknown selectors", func(t *testing.T) {
		r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.Erc20AbiJson)}, zaptest.NewLogger(t))
		_, err := r.Resolve([4]byte{0xde, 0xad, 0xbe, 0xef})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownSelector))
		assert.Contains(t, err.Error(), "0xdeadbeef")
	})

	t.Run("Should keep the first definition of a duplicated name", func(t *testing.T) {
		first := `[{"type": "function", "name": "cancel", "inputs": [{"name": "id", "type": "uint256"}]}]`
		second := `[{"type": "function", "name": "cancel", "inputs": [{"name": "id", "type": "bytes32"}]}]`

		r := NewRegistry([][]MethodDescriptor{mustParse(t, first), mustParse(t, second)}, zaptest.NewLogger(t))
		require.Equal(t, 1, r.Len())

		_, err := r.Resolve(selectorOf("cancel(uint256)"))
		assert.NoError(t, err)
		_, err = r.Resolve(selectorOf("cancel(bytes32)"))
		assert.True(t, errors.Is(err, ErrUnknownSelector))
	})

	t.Run("Should merge functions across documents", func(t *testing.T) {
		docs := [][]MethodDescriptor{
			mustParse(t, testUtils.ExchangeAbiJson),
			mustParse(t, testUtils.CompilerOutputJson(testUtils.Erc20AbiJson)),
		}
		r := NewRegistry(docs, zaptest.NewLogger(t))
		assert.Equal(t, 10, r.Len())
	})

	t.Run("Should skip descriptors the ABI parser rejects", func(t *testing.T) {
		doc := `[
			{"type": "function", "name": "broken", "inputs": [{"name": "x", "type": "uint7"}]},
			{"type": "function", "name": "ok", "inputs": []}
		]`
		r := NewRegistry([][]MethodDescriptor{mustParse(t, doc)}, zaptest.NewLogger(t))
		assert.Equal(t, 1, r.Len())
		_, err := r.Resolve(selectorOf("ok()"))
		assert.NoError(t, err)
	})

	t.Run("Should treat descriptors without a type as functions", func(t *testing.T) {
		doc := `[{"name": "ping", "inputs": []}]`
		r := NewRegistry([][]MethodDescriptor{mustParse(t, doc)}, zaptest.NewLogger(t))
		assert.Equal(t, 1, r.Len())
		_, err := r.Resolve(selectorOf("ping()"))
		assert.NoError(t, err)
	})

	t.Run("Should keep functions whose tuples have unnamed components", func(t *testing.T) {
		r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.SettlementAbiJson)}, zaptest.NewLogger(t))
		require.Equal(t, 2, r.Len())

		settle, err := r.Resolve(selectorOf("settleLegs((address,uint256)[])"))
		require.NoError(t, err)
		assert.Equal(t, "settleLegs", settle.Name)
		require.Len(t, settle.Inputs, 1)
		for _, name := range settle.Inputs[0].Type.Elem.TupleRawNames {
			assert.True(t, types.IsPositionalName(name), name)
		}
	})

	t.Run("Should ignore unnamed tuple outputs", func(t *testing.T) {
		r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.SettlementAbiJson)}, zaptest.NewLogger(t))

		info, err := r.Resolve(selectorOf("getOrderInfo(uint256)"))
		require.NoError(t, err)
		assert.Equal(t, hexutil.Encode(crypto.Keccak256([]byte("getOrderInfo(uint256)"))[:4]), info.SelectorHex())
		assert.Equal(t, "getOrderInfo(uint256)", info.Signature)
	})

	t.Run("Should let a later definition stand in for an unparseable one", func(t *testing.T) {
		broken := `[{"type": "function", "name": "cancel", "inputs": [{"name": "id", "type": "uint7"}]}]`
		valid := `[{"type": "function", "name": "cancel", "inputs": [{"name": "id", "type": "uint256"}]}]`

		r := NewRegistry([][]MethodDescriptor{mustParse(t, broken), mustParse(t, valid)}, zaptest.NewLogger(t))
		require.Equal(t, 1, r.Len())
		_, err := r.Resolve(selectorOf("cancel(uint256)"))
		assert.NoError(t, err)
	})
}

func Test_ArgumentShape(t *testing.T) {
	r := NewRegistry([][]MethodDescriptor{mustParse(t, testUtils.ExchangeAbiJson)}, zaptest.NewLogger(t))

	tests := []struct {
		name  string
		shape types.ArgumentShape
	}{
		{name: "fillOrder", shape: types.ShapeSingleOrder},
		{name: "cancelOrder", shape: types.ShapeSingleOrder},
		{name: "batchFillOrders", shape: types.ShapeOrderList},
		{name: "batchCancelOrders", shape: types.ShapeOrderList},
		{name: "marketBuyOrders", shape: types.ShapeOrderList},
		{name: "matchOrders", shape: types.ShapePairedOrders},
		{name: "executeTransaction", shape: types.ShapeNone},
		{name: "preSign", shape: types.ShapeNone},
	}
	byName := make(map[string]*MethodSchema)
	for _, m := range r.Methods() {
		byName[m.Name] = m
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := byName[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.shape, m.Shape)
		})
	}

	t.Run("Should resolve selectors with tuple signatures", func(t *testing.T) {
		m := byName["fillOrder"]
		assert.Equal(t,
			"fillOrder((address,address,address,address,uint256,uint256,uint256,uint256,uint256,uint256,bytes,bytes),uint256,bytes)",
			m.Signature,
		)
		resolved, err := r.Resolve(m.Selector)
		require.NoError(t, err)
		assert.Same(t, m, resolved)
		assert.Equal(t, hexutil.Encode(crypto.Keccak256([]byte(m.Signature))[:4]), m.SelectorHex())
	})
}

func Test_OrderParams(t *testing.T) {
	orders, signatures := OrderParams(types.ShapePairedOrders)
	assert.Equal(t, []string{"leftOrder", "rightOrder"}, orders)
	assert.Equal(t, []string{"leftSignature", "rightSignature"}, signatures)

	orders, signatures = OrderParams(types.ShapeNone)
	assert.Nil(t, orders)
	assert.Nil(t, signatures)
}
