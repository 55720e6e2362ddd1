package callExtractor

import (
	"math/big"
	"testing"

	"github.com/dorothy-zbornak/0x-user-clusters/internal/testUtils"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callDataDecoder"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const internalCall types.CallType = "delegatecall"

func newTestExtractor(t *testing.T, cfg *CallExtractorConfig) *CallExtractor {
	logger := zaptest.NewLogger(t)

	var docs [][]schemaRegistry.MethodDescriptor
	for _, doc := range []string{testUtils.ExchangeAbiJson, testUtils.Erc20AbiJson} {
		descriptors, err := schemaRegistry.ParseSchemaDocument([]byte(doc))
		require.NoError(t, err)
		docs = append(docs, descriptors)
	}
	registry := schemaRegistry.NewRegistry(docs, logger)
	decoder := callDataDecoder.NewCallDataDecoder(0, logger)
	return NewCallExtractor(registry, decoder, cfg, logger)
}

func ids(calls []*types.ExtractedCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Id
	}
	return out
}

func Test_ExtractCalls(t *testing.T) {
	ce := newTestExtractor(t, nil)
	orderA := testUtils.NewOrder(testUtils.MakerA, testUtils.FeeRecipientA, 1)
	orderB := testUtils.NewOrder(testUtils.MakerB, testUtils.FeeRecipientB, 2)
	sigA := []byte{0x01, 0x02}
	sigB := []byte{0x03}

	t.Run("Should extract a transfer without orders", func(t *testing.T) {
		to := common.HexToAddress("0xabc0000000000000000000000000000000000000")
		calls, err := ce.ExtractCalls(testUtils.PackErc20Transfer(t, to, 100), types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)

		assert.Equal(t, "transfer", calls[0].Id)
		assert.Empty(t, calls[0].Orders)
		assert.Empty(t, calls[0].Signatures)
		assert.Equal(t, uint64(0), calls[0].Fills)
		assert.Equal(t, uint64(0), calls[0].Updates)
	})

	t.Run("Should count a fill and an update for fillOrder", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "fillOrder", orderA, big.NewInt(5), sigA)
		calls, err := ce.ExtractCalls(data, types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)

		call := calls[0]
		assert.Equal(t, "fillOrder", call.Id)
		assert.Equal(t, uint64(1), call.Fills)
		assert.Equal(t, uint64(1), call.Updates)
		require.Len(t, call.Orders, 1)

		order := call.Orders[0]
		assert.Equal(t, testUtils.MakerA.Hex(), order.MakerAddress())
		assert.Equal(t, testUtils.FeeRecipientA.Hex(), order.FeeRecipientAddress())
		assert.Equal(t, common.Address{}.Hex(), order.SenderAddress())
		assert.Equal(t, "1", order.Fields.StringField("salt"))
		assert.Equal(t, hexutil.Encode(testUtils.TokenAssetA), order.Fields.StringField("makerAssetData"))
		assert.Equal(t, 12, order.Fields.Len())

		expected, err := HashOrder(order.Fields)
		require.NoError(t, err)
		assert.Equal(t, expected, order.Hash)

		require.Len(t, call.Signatures, 1)
		assert.Equal(t, "0x0102", call.Signatures[0].(*types.Scalar).String())
	})

	t.Run("Should count only an update for cancelOrder", func(t *testing.T) {
		calls, err := ce.ExtractCalls(testUtils.PackExchangeCall(t, "cancelOrder", orderA), types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, uint64(0), calls[0].Fills)
		assert.Equal(t, uint64(1), calls[0].Updates)
		require.Len(t, calls[0].Orders, 1)
		require.Len(t, calls[0].Signatures, 1)
		assert.Nil(t, calls[0].Signatures[0])
	})

	t.Run("Should not count internal calls", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "fillOrder", orderA, big.NewInt(5), sigA)
		calls, err := ce.ExtractCalls(data, internalCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Len(t, calls[0].Orders, 1)
		assert.Equal(t, uint64(0), calls[0].Fills)
		assert.Equal(t, uint64(0), calls[0].Updates)
	})

	t.Run("Should give orders the same hash wherever they appear", func(t *testing.T) {
		single, err := ce.ExtractCalls(testUtils.PackExchangeCall(t, "cancelOrder", orderB), types.CallTypeCall)
		require.NoError(t, err)
		batch, err := ce.ExtractCalls(
			testUtils.PackExchangeCall(t, "batchCancelOrders", []testUtils.Order{orderA, orderB}),
			types.CallTypeCall,
		)
		require.NoError(t, err)
		require.Len(t, batch[0].Orders, 2)
		assert.Equal(t, single[0].Orders[0].Hash, batch[0].Orders[1].Hash)
		assert.NotEqual(t, batch[0].Orders[0].Hash, batch[0].Orders[1].Hash)
	})

	t.Run("Should extract order lists with their signatures", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "batchFillOrders",
			[]testUtils.Order{orderA, orderB},
			[]*big.Int{big.NewInt(1), big.NewInt(2)},
			[][]byte{sigA, sigB},
		)
		calls, err := ce.ExtractCalls(data, types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)

		call := calls[0]
		assert.Equal(t, uint64(2), call.Fills)
		assert.Equal(t, uint64(2), call.Updates)
		require.Len(t, call.Orders, 2)
		assert.Equal(t, testUtils.MakerA.Hex(), call.Orders[0].MakerAddress())
		assert.Equal(t, testUtils.MakerB.Hex(), call.Orders[1].MakerAddress())
		require.Len(t, call.Signatures, 2)
		assert.Equal(t, "0x03", call.Signatures[1].(*types.Scalar).String())
	})

	t.Run("Should pad missing signatures with nil", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "batchCancelOrders", []testUtils.Order{orderA, orderB})
		calls, err := ce.ExtractCalls(data, types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), calls[0].Fills)
		assert.Equal(t, uint64(2), calls[0].Updates)
		assert.Equal(t, []types.Value{nil, nil}, calls[0].Signatures)
	})

	t.Run("Should treat buy methods as fills", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "marketBuyOrders",
			[]testUtils.Order{orderA}, big.NewInt(10), [][]byte{sigA},
		)
		calls, err := ce.ExtractCalls(data, types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), calls[0].Fills)
		assert.Equal(t, uint64(1), calls[0].Updates)
	})

	t.Run("Should extract matched orders left then right", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "matchOrders", orderA, orderB, sigA, sigB)
		calls, err := ce.ExtractCalls(data, types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)

		call := calls[0]
		require.Len(t, call.Orders, 2)
		assert.Equal(t, testUtils.MakerA.Hex(), call.Orders[0].MakerAddress())
		assert.Equal(t, testUtils.MakerB.Hex(), call.Orders[1].MakerAddress())
		assert.Equal(t, "0x0102", call.Signatures[0].(*types.Scalar).String())
		assert.Equal(t, "0x03", call.Signatures[1].(*types.Scalar).String())
		assert.Equal(t, uint64(2), call.Fills)
		assert.Equal(t, uint64(2), call.Updates)
	})

	t.Run("Should unwrap meta transactions", func(t *testing.T) {
		inner := testUtils.PackExchangeCall(t, "fillOrder", orderA, big.NewInt(5), sigA)
		calls, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner), types.CallTypeCall)
		require.NoError(t, err)

		assert.Equal(t, []string{"executeTransaction", "wrapped_fillOrder"}, ids(calls))
		assert.Empty(t, calls[0].Orders)
		assert.Equal(t, uint64(0), calls[0].Updates)
		require.Len(t, calls[1].Orders, 1)
		assert.Equal(t, uint64(1), calls[1].Fills)
		assert.Equal(t, uint64(1), calls[1].Updates)
	})

	t.Run("Should pass the invocation kind to wrapped calls", func(t *testing.T) {
		inner := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		calls, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner), internalCall)
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, uint64(0), calls[1].Updates)
	})

	t.Run("Should prefix every level of nested wrappers", func(t *testing.T) {
		inner := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		middle := testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner)
		outer := testUtils.ExecuteTransactionCall(t, testUtils.SenderA, middle)

		calls, err := ce.ExtractCalls(outer, types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"executeTransaction",
			"wrapped_executeTransaction",
			"wrapped_wrapped_cancelOrder",
		}, ids(calls))
	})

	t.Run("Should return only the wrapper when the inner payload is empty", func(t *testing.T) {
		calls, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, []byte{}), types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, []string{"executeTransaction"}, ids(calls))
	})

	t.Run("Should fail on a wrapped unknown selector", func(t *testing.T) {
		inner := []byte{0xde, 0xad, 0xbe, 0xef}
		_, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner), types.CallTypeCall)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schemaRegistry.ErrUnknownSelector))
	})

	t.Run("Should fail on an unknown selector", func(t *testing.T) {
		_, err := ce.ExtractCalls([]byte{0xde, 0xad, 0xbe, 0xef, 0x00}, types.CallTypeCall)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schemaRegistry.ErrUnknownSelector))
	})

	t.Run("Should fail on payloads shorter than a selector", func(t *testing.T) {
		_, err := ce.ExtractCalls([]byte{0xa9, 0x05, 0x9c}, types.CallTypeCall)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCallDataTooShort))
	})

	t.Run("Should keep the call when its arguments fail to decode", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "fillOrder", orderA, big.NewInt(5), sigA)
		calls, err := ce.ExtractCalls(data[:40], types.CallTypeCall)
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "fillOrder", calls[0].Id)
		assert.Empty(t, calls[0].Orders)
		assert.Equal(t, uint64(0), calls[0].Fills)
		assert.Equal(t, uint64(0), calls[0].Updates)
	})

	t.Run("Should decode hex call data", func(t *testing.T) {
		data := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		calls, err := ce.ExtractHexCalls(hexutil.Encode(data), types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, []string{"cancelOrder"}, ids(calls))

		_, err = ce.ExtractHexCalls("a9059cbb", types.CallTypeCall)
		assert.Error(t, err)
		_, err = ce.ExtractHexCalls("0xzz", types.CallTypeCall)
		assert.Error(t, err)
	})
}

func Test_CallExtractorConfig(t *testing.T) {
	orderA := testUtils.NewOrder(testUtils.MakerA, testUtils.FeeRecipientA, 1)

	t.Run("Should use a custom wrapped prefix", func(t *testing.T) {
		ce := newTestExtractor(t, &CallExtractorConfig{WrappedPrefix: "tx_"})
		inner := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		calls, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner), types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, []string{"executeTransaction", "tx_cancelOrder"}, ids(calls))
	})

	t.Run("Should not unwrap when another method is the wrapper", func(t *testing.T) {
		ce := newTestExtractor(t, &CallExtractorConfig{WrapperMethod: "preSign"})
		inner := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		calls, err := ce.ExtractCalls(testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner), types.CallTypeCall)
		require.NoError(t, err)
		assert.Equal(t, []string{"executeTransaction"}, ids(calls))
	})

	t.Run("Should bound the depth of nested wrappers", func(t *testing.T) {
		ce := newTestExtractor(t, &CallExtractorConfig{MaxDepth: 1})
		inner := testUtils.PackExchangeCall(t, "cancelOrder", orderA)
		once := testUtils.ExecuteTransactionCall(t, testUtils.SenderA, inner)
		twice := testUtils.ExecuteTransactionCall(t, testUtils.SenderA, once)

		calls, err := ce.ExtractCalls(once, types.CallTypeCall)
		require.NoError(t, err)
		assert.Len(t, calls, 2)

		_, err = ce.ExtractCalls(twice, types.CallTypeCall)
		require.Error(t, err)
		assert.True(t, errors.Is(err, callDataDecoder.ErrMaxDepthExceeded))
	})

	t.Run("Should apply defaults", func(t *testing.T) {
		ce := newTestExtractor(t, &CallExtractorConfig{})
		assert.Equal(t, DefaultWrapperMethod, ce.config.WrapperMethod)
		assert.Equal(t, DefaultWrapperDataField, ce.config.WrapperDataField)
		assert.Equal(t, DefaultWrappedPrefix, ce.config.WrappedPrefix)
		assert.Equal(t, callDataDecoder.DefaultMaxDepth, ce.config.MaxDepth)
	})
}
