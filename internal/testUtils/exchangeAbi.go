package testUtils

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const orderComponents = `[
	{"name": "makerAddress", "type": "address"},
	{"name": "takerAddress", "type": "address"},
	{"name": "feeRecipientAddress", "type": "address"},
	{"name": "senderAddress", "type": "address"},
	{"name": "makerAssetAmount", "type": "uint256"},
	{"name": "takerAssetAmount", "type": "uint256"},
	{"name": "makerFee", "type": "uint256"},
	{"name": "takerFee", "type": "uint256"},
	{"name": "expirationTimeSeconds", "type": "uint256"},
	{"name": "salt", "type": "uint256"},
	{"name": "makerAssetData", "type": "bytes"},
	{"name": "takerAssetData", "type": "bytes"}
]`

// ExchangeAbiJson is a subset of the 0x v2 Exchange ABI.
var ExchangeAbiJson = strings.NewReplacer("ORDER", orderComponents).Replace(`[
	{
		"type": "function",
		"name": "fillOrder",
		"inputs": [
			{"name": "order", "type": "tuple", "components": ORDER},
			{"name": "takerAssetFillAmount", "type": "uint256"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "cancelOrder",
		"inputs": [
			{"name": "order", "type": "tuple", "components": ORDER}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "batchFillOrders",
		"inputs": [
			{"name": "orders", "type": "tuple[]", "components": ORDER},
			{"name": "takerAssetFillAmounts", "type": "uint256[]"},
			{"name": "signatures", "type": "bytes[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "batchCancelOrders",
		"inputs": [
			{"name": "orders", "type": "tuple[]", "components": ORDER}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "marketBuyOrders",
		"inputs": [
			{"name": "orders", "type": "tuple[]", "components": ORDER},
			{"name": "makerAssetFillAmount", "type": "uint256"},
			{"name": "signatures", "type": "bytes[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "matchOrders",
		"inputs": [
			{"name": "leftOrder", "type": "tuple", "components": ORDER},
			{"name": "rightOrder", "type": "tuple", "components": ORDER},
			{"name": "leftSignature", "type": "bytes"},
			{"name": "rightSignature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "executeTransaction",
		"inputs": [
			{"name": "salt", "type": "uint256"},
			{"name": "signerAddress", "type": "address"},
			{"name": "data", "type": "bytes"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "cancelOrdersUpTo",
		"inputs": [
			{"name": "targetOrderEpoch", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "preSign",
		"inputs": [
			{"name": "hash", "type": "bytes32"},
			{"name": "signerAddress", "type": "address"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "event",
		"name": "Fill",
		"anonymous": false,
		"inputs": [
			{"name": "makerAddress", "type": "address", "indexed": true}
		]
	}
]`)

// Erc20AbiJson holds a single unnamed-parameter transfer method.
const Erc20AbiJson = `[
	{
		"type": "function",
		"name": "transfer",
		"inputs": [
			{"name": "", "type": "address"},
			{"name": "", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

// SettlementAbiJson declares tuples whose components have no names, the way
// some compilers emit them for unnamed struct members and return values.
const SettlementAbiJson = `[
	{
		"type": "function",
		"name": "settleLegs",
		"inputs": [
			{"name": "legs", "type": "tuple[]", "components": [
				{"name": "", "type": "address"},
				{"name": "", "type": "uint256"}
			]}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getOrderInfo",
		"inputs": [{"name": "orderId", "type": "uint256"}],
		"outputs": [
			{"name": "", "type": "tuple", "components": [
				{"name": "", "type": "uint8"},
				{"name": "_", "type": "bytes32"}
			]}
		]
	}
]`

// SettlementLeg packs one settleLegs tuple; the field names match the
// placeholders given to its anonymous components.
type SettlementLeg struct {
	Positional0 common.Address
	Positional1 *big.Int
}

// CompilerOutputJson wraps an ABI list the way 0x compiler artifacts do.
func CompilerOutputJson(abiJson string) string {
	return `{"schemaVersion": "2.0.0", "contractName": "Exchange", "compilerOutput": {"abi": ` + abiJson + `}}`
}

// Order mirrors the 0x v2 order tuple for packing.
type Order struct {
	MakerAddress          common.Address
	TakerAddress          common.Address
	FeeRecipientAddress   common.Address
	SenderAddress         common.Address
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	ExpirationTimeSeconds *big.Int
	Salt                  *big.Int
	MakerAssetData        []byte
	TakerAssetData        []byte
}

var (
	MakerA        = common.HexToAddress("0x5409ed021d9299bf6814279a6a1411a7e866a631")
	MakerB        = common.HexToAddress("0x6ecbe1db9ef729cbe972c83fb886247691fb6beb")
	FeeRecipientA = common.HexToAddress("0xe36ea790bc9d7ab70c55260c66d52b1eca985f84")
	FeeRecipientB = common.HexToAddress("0xe834ec434daba538cd1b9fe1582052b880bd7e63")
	SenderA       = common.HexToAddress("0x78dc5d2d739606d31509c31d654056a45185ecb6")
	TokenAssetA   = common.FromHex("0xf47261b0000000000000000000000000e41d2489571d322189246dafa5ebde1f4699f498")
	TokenAssetB   = common.FromHex("0xf47261b0000000000000000000000000c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
)

// NewOrder builds a deterministic order; salt distinguishes otherwise equal orders.
func NewOrder(maker, feeRecipient common.Address, salt int64) Order {
	return Order{
		MakerAddress:          maker,
		TakerAddress:          common.Address{},
		FeeRecipientAddress:   feeRecipient,
		SenderAddress:         common.Address{},
		MakerAssetAmount:      big.NewInt(1000000000000000000),
		TakerAssetAmount:      big.NewInt(250000000000000000),
		MakerFee:              big.NewInt(0),
		TakerFee:              big.NewInt(0),
		ExpirationTimeSeconds: big.NewInt(1560000000),
		Salt:                  big.NewInt(salt),
		MakerAssetData:        TokenAssetA,
		TakerAssetData:        TokenAssetB,
	}
}

func ExchangeAbi(t testing.TB) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ExchangeAbiJson))
	if err != nil {
		t.Fatalf("Failed to parse exchange ABI: %v", err)
	}
	return parsed
}

func Erc20Abi(t testing.TB) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(Erc20AbiJson))
	if err != nil {
		t.Fatalf("Failed to parse ERC20 ABI: %v", err)
	}
	return parsed
}

// PackExchangeCall returns selector-prefixed call data for an Exchange method.
func PackExchangeCall(t testing.TB, method string, args ...interface{}) []byte {
	data, err := ExchangeAbi(t).Pack(method, args...)
	if err != nil {
		t.Fatalf("Failed to pack %s: %v", method, err)
	}
	return data
}

// PackErc20Transfer returns call data for transfer(address,uint256).
func PackErc20Transfer(t testing.TB, to common.Address, value int64) []byte {
	data, err := Erc20Abi(t).Pack("transfer", to, big.NewInt(value))
	if err != nil {
		t.Fatalf("Failed to pack transfer: %v", err)
	}
	return data
}

// ExecuteTransactionCall wraps inner call data in an executeTransaction meta-transaction.
func ExecuteTransactionCall(t testing.TB, signer common.Address, inner []byte) []byte {
	return PackExchangeCall(t, "executeTransaction", big.NewInt(42), signer, inner, []byte{0x04})
}
