// Package userop builds ERC-4337 v0.7 packed user operations and computes the
// hash every wallet owner signs.
package userop

import (
	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// DefaultEntryPoint is the canonical EntryPoint v0.7 deployment.
	DefaultEntryPoint = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	// MaxUint128 is the ceiling every packed half is clamped to.
	MaxUint128 = new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 128)
)

// PackedUserOperation mirrors the EntryPoint v0.7 struct.
type PackedUserOperation struct {
	Sender             common.Address
	Nonce              *uint256.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte // verificationGasLimit << 128 | callGasLimit
	PreVerificationGas *uint256.Int
	GasFees            [32]byte // maxPriorityFeePerGas << 128 | maxFeePerGas
	PaymasterAndData   []byte
	Signature          []byte
}

// GasParams are the gas and fee values that end up packed into an operation.
type GasParams struct {
	VerificationGasLimit *uint256.Int
	CallGasLimit         *uint256.Int
	PreVerificationGas   *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	MaxFeePerGas         *uint256.Int
}

// DefaultGasParams returns limits of 500000 and fees of 1 gwei priority / 5 gwei max.
func DefaultGasParams() GasParams {
	return GasParams{
		VerificationGasLimit: uint256.NewInt(500000),
		CallGasLimit:         uint256.NewInt(500000),
		PreVerificationGas:   uint256.NewInt(500000),
		MaxPriorityFeePerGas: uint256.NewInt(1_000_000_000),
		MaxFeePerGas:         uint256.NewInt(5_000_000_000),
	}
}

// New assembles an unsigned operation with an empty initCode.
func New(sender common.Address, nonce *uint256.Int, callData []byte, gas GasParams, paymasterAndData []byte) *PackedUserOperation {
	return &PackedUserOperation{
		Sender:             sender,
		Nonce:              orZero(nonce),
		InitCode:           []byte{},
		CallData:           callData,
		AccountGasLimits:   PackUint128(gas.VerificationGasLimit, gas.CallGasLimit),
		PreVerificationGas: orZero(gas.PreVerificationGas),
		GasFees:            PackUint128(gas.MaxPriorityFeePerGas, gas.MaxFeePerGas),
		PaymasterAndData:   paymasterAndData,
	}
}

// Clamp128 caps v at 2^128-1. Values are clamped, never wrapped.
func Clamp128(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	if v.Gt(MaxUint128) {
		return new(uint256.Int).Set(MaxUint128)
	}
	return new(uint256.Int).Set(v)
}

// PackUint128 places high in the upper 128 bits and low in the lower 128
// bits of one big-endian word.
func PackUint128(high, low *uint256.Int) [32]byte {
	packed := new(uint256.Int).Lsh(Clamp128(high), 128)
	packed.Or(packed, Clamp128(low))
	return packed.Bytes32()
}

// UnpackUint128 splits a word built by PackUint128.
func UnpackUint128(word [32]byte) (high, low *uint256.Int) {
	high = new(uint256.Int).SetBytes(word[:16])
	low = new(uint256.Int).SetBytes(word[16:])
	return high, low
}

// Hash computes the v0.7 user operation hash:
//
//	inner = keccak256(abi.encode(sender, nonce, keccak256(initCode), keccak256(callData),
//	                             accountGasLimits, preVerificationGas, gasFees, keccak256(paymasterAndData)))
//	hash  = keccak256(abi.encode(inner, entryPoint, chainId))
//
// Every field is a fixed 32-byte word.
func Hash(op *PackedUserOperation, entryPoint common.Address, chainID *uint256.Int) common.Hash {
	packed := make([]byte, 0, 8*32)
	packed = append(packed, common.LeftPadBytes(op.Sender.Bytes(), 32)...)
	packed = append(packed, word(op.Nonce)...)
	packed = append(packed, utils.Keccak256(op.InitCode)...)
	packed = append(packed, utils.Keccak256(op.CallData)...)
	packed = append(packed, op.AccountGasLimits[:]...)
	packed = append(packed, word(op.PreVerificationGas)...)
	packed = append(packed, op.GasFees[:]...)
	packed = append(packed, utils.Keccak256(op.PaymasterAndData)...)

	inner := utils.Keccak256(packed)

	outer := make([]byte, 0, 3*32)
	outer = append(outer, inner...)
	outer = append(outer, common.LeftPadBytes(entryPoint.Bytes(), 32)...)
	outer = append(outer, word(chainID)...)

	return common.BytesToHash(utils.Keccak256(outer))
}

func word(v *uint256.Int) []byte {
	b := orZero(v).Bytes32()
	return b[:]
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
