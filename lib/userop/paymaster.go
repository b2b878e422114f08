package userop

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	paymasterAddressLength = common.AddressLength
	paymasterGasLength     = 16
	// PaymasterHeaderLength is paymaster(20) || verificationGas(16) || postOpGas(16).
	PaymasterHeaderLength = paymasterAddressLength + 2*paymasterGasLength
)

// PaymasterFields is the decoded form of paymasterAndData.
type PaymasterFields struct {
	Paymaster            common.Address
	VerificationGasLimit *uint256.Int
	PostOpGasLimit       *uint256.Int
	Data                 []byte
}

// BuildPaymasterAndData lays out the token paymaster's instructions:
// paymaster(20) || verificationGasLimit(16) || postOpGasLimit(16) || token(20).
func BuildPaymasterAndData(paymaster common.Address, verificationGas, postOpGas *uint256.Int, token common.Address) []byte {
	out := make([]byte, 0, PaymasterHeaderLength+common.AddressLength)
	out = append(out, paymaster.Bytes()...)
	out = append(out, uint128Bytes(verificationGas)...)
	out = append(out, uint128Bytes(postOpGas)...)
	out = append(out, token.Bytes()...)
	return out
}

// ParsePaymasterAndData splits paymasterAndData. Empty input means no paymaster.
func ParsePaymasterAndData(b []byte) (*PaymasterFields, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) < PaymasterHeaderLength {
		return nil, fmt.Errorf("paymasterAndData too short: %d bytes, need at least %d", len(b), PaymasterHeaderLength)
	}
	off := paymasterAddressLength
	return &PaymasterFields{
		Paymaster:            common.BytesToAddress(b[:off]),
		VerificationGasLimit: new(uint256.Int).SetBytes(b[off : off+paymasterGasLength]),
		PostOpGasLimit:       new(uint256.Int).SetBytes(b[off+paymasterGasLength : PaymasterHeaderLength]),
		Data:                 append([]byte(nil), b[PaymasterHeaderLength:]...),
	}, nil
}

func uint128Bytes(v *uint256.Int) []byte {
	full := Clamp128(v).Bytes32()
	return full[16:]
}
