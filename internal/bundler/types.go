package bundler

import (
	"math/big"

	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// UserOperation is the unpacked v0.7 JSON form bundlers accept.
type UserOperation struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

// Receipt is the subset of eth_getUserOperationReceipt the coordinator uses.
type Receipt struct {
	UserOpHash common.Hash `json:"userOpHash"`
	Success    bool        `json:"success"`
	Reason     string      `json:"reason,omitempty"`
	Receipt    struct {
		TransactionHash common.Hash `json:"transactionHash"`
	} `json:"receipt"`
}

// Unpack converts a packed operation into the bundler JSON form.
func Unpack(op *userop.PackedUserOperation) (*UserOperation, error) {
	verificationGas, callGas := userop.UnpackUint128(op.AccountGasLimits)
	priorityFee, maxFee := userop.UnpackUint128(op.GasFees)

	out := &UserOperation{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		CallData:             op.CallData,
		CallGasLimit:         hexBig(callGas),
		VerificationGasLimit: hexBig(verificationGas),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(maxFee),
		MaxPriorityFeePerGas: hexBig(priorityFee),
		Signature:            op.Signature,
	}

	fields, err := userop.ParsePaymasterAndData(op.PaymasterAndData)
	if err != nil {
		return nil, err
	}
	if fields != nil {
		paymaster := fields.Paymaster
		out.Paymaster = &paymaster
		out.PaymasterVerificationGasLimit = hexBig(fields.VerificationGasLimit)
		out.PaymasterPostOpGasLimit = hexBig(fields.PostOpGasLimit)
		out.PaymasterData = fields.Data
	}
	return out, nil
}

func hexBig(v *uint256.Int) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(v.ToBig())
}
