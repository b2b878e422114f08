package userop

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Wallet contract functions the coordinator encodes calls for. The threshold
// setter keeps the deployed contract's spelling.
const walletABIJSON = `[
	{"type":"function","name":"execute","stateMutability":"nonpayable","outputs":[],
	 "inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"functionData","type":"bytes"}]},
	{"type":"function","name":"addOwner","stateMutability":"nonpayable","outputs":[],
	 "inputs":[{"name":"owner","type":"address"}]},
	{"type":"function","name":"removeOwner","stateMutability":"nonpayable","outputs":[],
	 "inputs":[{"name":"owner","type":"address"}]},
	{"type":"function","name":"updateThreshould","stateMutability":"nonpayable","outputs":[],
	 "inputs":[{"name":"newThreshould","type":"uint256"}]}
]`

var walletABI = mustParseABI(walletABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid wallet ABI: %v", err))
	}
	return parsed
}

// ExecuteCallData encodes wallet.execute(to, value, data).
func ExecuteCallData(to common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	packed, err := walletABI.Pack("execute", to, orZero(value).ToBig(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute call: %w", err)
	}
	return packed, nil
}

// AddOwnerData encodes wallet.addOwner(owner).
func AddOwnerData(owner common.Address) ([]byte, error) {
	return walletABI.Pack("addOwner", owner)
}

// RemoveOwnerData encodes wallet.removeOwner(owner).
func RemoveOwnerData(owner common.Address) ([]byte, error) {
	return walletABI.Pack("removeOwner", owner)
}

// ChangeThresholdData encodes the wallet's threshold setter.
func ChangeThresholdData(threshold int) ([]byte, error) {
	return walletABI.Pack("updateThreshould", big.NewInt(int64(threshold)))
}
