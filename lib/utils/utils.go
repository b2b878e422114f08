package utils

import (
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// NormalizeAddress is the single place an address is brought into canonical
// form. Everything inside the coordinator compares normalized addresses with
// plain equality.
func NormalizeAddress(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", fmt.Errorf("invalid address %q: missing 0x prefix", addr)
	}
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex()), nil
}

// SameAddress reports whether two addresses refer to the same account,
// ignoring case. Invalid input never matches.
func SameAddress(a, b string) bool {
	na, err := NormalizeAddress(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeAddress(b)
	if err != nil {
		return false
	}
	return na == nb
}

// ChecksumAddress returns the EIP-55 form for display.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

func PrintAddresses(label string, addresses []string) {
	log.Printf("%s addresses:", label)
	for i, addr := range addresses {
		log.Printf("%s address %d: %s", label, i, ChecksumAddress(addr))
	}
}
