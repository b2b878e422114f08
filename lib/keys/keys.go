// Package keys derives owner signing keys from BIP-39 mnemonics along the
// Ethereum BIP-44 path.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// OwnerPath is the BIP-44 path of the index-th Ethereum account.
func OwnerPath(index uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// NewMnemonic returns a fresh 24 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %v", err)
	}
	return bip39.NewMnemonic(entropy)
}

// FromMnemonic derives the private key at path from mnemonic.
func FromMnemonic(mnemonic, passphrase, path string) (*btcec.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.TrimSpace(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %v", err)
	}

	// The network only affects serialization, not derivation.
	rootKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create root key: %v", err)
	}

	key, err := DeriveKeyFromPath(rootKey, path)
	if err != nil {
		return nil, err
	}
	return key.ECPrivKey()
}

// DeriveKeyFromPath derives the extended key from the given path
func DeriveKeyFromPath(rootKey *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "m"), "/")
	if path == "" {
		return rootKey, nil
	}

	key := rootKey
	for _, part := range strings.Split(path, "/") {
		var index uint32
		if strings.HasSuffix(part, "'") {
			index64, err := strconv.ParseUint(part[:len(part)-1], 10, 31)
			if err != nil {
				return nil, fmt.Errorf("invalid path component %s: %v", part, err)
			}
			index = hdkeychain.HardenedKeyStart + uint32(index64)
		} else {
			index64, err := strconv.ParseUint(part, 10, 31)
			if err != nil {
				return nil, fmt.Errorf("invalid path component %s: %v", part, err)
			}
			index = uint32(index64)
		}

		var err error
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key: %v", err)
		}
	}
	return key, nil
}
