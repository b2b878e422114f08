// Package signatures implements the wire format the multisig wallet contract
// expects for owner signatures: individual 65-byte r||s||v values,
// concatenated in signing order into a single blob.
package signatures

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// SignatureLength is r (32) + s (32) + v (1).
	SignatureLength = 65
	// SignatureHexLength is the 0x prefix plus two hex characters per byte.
	SignatureHexLength = 2 + 2*SignatureLength
)

var ErrMalformedSignature = errors.New("malformed signature")

// Validate checks the hex encoding of a single signature and returns its bytes.
func Validate(sig string) ([]byte, error) {
	if !strings.HasPrefix(sig, "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrMalformedSignature)
	}
	if len(sig) != SignatureHexLength {
		return nil, fmt.Errorf("%w: expected %d characters, got %d", ErrMalformedSignature, SignatureHexLength, len(sig))
	}
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return raw, nil
}

// Concatenate joins signatures in the order given. The contract does its own
// ordering and validation, so no reordering happens here. An empty input
// yields an empty payload.
func Concatenate(sigs [][]byte) []byte {
	out := make([]byte, 0, len(sigs)*SignatureLength)
	for _, sig := range sigs {
		out = append(out, sig...)
	}
	return out
}

// ConcatenateHex is Concatenate encoded as 0x-prefixed hex ("0x" when empty).
func ConcatenateHex(sigs [][]byte) string {
	return hexutil.Encode(Concatenate(sigs))
}

// Split is the inverse of Concatenate.
func Split(blob []byte) ([][]byte, error) {
	if len(blob)%SignatureLength != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of %d", ErrMalformedSignature, len(blob), SignatureLength)
	}
	sigs := make([][]byte, 0, len(blob)/SignatureLength)
	for i := 0; i < len(blob); i += SignatureLength {
		sig := make([]byte, SignatureLength)
		copy(sig, blob[i:i+SignatureLength])
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// SplitHex decodes a 0x-prefixed concatenation and splits it.
func SplitHex(blob string) ([][]byte, error) {
	raw, err := hexutil.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return Split(raw)
}

// SignerSignature pairs a signature with the address that produced it.
type SignerSignature struct {
	Signer    string
	Signature []byte
}

// SortedBySigner returns a copy ordered by ascending signer address. It is for
// listing signatures to people and must never feed Concatenate.
func SortedBySigner(in []SignerSignature) []SignerSignature {
	out := make([]SignerSignature, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Signer) < strings.ToLower(out[j].Signer)
	})
	return out
}

// TextHash is the EIP-191 personal_sign digest of msg.
func TextHash(msg []byte) [32]byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	var digest [32]byte
	copy(digest[:], utils.Keccak256([]byte(prefix), msg))
	return digest
}

// PersonalDigest is what a browser wallet signs when asked to personal_sign a
// 32-byte operation hash.
func PersonalDigest(hash [32]byte) [32]byte {
	return TextHash(hash[:])
}

// RecoverSigner returns the normalized address whose key produced sig over
// digest. v may be 0/1 or 27/28.
func RecoverSigner(digest [32]byte, sig []byte) (string, error) {
	if len(sig) != SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[64])
	}

	// btcec expects the recovery header first.
	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return AddressFromPubKey(pub), nil
}

// AddressFromPubKey derives the Ethereum address of a secp256k1 public key.
func AddressFromPubKey(pub *btcec.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	return hexutil.Encode(utils.Keccak256(uncompressed[1:])[12:])
}

// Sign produces an r||s||v signature with v in {27, 28} over digest.
func Sign(key *btcec.PrivateKey, digest [32]byte) ([]byte, error) {
	compact := ecdsa.SignCompact(key, digest[:], false)
	if compact[0] != 27 && compact[0] != 28 {
		return nil, fmt.Errorf("unexpected recovery header %d", compact[0])
	}

	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}
