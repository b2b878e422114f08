package signatures

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSignature(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, SignatureLength)
}

func TestValidate(t *testing.T) {
	valid := hexutil.Encode(fakeSignature(0xab))
	require.Len(t, valid, SignatureHexLength)

	raw, err := Validate(valid)
	require.NoError(t, err)
	assert.Equal(t, fakeSignature(0xab), raw)

	tests := []struct {
		name string
		sig  string
	}{
		{"no prefix", strings.TrimPrefix(valid, "0x") + "ab"},
		{"too short", valid[:SignatureHexLength-2]},
		{"too long", valid + "ab"},
		{"not hex", "0x" + strings.Repeat("zz", SignatureLength)},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.sig)
			assert.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}

func TestConcatenateKeepsOrder(t *testing.T) {
	sigs := [][]byte{fakeSignature(3), fakeSignature(1), fakeSignature(2)}
	blob := Concatenate(sigs)

	require.Len(t, blob, 3*SignatureLength)
	assert.Equal(t, byte(3), blob[0])
	assert.Equal(t, byte(1), blob[SignatureLength])
	assert.Equal(t, byte(2), blob[2*SignatureLength])
}

func TestConcatenateEmpty(t *testing.T) {
	assert.Empty(t, Concatenate(nil))
	assert.Equal(t, "0x", ConcatenateHex(nil))

	sigs, err := SplitHex("0x")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestSplitRoundTrip(t *testing.T) {
	for n := 0; n <= 5; n++ {
		sigs := make([][]byte, n)
		for i := range sigs {
			sigs[i] = fakeSignature(byte(i + 1))
		}

		got, err := Split(Concatenate(sigs))
		require.NoError(t, err)
		assert.Equal(t, sigs, got, "n=%d", n)

		gotHex, err := SplitHex(ConcatenateHex(sigs))
		require.NoError(t, err)
		assert.Equal(t, sigs, gotHex, "n=%d", n)
	}
}

func TestSplitRejectsPartialSignature(t *testing.T) {
	_, err := Split(make([]byte, SignatureLength+1))
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = SplitHex("0xabc")
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestSortedBySignerDoesNotMutate(t *testing.T) {
	in := []SignerSignature{
		{Signer: "0xCC00000000000000000000000000000000000000", Signature: fakeSignature(3)},
		{Signer: "0xaa00000000000000000000000000000000000000", Signature: fakeSignature(1)},
		{Signer: "0xbb00000000000000000000000000000000000000", Signature: fakeSignature(2)},
	}
	sorted := SortedBySigner(in)

	assert.Equal(t, byte(1), sorted[0].Signature[0])
	assert.Equal(t, byte(2), sorted[1].Signature[0])
	assert.Equal(t, byte(3), sorted[2].Signature[0])
	assert.Equal(t, byte(3), in[0].Signature[0])
}

func TestSignAndRecover(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	want := AddressFromPubKey(key.PubKey())

	digest := PersonalDigest([32]byte{1, 2, 3})
	sig, err := Sign(key, digest)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// 0/1 style recovery ids are accepted too.
	legacy := append([]byte(nil), sig...)
	legacy[64] -= 27
	got, err = RecoverSigner(digest, legacy)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A different digest recovers a different address.
	other, err := RecoverSigner(PersonalDigest([32]byte{9}), sig)
	if err == nil {
		assert.NotEqual(t, want, other)
	}
}

func TestRecoverSignerRejectsBadRecoveryID(t *testing.T) {
	sig := fakeSignature(1)
	sig[64] = 35
	_, err := RecoverSigner([32]byte{}, sig)
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = RecoverSigner([32]byte{}, sig[:64])
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestTextHashKnownVector(t *testing.T) {
	// personal_sign("hello") as produced by any EIP-191 wallet.
	digest := TextHash([]byte("hello"))
	assert.Equal(t, "0x50b2c43fd39106bafbba0da34fc430e1f91e3c96ea2acee2bc34119f92b37750", hexutil.Encode(digest[:]))
}
