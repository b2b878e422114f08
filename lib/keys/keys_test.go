package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Maphikza/safesocial-coordinator.git/lib/signatures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

const devMnemonic = "test test test test test test test test test test test junk"

func TestFromMnemonicKnownAccounts(t *testing.T) {
	tests := []struct {
		index uint32
		want  string
	}{
		{0, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"},
		{1, "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"},
		{2, "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"},
	}
	for _, tt := range tests {
		key, err := FromMnemonic(devMnemonic, "", OwnerPath(tt.index))
		require.NoError(t, err)
		assert.Equal(t, tt.want, signatures.AddressFromPubKey(key.PubKey()), "index %d", tt.index)
	}
}

func TestFromMnemonicRejectsBadInput(t *testing.T) {
	_, err := FromMnemonic("not a real mnemonic", "", OwnerPath(0))
	assert.Error(t, err)

	_, err = FromMnemonic(devMnemonic, "", "m/44'/sixty'/0'")
	assert.Error(t, err)
}

func TestNewMnemonic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(mnemonic), 24)
	assert.True(t, bip39.IsMnemonicValid(mnemonic))
}

func TestOwnerPath(t *testing.T) {
	assert.Equal(t, "m/44'/60'/0'/0/7", OwnerPath(7))
}

func TestEncryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt(devMnemonic, "hunter2")
	require.NoError(t, err)
	assert.Len(t, strings.Split(sealed, ":"), 3)
	assert.NotContains(t, sealed, "junk")

	opened, err := Decrypt(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, devMnemonic, opened)

	_, err = Decrypt(sealed, "hunter3")
	assert.Error(t, err)
	_, err = Decrypt("abc", "hunter2")
	assert.Error(t, err)
}

func TestKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owners", "alice.env")
	require.NoError(t, SaveKeyFile(path, devMnemonic, "hunter2", 2))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	mnemonic, index, err := LoadKeyFile(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, devMnemonic, mnemonic)
	assert.Equal(t, uint32(2), index)

	_, _, err = LoadKeyFile(path, "wrong")
	assert.Error(t, err)
	_, _, err = LoadKeyFile(filepath.Join(t.TempDir(), "missing.env"), "hunter2")
	assert.Error(t, err)
}
