package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/scrypt"
)

const (
	encryptedMnemonicKey = "ENCRYPTED_MNEMONIC"
	accountIndexKey      = "ACCOUNT_INDEX"
)

// Encrypt seals plaintext under a scrypt-derived key. The result is
// salt:nonce:ciphertext, each base64.
func Encrypt(plaintext, password string) (string, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	aesgcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(salt) + ":" +
		base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

func Decrypt(ciphertext, password string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid ciphertext format")
	}

	decoded := make([][]byte, 3)
	for i, part := range parts {
		b, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return "", fmt.Errorf("invalid ciphertext format: %v", err)
		}
		decoded[i] = b
	}

	aesgcm, err := newGCM(password, decoded[0])
	if err != nil {
		return "", err
	}
	if len(decoded[1]) != aesgcm.NonceSize() {
		return "", fmt.Errorf("invalid ciphertext format")
	}
	plaintext, err := aesgcm.Open(nil, decoded[1], decoded[2], nil)
	if err != nil {
		return "", fmt.Errorf("incorrect password or corrupted data")
	}
	return string(plaintext), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SaveKeyFile writes mnemonic, encrypted with password, and the default
// account index to an env file at path.
func SaveKeyFile(path, mnemonic, password string, index uint32) error {
	encrypted, err := Encrypt(mnemonic, password)
	if err != nil {
		return fmt.Errorf("failed to encrypt mnemonic: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %v", err)
	}
	err = godotenv.Write(map[string]string{
		encryptedMnemonicKey: encrypted,
		accountIndexKey:      fmt.Sprint(index),
	}, path)
	if err != nil {
		return fmt.Errorf("failed to save key file: %v", err)
	}
	return os.Chmod(path, 0600)
}

// LoadKeyFile decrypts the mnemonic stored by SaveKeyFile and returns it
// with the saved account index.
func LoadKeyFile(path, password string) (string, uint32, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read key file: %v", err)
	}
	encrypted := env[encryptedMnemonicKey]
	if encrypted == "" {
		return "", 0, fmt.Errorf("%s has no %s", path, encryptedMnemonicKey)
	}

	var index uint64
	if v := env[accountIndexKey]; v != "" {
		if index, err = strconv.ParseUint(v, 10, 31); err != nil {
			return "", 0, fmt.Errorf("invalid %s: %v", accountIndexKey, err)
		}
	}

	mnemonic, err := Decrypt(encrypted, password)
	if err != nil {
		return "", 0, err
	}
	return mnemonic, uint32(index), nil
}
