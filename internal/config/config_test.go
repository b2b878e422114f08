package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	viper.Reset()
	t.Cleanup(func() {
		os.Chdir(wd)
		viper.Reset()
	})
	return dir
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	dir := inTempDir(t)

	require.NoError(t, LoadConfig())
	assert.FileExists(t, filepath.Join(dir, "config.json"))
	assert.Equal(t, "./dev_coordinator.db", viper.GetString("db_path"))
	assert.Equal(t, 9003, viper.GetInt("api_port"))
	assert.True(t, viper.GetBool("strict_nonce"))
}

func TestServiceOptionsDefaults(t *testing.T) {
	inTempDir(t)
	setDefaults()

	opts, err := ServiceOptions()
	require.NoError(t, err)
	assert.Equal(t, userop.DefaultEntryPoint, opts.EntryPoint)
	assert.Equal(t, uint64(11155111), opts.ChainID)
	assert.Equal(t, uint64(500000), opts.Gas.CallGasLimit.Uint64())
	assert.Equal(t, uint64(5_000_000_000), opts.Gas.MaxFeePerGas.Uint64())
	assert.Equal(t, common.Address{}, opts.Paymaster)
	assert.True(t, opts.VerifySignatures)
	assert.Equal(t, 3, opts.MaxRetries)
}

func TestServiceOptionsFromFile(t *testing.T) {
	dir := inTempDir(t)
	cfg := `{
		"chain_id": 1,
		"strict_nonce": false,
		"paymaster_address": "0xDd6347561dBE6d88725B0E84a236d60F50c1C594",
		"max_fee_per_gas": 7000000000
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))

	require.NoError(t, LoadConfig())
	opts, err := ServiceOptions()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), opts.ChainID)
	assert.False(t, opts.StrictNonce)
	assert.Equal(t, common.HexToAddress("0xDd6347561dBE6d88725B0E84a236d60F50c1C594"), opts.Paymaster)
	assert.Equal(t, uint64(7_000_000_000), opts.Gas.MaxFeePerGas.Uint64())
}

func TestServiceOptionsRejectsBadAddress(t *testing.T) {
	inTempDir(t)
	setDefaults()
	viper.Set("paymaster_token", "dai")

	_, err := ServiceOptions()
	assert.Error(t, err)
}

func TestLoggerOptions(t *testing.T) {
	inTempDir(t)
	setDefaults()

	opts := LoggerOptions()
	assert.Equal(t, "./coordinator.log", opts.Path)
	assert.Equal(t, 50, opts.MaxSizeMB)
	assert.True(t, opts.Debug)
	assert.False(t, opts.Compress)
}
