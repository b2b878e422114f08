package config

import (
	"fmt"
	"os"

	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in
	viper.SetEnvPrefix("coordinator")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	// Set defaults for development and production environments
	if env == "development" {
		viper.SetDefault("allowed_origin", "http://localhost:3000")
		viper.SetDefault("db_path", "./dev_coordinator.db")
		viper.SetDefault("log_level", "debug")
		viper.SetDefault("chain_id", 11155111) // Sepolia
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://safesocial.app")
		viper.SetDefault("db_path", "/var/lib/safesocial/coordinator.db")
		viper.SetDefault("log_level", "info")
		viper.SetDefault("chain_id", 1)
	}

	// Common defaults for both environments
	viper.SetDefault("api_port", 9003)
	viper.SetDefault("jwt_keys_dir", "./jwtkeys")
	viper.SetDefault("entry_point", userop.DefaultEntryPoint.Hex())
	viper.SetDefault("bundler_urls", []string{})
	viper.SetDefault("verify_signatures", true)
	viper.SetDefault("strict_nonce", true)
	viper.SetDefault("update_retries", 3)

	gas := userop.DefaultGasParams()
	viper.SetDefault("verification_gas_limit", gas.VerificationGasLimit.Uint64())
	viper.SetDefault("call_gas_limit", gas.CallGasLimit.Uint64())
	viper.SetDefault("pre_verification_gas", gas.PreVerificationGas.Uint64())
	viper.SetDefault("max_priority_fee_per_gas", gas.MaxPriorityFeePerGas.Uint64()) // in wei
	viper.SetDefault("max_fee_per_gas", gas.MaxFeePerGas.Uint64())                  // in wei

	viper.SetDefault("paymaster_address", "")
	viper.SetDefault("paymaster_token", "")
	viper.SetDefault("paymaster_verification_gas", 100000)
	viper.SetDefault("paymaster_post_op_gas", 50000)

	viper.SetDefault("receipt_poll_interval", "2s")
	viper.SetDefault("receipt_timeout", "2m")

	viper.SetDefault("log_file", "./coordinator.log")
	viper.SetDefault("log_max_size_mb", 50)
	viper.SetDefault("log_max_age_days", 28)
	viper.SetDefault("log_max_backups", 5)
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	// Write the default configuration to a file
	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}

// ServiceOptions builds the coordinator options from the loaded configuration.
func ServiceOptions() (multisig.Options, error) {
	opts := multisig.DefaultOptions()

	entryPoint, err := address("entry_point")
	if err != nil {
		return opts, err
	}
	if entryPoint != (common.Address{}) {
		opts.EntryPoint = entryPoint
	}
	if chainID := viper.GetUint64("chain_id"); chainID != 0 {
		opts.ChainID = chainID
	}

	opts.Gas = userop.GasParams{
		VerificationGasLimit: uint256.NewInt(viper.GetUint64("verification_gas_limit")),
		CallGasLimit:         uint256.NewInt(viper.GetUint64("call_gas_limit")),
		PreVerificationGas:   uint256.NewInt(viper.GetUint64("pre_verification_gas")),
		MaxPriorityFeePerGas: uint256.NewInt(viper.GetUint64("max_priority_fee_per_gas")),
		MaxFeePerGas:         uint256.NewInt(viper.GetUint64("max_fee_per_gas")),
	}

	if opts.Paymaster, err = address("paymaster_address"); err != nil {
		return opts, err
	}
	if opts.PaymasterToken, err = address("paymaster_token"); err != nil {
		return opts, err
	}
	opts.PaymasterVerificationGas = uint256.NewInt(viper.GetUint64("paymaster_verification_gas"))
	opts.PaymasterPostOpGas = uint256.NewInt(viper.GetUint64("paymaster_post_op_gas"))

	opts.VerifySignatures = viper.GetBool("verify_signatures")
	opts.StrictNonce = viper.GetBool("strict_nonce")
	if retries := viper.GetInt("update_retries"); retries > 0 {
		opts.MaxRetries = retries
	}
	return opts, nil
}

// LoggerOptions builds the log file settings from the loaded configuration.
func LoggerOptions() logger.Options {
	return logger.Options{
		Path:       viper.GetString("log_file"),
		MaxSizeMB:  viper.GetInt("log_max_size_mb"),
		MaxAgeDays: viper.GetInt("log_max_age_days"),
		MaxBackups: viper.GetInt("log_max_backups"),
		Compress:   viper.GetString("ENV") == "production",
		Debug:      viper.GetString("log_level") == "debug",
	}
}

func address(key string) (common.Address, error) {
	v := viper.GetString(key)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("config %s: %q is not an address", key, v)
	}
	return common.HexToAddress(v), nil
}
