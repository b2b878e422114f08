package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Maphikza/safesocial-coordinator.git/internal/bundler"
	"github.com/Maphikza/safesocial-coordinator.git/internal/config"
	coordinatordb "github.com/Maphikza/safesocial-coordinator.git/internal/database"
	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "SafeSocial multisig coordinator",
	Long: `Coordinates proposals and owner signatures for ERC-4337 multisig wallets,
and submits fully signed operations to a bundler.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(signHashCmd)
	rootCmd.AddCommand(keygenCmd)
}

func initConfig() {
	// A missing .env is fine; the config file and defaults still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error loading .env file: %v", err)
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init(config.LoggerOptions()); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// coordinator bundles an open store with the service built on it.
type coordinator struct {
	store   *coordinatordb.Store
	bundler *bundler.Client
	svc     *multisig.Service
}

// openCoordinator opens the database and, when bundler_urls is set, dials
// the bundlers. Without bundlers the service can do everything except
// execute.
func openCoordinator(ctx context.Context) (*coordinator, error) {
	opts, err := config.ServiceOptions()
	if err != nil {
		return nil, err
	}

	store, err := coordinatordb.Open(viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	c := &coordinator{store: store}

	var submitter multisig.Submitter
	if urls := viper.GetStringSlice("bundler_urls"); len(urls) > 0 {
		c.bundler, err = bundler.Dial(ctx, urls,
			bundler.WithPollInterval(viper.GetDuration("receipt_poll_interval")),
			bundler.WithReceiptTimeout(viper.GetDuration("receipt_timeout")),
		)
		if err != nil {
			store.Close()
			return nil, err
		}
		submitter = c.bundler
	}

	c.svc = multisig.NewService(store, submitter, opts)
	return c, nil
}

func (c *coordinator) Close() {
	if c.bundler != nil {
		c.bundler.Close()
	}
	if err := c.store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

// withCoordinator runs fn against an open coordinator and closes it after.
func withCoordinator(cmd *cobra.Command, fn func(ctx context.Context, c *coordinator) (interface{}, error)) error {
	ctx := cmd.Context()
	c, err := openCoordinator(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := fn(ctx, c)
	if result != nil {
		printJSON(result)
	}
	return err
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
	}
}
