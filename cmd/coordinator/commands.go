package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Register and inspect multisig wallets",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a deployed multisig wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		address, _ := flags.GetString("address")
		name, _ := flags.GetString("name")
		owners, _ := flags.GetStringSlice("owners")
		threshold, _ := flags.GetInt("threshold")
		chainID, _ := flags.GetUint64("chain-id")
		creationTx, _ := flags.GetString("creation-tx")

		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			w, registered, err := c.svc.CreateWallet(ctx, multisig.CreateWalletRequest{
				Address:        address,
				Name:           name,
				Owners:         owners,
				Threshold:      threshold,
				ChainID:        chainID,
				CreationTxHash: creationTx,
			})
			if err != nil {
				return nil, err
			}
			return walletView(w, registered), nil
		})
	},
}

var walletShowCmd = &cobra.Command{
	Use:   "show [wallet-address]",
	Short: "Show a wallet and its active owners",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			w, owners, err := c.svc.GetWallet(ctx, args[0])
			if err != nil {
				return nil, err
			}
			addresses := make([]string, len(owners))
			for i, o := range owners {
				addresses[i] = o.Address
			}
			utils.PrintAddresses("Owner", addresses)
			return walletView(w, owners), nil
		})
	},
}

var walletRenameOwnerCmd = &cobra.Command{
	Use:   "rename-owner [wallet-address] [owner-address] [name]",
	Short: "Set an owner's display name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			if err := c.svc.RenameOwner(ctx, args[0], args[1], args[2]); err != nil {
				return nil, err
			}
			return map[string]string{"owner": args[1], "name": args[2]}, nil
		})
	},
}

func walletView(w *multisig.Wallet, owners []multisig.Owner) interface{} {
	return struct {
		Wallet *multisig.Wallet `json:"wallet"`
		Owners []multisig.Owner `json:"owners"`
	}{w, owners}
}

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose an operation for owners to sign",
	Long: `Propose a transfer, contract call or governance change. Governance types
(ADD_OWNER, REMOVE_OWNER, CHANGE_THRESHOLD) ignore --to, --value and --data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		walletAddress, _ := flags.GetString("wallet")
		from, _ := flags.GetString("from")
		to, _ := flags.GetString("to")
		valueStr, _ := flags.GetString("value")
		dataStr, _ := flags.GetString("data")
		typeStr, _ := flags.GetString("type")
		description, _ := flags.GetString("description")
		nonce, _ := flags.GetUint64("nonce")
		usePaymaster, _ := flags.GetBool("paymaster")
		targetOwner, _ := flags.GetString("target-owner")
		newThreshold, _ := flags.GetInt("new-threshold")

		value, err := uint256.FromDecimal(valueStr)
		if err != nil {
			return fmt.Errorf("invalid value %q: %v", valueStr, err)
		}
		var data []byte
		if dataStr != "" && dataStr != "0x" {
			if data, err = hexutil.Decode(dataStr); err != nil {
				return fmt.Errorf("invalid data: %v", err)
			}
		}
		typ, err := multisig.ParseType(strings.ToUpper(typeStr))
		if err != nil {
			return err
		}

		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			return c.svc.Propose(ctx, multisig.ProposeRequest{
				WalletAddress: walletAddress,
				To:            to,
				Value:         value,
				Data:          data,
				Type:          typ,
				Description:   description,
				Nonce:         nonce,
				CreatedBy:     from,
				UsePaymaster:  usePaymaster,
				TargetOwner:   targetOwner,
				NewThreshold:  newThreshold,
			})
		})
	},
}

var signCmd = &cobra.Command{
	Use:   "sign [transaction-id] [signer-address] [signature]",
	Short: "Record an owner's signature",
	Long:  `Record a 65-byte personal_sign signature over the operation hash (see sign-hash).`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			return c.svc.Sign(ctx, args[0], args[1], args[2])
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [transaction-id] [owner-address]",
	Short: "Cancel an open proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			return c.svc.Cancel(ctx, args[0], args[1])
		})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute [transaction-id]",
	Short: "Submit a READY operation to the bundler",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			return c.svc.Execute(ctx, args[0], by)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [transaction-id]",
	Short: "Show a transaction's signatures and readiness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			tx, err := c.svc.GetTransaction(ctx, args[0])
			if err != nil {
				return nil, err
			}
			status, err := c.svc.SignatureStatus(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return struct {
				Transaction *multisig.Transaction     `json:"transaction"`
				Signatures  *multisig.SignatureStatus `json:"signatures"`
			}{tx, status}, nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list [wallet-address]",
	Short: "List a wallet's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statusStr, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := multisig.TransactionFilter{Limit: limit}
		if statusStr != "" {
			status, err := multisig.ParseStatus(strings.ToUpper(statusStr))
			if err != nil {
				return err
			}
			filter.Status = status
		}

		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			w, _, err := c.svc.GetWallet(ctx, args[0])
			if err != nil {
				return nil, err
			}
			filter.WalletID = w.ID
			return c.svc.ListTransactions(ctx, filter)
		})
	},
}

func init() {
	walletCmd.AddCommand(walletCreateCmd, walletShowCmd, walletRenameOwnerCmd)

	f := walletCreateCmd.Flags()
	f.String("address", "", "deployed wallet contract address")
	f.String("name", "", "display name")
	f.StringSlice("owners", nil, "owner addresses, first is the creator")
	f.Int("threshold", 1, "signatures required")
	f.Uint64("chain-id", 0, "chain id (default from config)")
	f.String("creation-tx", "", "deployment transaction hash")
	walletCreateCmd.MarkFlagRequired("address")
	walletCreateCmd.MarkFlagRequired("owners")

	f = proposeCmd.Flags()
	f.String("wallet", "", "wallet address")
	f.String("from", "", "proposing owner address")
	f.String("to", "", "destination address")
	f.String("value", "0", "value in wei")
	f.String("data", "", "0x-prefixed call data")
	f.String("type", "TRANSFER", "TRANSFER, CONTRACT_CALL, ADD_OWNER, REMOVE_OWNER, CHANGE_THRESHOLD or CUSTOM")
	f.String("description", "", "free text shown to signers")
	f.Uint64("nonce", 0, "wallet nonce")
	f.Bool("paymaster", false, "sponsor gas through the configured paymaster")
	f.String("target-owner", "", "owner to add or remove")
	f.Int("new-threshold", 0, "threshold for CHANGE_THRESHOLD")
	proposeCmd.MarkFlagRequired("wallet")
	proposeCmd.MarkFlagRequired("from")

	executeCmd.Flags().String("by", "", "address recorded as executor")

	listCmd.Flags().String("status", "", "only transactions with this status")
	listCmd.Flags().Int("limit", 0, "maximum number of results")
}
