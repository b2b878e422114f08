package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Maphikza/safesocial-coordinator.git/lib/keys"
	"github.com/Maphikza/safesocial-coordinator.git/lib/signatures"
	"github.com/atotto/clipboard"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// Owner key material for sign-hash, typically set in .env.
const (
	mnemonicEnv    = "OWNER_MNEMONIC"
	keyPasswordEnv = "OWNER_KEY_PASSWORD"
)

var hashCmd = &cobra.Command{
	Use:   "hash [transaction-id]",
	Short: "Print the operation hash owners sign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		copyHash, _ := cmd.Flags().GetBool("copy")
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator) (interface{}, error) {
			tx, err := c.svc.GetTransaction(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if copyHash {
				if err := clipboard.WriteAll(tx.OperationHash); err != nil {
					fmt.Fprintf(os.Stderr, "Could not copy to clipboard: %v\n", err)
				}
			}
			return map[string]string{
				"transactionId": tx.ID,
				"userOpHash":    tx.OperationHash,
				"status":        tx.Status.String(),
			}, nil
		})
	},
}

var signHashCmd = &cobra.Command{
	Use:   "sign-hash [user-op-hash]",
	Short: "Sign an operation hash with an owner key",
	Long: `Sign an operation hash the way a browser wallet's personal_sign does, using
the key at m/44'/60'/0'/0/<index>. The mnemonic comes from --key-file, decrypted
with $OWNER_KEY_PASSWORD, or else from $OWNER_MNEMONIC.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetUint32("index")
		passphrase, _ := cmd.Flags().GetString("passphrase")
		keyFile, _ := cmd.Flags().GetString("key-file")

		hash, err := hexutil.Decode(args[0])
		if err != nil || len(hash) != common.HashLength {
			return fmt.Errorf("operation hash must be 32 bytes of 0x-prefixed hex")
		}

		var mnemonic string
		if keyFile != "" {
			var saved uint32
			mnemonic, saved, err = keys.LoadKeyFile(keyFile, os.Getenv(keyPasswordEnv))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("index") {
				index = saved
			}
		} else if mnemonic = os.Getenv(mnemonicEnv); mnemonic == "" {
			return fmt.Errorf("set %s or pass --key-file", mnemonicEnv)
		}
		key, err := keys.FromMnemonic(mnemonic, passphrase, keys.OwnerPath(index))
		if err != nil {
			return err
		}

		sig, err := signatures.Sign(key, signatures.PersonalDigest(common.BytesToHash(hash)))
		if err != nil {
			return err
		}
		printJSON(map[string]string{
			"signer":    signatures.AddressFromPubKey(key.PubKey()),
			"signature": hexutil.Encode(sig),
		})
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new owner mnemonic",
	Long: `Generate a 24 word mnemonic and print the first owner addresses derived from it.
With --out the mnemonic is written there encrypted with $OWNER_KEY_PASSWORD
instead of being printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetUint32("count")
		out, _ := cmd.Flags().GetString("out")

		mnemonic, err := keys.NewMnemonic()
		if err != nil {
			return err
		}
		addresses := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			key, err := keys.FromMnemonic(mnemonic, "", keys.OwnerPath(i))
			if err != nil {
				return err
			}
			addresses = append(addresses, signatures.AddressFromPubKey(key.PubKey()))
		}

		shown := mnemonic
		if out != "" {
			password := os.Getenv(keyPasswordEnv)
			if password == "" {
				return fmt.Errorf("%s must be set to encrypt the key file", keyPasswordEnv)
			}
			if err := keys.SaveKeyFile(out, mnemonic, password, 0); err != nil {
				return err
			}
			shown = ""
		}
		printJSON(struct {
			Mnemonic  string   `json:"mnemonic,omitempty"`
			KeyFile   string   `json:"keyFile,omitempty"`
			Addresses []string `json:"addresses"`
		}{shown, out, addresses})
		return nil
	},
}

func init() {
	hashCmd.Flags().Bool("copy", false, "copy the hash to the clipboard")
	signHashCmd.Flags().Uint32("index", 0, "account index in the BIP-44 path")
	signHashCmd.Flags().String("passphrase", "", "optional BIP-39 passphrase")
	signHashCmd.Flags().String("key-file", "", "encrypted key file written by keygen --out")
	keygenCmd.Flags().Uint32("count", 1, "number of addresses to derive")
	keygenCmd.Flags().String("out", "", "write the mnemonic to an encrypted key file")
}
