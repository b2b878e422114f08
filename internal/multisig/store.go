package multisig

import (
	"context"

	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	WalletID string
	Status   Status
	Limit    int
}

// Store persists wallets, owners, transactions and signatures.
//
// UpdateTransaction is the only way a transaction changes after creation:
// it loads the TxState, runs fn, and writes back the result as one atomic
// unit. If fn returns an error nothing is written. If another writer changed
// the transaction in the meantime the store returns a Conflict error and the
// caller may retry.
type Store interface {
	CreateWallet(ctx context.Context, w *Wallet, owners []Owner) error
	GetWallet(ctx context.Context, id string) (*Wallet, error)
	GetWalletByAddress(ctx context.Context, address string) (*Wallet, error)
	ActiveOwners(ctx context.Context, walletID string) ([]Owner, error)
	RenameOwner(ctx context.Context, walletID, address, name string) error

	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	Signatures(ctx context.Context, txID string) ([]Signature, error)
	UpdateTransaction(ctx context.Context, id string, fn func(*TxState) error) (*TxState, error)
}

// Payload is a fully signed operation ready for the entry point.
type Payload struct {
	Operation  *userop.PackedUserOperation
	EntryPoint common.Address
	ChainID    *uint256.Int
	Hash       common.Hash
}

// SubmissionResult is the chain's verdict on a submitted payload.
type SubmissionResult struct {
	TxHash  string
	Success bool
}

// Submitter relays a signed payload to the chain. A returned error means the
// outcome is unknown; a result with Success false means it was rejected or
// reverted.
type Submitter interface {
	Submit(ctx context.Context, payload *Payload) (*SubmissionResult, error)
}
