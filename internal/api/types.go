package api

import (
	"context"

	coordinatordb "github.com/Maphikza/safesocial-coordinator.git/internal/database"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/holiman/uint256"
)

// ChallengeStore persists the login challenges handed out by /challenge.
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, challenge coordinatordb.Challenge) error
	GetChallenge(ctx context.Context, hash string) (*coordinatordb.Challenge, error)
	MarkChallengeAsUsed(ctx context.Context, hash, address string) error
	ExpireOldChallenges(ctx context.Context) error
}

type API struct {
	Service    *multisig.Service
	Challenges ChallengeStore
	Name       string
}

type CreateWalletRequest struct {
	Address        string   `json:"address"`
	Name           string   `json:"name,omitempty"`
	Owners         []string `json:"owners"`
	Threshold      int      `json:"threshold"`
	ChainID        uint64   `json:"chainId,omitempty"`
	CreationTxHash string   `json:"creationTxHash,omitempty"`
}

type WalletResponse struct {
	Wallet *multisig.Wallet `json:"wallet"`
	Owners []multisig.Owner `json:"owners"`
}

type RenameOwnerRequest struct {
	Name string `json:"name"`
}

type ProposeRequest struct {
	WalletAddress string        `json:"walletAddress"`
	To            string        `json:"to"`
	Value         *uint256.Int  `json:"value,omitempty"`
	Data          string        `json:"data,omitempty"`
	Type          multisig.Type `json:"type,omitempty"`
	Description   string        `json:"description,omitempty"`
	Nonce         uint64        `json:"nonce"`
	UsePaymaster  bool          `json:"usePaymaster,omitempty"`
	TargetOwner   string        `json:"targetOwner,omitempty"`
	NewThreshold  int           `json:"newThreshold,omitempty"`
	OperationHash string        `json:"userOpHash,omitempty"`
}

// ProposeResponse reports whether the operation was new; a repeated proposal
// returns the original record with Created false.
type ProposeResponse struct {
	Transaction *multisig.Transaction `json:"transaction"`
	Created     bool                  `json:"created"`
}

type SignRequest struct {
	Signer    string `json:"signerAddress,omitempty"`
	Signature string `json:"signature"`
}

// UpdateTransactionRequest drives PATCH /api/transactions/{id}. Action is
// "cancel" or "result"; Success and TxHash apply to "result" only.
type UpdateTransactionRequest struct {
	Action  string `json:"action"`
	Success bool   `json:"success,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

type ConcatenatedResponse struct {
	TransactionID         string `json:"transactionId"`
	ConcatenatedSignature string `json:"concatenatedSignature"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
	Hash      string `json:"hash"`
}

type VerifyRequest struct {
	Challenge string `json:"challenge"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	claimsKey    contextKey = "claims"
)
