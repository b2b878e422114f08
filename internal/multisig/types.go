// Package multisig holds the coordination rules for jointly controlled
// ERC-4337 wallets: which owners may sign, when an operation is ready, and
// how a proposed operation moves through its lifecycle.
package multisig

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Status is the lifecycle state of a proposed operation.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusReady
	StatusExecuted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusReady:
		return "READY"
	case StatusExecuted:
		return "EXECUTED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Open reports whether signing is still permitted.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusReady
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusCancelled
}

func ParseStatus(v string) (Status, error) {
	for _, s := range []Status{StatusPending, StatusReady, StatusExecuted, StatusFailed, StatusCancelled} {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction status %q", v)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Type tags what a proposed operation does.
type Type uint8

const (
	TypeTransfer Type = iota + 1
	TypeContractCall
	TypeAddOwner
	TypeRemoveOwner
	TypeChangeThreshold
	TypeCustom
)

func (t Type) String() string {
	switch t {
	case TypeTransfer:
		return "TRANSFER"
	case TypeContractCall:
		return "CONTRACT_CALL"
	case TypeAddOwner:
		return "ADD_OWNER"
	case TypeRemoveOwner:
		return "REMOVE_OWNER"
	case TypeChangeThreshold:
		return "CHANGE_THRESHOLD"
	case TypeCustom:
		return "CUSTOM"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Governance reports whether executing the operation changes the owner set
// or threshold.
func (t Type) Governance() bool {
	return t == TypeAddOwner || t == TypeRemoveOwner || t == TypeChangeThreshold
}

func ParseType(v string) (Type, error) {
	if v == "" {
		return TypeTransfer, nil
	}
	for _, t := range []Type{TypeTransfer, TypeContractCall, TypeAddOwner, TypeRemoveOwner, TypeChangeThreshold, TypeCustom} {
		if t.String() == v {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", v)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Wallet struct {
	ID             string    `json:"id"`
	Address        string    `json:"address"`
	Name           string    `json:"name"`
	Threshold      int       `json:"threshold"`
	ChainID        uint64    `json:"chainId"`
	NextNonce      uint64    `json:"nextNonce"`
	CreationTxHash string    `json:"creationTxHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Owner struct {
	ID        string     `json:"id"`
	WalletID  string     `json:"walletId"`
	Address   string     `json:"address"`
	Name      string     `json:"name,omitempty"`
	IsActive  bool       `json:"isActive"`
	AddedAt   time.Time  `json:"addedAt"`
	RemovedAt *time.Time `json:"removedAt,omitempty"`
}

// Transaction is a proposed operation awaiting signatures.
type Transaction struct {
	ID                 string        `json:"id"`
	WalletID           string        `json:"walletId"`
	Nonce              uint64        `json:"nonce"`
	To                 string        `json:"to"`
	Value              *uint256.Int  `json:"value"`
	Data               hexutil.Bytes `json:"data"`
	CallData           hexutil.Bytes `json:"callData"`
	PaymasterAndData   hexutil.Bytes `json:"paymasterAndData,omitempty"`
	AccountGasLimits   [32]byte      `json:"-"`
	PreVerificationGas *uint256.Int  `json:"-"`
	GasFees            [32]byte      `json:"-"`
	OperationHash      string        `json:"operationHash"`
	Status             Status        `json:"status"`
	Type               Type          `json:"type"`
	Description        string        `json:"description,omitempty"`
	TargetOwner        string        `json:"targetOwner,omitempty"`
	NewThreshold       int           `json:"newThreshold,omitempty"`
	CreatedBy          string        `json:"createdBy"`
	CreatedAt          time.Time     `json:"createdAt"`
	ExecutedAt         *time.Time    `json:"executedAt,omitempty"`
	ExecutionTxHash    string        `json:"executionTxHash,omitempty"`
	ExecutedBy         string        `json:"executedBy,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty"`
	Version            int64         `json:"-"`
}

// Signature is one owner's approval of an operation hash. SignerAddress is
// authoritative; OwnerID only links back to the owner record for display.
type Signature struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	OwnerID       string        `json:"ownerId,omitempty"`
	SignerAddress string        `json:"signerAddress"`
	Signature     hexutil.Bytes `json:"signature"`
	SignedAt      time.Time     `json:"signedAt"`
}

// TxState is everything one transition reads and writes, loaded and saved by
// the store as a single atomic unit.
type TxState struct {
	Wallet     Wallet
	Owners     []Owner // active owners
	Tx         Transaction
	Signatures []Signature // in signing order

	// Effects recorded by the transition for the store to persist.
	Added         []Signature
	OwnerUpdates  []Owner
	WalletUpdated bool
}

// SignResult is what a signer learns after submitting a signature.
type SignResult struct {
	Accepted    bool         `json:"accepted"`
	IsReady     bool         `json:"isReady"`
	Remaining   int          `json:"remaining"`
	Transaction *Transaction `json:"transaction"`
}
