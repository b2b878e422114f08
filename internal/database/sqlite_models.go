package coordinatordb

import (
	"time"

	"gorm.io/gorm"
)

// SQLiteWallet represents a registered multisig wallet
type SQLiteWallet struct {
	gorm.Model
	UUID           string `gorm:"uniqueIndex"`
	Address        string `gorm:"uniqueIndex"`
	Name           string
	Threshold      int
	ChainID        uint64
	NextNonce      uint64
	CreationTxHash string
}

// SQLiteOwner represents one owner of a wallet. Removed owners stay with
// IsActive false.
type SQLiteOwner struct {
	gorm.Model
	UUID      string `gorm:"uniqueIndex"`
	WalletID  string `gorm:"uniqueIndex:idx_wallet_owner"`
	Address   string `gorm:"uniqueIndex:idx_wallet_owner"`
	Name      string
	IsActive  bool `gorm:"index"`
	AddedAt   time.Time
	RemovedAt *time.Time
}

// SQLiteTransaction represents a proposed user operation
type SQLiteTransaction struct {
	gorm.Model
	UUID               string `gorm:"uniqueIndex"`
	WalletID           string `gorm:"index"`
	Nonce              uint64 `gorm:"index"`
	To                 string
	Value              string // decimal wei
	Data               []byte
	CallData           []byte
	PaymasterAndData   []byte
	AccountGasLimits   []byte
	PreVerificationGas string
	GasFees            []byte
	OperationHash      string `gorm:"uniqueIndex"`
	Status             string `gorm:"index"`
	Type               string
	Description        string
	TargetOwner        string
	NewThreshold       int
	CreatedBy          string
	ExecutedAt         *time.Time
	ExecutionTxHash    string
	ExecutedBy         string
	CancelledBy        string
	CancelledAt        *time.Time
	Version            int64
}

// SQLiteSignature is one owner's signature over an operation hash. The
// composite index rejects a second signature from the same signer.
type SQLiteSignature struct {
	gorm.Model
	UUID          string `gorm:"uniqueIndex"`
	TransactionID string `gorm:"uniqueIndex:idx_tx_signer"`
	OwnerID       string
	SignerAddress string `gorm:"uniqueIndex:idx_tx_signer"`
	Signature     []byte
	SignedAt      time.Time
}

// SQLiteChallenge represents an auth challenge
type SQLiteChallenge struct {
	gorm.Model
	Challenge string `gorm:"uniqueIndex"`
	Hash      string `gorm:"uniqueIndex"`
	Status    string `gorm:"index"` // unused, used, expired
	Address   string `gorm:"index"`
	UsedAt    *time.Time
	ExpiredAt *time.Time
}
