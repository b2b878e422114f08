package multisig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/Maphikza/safesocial-coordinator.git/lib/signatures"
	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/Maphikza/safesocial-coordinator.git/lib/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var log = logger.CategoryMultisig

// Options configures how operations are built and checked.
type Options struct {
	EntryPoint common.Address
	ChainID    uint64
	Gas        userop.GasParams

	Paymaster                common.Address
	PaymasterToken           common.Address
	PaymasterVerificationGas *uint256.Int
	PaymasterPostOpGas       *uint256.Int

	// VerifySignatures recovers the signer of every submitted signature and
	// rejects it unless it matches the claimed owner.
	VerifySignatures bool
	// StrictNonce requires proposals to use the wallet's next nonce.
	StrictNonce bool

	MaxRetries int
	Now        func() time.Time
}

// DefaultOptions targets EntryPoint v0.7 on Sepolia.
func DefaultOptions() Options {
	return Options{
		EntryPoint:               userop.DefaultEntryPoint,
		ChainID:                  11155111,
		Gas:                      userop.DefaultGasParams(),
		PaymasterVerificationGas: uint256.NewInt(100000),
		PaymasterPostOpGas:       uint256.NewInt(50000),
		VerifySignatures:         true,
		StrictNonce:              true,
		MaxRetries:               3,
	}
}

// Service exposes the coordination operations on top of a Store.
type Service struct {
	store     Store
	submitter Submitter
	opts      Options
}

func NewService(store Store, submitter Submitter, opts Options) *Service {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.ChainID == 0 {
		opts.ChainID = DefaultOptions().ChainID
	}
	return &Service{store: store, submitter: submitter, opts: opts}
}

type CreateWalletRequest struct {
	Address        string
	Name           string
	Owners         []string
	Threshold      int
	ChainID        uint64
	CreationTxHash string
}

// CreateWallet registers a deployed wallet and its owners. Registering an
// address twice returns the existing wallet together with ErrDuplicateWallet.
func (s *Service) CreateWallet(ctx context.Context, req CreateWalletRequest) (*Wallet, []Owner, error) {
	chainID := req.ChainID
	if chainID == 0 {
		chainID = s.opts.ChainID
	}
	w, owners, err := NewWallet(req.Address, req.Name, req.Owners, req.Threshold, chainID, s.opts.Now())
	if err != nil {
		return nil, nil, err
	}
	w.CreationTxHash = req.CreationTxHash

	if err := s.store.CreateWallet(ctx, w, owners); err != nil {
		if errors.Is(err, ErrDuplicateWallet) {
			existing, existingOwners, getErr := s.GetWallet(ctx, w.Address)
			if getErr != nil {
				return nil, nil, getErr
			}
			return existing, existingOwners, err
		}
		return nil, nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	log.Info("Registered wallet", w.Address, "threshold", w.Threshold, "owners", len(owners))
	return w, owners, nil
}

// GetWallet returns a wallet by address together with its active owners.
func (s *Service) GetWallet(ctx context.Context, address string) (*Wallet, []Owner, error) {
	addr, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, nil, wrapError(KindInvalidRequest, err, "invalid wallet address")
	}
	w, err := s.store.GetWalletByAddress(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	owners, err := s.store.ActiveOwners(ctx, w.ID)
	if err != nil {
		return nil, nil, err
	}
	return w, owners, nil
}

// RenameOwner sets the display name of an owner. Names never affect rules.
func (s *Service) RenameOwner(ctx context.Context, walletAddress, ownerAddress, name string) error {
	w, owners, err := s.GetWallet(ctx, walletAddress)
	if err != nil {
		return err
	}
	addr, err := utils.NormalizeAddress(ownerAddress)
	if err != nil {
		return wrapError(KindInvalidOwner, err, "invalid owner address")
	}
	if _, ok := FindOwner(owners, addr); !ok {
		return newError(KindNotAnOwner, "%s is not an active owner of this wallet", addr)
	}
	return s.store.RenameOwner(ctx, w.ID, addr, name)
}

type ProposeRequest struct {
	WalletID      string
	WalletAddress string // used when WalletID is empty
	To            string
	Value         *uint256.Int
	Data          []byte
	Type          Type
	Description   string
	Nonce         uint64
	CreatedBy     string
	UsePaymaster  bool
	TargetOwner   string
	NewThreshold  int
	// OperationHash, when set, must equal the hash computed here.
	OperationHash string
}

// Propose records a new operation in PENDING. The operation hash is computed
// from the wallet, nonce, call data, gas settings and paymaster data. A
// proposal whose hash already exists returns the existing record together
// with ErrDuplicateOperation.
func (s *Service) Propose(ctx context.Context, req ProposeRequest) (*Transaction, error) {
	w, err := s.resolveWallet(ctx, req.WalletID, req.WalletAddress)
	if err != nil {
		return nil, err
	}
	owners, err := s.store.ActiveOwners(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	creator, err := utils.NormalizeAddress(req.CreatedBy)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "invalid proposer address")
	}
	if _, ok := FindOwner(owners, creator); !ok {
		return nil, newError(KindNotAnOwner, "%s is not an active owner of this wallet", creator)
	}

	typ := req.Type
	if typ == 0 {
		typ = TypeTransfer
	}

	tx := &Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Nonce:       req.Nonce,
		Status:      StatusPending,
		Type:        typ,
		Description: req.Description,
		CreatedBy:   creator,
		CreatedAt:   s.opts.Now(),
		Version:     1,
	}

	if typ.Governance() {
		err = s.prepareGovernance(tx, w, req)
	} else {
		err = s.prepareCall(tx, req)
	}
	if err != nil {
		return nil, err
	}

	if req.UsePaymaster {
		if s.opts.Paymaster == (common.Address{}) {
			return nil, newError(KindInvalidRequest, "no paymaster configured")
		}
		tx.PaymasterAndData = userop.BuildPaymasterAndData(s.opts.Paymaster, s.opts.PaymasterVerificationGas, s.opts.PaymasterPostOpGas, s.opts.PaymasterToken)
	}

	gas := s.opts.Gas
	tx.AccountGasLimits = userop.PackUint128(gas.VerificationGasLimit, gas.CallGasLimit)
	tx.PreVerificationGas = new(uint256.Int)
	if gas.PreVerificationGas != nil {
		tx.PreVerificationGas.Set(gas.PreVerificationGas)
	}
	tx.GasFees = userop.PackUint128(gas.MaxPriorityFeePerGas, gas.MaxFeePerGas)

	hash := s.operationHash(w, tx)
	tx.OperationHash = strings.ToLower(hash.Hex())
	if req.OperationHash != "" && !strings.EqualFold(req.OperationHash, tx.OperationHash) {
		return nil, newError(KindInvalidRequest, "operation hash %s does not match computed hash %s", req.OperationHash, tx.OperationHash)
	}

	// A re-proposal resolves to the stored record even after it has executed
	// and moved the nonce or owner set on.
	existing, err := s.store.GetTransactionByHash(ctx, tx.OperationHash)
	switch {
	case err == nil:
		return existing, DuplicateOperation(tx.OperationHash)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if s.opts.StrictNonce && req.Nonce != w.NextNonce {
		return nil, newError(KindInvalidNonce, "nonce %d does not match the wallet's next nonce %d", req.Nonce, w.NextNonce)
	}
	if typ.Governance() {
		if err := ValidateGovernance(typ, *w, owners, tx.TargetOwner, req.NewThreshold); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			existing, getErr := s.store.GetTransactionByHash(ctx, tx.OperationHash)
			if getErr != nil {
				return nil, getErr
			}
			return existing, err
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	log.Info("Proposed", tx.Type, "transaction", tx.ID, "for wallet", w.Address, "nonce", tx.Nonce, "hash", tx.OperationHash)
	return tx, nil
}

func (s *Service) prepareCall(tx *Transaction, req ProposeRequest) error {
	to, err := utils.NormalizeAddress(req.To)
	if err != nil {
		return wrapError(KindInvalidRequest, err, "invalid destination address")
	}
	value := req.Value
	if value == nil {
		value = new(uint256.Int)
	}
	callData, err := userop.ExecuteCallData(common.HexToAddress(to), value, req.Data)
	if err != nil {
		return wrapError(KindInvalidRequest, err, "failed to encode call data")
	}
	tx.To = to
	tx.Value = new(uint256.Int).Set(value)
	tx.Data = append(hexutil.Bytes{}, req.Data...)
	tx.CallData = callData
	return nil
}

// prepareGovernance builds a call from the wallet to itself that changes its
// owner set or threshold.
func (s *Service) prepareGovernance(tx *Transaction, w *Wallet, req ProposeRequest) error {
	var target string
	if tx.Type == TypeAddOwner || tx.Type == TypeRemoveOwner {
		addr, err := utils.NormalizeAddress(req.TargetOwner)
		if err != nil {
			return wrapError(KindInvalidOwner, err, "invalid owner address")
		}
		target = addr
	}

	var (
		data []byte
		err  error
	)
	switch tx.Type {
	case TypeAddOwner:
		data, err = userop.AddOwnerData(common.HexToAddress(target))
	case TypeRemoveOwner:
		data, err = userop.RemoveOwnerData(common.HexToAddress(target))
	case TypeChangeThreshold:
		data, err = userop.ChangeThresholdData(req.NewThreshold)
	}
	if err != nil {
		return wrapError(KindInvalidRequest, err, "failed to encode %s call", tx.Type)
	}

	self := common.HexToAddress(w.Address)
	callData, err := userop.ExecuteCallData(self, new(uint256.Int), data)
	if err != nil {
		return wrapError(KindInvalidRequest, err, "failed to encode call data")
	}

	tx.To = w.Address
	tx.Value = new(uint256.Int)
	tx.Data = data
	tx.CallData = callData
	tx.TargetOwner = target
	if tx.Type == TypeChangeThreshold {
		tx.NewThreshold = req.NewThreshold
	}
	return nil
}

// Sign records one owner's signature over the operation hash.
func (s *Service) Sign(ctx context.Context, txID, signer, sigHex string) (*SignResult, error) {
	addr, err := utils.NormalizeAddress(signer)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "invalid signer address")
	}
	sig, err := signatures.Validate(sigHex)
	if err != nil {
		return nil, wrapError(KindMalformedSignature, err, "invalid signature")
	}

	var wasReady bool
	state, err := s.update(ctx, txID, func(st *TxState) error {
		wasReady = st.Tx.Status == StatusReady
		if _, err := CanAcceptSignature(&st.Tx, st.Signatures, st.Owners, addr); err != nil {
			return err
		}
		if s.opts.VerifySignatures {
			if err := verifySigner(st.Tx.OperationHash, sig, addr); err != nil {
				return err
			}
		}
		_, err := st.Sign(addr, sig, s.opts.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if !wasReady && state.Tx.Status == StatusReady {
		log.Info("Transaction", txID, "reached threshold with", len(state.Signatures), "signatures")
	}
	return &SignResult{
		Accepted:    true,
		IsReady:     state.IsReady(),
		Remaining:   state.Remaining(),
		Transaction: &state.Tx,
	}, nil
}

func verifySigner(opHash string, sig []byte, claimed string) error {
	hash, err := hexutil.Decode(opHash)
	if err != nil || len(hash) != 32 {
		return newError(KindInvalidState, "stored operation hash %q is invalid", opHash)
	}
	digest := signatures.PersonalDigest(common.BytesToHash(hash))
	recovered, err := signatures.RecoverSigner(digest, sig)
	if err != nil {
		return wrapError(KindInvalidSignature, err, "cannot recover signer")
	}
	if recovered != claimed {
		return newError(KindInvalidSignature, "signature was made by %s, not %s", recovered, claimed)
	}
	return nil
}

// SignatureStatus summarizes the signatures collected for a transaction.
type SignatureStatus struct {
	TransactionID string        `json:"transactionId"`
	Status        Status        `json:"status"`
	Signatures    []Signature   `json:"signatures"`
	Count         int           `json:"signatureCount"`
	Threshold     int           `json:"threshold"`
	IsReady       bool          `json:"isReady"`
	Remaining     int           `json:"remaining"`
	Concatenated  hexutil.Bytes `json:"concatenatedSignature"`
}

func (s *Service) SignatureStatus(ctx context.Context, txID string) (*SignatureStatus, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	w, err := s.store.GetWallet(ctx, tx.WalletID)
	if err != nil {
		return nil, err
	}
	sigs, err := s.store.Signatures(ctx, txID)
	if err != nil {
		return nil, err
	}
	return &SignatureStatus{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Signatures:    sigs,
		Count:         len(sigs),
		Threshold:     w.Threshold,
		IsReady:       IsReady(len(sigs), w.Threshold),
		Remaining:     Remaining(len(sigs), w.Threshold),
		Concatenated:  signatures.Concatenate(signatureBytes(sigs)),
	}, nil
}

// GetAggregatedSignature concatenates all recorded signatures in the order
// they were accepted.
func (s *Service) GetAggregatedSignature(ctx context.Context, txID string) ([]byte, error) {
	if _, err := s.store.GetTransaction(ctx, txID); err != nil {
		return nil, err
	}
	sigs, err := s.store.Signatures(ctx, txID)
	if err != nil {
		return nil, err
	}
	return signatures.Concatenate(signatureBytes(sigs)), nil
}

func signatureBytes(sigs []Signature) [][]byte {
	out := make([][]byte, len(sigs))
	for i, sig := range sigs {
		out[i] = sig.Signature
	}
	return out
}

// Cancel withdraws an open proposal on behalf of an owner.
func (s *Service) Cancel(ctx context.Context, txID, by string) (*Transaction, error) {
	addr, err := utils.NormalizeAddress(by)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "invalid canceller address")
	}
	state, err := s.update(ctx, txID, func(st *TxState) error {
		return st.Cancel(addr, s.opts.Now())
	})
	if err != nil {
		return nil, err
	}
	log.Info("Transaction", txID, "cancelled by", addr)
	return &state.Tx, nil
}

// RecordExecutionResult stores the outcome of an execution attempt made
// outside the coordinator.
func (s *Service) RecordExecutionResult(ctx context.Context, txID string, success bool, chainTxHash, by string) (*Transaction, error) {
	if by != "" {
		addr, err := utils.NormalizeAddress(by)
		if err != nil {
			return nil, wrapError(KindInvalidRequest, err, "invalid executor address")
		}
		by = addr
	}

	var governanceErr error
	state, err := s.update(ctx, txID, func(st *TxState) error {
		if by != "" {
			if _, ok := FindOwner(st.Owners, by); !ok {
				return newError(KindNotAnOwner, "%s is not an active owner of this wallet", by)
			}
		}
		if !success {
			return st.MarkFailed(chainTxHash, by, s.opts.Now())
		}
		var err error
		governanceErr, err = st.MarkExecuted(chainTxHash, by, s.opts.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if governanceErr != nil {
		log.Error("Transaction", txID, "executed but its", state.Tx.Type, "effect was not applied:", governanceErr)
	}
	log.Info("Transaction", txID, "marked", state.Tx.Status, "chain tx", chainTxHash)
	return &state.Tx, nil
}

// Execute assembles the signed operation for a READY transaction, hands it to
// the submitter and records the outcome. A submitter error leaves the
// transaction READY. A rejected submission marks it FAILED and returns the
// FAILED record with ErrExternalSubmissionFailed.
func (s *Service) Execute(ctx context.Context, txID, executor string) (*Transaction, error) {
	if s.submitter == nil {
		return nil, newError(KindExternalSubmissionFailed, "no submitter configured")
	}
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusReady {
		return nil, newError(KindInvalidState, "cannot execute transaction with status %s", tx.Status)
	}
	w, err := s.store.GetWallet(ctx, tx.WalletID)
	if err != nil {
		return nil, err
	}
	if executor != "" {
		executor, err = utils.NormalizeAddress(executor)
		if err != nil {
			return nil, wrapError(KindInvalidRequest, err, "invalid executor address")
		}
		owners, err := s.store.ActiveOwners(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if _, ok := FindOwner(owners, executor); !ok {
			return nil, newError(KindNotAnOwner, "%s is not an active owner of this wallet", executor)
		}
	}

	payload, err := s.Payload(ctx, w, tx)
	if err != nil {
		return nil, err
	}

	result, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		log.Error("Submission of transaction", txID, "failed:", err)
		return tx, wrapError(KindExternalSubmissionFailed, err, "submission failed, transaction left %s", tx.Status)
	}

	recorded, err := s.RecordExecutionResult(ctx, txID, result.Success, result.TxHash, executor)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return recorded, newError(KindExternalSubmissionFailed, "operation %s was rejected on chain (tx %s)", tx.OperationHash, result.TxHash)
	}
	return recorded, nil
}

// Payload rebuilds the signed operation for tx.
func (s *Service) Payload(ctx context.Context, w *Wallet, tx *Transaction) (*Payload, error) {
	sigs, err := s.store.Signatures(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if !IsReady(len(sigs), w.Threshold) {
		return nil, newError(KindInvalidState, "transaction has %d of %d signatures", len(sigs), w.Threshold)
	}

	op := s.operation(w, tx)
	hash := userop.Hash(op, s.opts.EntryPoint, s.chainID(w))
	if !strings.EqualFold(hash.Hex(), tx.OperationHash) {
		return nil, newError(KindInvalidState, "stored operation no longer matches hash %s", tx.OperationHash)
	}
	op.Signature = signatures.Concatenate(signatureBytes(sigs))

	return &Payload{
		Operation:  op,
		EntryPoint: s.opts.EntryPoint,
		ChainID:    s.chainID(w),
		Hash:       hash,
	}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

// OperationHash returns the hash owners sign for tx.
func (s *Service) OperationHash(w *Wallet, tx *Transaction) common.Hash {
	return s.operationHash(w, tx)
}

func (s *Service) operationHash(w *Wallet, tx *Transaction) common.Hash {
	return userop.Hash(s.operation(w, tx), s.opts.EntryPoint, s.chainID(w))
}

func (s *Service) operation(w *Wallet, tx *Transaction) *userop.PackedUserOperation {
	return &userop.PackedUserOperation{
		Sender:             common.HexToAddress(w.Address),
		Nonce:              uint256.NewInt(tx.Nonce),
		InitCode:           []byte{},
		CallData:           tx.CallData,
		AccountGasLimits:   tx.AccountGasLimits,
		PreVerificationGas: tx.PreVerificationGas,
		GasFees:            tx.GasFees,
		PaymasterAndData:   tx.PaymasterAndData,
	}
}

func (s *Service) chainID(w *Wallet) *uint256.Int {
	if w.ChainID != 0 {
		return uint256.NewInt(w.ChainID)
	}
	return uint256.NewInt(s.opts.ChainID)
}

func (s *Service) resolveWallet(ctx context.Context, id, address string) (*Wallet, error) {
	if id != "" {
		return s.store.GetWallet(ctx, id)
	}
	addr, err := utils.NormalizeAddress(address)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "invalid wallet address")
	}
	return s.store.GetWalletByAddress(ctx, addr)
}

// update runs fn through the store, retrying when a concurrent writer wins.
func (s *Service) update(ctx context.Context, txID string, fn func(*TxState) error) (*TxState, error) {
	var err error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		var state *TxState
		state, err = s.store.UpdateTransaction(ctx, txID, fn)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		log.Debug("Retrying update of transaction", txID, "after conflict, attempt", attempt)
	}
	return nil, err
}
