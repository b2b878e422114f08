package coordinatordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/holiman/uint256"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var log = logger.CategoryStore

// Store is the SQLite backed multisig.Store.
type Store struct {
	db *gorm.DB
}

var _ multisig.Store = (*Store)(nil)

// Open opens (or creates) the SQLite database at dbPath and migrates the
// schema. The pool is limited to one connection so writers on one process
// are serialized.
func Open(dbPath string) (*Store, error) {
	if dbPath != MemoryPath && !strings.HasPrefix(dbPath, "file:") {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := ensureDir(dir); err != nil {
				return nil, fmt.Errorf("failed to create directory: %v", err)
			}
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
	}

	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&SQLiteWallet{},
		&SQLiteOwner{},
		&SQLiteTransaction{},
		&SQLiteSignature{},
		&SQLiteChallenge{},
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	log.Info("SQLite database initialized at", dbPath)
	return &Store{db: db}, nil
}

// ensureDir creates a directory if it doesn't exist
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateWallet saves a wallet and its initial owners in one transaction.
func (s *Store) CreateWallet(ctx context.Context, w *multisig.Wallet, owners []multisig.Owner) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(walletModel(w)).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return multisig.DuplicateWallet(w.Address)
		}
		return err
	}

	for i := range owners {
		if err := tx.Create(ownerModel(&owners[i])).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save owner %s: %w", owners[i].Address, err)
		}
	}

	return tx.Commit().Error
}

func (s *Store) GetWallet(ctx context.Context, id string) (*multisig.Wallet, error) {
	return getWallet(s.db.WithContext(ctx), "uuid = ?", id)
}

func (s *Store) GetWalletByAddress(ctx context.Context, address string) (*multisig.Wallet, error) {
	return getWallet(s.db.WithContext(ctx), "address = ?", address)
}

func getWallet(db *gorm.DB, query string, arg string) (*multisig.Wallet, error) {
	var model SQLiteWallet
	if err := db.Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, multisig.NotFound("wallet %s not found", arg)
		}
		return nil, err
	}
	return model.toWallet(), nil
}

func (s *Store) ActiveOwners(ctx context.Context, walletID string) ([]multisig.Owner, error) {
	return activeOwners(s.db.WithContext(ctx), walletID)
}

func activeOwners(db *gorm.DB, walletID string) ([]multisig.Owner, error) {
	var models []SQLiteOwner
	if err := db.Where("wallet_id = ? AND is_active = ?", walletID, true).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	owners := make([]multisig.Owner, len(models))
	for i := range models {
		owners[i] = models[i].toOwner()
	}
	return owners, nil
}

func (s *Store) RenameOwner(ctx context.Context, walletID, address, name string) error {
	result := s.db.WithContext(ctx).Model(&SQLiteOwner{}).
		Where("wallet_id = ? AND address = ?", walletID, address).
		Update("name", name)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return multisig.NotFound("owner %s not found", address)
	}
	return nil
}

// CreateTransaction saves a new proposal. A repeated operation hash is
// reported as a duplicate operation.
func (s *Store) CreateTransaction(ctx context.Context, tx *multisig.Transaction) error {
	err := s.db.WithContext(ctx).Create(transactionModel(tx)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return multisig.DuplicateOperation(tx.OperationHash)
	}
	return err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*multisig.Transaction, error) {
	model, err := getTransaction(s.db.WithContext(ctx), "uuid = ?", id)
	if err != nil {
		return nil, err
	}
	return model.toTransaction()
}

func (s *Store) GetTransactionByHash(ctx context.Context, hash string) (*multisig.Transaction, error) {
	model, err := getTransaction(s.db.WithContext(ctx), "operation_hash = ?", hash)
	if err != nil {
		return nil, err
	}
	return model.toTransaction()
}

func getTransaction(db *gorm.DB, query, arg string) (*SQLiteTransaction, error) {
	var model SQLiteTransaction
	result := db.Where(query, arg).Limit(1).Find(&model)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, multisig.NotFound("transaction %s not found", arg)
	}
	return &model, nil
}

// ListTransactions returns matching transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter multisig.TransactionFilter) ([]multisig.Transaction, error) {
	query := s.db.WithContext(ctx).Model(&SQLiteTransaction{})
	if filter.WalletID != "" {
		query = query.Where("wallet_id = ?", filter.WalletID)
	}
	if filter.Status != 0 {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []SQLiteTransaction
	if err := query.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	txs := make([]multisig.Transaction, 0, len(models))
	for i := range models {
		tx, err := models[i].toTransaction()
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// Signatures returns the signatures of a transaction in the order they were
// accepted.
func (s *Store) Signatures(ctx context.Context, txID string) ([]multisig.Signature, error) {
	return signaturesFor(s.db.WithContext(ctx), txID)
}

func signaturesFor(db *gorm.DB, txID string) ([]multisig.Signature, error) {
	var models []SQLiteSignature
	if err := db.Where("transaction_id = ?", txID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	sigs := make([]multisig.Signature, len(models))
	for i := range models {
		sigs[i] = models[i].toSignature()
	}
	return sigs, nil
}

// UpdateTransaction loads the full state of one transaction, applies fn and
// writes the result back inside a single database transaction. The version
// column guards against writers outside this process.
func (s *Store) UpdateTransaction(ctx context.Context, id string, fn func(*multisig.TxState) error) (*multisig.TxState, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	state, err := loadState(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	version := state.Tx.Version

	if err := fn(state); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := saveState(tx, state, version); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction %s: %w", id, err)
	}
	state.Tx.Version = version + 1
	return state, nil
}

func loadState(db *gorm.DB, id string) (*multisig.TxState, error) {
	model, err := getTransaction(db, "uuid = ?", id)
	if err != nil {
		return nil, err
	}
	tx, err := model.toTransaction()
	if err != nil {
		return nil, err
	}
	w, err := getWallet(db, "uuid = ?", tx.WalletID)
	if err != nil {
		return nil, err
	}
	owners, err := activeOwners(db, w.ID)
	if err != nil {
		return nil, err
	}
	sigs, err := signaturesFor(db, id)
	if err != nil {
		return nil, err
	}
	return &multisig.TxState{
		Wallet:     *w,
		Owners:     owners,
		Tx:         *tx,
		Signatures: sigs,
	}, nil
}

func saveState(db *gorm.DB, state *multisig.TxState, version int64) error {
	t := state.Tx
	result := db.Model(&SQLiteTransaction{}).
		Where("uuid = ? AND version = ?", t.ID, version).
		Updates(map[string]interface{}{
			"status":            t.Status.String(),
			"executed_at":       t.ExecutedAt,
			"execution_tx_hash": t.ExecutionTxHash,
			"executed_by":       t.ExecutedBy,
			"cancelled_by":      t.CancelledBy,
			"cancelled_at":      t.CancelledAt,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return multisig.Conflict("transaction %s changed concurrently", t.ID)
	}

	for i := range state.Added {
		if err := db.Create(signatureModel(&state.Added[i])).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return multisig.DuplicateSigner(state.Added[i].SignerAddress)
			}
			return err
		}
	}

	for i := range state.OwnerUpdates {
		if err := saveOwner(db, &state.OwnerUpdates[i]); err != nil {
			return err
		}
	}

	if state.WalletUpdated {
		err := db.Model(&SQLiteWallet{}).
			Where("uuid = ?", state.Wallet.ID).
			Updates(map[string]interface{}{
				"threshold":  state.Wallet.Threshold,
				"next_nonce": state.Wallet.NextNonce,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// saveOwner updates the owner row for (wallet, address), reactivating a
// previously removed owner, or creates it.
func saveOwner(db *gorm.DB, o *multisig.Owner) error {
	var existing SQLiteOwner
	result := db.Where("wallet_id = ? AND address = ?", o.WalletID, o.Address).Limit(1).Find(&existing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.Create(ownerModel(o)).Error
	}

	updates := map[string]interface{}{
		"is_active":  o.IsActive,
		"removed_at": o.RemovedAt,
	}
	if o.IsActive && !existing.IsActive {
		updates["added_at"] = o.AddedAt
	}
	return db.Model(&existing).Updates(updates).Error
}

func walletModel(w *multisig.Wallet) *SQLiteWallet {
	m := &SQLiteWallet{
		UUID:           w.ID,
		Address:        w.Address,
		Name:           w.Name,
		Threshold:      w.Threshold,
		ChainID:        w.ChainID,
		NextNonce:      w.NextNonce,
		CreationTxHash: w.CreationTxHash,
	}
	m.CreatedAt = w.CreatedAt
	return m
}

func (m *SQLiteWallet) toWallet() *multisig.Wallet {
	return &multisig.Wallet{
		ID:             m.UUID,
		Address:        m.Address,
		Name:           m.Name,
		Threshold:      m.Threshold,
		ChainID:        m.ChainID,
		NextNonce:      m.NextNonce,
		CreationTxHash: m.CreationTxHash,
		CreatedAt:      m.CreatedAt,
	}
}

func ownerModel(o *multisig.Owner) *SQLiteOwner {
	return &SQLiteOwner{
		UUID:      o.ID,
		WalletID:  o.WalletID,
		Address:   o.Address,
		Name:      o.Name,
		IsActive:  o.IsActive,
		AddedAt:   o.AddedAt,
		RemovedAt: o.RemovedAt,
	}
}

func (m *SQLiteOwner) toOwner() multisig.Owner {
	return multisig.Owner{
		ID:        m.UUID,
		WalletID:  m.WalletID,
		Address:   m.Address,
		Name:      m.Name,
		IsActive:  m.IsActive,
		AddedAt:   m.AddedAt,
		RemovedAt: m.RemovedAt,
	}
}

func transactionModel(t *multisig.Transaction) *SQLiteTransaction {
	m := &SQLiteTransaction{
		UUID:               t.ID,
		WalletID:           t.WalletID,
		Nonce:              t.Nonce,
		To:                 t.To,
		Value:              decimal(t.Value),
		Data:               t.Data,
		CallData:           t.CallData,
		PaymasterAndData:   t.PaymasterAndData,
		AccountGasLimits:   append([]byte(nil), t.AccountGasLimits[:]...),
		PreVerificationGas: decimal(t.PreVerificationGas),
		GasFees:            append([]byte(nil), t.GasFees[:]...),
		OperationHash:      t.OperationHash,
		Status:             t.Status.String(),
		Type:               t.Type.String(),
		Description:        t.Description,
		TargetOwner:        t.TargetOwner,
		NewThreshold:       t.NewThreshold,
		CreatedBy:          t.CreatedBy,
		ExecutedAt:         t.ExecutedAt,
		ExecutionTxHash:    t.ExecutionTxHash,
		ExecutedBy:         t.ExecutedBy,
		CancelledBy:        t.CancelledBy,
		CancelledAt:        t.CancelledAt,
		Version:            t.Version,
	}
	m.CreatedAt = t.CreatedAt
	return m
}

func (m *SQLiteTransaction) toTransaction() (*multisig.Transaction, error) {
	status, err := multisig.ParseStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", m.UUID, err)
	}
	typ, err := multisig.ParseType(m.Type)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", m.UUID, err)
	}
	value, err := parseDecimal(m.Value)
	if err != nil {
		return nil, fmt.Errorf("transaction %s value: %w", m.UUID, err)
	}
	preVerificationGas, err := parseDecimal(m.PreVerificationGas)
	if err != nil {
		return nil, fmt.Errorf("transaction %s preVerificationGas: %w", m.UUID, err)
	}

	t := &multisig.Transaction{
		ID:                 m.UUID,
		WalletID:           m.WalletID,
		Nonce:              m.Nonce,
		To:                 m.To,
		Value:              value,
		Data:               m.Data,
		CallData:           m.CallData,
		PaymasterAndData:   m.PaymasterAndData,
		PreVerificationGas: preVerificationGas,
		OperationHash:      m.OperationHash,
		Status:             status,
		Type:               typ,
		Description:        m.Description,
		TargetOwner:        m.TargetOwner,
		NewThreshold:       m.NewThreshold,
		CreatedBy:          m.CreatedBy,
		CreatedAt:          m.CreatedAt,
		ExecutedAt:         m.ExecutedAt,
		ExecutionTxHash:    m.ExecutionTxHash,
		ExecutedBy:         m.ExecutedBy,
		CancelledBy:        m.CancelledBy,
		CancelledAt:        m.CancelledAt,
		Version:            m.Version,
	}
	copy(t.AccountGasLimits[:], m.AccountGasLimits)
	copy(t.GasFees[:], m.GasFees)
	return t, nil
}

func signatureModel(sig *multisig.Signature) *SQLiteSignature {
	return &SQLiteSignature{
		UUID:          sig.ID,
		TransactionID: sig.TransactionID,
		OwnerID:       sig.OwnerID,
		SignerAddress: sig.SignerAddress,
		Signature:     sig.Signature,
		SignedAt:      sig.SignedAt,
	}
}

func (m *SQLiteSignature) toSignature() multisig.Signature {
	return multisig.Signature{
		ID:            m.UUID,
		TransactionID: m.TransactionID,
		OwnerID:       m.OwnerID,
		SignerAddress: m.SignerAddress,
		Signature:     m.Signature,
		SignedAt:      m.SignedAt,
	}
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseDecimal(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}
