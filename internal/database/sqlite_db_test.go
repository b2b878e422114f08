package coordinatordb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ownerA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	ownerB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	ownerC = "0xcccccccccccccccccccccccccccccccccccccccc"
	ownerD = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedWallet(t *testing.T, store *Store, threshold int) *multisig.Wallet {
	t.Helper()
	addr := fmt.Sprintf("0x%040x", time.Now().UnixNano())
	w, owners, err := multisig.NewWallet(addr, "", []string{ownerA, ownerB, ownerC}, threshold, 11155111, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.CreateWallet(context.Background(), w, owners))
	return w
}

func seedTransaction(t *testing.T, store *Store, w *multisig.Wallet, nonce uint64) *multisig.Transaction {
	t.Helper()
	tx := &multisig.Transaction{
		ID:                 uuid.NewString(),
		WalletID:           w.ID,
		Nonce:              nonce,
		To:                 ownerD,
		Value:              uint256.NewInt(1_000_000_000_000_000_000),
		Data:               []byte{},
		CallData:           []byte{0xb6, 0x1d, 0x27, 0xf6},
		PreVerificationGas: uint256.NewInt(500000),
		OperationHash:      fmt.Sprintf("0x%064x", time.Now().UnixNano()),
		Status:             multisig.StatusPending,
		Type:               multisig.TypeTransfer,
		CreatedBy:          ownerA,
		CreatedAt:          time.Now(),
		Version:            1,
	}
	tx.AccountGasLimits[31] = 1
	tx.GasFees[15] = 2
	require.NoError(t, store.CreateTransaction(context.Background(), tx))
	return tx
}

func sig(b byte) []byte {
	s := bytes.Repeat([]byte{b}, 65)
	s[64] = 27
	return s
}

func TestCreateAndGetWallet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 2)

	got, err := store.GetWalletByAddress(ctx, w.Address)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, 2, got.Threshold)
	assert.Equal(t, uint64(11155111), got.ChainID)

	byID, err := store.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Address, byID.Address)

	owners, err := store.ActiveOwners(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, owners, 3)
	assert.Equal(t, ownerA, owners[0].Address)
	assert.Equal(t, "Creator", owners[0].Name)

	_, err = store.GetWallet(ctx, "missing")
	assert.ErrorIs(t, err, multisig.ErrNotFound)
}

func TestCreateWalletDuplicateAddress(t *testing.T) {
	store := openTestStore(t)
	w := seedWallet(t, store, 2)

	again, owners, err := multisig.NewWallet(w.Address, "", []string{ownerA}, 1, 1, time.Now())
	require.NoError(t, err)
	err = store.CreateWallet(context.Background(), again, owners)
	assert.ErrorIs(t, err, multisig.ErrDuplicateWallet)

	// The failed registration must not leave stray owners behind.
	list, err := store.ActiveOwners(context.Background(), again.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRenameOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 2)

	require.NoError(t, store.RenameOwner(ctx, w.ID, ownerB, "Bob"))
	owners, err := store.ActiveOwners(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", owners[1].Name)

	assert.ErrorIs(t, store.RenameOwner(ctx, w.ID, ownerD, "Dave"), multisig.ErrNotFound)
}

func TestTransactionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 2)
	tx := seedTransaction(t, store, w, 4)

	got, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.OperationHash, got.OperationHash)
	assert.Equal(t, multisig.StatusPending, got.Status)
	assert.Equal(t, multisig.TypeTransfer, got.Type)
	assert.Equal(t, uint64(4), got.Nonce)
	assert.True(t, tx.Value.Eq(got.Value))
	assert.True(t, tx.PreVerificationGas.Eq(got.PreVerificationGas))
	assert.Equal(t, tx.AccountGasLimits, got.AccountGasLimits)
	assert.Equal(t, tx.GasFees, got.GasFees)
	assert.Equal(t, []byte(tx.CallData), []byte(got.CallData))

	byHash, err := store.GetTransactionByHash(ctx, tx.OperationHash)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byHash.ID)

	_, err = store.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, multisig.ErrNotFound)
}

func TestCreateTransactionDuplicateHash(t *testing.T) {
	store := openTestStore(t)
	w := seedWallet(t, store, 2)
	tx := seedTransaction(t, store, w, 0)

	dup := *tx
	dup.ID = uuid.NewString()
	err := store.CreateTransaction(context.Background(), &dup)
	assert.ErrorIs(t, err, multisig.ErrDuplicateOperation)
}

func TestListTransactions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 1)
	other := seedWallet(t, store, 1)

	first := seedTransaction(t, store, w, 0)
	seedTransaction(t, store, w, 0)
	seedTransaction(t, store, other, 0)

	_, err := store.UpdateTransaction(ctx, first.ID, func(st *multisig.TxState) error {
		_, err := st.Sign(ownerA, sig(1), time.Now())
		return err
	})
	require.NoError(t, err)

	all, err := store.ListTransactions(ctx, multisig.TransactionFilter{WalletID: w.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ready, err := store.ListTransactions(ctx, multisig.TransactionFilter{WalletID: w.ID, Status: multisig.StatusReady})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, first.ID, ready[0].ID)

	limited, err := store.ListTransactions(ctx, multisig.TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdateTransactionSigns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 2)
	tx := seedTransaction(t, store, w, 0)

	state, err := store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		_, err := st.Sign(ownerB, sig(2), time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusPending, state.Tx.Status)
	assert.Equal(t, int64(2), state.Tx.Version)

	state, err = store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		_, err := st.Sign(ownerA, sig(1), time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusReady, state.Tx.Status)

	sigs, err := store.Signatures(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, ownerB, sigs[0].SignerAddress)
	assert.Equal(t, ownerA, sigs[1].SignerAddress)
	assert.Equal(t, sig(2), []byte(sigs[0].Signature))

	stored, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusReady, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
}

func TestUpdateTransactionRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 1)
	tx := seedTransaction(t, store, w, 0)

	boom := errors.New("boom")
	_, err := store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		if _, err := st.Sign(ownerA, sig(1), time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sigs, err := store.Signatures(ctx, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	stored, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestSaveStateDetectsStaleVersion(t *testing.T) {
	store := openTestStore(t)
	w := seedWallet(t, store, 2)
	tx := seedTransaction(t, store, w, 0)

	state, err := loadState(store.db, tx.ID)
	require.NoError(t, err)
	require.NoError(t, saveState(store.db, state, state.Tx.Version))

	// A second write based on the same snapshot loses.
	err = saveState(store.db, state, state.Tx.Version)
	assert.ErrorIs(t, err, multisig.ErrConflict)
}

func TestUniqueSignerIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 3)
	tx := seedTransaction(t, store, w, 0)

	_, err := store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		_, err := st.Sign(ownerA, sig(1), time.Now())
		return err
	})
	require.NoError(t, err)

	// Bypass the rule check and write a second row for the same signer.
	_, err = store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		st.Added = append(st.Added, multisig.Signature{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			SignerAddress: ownerA,
			Signature:     sig(9),
			SignedAt:      time.Now(),
		})
		return nil
	})
	assert.ErrorIs(t, err, multisig.ErrDuplicateSigner)

	sigs, err := store.Signatures(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestGovernanceChangesPersist(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 1)
	tx := seedTransaction(t, store, w, 0)

	_, err := store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		now := time.Now()
		removedAt := now
		st.OwnerUpdates = []multisig.Owner{
			{ID: uuid.NewString(), WalletID: w.ID, Address: ownerD, IsActive: true, AddedAt: now},
			{ID: st.Owners[1].ID, WalletID: w.ID, Address: ownerB, IsActive: false, AddedAt: st.Owners[1].AddedAt, RemovedAt: &removedAt},
		}
		st.Wallet.Threshold = 2
		st.Wallet.NextNonce = 1
		st.WalletUpdated = true
		return nil
	})
	require.NoError(t, err)

	owners, err := store.ActiveOwners(ctx, w.ID)
	require.NoError(t, err)
	var addrs []string
	for _, o := range owners {
		addrs = append(addrs, o.Address)
	}
	assert.ElementsMatch(t, []string{ownerA, ownerC, ownerD}, addrs)

	got, err := store.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Threshold)
	assert.Equal(t, uint64(1), got.NextNonce)

	// Re-adding a removed owner reactivates the existing row.
	_, err = store.UpdateTransaction(ctx, tx.ID, func(st *multisig.TxState) error {
		st.OwnerUpdates = []multisig.Owner{{ID: uuid.NewString(), WalletID: w.ID, Address: ownerB, IsActive: true, AddedAt: time.Now()}}
		return nil
	})
	require.NoError(t, err)
	owners, err = store.ActiveOwners(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, owners, 4)
}

// errorRecorder keeps every failed statement gorm would have logged.
type errorRecorder struct {
	errs []error
}

func (r *errorRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }
func (r *errorRecorder) Info(context.Context, string, ...interface{}) {}
func (r *errorRecorder) Warn(context.Context, string, ...interface{}) {}
func (r *errorRecorder) Error(context.Context, string, ...interface{}) {}

func (r *errorRecorder) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func TestLookupsDoNotLogMisses(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, store, 1)

	rec := &errorRecorder{}
	quiet := &Store{db: store.db.Session(&gorm.Session{Logger: rec})}

	now := time.Now()
	require.NoError(t, saveOwner(quiet.db, &multisig.Owner{ID: uuid.NewString(), WalletID: w.ID, Address: ownerD, IsActive: true, AddedAt: now}))
	require.NoError(t, saveOwner(quiet.db, &multisig.Owner{WalletID: w.ID, Address: ownerD, IsActive: false, AddedAt: now, RemovedAt: &now}))

	_, err := quiet.GetTransactionByHash(ctx, fmt.Sprintf("0x%064x", 1))
	assert.ErrorIs(t, err, multisig.ErrNotFound)

	assert.Empty(t, rec.errs)
	owners, err := store.ActiveOwners(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, owners, 3)
}

func TestChallenges(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fresh := Challenge{Challenge: "fresh", Hash: "h1", Status: ChallengeStatusUnused, CreatedAt: time.Now()}
	stale := Challenge{Challenge: "stale", Hash: "h2", Status: ChallengeStatusUnused, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, store.SaveChallenge(ctx, fresh))
	require.NoError(t, store.SaveChallenge(ctx, stale))

	require.NoError(t, store.ExpireOldChallenges(ctx))
	got, err := store.GetChallenge(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, ChallengeStatusExpired, got.Status)
	assert.False(t, got.ExpiredAt.IsZero())
	assert.Error(t, store.MarkChallengeAsUsed(ctx, "h2", ownerA))

	require.NoError(t, store.MarkChallengeAsUsed(ctx, "h1", ownerA))
	got, err = store.GetChallenge(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeStatusUsed, got.Status)
	assert.Equal(t, ownerA, got.Address)

	// A challenge answers exactly once.
	assert.Error(t, store.MarkChallengeAsUsed(ctx, "h1", ownerA))

	_, err = store.GetChallenge(ctx, "nope")
	assert.Error(t, err)
}
