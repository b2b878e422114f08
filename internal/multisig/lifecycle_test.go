package multisig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMovesToReadyAtThreshold(t *testing.T) {
	st := newState(t, 2, addrA, addrB, addrC)
	now := time.Now()

	_, err := st.Sign(addrB, testSig(2), now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st.Tx.Status)
	assert.Equal(t, 1, st.Remaining())

	_, err = st.Sign(addrA, testSig(1), now)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st.Tx.Status)
	assert.Equal(t, 0, st.Remaining())

	// Extra signatures are recorded without changing the state.
	_, err = st.Sign(addrC, testSig(3), now)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st.Tx.Status)
	assert.Len(t, st.Signatures, 3)
	assert.Len(t, st.Added, 3)

	_, err = st.Sign(addrA, testSig(1), now)
	assert.ErrorIs(t, err, ErrDuplicateSigner)
	assert.Len(t, st.Signatures, 3)
}

func TestSignRecordsOwnerLink(t *testing.T) {
	st := newState(t, 1, addrA)
	record, err := st.Sign(addrA, testSig(1), time.Now())
	require.NoError(t, err)
	assert.Equal(t, st.Owners[0].ID, record.OwnerID)
	assert.Equal(t, st.Tx.ID, record.TransactionID)
	assert.NotEmpty(t, record.ID)
}

func TestCancel(t *testing.T) {
	st := newState(t, 2, addrA, addrB)

	err := st.Cancel(addrD, time.Now())
	assert.ErrorIs(t, err, ErrNotAnOwner)
	assert.Equal(t, StatusPending, st.Tx.Status)

	require.NoError(t, st.Cancel(addrB, time.Now()))
	assert.Equal(t, StatusCancelled, st.Tx.Status)
	assert.Equal(t, addrB, st.Tx.CancelledBy)
	assert.NotNil(t, st.Tx.CancelledAt)

	assert.ErrorIs(t, st.Cancel(addrA, time.Now()), ErrInvalidState)
}

func TestCancelFromReady(t *testing.T) {
	st := newState(t, 1, addrA, addrB)
	_, err := st.Sign(addrA, testSig(1), time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusReady, st.Tx.Status)

	require.NoError(t, st.Cancel(addrA, time.Now()))
	assert.Equal(t, StatusCancelled, st.Tx.Status)
	assert.Len(t, st.Signatures, 1, "signatures survive cancellation")
}

func TestMarkExecutedRequiresReady(t *testing.T) {
	st := newState(t, 2, addrA, addrB)

	_, err := st.MarkExecuted("0xabc", addrA, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, st.MarkFailed("0xabc", addrA, time.Now()), ErrInvalidState)
}

func TestMarkExecutedAdvancesNonce(t *testing.T) {
	st := newState(t, 1, addrA)
	st.Tx.Nonce = 3
	_, err := st.Sign(addrA, testSig(1), time.Now())
	require.NoError(t, err)

	govErr, err := st.MarkExecuted("0xabc", addrA, time.Now())
	require.NoError(t, err)
	assert.NoError(t, govErr)
	assert.Equal(t, StatusExecuted, st.Tx.Status)
	assert.Equal(t, "0xabc", st.Tx.ExecutionTxHash)
	assert.Equal(t, addrA, st.Tx.ExecutedBy)
	assert.NotNil(t, st.Tx.ExecutedAt)
	assert.Equal(t, uint64(4), st.Wallet.NextNonce)
	assert.True(t, st.WalletUpdated)
}

func TestMarkFailedKeepsNonce(t *testing.T) {
	st := newState(t, 1, addrA)
	_, err := st.Sign(addrA, testSig(1), time.Now())
	require.NoError(t, err)

	require.NoError(t, st.MarkFailed("0xdead", "", time.Now()))
	assert.Equal(t, StatusFailed, st.Tx.Status)
	assert.Equal(t, uint64(0), st.Wallet.NextNonce)
	assert.False(t, st.WalletUpdated)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []Status{StatusExecuted, StatusFailed, StatusCancelled} {
		t.Run(terminal.String(), func(t *testing.T) {
			st := newState(t, 1, addrA, addrB)
			st.Tx.Status = terminal

			_, err := st.Sign(addrB, testSig(2), time.Now())
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.ErrorIs(t, st.Cancel(addrA, time.Now()), ErrInvalidState)
			_, err = st.MarkExecuted("", "", time.Now())
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.ErrorIs(t, st.MarkFailed("", "", time.Now()), ErrInvalidState)
			assert.Equal(t, terminal, st.Tx.Status)
		})
	}
}

func TestStatusAndTypeText(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusReady, StatusExecuted, StatusFailed, StatusCancelled} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("DONE")
	assert.Error(t, err)

	typ, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeTransfer, typ)
	_, err = ParseType("MINT")
	assert.Error(t, err)

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("READY")))
	assert.Equal(t, StatusReady, s)
	assert.True(t, StatusReady.Open())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
}
