package bundler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/Maphikza/safesocial-coordinator.git/lib/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBundler struct {
	mu           sync.Mutex
	reject       bool
	pendingPolls int
	success      bool
	received     *UserOperation
	entryPoint   common.Address
	polls        int
}

func (f *fakeBundler) SendUserOperation(op UserOperation, entryPoint common.Address) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return common.Hash{}, errors.New("AA21 didn't pay prefund")
	}
	f.received = &op
	f.entryPoint = entryPoint
	return common.HexToHash("0x01"), nil
}

func (f *fakeBundler) GetUserOperationReceipt(hash common.Hash) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls <= f.pendingPolls {
		return nil, nil
	}
	r := &Receipt{UserOpHash: hash, Success: f.success}
	if !f.success {
		r.Reason = "execution reverted"
	}
	r.Receipt.TransactionHash = common.HexToHash("0xabcdef")
	return r, nil
}

func inProc(t *testing.T, f *fakeBundler) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", f))
	t.Cleanup(server.Stop)
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return client
}

func testPayload() *multisig.Payload {
	sender := common.HexToAddress("0x5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a")
	pad := userop.BuildPaymasterAndData(
		common.HexToAddress("0xDd6347561dBE6d88725B0E84a236d60F50c1C594"),
		uint256.NewInt(100000), uint256.NewInt(50000),
		common.HexToAddress("0xC42Cd56eb3Ab9088352854b5c34048300cd989e6"),
	)
	op := userop.New(sender, uint256.NewInt(3), []byte{0xb6, 0x1d, 0x27, 0xf6}, userop.DefaultGasParams(), pad)
	op.Signature = bytes.Repeat([]byte{0x11}, 130)
	chainID := uint256.NewInt(11155111)
	return &multisig.Payload{
		Operation:  op,
		EntryPoint: userop.DefaultEntryPoint,
		ChainID:    chainID,
		Hash:       userop.Hash(op, userop.DefaultEntryPoint, chainID),
	}
}

func TestUnpack(t *testing.T) {
	payload := testPayload()
	op, err := Unpack(payload.Operation)
	require.NoError(t, err)

	assert.Equal(t, payload.Operation.Sender, op.Sender)
	assert.Equal(t, uint64(3), op.Nonce.ToInt().Uint64())
	assert.Equal(t, uint64(500000), op.CallGasLimit.ToInt().Uint64())
	assert.Equal(t, uint64(500000), op.VerificationGasLimit.ToInt().Uint64())
	assert.Equal(t, uint64(1_000_000_000), op.MaxPriorityFeePerGas.ToInt().Uint64())
	assert.Equal(t, uint64(5_000_000_000), op.MaxFeePerGas.ToInt().Uint64())
	require.NotNil(t, op.Paymaster)
	assert.Equal(t, common.HexToAddress("0xDd6347561dBE6d88725B0E84a236d60F50c1C594"), *op.Paymaster)
	assert.Equal(t, uint64(100000), op.PaymasterVerificationGasLimit.ToInt().Uint64())
	assert.Equal(t, uint64(50000), op.PaymasterPostOpGasLimit.ToInt().Uint64())
	assert.Len(t, op.PaymasterData, 20)
	assert.Len(t, op.Signature, 130)

	payload.Operation.PaymasterAndData = nil
	op, err = Unpack(payload.Operation)
	require.NoError(t, err)
	assert.Nil(t, op.Paymaster)
}

func TestSubmitWaitsForReceipt(t *testing.T) {
	fake := &fakeBundler{pendingPolls: 2, success: true}
	client := NewClient([]*rpc.Client{inProc(t, fake)}, WithPollInterval(5*time.Millisecond))

	result, err := client.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, common.HexToHash("0xabcdef").Hex(), result.TxHash)
	assert.Equal(t, 3, fake.polls)
	assert.Equal(t, userop.DefaultEntryPoint, fake.entryPoint)
	require.NotNil(t, fake.received)
	assert.Len(t, fake.received.Signature, 130)
}

func TestSubmitReverted(t *testing.T) {
	fake := &fakeBundler{success: false}
	client := NewClient([]*rpc.Client{inProc(t, fake)}, WithPollInterval(5*time.Millisecond))

	result, err := client.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSubmitFallsBackToNextBundler(t *testing.T) {
	broken := &fakeBundler{reject: true}
	working := &fakeBundler{success: true}
	client := NewClient([]*rpc.Client{inProc(t, broken), inProc(t, working)}, WithPollInterval(5*time.Millisecond))

	result, err := client.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, broken.received)
	assert.NotNil(t, working.received)
}

func TestSubmitAllBundlersFail(t *testing.T) {
	client := NewClient([]*rpc.Client{inProc(t, &fakeBundler{reject: true})})

	_, err := client.Submit(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AA21")
}

func TestSubmitReceiptTimeout(t *testing.T) {
	fake := &fakeBundler{pendingPolls: 1 << 30}
	client := NewClient([]*rpc.Client{inProc(t, fake)},
		WithPollInterval(5*time.Millisecond),
		WithReceiptTimeout(30*time.Millisecond),
	)

	_, err := client.Submit(context.Background(), testPayload())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), nil)
	assert.Error(t, err)
}
