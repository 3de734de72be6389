package ethereum_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/ethereum/stub"
)

func fastFinality(confirmations uint64) ethereum.FinalityConfig {
	return ethereum.FinalityConfig{
		Confirmations:   confirmations,
		PollInterval:    2 * time.Millisecond,
		MaxPollInterval: 5 * time.Millisecond,
		Timeout:         2 * time.Second,
	}
}

func TestFinalizer_WaitsForReceipt(t *testing.T) {
	rpc := stub.NewRPCClient()
	hash := ethtypes.HexBytes0xPrefix{0xaa}

	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.AddReceipt(hash, 5, true)
	}()

	f := ethereum.NewFinalizer(rpc, nil, fastFinality(1))
	r, err := f.WaitFinalized(context.Background(), hash, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.Block())
	assert.Greater(t, rpc.ReceiptPolls, 1)
}

func TestFinalizer_Confirmations(t *testing.T) {
	rpc := stub.NewRPCClient()
	hash := ethtypes.HexBytes0xPrefix{0xbb}
	rpc.AddReceipt(hash, 10, true)
	rpc.SetHead(10)

	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.SetHead(12)
	}()

	f := ethereum.NewFinalizer(rpc, nil, fastFinality(3))
	_, err := f.WaitFinalized(context.Background(), hash, nil)
	require.NoError(t, err)
}

type fakeHeads struct {
	mu sync.Mutex
	ch chan ethereum.Head
}

func (h *fakeHeads) SubscribeNewHeads(ctx context.Context) (<-chan ethereum.Head, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ch = make(chan ethereum.Head, 4)
	return h.ch, nil
}

func TestFinalizer_ConfirmationsFromHeads(t *testing.T) {
	rpc := stub.NewRPCClient()
	hash := ethtypes.HexBytes0xPrefix{0xcc}
	rpc.AddReceipt(hash, 7, true)
	rpc.SetHead(7)

	heads := &fakeHeads{}
	go func() {
		for {
			heads.mu.Lock()
			ch := heads.ch
			heads.mu.Unlock()
			if ch != nil {
				ch <- ethereum.Head{Number: 8}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	f := ethereum.NewFinalizer(rpc, heads, fastFinality(2))
	_, err := f.WaitFinalized(context.Background(), hash, nil)
	require.NoError(t, err)
}

func TestFinalizer_FailedReceiptReplaysReason(t *testing.T) {
	rpc := stub.NewRPCClient()
	hash := ethtypes.HexBytes0xPrefix{0xdd}
	rpc.AddReceipt(hash, 9, false)

	data, err := ethereum.EncodeRevertReason("Insufficient contract balance")
	require.NoError(t, err)

	var replayBlock string
	rpc.CallFunc = func(msg *ethereum.CallMsg, block string) (ethtypes.HexBytes0xPrefix, error) {
		replayBlock = block
		return nil, ethereum.NewRevertError(data)
	}

	f := ethereum.NewFinalizer(rpc, nil, fastFinality(1))
	_, err = f.WaitFinalized(context.Background(), hash, &ethereum.CallMsg{Data: []byte{0x01}})

	var rev *ethereum.RevertError
	require.True(t, errors.As(err, &rev))
	assert.Equal(t, "Insufficient contract balance", rev.Reason)
	assert.Equal(t, "0x8", replayBlock)
}

func TestFinalizer_Timeout(t *testing.T) {
	rpc := stub.NewRPCClient()
	cfg := fastFinality(1)
	cfg.Timeout = 30 * time.Millisecond

	f := ethereum.NewFinalizer(rpc, nil, cfg)
	_, err := f.WaitFinalized(context.Background(), ethtypes.HexBytes0xPrefix{0xee}, nil)
	assert.ErrorIs(t, err, ethereum.ErrFinalityTimeout)
}
