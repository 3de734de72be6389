package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/log"
)

// FinalityConfig controls how long and how often WaitFinalized polls.
type FinalityConfig struct {
	// Confirmations is the number of blocks, including the receipt's own,
	// required before a transaction counts as final.
	Confirmations uint64
	// PollInterval is the initial receipt / block height polling delay.
	PollInterval time.Duration
	// MaxPollInterval caps the exponential polling delay.
	MaxPollInterval time.Duration
	// Timeout bounds the whole wait. Zero means no limit.
	Timeout time.Duration
}

// DefaultFinalityConfig returns default finality configuration.
func DefaultFinalityConfig() FinalityConfig {
	return FinalityConfig{
		Confirmations:   1,
		PollInterval:    1 * time.Second,
		MaxPollInterval: 5 * time.Second,
		Timeout:         5 * time.Minute,
	}
}

// ErrFinalityTimeout is returned when a transaction is not final in time.
var ErrFinalityTimeout = errors.New("timed out waiting for transaction finality")

var errNotYet = errors.New("not yet")

// Finalizer waits for submitted transactions to be mined and confirmed.
type Finalizer struct {
	rpc   RPCClient
	heads HeadSource
	cfg   FinalityConfig
}

// NewFinalizer creates a Finalizer. heads may be nil, in which case block
// height is polled.
func NewFinalizer(rpc RPCClient, heads HeadSource, cfg FinalityConfig) *Finalizer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultFinalityConfig().PollInterval
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	return &Finalizer{rpc: rpc, heads: heads, cfg: cfg}
}

// WaitFinalized blocks until the transaction is mined with the configured
// number of confirmations. A failed receipt is returned with a *RevertError;
// msg, when given, is replayed against the parent block to recover the
// revert reason.
func (f *Finalizer) WaitFinalized(ctx context.Context, hash ethtypes.HexBytes0xPrefix, msg *CallMsg) (*Receipt, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	receipt, err := f.waitMined(ctx, hash)
	if err != nil {
		return nil, f.wrapCtxErr(ctx, hash, err)
	}
	if !receipt.Succeeded() {
		return receipt, f.revertReason(ctx, receipt, msg)
	}
	if err := f.waitConfirmations(ctx, receipt.Block()); err != nil {
		return receipt, f.wrapCtxErr(ctx, hash, err)
	}
	log.L(ctx).Debugf("transaction %s final at block %d", hash, receipt.Block())
	return receipt, nil
}

func (f *Finalizer) wrapCtxErr(ctx context.Context, hash ethtypes.HexBytes0xPrefix, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrFinalityTimeout, hash)
	}
	return err
}

func (f *Finalizer) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.PollInterval
	b.MaxInterval = f.cfg.MaxPollInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func (f *Finalizer) waitMined(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*Receipt, error) {
	var receipt *Receipt
	err := backoff.Retry(func() error {
		r, err := f.rpc.GetTransactionReceipt(ctx, hash)
		if err != nil {
			log.L(ctx).Debugf("receipt poll for %s failed: %s", hash, err)
			return err
		}
		if r == nil {
			return errNotYet
		}
		receipt = r
		return nil
	}, f.newBackOff(ctx))
	return receipt, err
}

func (f *Finalizer) waitConfirmations(ctx context.Context, block uint64) error {
	if f.cfg.Confirmations <= 1 {
		return nil
	}
	target := block + f.cfg.Confirmations - 1

	if f.heads != nil {
		if done, err := f.waitHeads(ctx, target); done || err != nil {
			return err
		}
	}

	return backoff.Retry(func() error {
		n, err := f.rpc.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if n < target {
			return errNotYet
		}
		return nil
	}, f.newBackOff(ctx))
}

// waitHeads returns done=false when the subscription is unavailable, so the
// caller falls back to polling.
func (f *Finalizer) waitHeads(ctx context.Context, target uint64) (bool, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	heads, err := f.heads.SubscribeNewHeads(subCtx)
	if err != nil {
		log.L(ctx).Warnf("newHeads subscription failed, polling block height: %s", err)
		return false, nil
	}
	if n, err := f.rpc.BlockNumber(ctx); err == nil && n >= target {
		return true, nil
	}
	for {
		select {
		case h, ok := <-heads:
			if !ok {
				return false, nil
			}
			if h.Number >= target {
				return true, nil
			}
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

func (f *Finalizer) revertReason(ctx context.Context, receipt *Receipt, msg *CallMsg) error {
	if receipt.RevertReason != nil && len(*receipt.RevertReason) > 0 {
		return NewRevertError(*receipt.RevertReason)
	}
	if msg != nil && receipt.Block() > 0 {
		replay := *msg
		if replay.From == nil {
			replay.From = receipt.From
		}
		_, err := f.rpc.Call(ctx, &replay, fmt.Sprintf("0x%x", receipt.Block()-1))
		var rev *RevertError
		if errors.As(err, &rev) {
			return rev
		}
	}
	return &RevertError{}
}
