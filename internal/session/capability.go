package session

import (
	"context"
	"sync/atomic"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/wallet"
)

// Capability is the signing handle of a connected account. It is owned by
// the Manager and lent to callers; once the session ends every call fails
// with domain.ErrNoSession.
type Capability struct {
	provider wallet.Provider
	account  ethtypes.Address0xHex
	revoked  atomic.Bool
}

func newCapability(p wallet.Provider, account ethtypes.Address0xHex) *Capability {
	return &Capability{provider: p, account: account}
}

// Account returns the account the capability acts for.
func (c *Capability) Account() ethtypes.Address0xHex {
	return c.account
}

// CallContract executes a read from the session account.
func (c *Capability) CallContract(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	if c.revoked.Load() {
		return nil, domain.ErrNoSession
	}
	return c.provider.Call(ctx, c.from(msg))
}

// Send submits msg as a transaction from the session account.
func (c *Capability) Send(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	if c.revoked.Load() {
		return nil, domain.ErrNoSession
	}
	return c.provider.SendTransaction(ctx, c.from(msg))
}

// WatchAsset asks the wallet to track a token.
func (c *Capability) WatchAsset(ctx context.Context, asset wallet.Asset) (bool, error) {
	if c.revoked.Load() {
		return false, domain.ErrNoSession
	}
	return c.provider.WatchAsset(ctx, asset)
}

func (c *Capability) from(msg *ethereum.CallMsg) *ethereum.CallMsg {
	cp := *msg
	account := c.account
	cp.From = &account
	return &cp
}

func (c *Capability) revoke() {
	c.revoked.Store(true)
}
