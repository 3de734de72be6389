package orchestrator

import (
	"context"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/notify"
	"voting-token-client/internal/units"
	"voting-token-client/internal/wallet"
)

// RegisterRewardAsset asks the wallet to track the reward token. It does
// nothing until a snapshot has provided the token address and symbol.
func (o *Orchestrator) RegisterRewardAsset(ctx context.Context) (bool, error) {
	treasury := o.sessions.Mirror().Snapshot().Treasury
	if treasury.Token == "" || treasury.Symbol == "" {
		return false, nil
	}
	addr, err := ethtypes.NewAddress(treasury.Token)
	if err != nil {
		return false, err
	}
	c, err := o.sessions.Capability()
	if err != nil {
		o.gateway.Notify("Please connect your wallet first.", notify.SeverityWarning)
		return false, err
	}
	ok, err := c.WatchAsset(ctx, wallet.Asset{
		Type:     "ERC20",
		Address:  *addr,
		Symbol:   treasury.Symbol,
		Decimals: units.Decimals,
	})
	switch {
	case err != nil:
		o.gateway.Notify("Failed to add token", notify.SeverityError)
		return false, err
	case !ok:
		o.gateway.Notify("Token was not added to wallet", notify.SeverityInfo)
		return false, nil
	}
	o.gateway.Notify("Token Added to Wallet!", notify.SeveritySuccess)
	return true, nil
}
