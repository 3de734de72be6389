// Package wallet provides the account and signing capability used to
// submit transactions.
package wallet

import (
	"context"
	"fmt"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
)

var (
	// ErrNoProvider is returned when no wallet is configured.
	ErrNoProvider = fmt.Errorf("%w: no wallet provider available", domain.ErrConnectivity)

	// ErrUserRejected is returned when the account holder declines a request.
	ErrUserRejected = domain.ErrUserRejected
)

// Asset describes a token to register with the wallet.
type Asset struct {
	Type     string                `json:"type"`
	Address  ethtypes.Address0xHex `json:"address"`
	Symbol   string                `json:"symbol"`
	Decimals int                   `json:"decimals"`
}

// Provider is an external wallet. Requests that need the account holder's
// consent fail with ErrUserRejected when declined.
type Provider interface {
	// RequestAccounts asks for access and returns the authorized accounts.
	RequestAccounts(ctx context.Context) ([]ethtypes.Address0xHex, error)

	// Call executes a read through the wallet's node connection.
	Call(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error)

	// SendTransaction signs and broadcasts msg, returning the tx hash.
	SendTransaction(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error)

	// WatchAsset asks the wallet to track a token. Returns false if declined.
	WatchAsset(ctx context.Context, asset Asset) (bool, error)
}

// Approver decides on requests that need the account holder's consent.
type Approver interface {
	ApproveConnect(ctx context.Context, account ethtypes.Address0xHex) (bool, error)
	ApproveTransaction(ctx context.Context, account ethtypes.Address0xHex, msg *ethereum.CallMsg) (bool, error)
	ApproveAsset(ctx context.Context, asset Asset) (bool, error)
}

// AutoApprove accepts every request.
type AutoApprove struct{}

func (AutoApprove) ApproveConnect(context.Context, ethtypes.Address0xHex) (bool, error) {
	return true, nil
}

func (AutoApprove) ApproveTransaction(context.Context, ethtypes.Address0xHex, *ethereum.CallMsg) (bool, error) {
	return true, nil
}

func (AutoApprove) ApproveAsset(context.Context, Asset) (bool, error) {
	return true, nil
}
