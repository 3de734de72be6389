package contract

import (
	"context"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/ethereum"
)

// Token binds an ERC-20 reward token.
type Token struct {
	*Binding
}

// NewToken binds the token ABI to address.
func NewToken(ctx context.Context, address ethtypes.Address0xHex) (*Token, error) {
	b, err := NewBinding(ctx, address, TokenABI)
	if err != nil {
		return nil, err
	}
	return &Token{Binding: b}, nil
}

// BalanceOf returns the balance of account in base units.
func (t *Token) BalanceOf(ctx context.Context, c Caller, account ethtypes.Address0xHex) (*big.Int, error) {
	var out struct {
		Balance uint256 `json:"balance"`
	}
	if err := t.call(ctx, c, "balanceOf", &out, account.String()); err != nil {
		return nil, err
	}
	return out.Balance.Int(), nil
}

// Symbol returns the token ticker.
func (t *Token) Symbol(ctx context.Context, c Caller) (string, error) {
	var out struct {
		Symbol string `json:"symbol"`
	}
	err := t.call(ctx, c, "symbol", &out)
	return out.Symbol, err
}

// MintMsg encodes mint(to, amount).
func (t *Token) MintMsg(ctx context.Context, to ethtypes.Address0xHex, amount *big.Int) (*ethereum.CallMsg, error) {
	return t.Pack(ctx, "mint", to.String(), amount)
}
