package stub

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/ethereum"
)

// ErrNotFound is returned when no call handler is configured.
var ErrNotFound = errors.New("not found")

// RPCClient implements ethereum.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	ChainIDValue  int64
	Head          uint64
	GasPriceValue *big.Int
	GasEstimate   uint64
	Nonces        map[string]uint64
	Receipts      map[string]*ethereum.Receipt

	// CallFunc answers eth_call. EstimateFunc, when set, replaces GasEstimate.
	CallFunc     func(msg *ethereum.CallMsg, block string) (ethtypes.HexBytes0xPrefix, error)
	EstimateFunc func(msg *ethereum.CallMsg) (uint64, error)
	SendFunc     func(raw []byte) (ethtypes.HexBytes0xPrefix, error)

	Sent         [][]byte
	Calls        []*ethereum.CallMsg
	ReceiptPolls int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		ChainIDValue:  1337,
		Head:          1,
		GasPriceValue: big.NewInt(1_000_000_000),
		GasEstimate:   100_000,
		Nonces:        make(map[string]uint64),
		Receipts:      make(map[string]*ethereum.Receipt),
	}
}

// ChainID returns ChainIDValue.
func (c *RPCClient) ChainID(_ context.Context) (int64, error) {
	return c.ChainIDValue, nil
}

// BlockNumber returns Head.
func (c *RPCClient) BlockNumber(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Head, nil
}

// GasPrice returns GasPriceValue.
func (c *RPCClient) GasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.GasPriceValue), nil
}

// GetTransactionCount returns the stored nonce for addr.
func (c *RPCClient) GetTransactionCount(_ context.Context, addr ethtypes.Address0xHex, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Nonces[strings.ToLower(addr.String())], nil
}

// EstimateGas returns GasEstimate unless EstimateFunc is set.
func (c *RPCClient) EstimateGas(_ context.Context, msg *ethereum.CallMsg) (uint64, error) {
	if c.EstimateFunc != nil {
		return c.EstimateFunc(msg)
	}
	return c.GasEstimate, nil
}

// Call records msg and delegates to CallFunc.
func (c *RPCClient) Call(_ context.Context, msg *ethereum.CallMsg, block string) (ethtypes.HexBytes0xPrefix, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, msg)
	fn := c.CallFunc
	c.mu.Unlock()
	if fn == nil {
		return nil, ErrNotFound
	}
	return fn(msg, block)
}

// SendRawTransaction records raw and returns the SendFunc hash.
func (c *RPCClient) SendRawTransaction(_ context.Context, raw []byte) (ethtypes.HexBytes0xPrefix, error) {
	c.mu.Lock()
	c.Sent = append(c.Sent, raw)
	fn := c.SendFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(raw)
	}
	return ethtypes.HexBytes0xPrefix{0x01}, nil
}

// GetTransactionReceipt returns the stored receipt, or nil while pending.
func (c *RPCClient) GetTransactionReceipt(_ context.Context, hash ethtypes.HexBytes0xPrefix) (*ethereum.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiptPolls++
	return c.Receipts[hash.String()], nil
}

// AddReceipt stores a receipt for hash mined at block with the given status.
func (c *RPCClient) AddReceipt(hash ethtypes.HexBytes0xPrefix, block uint64, ok bool) *ethereum.Receipt {
	status := int64(0)
	if ok {
		status = 1
	}
	r := &ethereum.Receipt{
		TransactionHash: hash,
		BlockNumber:     ethtypes.NewHexInteger64(int64(block)),
		Status:          ethtypes.NewHexInteger64(status),
	}
	c.mu.Lock()
	c.Receipts[hash.String()] = r
	c.mu.Unlock()
	return r
}

// SetHead moves the chain head.
func (c *RPCClient) SetHead(n uint64) {
	c.mu.Lock()
	c.Head = n
	c.mu.Unlock()
}

var _ ethereum.RPCClient = (*RPCClient)(nil)
