package ethereum

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// Block tags accepted by eth_call and eth_getTransactionCount.
const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

// RPCClient defines the Ethereum JSON-RPC surface used by the client.
type RPCClient interface {
	// ChainID returns the EIP-155 chain ID.
	ChainID(ctx context.Context) (int64, error)

	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)

	// GasPrice returns the node's suggested legacy gas price.
	GasPrice(ctx context.Context) (*big.Int, error)

	// GetTransactionCount returns the nonce of addr at block.
	GetTransactionCount(ctx context.Context, addr ethtypes.Address0xHex, block string) (uint64, error)

	// EstimateGas estimates gas for msg. A revert is returned as *RevertError.
	EstimateGas(ctx context.Context, msg *CallMsg) (uint64, error)

	// Call executes msg without a transaction. A revert is returned as *RevertError.
	Call(ctx context.Context, msg *CallMsg, block string) (ethtypes.HexBytes0xPrefix, error)

	// SendRawTransaction submits a signed transaction and returns its hash.
	SendRawTransaction(ctx context.Context, raw []byte) (ethtypes.HexBytes0xPrefix, error)

	// GetTransactionReceipt returns nil, nil while the transaction is pending.
	GetTransactionReceipt(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*Receipt, error)
}

// CallMsg is a contract invocation, used for reads and as the body of writes.
type CallMsg struct {
	From  *ethtypes.Address0xHex
	To    *ethtypes.Address0xHex
	Data  ethtypes.HexBytes0xPrefix
	Value *big.Int
}

// Transaction converts msg into the JSON-RPC transaction object.
func (m *CallMsg) Transaction() *ethsigner.Transaction {
	tx := &ethsigner.Transaction{
		To:   m.To,
		Data: m.Data,
	}
	if m.From != nil {
		tx.From = json.RawMessage(`"` + m.From.String() + `"`)
	}
	if m.Value != nil {
		tx.Value = ethtypes.NewHexInteger(m.Value)
	}
	return tx
}

// Receipt is the subset of a transaction receipt the client inspects.
type Receipt struct {
	TransactionHash ethtypes.HexBytes0xPrefix  `json:"transactionHash"`
	BlockNumber     *ethtypes.HexInteger       `json:"blockNumber"`
	BlockHash       ethtypes.HexBytes0xPrefix  `json:"blockHash"`
	From            *ethtypes.Address0xHex     `json:"from"`
	To              *ethtypes.Address0xHex     `json:"to"`
	GasUsed         *ethtypes.HexInteger       `json:"gasUsed"`
	Status          *ethtypes.HexInteger       `json:"status"`
	RevertReason    *ethtypes.HexBytes0xPrefix `json:"revertReason,omitempty"`
}

// Succeeded reports whether the receipt status is 1.
func (r *Receipt) Succeeded() bool {
	return r.Status != nil && r.Status.BigInt().Sign() > 0
}

// Block returns the receipt block number, or 0 if missing.
func (r *Receipt) Block() uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.BigInt().Uint64()
}

// Head is a new block header delivered by a newHeads subscription.
type Head struct {
	Number    uint64
	Hash      string
	Timestamp uint64
}
