package ethereum

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"

	"voting-token-client/internal/log"
	"voting-token-client/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// HTTPClient implements RPCClient over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration

	rpc rpcbackend.RPC
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// NewHTTPClient creates a new JSON-RPC HTTP client.
// Transport failures, 429 and 5xx responses are retried with exponential
// backoff. JSON-RPC errors are returned immediately.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	var rc *resty.Client
	if c.httpClient != nil {
		rc = resty.NewWithClient(c.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(endpoint).
		SetTimeout(c.timeout).
		SetRetryCount(c.maxRetries).
		SetRetryWaitTime(c.retryDelay).
		SetRetryMaxWaitTime(c.maxDelay).
		AddRetryCondition(retryable)

	c.rpc = rpcbackend.NewRPCClient(rc)
	return c
}

func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// call performs one JSON-RPC call and records its latency.
func (c *HTTPClient) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	start := time.Now()
	var err error
	if rpcErr := c.rpc.CallRPC(ctx, result, method, params...); rpcErr != nil {
		err = convertRPCError(method, rpcErr)
	}
	observability.RecordRPCCall(method, time.Since(start).Seconds(), err)
	if err != nil {
		log.L(ctx).Debugf("%s failed: %s", method, err)
	}
	return err
}

// ChainID returns the EIP-155 chain ID.
func (c *HTTPClient) ChainID(ctx context.Context) (int64, error) {
	var id ethtypes.HexUint64
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return int64(id.Uint64()), nil
}

// BlockNumber returns the latest block height.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n ethtypes.HexUint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GasPrice returns the node's suggested legacy gas price.
func (c *HTTPClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var price ethtypes.HexInteger
	if err := c.call(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return price.BigInt(), nil
}

// GetTransactionCount returns the nonce of addr at block.
func (c *HTTPClient) GetTransactionCount(ctx context.Context, addr ethtypes.Address0xHex, block string) (uint64, error) {
	var n ethtypes.HexUint64
	if err := c.call(ctx, &n, "eth_getTransactionCount", &addr, block); err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// EstimateGas estimates gas for msg.
func (c *HTTPClient) EstimateGas(ctx context.Context, msg *CallMsg) (uint64, error) {
	var gas ethtypes.HexInteger
	if err := c.call(ctx, &gas, "eth_estimateGas", msg.Transaction()); err != nil {
		return 0, err
	}
	return gas.BigInt().Uint64(), nil
}

// Call executes msg against state at block.
func (c *HTTPClient) Call(ctx context.Context, msg *CallMsg, block string) (ethtypes.HexBytes0xPrefix, error) {
	var data ethtypes.HexBytes0xPrefix
	if err := c.call(ctx, &data, "eth_call", msg.Transaction(), block); err != nil {
		return nil, err
	}
	return data, nil
}

// SendRawTransaction submits a signed transaction.
func (c *HTTPClient) SendRawTransaction(ctx context.Context, raw []byte) (ethtypes.HexBytes0xPrefix, error) {
	var hash ethtypes.HexBytes0xPrefix
	if err := c.call(ctx, &hash, "eth_sendRawTransaction", ethtypes.HexBytes0xPrefix(raw)); err != nil {
		return nil, err
	}
	return hash, nil
}

// GetTransactionReceipt returns the receipt for hash, or nil while pending.
func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*Receipt, error) {
	var receipt *Receipt
	if err := c.call(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return receipt, nil
}

var _ RPCClient = (*HTTPClient)(nil)
