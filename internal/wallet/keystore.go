package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/keystorev3"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"

	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
)

// DefaultGasFactor pads eth_estimateGas results.
const DefaultGasFactor = 1.2

// KeystoreConfig locates a V3 keystore and its password.
type KeystoreConfig struct {
	Path         string
	Password     string
	PasswordFile string
	GasFactor    float64
}

// KeystoreWallet signs legacy EIP-155 transactions with a local key and
// submits them through an RPC node.
type KeystoreWallet struct {
	rpc       ethereum.RPCClient
	kp        *secp256k1.KeyPair
	approver  Approver
	gasFactor float64

	mu      sync.Mutex
	chainID int64
	watched []Asset
}

// OpenKeystore loads the keystore described by cfg. A missing path
// returns ErrNoProvider.
func OpenKeystore(cfg KeystoreConfig, rpc ethereum.RPCClient, approver Approver) (*KeystoreWallet, error) {
	if cfg.Path == "" {
		return nil, ErrNoProvider
	}
	keyData, err := os.ReadFile(cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: keystore %s not found", ErrNoProvider, cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	password := cfg.Password
	if password == "" && cfg.PasswordFile != "" {
		passData, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read keystore password: %w", err)
		}
		password = strings.TrimSpace(string(passData))
	}

	wf, err := keystorev3.ReadWalletFile(keyData, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	w := NewKeystoreWallet(secp256k1.KeyPairFromBytes(wf.PrivateKey()), rpc, approver)
	if cfg.GasFactor > 0 {
		w.gasFactor = cfg.GasFactor
	}
	return w, nil
}

// NewKeystoreWallet wraps an in-memory key pair. A nil approver accepts
// everything.
func NewKeystoreWallet(kp *secp256k1.KeyPair, rpc ethereum.RPCClient, approver Approver) *KeystoreWallet {
	if approver == nil {
		approver = AutoApprove{}
	}
	return &KeystoreWallet{
		rpc:       rpc,
		kp:        kp,
		approver:  approver,
		gasFactor: DefaultGasFactor,
	}
}

// Address returns the signing account.
func (w *KeystoreWallet) Address() ethtypes.Address0xHex {
	return ethtypes.Address0xHex(w.kp.Address)
}

// RequestAccounts returns the single keystore account once approved.
func (w *KeystoreWallet) RequestAccounts(ctx context.Context) ([]ethtypes.Address0xHex, error) {
	addr := w.Address()
	ok, err := w.approver.ApproveConnect(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserRejected
	}
	return []ethtypes.Address0xHex{addr}, nil
}

// Call executes a read at the latest block.
func (w *KeystoreWallet) Call(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	return w.rpc.Call(ctx, msg, ethereum.BlockLatest)
}

// SendTransaction signs msg with the keystore key and broadcasts it.
// Nonce assignment is serialized so concurrent sends do not collide.
func (w *KeystoreWallet) SendTransaction(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	from := w.Address()
	if msg.From != nil && !strings.EqualFold(msg.From.String(), from.String()) {
		return nil, fmt.Errorf("account %s is not managed by this wallet", msg.From)
	}
	ok, err := w.approver.ApproveTransaction(ctx, from, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserRejected
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.chainID == 0 {
		if w.chainID, err = w.rpc.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}
	nonce, err := w.rpc.GetTransactionCount(ctx, from, ethereum.BlockPending)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	estimate, err := w.rpc.EstimateGas(ctx, &ethereum.CallMsg{From: &from, To: msg.To, Data: msg.Data, Value: msg.Value})
	if err != nil {
		return nil, err
	}
	gasPrice, err := w.rpc.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}

	tx := &ethsigner.Transaction{
		Nonce:    ethtypes.NewHexInteger64(int64(nonce)),
		GasPrice: ethtypes.NewHexInteger(gasPrice),
		GasLimit: ethtypes.NewHexInteger64(int64(w.padGas(estimate))),
		To:       msg.To,
		Data:     msg.Data,
	}
	if msg.Value != nil {
		tx.Value = ethtypes.NewHexInteger(msg.Value)
	} else {
		tx.Value = ethtypes.NewHexInteger(big.NewInt(0))
	}

	sigPayload := tx.SignaturePayloadLegacyEIP155(w.chainID)
	hash := sha3.NewLegacyKeccak256()
	_, _ = hash.Write(sigPayload.Bytes())
	sig, err := w.kp.SignDirect(hash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	raw, err := tx.FinalizeLegacyEIP155WithSignature(sigPayload, sig, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	txHash, err := w.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}
	log.L(ctx).WithFields(logrus.Fields{
		"hash":  txHash.String(),
		"nonce": nonce,
		"gas":   tx.GasLimit.BigInt().String(),
	}).Debug("Transaction submitted")
	return txHash, nil
}

func (w *KeystoreWallet) padGas(estimate uint64) uint64 {
	pct := uint64(w.gasFactor*100 + 0.5)
	return estimate * pct / 100
}

// WatchAsset records asset once approved.
func (w *KeystoreWallet) WatchAsset(ctx context.Context, asset Asset) (bool, error) {
	ok, err := w.approver.ApproveAsset(ctx, asset)
	if err != nil || !ok {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.watched {
		if a.Address == asset.Address {
			return true, nil
		}
	}
	w.watched = append(w.watched, asset)
	return true, nil
}

// Watched returns the assets registered through WatchAsset.
func (w *KeystoreWallet) Watched() []Asset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Asset(nil), w.watched...)
}

var _ Provider = (*KeystoreWallet)(nil)
