package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
	"voting-token-client/internal/mirror"
	"voting-token-client/internal/notify"
	"voting-token-client/internal/orchestrator"
	"voting-token-client/internal/reader"
	"voting-token-client/internal/session"
	"voting-token-client/internal/wallet"
)

// app is the wired runtime behind one command invocation.
type app struct {
	out      io.Writer
	gateway  notify.Gateway
	voting   *contract.Voting
	reader   *reader.Reader
	sessions *session.Manager
	orch     *orchestrator.Orchestrator

	// caller serves reads when no wallet is configured.
	caller contract.Caller
	// hasWallet is false in read-only mode.
	hasWallet bool
	closers   []func() error
}

// deps are the endpoints an app is assembled from.
type deps struct {
	provider  wallet.Provider // nil means read-only
	caller    contract.Caller
	finalizer orchestrator.Finalizer
	gateway   notify.Gateway
	closers   []func() error
}

// dialApp connects to the configured node and opens the keystore, if any.
func dialApp(ctx context.Context, c *cli) (*app, error) {
	cfg := c.cfg
	rpc := ethereum.NewHTTPClient(cfg.RPC.Endpoint, cfg.ClientOptions()...)
	gateway := notify.NewTerminal(c.stderr, c.stdin, c.yes)

	d := deps{
		caller:  rpcCaller{rpc: rpc},
		gateway: gateway,
	}

	var heads ethereum.HeadSource
	if cfg.RPC.WSEndpoint != "" {
		ws, err := ethereum.NewWSClient(ctx, cfg.RPC.WSEndpoint, nil)
		if err != nil {
			log.L(ctx).WithError(err).Warn("WebSocket unavailable, polling for finality")
		} else {
			heads = ws
			d.closers = append(d.closers, ws.Close)
		}
	}
	d.finalizer = ethereum.NewFinalizer(rpc, heads, cfg.EthereumFinality())

	kw, err := wallet.OpenKeystore(cfg.KeystoreConfig(), rpc, terminalApprover{gateway: gateway})
	switch {
	case errors.Is(err, wallet.ErrNoProvider):
		log.L(ctx).Debug("No keystore configured, running read-only")
	case err != nil:
		return nil, err
	default:
		d.provider = kw
	}

	return assemble(ctx, c, d)
}

// assemble wires bindings, mirror, session manager and orchestrator.
func assemble(ctx context.Context, c *cli, d deps) (*app, error) {
	addr, err := c.cfg.VotingAddress()
	if err != nil {
		return nil, err
	}
	voting, err := contract.NewVoting(ctx, addr)
	if err != nil {
		return nil, err
	}
	rd := reader.New(voting, mirror.New(), c.cfg.ReaderOptions()...)

	sessions := session.NewManager(d.provider, voting, rd)

	return &app{
		out:      c.stdout,
		gateway:  d.gateway,
		voting:   voting,
		reader:   rd,
		sessions: sessions,
		orch: orchestrator.New(orchestrator.Options{
			Sessions:  sessions,
			Voting:    voting,
			Gateway:   d.gateway,
			Finalizer: d.finalizer,
			Lifetime:  ctx,
		}),
		caller:    d.caller,
		hasWallet: d.provider != nil,
		closers:   d.closers,
	}, nil
}

// Close disconnects the session and releases transports.
func (a *app) Close() {
	if a.sessions.IsConnected() {
		a.sessions.Disconnect()
	}
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			log.L(context.Background()).WithError(err).Debug("Close failed")
		}
	}
}

// connect opens a wallet session. A failed initial snapshot is reported but
// leaves the session usable.
func (a *app) connect(ctx context.Context) error {
	err := a.sessions.Connect(ctx)
	var snapErr *domain.SnapshotError
	if errors.As(err, &snapErr) {
		a.gateway.Notify("Connected, but ledger data could not be loaded", notify.SeverityWarning)
		return nil
	}
	return err
}

// load returns a fresh snapshot: through the wallet session when one is
// configured, otherwise read-only without account-specific data.
func (a *app) load(ctx context.Context) (*domain.Snapshot, error) {
	if a.hasWallet {
		if err := a.sessions.Connect(ctx); err != nil {
			return nil, err
		}
		return a.sessions.Mirror().Snapshot(), nil
	}
	return a.reader.Refresh(ctx, a.caller, nil)
}

// reload refreshes whatever load established.
func (a *app) reload(ctx context.Context) (*domain.Snapshot, error) {
	if a.sessions.IsConnected() {
		return a.sessions.Refresh(ctx)
	}
	return a.reader.Refresh(ctx, a.caller, nil)
}

// execute connects and runs one intent. Declines are not errors.
func (a *app) execute(ctx context.Context, intent orchestrator.Intent) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	out := a.orch.Execute(ctx, intent)
	switch {
	case out.Succeeded():
		fmt.Fprintf(a.out, "%s finalized: %s\n", out.Action, out.TxHash)
		return nil
	case out.Class == orchestrator.ClassDeclined:
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	case out.Message != "":
		return fmt.Errorf("%s: %w", out.Message, out.Err)
	default:
		return out.Err
	}
}

// rpcCaller serves contract reads straight from the node.
type rpcCaller struct {
	rpc ethereum.RPCClient
}

func (r rpcCaller) CallContract(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	return r.rpc.Call(ctx, msg, ethereum.BlockLatest)
}

// terminalApprover turns wallet consent requests into gateway confirmations.
type terminalApprover struct {
	gateway notify.Gateway
}

func (t terminalApprover) ApproveConnect(ctx context.Context, account ethtypes.Address0xHex) (bool, error) {
	return t.gateway.Confirm(ctx, fmt.Sprintf("Connect account %s?", account))
}

func (t terminalApprover) ApproveTransaction(ctx context.Context, account ethtypes.Address0xHex, msg *ethereum.CallMsg) (bool, error) {
	to := "contract creation"
	if msg.To != nil {
		to = msg.To.String()
	}
	return t.gateway.Confirm(ctx, fmt.Sprintf("Sign transaction from %s to %s?", account, to))
}

func (t terminalApprover) ApproveAsset(ctx context.Context, asset wallet.Asset) (bool, error) {
	return t.gateway.Confirm(ctx, fmt.Sprintf("Track %s token %s in wallet?", asset.Symbol, asset.Address))
}

var _ wallet.Approver = terminalApprover{}
