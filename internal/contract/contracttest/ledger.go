// Package contracttest provides an in-memory voting ledger that speaks the
// contract ABIs, for tests of the packages built on top of contract.
package contracttest

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/wallet"
)

// Well-known addresses used by the ledger.
var (
	VotingAddress = *ethtypes.MustNewAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	TokenAddress  = *ethtypes.MustNewAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	OwnerAddress  = *ethtypes.MustNewAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	VoterAddress  = *ethtypes.MustNewAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
)

// Revert reasons raised by the ledger.
const (
	ReasonOnlyOwner       = "Only owner can call this"
	ReasonAlreadyVoted    = "Already voted"
	ReasonRoundNotActive  = "Round is not active"
	ReasonBadCandidate    = "Invalid candidate"
	ReasonInsufficientBal = "Insufficient contract balance"
)

var serializer = abi.NewSerializer().
	SetFormattingMode(abi.FormatAsObjects).
	SetIntSerializer(abi.Base10StringIntSerializer).
	SetByteSerializer(abi.HexByteSerializer0xPrefix)

type round struct {
	id         int64
	title      string
	endTime    int64
	active     bool
	pool       *big.Int
	candidates []*candidate
	voted      map[string]bool
}

type candidate struct {
	id     int64
	name   string
	votes  int64
	wallet string
	voters []string
}

type reward struct {
	roundID int64
	title   string
	amount  *big.Int
	rank    int64
	at      int64
}

type pendingTx struct {
	from string
	fn   string
	args map[string]interface{}
}

// Submission records a transaction sent to the ledger.
type Submission struct {
	From     string
	Function string
	Args     map[string]interface{}
}

// Ledger is an in-memory voting contract and reward token. It implements
// wallet.Provider, contract.Caller and the finalizer used by the
// orchestrator. Transactions take effect when finalized.
type Ledger struct {
	Voting *contract.Voting
	Token  *contract.Token

	mu        sync.Mutex
	owner     string
	symbol    string
	rounds    []*round
	usernames map[string]string
	balances  map[string]*big.Int
	rewards   map[string][]reward
	pending   map[string]*pendingTx
	nonce     uint64
	reads     map[string]int
	subs      []Submission
	watched   []wallet.Asset

	// Accounts is returned by RequestAccounts.
	Accounts []ethtypes.Address0xHex
	// RejectConnect, RejectSend and RejectAsset simulate declined prompts.
	RejectConnect bool
	RejectSend    bool
	RejectAsset   bool
	// ReadErrors fails reads of the named functions.
	ReadErrors map[string]error
	// SendError, when set, fails every SendTransaction.
	SendError error
	// Hold, when set, blocks WaitFinalized until it is closed.
	Hold chan struct{}
	// CountOverride, when set, replaces the roundCount result.
	CountOverride *big.Int
	// Now is the ledger clock.
	Now func() time.Time
}

// NewLedger creates a ledger owned by OwnerAddress with VoterAddress as
// the connected account.
func NewLedger() *Ledger {
	ctx := context.Background()
	v, err := contract.NewVoting(ctx, VotingAddress)
	if err != nil {
		panic(err)
	}
	t, err := contract.NewToken(ctx, TokenAddress)
	if err != nil {
		panic(err)
	}
	return &Ledger{
		Voting:    v,
		Token:     t,
		owner:     key(OwnerAddress),
		symbol:    "VOTE",
		usernames: make(map[string]string),
		balances:  make(map[string]*big.Int),
		rewards:   make(map[string][]reward),
		pending:   make(map[string]*pendingTx),
		reads:     make(map[string]int),
		Accounts:  []ethtypes.Address0xHex{VoterAddress},
		Now:       time.Now,
	}
}

func key(a ethtypes.Address0xHex) string {
	return strings.ToLower(a.String())
}

// AddRound creates a round directly. duration may be negative to create
// a round that has already passed its end time.
func (l *Ledger) AddRound(title string, duration time.Duration, pool *big.Int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createRound(title, int64(duration/time.Second), pool)
}

// AddCandidate adds a candidate to a round directly.
func (l *Ledger) AddCandidate(roundID int64, name string, wallet ethtypes.Address0xHex) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.rounds[roundID-1]
	c := &candidate{id: int64(len(r.candidates) + 1), name: name, wallet: key(wallet)}
	r.candidates = append(r.candidates, c)
	return c.id
}

// CastVote records a vote directly.
func (l *Ledger) CastVote(roundID, candidateID int64, voter ethtypes.Address0xHex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.vote(key(voter), roundID, candidateID)
}

// Mint credits amount tokens to account.
func (l *Ledger) Mint(account ethtypes.Address0xHex, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(key(account), amount)
}

// SetUsername registers a display name directly.
func (l *Ledger) SetUsername(account ethtypes.Address0xHex, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usernames[key(account)] = name
}

// Balance returns the token balance of account.
func (l *Ledger) Balance(account ethtypes.Address0xHex) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(key(account)))
}

// Reads returns how many times the named function was read.
func (l *Ledger) Reads(fn string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads[fn]
}

// Submissions returns the transactions sent so far.
func (l *Ledger) Submissions() []Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Submission(nil), l.subs...)
}

// Watched returns the assets registered through WatchAsset.
func (l *Ledger) Watched() []wallet.Asset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]wallet.Asset(nil), l.watched...)
}

// RequestAccounts implements wallet.Provider.
func (l *Ledger) RequestAccounts(_ context.Context) ([]ethtypes.Address0xHex, error) {
	if l.RejectConnect {
		return nil, wallet.ErrUserRejected
	}
	return append([]ethtypes.Address0xHex(nil), l.Accounts...), nil
}

// Call implements wallet.Provider.
func (l *Ledger) Call(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	return l.CallContract(ctx, msg)
}

// CallContract implements contract.Caller.
func (l *Ledger) CallContract(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	entry, args, err := l.decode(ctx, msg)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads[entry.Name]++
	if err := l.ReadErrors[entry.Name]; err != nil {
		return nil, err
	}
	values, err := l.read(entry.Name, args)
	if err != nil {
		return nil, err
	}
	return entry.Outputs.EncodeABIDataValues(values)
}

// SendTransaction implements wallet.Provider. The transaction is checked
// against current state as gas estimation would, then queued.
func (l *Ledger) SendTransaction(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	if l.RejectSend {
		return nil, wallet.ErrUserRejected
	}
	if l.SendError != nil {
		return nil, l.SendError
	}
	if msg.From == nil {
		return nil, errors.New("transaction has no sender")
	}
	entry, args, err := l.decode(ctx, msg)
	if err != nil {
		return nil, err
	}
	from := key(*msg.From)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(from, entry.Name, args); err != nil {
		return nil, err
	}
	l.nonce++
	hash := make(ethtypes.HexBytes0xPrefix, 32)
	binary.BigEndian.PutUint64(hash[24:], l.nonce)
	l.pending[hash.String()] = &pendingTx{from: from, fn: entry.Name, args: args}
	l.subs = append(l.subs, Submission{From: from, Function: entry.Name, Args: args})
	return hash, nil
}

// WaitFinalized applies a queued transaction and returns its receipt.
// A transaction that no longer passes its checks fails with a RevertError.
func (l *Ledger) WaitFinalized(ctx context.Context, hash ethtypes.HexBytes0xPrefix, _ *ethereum.CallMsg) (*ethereum.Receipt, error) {
	if l.Hold != nil {
		select {
		case <-l.Hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.pending[hash.String()]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", hash)
	}
	delete(l.pending, hash.String())
	if err := l.check(tx.from, tx.fn, tx.args); err != nil {
		return nil, err
	}
	l.apply(tx.from, tx.fn, tx.args)
	return &ethereum.Receipt{
		TransactionHash: hash,
		BlockNumber:     ethtypes.NewHexInteger64(int64(l.nonce)),
		Status:          ethtypes.NewHexInteger64(1),
	}, nil
}

// WatchAsset implements wallet.Provider.
func (l *Ledger) WatchAsset(_ context.Context, asset wallet.Asset) (bool, error) {
	if l.RejectAsset {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watched = append(l.watched, asset)
	return true, nil
}

func (l *Ledger) decode(ctx context.Context, msg *ethereum.CallMsg) (*abi.Entry, map[string]interface{}, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, nil, errors.New("invalid call")
	}
	var a abi.ABI
	switch *msg.To {
	case VotingAddress:
		a = l.Voting.ABI()
	case TokenAddress:
		a = l.Token.ABI()
	default:
		return nil, nil, fmt.Errorf("no contract at %s", msg.To)
	}
	for _, e := range a {
		if e.Type != abi.Function || !bytes.Equal(e.FunctionSelectorBytes(), msg.Data[:4]) {
			continue
		}
		cv, err := e.DecodeCallDataCtx(ctx, msg.Data)
		if err != nil {
			return nil, nil, err
		}
		raw, err := serializer.SerializeJSONCtx(ctx, cv)
		if err != nil {
			return nil, nil, err
		}
		args := make(map[string]interface{})
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, nil, err
		}
		return e, args, nil
	}
	return nil, nil, ethereum.NewRevertError(nil)
}

func revert(reason string) error {
	data, _ := ethereum.EncodeRevertReason(reason)
	return ethereum.NewRevertError(data)
}

func intArg(args map[string]interface{}, name string) int64 {
	return bigArg(args, name).Int64()
}

func bigArg(args map[string]interface{}, name string) *big.Int {
	s, _ := args[name].(string)
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return new(big.Int)
	}
	return v
}

func addrArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

func (l *Ledger) round(id int64) *round {
	if id < 1 || id > int64(len(l.rounds)) {
		return nil
	}
	return l.rounds[id-1]
}

func (l *Ledger) balance(account string) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) credit(account string, amount *big.Int) {
	l.balances[account] = new(big.Int).Add(l.balance(account), amount)
}

func (l *Ledger) read(fn string, args map[string]interface{}) (map[string]interface{}, error) {
	switch fn {
	case "owner":
		return map[string]interface{}{"owner": l.owner}, nil
	case "rewardToken":
		return map[string]interface{}{"token": key(TokenAddress)}, nil
	case "roundCount":
		if l.CountOverride != nil {
			return map[string]interface{}{"count": l.CountOverride.String()}, nil
		}
		return map[string]interface{}{"count": fmt.Sprint(len(l.rounds))}, nil
	case "rounds":
		r := l.round(intArg(args, "roundId"))
		if r == nil {
			return map[string]interface{}{"id": "0", "title": "", "endTime": "0", "isActive": false, "totalRewardPool": "0"}, nil
		}
		return map[string]interface{}{
			"id":              fmt.Sprint(r.id),
			"title":           r.title,
			"endTime":         fmt.Sprint(r.endTime),
			"isActive":        r.active,
			"totalRewardPool": r.pool.String(),
		}, nil
	case "getCandidates":
		list := []interface{}{}
		if r := l.round(intArg(args, "roundId")); r != nil {
			for _, c := range r.candidates {
				voters := make([]interface{}, len(c.voters))
				for i, v := range c.voters {
					voters[i] = v
				}
				list = append(list, map[string]interface{}{
					"id":        fmt.Sprint(c.id),
					"name":      c.name,
					"voteCount": fmt.Sprint(c.votes),
					"wallet":    c.wallet,
					"voters":    voters,
				})
			}
		}
		return map[string]interface{}{"candidates": list}, nil
	case "hasVoted":
		r := l.round(intArg(args, "roundId"))
		return map[string]interface{}{"voted": r != nil && r.voted[addrArg(args, "voter")]}, nil
	case "usernames":
		return map[string]interface{}{"username": l.usernames[addrArg(args, "account")]}, nil
	case "getUserRewardHistory":
		list := []interface{}{}
		for _, rw := range l.rewards[addrArg(args, "user")] {
			list = append(list, map[string]interface{}{
				"roundId":    fmt.Sprint(rw.roundID),
				"roundTitle": rw.title,
				"amount":     rw.amount.String(),
				"rank":       fmt.Sprint(rw.rank),
				"timestamp":  fmt.Sprint(rw.at),
			})
		}
		return map[string]interface{}{"history": list}, nil
	case "balanceOf":
		return map[string]interface{}{"balance": l.balance(addrArg(args, "account")).String()}, nil
	case "symbol":
		return map[string]interface{}{"symbol": l.symbol}, nil
	}
	return nil, fmt.Errorf("%s is not a read", fn)
}

func (l *Ledger) check(from, fn string, args map[string]interface{}) error {
	switch fn {
	case "createRound":
		if from != l.owner {
			return revert(ReasonOnlyOwner)
		}
	case "addCandidate", "endRound":
		if from != l.owner {
			return revert(ReasonOnlyOwner)
		}
		r := l.round(intArg(args, "roundId"))
		if r == nil || !r.active {
			return revert(ReasonRoundNotActive)
		}
		if fn == "endRound" && l.balance(key(VotingAddress)).Cmp(r.pool) < 0 {
			return revert(ReasonInsufficientBal)
		}
	case "vote":
		r := l.round(intArg(args, "roundId"))
		if r == nil || !r.active {
			return revert(ReasonRoundNotActive)
		}
		if r.voted[from] {
			return revert(ReasonAlreadyVoted)
		}
		cid := intArg(args, "candidateId")
		if cid < 1 || cid > int64(len(r.candidates)) {
			return revert(ReasonBadCandidate)
		}
	case "setUsername", "mint":
	default:
		return fmt.Errorf("%s is not a transaction", fn)
	}
	return nil
}

func (l *Ledger) apply(from, fn string, args map[string]interface{}) {
	switch fn {
	case "createRound":
		l.createRound(args["title"].(string), intArg(args, "duration"), bigArg(args, "rewardAmount"))
	case "addCandidate":
		r := l.round(intArg(args, "roundId"))
		r.candidates = append(r.candidates, &candidate{
			id:     int64(len(r.candidates) + 1),
			name:   args["name"].(string),
			wallet: addrArg(args, "wallet"),
		})
	case "vote":
		_ = l.vote(from, intArg(args, "roundId"), intArg(args, "candidateId"))
	case "endRound":
		l.endRound(intArg(args, "roundId"))
	case "setUsername":
		l.usernames[from] = args["name"].(string)
	case "mint":
		l.credit(addrArg(args, "to"), bigArg(args, "amount"))
	}
}

func (l *Ledger) createRound(title string, duration int64, pool *big.Int) int64 {
	id := int64(len(l.rounds) + 1)
	l.rounds = append(l.rounds, &round{
		id:      id,
		title:   title,
		endTime: l.Now().Unix() + duration,
		active:  true,
		pool:    new(big.Int).Set(pool),
		voted:   make(map[string]bool),
	})
	return id
}

func (l *Ledger) vote(from string, roundID, candidateID int64) error {
	r := l.round(roundID)
	if r == nil || candidateID < 1 || candidateID > int64(len(r.candidates)) {
		return domain.ErrInvalidInput
	}
	c := r.candidates[candidateID-1]
	c.votes++
	c.voters = append(c.voters, from)
	r.voted[from] = true
	return nil
}

// endRound splits the pool equally between the candidates with the most
// votes. A round without votes pays nothing.
func (l *Ledger) endRound(roundID int64) {
	r := l.round(roundID)
	r.active = false
	var top int64
	for _, c := range r.candidates {
		if c.votes > top {
			top = c.votes
		}
	}
	if top == 0 {
		return
	}
	var winners []*candidate
	for _, c := range r.candidates {
		if c.votes == top {
			winners = append(winners, c)
		}
	}
	share := new(big.Int).Div(r.pool, big.NewInt(int64(len(winners))))
	treasury := key(VotingAddress)
	for _, w := range winners {
		l.balances[treasury] = new(big.Int).Sub(l.balance(treasury), share)
		l.credit(w.wallet, share)
		l.rewards[w.wallet] = append(l.rewards[w.wallet], reward{
			roundID: r.id,
			title:   r.title,
			amount:  share,
			rank:    1,
			at:      l.Now().Unix(),
		})
	}
}

var (
	_ wallet.Provider = (*Ledger)(nil)
	_ contract.Caller = (*Ledger)(nil)
)
