// Package reader assembles snapshots of the voting contract state.
package reader

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
	"voting-token-client/internal/mirror"
	"voting-token-client/internal/observability"
	"voting-token-client/internal/units"
)

const (
	// DefaultConcurrency is the number of rounds read in parallel.
	DefaultConcurrency = 4
	// DefaultMaxRounds caps the round count a snapshot will read.
	DefaultMaxRounds = 10_000
)

// Reader loads snapshots and swaps them into the mirror.
type Reader struct {
	voting      *contract.Voting
	store       *mirror.Store
	concurrency int
	maxRounds   int64
	limiter     *rate.Limiter

	tokenMu sync.Mutex
	token   *contract.Token
}

// Option configures a Reader.
type Option func(*Reader)

// WithConcurrency sets how many rounds are read in parallel.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxRounds sets the largest round count LoadSnapshot accepts.
func WithMaxRounds(n int64) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithRateLimit paces contract calls. rps <= 0 means unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Reader) {
		if rps <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a reader for the voting contract that writes into store.
func New(voting *contract.Voting, store *mirror.Store, opts ...Option) *Reader {
	r := &Reader{
		voting:      voting,
		store:       store,
		concurrency: DefaultConcurrency,
		maxRounds:   DefaultMaxRounds,
		limiter:     rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the mirror the reader writes into.
func (r *Reader) Store() *mirror.Store {
	return r.store
}

// Refresh loads a snapshot and, only if it is complete, replaces the
// mirror with it. On failure the mirror keeps its previous contents.
func (r *Reader) Refresh(ctx context.Context, caller contract.Caller, account *ethtypes.Address0xHex) (*domain.Snapshot, error) {
	snap, err := r.LoadSnapshot(ctx, caller, account)
	if err != nil {
		return nil, err
	}
	version := r.store.Replace(snap)
	log.L(ctx).WithFields(logrus.Fields{
		"version": version,
		"rounds":  len(snap.Rounds),
	}).Debug("Mirror refreshed")
	return snap, nil
}

// pacedCaller waits on the limiter before every call.
type pacedCaller struct {
	contract.Caller
	limiter *rate.Limiter
}

func (p pacedCaller) CallContract(ctx context.Context, msg *ethereum.CallMsg) (ethtypes.HexBytes0xPrefix, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.Caller.CallContract(ctx, msg)
}

type roundResult struct {
	round      domain.Round
	candidates []domain.Candidate
	voted      bool
}

// LoadSnapshot reads every round from newest to oldest, with candidates
// and, when account is set, vote status and reward history. Treasury is
// read last and best-effort. Any other failure returns *SnapshotError.
func (r *Reader) LoadSnapshot(ctx context.Context, caller contract.Caller, account *ethtypes.Address0xHex) (*domain.Snapshot, error) {
	start := time.Now()
	snap, err := r.load(ctx, pacedCaller{Caller: caller, limiter: r.limiter}, account)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observability.RecordSnapshotLoad("error", elapsed)
		log.L(ctx).WithError(err).Warn("Snapshot load failed")
		return nil, &domain.SnapshotError{Cause: err}
	}
	observability.RecordSnapshotLoad("ok", elapsed)
	return snap, nil
}

func (r *Reader) load(ctx context.Context, caller contract.Caller, account *ethtypes.Address0xHex) (*domain.Snapshot, error) {
	countRaw, err := r.voting.RoundCount(ctx, caller)
	if err != nil {
		return nil, err
	}
	count, err := units.Int64("roundCount", countRaw)
	if err != nil {
		return nil, err
	}
	if count > r.maxRounds {
		return nil, &domain.OverflowError{Field: "roundCount", Value: countRaw.String(), Limit: r.maxRounds}
	}

	snap := domain.EmptySnapshot()
	results := make([]roundResult, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for id := count; id >= 1; id-- {
		id := id
		g.Go(func() error {
			res, err := r.readRound(gctx, caller, id, account)
			if err != nil {
				return fmt.Errorf("round %d: %w", id, err)
			}
			results[count-id] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		snap.Rounds = append(snap.Rounds, res.round)
		snap.Candidates[res.round.ID] = res.candidates
		if account != nil {
			snap.VoteStatus[res.round.ID] = res.voted
		}
	}

	if account != nil {
		if snap.Rewards, err = r.readRewards(ctx, caller, *account); err != nil {
			return nil, err
		}
	}

	snap.Treasury = r.readTreasury(ctx, caller)
	return snap, nil
}

func (r *Reader) readRound(ctx context.Context, caller contract.Caller, id int64, account *ethtypes.Address0xHex) (*roundResult, error) {
	roundID := big.NewInt(id)
	info, err := r.voting.Round(ctx, caller, roundID)
	if err != nil {
		return nil, err
	}
	round := domain.Round{
		Title:           info.Title,
		Active:          info.IsActive,
		TotalRewardPool: units.FormatUnits(info.TotalRewardPool),
	}
	if round.ID, err = units.Int64("round.id", info.ID); err != nil {
		return nil, err
	}
	if round.EndTime, err = units.Int64("round.endTime", info.EndTime); err != nil {
		return nil, err
	}

	raw, err := r.voting.Candidates(ctx, caller, roundID)
	if err != nil {
		return nil, err
	}
	cands := make([]domain.Candidate, len(raw))
	for i, c := range raw {
		cands[i] = domain.Candidate{
			Name:   c.Name,
			Wallet: c.Wallet.String(),
		}
		if cands[i].ID, err = units.Int64("candidate.id", c.ID); err != nil {
			return nil, err
		}
		if cands[i].VoteCount, err = units.Int64("candidate.voteCount", c.VoteCount); err != nil {
			return nil, err
		}
		for _, v := range c.Voters {
			cands[i].Voters = append(cands[i].Voters, v.String())
		}
	}

	res := &roundResult{round: round, candidates: cands}
	if account != nil {
		if res.voted, err = r.voting.HasVoted(ctx, caller, roundID, *account); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Reader) readRewards(ctx context.Context, caller contract.Caller, account ethtypes.Address0xHex) ([]domain.RewardRecord, error) {
	history, err := r.voting.RewardHistory(ctx, caller, account)
	if err != nil {
		return nil, fmt.Errorf("reward history: %w", err)
	}
	rewards := make([]domain.RewardRecord, 0, len(history))
	for _, h := range history {
		rec := domain.RewardRecord{
			RoundTitle: h.RoundTitle,
			Amount:     units.FormatUnits(h.Amount),
		}
		if rec.RoundID, err = units.Int64("reward.roundId", h.RoundID); err != nil {
			return nil, err
		}
		if rec.Rank, err = units.Int64("reward.rank", h.Rank); err != nil {
			return nil, err
		}
		if rec.Timestamp, err = units.Int64("reward.timestamp", h.Timestamp); err != nil {
			return nil, err
		}
		rewards = append(rewards, rec)
	}
	return rewards, nil
}

// readTreasury never fails. A failed read leaves the zero balance and
// marks the state degraded.
func (r *Reader) readTreasury(ctx context.Context, caller contract.Caller) domain.TreasuryState {
	state := domain.TreasuryState{Balance: domain.ZeroAmount}
	fail := func(step string, err error) domain.TreasuryState {
		observability.RecordTreasuryReadFailure()
		log.L(ctx).WithError(err).WithField("step", step).Warn("Treasury read failed")
		state.Degraded = true
		return state
	}

	tokenAddr, err := r.voting.RewardToken(ctx, caller)
	if err != nil {
		return fail("rewardToken", err)
	}
	state.Token = tokenAddr.String()

	token, err := r.tokenBinding(ctx, tokenAddr)
	if err != nil {
		return fail("bind", err)
	}
	balance, err := token.BalanceOf(ctx, caller, r.voting.Address())
	if err != nil {
		return fail("balanceOf", err)
	}
	state.Balance = units.FormatUnits(balance)

	if state.Symbol, err = token.Symbol(ctx, caller); err != nil {
		return fail("symbol", err)
	}
	return state
}

func (r *Reader) tokenBinding(ctx context.Context, addr ethtypes.Address0xHex) (*contract.Token, error) {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	if r.token != nil && r.token.Address() == addr {
		return r.token, nil
	}
	token, err := contract.NewToken(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.token = token
	return token, nil
}
