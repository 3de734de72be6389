package reader_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-token-client/internal/contract/contracttest"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/mirror"
	"voting-token-client/internal/reader"
)

var (
	alice = *ethtypes.MustNewAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
	bob   = *ethtypes.MustNewAddress("0x90f79bf6eb2c4f870365e785982e1f101e93b906")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func newReader(l *contracttest.Ledger, opts ...reader.Option) *reader.Reader {
	return reader.New(l.Voting, mirror.New(), opts...)
}

func seed(l *contracttest.Ledger, rounds int) {
	for i := 1; i <= rounds; i++ {
		id := l.AddRound("Round", time.Hour, tokens(int64(i)))
		l.AddCandidate(id, "Alice", alice)
		l.AddCandidate(id, "Bob", bob)
	}
}

func TestLoadSnapshot_ZeroRounds(t *testing.T) {
	l := contracttest.NewLedger()
	voter := contracttest.VoterAddress

	snap, err := newReader(l).LoadSnapshot(context.Background(), l, &voter)
	require.NoError(t, err)
	assert.Empty(t, snap.Rounds)
	assert.NotNil(t, snap.Rounds)
	assert.Equal(t, 0, l.Reads("rounds"))
	assert.Equal(t, 0, l.Reads("getCandidates"))
	assert.Equal(t, 0, l.Reads("hasVoted"))
}

func TestLoadSnapshot_DescendingWithoutGaps(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 7)
	l.CastVote(3, 2, contracttest.VoterAddress)
	voter := contracttest.VoterAddress

	snap, err := newReader(l, reader.WithConcurrency(3)).LoadSnapshot(context.Background(), l, &voter)
	require.NoError(t, err)
	require.Len(t, snap.Rounds, 7)
	for i, r := range snap.Rounds {
		assert.Equal(t, int64(7-i), r.ID)
		assert.Len(t, snap.Candidates[r.ID], 2)
		assert.Equal(t, r.ID == 3, snap.VoteStatus[r.ID])
	}
	assert.Len(t, snap.VoteStatus, 7)
	assert.Equal(t, "3.0", snap.Rounds[4].TotalRewardPool)

	bobInThree := snap.Candidates[3][1]
	assert.Equal(t, "Bob", bobInThree.Name)
	assert.Equal(t, int64(1), bobInThree.VoteCount)
	assert.Equal(t, bob.String(), bobInThree.Wallet)
	assert.Equal(t, []string{voter.String()}, bobInThree.Voters)
}

func TestLoadSnapshot_NoAccount(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 2)

	snap, err := newReader(l).LoadSnapshot(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Rounds, 2)
	assert.Empty(t, snap.VoteStatus)
	assert.Empty(t, snap.Rewards)
	assert.Equal(t, 0, l.Reads("hasVoted"))
	assert.Equal(t, 0, l.Reads("getUserRewardHistory"))
}

func TestLoadSnapshot_RewardsAndTreasury(t *testing.T) {
	l := contracttest.NewLedger()
	l.Mint(contracttest.VotingAddress, tokens(250))
	l.Mint(alice, tokens(1))
	voter := contracttest.VoterAddress

	snap, err := newReader(l).LoadSnapshot(context.Background(), l, &voter)
	require.NoError(t, err)
	assert.Equal(t, domain.TreasuryState{
		Token:   contracttest.TokenAddress.String(),
		Balance: "250.0",
		Symbol:  "VOTE",
	}, snap.Treasury)
	assert.Empty(t, snap.Rewards)
}

func TestLoadSnapshot_TreasuryIsBestEffort(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 1)
	l.ReadErrors = map[string]error{"balanceOf": errors.New("token unreachable")}

	snap, err := newReader(l).LoadSnapshot(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Rounds, 1)
	assert.True(t, snap.Treasury.Degraded)
	assert.Equal(t, domain.ZeroAmount, snap.Treasury.Balance)
	assert.Empty(t, snap.Treasury.Symbol)
}

func TestLoadSnapshot_ReadFailure(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 3)
	boom := errors.New("node went away")
	l.ReadErrors = map[string]error{"getCandidates": boom}

	_, err := newReader(l).LoadSnapshot(context.Background(), l, nil)
	var snapErr *domain.SnapshotError
	require.ErrorAs(t, err, &snapErr)
	assert.ErrorIs(t, err, boom)
}

func TestLoadSnapshot_Overflow(t *testing.T) {
	l := contracttest.NewLedger()
	l.CountOverride = new(big.Int).Lsh(big.NewInt(1), 64)

	_, err := newReader(l).LoadSnapshot(context.Background(), l, nil)
	var overflow *domain.OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "roundCount", overflow.Field)
}

func TestLoadSnapshot_CountAboveLimit(t *testing.T) {
	l := contracttest.NewLedger()
	l.CountOverride = big.NewInt(1 << 62)
	voter := contracttest.VoterAddress

	_, err := newReader(l).LoadSnapshot(context.Background(), l, &voter)
	var snapErr *domain.SnapshotError
	require.ErrorAs(t, err, &snapErr)
	var overflow *domain.OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "roundCount", overflow.Field)
	assert.Equal(t, int64(reader.DefaultMaxRounds), overflow.Limit)
	assert.Equal(t, 0, l.Reads("rounds"))
}

func TestLoadSnapshot_WithMaxRounds(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 3)

	_, err := newReader(l, reader.WithMaxRounds(2)).LoadSnapshot(context.Background(), l, nil)
	var overflow *domain.OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Contains(t, err.Error(), "exceeds limit 2")

	snap, err := newReader(l, reader.WithMaxRounds(3)).LoadSnapshot(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Rounds, 3)
}

func TestRefresh_FailureKeepsMirror(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 2)
	r := newReader(l)
	ctx := context.Background()

	_, err := r.Refresh(ctx, l, nil)
	require.NoError(t, err)
	before := r.Store().Snapshot()
	version := r.Store().Version()

	seed(l, 1)
	l.ReadErrors = map[string]error{"rounds": errors.New("timeout")}
	_, err = r.Refresh(ctx, l, nil)
	require.Error(t, err)

	assert.Equal(t, before, r.Store().Snapshot())
	assert.Equal(t, version, r.Store().Version())
}

func TestRefresh_Idempotent(t *testing.T) {
	l := contracttest.NewLedger()
	seed(l, 4)
	l.CastVote(2, 1, contracttest.VoterAddress)
	voter := contracttest.VoterAddress
	r := newReader(l, reader.WithRateLimit(1000, 4))
	ctx := context.Background()

	_, err := r.Refresh(ctx, l, &voter)
	require.NoError(t, err)
	first, err := json.Marshal(r.Store().Snapshot())
	require.NoError(t, err)

	_, err = r.Refresh(ctx, l, &voter)
	require.NoError(t, err)
	second, err := json.Marshal(r.Store().Snapshot())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, uint64(2), r.Store().Version())
}
