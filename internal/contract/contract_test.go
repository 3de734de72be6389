package contract_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/contract/contracttest"
	"voting-token-client/internal/ethereum"
)

var (
	alice = *ethtypes.MustNewAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
	bob   = *ethtypes.MustNewAddress("0x90f79bf6eb2c4f870365e785982e1f101e93b906")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestNewBinding_BadABI(t *testing.T) {
	_, err := contract.NewBinding(context.Background(), alice, []byte(`{`))
	assert.Error(t, err)
}

func TestPack_UnknownFunction(t *testing.T) {
	l := contracttest.NewLedger()
	_, err := l.Voting.Pack(context.Background(), "missing")
	assert.Error(t, err)
}

func TestVotingReads(t *testing.T) {
	ctx := context.Background()
	l := contracttest.NewLedger()
	id := l.AddRound("Best Dev", time.Hour, tokens(100))
	l.AddCandidate(id, "Alice", alice)
	l.AddCandidate(id, "Bob", bob)
	l.CastVote(id, 2, contracttest.VoterAddress)
	l.SetUsername(contracttest.VoterAddress, "carol")

	owner, err := l.Voting.Owner(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, contracttest.OwnerAddress, owner)

	token, err := l.Voting.RewardToken(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, contracttest.TokenAddress, token)

	count, err := l.Voting.RoundCount(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Int64())

	r, err := l.Voting.Round(ctx, l, big.NewInt(id))
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID.Int64())
	assert.Equal(t, "Best Dev", r.Title)
	assert.True(t, r.IsActive)
	assert.Equal(t, tokens(100).String(), r.TotalRewardPool.String())
	assert.Greater(t, r.EndTime.Int64(), time.Now().Unix())

	cands, err := l.Voting.Candidates(ctx, l, big.NewInt(id))
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "Bob", cands[1].Name)
	assert.Equal(t, int64(1), cands[1].VoteCount.Int64())
	assert.Equal(t, bob, cands[1].Wallet)
	assert.Equal(t, []ethtypes.Address0xHex{contracttest.VoterAddress}, cands[1].Voters)
	assert.Empty(t, cands[0].Voters)

	voted, err := l.Voting.HasVoted(ctx, l, big.NewInt(id), contracttest.VoterAddress)
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = l.Voting.HasVoted(ctx, l, big.NewInt(id), alice)
	require.NoError(t, err)
	assert.False(t, voted)

	name, err := l.Voting.Username(ctx, l, contracttest.VoterAddress)
	require.NoError(t, err)
	assert.Equal(t, "carol", name)
}

func TestVotingWritesAndRewards(t *testing.T) {
	ctx := context.Background()
	l := contracttest.NewLedger()
	owner := contracttest.OwnerAddress

	send := func(msg *ethereum.CallMsg, err error) error {
		require.NoError(t, err)
		msg.From = &owner
		hash, err := l.SendTransaction(ctx, msg)
		if err != nil {
			return err
		}
		_, err = l.WaitFinalized(ctx, hash, msg)
		return err
	}

	require.NoError(t, send(l.Voting.CreateRoundMsg(ctx, "Q1", big.NewInt(3600), tokens(50))))
	require.NoError(t, send(l.Voting.AddCandidateMsg(ctx, big.NewInt(1), "Alice", alice)))
	require.NoError(t, send(l.Token.MintMsg(ctx, contracttest.VotingAddress, tokens(10))))

	l.CastVote(1, 1, contracttest.VoterAddress)

	err := send(l.Voting.EndRoundMsg(ctx, big.NewInt(1)))
	var rev *ethereum.RevertError
	require.True(t, errors.As(err, &rev))
	assert.Equal(t, contracttest.ReasonInsufficientBal, rev.Reason)

	require.NoError(t, send(l.Token.MintMsg(ctx, contracttest.VotingAddress, tokens(40))))
	require.NoError(t, send(l.Voting.EndRoundMsg(ctx, big.NewInt(1))))

	bal, err := l.Token.BalanceOf(ctx, l, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens(50).String(), bal.String())

	history, err := l.Voting.RewardHistory(ctx, l, alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Q1", history[0].RoundTitle)
	assert.Equal(t, int64(1), history[0].Rank.Int64())
	assert.Equal(t, tokens(50).String(), history[0].Amount.String())

	sym, err := l.Token.Symbol(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, "VOTE", sym)
}

func TestVoteTwiceReverts(t *testing.T) {
	ctx := context.Background()
	l := contracttest.NewLedger()
	id := l.AddRound("R", time.Hour, tokens(1))
	l.AddCandidate(id, "Alice", alice)

	msg, err := l.Voting.VoteMsg(ctx, big.NewInt(id), big.NewInt(1))
	require.NoError(t, err)
	voter := contracttest.VoterAddress
	msg.From = &voter

	hash, err := l.SendTransaction(ctx, msg)
	require.NoError(t, err)
	_, err = l.WaitFinalized(ctx, hash, msg)
	require.NoError(t, err)

	_, err = l.SendTransaction(ctx, msg)
	var rev *ethereum.RevertError
	require.ErrorAs(t, err, &rev)
	assert.Equal(t, contracttest.ReasonAlreadyVoted, rev.Reason)
}

func TestReadErrorPropagates(t *testing.T) {
	l := contracttest.NewLedger()
	boom := errors.New("boom")
	l.ReadErrors = map[string]error{"roundCount": boom}
	_, err := l.Voting.RoundCount(context.Background(), l)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, l.Reads("roundCount"))
}
