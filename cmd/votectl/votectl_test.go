package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-token-client/internal/config"
	"voting-token-client/internal/contract/contracttest"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/notify"
	"voting-token-client/internal/reporting"
)

var alice = *ethtypes.MustNewAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func seeded() *contracttest.Ledger {
	l := contracttest.NewLedger()
	id := l.AddRound("Best Dev", time.Hour, tokens(10))
	l.AddCandidate(id, "Alice", alice)
	l.AddCandidate(id, "Bob", contracttest.OwnerAddress)
	l.CastVote(id, 2, contracttest.OwnerAddress)
	return l
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes votectl against l. readOnly drops the wallet.
func run(t *testing.T, l *contracttest.Ledger, readOnly bool, stdin string, args ...string) result {
	t.Helper()
	t.Setenv(config.EnvAddress, "")
	t.Setenv(config.EnvRPCEndpoint, "")

	var out, errOut bytes.Buffer
	c := newCLI(&out, &errOut, strings.NewReader(stdin))
	c.newApp = func(ctx context.Context, c *cli) (*app, error) {
		d := deps{
			caller:    l,
			finalizer: l,
			gateway:   notify.NewTerminal(c.stderr, c.stdin, c.yes),
		}
		if !readOnly {
			d.provider = l
		}
		return assemble(ctx, c, d)
	}

	cmd := c.command()
	cmd.SetArgs(append([]string{
		"--rpc", "http://127.0.0.1:1",
		"--address", contracttest.VotingAddress.String(),
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--log-level", "error",
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func TestSnapshotJSON(t *testing.T) {
	l := seeded()
	res := run(t, l, false, "", "snapshot", "--json")
	require.NoError(t, res.err)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &snap))
	require.Len(t, snap.Rounds, 1)
	assert.Equal(t, "Best Dev", snap.Rounds[0].Title)
	assert.Equal(t, "10.0", snap.Rounds[0].TotalRewardPool)
	assert.Len(t, snap.Candidates[1], 2)
	assert.False(t, snap.VoteStatus[1])
}

func TestSnapshotReadOnly(t *testing.T) {
	l := seeded()
	res := run(t, l, true, "", "snapshot")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Best Dev")
	assert.NotContains(t, res.stdout, "Account:")
	assert.Equal(t, 0, l.Reads("hasVoted"))
	assert.Equal(t, 0, l.Reads("getUserRewardHistory"))
}

func TestVoteAutoApproved(t *testing.T) {
	l := seeded()
	res := run(t, l, false, "", "vote", "1", "1", "--yes")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "vote finalized: 0x")
	assert.Contains(t, res.stderr, "Vote for Alice in this round? [y/N] y")
	assert.Contains(t, res.stderr, "[SUCCESS] Vote Cast Successfully!")
	subs := l.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "vote", subs[0].Function)
}

func TestVoteDeclined(t *testing.T) {
	l := seeded()
	res := run(t, l, false, "n\n", "vote", "1", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Cancelled")
	assert.Empty(t, l.Submissions())
}

func TestVoteAlreadyVoted(t *testing.T) {
	l := seeded()
	l.CastVote(1, 1, contracttest.VoterAddress)

	res := run(t, l, false, "", "vote", "1", "2", "--yes")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrAlreadyDone)
	assert.Contains(t, res.err.Error(), "You have already voted in this round!")
	assert.Empty(t, l.Submissions())
}

func TestVoteBadArgs(t *testing.T) {
	res := run(t, seeded(), false, "", "vote", "first", "1")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrInvalidInput)

	res = run(t, seeded(), false, "", "vote", "1")
	require.Error(t, res.err)
}

func TestIntentWithoutWallet(t *testing.T) {
	res := run(t, seeded(), true, "", "vote", "1", "1", "--yes")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrConnectivity)
}

func TestMintInvalidAmount(t *testing.T) {
	l := seeded()
	l.Accounts = []ethtypes.Address0xHex{contracttest.OwnerAddress}
	res := run(t, l, false, "", "mint", "0", "--yes")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, domain.ErrInvalidInput)
	assert.Contains(t, res.err.Error(), "Please enter a valid positive amount.")
}

func TestAdminFlow(t *testing.T) {
	l := seeded()
	l.Accounts = []ethtypes.Address0xHex{contracttest.OwnerAddress}

	res := run(t, l, false, "", "end-round", "1", "--yes")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Error: Treasury empty! Please refill tokens first.")

	res = run(t, l, false, "", "mint", "10", "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Successfully minted 10 VOTE")

	res = run(t, l, false, "", "end-round", "1", "--yes")
	require.NoError(t, res.err)
	assert.Equal(t, tokens(10).String(), l.Balance(contracttest.OwnerAddress).String())

	res = run(t, l, false, "", "create-round", "--title", "Round Two", "--hours", "2", "--reward", "5", "--yes")
	require.NoError(t, res.err)
	res = run(t, l, false, "", "add-candidate", "2", "--name", "Carol", "--wallet", alice.String(), "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Candidate added to Round Two!")

	res = run(t, l, false, "", "rewards")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Best Dev")
	assert.Contains(t, res.stdout, "Total earned: 10 VOTE")
	assert.Contains(t, res.stdout, "Distributed over 1 ended rounds: 10 VOTE")
}

func TestCreateRoundMissingTitle(t *testing.T) {
	l := seeded()
	l.Accounts = []ethtypes.Address0xHex{contracttest.OwnerAddress}
	res := run(t, l, false, "", "create-round", "--reward", "5", "--yes")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Please fill in Title and Reward Amount")
}

func TestLeaderboard(t *testing.T) {
	res := run(t, seeded(), true, "", "leaderboard")
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "#1 Best Dev")
	assert.Contains(t, lines[3], "Bob")
	assert.Contains(t, lines[3], "1st")
	assert.Contains(t, lines[4], "Alice")

	res = run(t, seeded(), true, "", "leaderboard", "9")
	require.Error(t, res.err)
}

func TestLeaderboardEmpty(t *testing.T) {
	res := run(t, contracttest.NewLedger(), true, "", "leaderboard")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No rounds created yet.")
}

func TestReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := run(t, seeded(), false, "", "report", "--out", dir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Report written to "+dir)

	md, err := os.ReadFile(filepath.Join(dir, reporting.MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Account: "+contracttest.VoterAddress.String())
	_, err = os.Stat(filepath.Join(dir, reporting.LeaderboardFile))
	require.NoError(t, err)
}

func TestWatchAsset(t *testing.T) {
	l := seeded()
	res := run(t, l, false, "", "watch-asset")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Token Added to Wallet!")
	require.Len(t, l.Watched(), 1)
	assert.Equal(t, "VOTE", l.Watched()[0].Symbol)
}

func TestMissingAddress(t *testing.T) {
	t.Setenv(config.EnvAddress, "")
	var out bytes.Buffer
	c := newCLI(&out, &out, strings.NewReader(""))
	cmd := c.command()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "snapshot"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestWatcherStatus(t *testing.T) {
	l := seeded()
	var out bytes.Buffer
	c := newCLI(&out, &out, strings.NewReader(""))
	c.cfg = config.Default()
	c.cfg.Contract.Address = contracttest.VotingAddress.String()
	a, err := assemble(context.Background(), c, deps{caller: l, finalizer: l, gateway: notify.Discard{}})
	require.NoError(t, err)

	w := &watcher{a: a, interval: time.Second}
	ctx := context.Background()
	_, err = a.load(ctx)
	require.NoError(t, err)
	w.observe(ctx, nil)
	first := out.String()
	assert.Contains(t, first, "Best Dev")

	// Unchanged state prints nothing new.
	_, err = a.reload(ctx)
	require.NoError(t, err)
	w.observe(ctx, nil)
	assert.Equal(t, first, out.String())

	l.CastVote(1, 1, alice)
	_, err = a.reload(ctx)
	require.NoError(t, err)
	w.observe(ctx, nil)
	assert.Greater(t, out.Len(), len(first))

	srv := httptest.NewServer(w.mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 3, status.Refreshes)
	assert.Equal(t, 0, status.Failures)
	assert.Len(t, status.Digest, 64)
	assert.Equal(t, uint64(3), status.MirrorVersion)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
