package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/mirror"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func setupStore(t *testing.T) *mirror.Store {
	t.Helper()
	snap := domain.EmptySnapshot()
	snap.Rounds = []domain.Round{
		{ID: 2, Title: "Best Design, 2026", EndTime: 1767225600, Active: true, TotalRewardPool: "30.0"},
		{ID: 1, Title: "Kickoff", EndTime: 1767139200, TotalRewardPool: "100.0"},
	}
	snap.Candidates[2] = []domain.Candidate{
		{ID: 1, Name: "Alice", VoteCount: 1, Wallet: "0x01"},
		{ID: 2, Name: "Bob", VoteCount: 4, Wallet: "0x02"},
	}
	snap.Candidates[1] = []domain.Candidate{
		{ID: 1, Name: "Carol", VoteCount: 2, Wallet: "0x03"},
	}
	snap.VoteStatus[2] = true
	snap.Rewards = []domain.RewardRecord{
		{RoundID: 1, RoundTitle: "Kickoff", Amount: "100.0", Rank: 1, Timestamp: 1767139300},
	}
	snap.Treasury = domain.TreasuryState{Balance: "70.0", Symbol: "VOTE"}

	store := mirror.New()
	store.Replace(snap)
	return store
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(setupStore(t)).WithClock(func() time.Time { return fixedTime })

	r, err := g.Generate("0xabc", true)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(fixedTime) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixedTime)
	}
	if len(r.Digest) != 64 {
		t.Errorf("Digest length = %d, want 64", len(r.Digest))
	}
	want := Summary{Rounds: 2, ActiveRounds: 1, EndedRounds: 1, Candidates: 3, TotalVotes: 7}
	if r.Summary != want {
		t.Errorf("Summary = %+v, want %+v", r.Summary, want)
	}
	if r.Distribution.Total != "100" || r.Distribution.EndedRounds != 1 {
		t.Errorf("Distribution = %+v", r.Distribution)
	}
	if r.TotalEarned != "100" {
		t.Errorf("TotalEarned = %s, want 100", r.TotalEarned)
	}

	if len(r.Rounds) != 2 || r.Rounds[0].Round.ID != 2 {
		t.Fatalf("rounds not in snapshot order: %+v", r.Rounds)
	}
	top := r.Rounds[0].Standings[0]
	if top.Name != "Bob" || top.Podium != 1 {
		t.Errorf("top standing = %+v, want Bob on podium 1", top)
	}
	if !r.Rounds[0].HasVoted || r.Rounds[1].HasVoted {
		t.Error("vote status not carried into round sections")
	}
}

func TestGenerateVoterHasNoDistribution(t *testing.T) {
	r, err := NewGenerator(setupStore(t)).Generate("0xabc", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.Distribution != (domain.Distribution{}) {
		t.Errorf("voter report carries distribution %+v", r.Distribution)
	}
	if strings.Contains(RenderMarkdown(r), "Total Distributed") {
		t.Error("voter markdown shows admin distribution")
	}
}

func TestGenerateEmptyMirror(t *testing.T) {
	r, err := NewGenerator(mirror.New()).Generate("", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(r)
	if !strings.Contains(md, "No rounds created yet.") || !strings.Contains(md, "No rewards received.") {
		t.Errorf("empty markdown missing placeholders:\n%s", md)
	}
	if strings.Contains(md, "Account:") {
		t.Error("markdown shows an account without a session")
	}
}

func TestRenderMarkdown(t *testing.T) {
	r, err := NewGenerator(setupStore(t)).WithClock(func() time.Time { return fixedTime }).Generate("0xabc", true)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Voting Ledger Report",
		"Generated: 2026-01-02T03:04:05Z",
		"Account: 0xabc (admin)",
		"| Total Votes | 7 |",
		"| Treasury | 70.0 VOTE |",
		"| Total Distributed | 100 |",
		"### #2 Best Design, 2026 (active)",
		"You voted",
		"| 1 | 1st | Bob | 0x02 | 4 |",
		"Total earned: 100",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderLeaderboardCSVQuotesTitles(t *testing.T) {
	r, err := NewGenerator(setupStore(t)).Generate("", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	out, err := RenderLeaderboardCSV(r.Rounds)
	if err != nil {
		t.Fatalf("RenderLeaderboardCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "round_id,round_title,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != `2,"Best Design, 2026",true,1,1,2,Bob,0x02,4` {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestRenderRewardsCSV(t *testing.T) {
	out, err := RenderRewardsCSV([]domain.RewardRecord{
		{RoundID: 1, RoundTitle: "Kickoff", Amount: "100.0", Rank: 1, Timestamp: 1767139300},
	})
	if err != nil {
		t.Fatalf("RenderRewardsCSV failed: %v", err)
	}
	want := "round_id,round_title,rank,amount,timestamp\n1,Kickoff,1,100.0,1767139300\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestWriteFiles(t *testing.T) {
	r, err := NewGenerator(setupStore(t)).Generate("0xabc", false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "out")
	if err := WriteFiles(dir, r); err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}
	for _, name := range []string{MarkdownFile, LeaderboardFile, RewardsFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s not written: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
