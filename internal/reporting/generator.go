package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/idhash"
)

// Output file names written by WriteFiles.
const (
	MarkdownFile    = "REPORT.md"
	LeaderboardFile = "leaderboard.csv"
	RewardsFile     = "rewards.csv"
)

// SnapshotSource supplies the state to report on. *mirror.Store satisfies it.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
}

// Generator produces reports from a snapshot source.
type Generator struct {
	source SnapshotSource
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(source SnapshotSource) *Generator {
	return &Generator{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report for account. Admin adds the distribution summary.
func (g *Generator) Generate(account string, admin bool) (*Report, error) {
	snap := g.source.Snapshot()
	if snap == nil {
		snap = domain.EmptySnapshot()
	}

	digest, err := idhash.SnapshotDigest(snap)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		Account:     account,
		Admin:       admin,
		Digest:      digest,
		Treasury:    snap.Treasury,
		Rewards:     append([]domain.RewardRecord{}, snap.Rewards...),
		TotalEarned: domain.TotalEarned(snap.Rewards),
	}
	if admin {
		r.Distribution = domain.TotalDistributed(snap.Rounds)
	}

	for _, round := range snap.Rounds {
		cands := snap.Candidates[round.ID]
		r.Rounds = append(r.Rounds, RoundSection{
			Round:     round,
			HasVoted:  snap.HasVoted(round.ID),
			Standings: domain.Leaderboard(cands),
			Digest:    idhash.RoundDigest(round, cands),
		})

		r.Summary.Rounds++
		if round.Active {
			r.Summary.ActiveRounds++
		} else {
			r.Summary.EndedRounds++
		}
		r.Summary.Candidates += len(cands)
		for _, c := range cands {
			r.Summary.TotalVotes += c.VoteCount
		}
	}
	return r, nil
}

// WriteFiles renders r into dir as Markdown plus leaderboard and rewards CSVs.
func WriteFiles(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	leaderboard, err := RenderLeaderboardCSV(r.Rounds)
	if err != nil {
		return err
	}
	rewards, err := RenderRewardsCSV(r.Rewards)
	if err != nil {
		return err
	}

	files := map[string]string{
		MarkdownFile:    RenderMarkdown(r),
		LeaderboardFile: leaderboard,
		RewardsFile:     rewards,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
