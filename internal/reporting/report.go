package reporting

import (
	"time"

	"voting-token-client/internal/domain"
)

// Report is a point-in-time rendering of the mirrored ledger state.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Account     string // empty when rendered without a session
	Admin       bool
	Digest      string // idhash.SnapshotDigest of the source snapshot

	Summary  Summary
	Treasury domain.TreasuryState

	// Rounds in snapshot order (newest first)
	Rounds []RoundSection

	// Session account payouts
	Rewards     []domain.RewardRecord
	TotalEarned string

	// Admin view: pools of ended rounds
	Distribution domain.Distribution
}

// Summary counts what the snapshot holds.
type Summary struct {
	Rounds       int
	ActiveRounds int
	EndedRounds  int
	Candidates   int
	TotalVotes   int64
}

// RoundSection is one round with its leaderboard.
type RoundSection struct {
	Round     domain.Round
	HasVoted  bool
	Standings []domain.Standing
	Digest    string // idhash.RoundDigest
}
