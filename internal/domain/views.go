package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ActiveRounds returns every round flagged active, in snapshot order.
// The contract does not enforce a single active round, so callers must
// be prepared for more than one.
func ActiveRounds(rounds []Round) []Round {
	active := make([]Round, 0, len(rounds))
	for _, r := range rounds {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// ActiveRound returns the first active round in snapshot order, which is
// the newest one.
func ActiveRound(rounds []Round) (Round, bool) {
	for _, r := range rounds {
		if r.Active {
			return r, true
		}
	}
	return Round{}, false
}

// Standing is a candidate's place on a round leaderboard.
type Standing struct {
	Candidate
	Position int `json:"position"` // 1-based position after sorting
	Podium   int `json:"podium"`   // 1, 2 or 3 for the top three, 0 otherwise
}

// Leaderboard sorts candidates by votes (descending, ties by ID) and assigns
// podium places to the top three. Everyone tied at the highest non-zero
// count shares first place; everyone tied at the second non-zero count
// shares second; the rest of the top three take third.
func Leaderboard(candidates []Candidate) []Standing {
	sorted := append([]Candidate{}, candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].VoteCount != sorted[j].VoteCount {
			return sorted[i].VoteCount > sorted[j].VoteCount
		}
		return sorted[i].ID < sorted[j].ID
	})

	var first, second int64
	if len(sorted) > 0 {
		first = sorted[0].VoteCount
	}
	if len(sorted) > 1 {
		second = sorted[1].VoteCount
	}

	out := make([]Standing, len(sorted))
	for i, c := range sorted {
		out[i] = Standing{Candidate: c, Position: i + 1}
		if i >= 3 {
			continue
		}
		switch {
		case c.VoteCount == first && first > 0:
			out[i].Podium = 1
		case c.VoteCount == second && second > 0:
			out[i].Podium = 2
		default:
			out[i].Podium = 3
		}
	}
	return out
}

// Distribution summarises rewards paid out over ended rounds.
type Distribution struct {
	EndedRounds int    `json:"endedRounds"`
	Total       string `json:"total"`
}

// TotalDistributed sums the reward pools of every round that is no longer
// active. Unparseable pools are skipped.
func TotalDistributed(rounds []Round) Distribution {
	total := decimal.Zero
	ended := 0
	for _, r := range rounds {
		if r.Active {
			continue
		}
		ended++
		if d, err := decimal.NewFromString(r.TotalRewardPool); err == nil {
			total = total.Add(d)
		}
	}
	return Distribution{EndedRounds: ended, Total: total.String()}
}

// TotalEarned sums a reward history.
func TotalEarned(rewards []RewardRecord) string {
	total := decimal.Zero
	for _, r := range rewards {
		if d, err := decimal.NewFromString(r.Amount); err == nil {
			total = total.Add(d)
		}
	}
	return total.String()
}
