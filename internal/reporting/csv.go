package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"voting-token-client/internal/domain"
)

// RenderLeaderboardCSV renders every round's standings as CSV string.
func RenderLeaderboardCSV(rounds []RoundSection) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	// Header
	if err := w.Write([]string{"round_id", "round_title", "active", "position", "podium", "candidate_id", "name", "wallet", "votes"}); err != nil {
		return "", err
	}

	// Rows
	for _, section := range rounds {
		for _, s := range section.Standings {
			row := []string{
				strconv.FormatInt(section.Round.ID, 10),
				section.Round.Title,
				strconv.FormatBool(section.Round.Active),
				strconv.Itoa(s.Position),
				strconv.Itoa(s.Podium),
				strconv.FormatInt(s.ID, 10),
				s.Name,
				s.Wallet,
				strconv.FormatInt(s.VoteCount, 10),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// RenderRewardsCSV renders a reward history as CSV string.
func RenderRewardsCSV(rewards []domain.RewardRecord) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"round_id", "round_title", "rank", "amount", "timestamp"}); err != nil {
		return "", err
	}
	for _, r := range rewards {
		row := []string{
			strconv.FormatInt(r.RoundID, 10),
			r.RoundTitle,
			strconv.FormatInt(r.Rank, 10),
			r.Amount,
			strconv.FormatInt(r.Timestamp, 10),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
