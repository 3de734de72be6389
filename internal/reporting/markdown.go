package reporting

import (
	"fmt"
	"strings"
	"time"
)

var podiumLabels = map[int]string{1: "1st", 2: "2nd", 3: "3rd"}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Voting Ledger Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Account != "" {
		role := "voter"
		if r.Admin {
			role = "admin"
		}
		sb.WriteString(fmt.Sprintf("Account: %s (%s)\n\n", r.Account, role))
	}
	sb.WriteString(fmt.Sprintf("Snapshot digest: `%s`\n\n", r.Digest))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rounds | %d |\n", r.Summary.Rounds))
	sb.WriteString(fmt.Sprintf("| Active Rounds | %d |\n", r.Summary.ActiveRounds))
	sb.WriteString(fmt.Sprintf("| Ended Rounds | %d |\n", r.Summary.EndedRounds))
	sb.WriteString(fmt.Sprintf("| Candidates | %d |\n", r.Summary.Candidates))
	sb.WriteString(fmt.Sprintf("| Total Votes | %d |\n", r.Summary.TotalVotes))
	treasury := fmt.Sprintf("%s %s", r.Treasury.Balance, r.Treasury.Symbol)
	if r.Treasury.Degraded {
		treasury += " (unavailable)"
	}
	sb.WriteString(fmt.Sprintf("| Treasury | %s |\n", strings.TrimSpace(treasury)))
	if r.Admin {
		sb.WriteString(fmt.Sprintf("| Total Distributed | %s |\n", r.Distribution.Total))
	}
	sb.WriteString("\n")

	// Rounds
	sb.WriteString("## Rounds\n\n")
	if len(r.Rounds) == 0 {
		sb.WriteString("No rounds created yet.\n\n")
	}
	for _, section := range r.Rounds {
		status := "ended"
		if section.Round.Active {
			status = "active"
		}
		sb.WriteString(fmt.Sprintf("### #%d %s (%s)\n\n", section.Round.ID, section.Round.Title, status))
		sb.WriteString(fmt.Sprintf("Ends: %s | Reward pool: %s", time.Unix(section.Round.EndTime, 0).UTC().Format(time.RFC3339), section.Round.TotalRewardPool))
		if section.HasVoted {
			sb.WriteString(" | You voted")
		}
		sb.WriteString("\n\n")

		if len(section.Standings) == 0 {
			sb.WriteString("No candidates.\n\n")
			continue
		}
		sb.WriteString("| Pos | Podium | Candidate | Wallet | Votes |\n")
		sb.WriteString("|-----|--------|-----------|--------|-------|\n")
		for _, s := range section.Standings {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d |\n",
				s.Position, podiumLabels[s.Podium], s.Name, s.Wallet, s.VoteCount))
		}
		sb.WriteString("\n")
	}

	// Rewards
	sb.WriteString("## Rewards\n\n")
	if len(r.Rewards) > 0 {
		sb.WriteString("| Round | Title | Rank | Amount | Paid |\n")
		sb.WriteString("|-------|-------|------|--------|------|\n")
		for _, rw := range r.Rewards {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s |\n",
				rw.RoundID, rw.RoundTitle, rw.Rank, rw.Amount,
				time.Unix(rw.Timestamp, 0).UTC().Format(time.RFC3339)))
		}
		sb.WriteString(fmt.Sprintf("\nTotal earned: %s\n", r.TotalEarned))
	} else {
		sb.WriteString("No rewards received.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
