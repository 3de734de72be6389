package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/session"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04 MST")
}

func printSnapshot(w io.Writer, snap *domain.Snapshot, s *session.Session) {
	if s != nil {
		role := "voter"
		if s.Admin {
			role = "admin"
		}
		name := s.Username
		if name == "" {
			name = "(no username)"
		}
		fmt.Fprintf(w, "Account:  %s %s [%s]\n", s.Account, name, role)
	}
	treasury := snap.Treasury.Balance + " " + snap.Treasury.Symbol
	if snap.Treasury.Degraded {
		treasury += " (unavailable)"
	}
	fmt.Fprintf(w, "Treasury: %s\n\n", treasury)

	if len(snap.Rounds) == 0 {
		fmt.Fprintln(w, "No rounds created yet.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ROUND\tTITLE\tSTATUS\tENDS\tPOOL\tCANDIDATES\tVOTED")
	for _, r := range snap.Rounds {
		status := "ended"
		if r.Active {
			status = "active"
		}
		voted := "-"
		if s != nil {
			voted = "no"
			if snap.HasVoted(r.ID) {
				voted = "yes"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Title, status, formatTime(r.EndTime), r.TotalRewardPool, len(snap.Candidates[r.ID]), voted)
	}
	tw.Flush()
}

var podium = map[int]string{1: "1st", 2: "2nd", 3: "3rd"}

func printLeaderboard(w io.Writer, round domain.Round, standings []domain.Standing) {
	fmt.Fprintf(w, "#%d %s (pool %s)\n\n", round.ID, round.Title, round.TotalRewardPool)
	if len(standings) == 0 {
		fmt.Fprintln(w, "No candidates.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "POS\tPODIUM\tID\tNAME\tVOTES\tWALLET")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%s\n", s.Position, podium[s.Podium], s.ID, s.Name, s.VoteCount, s.Wallet)
	}
	tw.Flush()
}

func printRewards(w io.Writer, snap *domain.Snapshot, admin bool) {
	if len(snap.Rewards) == 0 {
		fmt.Fprintln(w, "No rewards received.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "ROUND\tTITLE\tRANK\tAMOUNT\tPAID")
		for _, r := range snap.Rewards {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", r.RoundID, r.RoundTitle, r.Rank, r.Amount, formatTime(r.Timestamp))
		}
		tw.Flush()
		fmt.Fprintf(w, "\nTotal earned: %s %s\n", domain.TotalEarned(snap.Rewards), snap.Treasury.Symbol)
	}
	if admin {
		d := domain.TotalDistributed(snap.Rounds)
		fmt.Fprintf(w, "Distributed over %d ended rounds: %s %s\n", d.EndedRounds, d.Total, snap.Treasury.Symbol)
	}
}
