package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/orchestrator"
	"voting-token-client/internal/reporting"
)

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidInput, what, s)
	}
	return id, nil
}

func (c *cli) snapshotCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load and print the ledger state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				snap, err := a.load(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(a.out)
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				}
				printSnapshot(a.out, snap, a.sessions.Session())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func (c *cli) leaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard [ROUND]",
		Short: "Rank a round's candidates (default: the active round)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = parseID("round", args[0]); err != nil {
					return err
				}
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				snap, err := a.load(ctx)
				if err != nil {
					return err
				}
				round, ok := pickRound(snap, id)
				if !ok {
					if id != 0 {
						return fmt.Errorf("round %d not found", id)
					}
					fmt.Fprintln(a.out, "No rounds created yet.")
					return nil
				}
				printLeaderboard(a.out, round, domain.Leaderboard(snap.Candidates[round.ID]))
				return nil
			})
		},
	}
}

// pickRound returns round id, or the active round, or the newest one.
func pickRound(snap *domain.Snapshot, id int64) (domain.Round, bool) {
	if id != 0 {
		return snap.Round(id)
	}
	if r, ok := domain.ActiveRound(snap.Rounds); ok {
		return r, true
	}
	if len(snap.Rounds) > 0 {
		return snap.Rounds[0], true
	}
	return domain.Round{}, false
}

func (c *cli) rewardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "Show rewards received by the wallet account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.connect(ctx); err != nil {
					return err
				}
				snap := a.sessions.Mirror().Snapshot()
				printRewards(a.out, snap, a.sessions.IsAdmin())
				return nil
			})
		},
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write Markdown and CSV reports of the ledger state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.load(ctx); err != nil {
					return err
				}
				account := ""
				if acct, ok := a.sessions.Account(); ok {
					account = acct.String()
				}
				r, err := reporting.NewGenerator(a.reader.Store()).Generate(account, a.sessions.IsAdmin())
				if err != nil {
					return err
				}
				if err := reporting.WriteFiles(outDir, r); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Report written to %s/ (digest %s)\n", outDir, r.Digest)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "reports", "output directory")
	return cmd
}

func (c *cli) voteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote ROUND CANDIDATE",
		Short: "Cast a vote for a candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			round, err := parseID("round", args[0])
			if err != nil {
				return err
			}
			cand, err := parseID("candidate", args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.CastVote{Round: round, Candidate: cand})
			})
		},
	}
}

func (c *cli) createRoundCmd() *cobra.Command {
	var (
		title  string
		hours  float64
		reward string
	)
	cmd := &cobra.Command{
		Use:   "create-round",
		Short: "Open a new voting round (owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.CreateRound{
					Title:    title,
					Duration: time.Duration(hours * float64(time.Hour)),
					Reward:   reward,
				})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "round title")
	cmd.Flags().Float64Var(&hours, "hours", 24, "voting duration in hours")
	cmd.Flags().StringVar(&reward, "reward", "", "reward pool in tokens")
	return cmd
}

func (c *cli) addCandidateCmd() *cobra.Command {
	var name, wallet string
	cmd := &cobra.Command{
		Use:   "add-candidate ROUND",
		Short: "Add a candidate to a round (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			round, err := parseID("round", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.AddCandidate{Round: round, Name: name, Wallet: wallet})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "candidate name")
	cmd.Flags().StringVar(&wallet, "wallet", "", "candidate payout address")
	return cmd
}

func (c *cli) endRoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end-round ROUND",
		Short: "End a round and distribute its rewards (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			round, err := parseID("round", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.EndRound{Round: round})
			})
		},
	}
}

func (c *cli) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint AMOUNT",
		Short: "Mint reward tokens into the voting contract treasury",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.MintTreasury{Amount: args[0]})
			})
		},
	}
}

func (c *cli) setUsernameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-username NAME",
		Short: "Register a display name for the wallet account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				return a.execute(ctx, orchestrator.SetUsername{Name: args[0]})
			})
		},
	}
}

func (c *cli) watchAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch-asset",
		Short: "Ask the wallet to track the reward token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.connect(ctx); err != nil {
					return err
				}
				added, err := a.orch.RegisterRewardAsset(ctx)
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintln(a.out, "Reward token not added")
				}
				return nil
			})
		},
	}
}
