package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"voting-token-client/internal/config"
	"voting-token-client/internal/log"
)

// cli holds flag values and the app factory shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	configPath   string
	envFile      string
	rpc          string
	ws           string
	address      string
	keystore     string
	passwordFile string
	logLevel     string
	yes          bool

	cfg config.Config

	// newApp builds the runtime from cfg. Tests replace it.
	newApp func(ctx context.Context, c *cli) (*app, error)
}

func newCLI(stdout, stderr io.Writer, stdin io.Reader) *cli {
	return &cli{stdout: stdout, stderr: stderr, stdin: stdin, newApp: dialApp}
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "votectl",
		Short: "Voting ledger client",
		Long: `votectl reads the voting contract into a local mirror and submits
votes, rounds, candidates, treasury mints and usernames through a
keystore wallet. Configuration is read from votectl.yaml, .env and
VOTING_* environment variables; flags win over all of them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.loadConfig,
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.configPath, "config", "c", "", "config file (default votectl.yaml or configs/votectl.yaml)")
	f.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&c.rpc, "rpc", "", "JSON-RPC endpoint")
	f.StringVar(&c.ws, "ws", "", "WebSocket endpoint for new block heads")
	f.StringVar(&c.address, "address", "", "voting contract address")
	f.StringVar(&c.keystore, "keystore", "", "keystore v3 wallet file")
	f.StringVar(&c.passwordFile, "password-file", "", "file holding the keystore password")
	f.StringVar(&c.logLevel, "log-level", "", "error, warn, info, debug or trace")
	f.BoolVarP(&c.yes, "yes", "y", false, "approve every confirmation and wallet prompt")

	root.AddCommand(
		c.snapshotCmd(),
		c.leaderboardCmd(),
		c.rewardsCmd(),
		c.reportCmd(),
		c.voteCmd(),
		c.createRoundCmd(),
		c.addCandidateCmd(),
		c.endRoundCmd(),
		c.mintCmd(),
		c.setUsernameCmd(),
		c.watchAssetCmd(),
		c.watchCmd(),
	)
	return root
}

// loadConfig layers flags over file, .env and environment settings.
func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath, c.envFile)
	if err != nil {
		return err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.RPC.Endpoint, c.rpc)
	override(&cfg.RPC.WSEndpoint, c.ws)
	override(&cfg.Contract.Address, c.address)
	override(&cfg.Wallet.Keystore, c.keystore)
	override(&cfg.Wallet.PasswordFile, c.passwordFile)
	override(&cfg.Log.Level, c.logLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.InitConfig(cfg.Log)
	c.cfg = cfg
	return nil
}

// withApp builds the app, runs fn and tears the app down.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := c.newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
