// Command votectl is a terminal client for the voting ledger: it mirrors
// rounds, candidates, vote status and rewards, and submits votes and admin
// transactions through a keystore wallet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout, os.Stderr, os.Stdin).command().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
