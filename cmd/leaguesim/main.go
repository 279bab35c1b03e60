package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/config"
	"github.com/utakatalp/league-projections/internal/telemetry"
)

const usage = `usage: leaguesim <command> [flags]

commands:
  ratings   recompute ratings from finalized matches
  predict   outcome probabilities for a round or a match
  project   season projection (cached)
  rounds    round-by-round run (cached)
  table     official table from finalized matches
  inspect   stored season projection summary
  diff      results that changed since the stored projection
  precalc   compute and store the probability table
  seed      create a synthetic season in Postgres
  serve     refresh projections periodically and expose /metrics
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := telemetry.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, cmd, os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, cmd command, args []string) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.out = os.Stdout
	return cmd(ctx, a, args)
}
