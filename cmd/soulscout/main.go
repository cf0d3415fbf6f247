// soulscout runs one of the five platform services, selected by
// subcommand. All services share the config layer, the Redis stream bus
// and the Postgres store; they talk to each other only through the bus.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "soulscout"
	version = "v1.1.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "On-chain liquidity scout: ingest, score, alert, answer.",
		Version: version,
		Long: `soulscout watches DEX liquidity pools, computes trading signals,
dispatches throttled alerts to a Telegram chat, and answers commands.
Each subcommand runs one service; services communicate only over the bus.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config overrides")

	rootCmd.AddCommand(
		ingestorCmd(),
		analyticsCmd(),
		notifierCmd(),
		portfolioCmd(),
		gatewayCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
