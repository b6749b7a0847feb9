package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// NewRootCmd builds the airdropd CLI: start (run the daemon), status
// (discover for a short window and dump the available-peer snapshot), and
// identity (manage the local certificate).
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdropd",
		Short: "AirDrop-interop core daemon",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "airdrop-config.json", "Path to JSON configuration")
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newIdentityCmd())
	return cmd
}
