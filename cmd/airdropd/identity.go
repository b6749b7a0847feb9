package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"airdrop/internal/config"
	"airdrop/internal/daemon"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or manage the local certificate and device identity",
	}
	cmd.AddCommand(newIdentityResetCmd())
	return cmd
}

func newIdentityResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Force certificate renewal regardless of remaining validity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := newLogger()
			app, err := daemon.New(cfg, daemon.Deps{}, log)
			if err != nil {
				return fmt.Errorf("build daemon: %w", err)
			}

			cert, err := app.RenewIdentity()
			if err != nil {
				return fmt.Errorf("renew certificate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "issued new certificate %s (valid until %s)\n", cert.Thumbprint, cert.NotAfter.Format("2006-01-02"))
			return nil
		},
	}
}
