package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"airdrop/internal/config"
	"airdrop/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Discover peers for a short window and print the registry snapshot as JSON",
		Long: "Runs the discovery plane for --window (default 3s), then prints every\n" +
			"currently-available peer as JSON and exits. The core has no standing\n" +
			"daemon/CLI IPC channel of its own (out of scope), so this\n" +
			"is a point-in-time snapshot rather than a query against another process;\n" +
			"`start --events-addr` exposes a live feed for anything that needs more.",
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

			ctx, cancel := context.WithTimeout(cmd.Context(), window)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			<-ctx.Done()
			app.Stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(app.Snapshot())
		},
	}
	cmd.Flags().DurationVar(&window, "window", 3*time.Second, "How long to scan before reporting")
	return cmd
}
