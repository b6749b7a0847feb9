package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"airdrop/internal/airdrop/server"
	"airdrop/internal/airdrop/wire"
	"airdrop/internal/config"
	"airdrop/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var eventAddr string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the discovery and transfer daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := newLogger()
			app, err := daemon.New(cfg, daemon.Deps{Approval: consoleApproval(log)}, log)
			if err != nil {
				return fmt.Errorf("build daemon: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			defer app.Stop()

			if eventAddr != "" {
				go func() {
					if err := serveEventbus(ctx, eventAddr, app); err != nil {
						log.Warn().Err(err).Msg("eventbus HTTP surface exited")
					}
				}()
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&eventAddr, "events-addr", "", "Optional address to serve the eventbus websocket/metrics surface on (e.g. :8772)")
	return cmd
}

// consoleApproval is the default approval callback for the standalone
// daemon: there is no UI collaborator wired into this CLI, so it logs the
// incoming request and rejects it. A real embedding process supplies its
// own server.ApprovalCallback (a UI dialog, typically) via daemon.Deps.
func consoleApproval(log zerolog.Logger) server.ApprovalCallback {
	return func(ctx context.Context, req wire.AskRequest) server.Decision {
		log.Info().Str("sender", req.SenderComputerName).Int("file_count", len(req.Files)).
			Msg("/Ask received with no approval UI wired; auto-rejecting")
		return server.Reject("no approval surface available")
	}
}
