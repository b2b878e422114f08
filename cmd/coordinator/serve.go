package main

import (
	"os/signal"
	"syscall"

	"github.com/Maphikza/safesocial-coordinator.git/internal/api"
	"github.com/spf13/cobra"
)

const jwtKeyName = "coordinator"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve the coordinator HTTP API on api_port until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := api.EnsureJWTKey(jwtKeyName); err != nil {
			return err
		}

		c, err := openCoordinator(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.store.ExpireOldChallenges(ctx); err != nil {
			return err
		}

		return api.NewAPI(c.svc, c.store, jwtKeyName).Serve(ctx)
	},
}
