// -- cmd/serve.go --
package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/jobs"
	"github.com/divrinavyas/google-form-submitter/internal/observability"
	"github.com/divrinavyas/google-form-submitter/internal/server"
	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the submission pipeline over HTTP with background jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		manager := browser.NewManager(appConfig, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			manager.Shutdown(shutdownCtx)
		}()

		sub := submitter.New(appConfig, logger, func(ctx context.Context) (browser.Driver, error) {
			return manager.NewSession(ctx)
		})

		srv := server.New(appConfig, logger, sub, jobs.NewStore())
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
