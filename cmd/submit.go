// -- cmd/submit.go --
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/observability"
	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

var (
	submitFormURL string
	submitInput   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Run one submission pass over a spreadsheet, synchronously.",
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

		progress := func(current, total, success, fail int, message string) {
			logger.Info("Progress",
				zap.Int("row", current),
				zap.Int("total", total),
				zap.Int("succeeded", success),
				zap.Int("failed", fail),
				zap.String("message", message))
		}

		result, err := sub.Run(ctx, submitFormURL, submitInput, progress)
		if err != nil {
			return err
		}

		fmt.Printf("Submitted %d/%d rows (%d failed)\n",
			result.SuccessCount, result.TotalRows, result.FailCount)
		for _, msg := range result.Errors {
			fmt.Printf("  - %s\n", msg)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitFormURL, "form-url", "", "Google Form URL to submit to (required)")
	submitCmd.Flags().StringVar(&submitInput, "input", "", "path to the .xlsx spreadsheet of rows (required)")
	_ = submitCmd.MarkFlagRequired("form-url")
	_ = submitCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(submitCmd)
}
