package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/service/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan <server-pack.zip>",
	Short: "List the cars and tracks of a server pack that are not stock content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logger.WithName(context.Background(), "ac-deploy")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		baseline, err := loadBaseline(cfg)
		if err != nil {
			return err
		}

		result, err := scanner.Scan(ctx, args[0], baseline)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, u := range result.Units() {
			_, _ = fmt.Fprintln(w, u)
		}

		if result.Empty() {
			logger.Info(ctx, "Nothing to deploy")
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(scanCmd)
}
