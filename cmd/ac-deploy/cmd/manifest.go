package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/repository/manifest"
	"github.com/oshokin/ac-deploy/internal/service/deployer"
	"github.com/oshokin/ac-deploy/internal/service/scanner"
	"github.com/oshokin/ac-deploy/internal/storage/objectstore"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <server-pack.zip> <content.json>",
	Short: "Add download urls for the new content of a server pack to a local content.json",
	Long: `Adds a url for every non-stock car and track of the server pack that has
none yet. Nothing is uploaded and no remote host is contacted; the urls
point where deploy would publish the archives.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logger.WithName(context.Background(), "ac-deploy")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err = config.ValidateStorage(cfg); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}

		baseline, err := loadBaseline(cfg)
		if err != nil {
			return err
		}

		result, err := scanner.Scan(ctx, args[0], baseline)
		if err != nil {
			return err
		}

		repo := manifest.NewFileRepository(args[1], manifest.Keys{
			Car:   cfg.Manifest.CarKey,
			Track: cfg.Manifest.TrackKey,
		})

		added, err := deployer.MergeManifest(ctx, repo, result.Units(), func(u content.Unit) string {
			return objectstore.PublicURL(cfg.Storage.PublicBaseURL, u.ObjectPath())
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, u := range added {
			_, _ = fmt.Fprintln(w, u)
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(manifestCmd)
}
