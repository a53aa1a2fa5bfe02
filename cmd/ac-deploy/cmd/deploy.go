package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/progress"
	"github.com/oshokin/ac-deploy/internal/service/deployer"
	"github.com/oshokin/ac-deploy/internal/storage/objectstore"
	"github.com/oshokin/ac-deploy/internal/transport/remote"
)

var (
	// saveConfig writes the effective settings back to the configuration file.
	saveConfig bool
	// noProgress disables upload progress bars.
	noProgress bool

	deployCmd = &cobra.Command{
		Use:   "deploy <server-pack.zip>",
		Short: "Upload new content and roll the server pack out to the game server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runDeploy(ctx, args[0])
		},
	}
)

func runDeploy(ctx context.Context, archive string) error {
	ctx = logger.WithName(ctx, "ac-deploy")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err = config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if saveConfig {
		path := configPath
		if path == "" {
			path = config.DefaultConfigFilename
		}

		if err = config.Save(path, cfg); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Settings saved", "path", path)
	}

	baseline, err := loadBaseline(cfg)
	if err != nil {
		return err
	}

	store, err := objectstore.New(cfg.Storage)
	if err != nil {
		return err
	}

	transport, err := newTransport(cfg.Target)
	if err != nil {
		return err
	}

	if !noProgress {
		ctx = progress.Open(ctx, os.Stderr)
	}

	report, err := deployer.Run(ctx, &deployer.Options{
		Config:      cfg,
		ArchivePath: archive,
		Baseline:    baseline,
		Store:       store,
		Transport:   transport,
	})

	printReport(os.Stdout, report)

	return err
}

// newTransport picks the remote transport once for the whole run.
func newTransport(t config.Target) (remote.Transport, error) {
	switch t.Transport {
	case config.TransportSSH:
		return remote.NewSSH(remote.SSHOptions{
			Port:           t.SSHPort,
			KeyFile:        t.SSHKeyFile,
			KnownHostsFile: t.KnownHostsFile,
			Timeout:        t.Timeout,
		})
	default:
		return remote.NewGcloud(t.GcloudPath)
	}
}

func printReport(w io.Writer, r *deployer.Report) {
	if r == nil {
		return
	}

	_, _ = fmt.Fprintf(w, "run:       %s\n", r.RunID)
	if r.Operator != "" {
		_, _ = fmt.Fprintf(w, "operator:  %s\n", r.Operator)
	}

	_, _ = fmt.Fprintf(w, "state:     %s\n", r.State)

	if r.ScanErr != nil {
		_, _ = fmt.Fprintf(w, "scan:      %v\n", r.ScanErr)
	}

	for _, line := range []struct {
		label string
		units []content.Unit
	}{
		{"new", r.Units},
		{"uploaded", r.Uploaded},
		{"stored", r.Existing},
		{"failed", r.Failed},
		{"missing", r.Missing},
	} {
		if len(line.units) > 0 {
			_, _ = fmt.Fprintf(w, "%-10s %s\n", line.label+":", joinUnits(line.units))
		}
	}

	if r.ManifestPath != "" {
		_, _ = fmt.Fprintf(w, "manifest:  %s (%d added)\n", r.ManifestPath, len(r.ManifestAdded))
	}

	if len(r.Damaged) > 0 {
		_, _ = fmt.Fprintf(w, "damaged:   %s (manual repair needed)\n", strings.Join(r.Damaged, ", "))
	}

	if r.Diagnosis != nil {
		_, _ = fmt.Fprintf(w, "diagnosis: %s\n", r.Diagnosis)
	}
}

func joinUnits(units []content.Unit) string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.String())
	}

	return strings.Join(names, ", ")
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	deployCmd.Flags().BoolVar(&saveConfig, "save-config", false, "write the effective settings to the configuration file")
	deployCmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw upload progress bars")

	rootCmd.AddCommand(deployCmd)
}
