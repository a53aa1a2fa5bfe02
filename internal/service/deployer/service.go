package deployer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/transport/remote"
)

// StagingDirName is the directory under the target path the pack is copied to
// before it replaces the live directories.
const StagingDirName = ".ac-deploy-staging"

// systemctl is-active states.
const (
	unitActive     = "active"
	unitActivating = "activating"
	unitReloading  = "reloading"
)

func (r *runner) remoteStaging() string {
	return path.Join(r.cfg.Target.Path, StagingDirName)
}

// copyPack replaces the remote staging directory with the extracted pack.
func (r *runner) copyPack(ctx context.Context) error {
	staging := r.remoteStaging()

	if _, err := r.exec(ctx, "sudo rm -rf "+remote.Quote(staging)); err != nil {
		return err
	}

	unzipped := filepath.Join(r.stagingDir(), UnzippedDirName)

	logger.InfoKV(ctx, "Copying server pack to host", "host", r.target.Host, "dir", staging)

	return r.transport.Copy(ctx, r.target, unzipped, staging, true)
}

func (r *runner) stopService(ctx context.Context) error {
	r.serviceTouched = true

	_, err := r.exec(ctx, "sudo systemctl stop "+remote.Quote(r.cfg.Service.Name))

	return err
}

// replaceDirectories swaps every managed directory for its staged copy.
// There is no rollback: a failure midway leaves some directories replaced.
func (r *runner) replaceDirectories(ctx context.Context) error {
	staging := r.remoteStaging()
	dirs := r.cfg.Service.Directories
	live := make([]string, 0, len(dirs))

	for i, dir := range dirs {
		dest := path.Join(r.cfg.Target.Path, dir)
		live = append(live, remote.Quote(dest))

		if _, err := r.exec(ctx, "sudo rm -rf "+remote.Quote(dest)); err != nil {
			// rm -rf may have removed part of dir before failing.
			r.replaceHazard(ctx, dirs[:i], dir)

			return fmt.Errorf("replace %s: %w", dir, err)
		}

		if _, err := r.exec(ctx, "sudo mv "+remote.Quote(path.Join(staging, dir))+" "+remote.Quote(dest)); err != nil {
			r.replaceHazard(ctx, dirs[:i], dir)

			return fmt.Errorf("replace %s: %w", dir, err)
		}
	}

	if owner := r.cfg.Service.Owner; owner != "" {
		command := "sudo chown -R " + remote.Quote(owner) + " " + strings.Join(live, " ")
		if _, err := r.exec(ctx, command); err != nil {
			return fmt.Errorf("fix ownership: %w", err)
		}
	}

	if _, err := r.exec(ctx, "sudo rm -rf "+remote.Quote(staging)); err != nil {
		logger.WarnKV(ctx, "Unable to remove remote staging directory", "dir", staging, "error", err)
	}

	return nil
}

// replaceHazard reports the live directories a failed replacement left
// changed: the ones already swapped and the one removed without a successor.
func (r *runner) replaceHazard(ctx context.Context, replaced []string, removed string) {
	r.report.Damaged = append(append([]string(nil), replaced...), removed)

	logger.ErrorKV(ctx, "Directories partially replaced, manual repair needed",
		"replaced", replaced, "removed", removed)
}

func (r *runner) startService(ctx context.Context) error {
	_, err := r.exec(ctx, "sudo systemctl start "+remote.Quote(r.cfg.Service.Name))

	return err
}

// checkHealth polls systemctl is-active while the unit is still settling.
func (r *runner) checkHealth(ctx context.Context) error {
	command := "systemctl is-active " + remote.Quote(r.cfg.Service.Name)
	attempts := max(r.cfg.Service.HealthAttempts, 1)

	var status string

	err := retry.Do(
		func() error {
			status = ""

			res, err := r.transport.Run(ctx, r.target, command)
			if err != nil {
				return err
			}

			status = strings.TrimSpace(res.Stdout)
			if status == unitActive {
				return nil
			}

			if status == "" {
				status = "unknown"
			}

			return fmt.Errorf("%w: %s is %s", ErrHealthCheck, r.cfg.Service.Name, status)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(r.cfg.Service.HealthInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool {
			return status == unitActivating || status == unitReloading
		}),
		retry.OnRetry(func(attempt uint, _ error) {
			logger.InfoKV(ctx, "Service is still settling", "attempt", attempt+1, "status", status)
		}),
	)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Service is active", "service", r.cfg.Service.Name)

	return nil
}

// diagnose reads the tail of the service journal and matches it against the
// failure signatures.
func (r *runner) diagnose(ctx context.Context) Diagnosis {
	command := fmt.Sprintf("sudo journalctl -u %s -n %s --no-pager",
		remote.Quote(r.cfg.Service.Name), strconv.Itoa(r.cfg.Service.LogLines))

	// The run context may already be cancelled; the journal is still worth reading.
	res, err := r.transport.Run(context.WithoutCancel(ctx), r.target, command)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read service journal", "error", err)

		return Diagnosis{Cause: NoRecognizedCause}
	}

	logger.DebugKV(ctx, "Service journal", "lines", res.Stdout)

	return Diagnose(res.Stdout, r.signatures)
}

// exec runs command and requires a zero exit status.
func (r *runner) exec(ctx context.Context, command string) (remote.Result, error) {
	res, err := remote.Check(ctx, r.transport, r.target, command)

	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) {
		logger.ErrorKV(ctx, "Remote command failed",
			"command", command,
			"exit_code", cmdErr.Result.ExitCode,
			"stderr", strings.TrimSpace(cmdErr.Result.Stderr))
	}

	return res, err
}
