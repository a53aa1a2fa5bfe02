package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/repository/manifest"
	"github.com/oshokin/ac-deploy/internal/service/packager"
	"github.com/oshokin/ac-deploy/internal/service/scanner"
)

// UnzippedDirName is the staging subdirectory the pack is extracted into.
const UnzippedDirName = "unzipped_content"

var errMissingDirectory = errors.New("managed directory is missing from the server pack")

// scan returns the new units of the archive. An unreadable archive is
// reported and treated as having nothing to deploy.
func (r *runner) scan(ctx context.Context) []content.Unit {
	logger.InfoKV(ctx, "Scanning server pack", "archive", r.archive)

	result, err := scanner.Scan(ctx, r.archive, r.baseline)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to read server pack", "archive", r.archive, "error", err)

		r.report.ScanErr = err

		return nil
	}

	units := result.Units()
	r.report.Units = units

	logger.InfoKV(ctx, "Found new content", "cars", result.Cars, "tracks", result.Tracks)

	return units
}

// publish packs and uploads each unit not yet in the store. A stored unit
// needs no local copy. Failures are recorded per unit and never stop the run.
func (r *runner) publish(ctx context.Context, units []content.Unit) {
	for _, u := range units {
		unitCtx := logger.WithKV(ctx, "unit", u.String())

		if r.store.Exists(unitCtx, u.ObjectPath()) {
			logger.InfoKV(unitCtx, "Archive already stored, skipping upload", "object", u.ObjectPath())

			r.report.Existing = append(r.report.Existing, u)

			continue
		}

		sourceDir := filepath.Join(r.cfg.ContentDir, u.Category.Dir(), u.Name)
		if _, err := os.Stat(sourceDir); err != nil {
			logger.WarnKV(unitCtx, "Unit not found in the local installation, skipping",
				"dir", sourceDir, "error", err)

			r.report.Missing = append(r.report.Missing, u)

			continue
		}

		if err := r.publishUnit(unitCtx, u, sourceDir); err != nil {
			logger.ErrorKV(unitCtx, "Unable to publish unit, skipping", "error", err)

			r.report.Failed = append(r.report.Failed, u)

			continue
		}

		r.report.Uploaded = append(r.report.Uploaded, u)
	}
}

func (r *runner) publishUnit(ctx context.Context, u content.Unit, sourceDir string) error {
	archive, err := packager.Pack(ctx, packager.Options{
		SourceDir: sourceDir,
		OutputDir: r.stagingDir(),
		Name:      u.Name,
	})
	if err != nil {
		return err
	}

	_, err = r.store.Upload(ctx, archive, u.ObjectPath())

	return err
}

// prepare extracts the pack into the staging directory, merges the manifest
// and checks every managed directory is present.
func (r *runner) prepare(ctx context.Context) error {
	unzipped := filepath.Join(r.stagingDir(), UnzippedDirName)

	if err := os.RemoveAll(unzipped); err != nil {
		return fmt.Errorf("clean %s: %w", unzipped, err)
	}

	logger.InfoKV(ctx, "Extracting server pack", "dir", unzipped)

	if err := scanner.Extract(ctx, r.archive, unzipped); err != nil {
		return err
	}

	published := make([]content.Unit, 0, len(r.report.Uploaded)+len(r.report.Existing))
	published = append(published, r.report.Uploaded...)
	published = append(published, r.report.Existing...)

	repo := manifest.NewFileRepository(
		filepath.Join(unzipped, filepath.FromSlash(r.cfg.Manifest.Path)),
		manifest.Keys{Car: r.cfg.Manifest.CarKey, Track: r.cfg.Manifest.TrackKey},
	)

	added, err := MergeManifest(ctx, repo, published, func(u content.Unit) string {
		return r.store.PublicURL(u.ObjectPath())
	})
	if err != nil {
		return err
	}

	r.report.ManifestPath = repo.Path()
	r.report.ManifestAdded = added

	for _, dir := range r.cfg.Service.Directories {
		info, err := os.Stat(filepath.Join(unzipped, dir))
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", errMissingDirectory, dir)
		}
	}

	return nil
}

// MergeManifest adds a url for every unit missing one and saves the result.
func MergeManifest(
	ctx context.Context,
	repo manifest.Repository,
	units []content.Unit,
	urlFor func(content.Unit) string,
) ([]content.Unit, error) {
	m, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	added := m.Merge(units, urlFor)

	if err = repo.Save(ctx, m); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Manifest updated", "added", len(added))

	return added, nil
}

func (r *runner) stagingDir() string {
	if r.cfg.StagingDir == "" {
		return config.DefaultStagingDir
	}

	return r.cfg.StagingDir
}
