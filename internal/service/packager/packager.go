package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
)

// ErrPackaging wraps every failure to produce an archive.
var ErrPackaging = errors.New("packaging error")

var errNotDirectory = errors.New("source is not a directory")

// outputDirMode is used when the staging directory has to be created.
const outputDirMode os.FileMode = 0o755

// Options describes one packaging job.
type Options struct {
	// SourceDir is the directory to compress.
	SourceDir string
	// OutputDir receives <Name>.zip.
	OutputDir string
	// Name is the archive base name, usually the unit name.
	Name string
}

// Pack compresses opts.SourceDir into <OutputDir>/<Name>.zip and returns the
// absolute archive path. The archive is written to a temporary file first and
// renamed on success, so a failed run leaves no partial archive behind.
func Pack(ctx context.Context, opts Options) (string, error) {
	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s: %w", ErrPackaging, opts.SourceDir, errNotDirectory)
	}

	if err = os.MkdirAll(opts.OutputDir, outputDirMode); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", ErrPackaging, err)
	}

	target, err := filepath.Abs(filepath.Join(opts.OutputDir, opts.Name+content.ArchiveExt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	tmp, err := os.CreateTemp(opts.OutputDir, "."+opts.Name+"-*.zip.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	tmpName := tmp.Name()

	written, err := writeArchive(ctx, tmp, opts.SourceDir)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Rename(tmpName, target)
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return "", fmt.Errorf("%w: %s: %w", ErrPackaging, opts.SourceDir, err)
	}

	logger.InfoKV(ctx, "Packed directory",
		"source", opts.SourceDir,
		"archive", target,
		"files", written,
		"size", archiveSize(target))

	return target, nil
}

// writeArchive walks root and writes every directory and regular file into w.
func writeArchive(ctx context.Context, w io.Writer, root string) (int, error) {
	zw := zip.NewWriter(w)
	files := 0

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		hdr.Name = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr.Name += "/"
			_, err = zw.CreateHeader(hdr)

			return err
		}

		hdr.Method = zip.Deflate

		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		if err = copyFile(entry, path); err != nil {
			return err
		}

		files++

		return nil
	})
	if walkErr != nil {
		_ = zw.Close()

		return files, walkErr
	}

	return files, zw.Close()
}

func copyFile(dst io.Writer, path string) error {
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	_, err = io.Copy(dst, src)

	return err
}

func archiveSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}

	return humanize.Bytes(uint64(info.Size())) //nolint:gosec // Sizes are never negative.
}
