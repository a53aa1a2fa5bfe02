package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/ac-deploy/internal/logger"
)

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

var errUnsafeEntry = errors.New("entry escapes the destination directory")

// Extract unpacks archivePath into dir, creating it if needed.
// Entries that would land outside dir are rejected.
func Extract(ctx context.Context, archivePath, dir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrArchiveRead, archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveRead, err)
	}

	if err = os.MkdirAll(root, dirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveRead, err)
	}

	for _, f := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractFile(f, root); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArchiveRead, f.Name, err)
		}
	}

	logger.InfoKV(ctx, "Extracted archive", "archive", archivePath, "dir", root, "entries", len(reader.File))

	return nil
}

func extractFile(f *zip.File, root string) error {
	name := strings.ReplaceAll(f.Name, `\`, "/")
	target := filepath.Join(root, filepath.FromSlash(name))

	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return errUnsafeEntry
	}

	if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
		return os.MkdirAll(target, dirMode)
	}

	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = fileMode
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return err
	}

	return dst.Close()
}
