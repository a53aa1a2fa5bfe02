package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/ac-deploy/internal/logger"
)

const (
	// fileMode is the permission of the written manifest.
	fileMode os.FileMode = 0o644
	// dirMode is used when the manifest directory has to be created.
	dirMode os.FileMode = 0o755
)

// ErrManifest is returned when the manifest cannot be read or written.
var ErrManifest = errors.New("manifest error")

// Repository loads and stores the manifest.
type Repository interface {
	Load(ctx context.Context) (*Manifest, error)
	Save(ctx context.Context, m *Manifest) error
}

// FileRepository keeps the manifest in a JSON file.
type FileRepository struct {
	// path is the filesystem location of the manifest.
	path string
	// keys are the category keys of the document.
	keys Keys
	// mu serializes Load and Save.
	mu sync.Mutex
}

// NewFileRepository creates a repository for the file at path.
func NewFileRepository(path string, keys Keys) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		keys: keys,
	}
}

// Path returns the manifest location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the manifest. A missing, empty or malformed file yields an
// empty manifest; malformed content is logged and discarded.
func (r *FileRepository) Load(ctx context.Context) (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.InfoKV(ctx, "Manifest not found, starting empty", "path", r.path)

			return New(r.keys), nil
		}

		return nil, fmt.Errorf("%w: read %s: %w", ErrManifest, r.path, err)
	}

	if len(bytes.TrimSpace(contents)) == 0 {
		return New(r.keys), nil
	}

	m, reset, err := Parse(contents, r.keys)
	if err != nil {
		logger.WarnKV(ctx, "Manifest is malformed, starting empty", "path", r.path, "error", err)

		return New(r.keys), nil
	}

	for _, key := range reset {
		logger.WarnKV(ctx, "Manifest category is not an object, resetting it", "path", r.path, "key", key)
	}

	return m, nil
}

// Save writes the manifest in full. The new content goes to a sibling file
// that is renamed over the target, so readers never see a partial write.
func (r *FileRepository) Save(ctx context.Context, m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrManifest, err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), dirMode); err != nil {
		return fmt.Errorf("%w: create directory: %w", ErrManifest, err)
	}

	// The swap renames the current file aside, so it has to exist.
	if _, err = os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(r.path, nil, fileMode); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrManifest, r.path, err)
		}
	}

	//nolint:exhaustruct // Checksum and signature verification are not used.
	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: fileMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrManifest, r.path, err)
	}

	logger.InfoKV(ctx, "Manifest saved", "path", r.path)

	return nil
}
