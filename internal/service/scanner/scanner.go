package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
)

// ErrArchiveRead is returned when the archive cannot be opened or is corrupt.
var ErrArchiveRead = errors.New("archive read error")

// Result holds the non-baseline unit names found in an archive, sorted.
type Result struct {
	Cars   []string
	Tracks []string
}

// Empty reports whether there is nothing to deploy.
func (r Result) Empty() bool {
	return len(r.Cars) == 0 && len(r.Tracks) == 0
}

// Units flattens the result, cars first.
func (r Result) Units() []content.Unit {
	units := make([]content.Unit, 0, len(r.Cars)+len(r.Tracks))

	for _, name := range r.Cars {
		units = append(units, content.Unit{Name: name, Category: content.Car})
	}

	for _, name := range r.Tracks {
		units = append(units, content.Unit{Name: name, Category: content.Track})
	}

	return units
}

// Scan lists the distinct cars and tracks in the archive that baseline does
// not contain. On failure it returns an empty Result and an error wrapping
// ErrArchiveRead.
func Scan(ctx context.Context, archivePath string, baseline *content.Baseline) (Result, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open %s: %w", ErrArchiveRead, archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	result := Diff(names, baseline)

	logger.DebugKV(ctx, "Scanned archive",
		"archive", archivePath,
		"entries", len(names),
		"new_cars", len(result.Cars),
		"new_tracks", len(result.Tracks))

	return result, nil
}

// Diff computes a Result from raw archive entry names.
func Diff(entries []string, baseline *content.Baseline) Result {
	found := map[content.Category]map[string]struct{}{
		content.Car:   {},
		content.Track: {},
	}

	for _, entry := range entries {
		unit, ok := unitFromEntry(entry)
		if !ok || baseline.Contains(unit.Name, unit.Category) {
			continue
		}

		found[unit.Category][unit.Name] = struct{}{}
	}

	return Result{
		Cars:   sortedKeys(found[content.Car]),
		Tracks: sortedKeys(found[content.Track]),
	}
}

// unitFromEntry maps content/<cars|tracks>/<name>/... to a unit.
// Files lying directly in the category folder are not units, and neither
// are the "." and ".." path segments.
func unitFromEntry(entry string) (content.Unit, bool) {
	entry = strings.TrimPrefix(strings.ReplaceAll(entry, `\`, "/"), "./")

	for _, category := range content.Categories() {
		rest, ok := strings.CutPrefix(entry, category.ArchivePrefix())
		if !ok {
			continue
		}

		name, _, hasChild := strings.Cut(rest, "/")
		if !hasChild || name == "" || name == "." || name == ".." {
			return content.Unit{}, false
		}

		return content.Unit{Name: name, Category: category}, true
	}

	return content.Unit{}, false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
