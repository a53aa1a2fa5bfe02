package content

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed baseline.yaml
var embeddedBaseline []byte

// Baseline is the immutable set of units shipped with the base game.
type Baseline struct {
	sets map[Category]map[string]struct{}
}

type baselineFile struct {
	Cars   []string `yaml:"cars"`
	Tracks []string `yaml:"tracks"`
}

//nolint:gochecknoglobals // Parsed once per process.
var defaultBaseline = sync.OnceValues(func() (*Baseline, error) {
	return ParseBaseline(embeddedBaseline)
})

// DefaultBaseline returns the embedded base game content list.
func DefaultBaseline() *Baseline {
	b, err := defaultBaseline()
	if err != nil {
		panic(fmt.Sprintf("embedded baseline is broken: %v", err))
	}

	return b
}

// LoadBaseline reads a baseline YAML file with "cars" and "tracks" lists.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}

	return ParseBaseline(data)
}

// ParseBaseline builds a Baseline from YAML data.
func ParseBaseline(data []byte) (*Baseline, error) {
	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode baseline: %w", err)
	}

	return NewBaseline(f.Cars, f.Tracks), nil
}

// NewBaseline builds a Baseline from name lists.
func NewBaseline(cars, tracks []string) *Baseline {
	return &Baseline{
		sets: map[Category]map[string]struct{}{
			Car:   toSet(cars),
			Track: toSet(tracks),
		},
	}
}

// Contains reports whether name is part of the base install for category c.
func (b *Baseline) Contains(name string, c Category) bool {
	if b == nil {
		return false
	}

	_, ok := b.sets[c][name]

	return ok
}

// Len returns the number of baseline units in category c.
func (b *Baseline) Len(c Category) int {
	if b == nil {
		return 0
	}

	return len(b.sets[c])
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}
