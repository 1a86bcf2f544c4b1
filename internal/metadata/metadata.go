// Package metadata persists what one segment build hands to the next: where
// its measures ended, which were fermatas, and how far each persistent
// pitch cycle advanced.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no metadata exists for a segment.
var ErrNotFound = errors.New("metadata: not found")

// Metadata is the record written after each segment build. Fingerprint
// identifies the definition built; PreviousBuildID names the build of the
// previous segment this one continued.
type Metadata struct {
	Segment               string         `json:"segment"`
	BuildID               string         `json:"build_id"`
	FirstMeasureNumber    int            `json:"first_measure_number"`
	FinalMeasureNumber    int            `json:"final_measure_number"`
	MeasureCount          int            `json:"measure_count"`
	FermataMeasureNumbers []int          `json:"fermata_measure_numbers,omitempty"`
	Persist               map[string]int `json:"persist,omitempty"`
	Fingerprint           string         `json:"fingerprint,omitempty"`
	PreviousBuildID       string         `json:"previous_build_id,omitempty"`
	Created               time.Time      `json:"created"`
}

// NextMeasureNumber is the first measure of the segment that follows.
func (m Metadata) NextMeasureNumber() int {
	return m.FinalMeasureNumber + 1
}

// Store keeps one JSON file per segment in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for Created timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore builds a store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	store := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("metadata: invalid segment name %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Read loads the metadata written for the named segment.
func (s *Store) Read(name string) (Metadata, error) {
	path, err := s.path(name)
	if err != nil {
		return Metadata{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, fmt.Errorf("metadata: %s: %w", name, ErrNotFound)
		}
		return Metadata{}, fmt.Errorf("metadata: read %s: %w", path, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("metadata: decode %s: %w", path, err)
	}
	return meta, nil
}

// Write stores meta under name, stamping Created when it is unset.
func (s *Store) Write(name string, meta Metadata) (Metadata, error) {
	path, err := s.path(name)
	if err != nil {
		return Metadata{}, err
	}
	if meta.Segment == "" {
		meta.Segment = name
	}
	if meta.Created.IsZero() {
		meta.Created = s.now().UTC()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: encode %s: %w", name, err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return Metadata{}, fmt.Errorf("metadata: write %s: %w", path, err)
	}
	return meta, nil
}

// List returns the segment names with stored metadata, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
