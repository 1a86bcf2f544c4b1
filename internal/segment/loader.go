package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSegmentsDir is the conventional location for segment definitions.
const DefaultSegmentsDir = "segments"

// ParseDefinitionYAML decodes a segment definition from YAML/JSON bytes.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("segment: definition payload is empty")
	}
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("segment: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionReader reads segment definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader) (Definition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("segment: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile loads a segment definition from an explicit path.
func LoadDefinitionFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("segment: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return Definition{}, fmt.Errorf("segment: %s: %w", path, parseErr)
	}
	return def, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
// It keeps going past bad files and returns their errors joined.
func LoadDir(dir string) ([]Definition, error) {
	if dir == "" {
		dir = DefaultSegmentsDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("segment: no segments directory at %s: %w", dir, err)
		}
		return nil, fmt.Errorf("segment: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	var defs []Definition
	var problems []error
	for _, path := range paths {
		def, err := LoadDefinitionFile(path)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, errors.Join(problems...)
}
