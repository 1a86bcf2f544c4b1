// internal/config/config.go
//
// This package handles configuration and the .baca directory structure.
// Every score project that uses baca gets a .baca/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/baca/internal/command"
	"github.com/kingrea/baca/internal/duration"
)

const (
	// BacaDir is the name of the directory we create in each project
	BacaDir = ".baca"

	defaultSegmentsDir = "segments"
	defaultBuildDir    = "build"
)

const defaultProjectConfigYAML = `# baca project configuration
version: 1

score:
  title: Untitled
  segments_dir: segments
  build_dir: build

# Defaults for segments that do not set their own spacing.
spacing:
  fermata_measure_duration: 1/4
  # minimum_duration: 1/16
  # multiplier: 1

# Voice name -> part sections the voice may be assigned to.
parts:
  # Violin_Music_Voice: [Violin]
`

// ScoreConfig names the score and where its files live.
type ScoreConfig struct {
	Title       string `yaml:"title"`
	SegmentsDir string `yaml:"segments_dir" validate:"required"`
	BuildDir    string `yaml:"build_dir" validate:"required"`
}

// SpacingConfig carries project-wide spacing defaults. Durations are
// written as fractions, e.g. "1/16".
type SpacingConfig struct {
	FermataMeasureDuration string `yaml:"fermata_measure_duration,omitempty" validate:"omitempty,rational"`
	MinimumDuration        string `yaml:"minimum_duration,omitempty" validate:"omitempty,rational"`
	Multiplier             string `yaml:"multiplier,omitempty" validate:"omitempty,rational"`
}

// ProjectConfig models .baca/config.yaml.
type ProjectConfig struct {
	Version int                 `yaml:"version" validate:"gte=1"`
	Score   ScoreConfig         `yaml:"score"`
	Spacing SpacingConfig       `yaml:"spacing"`
	Parts   map[string][]string `yaml:"parts,omitempty" validate:"dive,keys,required,endkeys,min=1,dive,required"`
}

// Config holds the runtime configuration for baca.
type Config struct {
	// ProjectDir is the directory baca was run from
	ProjectDir string

	// BacaProjectDir is ProjectDir/.baca
	BacaProjectDir string

	Project ProjectConfig
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rational", validateRational)
	return v
}

// validateRational accepts strictly positive fractions such as "1/16" or "2".
func validateRational(fl validator.FieldLevel) bool {
	d, err := duration.Parse(fl.Field().String())
	return err == nil && d.Sign() > 0
}

// InitBacaDir creates the .baca directory structure in the given project
// directory and writes a default config if none exists.
//
// Structure created:
// .baca/
// ├── logs/      <- build journal
// ├── metadata/  <- per-segment metadata written by builds
// └── build/     <- rendered LilyPond files
func InitBacaDir(projectDir string) error {
	bacaDir := filepath.Join(projectDir, BacaDir)
	dirs := []string{
		filepath.Join(bacaDir, "logs"),
		filepath.Join(bacaDir, "metadata"),
		filepath.Join(bacaDir, "build"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(bacaDir, "config.yaml"))
}

// NewConfig creates a Config populated with project settings. A missing
// config file yields the defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:     projectDir,
		BacaProjectDir: filepath.Join(projectDir, BacaDir),
		Project:        defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.BacaProjectDir, "logs")
}

// MetadataDir returns where segment metadata is stored
func (c *Config) MetadataDir() string {
	return filepath.Join(c.BacaProjectDir, "metadata")
}

// SegmentsDir returns the directory holding segment definitions.
func (c *Config) SegmentsDir() string {
	return resolvePath(c.ProjectDir, c.Project.Score.SegmentsDir)
}

// BuildDir returns the directory rendered .ly files are written to.
func (c *Config) BuildDir() string {
	return resolvePath(c.ProjectDir, c.Project.Score.BuildDir)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.BacaProjectDir, "config.yaml")
}

// Parts returns the voice to part-section table for part assignment.
func (c *Config) Parts() command.Parts {
	out := command.Parts{}
	for voice, sections := range c.Project.Parts {
		out[voice] = append([]string(nil), sections...)
	}
	return out
}

// FermataMeasureDuration returns the configured fermata measure width, or
// zero when unset.
func (c *Config) FermataMeasureDuration() duration.Duration {
	return parseOrZero(c.Project.Spacing.FermataMeasureDuration)
}

// MinimumDuration returns the configured spacing floor, or zero when unset.
func (c *Config) MinimumDuration() duration.Duration {
	return parseOrZero(c.Project.Spacing.MinimumDuration)
}

// Multiplier returns the configured spacing multiplier, or zero when unset.
func (c *Config) Multiplier() duration.Duration {
	return parseOrZero(c.Project.Spacing.Multiplier)
}

// SetPart allows voice to take assignments for section and persists the
// change to .baca/config.yaml.
func (c *Config) SetPart(voice, section string) error {
	voice, section = strings.TrimSpace(voice), strings.TrimSpace(section)
	if voice == "" || section == "" {
		return fmt.Errorf("config: voice and section are required")
	}
	if c.Project.Parts == nil {
		c.Project.Parts = map[string][]string{}
	}
	if !contains(c.Project.Parts[voice], section) {
		c.Project.Parts[voice] = append(c.Project.Parts[voice], section)
	}
	return c.saveProjectConfig()
}

func parseOrZero(s string) duration.Duration {
	if s == "" {
		return duration.Duration{}
	}
	d, err := duration.Parse(s)
	if err != nil {
		return duration.Duration{}
	}
	return d
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Score: ScoreConfig{
			Title:       "Untitled",
			SegmentsDir: defaultSegmentsDir,
			BuildDir:    defaultBuildDir,
		},
		Spacing: SpacingConfig{FermataMeasureDuration: "1/4"},
		Parts:   map[string][]string{},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Score.SegmentsDir == "" {
		pc.Score.SegmentsDir = defaultSegmentsDir
	}
	if pc.Score.BuildDir == "" {
		pc.Score.BuildDir = defaultBuildDir
	}
	if pc.Parts == nil {
		pc.Parts = map[string][]string{}
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Score.Title = strings.TrimSpace(pc.Score.Title)
	pc.Score.SegmentsDir = strings.TrimSpace(pc.Score.SegmentsDir)
	pc.Score.BuildDir = strings.TrimSpace(pc.Score.BuildDir)
	pc.Spacing.FermataMeasureDuration = strings.TrimSpace(pc.Spacing.FermataMeasureDuration)
	pc.Spacing.MinimumDuration = strings.TrimSpace(pc.Spacing.MinimumDuration)
	pc.Spacing.Multiplier = strings.TrimSpace(pc.Spacing.Multiplier)
	normalized := make(map[string][]string, len(pc.Parts))
	for voice, sections := range pc.Parts {
		var out []string
		for _, s := range sections {
			if s = strings.TrimSpace(s); s != "" && !contains(out, s) {
				out = append(out, s)
			}
		}
		normalized[strings.TrimSpace(voice)] = out
	}
	pc.Parts = normalized
}

func (pc *ProjectConfig) validate() error {
	if err := validate.Struct(pc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return describe(fieldErrs)
		}
		return err
	}
	return nil
}

func describe(fieldErrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "rational":
			msgs = append(msgs, fmt.Sprintf("%s must be a positive fraction, got %q", fe.Namespace(), fe.Value()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.BacaProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure baca dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
