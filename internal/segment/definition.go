package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/baca/internal/command"
	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/spacing"
)

// Definition declares one segment: its meter, the music of each voice, the
// commands that shape that music, and how the result is spaced and broken.
type Definition struct {
	Name               string          `json:"name" yaml:"name" validate:"required,excludesall=/\\"`
	Previous           string          `json:"previous,omitempty" yaml:"previous,omitempty"`
	FirstMeasureNumber int             `json:"first_measure_number,omitempty" yaml:"first_measure_number,omitempty" validate:"gte=0"`
	TimeSignatures     []TimeSignature `json:"time_signatures" yaml:"time_signatures" validate:"required,min=1"`
	Phantom            bool            `json:"phantom,omitempty" yaml:"phantom,omitempty"`
	Staves             []Staff         `json:"staves" yaml:"staves" validate:"required,min=1,dive"`
	Commands           []CommandSpec   `json:"commands,omitempty" yaml:"commands,omitempty" validate:"dive"`
	Spacing            SpacingSpec     `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Breaks             *BreaksSpec     `json:"breaks,omitempty" yaml:"breaks,omitempty"`
}

// Staff holds one or more voices under a clef.
type Staff struct {
	Name   string  `json:"name" yaml:"name" validate:"required"`
	Clef   string  `json:"clef,omitempty" yaml:"clef,omitempty"`
	Voices []Voice `json:"voices" yaml:"voices" validate:"required,min=1,dive"`
}

// Voice carries music in the parser's LilyPond subset. Empty music fills
// the voice with one multimeasure rest per measure.
type Voice struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Music string `json:"music,omitempty" yaml:"music,omitempty"`
}

// Scope restricts a command to a voice and an inclusive range of measures
// counted from 1 within the segment. Negative measures count from the end.
type Scope struct {
	Voice    string `json:"voice" yaml:"voice" validate:"required"`
	Measures []int  `json:"measures,omitempty" yaml:"measures,omitempty" validate:"omitempty,min=1,max=2"`
}

// CommandSpec names a registered command and how to apply it.
type CommandSpec struct {
	Command    string            `json:"command" yaml:"command" validate:"required"`
	Scope      Scope             `json:"scope" yaml:"scope"`
	Selector   []selector.OpSpec `json:"selector,omitempty" yaml:"selector,omitempty"`
	Config     command.Config    `json:"config,omitempty" yaml:"config,omitempty"`
	Tags       []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Deactivate bool              `json:"deactivate,omitempty" yaml:"deactivate,omitempty"`
}

// SpacingSpec overrides the project spacing defaults for one segment.
type SpacingSpec struct {
	MinimumDuration        *duration.Duration `json:"minimum_duration,omitempty" yaml:"minimum_duration,omitempty"`
	Multiplier             *duration.Duration `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	FermataMeasureDuration *duration.Duration `json:"fermata_measure_duration,omitempty" yaml:"fermata_measure_duration,omitempty"`
	Overrides              []OverrideSpec     `json:"overrides,omitempty" yaml:"overrides,omitempty" validate:"dive"`
}

// OverrideSpec fixes the spacing of some measures. Measures lists absolute
// measure numbers; Start and Stop give an inclusive range instead.
type OverrideSpec struct {
	Measures []int             `json:"measures,omitempty" yaml:"measures,omitempty"`
	Start    int               `json:"start,omitempty" yaml:"start,omitempty"`
	Stop     int               `json:"stop,omitempty" yaml:"stop,omitempty"`
	Duration duration.Duration `json:"duration" yaml:"duration"`
	Fermata  bool              `json:"fermata,omitempty" yaml:"fermata,omitempty"`
}

// BreaksSpec lays the segment out on pages.
type BreaksSpec struct {
	Pages []spacing.Page `json:"pages" yaml:"pages" validate:"required,min=1,dive"`
}

// TimeSignature keeps numerator and denominator apart so that 4/8 is not
// reduced to 1/2.
type TimeSignature struct {
	Numerator   int
	Denominator int
}

var meterRE = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)

// ParseTimeSignature reads "n/d" with d a power of two.
func ParseTimeSignature(text string) (TimeSignature, error) {
	m := meterRE.FindStringSubmatch(text)
	if m == nil {
		return TimeSignature{}, fmt.Errorf("segment: time signature %q is not n/d: %w", text, errs.ErrInvalidParameter)
	}
	num, _ := strconv.Atoi(m[1])
	den, _ := strconv.Atoi(m[2])
	if num < 1 || den < 1 || den&(den-1) != 0 {
		return TimeSignature{}, fmt.Errorf("segment: time signature %q is not valid: %w", text, errs.ErrInvalidParameter)
	}
	return TimeSignature{Numerator: num, Denominator: den}, nil
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// Duration returns the measure length.
func (ts TimeSignature) Duration() duration.Duration {
	return duration.New(int64(ts.Numerator), int64(ts.Denominator))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ts *TimeSignature) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeSignature(string(text))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (ts TimeSignature) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

// UnmarshalYAML reads the scalar form.
func (ts *TimeSignature) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("segment: time signature must be a scalar, got %s: %w", value.Tag, errs.ErrInvalidParameter)
	}
	return ts.UnmarshalText([]byte(value.Value))
}

// MarshalYAML writes the scalar form.
func (ts TimeSignature) MarshalYAML() (any, error) {
	return ts.String(), nil
}

var validate = validator.New()

// MeasureCount returns the number of measures, phantom excluded.
func (def Definition) MeasureCount() int {
	return len(def.TimeSignatures)
}

// VoiceNames returns every voice name in staff order.
func (def Definition) VoiceNames() []string {
	var out []string
	for _, staff := range def.Staves {
		for _, voice := range staff.Voices {
			out = append(out, voice.Name)
		}
	}
	return out
}

// Fingerprint hashes the definition's canonical YAML form. Two definitions
// with the same fingerprint build the same segment.
func Fingerprint(def Definition) string {
	data, err := yaml.Marshal(def)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Validate checks field rules and cross references: unique context names,
// known clefs, command scopes naming real voices and measures, selectors
// that parse, and override durations that are positive.
func (def Definition) Validate() error {
	if err := validate.Struct(def); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fe := fieldErrs[0]
			return fmt.Errorf("segment %s: %s failed %s: %w", def.Name, fe.Namespace(), fe.Tag(), errs.ErrInvalidParameter)
		}
		return fmt.Errorf("segment %s: %w", def.Name, err)
	}
	names := map[string]bool{GlobalSkipsName: true, GlobalContextName: true, ScoreName: true}
	for i, staff := range def.Staves {
		if names[staff.Name] {
			return fmt.Errorf("segment %s: duplicate context name %s: %w", def.Name, staff.Name, errs.ErrInvalidParameter)
		}
		names[staff.Name] = true
		if staff.Clef != "" {
			if _, err := pitch.LookupClef(staff.Clef); err != nil {
				return fmt.Errorf("segment %s staves[%d]: %w", def.Name, i, err)
			}
		}
		for _, voice := range staff.Voices {
			if names[voice.Name] {
				return fmt.Errorf("segment %s: duplicate context name %s: %w", def.Name, voice.Name, errs.ErrInvalidParameter)
			}
			names[voice.Name] = true
		}
	}
	count := def.MeasureCount()
	for i, spec := range def.Commands {
		if !names[spec.Scope.Voice] || spec.Scope.Voice == ScoreName || spec.Scope.Voice == GlobalContextName {
			return fmt.Errorf("segment %s commands[%d]: unknown voice %s: %w", def.Name, i, spec.Scope.Voice, errs.ErrInvalidParameter)
		}
		if _, _, err := spec.Scope.bounds(count); err != nil {
			return fmt.Errorf("segment %s commands[%d]: %w", def.Name, i, err)
		}
		if _, err := selector.Parse(spec.Selector); err != nil {
			return fmt.Errorf("segment %s commands[%d]: %w", def.Name, i, err)
		}
	}
	for i, o := range def.Spacing.Overrides {
		if o.Duration.Sign() <= 0 {
			return fmt.Errorf("segment %s spacing.overrides[%d]: duration must be positive: %w", def.Name, i, errs.ErrInvalidParameter)
		}
		if len(o.Measures) == 0 && (o.Start == 0 || o.Stop == 0) {
			return fmt.Errorf("segment %s spacing.overrides[%d]: measures or start/stop required: %w", def.Name, i, errs.ErrInvalidParameter)
		}
	}
	for _, d := range []*duration.Duration{def.Spacing.MinimumDuration, def.Spacing.Multiplier, def.Spacing.FermataMeasureDuration} {
		if d != nil && d.Sign() <= 0 {
			return fmt.Errorf("segment %s spacing: %s must be positive: %w", def.Name, d, errs.ErrInvalidParameter)
		}
	}
	return nil
}

// Normalized trims names and validates the result.
func (def Definition) Normalized() (Definition, error) {
	def.Name = strings.TrimSpace(def.Name)
	def.Previous = strings.TrimSpace(def.Previous)
	staves := make([]Staff, len(def.Staves))
	for i, staff := range def.Staves {
		staff.Name = strings.TrimSpace(staff.Name)
		staff.Clef = strings.TrimSpace(staff.Clef)
		voices := make([]Voice, len(staff.Voices))
		for j, voice := range staff.Voices {
			voice.Name = strings.TrimSpace(voice.Name)
			voices[j] = voice
		}
		staff.Voices = voices
		staves[i] = staff
	}
	def.Staves = staves
	commands := make([]CommandSpec, len(def.Commands))
	for i, spec := range def.Commands {
		spec.Command = strings.TrimSpace(spec.Command)
		spec.Scope.Voice = strings.TrimSpace(spec.Scope.Voice)
		commands[i] = spec
	}
	def.Commands = commands
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// bounds resolves the scope to 0-based measure indices [start, stop).
func (s Scope) bounds(count int) (int, int, error) {
	if len(s.Measures) == 0 {
		return 0, count, nil
	}
	resolve := func(n int) (int, error) {
		if n < 0 {
			n = count + 1 + n
		}
		if n < 1 || count < n {
			return 0, fmt.Errorf("segment: scope measure %d outside 1..%d: %w", n, count, errs.ErrMeasureOverrun)
		}
		return n, nil
	}
	start, err := resolve(s.Measures[0])
	if err != nil {
		return 0, 0, err
	}
	stop := start
	if len(s.Measures) == 2 {
		if stop, err = resolve(s.Measures[1]); err != nil {
			return 0, 0, err
		}
	}
	if stop < start {
		return 0, 0, fmt.Errorf("segment: scope measures %v are reversed: %w", s.Measures, errs.ErrInvalidParameter)
	}
	return start - 1, stop, nil
}
