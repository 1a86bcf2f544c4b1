package command

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
)

// Config carries a command's parameters as decoded from YAML.
type Config map[string]any

// Factory constructs a command from its configuration.
type Factory func(cfg Config, opts ...Option) (Command, error)

// Registry maintains known command factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a factory. Returns an error if the ID already exists.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("command: id is required")
	}
	if factory == nil {
		return fmt.Errorf("command: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("command: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a command by ID.
func (r *Registry) Resolve(id string, cfg Config, opts ...Option) (Command, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, invalid("unknown command %q", id)
	}
	if cfg == nil {
		cfg = Config{}
	}
	cmd, err := factory(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", id, err)
	}
	return cmd, nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry registers every built-in command. parts backs the
// part-assignment check.
func DefaultRegistry(parts Parts) *Registry {
	r := NewRegistry()
	r.MustRegister("pitches", func(cfg Config, opts ...Option) (Command, error) {
		names, err := cfg.Strings("pitches")
		if err != nil {
			return nil, err
		}
		exact, err := cfg.Bool("exact")
		if err != nil {
			return nil, err
		}
		persist, err := cfg.String("persist")
		if err != nil {
			return nil, err
		}
		cmd, err := Pitches(names, exact, opts...)
		if err != nil {
			return nil, err
		}
		cmd.Persist = persist
		return cmd, nil
	})
	r.MustRegister("register-to-octave", func(cfg Config, opts ...Option) (Command, error) {
		name, err := cfg.String("anchor")
		if err != nil {
			return nil, err
		}
		anchor, err := ParseAnchor(name)
		if err != nil {
			return nil, err
		}
		octave, err := cfg.Int("octave")
		if err != nil {
			return nil, err
		}
		return RegisterToOctave(anchor, octave, opts...)
	})
	for id, anchor := range map[string]Anchor{
		"bass-to-octave":    Bottom,
		"center-to-octave":  Center,
		"soprano-to-octave": Top,
	} {
		anchor := anchor
		r.MustRegister(id, func(cfg Config, opts ...Option) (Command, error) {
			octave, err := cfg.Int("octave")
			if err != nil {
				return nil, err
			}
			return RegisterToOctave(anchor, octave, opts...)
		})
	}
	r.MustRegister("register", func(cfg Config, opts ...Option) (Command, error) {
		octave, err := cfg.Int("octave")
		if err != nil {
			return nil, err
		}
		return Register(octave, opts...)
	})
	r.MustRegister("register-interpolation", func(cfg Config, opts ...Option) (Command, error) {
		start, err := cfg.Int("start")
		if err != nil {
			return nil, err
		}
		stop, err := cfg.Int("stop")
		if err != nil {
			return nil, err
		}
		return RegisterInterpolation(start, stop, opts...)
	})
	r.MustRegister("staff-position-interpolation", func(cfg Config, opts ...Option) (Command, error) {
		start, err := cfg.Pitch("start")
		if err != nil {
			return nil, err
		}
		stop, err := cfg.Pitch("stop")
		if err != nil {
			return nil, err
		}
		return StaffPositionInterpolation(start, stop, opts...)
	})
	r.MustRegister("displacement", func(cfg Config, opts ...Option) (Command, error) {
		octaves, err := cfg.Ints("displacements")
		if err != nil {
			return nil, err
		}
		return OctaveDisplacement(octaves, opts...)
	})
	r.MustRegister("deviation", func(cfg Config, opts ...Option) (Command, error) {
		deviations, err := cfg.Floats("deviations")
		if err != nil {
			return nil, err
		}
		return MicrotoneDeviation(deviations, opts...)
	})
	r.MustRegister("clusters", func(cfg Config, opts ...Option) (Command, error) {
		widths, err := cfg.Ints("widths")
		if err != nil {
			return nil, err
		}
		var start *pitch.Pitch
		if _, ok := cfg["start"]; ok {
			p, err := cfg.Pitch("start")
			if err != nil {
				return nil, err
			}
			start = &p
		}
		hidden, err := cfg.Bool("hidden")
		if err != nil {
			return nil, err
		}
		cmd, err := Clusters(widths, start, opts...)
		if err != nil {
			return nil, err
		}
		cmd.Hidden = hidden
		return cmd, nil
	})
	r.MustRegister("diatonic-clusters", func(cfg Config, opts ...Option) (Command, error) {
		widths, err := cfg.Ints("widths")
		if err != nil {
			return nil, err
		}
		return DiatonicClusters(widths, opts...)
	})
	r.MustRegister("dynamic", func(cfg Config, opts ...Option) (Command, error) {
		names, err := cfg.Strings("dynamics")
		if err != nil {
			return nil, err
		}
		return Dynamic(names, opts...)
	})
	r.MustRegister("articulations", func(cfg Config, opts ...Option) (Command, error) {
		names, err := cfg.Strings("articulations")
		if err != nil {
			return nil, err
		}
		return Articulations(names, opts...)
	})
	r.MustRegister("markup", func(cfg Config, opts ...Option) (Command, error) {
		text, err := cfg.RequiredString("text")
		if err != nil {
			return nil, err
		}
		return Markup(text, opts...)
	})
	r.MustRegister("literal", func(cfg Config, opts ...Option) (Command, error) {
		text, err := cfg.RequiredString("text")
		if err != nil {
			return nil, err
		}
		where, err := cfg.String("position")
		if err != nil {
			return nil, err
		}
		position := score.After
		switch where {
		case "", "after":
		case "before":
			position = score.Before
		default:
			return nil, invalid("literal position %q is not before or after", where)
		}
		return Literal(text, position, opts...)
	})
	r.MustRegister("clef", func(cfg Config, opts ...Option) (Command, error) {
		name, err := cfg.RequiredString("clef")
		if err != nil {
			return nil, err
		}
		return Clef(name, opts...)
	})
	r.MustRegister("slur", func(_ Config, opts ...Option) (Command, error) {
		return Slur(opts...)
	})
	r.MustRegister("hairpin", func(cfg Config, opts ...Option) (Command, error) {
		descriptor, err := cfg.RequiredString("descriptor")
		if err != nil {
			return nil, err
		}
		return Hairpin(descriptor, opts...)
	})
	r.MustRegister("text-spanner", func(cfg Config, opts ...Option) (Command, error) {
		text, err := cfg.RequiredString("text")
		if err != nil {
			return nil, err
		}
		return TextSpanner(text, opts...)
	})
	r.MustRegister("tag", func(cfg Config, opts ...Option) (Command, error) {
		marker, err := cfg.RequiredString("marker")
		if err != nil {
			return nil, err
		}
		return Marker(marker, opts...)
	})
	r.MustRegister("parts", func(cfg Config, opts ...Option) (Command, error) {
		text, err := cfg.RequiredString("assignment")
		if err != nil {
			return nil, err
		}
		assignment, err := ParsePartAssignment(text)
		if err != nil {
			return nil, err
		}
		return PartAssign(assignment, parts, opts...)
	})
	r.MustRegister("global-fermata", func(cfg Config, opts ...Option) (Command, error) {
		description, err := cfg.String("description")
		if err != nil {
			return nil, err
		}
		return GlobalFermata(description, opts...)
	})
	return r
}

// String returns the string at key, or "" when absent.
func (c Config) String(key string) (string, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid("%s must be a string (not %v)", key, raw)
	}
	return s, nil
}

// RequiredString is String that rejects a missing or blank value.
func (c Config) RequiredString(key string) (string, error) {
	s, err := c.String(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalid("%s is required", key)
	}
	return s, nil
}

// Bool returns the boolean at key, or false when absent.
func (c Config) Bool(key string) (bool, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, invalid("%s must be true or false (not %v)", key, raw)
	}
	return b, nil
}

// Int returns the integer at key. Floats with a fractional part are
// rejected.
func (c Config) Int(key string) (int, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return 0, invalid("%s is required", key)
	}
	return toInt(key, raw)
}

// Ints reads a list of integers; a scalar is read as a one-item list.
func (c Config) Ints(key string) ([]int, error) {
	items, err := c.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := toInt(key, item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Floats reads a list of numbers.
func (c Config) Floats(key string) ([]float64, error) {
	items, err := c.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case int:
			out = append(out, float64(v))
		case float64:
			out = append(out, v)
		default:
			return nil, invalid("%s must hold numbers (not %v)", key, item)
		}
	}
	return out, nil
}

// Strings reads a list of strings. A scalar string is split on whitespace,
// so "c' d' e'" and [c', d', e'] are equivalent. Chords written inline as
// "<c' e'>" stay one value.
func (c Config) Strings(key string) ([]string, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return nil, invalid("%s is required", key)
	}
	if s, ok := raw.(string); ok {
		return splitValues(s), nil
	}
	items, err := c.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, invalid("%s must hold strings (not %v)", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Pitch parses the pitch name at key.
func (c Config) Pitch(key string) (pitch.Pitch, error) {
	name, err := c.RequiredString(key)
	if err != nil {
		return pitch.Pitch{}, err
	}
	p, err := pitch.Parse(name)
	if err != nil {
		return pitch.Pitch{}, invalid("%s: %v", key, err)
	}
	return p, nil
}

func (c Config) list(key string) ([]any, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return nil, invalid("%s is required", key)
	}
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return nil, invalid("%s is empty", key)
		}
		return v, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return []any{raw}, nil
	}
}

func toInt(key string, raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid("%s must be an integer (not %g)", key, v)
		}
		return int(v), nil
	}
	return 0, invalid("%s must be an integer (not %v)", key, raw)
}

func splitValues(s string) []string {
	var out []string
	depth := 0
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '<':
			depth++
			current.WriteRune(r)
		case r == '>':
			depth--
			current.WriteRune(r)
		case (r == ' ' || r == '\t' || r == '\n') && depth == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}
