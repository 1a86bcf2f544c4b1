// Package segment builds one segment of a score from its definition: it
// lays out the global skips and voices, applies scoped commands in
// declaration order, spaces and breaks the result, renders LilyPond, and
// records metadata for the next segment.
package segment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/baca/internal/command"
	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/lilypond"
	"github.com/kingrea/baca/internal/logbook"
	"github.com/kingrea/baca/internal/metadata"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/spacing"
	"github.com/kingrea/baca/internal/tags"
)

// Context names every segment score shares.
const (
	ScoreName         = "Score"
	GlobalContextName = "Global_Context"
	GlobalSkipsName   = "Global_Skips"
)

// Defaults are the project-wide spacing values a definition may override.
// Zero values leave the corresponding specifier field unset.
type Defaults struct {
	MinimumDuration        duration.Duration
	Multiplier             duration.Duration
	FermataMeasureDuration duration.Duration
}

// Result is everything one build produces.
type Result struct {
	Score    *score.Score
	Root     *score.Node
	Global   *score.Node
	Measures []spacing.Measure
	Metadata metadata.Metadata
	LilyPond string
}

// Maker builds segments. Store and Log are optional.
type Maker struct {
	registry *command.Registry
	store    *metadata.Store
	log      *logbook.Logbook
	defaults Defaults
	now      func() time.Time
	newID    func() string
}

// Option customizes a Maker during construction.
type Option func(*Maker)

// WithStore reads previous-segment metadata from store and writes the
// built segment's metadata back to it.
func WithStore(store *metadata.Store) Option {
	return func(m *Maker) { m.store = store }
}

// WithLogbook records build progress.
func WithLogbook(log *logbook.Logbook) Option {
	return func(m *Maker) { m.log = log }
}

// WithDefaults sets project spacing defaults.
func WithDefaults(d Defaults) Option {
	return func(m *Maker) { m.defaults = d }
}

// WithClock overrides the clock used for metadata timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Maker) { m.now = clock }
}

// WithIDs overrides build ID generation.
func WithIDs(newID func() string) Option {
	return func(m *Maker) { m.newID = newID }
}

// NewMaker returns a maker resolving commands through registry.
func NewMaker(registry *command.Registry, opts ...Option) *Maker {
	m := &Maker{
		registry: registry,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = command.DefaultRegistry(nil)
	}
	return m
}

// Build runs the whole pipeline for def. The context is checked between
// commands so a superseded watch build can stop early.
func (m *Maker) Build(ctx context.Context, def Definition) (*Result, error) {
	def, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	journal := m.log.For(def.Name)
	journal.Info("%d measures, %d commands", def.MeasureCount(), len(def.Commands))
	res, err := m.build(ctx, def)
	if err != nil {
		journal.Error("%v", err)
		return nil, err
	}
	journal.Info("measures %d-%d done (build %s)",
		res.Metadata.FirstMeasureNumber, res.Metadata.FinalMeasureNumber, res.Metadata.BuildID)
	return res, nil
}

func (m *Maker) build(ctx context.Context, def Definition) (*Result, error) {
	first, persist, prevID, err := m.previous(def)
	if err != nil {
		return nil, err
	}
	s, root, global, err := Template(def)
	if err != nil {
		return nil, err
	}
	for i, spec := range def.Commands {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("segment %s: %w", def.Name, err)
		}
		if err := m.run(s, global, def, spec, persist); err != nil {
			return nil, fmt.Errorf("segment %s commands[%d] %s: %w", def.Name, i, spec.Command, err)
		}
	}

	spec, err := m.specifier(def, first)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", def.Name, err)
	}
	rows, err := spec.Apply(root, global)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", def.Name, err)
	}
	if spec.Breaks != nil {
		if err := spec.Breaks.ApplyTo(global); err != nil {
			return nil, fmt.Errorf("segment %s: %w", def.Name, err)
		}
	}
	for _, row := range rows {
		if row.EOL {
			m.log.For(def.Name).Info("measure %d ends a system at %s", row.Number, row.Annotation())
		}
	}

	text, err := lilypond.Document(root)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", def.Name, err)
	}

	meta := metadata.Metadata{
		Segment:            def.Name,
		BuildID:            m.newID(),
		FirstMeasureNumber: first,
		FinalMeasureNumber: first + def.MeasureCount() - 1,
		MeasureCount:       def.MeasureCount(),
		Fingerprint:        Fingerprint(def),
		PreviousBuildID:    prevID,
		Created:            m.now().UTC(),
	}
	for _, row := range rows {
		if row.Fermata && !row.Phantom {
			meta.FermataMeasureNumbers = append(meta.FermataMeasureNumbers, row.Number)
		}
	}
	if len(persist) > 0 {
		meta.Persist = persist
	}
	if m.store != nil {
		if meta, err = m.store.Write(def.Name, meta); err != nil {
			return nil, err
		}
	}
	return &Result{Score: s, Root: root, Global: global, Measures: rows, Metadata: meta, LilyPond: text}, nil
}

// previous resolves the first measure number, the persistent pitch counts
// carried over from the previous segment, and that segment's build id.
func (m *Maker) previous(def Definition) (int, map[string]int, string, error) {
	first := def.FirstMeasureNumber
	persist := map[string]int{}
	if def.Previous == "" {
		if first == 0 {
			first = 1
		}
		return first, persist, "", nil
	}
	if m.store == nil {
		return 0, nil, "", fmt.Errorf("segment %s: previous segment %s needs a metadata store: %w", def.Name, def.Previous, errs.ErrPrecondition)
	}
	prev, err := m.store.Read(def.Previous)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return 0, nil, "", fmt.Errorf("segment %s: build %s first: %w", def.Name, def.Previous, err)
		}
		return 0, nil, "", err
	}
	if first == 0 {
		first = prev.NextMeasureNumber()
	} else if first != prev.NextMeasureNumber() {
		m.log.For(def.Name).Warn("first measure %d does not follow %s (ends at %d)", first, def.Previous, prev.FinalMeasureNumber)
	}
	for name, n := range prev.Persist {
		persist[name] = n
	}
	return first, persist, prev.BuildID, nil
}

func (m *Maker) run(s *score.Score, global *score.Node, def Definition, spec CommandSpec, persist map[string]int) error {
	var opts []command.Option
	if len(spec.Selector) > 0 {
		sel, err := selector.Parse(spec.Selector)
		if err != nil {
			return err
		}
		opts = append(opts, command.WithSelector(sel))
	}
	if len(spec.Tags) > 0 {
		opts = append(opts, command.WithTag(spec.Tags...))
	}
	if spec.Deactivate {
		opts = append(opts, command.Deactivated())
	}
	cmd, err := m.registry.Resolve(spec.Command, spec.Config, opts...)
	if err != nil {
		return err
	}
	target, err := scopeTarget(s, global, def, spec.Scope)
	if err != nil {
		return err
	}
	pitches, persistent := cmd.(*command.PitchCommand)
	if persistent && pitches.Persist != "" {
		pitches.Previous = persist[pitches.Persist]
	}
	if err := cmd.Apply(target); err != nil {
		return err
	}
	if persistent && pitches.Persist != "" {
		persist[pitches.Persist] = pitches.Consumed()
	}
	return nil
}

// scopeTarget returns the leaves of the scoped context that start inside the
// scoped measures. The phantom measure is never in scope.
func scopeTarget(s *score.Score, global *score.Node, def Definition, scope Scope) (selection.Selection, error) {
	ctx := s.Find(scope.Voice)
	if ctx == nil {
		return selection.Selection{}, fmt.Errorf("segment: no context named %s: %w", scope.Voice, errs.ErrInvalidParameter)
	}
	start, stop, err := scope.bounds(def.MeasureCount())
	if err != nil {
		return selection.Selection{}, err
	}
	spans := score.Timespans(global.Root())
	skips := global.Leaves()
	from, to := spans[skips[start].ID()].Start, spans[skips[stop-1].ID()].Stop
	var leaves []*score.Node
	for _, leaf := range ctx.Leaves() {
		offset := spans[leaf.ID()].Start
		if !offset.Less(from) && offset.Less(to) {
			leaves = append(leaves, leaf)
		}
	}
	return selection.Of(leaves...), nil
}

func (m *Maker) specifier(def Definition, first int) (*spacing.Specifier, error) {
	spec := &spacing.Specifier{
		FirstMeasure:    first,
		MeasureCount:    def.MeasureCount(),
		Minimum:         m.defaults.MinimumDuration,
		Multiplier:      m.defaults.Multiplier,
		FermataDuration: m.defaults.FermataMeasureDuration,
		Phantom:         def.Phantom,
	}
	if def.Phantom {
		spec.MeasureCount++
	}
	if spec.FermataDuration.IsZero() {
		spec.FermataDuration = spacing.DefaultFermataDuration
	}
	if d := def.Spacing.MinimumDuration; d != nil {
		spec.Minimum = *d
	}
	if d := def.Spacing.Multiplier; d != nil {
		spec.Multiplier = *d
	}
	if d := def.Spacing.FermataMeasureDuration; d != nil {
		spec.FermataDuration = *d
	}
	for _, o := range def.Spacing.Overrides {
		var err error
		if len(o.Measures) > 0 {
			err = spec.Override(o.Measures, o.Duration, o.Fermata)
		} else {
			err = spec.OverrideRange(o.Start, o.Stop, o.Duration, o.Fermata)
		}
		if err != nil {
			return nil, err
		}
	}
	if def.Breaks != nil {
		breaks, err := spacing.BreaksFrom(first, def.Breaks.Pages...)
		if err != nil {
			return nil, err
		}
		spec.Breaks = breaks
	}
	return spec, nil
}

// Template builds the empty segment score: a global context holding one
// skip per measure with its time signature, and a staff per definition
// staff holding its voices. Voices without music are filled with
// multimeasure rests. With Phantom set every context gets a trailing 1/4
// measure.
func Template(def Definition) (*score.Score, *score.Node, *score.Node, error) {
	s := score.New()
	root := s.NewContext("Score", ScoreName)
	root.SetSimultaneous(true)
	globalContext := s.NewContext("GlobalContext", GlobalContextName)
	globalContext.SetSimultaneous(true)
	global := s.NewContext("GlobalSkips", GlobalSkipsName)
	if err := s.Append(root, globalContext); err != nil {
		return nil, nil, nil, err
	}
	if err := s.Append(globalContext, global); err != nil {
		return nil, nil, nil, err
	}

	var total duration.Duration
	previous := ""
	for _, ts := range def.TimeSignatures {
		skip := s.NewSkip(duration.FromInt(1))
		skip.SetMultiplier(ts.Duration())
		if err := s.Append(global, skip); err != nil {
			return nil, nil, nil, err
		}
		if ts.String() != previous {
			skip.Attach(score.Indicator{Kind: score.TimeSignature, Value: ts.String(), Context: "Score", Position: score.Before})
			previous = ts.String()
		}
		total = total.Add(ts.Duration())
	}
	phantom := TimeSignature{Numerator: 1, Denominator: 4}
	if def.Phantom {
		skip := s.NewSkip(duration.FromInt(1))
		skip.SetMultiplier(phantom.Duration())
		if err := s.Append(global, skip); err != nil {
			return nil, nil, nil, err
		}
		skip.Attach(score.Indicator{Kind: score.TimeSignature, Value: phantom.String(), Tag: tags.New(tags.Phantom), Context: "Score", Position: score.Before})
	}

	for _, spec := range def.Staves {
		staff := s.NewContext("Staff", spec.Name)
		staff.SetDefaultClef(spec.Clef)
		staff.SetSimultaneous(len(spec.Voices) > 1)
		if err := s.Append(root, staff); err != nil {
			return nil, nil, nil, err
		}
		for _, v := range spec.Voices {
			voice := s.NewContext("Voice", v.Name)
			if err := s.Append(staff, voice); err != nil {
				return nil, nil, nil, err
			}
			music := v.Music
			if strings.TrimSpace(music) == "" {
				music = rests(def.TimeSignatures)
			}
			if err := score.ParseInto(voice, music); err != nil {
				return nil, nil, nil, fmt.Errorf("segment %s voice %s: %w", def.Name, v.Name, err)
			}
			if got := voice.Duration(); !got.Equal(total) {
				return nil, nil, nil, fmt.Errorf("segment %s voice %s: music lasts %s, measures last %s: %w",
					def.Name, v.Name, got, total, errs.ErrInvalidParameter)
			}
			if def.Phantom {
				if err := score.ParseInto(voice, rests([]TimeSignature{phantom})); err != nil {
					return nil, nil, nil, err
				}
			}
		}
	}
	return s, root, global, nil
}

func rests(signatures []TimeSignature) string {
	parts := make([]string, len(signatures))
	for i, ts := range signatures {
		parts[i] = "R1*" + ts.String()
	}
	return strings.Join(parts, " ")
}
