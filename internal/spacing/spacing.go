// Package spacing assigns each measure of a segment the notated duration
// that drives proportional horizontal spacing, and places line and page
// breaks on the global skips.
package spacing

import (
	"fmt"
	"sort"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/tags"
)

var (
	// EOLAdjustment widens the last measure of each system to offset the
	// narrower spacing LilyPond gives line-final columns.
	EOLAdjustment = duration.New(35, 24)
	// PhantomDuration spaces the trailing phantom measure.
	PhantomDuration = duration.New(1, 4)
	// DefaultFermataDuration spaces fermata measures unless overridden.
	DefaultFermataDuration = duration.New(1, 4)
)

// Specifier computes per-measure spacing durations. The zero value spaces
// every measure by its shortest leaf with no floor, multiplier or breaks.
type Specifier struct {
	Breaks *BreakMap
	// FermataMeasures are measure numbers held under a global fermata.
	FermataMeasures []int
	// FermataDuration spaces fermata measures. Zero spaces them like any
	// other measure.
	FermataDuration duration.Duration
	// FirstMeasure numbers the first skip; zero means 1.
	FirstMeasure int
	// MeasureCount bounds overrides when known; zero means unknown.
	MeasureCount int
	// Minimum is the floor below which no measure is spaced.
	Minimum duration.Duration
	// Multiplier divides the computed duration; 2 allots half the space.
	Multiplier duration.Multiplier
	// Phantom marks a trailing silent measure spaced at PhantomDuration.
	Phantom bool

	overrides        map[int]duration.Duration
	fermataOverrides map[int]bool
}

// MinimumDuration returns a specifier with a floor and fermata measures
// spaced at DefaultFermataDuration.
func MinimumDuration(floor duration.Duration) *Specifier {
	return &Specifier{Minimum: floor, FermataDuration: DefaultFermataDuration}
}

// Scorewide returns a specifier that spaces measures first..first+count-1
// at fallback unless overridden later. Measure numbers restart at 1 and
// fermata measure numbers shift with them.
func Scorewide(first, count int, fermataMeasures []int, fallback duration.Duration, breaks *BreakMap, fermataDuration duration.Duration) (*Specifier, error) {
	if first < 1 {
		first = 1
	}
	if count < 0 {
		return nil, fmt.Errorf("spacing: negative measure count %d: %w", count, errs.ErrInvalidParameter)
	}
	if fallback.Sign() <= 0 {
		return nil, fmt.Errorf("spacing: fallback duration %s is not positive: %w", fallback, errs.ErrInvalidParameter)
	}
	shifted := make([]int, 0, len(fermataMeasures))
	for _, n := range fermataMeasures {
		shifted = append(shifted, n-(first-1))
	}
	s := &Specifier{
		Breaks:          breaks,
		FermataMeasures: shifted,
		FermataDuration: fermataDuration,
		FirstMeasure:    1,
		MeasureCount:    count,
	}
	if count > 0 {
		if err := s.OverrideRange(1, count, fallback, false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Specifier) first() int {
	if s.FirstMeasure < 1 {
		return 1
	}
	return s.FirstMeasure
}

// FinalMeasure returns the last measure number when the count is known.
func (s *Specifier) FinalMeasure() (int, bool) {
	if s.MeasureCount <= 0 {
		return 0, false
	}
	return s.first() + s.MeasureCount - 1, true
}

func (s *Specifier) checkMeasure(number int) error {
	if number < 1 {
		return fmt.Errorf("spacing: nonpositive measure number (%d) not allowed: %w", number, errs.ErrInvalidParameter)
	}
	if first := s.first(); number < first {
		return fmt.Errorf("spacing: measure number %d less than first measure number (%d): %w", number, first, errs.ErrMeasureOverrun)
	}
	if final, ok := s.FinalMeasure(); ok && final < number {
		return fmt.Errorf("spacing: measure number %d greater than last measure number (%d): %w", number, final, errs.ErrMeasureOverrun)
	}
	return nil
}

// Override spaces each listed measure at d. Fermata overrides take
// precedence over the fermata duration.
func (s *Specifier) Override(measures []int, d duration.Duration, fermata bool) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("spacing: override duration %s is not positive: %w", d, errs.ErrInvalidParameter)
	}
	for _, n := range measures {
		if err := s.checkMeasure(n); err != nil {
			return err
		}
	}
	if s.overrides == nil {
		s.overrides = map[int]duration.Duration{}
		s.fermataOverrides = map[int]bool{}
	}
	for _, n := range measures {
		s.overrides[n] = d
		if fermata {
			s.fermataOverrides[n] = true
		}
	}
	return nil
}

// OverrideRange overrides start..stop inclusive.
func (s *Specifier) OverrideRange(start, stop int, d duration.Duration, fermata bool) error {
	if err := s.checkMeasure(start); err != nil {
		return err
	}
	if err := s.checkMeasure(stop); err != nil {
		return err
	}
	if stop < start {
		return fmt.Errorf("spacing: measure range %d-%d is reversed: %w", start, stop, errs.ErrInvalidParameter)
	}
	measures := make([]int, 0, stop-start+1)
	for n := start; n <= stop; n++ {
		measures = append(measures, n)
	}
	return s.Override(measures, d, fermata)
}

// Overrides returns a copy of the override table.
func (s *Specifier) Overrides() map[int]duration.Duration {
	out := make(map[int]duration.Duration, len(s.overrides))
	for n, d := range s.overrides {
		out[n] = d
	}
	return out
}

// EOLMeasures returns the measure numbers that end a system: the measure
// before each beginning-of-line measure after the first.
func (s *Specifier) EOLMeasures() []int {
	if s.Breaks == nil {
		return nil
	}
	bol := s.Breaks.BOLMeasures()
	out := make([]int, 0, len(bol))
	for _, n := range bol[min(1, len(bol)):] {
		out = append(out, n-1)
	}
	return out
}

// Measure is one row of spacing output.
type Measure struct {
	Number   int
	Start    duration.Duration
	Stop     duration.Duration
	Minimum  duration.Duration
	Duration duration.Duration
	// PreEOL holds the duration before the end-of-line adjustment.
	PreEOL   duration.Duration
	Override bool
	Fermata  bool
	EOL      bool
	Phantom  bool
}

// Annotation renders "[d]", or "[[d * 35/24]]" for end-of-line measures.
func (m Measure) Annotation() string {
	if m.EOL {
		return fmt.Sprintf("[[%s * %s]]", m.PreEOL, EOLAdjustment)
	}
	return fmt.Sprintf("[%s]", m.Duration)
}

type leafSpan struct {
	span     score.Timespan
	duration duration.Duration
	fermata  bool
}

// minimums assigns leaves to measures by start offset with a forward-only
// cursor and returns the shortest unmultiplied duration per measure. A
// measure no leaf starts in has a zero minimum. Fermata reports measures
// whose first leaf carries the fermata marker.
func minimums(skips []*score.Node, leaves []*score.Node, spans map[score.NodeID]score.Timespan) ([]duration.Duration, []bool) {
	measures := make([]score.Timespan, len(skips))
	for i, skip := range skips {
		measures[i] = spans[skip.ID()]
	}
	items := make([]leafSpan, 0, len(leaves))
	for _, leaf := range leaves {
		span, ok := spans[leaf.ID()]
		if !ok {
			continue
		}
		d := span.Duration()
		if m, ok := leaf.Multiplier(); ok {
			d = d.Div(m)
		}
		items = append(items, leafSpan{
			span:     span,
			duration: d,
			fermata:  leaf.HasIndicator(score.Marker, tags.Fermata),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].span.Start.Less(items[j].span.Start) })

	out := make([]duration.Duration, len(measures))
	fermata := make([]bool, len(measures))
	cursor := 0
	for _, item := range items {
		for cursor < len(measures) && !item.span.Start.Less(measures[cursor].Stop) {
			cursor++
		}
		if cursor == len(measures) {
			break
		}
		if item.span.Start.Less(measures[cursor].Start) {
			continue
		}
		if out[cursor].IsZero() || item.duration.Less(out[cursor]) {
			out[cursor] = item.duration
		}
		if item.fermata && item.span.Start.Equal(measures[cursor].Start) {
			fermata[cursor] = true
		}
	}
	return out, fermata
}

// Compute returns one row per skip. Leaves from every voice, global skips
// included, feed the minimum-duration pass.
func (s *Specifier) Compute(skips []*score.Node, leaves []*score.Node, spans map[score.NodeID]score.Timespan) ([]Measure, error) {
	if len(skips) == 0 {
		return nil, nil
	}
	first := s.first()
	final := first + len(skips) - 1
	for _, n := range sortedKeys(s.overrides) {
		if final < n {
			return nil, fmt.Errorf("spacing: score ends at measure %d (not %d): %w", final, n, errs.ErrMeasureOverrun)
		}
	}
	mins, markedFermata := minimums(skips, leaves, spans)
	fermataNumbers := map[int]bool{}
	for _, n := range s.FermataMeasures {
		fermataNumbers[n] = true
	}
	eol := map[int]bool{}
	for _, n := range s.EOLMeasures() {
		eol[n] = true
	}
	if s.Breaks != nil && !s.Phantom {
		eol[final] = true
	}

	rows := make([]Measure, len(skips))
	for i, skip := range skips {
		number := first + i
		span := spans[skip.ID()]
		row := Measure{
			Number:  number,
			Start:   span.Start,
			Stop:    span.Stop,
			Minimum: mins[i],
			Fermata: fermataNumbers[number] || markedFermata[i],
		}
		override, overridden := s.overrides[number]
		switch {
		case row.Fermata && s.fermataOverrides[number]:
			row.Duration, row.Override = override, true
		case row.Fermata && !s.FermataDuration.IsZero():
			row.Duration = s.FermataDuration
		case overridden:
			row.Duration, row.Override = override, true
		default:
			if row.Minimum.IsZero() {
				return nil, fmt.Errorf("spacing: measure %d has no leaves and no override: %w", number, errs.ErrPrecondition)
			}
			d := row.Minimum
			if !s.Minimum.IsZero() && d.Less(s.Minimum) {
				d = s.Minimum
			}
			if !s.Multiplier.IsZero() {
				d = d.Div(s.Multiplier)
			}
			row.Duration = d
		}
		if eol[number] {
			row.EOL = true
			row.PreEOL = row.Duration
			row.Duration = row.Duration.Mul(EOLAdjustment)
		}
		if s.Phantom && i == len(skips)-1 {
			row.Phantom = true
			row.EOL = false
			row.PreEOL = duration.Duration{}
			row.Duration = PhantomDuration
		}
		rows[i] = row
	}
	return rows, nil
}

// Apply computes spacing for the skips under global and annotates them:
// a spacing section on every skip plus deactivated text spans carrying the
// annotation between consecutive skips. root must contain global and every
// voice whose leaves count toward the minimum.
func (s *Specifier) Apply(root, global *score.Node) ([]Measure, error) {
	spans := score.Timespans(root)
	skips := skipsOf(global)
	rows, err := s.Compute(skips, root.Leaves(), spans)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		skip := skips[i]
		skip.Attach(score.Indicator{
			Kind:     score.SpacingSection,
			Value:    row.Duration.String(),
			Tag:      tags.New(tags.SpacingCommand),
			Position: score.Before,
		})
		if i < len(rows)-1 {
			// Without a phantom measure the last span must show both ends
			// or the final measure's annotation is never printed.
			markup := fmt.Sprintf("- \\baca-start-spm-left-only %q", row.Annotation())
			if !s.Phantom && i == len(rows)-2 {
				markup = fmt.Sprintf("- \\baca-start-spm-both %q %q", row.Annotation(), rows[i+1].Annotation())
			}
			skip.Attach(score.Indicator{
				Kind:       score.StartTextSpan,
				Value:      markup + "\n\\bacaStartTextSpanSPM",
				Tag:        tags.New(tags.Spacing),
				Deactivate: true,
				Context:    "GlobalSkips",
			})
		}
		if i > 0 {
			skip.Attach(score.Indicator{
				Kind:       score.StopTextSpan,
				Value:      `\bacaStopTextSpanSPM`,
				Tag:        tags.New(tags.Spacing),
				Deactivate: true,
				Context:    "GlobalSkips",
			})
		}
	}
	return rows, nil
}

func skipsOf(global *score.Node) []*score.Node {
	var out []*score.Node
	for _, leaf := range global.Leaves() {
		if leaf.Kind() == score.KindSkip {
			out = append(out, leaf)
		}
	}
	return out
}

func sortedKeys(m map[int]duration.Duration) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
