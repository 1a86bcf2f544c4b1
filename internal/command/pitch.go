package command

import (
	"fmt"
	"strings"

	"github.com/kingrea/baca/internal/cyclic"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/tags"
)

// PitchValue is one entry of a pitch command: a pitch, a chord, or a rest.
type PitchValue struct {
	Pitches []pitch.Pitch
	Rest    bool
}

// ParsePitchValue reads "c'", "<c' e' g'>" or "r".
func ParsePitchValue(text string) (PitchValue, error) {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "r":
		return PitchValue{Rest: true}, nil
	case strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">"):
		var out PitchValue
		for _, name := range strings.Fields(trimmed[1 : len(trimmed)-1]) {
			p, err := pitch.Parse(name)
			if err != nil {
				return PitchValue{}, err
			}
			out.Pitches = append(out.Pitches, p)
		}
		if len(out.Pitches) == 0 {
			return PitchValue{}, fmt.Errorf("command: empty chord %q", text)
		}
		return out, nil
	}
	p, err := pitch.Parse(trimmed)
	if err != nil {
		return PitchValue{}, err
	}
	return PitchValue{Pitches: []pitch.Pitch{p}}, nil
}

// String renders the value the way ParsePitchValue reads it.
func (v PitchValue) String() string {
	if v.Rest {
		return "r"
	}
	if len(v.Pitches) == 1 {
		return v.Pitches[0].Name()
	}
	names := make([]string, len(v.Pitches))
	for i, p := range v.Pitches {
		names[i] = p.Name()
	}
	return "<" + strings.Join(names, " ") + ">"
}

// PitchCommand assigns values cyclically to logical ties. Unit i receives
// Values.Get(Previous + i).
type PitchCommand struct {
	Base
	Values cyclic.Sequence[PitchValue]
	// Exact requires one value per unit.
	Exact bool
	// Persist names the running count kept in segment metadata so a later
	// segment can continue the cycle where this one stopped.
	Persist  string
	Previous int
	consumed int
}

// NewPitch builds a pitch command. The default selector is every pitched
// logical tie; pass a selector that yields rests to repitch them.
func NewPitch(values []PitchValue, exact bool, opts ...Option) (*PitchCommand, error) {
	if len(values) == 0 {
		return nil, invalid("pitches: at least one value is required")
	}
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &PitchCommand{Base: base, Values: cyclic.New(values...), Exact: exact}, nil
}

// Pitches parses names and builds a pitch command.
func Pitches(names []string, exact bool, opts ...Option) (*PitchCommand, error) {
	values := make([]PitchValue, 0, len(names))
	for _, name := range names {
		v, err := ParsePitchValue(name)
		if err != nil {
			return nil, invalid("pitches: %v", err)
		}
		values = append(values, v)
	}
	return NewPitch(values, exact, opts...)
}

// Consumed returns Previous plus the units pitched by the last Apply.
func (c *PitchCommand) Consumed() int {
	return c.consumed
}

// Apply implements Command.
func (c *PitchCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: pitches: %w", err)
	}
	units := logicalTies(selection.LTs(sel))
	c.consumed = c.Previous
	if len(units) == 0 {
		return nil
	}
	if c.Exact && c.Values.Len() != len(units) {
		return fmt.Errorf("command: pitches %s: %w", sel, insufficient(c.Values.Len(), len(units)))
	}
	for i, unit := range units {
		value := c.Values.Get(c.Previous + i)
		for _, leaf := range unit.Leaves() {
			if _, err := c.assign(leaf, value); err != nil {
				return err
			}
		}
	}
	c.consumed = c.Previous + len(units)
	return nil
}

func (c *PitchCommand) assign(leaf *score.Node, value PitchValue) (*score.Node, error) {
	if value.Rest {
		if !leaf.IsPitched() {
			return leaf, nil
		}
		return replaceLeaf(leaf, func(s *score.Score) *score.Node { return s.NewRest(leaf.Written()) })
	}
	out, err := setPitches(leaf, value.Pitches)
	if err != nil {
		return nil, err
	}
	detachMarker([]*score.Node{out}, tags.NotYetPitched)
	return out, nil
}
