package command

import (
	"fmt"
	"math"

	"github.com/kingrea/baca/internal/cyclic"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/tags"
)

// Anchor picks the reference pitch for RegisterToOctave.
type Anchor int

const (
	Bottom Anchor = iota
	Center
	Top
)

func (a Anchor) String() string {
	switch a {
	case Center:
		return "center"
	case Top:
		return "top"
	default:
		return "bottom"
	}
}

// ParseAnchor reads down/bottom, center or up/top.
func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "down", "bottom":
		return Bottom, nil
	case "center":
		return Center, nil
	case "up", "top":
		return Top, nil
	}
	return 0, invalid("unknown anchor %q", s)
}

// RegisterToOctaveCommand moves every selected pitch by the whole number of
// octaves that puts the anchor pitch into Octave.
type RegisterToOctaveCommand struct {
	Base
	Anchor Anchor
	Octave int
}

// RegisterToOctave builds the command. The default selector is every
// pitched leaf.
func RegisterToOctave(anchor Anchor, octave int, opts ...Option) (*RegisterToOctaveCommand, error) {
	base, err := newBase(selector.PLeaves(), opts)
	if err != nil {
		return nil, err
	}
	return &RegisterToOctaveCommand{Base: base, Anchor: anchor, Octave: octave}, nil
}

// BassToOctave anchors on the lowest pitch.
func BassToOctave(octave int, opts ...Option) (*RegisterToOctaveCommand, error) {
	return RegisterToOctave(Bottom, octave, opts...)
}

// CenterToOctave anchors on the midpoint between lowest and highest pitch.
func CenterToOctave(octave int, opts ...Option) (*RegisterToOctaveCommand, error) {
	return RegisterToOctave(Center, octave, opts...)
}

// SopranoToOctave anchors on the highest pitch.
func SopranoToOctave(octave int, opts ...Option) (*RegisterToOctaveCommand, error) {
	return RegisterToOctave(Top, octave, opts...)
}

func registerOf(number float64) int {
	return int(math.Floor(number/12)) + 4
}

// Apply implements Command.
func (c *RegisterToOctaveCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: register to octave: %w", err)
	}
	leaves := selection.PLeaves(sel).Leaves()
	var all []pitch.Pitch
	for _, leaf := range leaves {
		all = append(all, leaf.Pitches()...)
	}
	if len(all) == 0 {
		return nil
	}
	low, _ := pitch.Lowest(all)
	high, _ := pitch.Highest(all)
	// Top and bottom anchors read the written octave, so bs' sits in
	// octave 4 and cf'' in octave 5. The center has no spelling and falls
	// back to its sounding register.
	var current int
	switch c.Anchor {
	case Top:
		current = high.Octave
	case Center:
		current = registerOf((low.Number() + high.Number()) / 2)
	default:
		current = low.Octave
	}
	shift := c.Octave - current
	for _, leaf := range leaves {
		moved := leaf.Pitches()
		for i := range moved {
			moved[i] = moved[i].MoveOctaves(shift)
		}
		if err := leaf.SetPitches(moved...); err != nil {
			return fmt.Errorf("command: register to octave: %w", err)
		}
	}
	detachMarker(leaves, tags.NotYetRegistered)
	return nil
}

// RegisterInterpolationCommand registers unit i of N into
// trunc(Start + i*(Stop-Start)/(N-1)).
type RegisterInterpolationCommand struct {
	Base
	Start int
	Stop  int
}

// RegisterInterpolation builds the command over pitched logical ties.
func RegisterInterpolation(start, stop int, opts ...Option) (*RegisterInterpolationCommand, error) {
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &RegisterInterpolationCommand{Base: base, Start: start, Stop: stop}, nil
}

// Register fixes every selected pitch in one octave.
func Register(octave int, opts ...Option) (*RegisterInterpolationCommand, error) {
	return RegisterInterpolation(octave, octave, opts...)
}

func (c *RegisterInterpolationCommand) registerAt(i, n int) int {
	if n <= 1 {
		return c.Start
	}
	// Integer division truncates toward zero.
	return (c.Start*(n-1) + i*(c.Stop-c.Start)) / (n - 1)
}

// Apply implements Command.
func (c *RegisterInterpolationCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: register interpolation: %w", err)
	}
	units := pitchedUnits(sel)
	for i, unit := range units {
		octave := c.registerAt(i, len(units))
		for _, leaf := range unit.Leaves() {
			moved := leaf.Pitches()
			for j := range moved {
				moved[j] = moved[j].ToRegister(octave)
			}
			if err := leaf.SetPitches(moved...); err != nil {
				return fmt.Errorf("command: register interpolation: %w", err)
			}
		}
		detachMarker(unit.Leaves(), tags.NotYetRegistered)
	}
	return nil
}

// StaffPositionInterpolationCommand walks units in a straight line of staff
// positions from Start to Stop under each unit's clef. The first and last
// units receive Start and Stop exactly.
type StaffPositionInterpolationCommand struct {
	Base
	Start pitch.Pitch
	Stop  pitch.Pitch
}

// StaffPositionInterpolation builds the command over pitched logical ties.
func StaffPositionInterpolation(start, stop pitch.Pitch, opts ...Option) (*StaffPositionInterpolationCommand, error) {
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &StaffPositionInterpolationCommand{Base: base, Start: start, Stop: stop}, nil
}

func roundHalfAway(x float64) int {
	if x < 0 {
		return -int(math.Floor(-x + 0.5))
	}
	return int(math.Floor(x + 0.5))
}

// Apply implements Command.
func (c *StaffPositionInterpolationCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: staff position interpolation: %w", err)
	}
	units := pitchedUnits(sel)
	n := len(units)
	for i, unit := range units {
		var p pitch.Pitch
		switch {
		case i == 0:
			p = c.Start
		case i == n-1:
			p = c.Stop
		default:
			clef := score.EffectiveClef(unit.Head())
			start := clef.StaffPosition(c.Start)
			stop := clef.StaffPosition(c.Stop)
			position := float64(start) + float64(i)*float64(stop-start)/float64(n-1)
			p = clef.PitchAt(roundHalfAway(position))
		}
		for _, leaf := range unit.Leaves() {
			out, err := setPitches(leaf, []pitch.Pitch{p})
			if err != nil {
				return fmt.Errorf("command: staff position interpolation: %w", err)
			}
			detachMarker([]*score.Node{out}, tags.NotYetPitched)
		}
	}
	return nil
}

// OctaveDisplacementCommand moves unit i by Displacements.Get(i) octaves.
type OctaveDisplacementCommand struct {
	Base
	Displacements cyclic.Sequence[int]
}

// OctaveDisplacement builds the command over pitched logical ties.
func OctaveDisplacement(displacements []int, opts ...Option) (*OctaveDisplacementCommand, error) {
	if len(displacements) == 0 {
		return nil, invalid("displacement: at least one value is required")
	}
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &OctaveDisplacementCommand{Base: base, Displacements: cyclic.New(displacements...)}, nil
}

// Apply implements Command.
func (c *OctaveDisplacementCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: displacement: %w", err)
	}
	for i, unit := range pitchedUnits(sel) {
		octaves := c.Displacements.Get(i)
		if octaves == 0 {
			continue
		}
		for _, leaf := range unit.Leaves() {
			moved := leaf.Pitches()
			for j := range moved {
				moved[j] = moved[j].MoveOctaves(octaves)
			}
			if err := leaf.SetPitches(moved...); err != nil {
				return fmt.Errorf("command: displacement: %w", err)
			}
		}
	}
	return nil
}

// MicrotoneDeviationCommand bends unit i by Deviations.Get(i) semitones.
type MicrotoneDeviationCommand struct {
	Base
	Deviations cyclic.Sequence[float64]
}

// MicrotoneDeviation builds the command. Deviations must be -0.5, 0 or 0.5.
func MicrotoneDeviation(deviations []float64, opts ...Option) (*MicrotoneDeviationCommand, error) {
	if len(deviations) == 0 {
		return nil, invalid("deviation: at least one value is required")
	}
	for _, d := range deviations {
		if d != 0 && d != 0.5 && d != -0.5 {
			return nil, invalid("deviation %g is not -0.5, 0 or 0.5", d)
		}
	}
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &MicrotoneDeviationCommand{Base: base, Deviations: cyclic.New(deviations...)}, nil
}

// Apply implements Command.
func (c *MicrotoneDeviationCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: deviation: %w", err)
	}
	for i, unit := range pitchedUnits(sel) {
		deviation := c.Deviations.Get(i)
		if deviation == 0 {
			continue
		}
		for _, leaf := range unit.Leaves() {
			bent := leaf.Pitches()
			for j := range bent {
				bent[j] = bent[j].Deviate(deviation)
			}
			if err := leaf.SetPitches(bent...); err != nil {
				return fmt.Errorf("command: deviation: %w", err)
			}
		}
		unit.Head().Attach(c.indicator(score.MicrotoneMarkup, fmt.Sprintf("%+g", deviation)))
	}
	return nil
}
