package command

import (
	"fmt"
	"strconv"

	"github.com/kingrea/baca/internal/cyclic"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/tags"
)

// ClusterCommand turns each pitched logical tie into a chord of stacked
// natural thirds. A width of zero or less leaves the unit unchanged.
type ClusterCommand struct {
	Base
	Widths cyclic.Sequence[int]
	// Start replaces the unit's lowest pitch as the bottom of the stack.
	Start *pitch.Pitch
	// Hidden suppresses the key-cluster indicator.
	Hidden bool
}

// Clusters builds a cluster command over pitched logical ties.
func Clusters(widths []int, start *pitch.Pitch, opts ...Option) (*ClusterCommand, error) {
	if len(widths) == 0 {
		return nil, invalid("clusters: at least one width is required")
	}
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &ClusterCommand{Base: base, Widths: cyclic.New(widths...), Start: start}, nil
}

// Stack returns width pitches beginning at bottom, each a natural third
// above the last.
func Stack(bottom pitch.Pitch, width int) []pitch.Pitch {
	if width <= 0 {
		return nil
	}
	out := []pitch.Pitch{bottom}
	for len(out) < width {
		out = append(out, out[len(out)-1].NaturalThirdAbove())
	}
	return out
}

// Apply implements Command.
func (c *ClusterCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: clusters: %w", err)
	}
	for i, unit := range pitchedUnits(sel) {
		width := c.Widths.Get(i)
		if width <= 0 {
			continue
		}
		bottom, _ := pitch.Lowest(unit.Head().Pitches())
		if c.Start != nil {
			bottom = *c.Start
		}
		if err := c.rebuild(unit, Stack(bottom, width), width); err != nil {
			return err
		}
	}
	return nil
}

// rebuild marks every chord of the tie so each renders as a cluster.
func (c *ClusterCommand) rebuild(unit score.LogicalTie, chord []pitch.Pitch, width int) error {
	for _, leaf := range unit.Leaves() {
		out, err := setPitches(leaf, chord)
		if err != nil {
			return fmt.Errorf("command: clusters: %w", err)
		}
		detachMarker([]*score.Node{out}, tags.NotYetPitched)
		if !c.Hidden {
			out.Attach(c.indicator(score.KeyCluster, strconv.Itoa(width)))
		}
	}
	return nil
}

// DiatonicClusterCommand replaces each pitched logical tie with Widths.Get(i)
// adjacent natural pitches starting at the unit's lowest diatonic step.
type DiatonicClusterCommand struct {
	Base
	Widths cyclic.Sequence[int]
}

// DiatonicClusters builds the command over pitched logical ties.
func DiatonicClusters(widths []int, opts ...Option) (*DiatonicClusterCommand, error) {
	if len(widths) == 0 {
		return nil, invalid("diatonic clusters: at least one width is required")
	}
	base, err := newBase(selector.PLTs(), opts)
	if err != nil {
		return nil, err
	}
	return &DiatonicClusterCommand{Base: base, Widths: cyclic.New(widths...)}, nil
}

// Apply implements Command.
func (c *DiatonicClusterCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: diatonic clusters: %w", err)
	}
	for i, unit := range pitchedUnits(sel) {
		width := c.Widths.Get(i)
		if width <= 0 {
			continue
		}
		bottom := unit.Head().Pitches()[0].DiatonicNumber()
		for _, p := range unit.Head().Pitches()[1:] {
			if dn := p.DiatonicNumber(); dn < bottom {
				bottom = dn
			}
		}
		chord := make([]pitch.Pitch, width)
		for k := range chord {
			chord[k] = pitch.FromDiatonic(bottom + k)
		}
		for _, leaf := range unit.Leaves() {
			out, err := setPitches(leaf, chord)
			if err != nil {
				return fmt.Errorf("command: diatonic clusters: %w", err)
			}
			detachMarker([]*score.Node{out}, tags.NotYetPitched)
		}
	}
	return nil
}
