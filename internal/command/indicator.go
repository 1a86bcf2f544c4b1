package command

import (
	"fmt"
	"strings"

	"github.com/kingrea/baca/internal/cyclic"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
)

// IndicatorCommand attaches indicators to every selected leaf. Leaf i
// receives every value in Values.Get(i).
type IndicatorCommand struct {
	Base
	Kind     score.IndicatorKind
	Values   cyclic.Sequence[[]string]
	Position score.Position
	Context  string
	// Predicate, when set, skips leaves for which it returns false. Skipped
	// leaves still consume a value.
	Predicate func(*score.Node) bool
	// Redundant turns the command into a no-op.
	Redundant bool
}

// NewIndicator builds an indicator command. Each entry of values is the set
// of indicator values for one leaf.
func NewIndicator(kind score.IndicatorKind, values [][]string, defaultSelector selector.Selector, opts ...Option) (*IndicatorCommand, error) {
	if kind == "" {
		return nil, invalid("indicator kind is required")
	}
	if len(values) == 0 {
		return nil, invalid("%s: at least one value is required", kind)
	}
	for i, entry := range values {
		if len(entry) == 0 {
			return nil, invalid("%s: value %d is empty", kind, i)
		}
		for _, v := range entry {
			if strings.TrimSpace(v) == "" {
				return nil, invalid("%s: value %d is blank", kind, i)
			}
		}
	}
	base, err := newBase(defaultSelector, opts)
	if err != nil {
		return nil, err
	}
	return &IndicatorCommand{Base: base, Kind: kind, Values: cyclic.New(values...)}, nil
}

// Apply implements Command.
func (c *IndicatorCommand) Apply(target selection.Item) error {
	if c.Redundant {
		return nil
	}
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: %s: %w", c.Kind, err)
	}
	for i, leaf := range sel.Leaves() {
		if c.Predicate != nil && !c.Predicate(leaf) {
			continue
		}
		for _, value := range c.Values.Get(i) {
			ind := c.indicator(c.Kind, value)
			ind.Position = c.Position
			ind.Context = c.Context
			leaf.Attach(ind)
		}
	}
	return nil
}

func single(values ...string) [][]string {
	out := make([][]string, len(values))
	for i, v := range values {
		out[i] = []string{v}
	}
	return out
}

var dynamics = map[string]bool{
	"niente": true, "pppp": true, "ppp": true, "pp": true, "p": true, "mp": true,
	"mf": true, "f": true, "ff": true, "fff": true, "ffff": true,
	"fp": true, "sf": true, "sfz": true, "sfp": true, "sffz": true, "rfz": true,
}

// Dynamic attaches dynamics cyclically, by default to the first pitched
// head.
func Dynamic(names []string, opts ...Option) (*IndicatorCommand, error) {
	for _, name := range names {
		if !dynamics[name] {
			return nil, invalid("unknown dynamic %q", name)
		}
	}
	return NewIndicator(score.Dynamic, single(names...), selector.PHead(0), opts...)
}

// Articulations attaches every named articulation to each pitched head.
func Articulations(names []string, opts ...Option) (*IndicatorCommand, error) {
	return NewIndicator(score.Articulation, [][]string{names}, selector.PHeads(), opts...)
}

// Markup attaches a markup string, by default to the first pitched leaf.
func Markup(text string, opts ...Option) (*IndicatorCommand, error) {
	return NewIndicator(score.Markup, single(text), selector.PLeaf(0), opts...)
}

// Literal attaches raw LilyPond text to the first leaf.
func Literal(text string, position score.Position, opts ...Option) (*IndicatorCommand, error) {
	cmd, err := NewIndicator(score.Literal, single(text), selector.Leaf(0), opts...)
	if err != nil {
		return nil, err
	}
	cmd.Position = position
	return cmd, nil
}

// Clef attaches a clef before the first leaf.
func Clef(name string, opts ...Option) (*IndicatorCommand, error) {
	clef, err := pitch.LookupClef(name)
	if err != nil {
		return nil, invalid("%v", err)
	}
	cmd, err := NewIndicator(score.Clef, single(clef.Name), selector.Leaf(0), opts...)
	if err != nil {
		return nil, err
	}
	cmd.Position = score.Before
	cmd.Context = "Staff"
	return cmd, nil
}

// Marker attaches a plain marker, used to flag leaves for later passes.
func Marker(value string, opts ...Option) (*IndicatorCommand, error) {
	return NewIndicator(score.Marker, single(value), selector.Selector{}, opts...)
}

// Tagged returns cmd with words appended to its tag. Only commands built on
// Base can be tagged.
func Tagged(cmd Command, words ...string) (Command, error) {
	type based interface{ base() *Base }
	b, ok := cmd.(based)
	if !ok {
		return nil, invalid("%T cannot be tagged", cmd)
	}
	base := b.base()
	base.Tag = base.Tag.Append(words...)
	return cmd, nil
}

func (b *Base) base() *Base { return b }

// SpannerCommand attaches a start indicator to the first leaf and a stop
// indicator to the last leaf of the selection, or of each nested item when
// the selection is grouped.
type SpannerCommand struct {
	Base
	Start []score.Indicator
	Stop  []score.Indicator
}

// Apply implements Command.
func (c *SpannerCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: spanner: %w", err)
	}
	for _, unit := range spans(sel) {
		leaves := unit.Leaves()
		if len(leaves) < 2 {
			continue
		}
		for _, ind := range c.Start {
			leaves[0].Attach(c.tagged(ind))
		}
		for _, ind := range c.Stop {
			leaves[len(leaves)-1].Attach(c.tagged(ind))
		}
	}
	return nil
}

func (c *SpannerCommand) tagged(ind score.Indicator) score.Indicator {
	ind.Tag = ind.Tag.Append(c.Tag.Words()...)
	ind.Deactivate = ind.Deactivate || c.Deactivate
	return ind
}

func spans(sel selection.Selection) []selection.Item {
	items := sel.Items()
	nested := len(items) > 0
	for _, item := range items {
		if _, ok := item.(selection.Selection); !ok {
			nested = false
			break
		}
	}
	if nested {
		return items
	}
	return []selection.Item{sel}
}

// trimmedLeaves drops rests and skips at either end.
func trimmedLeaves() selector.Selector {
	return selector.New(selector.LeavesOp{Options: selection.LeafOptions{Trim: true}})
}

// Slur spans the selection with a slur. By default it spans the leaves
// from the first to the last pitched leaf.
func Slur(opts ...Option) (*SpannerCommand, error) {
	base, err := newBase(trimmedLeaves(), opts)
	if err != nil {
		return nil, err
	}
	return &SpannerCommand{
		Base:  base,
		Start: []score.Indicator{{Kind: score.StartSlur, Value: "("}},
		Stop:  []score.Indicator{{Kind: score.StopSlur, Value: ")"}},
	}, nil
}

// Hairpin parses descriptors such as "p < f", "< ff", "f >" or "o< mf" and
// builds the start/stop pair.
func Hairpin(descriptor string, opts ...Option) (*SpannerCommand, error) {
	fields := strings.Fields(descriptor)
	var start, stop []score.Indicator
	shape := ""
	for _, field := range fields {
		switch {
		case field == "<" || field == ">" || field == "o<" || field == ">o":
			if shape != "" {
				return nil, invalid("hairpin %q has two shapes", descriptor)
			}
			shape = field
		case dynamics[field]:
			ind := score.Indicator{Kind: score.Dynamic, Value: field}
			if shape == "" {
				start = append(start, ind)
			} else {
				stop = append(stop, ind)
			}
		default:
			return nil, invalid("hairpin %q: unknown token %q", descriptor, field)
		}
	}
	if shape == "" {
		return nil, invalid("hairpin %q needs < or >", descriptor)
	}
	start = append(start, score.Indicator{Kind: score.StartHairpin, Value: shape})
	if len(stop) == 0 {
		stop = []score.Indicator{{Kind: score.StopHairpin, Value: "!"}}
	}
	base, err := newBase(trimmedLeaves(), opts)
	if err != nil {
		return nil, err
	}
	return &SpannerCommand{Base: base, Start: start, Stop: stop}, nil
}

// TextSpanner spans the selection with a dashed text spanner starting with
// text.
func TextSpanner(text string, opts ...Option) (*SpannerCommand, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text spanner needs text")
	}
	base, err := newBase(selector.Leaves(), opts)
	if err != nil {
		return nil, err
	}
	return &SpannerCommand{
		Base:  base,
		Start: []score.Indicator{{Kind: score.StartTextSpan, Value: textSpanStart(text)}},
		Stop:  []score.Indicator{{Kind: score.StopTextSpan, Value: `\stopTextSpan`}},
	}, nil
}

func textSpanStart(text string) string {
	return fmt.Sprintf("- \\abjad-dashed-line-with-hook\n- \\tweak bound-details.left.text \\markup \\upright %q\n\\startTextSpan", text)
}
