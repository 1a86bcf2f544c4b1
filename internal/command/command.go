// Package command binds selectors to score mutations. A command resolves
// its selector against a fragment, then attaches indicators to or rewrites
// the pitches of what was selected. Commands run strictly in the order the
// caller supplies; later commands on the same leaves win.
package command

import (
	"fmt"

	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/pitch"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/tags"
)

// Command mutates or annotates a score fragment.
type Command interface {
	Apply(target selection.Item) error
}

// Base carries what every command shares: an optional selector and the tag
// written next to anything the command attaches.
type Base struct {
	Selector   selector.Selector
	Tag        tags.Tag
	Deactivate bool
}

// Option configures a command's Base.
type Option func(*Base)

// WithSelector overrides the command's default selector.
func WithSelector(sel selector.Selector) Option {
	return func(b *Base) { b.Selector = sel }
}

// WithTag appends tag words.
func WithTag(words ...string) Option {
	return func(b *Base) { b.Tag = b.Tag.Append(words...) }
}

// Deactivated marks attachments to be rendered commented out.
func Deactivated() Option {
	return func(b *Base) { b.Deactivate = true }
}

func newBase(defaultSelector selector.Selector, opts []Option) (Base, error) {
	b := Base{Selector: defaultSelector}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	if err := b.Selector.Err(); err != nil {
		return Base{}, fmt.Errorf("command: %w", err)
	}
	return b, nil
}

// resolve applies the selector, or passes target through when none is set.
func (b Base) resolve(target selection.Item) (selection.Selection, error) {
	if target == nil {
		return selection.Selection{}, nil
	}
	if b.Selector.IsZero() {
		return selection.New(selection.ItemsOf(target)...), nil
	}
	return b.Selector.Select(target)
}

func (b Base) indicator(kind score.IndicatorKind, value string) score.Indicator {
	return score.Indicator{Kind: kind, Value: value, Tag: b.Tag, Deactivate: b.Deactivate}
}

// carried lists indicator kinds that survive leaf replacement. Key clusters
// and microtone markup describe the old pitches and are dropped.
var carried = func() []score.IndicatorKind {
	var out []score.IndicatorKind
	for _, kind := range score.Kinds() {
		if kind == score.KeyCluster || kind == score.MicrotoneMarkup {
			continue
		}
		out = append(out, kind)
	}
	return out
}()

// pitchedUnits returns the pitched logical ties of sel.
func pitchedUnits(sel selection.Selection) []score.LogicalTie {
	return logicalTies(selection.PLTs(sel))
}

func logicalTies(sel selection.Selection) []score.LogicalTie {
	items := sel.Items()
	out := make([]score.LogicalTie, 0, len(items))
	for _, item := range items {
		if lt, ok := item.(score.LogicalTie); ok {
			out = append(out, lt)
		}
	}
	return out
}

// replaceLeaf swaps leaf for the node returned by build, keeping written
// duration, multiplier, ties and carried indicators.
func replaceLeaf(leaf *score.Node, build func(s *score.Score) *score.Node) (*score.Node, error) {
	s := leaf.Score()
	replacement := build(s)
	if m, ok := leaf.Multiplier(); ok {
		replacement.SetMultiplier(m)
	}
	if replacement.IsPitched() && leaf.IsPitched() {
		replacement.SetTie(leaf.Tie())
		replacement.SetRepeatTie(leaf.RepeatTie())
	}
	if err := s.Replace(leaf, replacement, carried...); err != nil {
		return nil, fmt.Errorf("command: replace %s: %w", leaf, err)
	}
	return replacement, nil
}

// setPitches writes pitches into leaf, converting between note and chord
// as needed. It returns the leaf now in the tree.
func setPitches(leaf *score.Node, values []pitch.Pitch) (*score.Node, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("command: no pitches for %s", leaf)
	}
	switch {
	case leaf.Kind() == score.KindNote && len(values) == 1,
		leaf.Kind() == score.KindChord && len(values) > 1:
		return leaf, leaf.SetPitches(values...)
	case len(values) == 1:
		return replaceLeaf(leaf, func(s *score.Score) *score.Node { return s.NewNote(values[0], leaf.Written()) })
	default:
		return replaceLeaf(leaf, func(s *score.Score) *score.Node { return s.NewChord(values, leaf.Written()) })
	}
}

func insufficient(values, units int) error {
	return fmt.Errorf("command: %d values for %d units: %w", values, units, errs.ErrInsufficientValues)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("command: %s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidParameter)
}

func detachMarker(leaves []*score.Node, marker string) {
	for _, leaf := range leaves {
		leaf.Detach(score.Marker, marker)
	}
}
