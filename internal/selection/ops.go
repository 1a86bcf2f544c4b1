package selection

import (
	"fmt"
	"math"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
)

// End is the open upper bound for Slice.
const End = math.MaxInt

// Pitched restricts leaf queries by pitch content.
type Pitched int

const (
	AnyLeaf Pitched = iota
	PitchedOnly
	UnpitchedOnly
)

func (p Pitched) keep(leaf *score.Node) bool {
	switch p {
	case PitchedOnly:
		return leaf.IsPitched()
	case UnpitchedOnly:
		return !leaf.IsPitched()
	default:
		return true
	}
}

// LeafOptions narrows Leaves.
type LeafOptions struct {
	Pitched Pitched
	// Exclude drops leaves carrying a marker with any of these values.
	Exclude []string
	// Head keeps only logical-tie heads; Tail keeps only logical-tie tails.
	Head bool
	Tail bool
	// Trim drops unpitched leaves at either end.
	Trim    bool
	Reverse bool
}

func excluded(leaf *score.Node, markers []string) bool {
	for _, m := range markers {
		if leaf.HasIndicator(score.Marker, m) {
			return true
		}
	}
	return false
}

func uniqueLeaves(x Item) []*score.Node {
	if x == nil {
		return nil
	}
	seen := map[score.NodeID]bool{}
	var out []*score.Node
	for _, leaf := range x.Leaves() {
		if seen[leaf.ID()] {
			continue
		}
		seen[leaf.ID()] = true
		out = append(out, leaf)
	}
	return out
}

// Leaves flattens x to its leaves in document order. Simultaneous
// containers contribute each child's leaves in declared child order.
func Leaves(x Item, opts LeafOptions) Selection {
	leaves := uniqueLeaves(x)
	if opts.Trim {
		start, stop := 0, len(leaves)
		for start < stop && !leaves[start].IsPitched() {
			start++
		}
		for stop > start && !leaves[stop-1].IsPitched() {
			stop--
		}
		leaves = leaves[start:stop]
	}
	var out []*score.Node
	for _, leaf := range leaves {
		if !opts.Pitched.keep(leaf) || excluded(leaf, opts.Exclude) {
			continue
		}
		if opts.Head && score.LogicalTieOf(leaf).Head() != leaf {
			continue
		}
		if opts.Tail && score.LogicalTieOf(leaf).Tail() != leaf {
			continue
		}
		out = append(out, leaf)
	}
	if opts.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return Of(out...)
}

// PLeaves returns pitched leaves.
func PLeaves(x Item, exclude ...string) Selection {
	return Leaves(x, LeafOptions{Pitched: PitchedOnly, Exclude: exclude})
}

// PHeads returns the heads of pitched logical ties.
func PHeads(x Item, exclude ...string) Selection {
	return Leaves(x, LeafOptions{Pitched: PitchedOnly, Head: true, Exclude: exclude})
}

// PTails returns the tails of pitched logical ties.
func PTails(x Item, exclude ...string) Selection {
	return Leaves(x, LeafOptions{Pitched: PitchedOnly, Tail: true, Exclude: exclude})
}

func leavesOfKind(x Item, kinds ...score.Kind) Selection {
	var out []*score.Node
	for _, leaf := range uniqueLeaves(x) {
		for _, k := range kinds {
			if leaf.Kind() == k {
				out = append(out, leaf)
				break
			}
		}
	}
	return Of(out...)
}

// Notes returns note leaves.
func Notes(x Item) Selection { return leavesOfKind(x, score.KindNote) }

// Chords returns chord leaves.
func Chords(x Item) Selection { return leavesOfKind(x, score.KindChord) }

// Rests returns rests and multimeasure rests.
func Rests(x Item) Selection { return leavesOfKind(x, score.KindRest, score.KindMultimeasureRest) }

// Skips returns skip leaves.
func Skips(x Item) Selection { return leavesOfKind(x, score.KindSkip) }

// LogicalTieOptions narrows LogicalTies.
type LogicalTieOptions struct {
	Pitched    Pitched
	Nontrivial bool
	Exclude    []string
}

// LogicalTies groups the leaves of x into logical ties. Ties that start
// before or end after x are returned whole.
func LogicalTies(x Item, opts LogicalTieOptions) Selection {
	seen := map[score.NodeID]bool{}
	var out []Item
	for _, leaf := range uniqueLeaves(x) {
		lt := score.LogicalTieOf(leaf)
		head := lt.Head()
		if seen[head.ID()] {
			continue
		}
		seen[head.ID()] = true
		if !opts.Pitched.keep(head) || excluded(head, opts.Exclude) {
			continue
		}
		if opts.Nontrivial && lt.IsTrivial() {
			continue
		}
		out = append(out, lt)
	}
	return Selection{items: out}
}

// PLTs returns pitched logical ties.
func PLTs(x Item, exclude ...string) Selection {
	return LogicalTies(x, LogicalTieOptions{Pitched: PitchedOnly, Exclude: exclude})
}

// LTs returns every logical tie, pitched or not.
func LTs(x Item, exclude ...string) Selection {
	return LogicalTies(x, LogicalTieOptions{Exclude: exclude})
}

// Runs groups maximal sequences of contiguous pitched leaves. Each run is a
// nested Selection.
func Runs(x Item, exclude ...string) Selection {
	var out []Item
	var current []*score.Node
	for _, leaf := range PLeaves(x, exclude...).Leaves() {
		if len(current) > 0 && current[len(current)-1].NextLeaf() != leaf {
			out = append(out, Of(current...))
			current = nil
		}
		current = append(current, leaf)
	}
	if len(current) > 0 {
		out = append(out, Of(current...))
	}
	return Selection{items: out}
}

// Tuplets returns every tuplet covered by x, outer before inner.
func Tuplets(x Item) Selection {
	seen := map[score.NodeID]bool{}
	var out []*score.Node
	for _, n := range Nodes(x) {
		if n.Kind() != score.KindTuplet || seen[n.ID()] {
			continue
		}
		seen[n.ID()] = true
		out = append(out, n)
	}
	return Of(out...)
}

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func matches(i, n int, indices []int, period int) bool {
	for _, idx := range indices {
		if period > 0 {
			if mod(i, period) == mod(idx, period) {
				return true
			}
			continue
		}
		j := idx
		if j < 0 {
			j += n
		}
		if i == j {
			return true
		}
	}
	return false
}

// Get keeps the items of x at indices. With period > 0 the index pattern
// repeats every period items.
func Get(x Item, indices []int, period int) Selection {
	items := ItemsOf(x)
	var out []Item
	for i, item := range items {
		if matches(i, len(items), indices, period) {
			out = append(out, item)
		}
	}
	return Selection{items: out}
}

// Exclude is the complement of Get.
func Exclude(x Item, indices []int, period int) Selection {
	items := ItemsOf(x)
	var out []Item
	for i, item := range items {
		if !matches(i, len(items), indices, period) {
			out = append(out, item)
		}
	}
	return Selection{items: out}
}

// Slice keeps items[start:stop] with negative bounds counted from the end.
// Out-of-range bounds are clamped.
func Slice(x Item, start, stop int) Selection {
	items := ItemsOf(x)
	n := len(items)
	clamp := func(v int) int {
		if v < 0 {
			v += n
		}
		if v < 0 {
			return 0
		}
		if v > n {
			return n
		}
		return v
	}
	lo, hi := clamp(start), clamp(stop)
	if lo >= hi {
		return Selection{}
	}
	return New(items[lo:hi]...)
}

// Index returns item n of x as a selection. Negative n counts from the end.
// A nested selection item is returned as is; other items are wrapped.
func Index(x Item, n int) (Selection, error) {
	item, err := New(ItemsOf(x)...).At(n)
	if err != nil {
		return Selection{}, err
	}
	if sel, ok := item.(Selection); ok {
		return sel, nil
	}
	return New(item), nil
}

// Group wraps all items of x into one nested selection.
func Group(x Item) Selection {
	return Selection{items: []Item{New(ItemsOf(x)...)}}
}

// Flatten splices nested selections into their parent, one level deep.
func Flatten(x Item) Selection {
	var out []Item
	for _, item := range ItemsOf(x) {
		if sel, ok := item.(Selection); ok {
			out = append(out, sel.items...)
			continue
		}
		out = append(out, item)
	}
	return Selection{items: out}
}

// Map applies fn to every item of x and collects each result as a nested
// selection.
func Map(x Item, fn func(Item) (Selection, error)) (Selection, error) {
	var out []Item
	for i, item := range ItemsOf(x) {
		result, err := fn(item)
		if err != nil {
			return Selection{}, fmt.Errorf("selection: map item %d: %w", i, err)
		}
		out = append(out, result)
	}
	return Selection{items: out}, nil
}

// Filter keeps the items for which keep returns true.
func Filter(x Item, keep func(Item) bool) Selection {
	var out []Item
	for _, item := range ItemsOf(x) {
		if keep(item) {
			out = append(out, item)
		}
	}
	return Selection{items: out}
}

// Comparator is one of <, <=, ==, !=, >, >=.
type Comparator string

// ParseComparator validates a comparator string.
func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(s); c {
	case "<", "<=", "==", "!=", ">", ">=":
		return c, nil
	}
	return "", fmt.Errorf("selection: comparator %q: %w", s, errs.ErrInvalidParameter)
}

func (c Comparator) holds(cmp int) bool {
	switch c {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func length(item Item) int {
	switch v := item.(type) {
	case Selection:
		return v.Len()
	default:
		return len(v.Leaves())
	}
}

// FilterLength keeps items whose length compares to n.
func FilterLength(x Item, c Comparator, n int) Selection {
	return Filter(x, func(item Item) bool {
		l := length(item)
		switch {
		case l < n:
			return c.holds(-1)
		case l > n:
			return c.holds(1)
		default:
			return c.holds(0)
		}
	})
}

// FilterDuration keeps items whose sounding duration compares to d.
func FilterDuration(x Item, c Comparator, d duration.Duration) Selection {
	return Filter(x, func(item Item) bool {
		return c.holds(Duration(item).Cmp(d))
	})
}

// RLeak returns the leaves of x followed by the next leaf in the voice.
// At the end of the voice the leaves are returned unchanged.
func RLeak(x Item) Selection {
	leaves := uniqueLeaves(x)
	if len(leaves) == 0 {
		return Selection{}
	}
	if next := leaves[len(leaves)-1].NextLeaf(); next != nil {
		leaves = append(leaves, next)
	}
	return Of(leaves...)
}

// LLeak returns the previous leaf in the voice followed by the leaves of x.
func LLeak(x Item) Selection {
	leaves := uniqueLeaves(x)
	if len(leaves) == 0 {
		return Selection{}
	}
	if prev := leaves[0].PrevLeaf(); prev != nil {
		leaves = append([]*score.Node{prev}, leaves...)
	}
	return Of(leaves...)
}
