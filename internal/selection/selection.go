// Package selection implements the pure query operations used to pick
// material out of a score: leaves, logical ties, runs, tuplets, index
// patterns, grouping and leaking. Every operation takes an Item (a node, a
// logical tie or a Selection) and returns a new Selection; the tree is never
// modified.
package selection

import (
	"fmt"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
)

// Item is anything that can be flattened to leaves.
type Item interface {
	Leaves() []*score.Node
}

var (
	_ Item = (*score.Node)(nil)
	_ Item = score.LogicalTie{}
	_ Item = Selection{}
)

// Selection is an immutable ordered sequence of items. Items may themselves
// be selections, which is how grouped results (runs, per-tuplet leaves) are
// represented.
type Selection struct {
	items []Item
}

// New builds a selection from items.
func New(items ...Item) Selection {
	return Selection{items: append([]Item(nil), items...)}
}

// Of builds a flat selection of nodes.
func Of(nodes ...*score.Node) Selection {
	items := make([]Item, len(nodes))
	for i, n := range nodes {
		items[i] = n
	}
	return Selection{items: items}
}

// Items returns a copy of the top-level items.
func (s Selection) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Len returns the number of top-level items.
func (s Selection) Len() int { return len(s.items) }

// IsEmpty reports whether the selection holds no leaves at all.
func (s Selection) IsEmpty() bool { return len(s.Leaves()) == 0 }

// Leaves flattens every item to leaves in order.
func (s Selection) Leaves() []*score.Node {
	var out []*score.Node
	for _, item := range s.items {
		out = append(out, item.Leaves()...)
	}
	return out
}

// At returns the item at n. Negative n counts from the end.
func (s Selection) At(n int) (Item, error) {
	idx := n
	if idx < 0 {
		idx += len(s.items)
	}
	if idx < 0 || idx >= len(s.items) {
		return nil, fmt.Errorf("selection: index %d with %d items: %w", n, len(s.items), errs.ErrIndexOutOfRange)
	}
	return s.items[idx], nil
}

// String summarises the selection for error messages.
func (s Selection) String() string {
	return fmt.Sprintf("Selection(%d items, %d leaves)", len(s.items), len(s.Leaves()))
}

// ItemsOf returns the top-level items of x: a selection's own items, or x
// alone.
func ItemsOf(x Item) []Item {
	if x == nil {
		return nil
	}
	if sel, ok := x.(Selection); ok {
		return sel.Items()
	}
	return []Item{x}
}

// Duration sums the sounding durations of an item's leaves.
func Duration(x Item) duration.Duration {
	var total duration.Duration
	for _, leaf := range x.Leaves() {
		total = total.Add(leaf.Duration())
	}
	return total
}

// Nodes returns every node covered by x in document order: all descendants
// of node items, the leaves of logical ties, recursively for selections.
func Nodes(x Item) []*score.Node {
	switch v := x.(type) {
	case *score.Node:
		return v.Descendants()
	case Selection:
		var out []*score.Node
		for _, item := range v.items {
			out = append(out, Nodes(item)...)
		}
		return out
	case nil:
		return nil
	default:
		return v.Leaves()
	}
}
