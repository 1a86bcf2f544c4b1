// Package selector builds reusable selection pipelines. A Selector is an
// immutable list of ops; it is evaluated only when Select is called with a
// concrete score fragment, so one selector can be bound to many fragments.
package selector

import (
	"fmt"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/selection"
)

// Selector is an immutable pipeline of ops. The zero value selects its
// input unchanged.
type Selector struct {
	ops []Op
	err error
}

// New validates ops and returns a selector. A validation failure is kept
// and reported by Err and by every Select call.
func New(ops ...Op) Selector {
	return Selector{}.Then(ops...)
}

// Then returns a new selector with ops appended.
func (s Selector) Then(ops ...Op) Selector {
	out := Selector{ops: append(append([]Op(nil), s.ops...), ops...), err: s.err}
	if out.err != nil {
		return out
	}
	for i, op := range ops {
		if err := op.validate(); err != nil {
			out.err = fmt.Errorf("selector: op %d (%s): %w", len(s.ops)+i, op.Name(), err)
			break
		}
	}
	return out
}

// Err returns the construction error, if any.
func (s Selector) Err() error { return s.err }

// IsZero reports whether the selector has no ops.
func (s Selector) IsZero() bool { return len(s.ops) == 0 && s.err == nil }

// Ops returns a copy of the pipeline.
func (s Selector) Ops() []Op { return append([]Op(nil), s.ops...) }

// String renders the pipeline, e.g. "plts.get([0], 2)".
func (s Selector) String() string {
	if len(s.ops) == 0 {
		return "identity"
	}
	return describe(s.ops)
}

// Select evaluates the pipeline against target. It never mutates target.
func (s Selector) Select(target selection.Item) (selection.Selection, error) {
	if s.err != nil {
		return selection.Selection{}, s.err
	}
	current := selection.New(selection.ItemsOf(target)...)
	for i, op := range s.ops {
		next, err := run(op, current)
		if err != nil {
			return selection.Selection{}, fmt.Errorf("selector %s: op %d (%s): %w", s, i, op.Name(), err)
		}
		current = next
	}
	return current, nil
}

// Builder methods. Each returns a new selector.

func (s Selector) Leaves() Selector { return s.Then(LeavesOp{}) }
func (s Selector) PLeaves(exclude ...string) Selector {
	return s.Then(LeavesOp{Options: selection.LeafOptions{Pitched: selection.PitchedOnly, Exclude: exclude}})
}
func (s Selector) PHeads(exclude ...string) Selector {
	return s.Then(LeavesOp{Options: selection.LeafOptions{Pitched: selection.PitchedOnly, Head: true, Exclude: exclude}})
}
func (s Selector) PTails(exclude ...string) Selector {
	return s.Then(LeavesOp{Options: selection.LeafOptions{Pitched: selection.PitchedOnly, Tail: true, Exclude: exclude}})
}
func (s Selector) PLTs(exclude ...string) Selector {
	return s.Then(LogicalTiesOp{Options: selection.LogicalTieOptions{Pitched: selection.PitchedOnly, Exclude: exclude}})
}
func (s Selector) LTs(exclude ...string) Selector {
	return s.Then(LogicalTiesOp{Options: selection.LogicalTieOptions{Exclude: exclude}})
}
func (s Selector) Runs(exclude ...string) Selector { return s.Then(RunsOp{Exclude: exclude}) }
func (s Selector) Tuplets() Selector               { return s.Then(TupletsOp{}) }
func (s Selector) Notes() Selector                 { return s.Then(KindOp{Kind: NotesKind}) }
func (s Selector) Chords() Selector                { return s.Then(KindOp{Kind: ChordsKind}) }
func (s Selector) Rests() Selector                 { return s.Then(KindOp{Kind: RestsKind}) }
func (s Selector) Skips() Selector                 { return s.Then(KindOp{Kind: SkipsKind}) }
func (s Selector) Get(indices []int, period int) Selector {
	return s.Then(GetOp{Indices: indices, Period: period})
}
func (s Selector) Exclude(indices []int, period int) Selector {
	return s.Then(ExcludeOp{Indices: indices, Period: period})
}
func (s Selector) Slice(start, stop int) Selector { return s.Then(SliceOp{Start: start, Stop: stop}) }
func (s Selector) Index(n int) Selector           { return s.Then(IndexOp{N: n}) }
func (s Selector) Group() Selector                { return s.Then(GroupOp{}) }
func (s Selector) Flatten() Selector              { return s.Then(FlattenOp{}) }
func (s Selector) RLeak() Selector                { return s.Then(RLeakOp{}) }
func (s Selector) LLeak() Selector                { return s.Then(LLeakOp{}) }
func (s Selector) Map(sub Selector) Selector      { return s.Then(MapOp{Selector: sub}) }
func (s Selector) FilterLength(c selection.Comparator, n int) Selector {
	return s.Then(FilterLengthOp{Comparator: c, Length: n})
}
func (s Selector) FilterDuration(c selection.Comparator, d duration.Duration) Selector {
	return s.Then(FilterDurationOp{Comparator: c, Duration: d})
}

// Factories.

// Leaves selects every leaf.
func Leaves() Selector { return Selector{}.Leaves() }

// PLeaves selects pitched leaves.
func PLeaves(exclude ...string) Selector { return Selector{}.PLeaves(exclude...) }

// PHeads selects the head of every pitched logical tie.
func PHeads(exclude ...string) Selector { return Selector{}.PHeads(exclude...) }

// PTails selects the tail of every pitched logical tie.
func PTails(exclude ...string) Selector { return Selector{}.PTails(exclude...) }

// PLTs selects pitched logical ties.
func PLTs(exclude ...string) Selector { return Selector{}.PLTs(exclude...) }

// LTs selects every logical tie.
func LTs(exclude ...string) Selector { return Selector{}.LTs(exclude...) }

// Runs selects runs of contiguous pitched leaves.
func Runs(exclude ...string) Selector { return Selector{}.Runs(exclude...) }

// Tuplets selects tuplets.
func Tuplets() Selector { return Selector{}.Tuplets() }

// Notes selects notes.
func Notes() Selector { return Selector{}.Notes() }

// Chords selects chords.
func Chords() Selector { return Selector{}.Chords() }

// Rests selects rests, including multimeasure rests.
func Rests() Selector { return Selector{}.Rests() }

// Skips selects skips.
func Skips() Selector { return Selector{}.Skips() }

// Leaf selects leaf n.
func Leaf(n int) Selector { return Leaves().Index(n) }

// PLeaf selects pitched leaf n.
func PLeaf(n int) Selector { return PLeaves().Index(n) }

// PHead selects the head of pitched logical tie n.
func PHead(n int) Selector { return PHeads().Index(n) }

// PLT selects pitched logical tie n.
func PLT(n int) Selector { return PLTs().Index(n) }

// LT selects logical tie n.
func LT(n int) Selector { return LTs().Index(n) }

// Tuplet selects tuplet n.
func Tuplet(n int) Selector { return Tuplets().Index(n) }

// Skip selects skip n.
func Skip(n int) Selector { return Skips().Index(n) }

// Note selects note n.
func Note(n int) Selector { return Notes().Index(n) }

// Rest selects rest n.
func Rest(n int) Selector { return Rests().Index(n) }

// Run selects run n.
func Run(n int) Selector { return Runs().Index(n) }

// Group selects every leaf as one grouped item.
func Group() Selector { return Leaves().Group() }

// RLeaves selects every leaf plus the leaf after the last one.
func RLeaves() Selector { return Leaves().RLeak() }

// LeafInEachTuplet selects leaf n of every tuplet.
func LeafInEachTuplet(n int) Selector { return Tuplets().Map(Leaf(n)) }

// LeafInEachRun selects leaf n of every run.
func LeafInEachRun(n int) Selector { return Runs().Map(Leaf(n)) }

// LeavesInEachPLT selects leaves[start:stop] of every pitched logical tie.
func LeavesInEachPLT(start, stop int) Selector { return PLTs().Map(Leaves().Slice(start, stop)) }

// LeafAfterEachPTail selects the leaf after every pitched tail. A tail at
// the end of its voice selects itself.
func LeafAfterEachPTail() Selector { return PTails().Map(New(RLeakOp{}, IndexOp{N: -1})) }

// RLeakEachRun selects every run extended by its next leaf, one item per run.
func RLeakEachRun() Selector { return Runs().Map(New(RLeakOp{})) }
