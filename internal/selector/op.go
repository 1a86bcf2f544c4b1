package selector

import (
	"fmt"
	"strings"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/selection"
)

// Op is one step of a selector pipeline. The set of ops is closed: every
// variant is declared in this file and dispatched by run.
type Op interface {
	Name() string
	validate() error
}

// LeavesOp flattens to leaves.
type LeavesOp struct {
	Options selection.LeafOptions
}

// LogicalTiesOp groups leaves into logical ties.
type LogicalTiesOp struct {
	Options selection.LogicalTieOptions
}

// RunsOp groups contiguous pitched leaves.
type RunsOp struct {
	Exclude []string
}

// TupletsOp selects tuplets.
type TupletsOp struct{}

// LeafKind names the leaf classes selectable by KindOp.
type LeafKind string

const (
	NotesKind  LeafKind = "notes"
	ChordsKind LeafKind = "chords"
	RestsKind  LeafKind = "rests"
	SkipsKind  LeafKind = "skips"
)

// KindOp selects leaves of one class.
type KindOp struct {
	Kind LeafKind
}

// GetOp keeps items at Indices, repeating every Period items when Period > 0.
type GetOp struct {
	Indices []int
	Period  int
}

// ExcludeOp drops items at Indices, repeating every Period items when
// Period > 0.
type ExcludeOp struct {
	Indices []int
	Period  int
}

// SliceOp keeps items[Start:Stop].
type SliceOp struct {
	Start int
	Stop  int
}

// IndexOp picks a single item; negative N counts from the end.
type IndexOp struct {
	N int
}

// GroupOp wraps the whole selection as one item.
type GroupOp struct{}

// FlattenOp splices nested selections one level.
type FlattenOp struct{}

// RLeakOp adds the next leaf.
type RLeakOp struct{}

// LLeakOp adds the previous leaf.
type LLeakOp struct{}

// MapOp runs Selector over every item.
type MapOp struct {
	Selector Selector
}

// FilterLengthOp keeps items whose length compares to Length.
type FilterLengthOp struct {
	Comparator selection.Comparator
	Length     int
}

// FilterDurationOp keeps items whose duration compares to Duration.
type FilterDurationOp struct {
	Comparator selection.Comparator
	Duration   duration.Duration
}

func (RunsOp) Name() string           { return "runs" }
func (TupletsOp) Name() string        { return "tuplets" }
func (o KindOp) Name() string         { return string(o.Kind) }
func (GetOp) Name() string            { return "get" }
func (ExcludeOp) Name() string        { return "exclude" }
func (SliceOp) Name() string          { return "slice" }
func (IndexOp) Name() string          { return "index" }
func (GroupOp) Name() string          { return "group" }
func (FlattenOp) Name() string        { return "flatten" }
func (RLeakOp) Name() string          { return "rleak" }
func (LLeakOp) Name() string          { return "lleak" }
func (MapOp) Name() string            { return "map" }
func (FilterLengthOp) Name() string   { return "filter_length" }
func (FilterDurationOp) Name() string { return "filter_duration" }

// Name reports the shorthand the options correspond to, so a selector
// built with PHeads describes itself as "pheads".
func (o LeavesOp) Name() string {
	opts := o.Options
	if opts.Pitched != selection.PitchedOnly || opts.Trim || opts.Reverse || (opts.Head && opts.Tail) {
		return "leaves"
	}
	switch {
	case opts.Head:
		return "pheads"
	case opts.Tail:
		return "ptails"
	}
	return "pleaves"
}

func (o LogicalTiesOp) Name() string {
	if o.Options.Nontrivial {
		return "logical_ties"
	}
	switch o.Options.Pitched {
	case selection.PitchedOnly:
		return "plts"
	case selection.AnyLeaf:
		return "lts"
	}
	return "logical_ties"
}

func (LeavesOp) validate() error      { return nil }
func (LogicalTiesOp) validate() error { return nil }
func (RunsOp) validate() error        { return nil }
func (TupletsOp) validate() error     { return nil }
func (GroupOp) validate() error       { return nil }
func (FlattenOp) validate() error     { return nil }
func (RLeakOp) validate() error       { return nil }
func (LLeakOp) validate() error       { return nil }
func (IndexOp) validate() error       { return nil }
func (SliceOp) validate() error       { return nil }

func (o KindOp) validate() error {
	switch o.Kind {
	case NotesKind, ChordsKind, RestsKind, SkipsKind:
		return nil
	}
	return invalid("unknown leaf kind %q", o.Kind)
}

func validatePattern(indices []int, period int) error {
	if len(indices) == 0 {
		return invalid("indices must not be empty")
	}
	if period < 0 {
		return invalid("period must be >= 0, got %d", period)
	}
	return nil
}

func (o GetOp) validate() error     { return validatePattern(o.Indices, o.Period) }
func (o ExcludeOp) validate() error { return validatePattern(o.Indices, o.Period) }

func (o MapOp) validate() error {
	if o.Selector.IsZero() {
		return invalid("map needs a sub-selector")
	}
	return o.Selector.Err()
}

func (o FilterLengthOp) validate() error {
	if _, err := selection.ParseComparator(string(o.Comparator)); err != nil {
		return err
	}
	if o.Length < 0 {
		return invalid("length must be >= 0, got %d", o.Length)
	}
	return nil
}

func (o FilterDurationOp) validate() error {
	if _, err := selection.ParseComparator(string(o.Comparator)); err != nil {
		return err
	}
	if o.Duration.Sign() < 0 {
		return invalid("duration must be >= 0, got %s", o.Duration)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("selector: %s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidParameter)
}

// run is the single dispatch point for every op variant.
func run(op Op, x selection.Item) (selection.Selection, error) {
	switch o := op.(type) {
	case LeavesOp:
		return selection.Leaves(x, o.Options), nil
	case LogicalTiesOp:
		return selection.LogicalTies(x, o.Options), nil
	case RunsOp:
		return selection.Runs(x, o.Exclude...), nil
	case TupletsOp:
		return selection.Tuplets(x), nil
	case KindOp:
		switch o.Kind {
		case NotesKind:
			return selection.Notes(x), nil
		case ChordsKind:
			return selection.Chords(x), nil
		case RestsKind:
			return selection.Rests(x), nil
		default:
			return selection.Skips(x), nil
		}
	case GetOp:
		return selection.Get(x, o.Indices, o.Period), nil
	case ExcludeOp:
		return selection.Exclude(x, o.Indices, o.Period), nil
	case SliceOp:
		return selection.Slice(x, o.Start, o.Stop), nil
	case IndexOp:
		return selection.Index(x, o.N)
	case GroupOp:
		return selection.Group(x), nil
	case FlattenOp:
		return selection.Flatten(x), nil
	case RLeakOp:
		return selection.RLeak(x), nil
	case LLeakOp:
		return selection.LLeak(x), nil
	case MapOp:
		return selection.Map(x, o.Selector.Select)
	case FilterLengthOp:
		return selection.FilterLength(x, o.Comparator, o.Length), nil
	case FilterDurationOp:
		return selection.FilterDuration(x, o.Comparator, o.Duration), nil
	}
	return selection.Selection{}, fmt.Errorf("selector: unsupported op %T", op)
}

func describe(ops []Op) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		switch o := op.(type) {
		case GetOp:
			parts[i] = fmt.Sprintf("get(%v, %d)", o.Indices, o.Period)
		case ExcludeOp:
			parts[i] = fmt.Sprintf("exclude(%v, %d)", o.Indices, o.Period)
		case IndexOp:
			parts[i] = fmt.Sprintf("[%d]", o.N)
		case SliceOp:
			parts[i] = fmt.Sprintf("[%d:%d]", o.Start, o.Stop)
		case MapOp:
			parts[i] = "map(" + o.Selector.String() + ")"
		default:
			parts[i] = op.Name()
		}
	}
	return strings.Join(parts, ".")
}
