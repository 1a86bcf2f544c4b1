package selector

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/selection"
)

// OpSpec is the YAML form of one op, e.g.
//
//	- op: plts
//	- op: get
//	  indices: [0]
//	  period: 2
type OpSpec struct {
	Op         string             `yaml:"op"`
	Indices    []int              `yaml:"indices,omitempty"`
	Period     int                `yaml:"period,omitempty"`
	N          *int               `yaml:"n,omitempty"`
	Start      *int               `yaml:"start,omitempty"`
	Stop       *int               `yaml:"stop,omitempty"`
	Exclude    []string           `yaml:"exclude,omitempty"`
	Nontrivial bool               `yaml:"nontrivial,omitempty"`
	Pitched    string             `yaml:"pitched,omitempty"`
	Head       bool               `yaml:"head,omitempty"`
	Tail       bool               `yaml:"tail,omitempty"`
	Trim       bool               `yaml:"trim,omitempty"`
	Reverse    bool               `yaml:"reverse,omitempty"`
	Comparator string             `yaml:"comparator,omitempty"`
	Length     int                `yaml:"length,omitempty"`
	Duration   *duration.Duration `yaml:"duration,omitempty"`
	Map        []OpSpec           `yaml:"map,omitempty"`
}

// indexed ops are shorthands for "<plural>" followed by an index.
var indexed = map[string]func(int) Selector{
	"leaf":   Leaf,
	"pleaf":  PLeaf,
	"phead":  PHead,
	"plt":    PLT,
	"lt":     LT,
	"tuplet": Tuplet,
	"skip":   Skip,
	"note":   Note,
	"rest":   Rest,
	"run":    Run,
}

// ParseYAML decodes a list of op specs and builds the selector.
func ParseYAML(data []byte) (Selector, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Selector{}, nil
	}
	var specs []OpSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return Selector{}, fmt.Errorf("selector: decode: %w", err)
	}
	return Parse(specs)
}

// Parse builds a selector from op specs. Validation errors are returned
// immediately rather than deferred to Select.
func Parse(specs []OpSpec) (Selector, error) {
	var sel Selector
	for i, spec := range specs {
		next, err := spec.apply(sel)
		if err != nil {
			return Selector{}, fmt.Errorf("selector: spec %d (%s): %w", i, spec.Op, err)
		}
		sel = next
	}
	if err := sel.Err(); err != nil {
		return Selector{}, err
	}
	return sel, nil
}

func (spec OpSpec) pitched() (selection.Pitched, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Pitched)) {
	case "", "any":
		return selection.AnyLeaf, nil
	case "true", "yes", "pitched":
		return selection.PitchedOnly, nil
	case "false", "no", "unpitched":
		return selection.UnpitchedOnly, nil
	}
	return 0, invalid("pitched must be any, pitched or unpitched, got %q", spec.Pitched)
}

func (spec OpSpec) apply(sel Selector) (Selector, error) {
	op := strings.ToLower(strings.TrimSpace(spec.Op))
	if build, ok := indexed[op]; ok {
		if spec.N == nil {
			return Selector{}, invalid("%s needs n", op)
		}
		return sel.Then(build(*spec.N).Ops()...), nil
	}
	pitched, err := spec.pitched()
	if err != nil {
		return Selector{}, err
	}
	switch op {
	case "leaves":
		return sel.Then(LeavesOp{Options: selection.LeafOptions{
			Pitched: pitched,
			Exclude: spec.Exclude,
			Head:    spec.Head,
			Tail:    spec.Tail,
			Trim:    spec.Trim,
			Reverse: spec.Reverse,
		}}), nil
	case "pleaves":
		return sel.PLeaves(spec.Exclude...), nil
	case "pheads":
		return sel.PHeads(spec.Exclude...), nil
	case "ptails":
		return sel.PTails(spec.Exclude...), nil
	case "logical_ties":
		return sel.Then(LogicalTiesOp{Options: selection.LogicalTieOptions{
			Pitched:    pitched,
			Nontrivial: spec.Nontrivial,
			Exclude:    spec.Exclude,
		}}), nil
	case "plts":
		return sel.PLTs(spec.Exclude...), nil
	case "lts":
		return sel.LTs(spec.Exclude...), nil
	case "runs":
		return sel.Runs(spec.Exclude...), nil
	case "tuplets":
		return sel.Tuplets(), nil
	case "notes", "chords", "rests", "skips":
		return sel.Then(KindOp{Kind: LeafKind(op)}), nil
	case "get":
		return sel.Get(spec.Indices, spec.Period), nil
	case "exclude":
		return sel.Exclude(spec.Indices, spec.Period), nil
	case "slice":
		start, stop := 0, selection.End
		if spec.Start != nil {
			start = *spec.Start
		}
		if spec.Stop != nil {
			stop = *spec.Stop
		}
		return sel.Slice(start, stop), nil
	case "index":
		if spec.N == nil {
			return Selector{}, invalid("index needs n")
		}
		return sel.Index(*spec.N), nil
	case "group":
		return sel.Group(), nil
	case "flatten":
		return sel.Flatten(), nil
	case "rleak":
		return sel.RLeak(), nil
	case "lleak":
		return sel.LLeak(), nil
	case "map":
		sub, err := Parse(spec.Map)
		if err != nil {
			return Selector{}, err
		}
		return sel.Map(sub), nil
	case "filter_length":
		return sel.FilterLength(selection.Comparator(spec.Comparator), spec.Length), nil
	case "filter_duration":
		if spec.Duration == nil {
			return Selector{}, invalid("filter_duration needs duration")
		}
		return sel.FilterDuration(selection.Comparator(spec.Comparator), *spec.Duration), nil
	}
	return Selector{}, invalid("unknown op %q", spec.Op)
}
