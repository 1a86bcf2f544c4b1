package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
	"github.com/kingrea/baca/internal/selector"
	"github.com/kingrea/baca/internal/tags"
)

// PartAssignment names a section and, optionally, which members of the
// section play: "Violin", "Violin(2)", "Violin(1-3)".
type PartAssignment struct {
	Section string
	First   int
	Last    int
}

var partRE = regexp.MustCompile(`^([A-Za-z][A-Za-z_]*)(?:\((\d+)(?:-(\d+))?\))?$`)

// ParsePartAssignment reads the textual form written by String.
func ParsePartAssignment(text string) (PartAssignment, error) {
	m := partRE.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return PartAssignment{}, invalid("malformed part assignment %q", text)
	}
	out := PartAssignment{Section: m[1]}
	if m[2] != "" {
		out.First, _ = strconv.Atoi(m[2])
		out.Last = out.First
	}
	if m[3] != "" {
		out.Last, _ = strconv.Atoi(m[3])
	}
	if out.First < 0 || out.Last < out.First {
		return PartAssignment{}, invalid("part assignment %q has a reversed member range", text)
	}
	return out, nil
}

func (p PartAssignment) String() string {
	switch {
	case p.First == 0:
		return p.Section
	case p.First == p.Last:
		return fmt.Sprintf("%s(%d)", p.Section, p.First)
	default:
		return fmt.Sprintf("%s(%d-%d)", p.Section, p.First, p.Last)
	}
}

// Parts maps voice names to the part sections they may be assigned.
type Parts map[string][]string

// Allows reports whether voice may carry a part of section.
func (p Parts) Allows(voice, section string) bool {
	for _, allowed := range p[voice] {
		if allowed == section {
			return true
		}
	}
	return false
}

// PartAssignmentCommand marks the selected leaves as belonging to a part.
type PartAssignmentCommand struct {
	Base
	Assignment PartAssignment
	Parts      Parts
}

// PartAssign builds the command. The default selector is every leaf.
func PartAssign(assignment PartAssignment, parts Parts, opts ...Option) (*PartAssignmentCommand, error) {
	if assignment.Section == "" {
		return nil, invalid("part assignment needs a section")
	}
	base, err := newBase(selector.Leaves(), opts)
	if err != nil {
		return nil, err
	}
	return &PartAssignmentCommand{Base: base, Assignment: assignment, Parts: parts}, nil
}

// Apply implements Command.
func (c *PartAssignmentCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: parts: %w", err)
	}
	leaves := sel.Leaves()
	if len(leaves) == 0 {
		return nil
	}
	first := leaves[0]
	if voice := first.Context("Voice"); voice != nil {
		if !c.Parts.Allows(voice.Name(), c.Assignment.Section) {
			return fmt.Errorf("command: %s does not allow %s part assignment: %s: %w",
				voice.Name(), c.Assignment.Section, c.Assignment, errs.ErrPartAssignment)
		}
	}
	ind := c.indicator(score.PartAssignment, c.Assignment.String())
	ind.Position = score.Before
	first.Attach(ind)
	return nil
}

// FermataDescriptions lists the accepted global fermata lengths.
var FermataDescriptions = []string{"short", "fermata", "long", "very_long"}

// GlobalFermataCommand marks whole measures of silence held under a
// fermata. Each selected rest or skip gets the fermata markup, a literal
// hiding the next time signature, and the fermata-measure marker the segment
// maker collects for spacing.
type GlobalFermataCommand struct {
	Base
	Description string
}

// GlobalFermata builds the command. The default selector is the first leaf.
func GlobalFermata(description string, opts ...Option) (*GlobalFermataCommand, error) {
	if description == "" {
		description = "fermata"
	}
	valid := false
	for _, d := range FermataDescriptions {
		valid = valid || d == description
	}
	if !valid {
		return nil, invalid("unknown fermata description %q", description)
	}
	base, err := newBase(selector.Leaf(0), opts)
	if err != nil {
		return nil, err
	}
	base.Tag = base.Tag.Append("GLOBAL_FERMATA")
	return &GlobalFermataCommand{Base: base, Description: description}, nil
}

// Markup returns the LilyPond markup function for the description.
func (c *GlobalFermataCommand) Markup() string {
	if c.Description == "fermata" {
		return `\baca-fermata-markup`
	}
	return `\baca-` + strings.ReplaceAll(c.Description, "_", "-") + `-fermata-markup`
}

// Apply implements Command.
func (c *GlobalFermataCommand) Apply(target selection.Item) error {
	sel, err := c.resolve(target)
	if err != nil {
		return fmt.Errorf("command: global fermata: %w", err)
	}
	for _, leaf := range sel.Leaves() {
		if leaf.IsPitched() {
			return fmt.Errorf("command: global fermata on pitched leaf %s: %w", leaf, errs.ErrPrecondition)
		}
		leaf.Attach(c.indicator(score.Markup, c.Markup()))
		leaf.Attach(c.indicator(score.Literal, `\once \override Score.TimeSignature.stencil = ##f`))
		leaf.Attach(score.Indicator{Kind: score.Marker, Value: tags.Fermata, Tag: tags.New(tags.Fermata)})
	}
	return nil
}

// IsFermataMeasure reports whether leaf carries the fermata-measure marker.
func IsFermataMeasure(leaf *score.Node) bool {
	return leaf.HasIndicator(score.Marker, tags.Fermata)
}
