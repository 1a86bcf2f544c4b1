package score

import (
	"sort"

	"github.com/kingrea/baca/internal/tags"
)

// IndicatorKind names a family of attachments.
type IndicatorKind string

const (
	Articulation    IndicatorKind = "articulation"
	Clef            IndicatorKind = "clef"
	Dynamic         IndicatorKind = "dynamic"
	KeyCluster      IndicatorKind = "key-cluster"
	LBSD            IndicatorKind = "lbsd"
	Literal         IndicatorKind = "literal"
	Marker          IndicatorKind = "marker"
	Markup          IndicatorKind = "markup"
	MetronomeMark   IndicatorKind = "metronome-mark"
	PartAssignment  IndicatorKind = "part-assignment"
	SpacingSection  IndicatorKind = "spacing-section"
	StartHairpin    IndicatorKind = "start-hairpin"
	StartSlur       IndicatorKind = "start-slur"
	StartTextSpan   IndicatorKind = "start-text-span"
	StopHairpin     IndicatorKind = "stop-hairpin"
	StopSlur        IndicatorKind = "stop-slur"
	StopTextSpan    IndicatorKind = "stop-text-span"
	TimeSignature   IndicatorKind = "time-signature"
	MicrotoneMarkup IndicatorKind = "microtone"
)

var kinds = []IndicatorKind{
	Articulation, Clef, Dynamic, KeyCluster, LBSD, Literal, Marker, Markup,
	MetronomeMark, PartAssignment, SpacingSection, StartHairpin, StartSlur,
	StartTextSpan, StopHairpin, StopSlur, StopTextSpan, TimeSignature,
	MicrotoneMarkup,
}

// Kinds returns every indicator kind in declaration order.
func Kinds() []IndicatorKind {
	return append([]IndicatorKind(nil), kinds...)
}

// unique kinds allow one entry per leaf; a new value replaces the old one.
var uniqueKinds = map[IndicatorKind]bool{
	Dynamic:        true,
	Clef:           true,
	SpacingSection: true,
	LBSD:           true,
	TimeSignature:  true,
	KeyCluster:     true,
	PartAssignment: true,
	MetronomeMark:  true,
}

// IsUnique reports whether the kind admits a single entry per leaf.
func (k IndicatorKind) IsUnique() bool {
	return uniqueKinds[k]
}

// Position places an indicator relative to its leaf when rendered.
type Position int

const (
	After Position = iota
	Before
)

// Indicator is an annotation attached to a node.
type Indicator struct {
	Kind       IndicatorKind
	Value      string
	Tag        tags.Tag
	Deactivate bool
	// Context names the LilyPond context the indicator acts in, e.g.
	// "Staff" for clefs or "GlobalSkips" for spacing markup.
	Context  string
	Position Position
}

// AttachResult reports what Attach did.
type AttachResult int

const (
	Attached AttachResult = iota
	Replaced
	Redundant
)

func (r AttachResult) String() string {
	switch r {
	case Replaced:
		return "replaced"
	case Redundant:
		return "redundant"
	default:
		return "attached"
	}
}

type attachKey struct {
	node NodeID
	kind IndicatorKind
}

type attachment struct {
	Indicator
	seq int
}

// Attach records ind on node. Unique kinds replace an existing entry of the
// same kind; an entry with the same value is left alone and reported as
// Redundant.
func (s *Score) Attach(node *Node, ind Indicator) AttachResult {
	key := attachKey{node: node.id, kind: ind.Kind}
	existing := s.attachments[key]
	for _, a := range existing {
		if a.Value == ind.Value && a.Deactivate == ind.Deactivate {
			return Redundant
		}
	}
	s.seq++
	entry := attachment{Indicator: ind, seq: s.seq}
	if ind.Kind.IsUnique() && len(existing) > 0 {
		s.attachments[key] = []attachment{entry}
		return Replaced
	}
	s.attachments[key] = append(existing, entry)
	return Attached
}

// Detach removes indicators of kind from node. An empty value removes every
// entry of the kind. It returns the number removed.
func (s *Score) Detach(node *Node, kind IndicatorKind, value string) int {
	key := attachKey{node: node.id, kind: kind}
	existing := s.attachments[key]
	kept := existing[:0]
	removed := 0
	for _, a := range existing {
		if value == "" || a.Value == value {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		delete(s.attachments, key)
	} else {
		s.attachments[key] = kept
	}
	return removed
}

// Indicators returns node's indicators in attach order. With no kinds given
// every indicator is returned.
func (s *Score) Indicators(node *Node, kinds ...IndicatorKind) []Indicator {
	var found []attachment
	if len(kinds) == 0 {
		for key, list := range s.attachments {
			if key.node == node.id {
				found = append(found, list...)
			}
		}
	} else {
		for _, kind := range kinds {
			found = append(found, s.attachments[attachKey{node: node.id, kind: kind}]...)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]Indicator, len(found))
	for i, a := range found {
		out[i] = a.Indicator
	}
	return out
}

// Indicator returns the most recent indicator of kind on node.
func (s *Score) Indicator(node *Node, kind IndicatorKind) (Indicator, bool) {
	list := s.attachments[attachKey{node: node.id, kind: kind}]
	if len(list) == 0 {
		return Indicator{}, false
	}
	return list[len(list)-1].Indicator, true
}

// HasIndicator reports whether node carries kind, optionally with value.
func (s *Score) HasIndicator(node *Node, kind IndicatorKind, value string) bool {
	for _, a := range s.attachments[attachKey{node: node.id, kind: kind}] {
		if value == "" || a.Value == value {
			return true
		}
	}
	return false
}

// Attach is shorthand for n.Score().Attach(n, ind).
func (n *Node) Attach(ind Indicator) AttachResult {
	return n.score.Attach(n, ind)
}

// Detach is shorthand for n.Score().Detach(n, kind, value).
func (n *Node) Detach(kind IndicatorKind, value string) int {
	return n.score.Detach(n, kind, value)
}

// Indicators is shorthand for n.Score().Indicators(n, kinds...).
func (n *Node) Indicators(kinds ...IndicatorKind) []Indicator {
	return n.score.Indicators(n, kinds...)
}

// HasIndicator is shorthand for n.Score().HasIndicator(n, kind, value).
func (n *Node) HasIndicator(kind IndicatorKind, value string) bool {
	return n.score.HasIndicator(n, kind, value)
}
