// Package score is the in-memory notation tree: an arena of nodes addressed
// by stable integer IDs, with leaves (notes, chords, rests, skips),
// containers, tuplets and named contexts. Indicators live in a side table
// keyed by node and kind rather than on the nodes themselves.
package score

import (
	"fmt"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/pitch"
)

// NodeID addresses a node inside its Score. IDs are never reused.
type NodeID int

// Kind classifies nodes.
type Kind int

const (
	KindNote Kind = iota
	KindChord
	KindRest
	KindMultimeasureRest
	KindSkip
	KindContainer
	KindTuplet
	KindContext
)

var kindNames = map[Kind]string{
	KindNote:             "note",
	KindChord:            "chord",
	KindRest:             "rest",
	KindMultimeasureRest: "multimeasure-rest",
	KindSkip:             "skip",
	KindContainer:        "container",
	KindTuplet:           "tuplet",
	KindContext:          "context",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsLeaf reports whether nodes of this kind hold no children.
func (k Kind) IsLeaf() bool {
	return k <= KindSkip
}

// Score owns every node and the indicator table.
type Score struct {
	nodes       []*Node
	attachments map[attachKey][]attachment
	seq         int
}

// New returns an empty score arena.
func New() *Score {
	return &Score{attachments: map[attachKey][]attachment{}}
}

// Node is a leaf or a container in the tree. Nodes are created through the
// Score constructors and linked with Append.
type Node struct {
	id    NodeID
	score *Score
	kind  Kind
	name  string

	parent       *Node
	children     []*Node
	simultaneous bool

	written    duration.Duration
	multiplier duration.Multiplier
	pitches    []pitch.Pitch
	tie        bool
	repeatTie  bool

	ratio duration.Multiplier

	lilypondType string
	defaultClef  string
}

func (s *Score) add(n *Node) *Node {
	n.id = NodeID(len(s.nodes))
	n.score = s
	s.nodes = append(s.nodes, n)
	return n
}

// Node returns the node with the given ID, or nil.
func (s *Score) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// Len returns the number of nodes ever created in the arena.
func (s *Score) Len() int {
	return len(s.nodes)
}

// NewNote creates a detached note.
func (s *Score) NewNote(p pitch.Pitch, written duration.Duration) *Node {
	return s.add(&Node{kind: KindNote, written: written, pitches: []pitch.Pitch{p}})
}

// NewChord creates a detached chord. Pitches are kept in the given order.
func (s *Score) NewChord(pitches []pitch.Pitch, written duration.Duration) *Node {
	return s.add(&Node{kind: KindChord, written: written, pitches: append([]pitch.Pitch(nil), pitches...)})
}

// NewRest creates a detached rest.
func (s *Score) NewRest(written duration.Duration) *Node {
	return s.add(&Node{kind: KindRest, written: written})
}

// NewMultimeasureRest creates a detached multimeasure rest.
func (s *Score) NewMultimeasureRest(written duration.Duration) *Node {
	return s.add(&Node{kind: KindMultimeasureRest, written: written})
}

// NewSkip creates a detached skip.
func (s *Score) NewSkip(written duration.Duration) *Node {
	return s.add(&Node{kind: KindSkip, written: written})
}

// NewContainer creates a sequential container.
func (s *Score) NewContainer(name string) *Node {
	return s.add(&Node{kind: KindContainer, name: name})
}

// NewSimultaneous creates a container whose children sound together.
func (s *Score) NewSimultaneous(name string) *Node {
	return s.add(&Node{kind: KindContainer, name: name, simultaneous: true})
}

// NewTuplet creates a tuplet that scales its contents by ratio (2/3 for a
// triplet).
func (s *Score) NewTuplet(ratio duration.Multiplier) *Node {
	return s.add(&Node{kind: KindTuplet, ratio: ratio})
}

// NewContext creates a named LilyPond context such as Voice or Staff.
// Score, StaffGroup and Staff contexts are simultaneous; others are
// sequential.
func (s *Score) NewContext(lilypondType, name string) *Node {
	n := &Node{kind: KindContext, name: name, lilypondType: lilypondType}
	switch lilypondType {
	case "Score", "StaffGroup", "GrandStaff", "PianoStaff", "Staff", "GlobalContext":
		n.simultaneous = true
	}
	return s.add(n)
}

// Find returns the first node with the given name in creation order.
func (s *Score) Find(name string) *Node {
	for _, n := range s.nodes {
		if n.name == name && name != "" {
			return n
		}
	}
	return nil
}

// Append links children under parent, in order.
func (s *Score) Append(parent *Node, children ...*Node) error {
	if parent == nil {
		return fmt.Errorf("score: append to nil parent")
	}
	if parent.kind.IsLeaf() {
		return fmt.Errorf("score: cannot append to %s %d", parent.kind, parent.id)
	}
	for _, child := range children {
		if child == nil {
			return fmt.Errorf("score: append nil child")
		}
		if child.score != s || parent.score != s {
			return fmt.Errorf("score: node %d belongs to another score", child.id)
		}
		if child.parent != nil {
			return fmt.Errorf("score: node %d already has parent %d", child.id, child.parent.id)
		}
		for cur := parent; cur != nil; cur = cur.parent {
			if cur == child {
				return fmt.Errorf("score: appending node %d under %d creates a cycle", child.id, parent.id)
			}
		}
		child.parent = parent
		parent.children = append(parent.children, child)
	}
	return nil
}

// Replace puts replacement at old's position, detaches old and moves
// indicators of the listed kinds from old to replacement.
func (s *Score) Replace(old, replacement *Node, carry ...IndicatorKind) error {
	if old == nil || replacement == nil {
		return fmt.Errorf("score: replace with nil node")
	}
	if replacement.parent != nil {
		return fmt.Errorf("score: replacement %d already has parent %d", replacement.id, replacement.parent.id)
	}
	if parent := old.parent; parent != nil {
		idx := parent.indexOf(old)
		parent.children[idx] = replacement
		replacement.parent = parent
		old.parent = nil
	}
	for _, kind := range carry {
		key := attachKey{node: old.id, kind: kind}
		moved := s.attachments[key]
		if len(moved) == 0 {
			continue
		}
		delete(s.attachments, key)
		dst := attachKey{node: replacement.id, kind: kind}
		s.attachments[dst] = append(s.attachments[dst], moved...)
	}
	return nil
}

// ID returns the node's arena ID.
func (n *Node) ID() NodeID { return n.id }

// Score returns the owning arena.
func (n *Node) Score() *Score { return n.score }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the optional node name.
func (n *Node) Name() string { return n.name }

// Parent returns the enclosing node, or nil at a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// IsLeaf reports whether the node is a note, chord, rest or skip.
func (n *Node) IsLeaf() bool { return n.kind.IsLeaf() }

// IsPitched reports whether the node is a note or chord.
func (n *Node) IsPitched() bool {
	return n.kind == KindNote || n.kind == KindChord
}

// IsSimultaneous reports whether children are parallel.
func (n *Node) IsSimultaneous() bool { return n.simultaneous }

// SetSimultaneous changes how children are laid out in time.
func (n *Node) SetSimultaneous(v bool) { n.simultaneous = v }

// LilyPondType returns the context type (Voice, Staff, ...) for contexts.
func (n *Node) LilyPondType() string { return n.lilypondType }

// DefaultClef returns the clef name declared on a context.
func (n *Node) DefaultClef() string { return n.defaultClef }

// SetDefaultClef declares the clef a context starts in.
func (n *Node) SetDefaultClef(name string) { n.defaultClef = name }

// Written returns a leaf's written duration.
func (n *Node) Written() duration.Duration { return n.written }

// Multiplier returns the leaf multiplier, if one is set.
func (n *Node) Multiplier() (duration.Multiplier, bool) {
	if n.multiplier.Sign() == 0 {
		return duration.Multiplier{}, false
	}
	return n.multiplier, true
}

// SetMultiplier sets the leaf multiplier; a zero value clears it.
func (n *Node) SetMultiplier(m duration.Multiplier) { n.multiplier = m }

// Ratio returns a tuplet's multiplier.
func (n *Node) Ratio() duration.Multiplier { return n.ratio }

// Pitches returns a copy of the leaf's pitches.
func (n *Node) Pitches() []pitch.Pitch {
	return append([]pitch.Pitch(nil), n.pitches...)
}

// SetPitches replaces a note's or chord's pitch content in place. A note
// accepts exactly one pitch.
func (n *Node) SetPitches(pitches ...pitch.Pitch) error {
	switch n.kind {
	case KindNote:
		if len(pitches) != 1 {
			return fmt.Errorf("score: note %d takes one pitch, got %d", n.id, len(pitches))
		}
	case KindChord:
		if len(pitches) == 0 {
			return fmt.Errorf("score: chord %d needs at least one pitch", n.id)
		}
	default:
		return fmt.Errorf("score: %s %d has no pitch content", n.kind, n.id)
	}
	n.pitches = append(n.pitches[:0:0], pitches...)
	return nil
}

// Tie reports whether the leaf is tied to the next leaf.
func (n *Node) Tie() bool { return n.tie }

// SetTie marks the leaf as tied to the next leaf.
func (n *Node) SetTie(v bool) { n.tie = v }

// RepeatTie reports whether the leaf is tied from the previous leaf.
func (n *Node) RepeatTie() bool { return n.repeatTie }

// SetRepeatTie marks the leaf as tied from the previous leaf.
func (n *Node) SetRepeatTie(v bool) { n.repeatTie = v }

// Leaves returns the node's leaves in depth-first document order. A leaf
// returns itself.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.walk(func(node *Node) {
		if node.IsLeaf() {
			out = append(out, node)
		}
	})
	return out
}

// Descendants returns n and every node below it in document order.
func (n *Node) Descendants() []*Node {
	var out []*Node
	n.walk(func(node *Node) { out = append(out, node) })
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.children {
		child.walk(fn)
	}
}

// Root returns the topmost ancestor.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Context returns the nearest enclosing context with the given LilyPond
// type, or the nearest context of any type when lilypondType is empty.
func (n *Node) Context(lilypondType string) *Node {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur.kind == KindContext && (lilypondType == "" || cur.lilypondType == lilypondType) {
			return cur
		}
	}
	return nil
}

// Prolation is the product of enclosing tuplet ratios.
func (n *Node) Prolation() duration.Multiplier {
	out := duration.FromInt(1)
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur.kind == KindTuplet {
			out = out.Mul(cur.ratio)
		}
	}
	return out
}

// Duration returns the sounding duration of a leaf (written duration scaled
// by its multiplier and prolation) or of a container's contents.
func (n *Node) Duration() duration.Duration {
	return n.contentsDuration().Mul(n.Prolation())
}

func (n *Node) contentsDuration() duration.Duration {
	if n.IsLeaf() {
		d := n.written
		if m, ok := n.Multiplier(); ok {
			d = d.Mul(m)
		}
		return d
	}
	var total duration.Duration
	for _, child := range n.children {
		d := child.contentsDuration()
		if n.simultaneous {
			total = duration.Max(total, d)
		} else {
			total = total.Add(d)
		}
	}
	if n.kind == KindTuplet {
		total = total.Mul(n.ratio)
	}
	return total
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// String identifies the node for error messages.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.name != "" {
		return fmt.Sprintf("%s %q (#%d)", n.kind, n.name, n.id)
	}
	return fmt.Sprintf("%s #%d", n.kind, n.id)
}
