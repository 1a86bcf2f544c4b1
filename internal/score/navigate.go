package score

import "github.com/kingrea/baca/internal/pitch"

// NextLeaf returns the leaf after n in the same logical voice, crossing
// container boundaries but never leaving a context or entering a
// simultaneous container's sibling. It returns nil at the end of the voice.
func (n *Node) NextLeaf() *Node {
	return n.adjacentLeaf(1)
}

// PrevLeaf is NextLeaf in the other direction.
func (n *Node) PrevLeaf() *Node {
	return n.adjacentLeaf(-1)
}

func (n *Node) adjacentLeaf(step int) *Node {
	cur := n
	for cur.parent != nil {
		parent := cur.parent
		if parent.simultaneous || cur.kind == KindContext {
			return nil
		}
		idx := parent.indexOf(cur) + step
		if idx >= 0 && idx < len(parent.children) {
			return edgeLeaf(parent.children[idx], step)
		}
		cur = parent
	}
	return nil
}

// edgeLeaf descends to the first (step > 0) or last leaf of n, refusing to
// enter simultaneous containers or contexts.
func edgeLeaf(n *Node, step int) *Node {
	cur := n
	for !cur.IsLeaf() {
		if cur.simultaneous || cur.kind == KindContext || len(cur.children) == 0 {
			return nil
		}
		if step > 0 {
			cur = cur.children[0]
		} else {
			cur = cur.children[len(cur.children)-1]
		}
	}
	return cur
}

// LogicalTie is a maximal run of tied leaves.
type LogicalTie struct {
	leaves []*Node
}

// NewLogicalTie wraps leaves already known to form a tie chain.
func NewLogicalTie(leaves ...*Node) LogicalTie {
	return LogicalTie{leaves: append([]*Node(nil), leaves...)}
}

// Leaves returns a copy of the tie's leaves.
func (lt LogicalTie) Leaves() []*Node {
	return append([]*Node(nil), lt.leaves...)
}

// Head returns the first leaf.
func (lt LogicalTie) Head() *Node {
	if len(lt.leaves) == 0 {
		return nil
	}
	return lt.leaves[0]
}

// Tail returns the last leaf.
func (lt LogicalTie) Tail() *Node {
	if len(lt.leaves) == 0 {
		return nil
	}
	return lt.leaves[len(lt.leaves)-1]
}

// IsTrivial reports whether the tie holds a single leaf.
func (lt LogicalTie) IsTrivial() bool {
	return len(lt.leaves) <= 1
}

// IsPitched reports whether the head is a note or chord.
func (lt LogicalTie) IsPitched() bool {
	return lt.Head() != nil && lt.Head().IsPitched()
}

// tiedTo reports whether a and b (b following a) belong to one tie chain.
func tiedTo(a, b *Node) bool {
	if a == nil || b == nil || !a.IsPitched() || !b.IsPitched() {
		return false
	}
	return a.tie || b.repeatTie
}

// LogicalTieOf returns the logical tie that contains leaf.
func LogicalTieOf(leaf *Node) LogicalTie {
	head := leaf
	for prev := head.PrevLeaf(); tiedTo(prev, head); prev = head.PrevLeaf() {
		head = prev
	}
	leaves := []*Node{head}
	for cur, next := head, head.NextLeaf(); tiedTo(cur, next); cur, next = next, next.NextLeaf() {
		leaves = append(leaves, next)
	}
	return LogicalTie{leaves: leaves}
}

// EffectiveClef returns the clef in force at leaf: the latest clef attached
// at or before the leaf in its voice, else the nearest context default,
// else treble.
func EffectiveClef(leaf *Node) pitch.Clef {
	for cur := leaf; cur != nil; cur = cur.PrevLeaf() {
		if ind, ok := cur.score.Indicator(cur, Clef); ok {
			if clef, err := pitch.LookupClef(ind.Value); err == nil {
				return clef
			}
		}
	}
	for ctx := leaf.Context(""); ctx != nil; ctx = ctx.Context("") {
		if ctx.defaultClef == "" {
			continue
		}
		if clef, err := pitch.LookupClef(ctx.defaultClef); err == nil {
			return clef
		}
	}
	return pitch.Treble
}
