package score

import "github.com/kingrea/baca/internal/duration"

// Timespan is a half-open interval [Start, Stop) of score time in whole
// notes.
type Timespan struct {
	Start duration.Duration
	Stop  duration.Duration
}

// Duration returns Stop - Start.
func (t Timespan) Duration() duration.Duration {
	return t.Stop.Sub(t.Start)
}

// Contains reports Start <= offset < Stop.
func (t Timespan) Contains(offset duration.Duration) bool {
	return !offset.Less(t.Start) && offset.Less(t.Stop)
}

// Timespans computes the timespan of root and every node beneath it in one
// walk. Root starts at offset zero.
func Timespans(root *Node) map[NodeID]Timespan {
	out := map[NodeID]Timespan{}
	var visit func(n *Node, start duration.Duration, prolation duration.Multiplier) duration.Duration
	visit = func(n *Node, start duration.Duration, prolation duration.Multiplier) duration.Duration {
		if n.IsLeaf() {
			d := n.contentsDuration().Mul(prolation)
			out[n.id] = Timespan{Start: start, Stop: start.Add(d)}
			return d
		}
		inner := prolation
		if n.kind == KindTuplet {
			inner = inner.Mul(n.ratio)
		}
		var total duration.Duration
		for _, child := range n.children {
			if n.simultaneous {
				total = duration.Max(total, visit(child, start, inner))
			} else {
				total = total.Add(visit(child, start.Add(total), inner))
			}
		}
		out[n.id] = Timespan{Start: start, Stop: start.Add(total)}
		return total
	}
	visit(root, duration.Duration{}, root.Prolation())
	return out
}
