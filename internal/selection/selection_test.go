package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
)

func build(t *testing.T, music string) *score.Node {
	t.Helper()
	s := score.New()
	v := s.NewContext("Voice", "Music")
	require.NoError(t, score.ParseInto(v, music))
	return v
}

func ids(x Item) []score.NodeID {
	var out []score.NodeID
	for _, leaf := range x.Leaves() {
		out = append(out, leaf.ID())
	}
	return out
}

func TestLeavesPreserveDocumentOrder(t *testing.T) {
	v := build(t, `c'8 { d'8 \times 2/3 { e'8 f' g' } } a'4 r8 b'8`)
	leaves := Leaves(v, LeafOptions{})
	require.Equal(t, 8, leaves.Len())
	var prev score.NodeID = -1
	for _, id := range ids(leaves) {
		assert.Greater(t, id, prev, "parse creates nodes in document order")
		prev = id
	}
}

func TestLeavesReverseWhenTopLevelReversed(t *testing.T) {
	s := score.New()
	forward := s.NewContainer("forward")
	nodes, err := score.Parse(s, "c'8 d' e' f' g'")
	require.NoError(t, err)
	require.NoError(t, s.Append(forward, nodes...))
	want := ids(Leaves(forward, LeafOptions{}))

	reversed := s.NewContainer("reversed")
	var flipped []*score.Node
	for i := len(nodes) - 1; i >= 0; i-- {
		n := s.NewNote(nodes[i].Pitches()[0], nodes[i].Written())
		flipped = append(flipped, n)
	}
	require.NoError(t, s.Append(reversed, flipped...))
	got := Leaves(reversed, LeafOptions{}).Leaves()
	for i := range got {
		assert.Equal(t, nodes[len(nodes)-1-i].Pitches(), got[i].Pitches())
	}
	assert.Len(t, want, len(got))
	assert.Equal(t, ids(Leaves(forward, LeafOptions{Reverse: true}))[0], want[len(want)-1])
}

func TestSimultaneousFlattenInDeclaredOrder(t *testing.T) {
	s := score.New()
	nodes, err := score.Parse(s, "<< { e'2 f'2 } { c'1 } >>")
	require.NoError(t, err)
	got := Leaves(nodes[0], LeafOptions{}).Leaves()
	require.Len(t, got, 3)
	assert.Equal(t, "e'", got[0].Pitches()[0].Name())
	assert.Equal(t, "c'", got[2].Pitches()[0].Name())
}

func TestLeafFilters(t *testing.T) {
	v := build(t, "r8 c'8 ~ c'8 r8 d'8 s8")
	leaves := v.Leaves()
	leaves[4].Attach(score.Indicator{Kind: score.Marker, Value: "hidden"})

	assert.Equal(t, 3, PLeaves(v).Len())
	assert.Equal(t, 2, PLeaves(v, "hidden").Len())
	assert.Equal(t, 4, Leaves(v, LeafOptions{Trim: true}).Len())
	assert.Equal(t, 2, PHeads(v).Len())
	assert.Equal(t, []score.NodeID{leaves[2].ID(), leaves[4].ID()}, ids(PTails(v)))
	assert.Equal(t, 2, Rests(v).Len())
	assert.Equal(t, 1, Skips(v).Len())
	assert.Equal(t, 3, Notes(v).Len())
	assert.Equal(t, 0, Chords(v).Len())
}

func TestLogicalTiesAndRuns(t *testing.T) {
	v := build(t, "c'4 ~ c'8 d'8 r4 e'8 f'8 ~ f'4")
	plts := PLTs(v)
	require.Equal(t, 4, plts.Len())
	first, err := plts.At(0)
	require.NoError(t, err)
	assert.Len(t, first.Leaves(), 2)
	assert.Equal(t, 2, LogicalTies(v, LogicalTieOptions{Nontrivial: true}).Len())
	assert.Equal(t, 5, LTs(v).Len())

	runs := Runs(v)
	require.Equal(t, 2, runs.Len())
	second, err := runs.At(1)
	require.NoError(t, err)
	assert.Len(t, second.Leaves(), 3)
}

func TestGetAndExcludeWithPeriod(t *testing.T) {
	v := build(t, "c'8 d' e' f' g' a' b'")
	leaves := Leaves(v, LeafOptions{})
	every := Get(leaves, []int{0}, 3)
	assert.Equal(t, 3, every.Len())
	assert.Equal(t, 4, Exclude(leaves, []int{0}, 3).Len())
	last := Get(leaves, []int{-1}, 0)
	assert.Equal(t, ids(last), ids(Of(v.Leaves()[6])))
	assert.Equal(t, 3, Get(leaves, []int{-1}, 2).Len(), "negative index wraps inside the period")
}

func TestSliceGroupFlatten(t *testing.T) {
	v := build(t, "c'8 d' e' f'")
	leaves := Leaves(v, LeafOptions{})
	assert.Equal(t, 2, Slice(leaves, 1, 3).Len())
	assert.Equal(t, 3, Slice(leaves, 0, -1).Len())
	assert.Equal(t, 4, Slice(leaves, -10, End).Len())
	assert.Equal(t, 0, Slice(leaves, 3, 1).Len())

	grouped := Group(leaves)
	assert.Equal(t, 1, grouped.Len())
	assert.Equal(t, 4, len(grouped.Leaves()))
	assert.Equal(t, 4, Flatten(grouped).Len())
}

func TestIndexOutOfRange(t *testing.T) {
	v := build(t, "c'8 d'")
	_, err := Index(Leaves(v, LeafOptions{}), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIndexOutOfRange))
	sel, err := Index(Leaves(v, LeafOptions{}), -2)
	require.NoError(t, err)
	assert.Equal(t, v.Leaves()[0].ID(), sel.Leaves()[0].ID())
}

func TestLeakAcrossContainersAndAtBoundary(t *testing.T) {
	v := build(t, "{ c'8 d'8 } { e'8 f'8 }")
	containers := v.Children()
	right := RLeak(containers[0])
	require.Len(t, right.Leaves(), 3)
	assert.Equal(t, "e'", right.Leaves()[2].Pitches()[0].Name())
	left := LLeak(containers[1])
	assert.Equal(t, "d'", left.Leaves()[0].Pitches()[0].Name())

	unchanged := RLeak(containers[1])
	assert.Equal(t, ids(containers[1]), ids(unchanged))
	assert.Equal(t, ids(containers[0]), ids(LLeak(containers[0])))
}

func TestFilters(t *testing.T) {
	v := build(t, "c'4 ~ c'8 d'8 e'2")
	plts := PLTs(v)
	lt, err := ParseComparator(">")
	require.NoError(t, err)
	assert.Equal(t, 1, FilterLength(plts, lt, 1).Len())
	assert.Equal(t, 2, FilterDuration(plts, ">=", duration.New(3, 8)).Len())
	_, err = ParseComparator("=>")
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}

func TestMapCollectsNestedSelections(t *testing.T) {
	v := build(t, `\times 2/3 { c'8 d' e' } \times 2/3 { f'8 g' a' }`)
	got, err := Map(Tuplets(v), func(item Item) (Selection, error) {
		return Index(Leaves(item, LeafOptions{}), 1)
	})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "d'", got.Leaves()[0].Pitches()[0].Name())
	assert.Equal(t, "g'", got.Leaves()[1].Pitches()[0].Name())
}
