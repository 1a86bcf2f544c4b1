package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/selection"
)

func voice(t *testing.T, music string) *score.Node {
	t.Helper()
	s := score.New()
	v := s.NewContext("Voice", "Music")
	require.NoError(t, score.ParseInto(v, music))
	return v
}

func pitchNames(sel selection.Selection) []string {
	var out []string
	for _, leaf := range sel.Leaves() {
		if leaf.IsPitched() {
			out = append(out, leaf.Pitches()[0].Name())
		} else {
			out = append(out, leaf.Kind().String())
		}
	}
	return out
}

func TestSelectIsReferentiallyTransparent(t *testing.T) {
	v := voice(t, `\times 2/3 { c'8 d' e' } f'4 ~ f'8 r8 g'4`)
	selectors := []Selector{
		Leaves(), PLTs().Get([]int{0}, 2), Runs(), LeafInEachTuplet(-1),
		PLeaves().RLeak(), LeavesInEachPLT(0, 1), Group(),
	}
	for _, sel := range selectors {
		first, err := sel.Select(v)
		require.NoError(t, err, sel.String())
		second, err := sel.Select(v)
		require.NoError(t, err, sel.String())
		assert.Equal(t, first.Len(), second.Len(), sel.String())
		assert.Equal(t, first.Leaves(), second.Leaves(), sel.String())
	}
}

func TestSelectorReusableAcrossFragments(t *testing.T) {
	sel := PLT(-1)
	a := voice(t, "c'4 d'4 r4")
	b := voice(t, "e'4 ~ e'4")
	got, err := sel.Select(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"d'"}, pitchNames(got))
	got, err = sel.Select(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"e'", "e'"}, pitchNames(got))
}

func TestFactories(t *testing.T) {
	v := voice(t, `\times 2/3 { c'8 d' e' } \times 2/3 { f'8 g' a' } r4 b'4`)
	cases := []struct {
		name string
		sel  Selector
		want []string
	}{
		{"leaf", Leaf(1), []string{"d'"}},
		{"tuplet", Tuplet(1), []string{"f'", "g'", "a'"}},
		{"leaf in each tuplet", LeafInEachTuplet(0), []string{"c'", "f'"}},
		{"rest", Rest(0), []string{"rest"}},
		{"leaf after each ptail", LeafAfterEachPTail(), []string{"d'", "e'", "f'", "g'", "a'", "rest", "b'"}},
		{"rleak", Tuplet(1).RLeak(), []string{"f'", "g'", "a'", "rest"}},
		{"lleak", Rest(0).LLeak(), []string{"a'", "rest"}},
		{"exclude", PLeaves().Exclude([]int{0, -1}, 0), []string{"d'", "e'", "f'", "g'", "a'"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.sel.Select(v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, pitchNames(got))
		})
	}
}

func TestIndexErrorsPropagate(t *testing.T) {
	v := voice(t, "c'4 d'4")
	_, err := Leaf(5).Select(v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIndexOutOfRange))
	assert.Contains(t, err.Error(), "leaves.[5]")
}

func TestConstructionErrorsAreKept(t *testing.T) {
	bad := PLTs().Get(nil, 0)
	require.Error(t, bad.Err())
	assert.True(t, errors.Is(bad.Err(), errs.ErrInvalidParameter))
	_, err := bad.Select(voice(t, "c'4"))
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)

	assert.Error(t, Leaves().Get([]int{0}, -2).Err())
	assert.Error(t, Leaves().FilterLength("~", 1).Err())
	assert.Error(t, Leaves().Map(Selector{}).Err())
	assert.NoError(t, Leaves().Get([]int{0}, 2).Err())
}

func TestSelectorDescribesShorthands(t *testing.T) {
	cases := map[string]Selector{
		"leaves":                 Leaves(),
		"pleaves":                PLeaves(),
		"pheads.[0]":             PHead(0),
		"ptails":                 PTails(),
		"plts.map(leaves.[0:1])": PLTs().Map(Leaves().Slice(0, 1)),
		"lts.rleak":              LTs().RLeak(),
	}
	for want, sel := range cases {
		assert.Equal(t, want, sel.String())
	}

	nontrivial := New(LogicalTiesOp{Options: selection.LogicalTieOptions{Pitched: selection.PitchedOnly, Nontrivial: true}})
	assert.Equal(t, "logical_ties", nontrivial.String())
}

func TestParseYAML(t *testing.T) {
	sel, err := ParseYAML([]byte(`
- op: plts
- op: get
  indices: [0]
  period: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "plts.get([0], 2)", sel.String())

	v := voice(t, "c'8 d' e' f' g'")
	got, err := sel.Select(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"c'", "e'", "g'"}, pitchNames(got))

	nested, err := ParseYAML([]byte(`
- op: tuplets
- op: map
  map:
    - op: leaf
      n: -1
`))
	require.NoError(t, err)
	tv := voice(t, `\times 2/3 { c'8 d' e' } \times 2/3 { f'8 g' a' }`)
	got, err = nested.Select(tv)
	require.NoError(t, err)
	assert.Equal(t, []string{"e'", "a'"}, pitchNames(got))
}

func TestParseRejectsBadSpecs(t *testing.T) {
	for _, doc := range []string{
		"- op: nope",
		"- op: leaf",
		"- op: get\n  indices: []",
		"- op: leaves\n  pitched: sometimes",
		"- op: filter_duration\n  comparator: '<'",
	} {
		_, err := ParseYAML([]byte(doc))
		assert.Error(t, err, doc)
	}
	empty, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}
