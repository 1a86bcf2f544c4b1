package spacing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/tags"
)

// segment builds Score << Global_Context { Global_Skips } Staff { Music_Voice } >>.
func segment(t *testing.T, signatures []string, music string) (root, global *score.Node) {
	t.Helper()
	s := score.New()
	root = s.NewContext("Score", "Score")
	context := s.NewContext("GlobalContext", "Global_Context")
	global = s.NewContext("GlobalSkips", "Global_Skips")
	staff := s.NewContext("Staff", "Music_Staff")
	voice := s.NewContext("Voice", "Music_Voice")
	require.NoError(t, s.Append(root, context, staff))
	require.NoError(t, s.Append(context, global))
	require.NoError(t, s.Append(staff, voice))
	skips := make([]string, len(signatures))
	for i, sig := range signatures {
		skips[i] = "s1*" + sig
	}
	require.NoError(t, score.ParseInto(global, strings.Join(skips, " ")))
	require.NoError(t, score.ParseInto(voice, music))
	return root, global
}

func durations(rows []Measure) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Duration.String()
	}
	return out
}

var fourMeasures = []string{"4/8", "3/8", "4/8", "3/8"}

func eighths(n int) string {
	return strings.TrimSpace(strings.Repeat("c'8 ", n))
}

func TestMinimumDurationPerMeasure(t *testing.T) {
	root, global := segment(t, []string{"7/16"}, "c'8 d'16 e'4")
	rows, err := (&Specifier{}).Apply(root, global)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1/16", rows[0].Minimum.String())
	assert.Equal(t, "1/16", rows[0].Duration.String())
}

func TestFloorClampsUpward(t *testing.T) {
	root, global := segment(t, []string{"7/16"}, "c'8 d'16 e'4")
	rows, err := MinimumDuration(duration.New(1, 8)).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/8"}, durations(rows))

	root, global = segment(t, []string{"1/2"}, "c'4 d'4")
	rows, err = MinimumDuration(duration.New(1, 8)).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/4"}, durations(rows), "the floor never shrinks a measure")
}

func TestUniformEighths(t *testing.T) {
	root, global := segment(t, fourMeasures, eighths(14))
	rows, err := (&Specifier{}).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/8", "1/8", "1/8", "1/8"}, durations(rows))
	assert.Equal(t, []int{1, 2, 3, 4}, []int{rows[0].Number, rows[1].Number, rows[2].Number, rows[3].Number})
}

func TestMultiplierDividesMinimum(t *testing.T) {
	root, global := segment(t, fourMeasures, eighths(14))
	rows, err := (&Specifier{Multiplier: duration.FromInt(2)}).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/16", "1/16", "1/16", "1/16"}, durations(rows))
}

func TestMultipliedLeavesCountUnmultiplied(t *testing.T) {
	root, global := segment(t, []string{"1/2", "1/2"}, `c'4*2 \times 2/3 { c'8 c' c' } c'4`)
	rows, err := (&Specifier{}).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/4", "1/12"}, durations(rows))
}

func TestEndOfLineAdjustment(t *testing.T) {
	breaks, err := Breaks(
		Page{Systems: []System{{Measure: 1, YOffset: 0}, {Measure: 3, YOffset: 40}}},
	)
	require.NoError(t, err)
	root, global := segment(t, fourMeasures, eighths(14))
	rows, err := (&Specifier{Breaks: breaks}).Apply(root, global)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, (&Specifier{Breaks: breaks}).EOLMeasures())
	assert.Equal(t, []string{"1/8", "35/192", "1/8", "35/192"}, durations(rows))
	assert.True(t, rows[1].EOL)
	assert.Equal(t, "1/8", rows[1].PreEOL.String())
	assert.True(t, rows[1].Duration.Equal(rows[1].PreEOL.Mul(EOLAdjustment)))
	assert.Equal(t, "[[1/8 * 35/24]]", rows[1].Annotation())
	assert.Equal(t, "[1/8]", rows[0].Annotation())
	assert.True(t, rows[3].EOL, "the final measure ends the last system")
}

func TestPhantomMeasure(t *testing.T) {
	breaks, err := Breaks(Page{Systems: []System{{Measure: 1}}})
	require.NoError(t, err)
	root, global := segment(t, []string{"4/8", "3/8", "1/4"}, eighths(7)+" r4")
	spec := &Specifier{Breaks: breaks, Phantom: true, Multiplier: duration.FromInt(4)}
	rows, err := spec.Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/32", "1/32", "1/4"}, durations(rows))
	assert.True(t, rows[2].Phantom)
	assert.False(t, rows[2].EOL)
	assert.Equal(t, "[1/4]", rows[2].Annotation())

	for _, skip := range global.Leaves()[:2] {
		start := skip.Indicators(score.StartTextSpan)
		require.Len(t, start, 1)
		assert.Contains(t, start[0].Value, `\baca-start-spm-left-only`, "the phantom measure is never annotated")
	}
}

func TestFermataPriority(t *testing.T) {
	root, global := segment(t, fourMeasures, eighths(14))
	spec := &Specifier{
		FermataMeasures: []int{2, 4},
		FermataDuration: DefaultFermataDuration,
	}
	require.NoError(t, spec.Override([]int{4}, duration.New(1, 20), true))
	require.NoError(t, spec.Override([]int{2, 3}, duration.New(1, 24), false))
	rows, err := spec.Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/8", "1/4", "1/24", "1/20"}, durations(rows))
	assert.True(t, rows[1].Fermata)
	assert.False(t, rows[1].Override)
	assert.True(t, rows[2].Override)
}

func TestFermataMarkerOnSkip(t *testing.T) {
	root, global := segment(t, fourMeasures, eighths(14))
	skips := global.Leaves()
	skips[2].Attach(score.Indicator{Kind: score.Marker, Value: tags.Fermata})
	rows, err := MinimumDuration(duration.Duration{}).Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/8", "1/8", "1/4", "1/8"}, durations(rows))
	assert.True(t, rows[2].Fermata)
}

func TestOverrideValidation(t *testing.T) {
	spec := &Specifier{MeasureCount: 4}
	err := spec.Override([]int{0}, duration.New(1, 8), false)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "nonpositive measure number (0)")

	err = spec.Override([]int{5}, duration.New(1, 8), false)
	assert.ErrorIs(t, err, errs.ErrMeasureOverrun)
	assert.Contains(t, err.Error(), "measure number 5 greater than last measure number (4)")

	assert.Error(t, spec.OverrideRange(3, 2, duration.New(1, 8), false))
	assert.Error(t, spec.Override([]int{1}, duration.Duration{}, false))
	require.NoError(t, spec.OverrideRange(2, 4, duration.New(1, 8), false))
	assert.Len(t, spec.Overrides(), 3)

	late := &Specifier{FirstMeasure: 10, MeasureCount: 2}
	err = late.Override([]int{3}, duration.New(1, 4), false)
	assert.ErrorIs(t, err, errs.ErrMeasureOverrun)
	assert.Contains(t, err.Error(), "measure number 3 less than first measure number (10)")
	assert.Error(t, late.OverrideRange(9, 11, duration.New(1, 4), false))
	require.NoError(t, late.Override([]int{10, 11}, duration.New(1, 4), false))
	assert.Error(t, late.Override([]int{12}, duration.New(1, 4), false))
}

func TestOverridePastRenderedMeasures(t *testing.T) {
	root, global := segment(t, fourMeasures, eighths(14))
	spec := &Specifier{}
	require.NoError(t, spec.Override([]int{9}, duration.New(1, 8), false))
	_, err := spec.Apply(root, global)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrMeasureOverrun)
	assert.Contains(t, err.Error(), "score ends at measure 4 (not 9)")
}

func TestCursorSkipsMeasuresWithoutLeaves(t *testing.T) {
	root, global := segment(t, []string{"1/2", "1/4", "1/4"}, "c'2 c'8 c'8 c'4")
	spans := score.Timespans(root)
	voiceLeaves := root.Score().Find("Music_Voice").Leaves()

	_, err := (&Specifier{}).Compute(global.Leaves(), voiceLeaves[:1], spans)
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	spec := &Specifier{}
	require.NoError(t, spec.Override([]int{2}, duration.New(1, 16), false))
	rows, err := spec.Compute(global.Leaves(), []*score.Node{voiceLeaves[0], voiceLeaves[3]}, spans)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/2", "1/16", "1/4"}, durations(rows))
}

func TestApplyAnnotatesSkips(t *testing.T) {
	root, global := segment(t, []string{"2/8", "2/8", "2/8"}, eighths(6))
	_, err := (&Specifier{}).Apply(root, global)
	require.NoError(t, err)
	skips := global.Leaves()

	for _, skip := range skips {
		inds := skip.Indicators(score.SpacingSection)
		require.Len(t, inds, 1)
		assert.Equal(t, "1/8", inds[0].Value)
		assert.Equal(t, tags.Tag(tags.SpacingCommand), inds[0].Tag)
	}
	start := skips[0].Indicators(score.StartTextSpan)
	require.Len(t, start, 1)
	assert.True(t, start[0].Deactivate)
	assert.Equal(t, "GlobalSkips", start[0].Context)
	assert.Contains(t, start[0].Value, `\baca-start-spm-left-only "[1/8]"`)
	assert.Contains(t, start[0].Value, `\bacaStartTextSpanSPM`)
	assert.Empty(t, skips[0].Indicators(score.StopTextSpan))
	assert.Empty(t, skips[2].Indicators(score.StartTextSpan))
	assert.Len(t, skips[2].Indicators(score.StopTextSpan), 1)
	last := skips[1].Indicators(score.StartTextSpan)
	require.Len(t, last, 1)
	assert.Contains(t, last[0].Value, `\baca-start-spm-both "[1/8]" "[1/8]"`, "the final measure's annotation is shown")

	_, err = (&Specifier{Multiplier: duration.FromInt(2)}).Apply(root, global)
	require.NoError(t, err)
	inds := skips[0].Indicators(score.SpacingSection)
	require.Len(t, inds, 1, "spacing sections replace each other")
	assert.Equal(t, "1/16", inds[0].Value)
}

func TestScorewide(t *testing.T) {
	spec, err := Scorewide(1, 5, []int{4}, duration.New(1, 20), nil, DefaultFermataDuration)
	require.NoError(t, err)
	overrides := spec.Overrides()
	require.Len(t, overrides, 5)
	for n := 1; n <= 5; n++ {
		assert.Equal(t, "1/20", overrides[n].String())
	}
	require.NoError(t, spec.Override([]int{2}, duration.New(1, 24), false))
	assert.Error(t, spec.Override([]int{6}, duration.New(1, 24), false))

	root, global := segment(t, []string{"1/4", "1/4", "1/4", "1/4", "1/4"}, "c'4 c'4 c'4 c'4 c'4")
	rows, err := spec.Apply(root, global)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/20", "1/24", "1/20", "1/4", "1/20"}, durations(rows))

	shifted, err := Scorewide(10, 3, []int{11}, duration.New(1, 20), nil, DefaultFermataDuration)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, shifted.FermataMeasures)
	final, ok := shifted.FinalMeasure()
	require.True(t, ok)
	assert.Equal(t, 3, final)

	_, err = Scorewide(1, 3, nil, duration.Duration{}, nil, DefaultFermataDuration)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}
