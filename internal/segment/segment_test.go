package segment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/baca/internal/command"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/lilypond"
	"github.com/kingrea/baca/internal/logbook"
	"github.com/kingrea/baca/internal/metadata"
	"github.com/kingrea/baca/internal/score"
)

const segmentA = `
name: A
time_signatures: [2/4, 2/4, 2/4]
phantom: true
staves:
  - name: Violin_Staff
    clef: treble
    voices:
      - name: Violin_Music_Voice
        music: "c'8 c' c' c' c'4 c' c'2"
commands:
  - command: pitches
    scope: {voice: Violin_Music_Voice}
    config: {pitches: "d' e' f'", persist: violin}
  - command: dynamic
    scope: {voice: Violin_Music_Voice, measures: [2]}
    config: {dynamics: p}
  - command: global-fermata
    scope: {voice: Global_Skips, measures: [-1]}
    config: {description: long}
breaks:
  pages:
    - systems:
        - {measure: 1, y_offset: 0, distances: [10]}
        - {measure: 3, y_offset: 60, distances: [10]}
`

const segmentB = `
name: B
previous: A
time_signatures: [2/4]
staves:
  - name: Violin_Staff
    voices:
      - name: Violin_Music_Voice
        music: "c'4 c'4"
commands:
  - command: pitches
    scope: {voice: Violin_Music_Voice}
    config: {pitches: "d' e' f'", persist: violin}
`

func newMaker(t *testing.T, opts ...Option) *Maker {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDs(func() string { return "build-id" }),
	}
	return NewMaker(command.DefaultRegistry(nil), append(base, opts...)...)
}

func names(leaves []*score.Node) []string {
	out := make([]string, len(leaves))
	for i, leaf := range leaves {
		if leaf.IsPitched() {
			out[i] = leaf.Pitches()[0].Name()
		} else {
			out[i] = leaf.Kind().String()
		}
	}
	return out
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	assert.Equal(t, "A", def.Name)
	assert.Equal(t, 3, def.MeasureCount())
	assert.Equal(t, "2/4", def.TimeSignatures[0].String())
	assert.Equal(t, []string{"Violin_Music_Voice"}, def.VoiceNames())
	require.NotNil(t, def.Breaks)
	assert.Len(t, def.Breaks.Pages[0].Systems, 2)
	assert.Equal(t, "long", def.Commands[2].Config["description"])
}

func TestParseDefinitionRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"unknown field":  "name: A\ntempo: 60\n",
		"no measures":    "name: A\nstaves: [{name: S, voices: [{name: V}]}]\n",
		"bad meter":      "name: A\ntime_signatures: [3/5]\nstaves: [{name: S, voices: [{name: V}]}]\n",
		"duplicate name": "name: A\ntime_signatures: [1/4]\nstaves: [{name: S, voices: [{name: S}]}]\n",
		"bad clef":       "name: A\ntime_signatures: [1/4]\nstaves: [{name: S, clef: banjo, voices: [{name: V}]}]\n",
		"unknown voice": `
name: A
time_signatures: [1/4]
staves: [{name: S, voices: [{name: V}]}]
commands: [{command: slur, scope: {voice: W}}]
`,
		"scope overrun": `
name: A
time_signatures: [1/4]
staves: [{name: S, voices: [{name: V}]}]
commands: [{command: slur, scope: {voice: V, measures: [1, 2]}}]
`,
		"bad selector": `
name: A
time_signatures: [1/4]
staves: [{name: S, voices: [{name: V}]}]
commands: [{command: slur, scope: {voice: V}, selector: [{op: get, indices: [0], period: -1}]}]
`,
		"bad override": `
name: A
time_signatures: [1/4]
staves: [{name: S, voices: [{name: V}]}]
spacing: {overrides: [{duration: 1/8}]}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefinitionYAML([]byte(body))
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "segment"), err.Error())
		})
	}
}

func TestScopeBounds(t *testing.T) {
	start, stop, err := Scope{Voice: "V"}.bounds(4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, []int{start, stop})

	start, stop, err = Scope{Voice: "V", Measures: []int{2, -1}}.bounds(4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, []int{start, stop})

	start, stop, err = Scope{Voice: "V", Measures: []int{3}}.bounds(4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, []int{start, stop})

	_, _, err = Scope{Voice: "V", Measures: []int{3, 2}}.bounds(4)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	_, _, err = Scope{Voice: "V", Measures: []int{0}}.bounds(4)
	assert.ErrorIs(t, err, errs.ErrMeasureOverrun)
}

func TestTemplate(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(`
name: T
time_signatures: [3/8, 3/8, 2/4]
phantom: true
staves:
  - name: Piano_Staff
    clef: bass
    voices:
      - name: RH_Voice
      - name: LH_Voice
        music: "c4. d4. e2"
`))
	require.NoError(t, err)
	s, root, global, err := Template(def)
	require.NoError(t, err)
	assert.Equal(t, root, s.Find(ScoreName))

	skips := global.Leaves()
	require.Len(t, skips, 4)
	sig := func(n *score.Node) []score.Indicator { return n.Indicators(score.TimeSignature) }
	assert.Equal(t, "3/8", sig(skips[0])[0].Value)
	assert.Empty(t, sig(skips[1]), "repeated meters are not restated")
	assert.Equal(t, "2/4", sig(skips[2])[0].Value)
	assert.Equal(t, "1/4", sig(skips[3])[0].Value)
	assert.True(t, sig(skips[3])[0].Tag.Has("PHANTOM"))

	rh := s.Find("RH_Voice").Leaves()
	assert.Equal(t, []string{"multimeasure-rest", "multimeasure-rest", "multimeasure-rest", "multimeasure-rest"}, names(rh))
	assert.True(t, s.Find("Piano_Staff").IsSimultaneous())
	assert.Equal(t, "bass", s.Find("Piano_Staff").DefaultClef())

	out, err := lilypond.Render(s.Find("Piano_Staff"))
	require.NoError(t, err)
	assert.Contains(t, out, "<<\n    \\clef \"bass\"\n", "two-voice staves keep their clef")
}

func TestTemplateRejectsShortMusic(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(`
name: T
time_signatures: [2/4]
staves: [{name: S, voices: [{name: V, music: "c'4"}]}]
`))
	require.NoError(t, err)
	_, _, _, err = Template(def)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "music lasts 1/4, measures last 1/2")
}

func TestBuild(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	res, err := newMaker(t).Build(context.Background(), def)
	require.NoError(t, err)

	voice := res.Score.Find("Violin_Music_Voice")
	leaves := voice.Leaves()
	assert.Equal(t, []string{"d'", "e'", "f'", "d'", "e'", "f'", "d'", "multimeasure-rest"}, names(leaves))
	dyn := leaves[4].Indicators(score.Dynamic)
	require.Len(t, dyn, 1, "the dynamic lands on the first head of measure 2")
	assert.Equal(t, "p", dyn[0].Value)

	require.Len(t, res.Measures, 4)
	got := make([]string, len(res.Measures))
	for i, row := range res.Measures {
		got[i] = row.Duration.String()
	}
	assert.Equal(t, []string{"1/8", "35/96", "1/4", "1/4"}, got)
	assert.True(t, res.Measures[1].EOL)
	assert.True(t, res.Measures[2].Fermata)
	assert.True(t, res.Measures[3].Phantom)

	assert.Equal(t, metadata.Metadata{
		Segment:               "A",
		BuildID:               "build-id",
		FirstMeasureNumber:    1,
		FinalMeasureNumber:    3,
		MeasureCount:          3,
		FermataMeasureNumbers: []int{3},
		Persist:               map[string]int{"violin": 7},
		Fingerprint:           Fingerprint(def),
		Created:               time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, res.Metadata)

	for _, want := range []string{
		`\time 2/4`,
		`\autoPageBreaksOff  %! BREAK`,
		`\baca-lbsd #60 #'(10)  %! BREAK`,
		`\baca-new-spacing-section #35 #96  %! SPACING_COMMAND`,
		`^ \baca-long-fermata-markup`,
		`%@% \bacaStopTextSpanSPM  %! SPACING`,
		`\context Voice = "Violin_Music_Voice"`,
		`\p`,
	} {
		assert.Contains(t, res.LilyPond, want)
	}
}

func TestBuildChainsSegments(t *testing.T) {
	dir := t.TempDir()
	store := metadata.NewStore(filepath.Join(dir, "metadata"))
	book, err := logbook.New(filepath.Join(dir, "logs", logbook.DefaultName))
	require.NoError(t, err)
	maker := newMaker(t, WithStore(store), WithLogbook(book))

	b, err := ParseDefinitionYAML([]byte(segmentB))
	require.NoError(t, err)
	_, err = maker.Build(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	a, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	_, err = maker.Build(context.Background(), a)
	require.NoError(t, err)

	res, err := maker.Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Metadata.FirstMeasureNumber)
	assert.Equal(t, 4, res.Measures[0].Number)
	assert.Equal(t, map[string]int{"violin": 9}, res.Metadata.Persist)
	assert.Equal(t, "build-id", res.Metadata.PreviousBuildID)
	assert.Equal(t, []string{"e'", "f'"}, names(res.Score.Find("Violin_Music_Voice").Leaves()),
		"the pitch cycle resumes after A's seven notes")

	stored, err := store.Read("B")
	require.NoError(t, err)
	assert.Equal(t, res.Metadata, stored)

	entries, total := book.Entries("B", 10)
	require.Equal(t, len(entries), total)
	assert.Equal(t, logbook.LevelError, entries[1].Level, "B first fails without A")
	assert.Contains(t, entries[1].Message, "build A first")
	assert.Equal(t, "measures 4-4 done (build build-id)", entries[len(entries)-1].Message)

	forA, _ := book.Entries("A", 10)
	for _, e := range forA {
		assert.Equal(t, "A", e.Segment)
	}
	assert.NotEmpty(t, forA)
}

func TestBuildReportsCommandErrors(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(`
name: E
time_signatures: [2/4]
staves: [{name: S, voices: [{name: V, music: "c'4 d'4"}]}]
commands:
  - command: pitches
    scope: {voice: V}
    config: {pitches: "e'", exact: true}
`))
	require.NoError(t, err)
	_, err = newMaker(t).Build(context.Background(), def)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInsufficientValues)
	assert.Contains(t, err.Error(), "segment E commands[0] pitches")

	def.Commands[0].Command = "no-such-command"
	_, err = newMaker(t).Build(context.Background(), def)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestBuildHonorsCancellation(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newMaker(t).Build(ctx, def)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-a.yaml"), []byte(segmentA), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-b.yml"), []byte(segmentB), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "03-bad.yaml"), []byte("name: X\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("#"), 0o644))

	defs, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "03-bad.yaml")
	require.Len(t, defs, 2)
	assert.Equal(t, "A", defs[0].Name)
	assert.Equal(t, "B", defs[1].Name)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFingerprintTracksDefinition(t *testing.T) {
	a, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	again, err := ParseDefinitionYAML([]byte(segmentA))
	require.NoError(t, err)
	assert.Len(t, Fingerprint(a), 64)
	assert.Equal(t, Fingerprint(a), Fingerprint(again))

	changed, err := ParseDefinitionYAML([]byte(strings.Replace(segmentA, "dynamics: p", "dynamics: f", 1)))
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(changed))
}
