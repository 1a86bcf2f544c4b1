package pitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrips(t *testing.T) {
	for _, name := range []string{"c'", "fs,", "bqf''", "ef", "ctqs'''", "gss,,", "a"} {
		p, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}
	assert.Equal(t, Pitch{Step: 0, Octave: 4}, MustParse("c'"))
	for _, name := range []string{"h", "c',", "cx'", ""} {
		_, err := Parse(name)
		assert.Error(t, err, name)
	}
}

func TestNumbers(t *testing.T) {
	cases := map[string]float64{
		"c'":    0,
		"a'":    9,
		"c":     -12,
		"bqf''": 22.5,
		"bs":    0,
	}
	for name, want := range cases {
		assert.Equal(t, want, MustParse(name).Number(), name)
	}
	assert.Equal(t, 4, MustParse("bs").Register())
	assert.Equal(t, 3, MustParse("b").Register())
	assert.Equal(t, 6, MustParse("b'").DiatonicNumber())
}

func TestFromNumberSpellsWithSharps(t *testing.T) {
	assert.Equal(t, "cs'", FromNumber(1).Name())
	assert.Equal(t, "b", FromNumber(-1).Name())
	assert.Equal(t, "cqs'", FromNumber(0.5).Name())
	assert.Equal(t, "as''", FromNumber(22).Name())
	assert.Equal(t, "d,", FromDiatonic(-13).Name())
}

func TestMoves(t *testing.T) {
	assert.Equal(t, "df''", MustParse("df'").Transpose(12).Name())
	assert.Equal(t, "f'", MustParse("e'").Transpose(1).Name())
	assert.Equal(t, "c''", MustParse("c'").ToRegister(5).Name())
	assert.Equal(t, "g,", MustParse("g''").ToRegister(2).Name())
	assert.Equal(t, "eqf'", MustParse("e'").Deviate(-0.5).Name())
	assert.Equal(t, "e'", MustParse("c'").NaturalThirdAbove().Name())
	assert.Equal(t, "d''", MustParse("bf'").NaturalThirdAbove().Name())
	assert.False(t, MustParse("bf'").IsNatural())
}

func TestLowestAndHighest(t *testing.T) {
	chord := []Pitch{MustParse("e'"), MustParse("c'"), MustParse("bs")}
	low, ok := Lowest(chord)
	require.True(t, ok)
	assert.Equal(t, "c'", low.Name())
	high, ok := Highest(chord)
	require.True(t, ok)
	assert.Equal(t, "e'", high.Name())
	_, ok = Lowest(nil)
	assert.False(t, ok)
	_, ok = Highest(nil)
	assert.False(t, ok)
}

func TestClefs(t *testing.T) {
	assert.Equal(t, 0, Treble.StaffPosition(MustParse("b'")))
	bass, err := LookupClef(" Bass ")
	require.NoError(t, err)
	assert.Equal(t, "bass", bass.Name)
	assert.Equal(t, 0, bass.StaffPosition(MustParse("d")))
	assert.Equal(t, "b'", Treble.PitchAt(0).Name())
	assert.Equal(t, "c'", Treble.PitchAt(-6).Name())

	_, err = LookupClef("gclef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alto, baritone, bass")
	assert.Contains(t, ClefNames(), "percussion")
}
