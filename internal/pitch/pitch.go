// Package pitch models named pitches, registers, clefs and staff positions.
package pitch

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Pitch is a spelled pitch. Octave 4 holds middle C (c'), so the LilyPond
// name "c'" is Pitch{Step: 0, Octave: 4}. Alter counts semitones and is a
// multiple of 0.5 so quarter tones are representable.
type Pitch struct {
	Step   int
	Octave int
	Alter  float64
}

var stepSemitones = [7]float64{0, 2, 4, 5, 7, 9, 11}

const stepLetters = "cdefgab"

var accidentalSuffixes = map[float64]string{
	-2:   "ff",
	-1.5: "tqf",
	-1:   "f",
	-0.5: "qf",
	0:    "",
	0.5:  "qs",
	1:    "s",
	1.5:  "tqs",
	2:    "ss",
}

var suffixAlter = map[string]float64{
	"ff":  -2,
	"tqf": -1.5,
	"f":   -1,
	"qf":  -0.5,
	"":    0,
	"qs":  0.5,
	"s":   1,
	"tqs": 1.5,
	"ss":  2,
}

var nameRE = regexp.MustCompile(`^([a-g])(tqf|tqs|ff|ss|qf|qs|f|s)?('*|,*)$`)

// Parse reads a LilyPond (English) pitch name such as "c'", "fs,", "bqf''".
func Parse(name string) (Pitch, error) {
	trimmed := strings.TrimSpace(name)
	match := nameRE.FindStringSubmatch(trimmed)
	if match == nil {
		return Pitch{}, fmt.Errorf("pitch: cannot parse %q", name)
	}
	step := strings.IndexByte(stepLetters, match[1][0])
	octave := 3
	if strings.HasPrefix(match[3], "'") {
		octave += len(match[3])
	} else {
		octave -= len(match[3])
	}
	return Pitch{Step: step, Octave: octave, Alter: suffixAlter[match[2]]}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(name string) Pitch {
	p, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return p
}

// FromNumber spells a semitone number (0 = c') with sharps. Fractional
// parts are kept as quarter-tone alterations.
func FromNumber(number float64) Pitch {
	octave := int(math.Floor(number/12)) + 4
	pc := number - 12*float64(octave-4)
	base := math.Floor(pc)
	step, alter := sharpSpelling(int(base))
	return Pitch{Step: step, Octave: octave, Alter: alter + (pc - base)}
}

func sharpSpelling(pc int) (int, float64) {
	switch pc {
	case 0:
		return 0, 0
	case 1:
		return 0, 1
	case 2:
		return 1, 0
	case 3:
		return 1, 1
	case 4:
		return 2, 0
	case 5:
		return 3, 0
	case 6:
		return 3, 1
	case 7:
		return 4, 0
	case 8:
		return 4, 1
	case 9:
		return 5, 0
	case 10:
		return 5, 1
	default:
		return 6, 0
	}
}

// FromDiatonic returns the natural pitch at a diatonic number (0 = c').
func FromDiatonic(number int) Pitch {
	octave := floorDiv(number, 7) + 4
	return Pitch{Step: number - 7*(octave-4), Octave: octave}
}

// Number returns the semitone number relative to middle C.
func (p Pitch) Number() float64 {
	return 12*float64(p.Octave-4) + stepSemitones[p.Step] + p.Alter
}

// DiatonicNumber returns the count of diatonic steps above middle C.
func (p Pitch) DiatonicNumber() int {
	return 7*(p.Octave-4) + p.Step
}

// Register returns the sounding octave number: floor(number / 12) + 4.
func (p Pitch) Register() int {
	return int(math.Floor(p.Number()/12)) + 4
}

// Name renders the LilyPond (English) pitch name.
func (p Pitch) Name() string {
	var b strings.Builder
	b.WriteByte(stepLetters[p.Step])
	suffix, ok := accidentalSuffixes[p.Alter]
	if !ok {
		suffix = fmt.Sprintf("[%+g]", p.Alter)
	}
	b.WriteString(suffix)
	switch {
	case p.Octave > 3:
		b.WriteString(strings.Repeat("'", p.Octave-3))
	case p.Octave < 3:
		b.WriteString(strings.Repeat(",", 3-p.Octave))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (p Pitch) String() string {
	return p.Name()
}

// IsNatural reports whether the pitch carries no alteration.
func (p Pitch) IsNatural() bool {
	return p.Alter == 0
}

// Transpose moves the pitch by semitones. Whole-octave moves keep the
// spelling; other intervals respell with sharps.
func (p Pitch) Transpose(semitones float64) Pitch {
	if octaves := semitones / 12; octaves == math.Trunc(octaves) {
		return p.MoveOctaves(int(octaves))
	}
	return FromNumber(p.Number() + semitones)
}

// MoveOctaves shifts the spelled octave by n.
func (p Pitch) MoveOctaves(n int) Pitch {
	p.Octave += n
	return p
}

// ToRegister moves the pitch by whole octaves so that Register() == octave.
func (p Pitch) ToRegister(octave int) Pitch {
	return p.MoveOctaves(octave - p.Register())
}

// Deviate adds a quarter-tone style alteration without respelling.
func (p Pitch) Deviate(semitones float64) Pitch {
	p.Alter += semitones
	return p
}

// NaturalThirdAbove returns the natural pitch a diatonic third above p: the
// major third above p respelled with a natural accidental.
func (p Pitch) NaturalThirdAbove() Pitch {
	return FromDiatonic(p.DiatonicNumber() + 2)
}

// Lowest returns the pitch with the smallest semitone number.
func Lowest(pitches []Pitch) (Pitch, bool) {
	if len(pitches) == 0 {
		return Pitch{}, false
	}
	out := pitches[0]
	for _, p := range pitches[1:] {
		if p.Number() < out.Number() {
			out = p
		}
	}
	return out, true
}

// Highest returns the pitch with the largest semitone number.
func Highest(pitches []Pitch) (Pitch, bool) {
	if len(pitches) == 0 {
		return Pitch{}, false
	}
	out := pitches[0]
	for _, p := range pitches[1:] {
		if p.Number() > out.Number() {
			out = p
		}
	}
	return out, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
