package pitch

import (
	"fmt"
	"sort"
	"strings"
)

// Clef maps diatonic pitch space onto staff positions. MiddleC is the staff
// position of c' (0 is the middle line).
type Clef struct {
	Name    string
	MiddleC int
}

var clefMiddleC = map[string]int{
	"treble":       -6,
	"soprano":      -4,
	"mezzosoprano": -2,
	"alto":         0,
	"tenor":        2,
	"baritone":     4,
	"varbaritone":  4,
	"bass":         6,
	"french":       -8,
	"percussion":   0,
}

// Treble is the default clef for staves that declare none.
var Treble = Clef{Name: "treble", MiddleC: -6}

// LookupClef resolves a clef name.
func LookupClef(name string) (Clef, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	middle, ok := clefMiddleC[key]
	if !ok {
		return Clef{}, fmt.Errorf("pitch: unknown clef %q (known: %s)", name, strings.Join(ClefNames(), ", "))
	}
	return Clef{Name: key, MiddleC: middle}, nil
}

// ClefNames lists the known clef names in sorted order.
func ClefNames() []string {
	names := make([]string, 0, len(clefMiddleC))
	for name := range clefMiddleC {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaffPosition returns the staff position of p under the clef.
func (c Clef) StaffPosition(p Pitch) int {
	return p.DiatonicNumber() + c.MiddleC
}

// PitchAt returns the natural pitch written at a staff position.
func (c Clef) PitchAt(position int) Pitch {
	return FromDiatonic(position - c.MiddleC)
}
