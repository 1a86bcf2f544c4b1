// Package duration implements exact rational durations and multipliers.
//
// Every value is immutable: arithmetic returns a new Duration and never
// mutates its operands, so durations can be shared freely between score
// nodes, spacing rows and selections.
package duration

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration is an exact rational number of whole notes. The zero value is 0.
type Duration struct {
	r *big.Rat
}

// Multiplier is a rational scale factor. It shares Duration's arithmetic.
type Multiplier = Duration

// New returns n/d. It panics when d is zero, mirroring big.NewRat.
func New(n, d int64) Duration {
	return Duration{r: big.NewRat(n, d)}
}

// FromInt returns n/1.
func FromInt(n int64) Duration {
	return New(n, 1)
}

// FromRat copies r into a new Duration.
func FromRat(r *big.Rat) Duration {
	if r == nil {
		return Duration{}
	}
	return Duration{r: new(big.Rat).Set(r)}
}

// Parse reads "3/8", "1", or "1/4" style fractions.
func Parse(value string) (Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Duration{}, fmt.Errorf("duration: empty value")
	}
	if strings.ContainsAny(trimmed, ".eE") {
		return Duration{}, fmt.Errorf("duration: %q is not a fraction", value)
	}
	r, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return Duration{}, fmt.Errorf("duration: cannot parse %q", value)
	}
	return Duration{r: r}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(value string) Duration {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Duration) rat() *big.Rat {
	if d.r == nil {
		return new(big.Rat)
	}
	return d.r
}

// Rat returns a copy of the underlying rational.
func (d Duration) Rat() *big.Rat {
	return new(big.Rat).Set(d.rat())
}

// Num returns the reduced numerator.
func (d Duration) Num() int64 {
	return d.rat().Num().Int64()
}

// Den returns the reduced denominator.
func (d Duration) Den() int64 {
	return d.rat().Denom().Int64()
}

// Add returns d+o.
func (d Duration) Add(o Duration) Duration {
	return Duration{r: new(big.Rat).Add(d.rat(), o.rat())}
}

// Sub returns d-o.
func (d Duration) Sub(o Duration) Duration {
	return Duration{r: new(big.Rat).Sub(d.rat(), o.rat())}
}

// Mul returns d*o.
func (d Duration) Mul(o Duration) Duration {
	return Duration{r: new(big.Rat).Mul(d.rat(), o.rat())}
}

// Div returns d/o. Division by zero panics like big.Rat.Quo.
func (d Duration) Div(o Duration) Duration {
	return Duration{r: new(big.Rat).Quo(d.rat(), o.rat())}
}

// Cmp compares d and o.
func (d Duration) Cmp(o Duration) int {
	return d.rat().Cmp(o.rat())
}

// Less reports d < o.
func (d Duration) Less(o Duration) bool {
	return d.Cmp(o) < 0
}

// Equal reports d == o.
func (d Duration) Equal(o Duration) bool {
	return d.Cmp(o) == 0
}

// Sign returns -1, 0 or +1.
func (d Duration) Sign() int {
	return d.rat().Sign()
}

// IsZero reports whether d is 0.
func (d Duration) IsZero() bool {
	return d.Sign() == 0
}

// IsOne reports whether d is exactly 1.
func (d Duration) IsOne() bool {
	return d.rat().Cmp(big.NewRat(1, 1)) == 0
}

// String renders "n/d", or "n" for integers.
func (d Duration) String() string {
	r := d.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	return r.String()
}

// Min returns the smallest of the given durations. It panics on no input.
func Min(first Duration, rest ...Duration) Duration {
	out := first
	for _, d := range rest {
		if d.Less(out) {
			out = d
		}
	}
	return out
}

// Max returns the largest of the given durations.
func Max(first Duration, rest ...Duration) Duration {
	out := first
	for _, d := range rest {
		if out.Less(d) {
			out = d
		}
	}
	return out
}

// Lily renders an assignable duration as a LilyPond token: 1/4 -> "4",
// 3/16 -> "8.", 7/8 -> "2..", 2 -> "\breve".
func (d Duration) Lily() (string, error) {
	if d.Sign() <= 0 {
		return "", fmt.Errorf("duration: %s is not assignable", d)
	}
	num, den := d.Num(), d.Den()
	dots := ""
	switch num {
	case 1:
	case 2:
		if den == 1 {
			return `\breve`, nil
		}
		return "", fmt.Errorf("duration: %s is not assignable", d)
	case 3:
		dots = "."
		den /= 2
	case 7:
		dots = ".."
		den /= 4
	case 15:
		dots = "..."
		den /= 8
	default:
		return "", fmt.Errorf("duration: %s is not assignable", d)
	}
	if den < 1 || !isPowerOfTwo(den) {
		return "", fmt.Errorf("duration: %s is not assignable", d)
	}
	return strconv.FormatInt(den, 10) + dots, nil
}

// ParseLily reads a LilyPond duration token ("8.", "16", "\breve").
func ParseLily(token string) (Duration, error) {
	if token == `\breve` {
		return FromInt(2), nil
	}
	base := strings.TrimRight(token, ".")
	dots := len(token) - len(base)
	den, err := strconv.ParseInt(base, 10, 64)
	if err != nil || den < 1 || !isPowerOfTwo(den) {
		return Duration{}, fmt.Errorf("duration: invalid token %q", token)
	}
	value := New(1, den)
	add := value
	for i := 0; i < dots; i++ {
		add = add.Div(FromInt(2))
		value = value.Add(add)
	}
	return value, nil
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// MarshalYAML renders the duration as a fraction string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts "3/8" strings or bare integers.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: line %d: expected a scalar", value.Line)
	}
	parsed, err := Parse(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText renders the duration for JSON/text encoders.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a fraction string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
