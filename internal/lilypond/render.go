// Package lilypond renders an annotated score tree as LilyPond source.
//
// Every line produced by an indicator ends with a "%! TAG" comment naming
// its tag, and deactivated indicators are written commented out behind
// "%@% " so later passes can switch them on by tag.
package lilypond

import (
	"fmt"
	"strings"

	"github.com/kingrea/baca/internal/score"
)

// Version is written at the top of every document.
const Version = "2.24.0"

const indent = "    "

// Deactivated prefixes commented-out tagged lines.
const Deactivated = "%@% "

const tagComment = "  %! "

// Render formats root and everything beneath it.
func Render(root *score.Node) (string, error) {
	var b strings.Builder
	if err := render(&b, root, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Document wraps Render's output in a complete file with version and
// language headers.
func Document(root *score.Node) (string, error) {
	body, err := Render(root)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\\version %q\n", Version)
	b.WriteString("\\language \"english\"\n\n")
	b.WriteString("\\score\n{\n")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		b.WriteString(indent + line + "\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func render(b *strings.Builder, n *score.Node, depth int) error {
	pad := strings.Repeat(indent, depth)
	if n.IsLeaf() {
		return renderLeaf(b, n, pad)
	}
	open, closer := "{", "}"
	if n.IsSimultaneous() {
		open, closer = "<<", ">>"
	}
	switch n.Kind() {
	case score.KindContext:
		if n.Name() != "" {
			fmt.Fprintf(b, "%s\\context %s = %q\n", pad, n.LilyPondType(), n.Name())
		} else {
			fmt.Fprintf(b, "%s\\new %s\n", pad, n.LilyPondType())
		}
		// Inside << >> the clef runs in parallel with the voices and sets
		// the staff for all of them.
		if clef := n.DefaultClef(); clef != "" {
			fmt.Fprintf(b, "%s%s\n%s%s\\clef %q\n", pad, open, pad, indent, clef)
			open = ""
		}
	case score.KindTuplet:
		fmt.Fprintf(b, "%s\\times %s\n", pad, n.Ratio())
	}
	if open != "" {
		fmt.Fprintf(b, "%s%s\n", pad, open)
	}
	for _, child := range n.Children() {
		if err := render(b, child, depth+1); err != nil {
			return err
		}
	}
	fmt.Fprintf(b, "%s%s\n", pad, closer)
	return nil
}

func renderLeaf(b *strings.Builder, leaf *score.Node, pad string) error {
	body, err := leafBody(leaf)
	if err != nil {
		return err
	}
	var before, after []score.Indicator
	for _, ind := range leaf.Indicators() {
		if ind.Position == score.Before || beforeKinds[ind.Kind] {
			before = append(before, ind)
		} else {
			after = append(after, ind)
		}
	}
	for _, ind := range before {
		writeIndicator(b, ind, pad)
	}
	b.WriteString(pad + body + "\n")
	for _, ind := range after {
		writeIndicator(b, ind, pad)
	}
	return nil
}

// beforeKinds always print ahead of their leaf.
var beforeKinds = map[score.IndicatorKind]bool{
	score.Clef:           true,
	score.TimeSignature:  true,
	score.MetronomeMark:  true,
	score.SpacingSection: true,
	score.LBSD:           true,
	score.PartAssignment: true,
	score.KeyCluster:     true,
}

func leafBody(leaf *score.Node) (string, error) {
	written, err := leaf.Written().Lily()
	if err != nil {
		return "", fmt.Errorf("lilypond: %s: %w", leaf, err)
	}
	var b strings.Builder
	switch leaf.Kind() {
	case score.KindNote:
		b.WriteString(leaf.Pitches()[0].Name())
	case score.KindChord:
		names := make([]string, 0, len(leaf.Pitches()))
		for _, p := range leaf.Pitches() {
			names = append(names, p.Name())
		}
		b.WriteString("<" + strings.Join(names, " ") + ">")
	case score.KindRest:
		b.WriteString("r")
	case score.KindMultimeasureRest:
		b.WriteString("R")
	case score.KindSkip:
		b.WriteString("s")
	default:
		return "", fmt.Errorf("lilypond: %s is not a leaf", leaf)
	}
	b.WriteString(written)
	if m, ok := leaf.Multiplier(); ok {
		fmt.Fprintf(&b, " * %s", m)
	}
	if leaf.RepeatTie() {
		b.WriteString(` \repeatTie`)
	}
	if leaf.Tie() {
		b.WriteString(" ~")
	}
	return b.String(), nil
}

// Format returns the LilyPond lines an indicator contributes, untagged.
// Markers are bookkeeping and format to nothing.
func Format(ind score.Indicator) []string {
	v := ind.Value
	switch ind.Kind {
	case score.Articulation:
		return []string{`-\` + v}
	case score.Clef:
		return []string{fmt.Sprintf(`\clef %q`, v)}
	case score.Dynamic:
		if v == "niente" {
			return []string{`\!`}
		}
		return []string{`\` + v}
	case score.KeyCluster:
		return []string{
			`\once \override Accidental.stencil = ##f`,
			`\once \override AccidentalCautionary.stencil = ##f`,
			`\once \override Arpeggio.X-offset = #-2`,
			`\once \override NoteHead.stencil = #ly:note-head::print`,
			`\once \override NoteHead.X-offset = 0`,
		}
	case score.Markup:
		if strings.HasPrefix(v, `\`) {
			return []string{"^ " + v}
		}
		return []string{fmt.Sprintf(`^ \markup { %s }`, v)}
	case score.MicrotoneMarkup:
		return []string{fmt.Sprintf(`^ \markup { %s }`, v)}
	case score.MetronomeMark:
		return []string{`\tempo ` + v}
	case score.PartAssignment:
		return []string{fmt.Sprintf(`%%*%% PartAssignment(%q)`, v)}
	case score.SpacingSection:
		return []string{spacingSection(v)}
	case score.StartHairpin:
		switch v {
		case "o<":
			return []string{`- \tweak circled-tip ##t`, `\<`}
		case ">o":
			return []string{`- \tweak circled-tip ##t`, `\>`}
		}
		return []string{`\` + v}
	case score.StopHairpin:
		return []string{`\` + v}
	case score.TimeSignature:
		return []string{`\time ` + v}
	case score.Marker:
		return nil
	}
	return strings.Split(v, "\n")
}

func spacingSection(value string) string {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		den = "1"
	}
	return fmt.Sprintf(`\baca-new-spacing-section #%s #%s`, num, den)
}

func writeIndicator(b *strings.Builder, ind score.Indicator, pad string) {
	comment := ""
	if !ind.Tag.Empty() {
		comment = tagComment + ind.Tag.String()
	}
	for _, line := range Format(ind) {
		if ind.Deactivate {
			line = Deactivated + line
		}
		b.WriteString(pad + line + comment + "\n")
	}
}
