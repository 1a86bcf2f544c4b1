package score

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/pitch"
)

var (
	tokenRE = regexp.MustCompile(`<<|>>|[{}<>~|]|\\[a-zA-Z]+|\d+/\d+|[a-gsrR][a-z',]*(?:\d+|\\breve)?\.*(?:\*\d+(?:/\d+)?)?|\d+\.*(?:\*\d+(?:/\d+)?)?`)
	leafRE  = regexp.MustCompile(`^([a-gsrR][a-z',]*)?(\d+|\\breve)?(\.*)(?:\*(\d+(?:/\d+)?))?$`)
)

type parser struct {
	score  *Score
	tokens []string
	pos    int
	last   duration.Duration
	prev   *Node
}

// Parse reads a small LilyPond subset and returns the top-level nodes,
// unattached. Supported: English pitch names, dotted durations carried
// forward, multipliers (R1*3/8), rests r, multimeasure rests R, skips s,
// chords <c' e'>4, ties ~, \repeatTie, { } containers, << >> simultaneous
// containers, \times n/d { } and \tuplet d/n { } tuplets, and bar checks.
func Parse(s *Score, text string) ([]*Node, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{score: s, tokens: tokens, last: duration.New(1, 4)}
	var out []*Node
	for !p.done() {
		node, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if node != nil {
			out = append(out, node)
		}
	}
	return out, nil
}

// ParseInto parses text and appends the result under parent.
func ParseInto(parent *Node, text string) error {
	nodes, err := Parse(parent.score, text)
	if err != nil {
		return err
	}
	return parent.score.Append(parent, nodes...)
}

func tokenize(text string) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if idx := strings.Index(line, "%"); idx >= 0 {
			line = line[:idx]
		}
		lines = append(lines, line)
	}
	clean := strings.Join(lines, "\n")
	var tokens []string
	rest := clean
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			return tokens, nil
		}
		loc := tokenRE.FindStringIndex(rest)
		if loc == nil || loc[0] != 0 {
			return nil, fmt.Errorf("score: parse: unexpected input near %q", head(rest))
		}
		tokens = append(tokens, rest[:loc[1]])
		rest = rest[loc[1]:]
	}
}

func head(s string) string {
	if len(s) > 12 {
		return s[:12] + "..."
	}
	return s
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseItem() (*Node, error) {
	tok := p.next()
	switch {
	case tok == "{":
		return p.parseBlock(p.score.NewContainer(""), "}")
	case tok == "<<":
		return p.parseBlock(p.score.NewSimultaneous(""), ">>")
	case tok == "<":
		return p.parseChord()
	case tok == "|":
		return nil, nil
	case tok == "~":
		if p.prev == nil || !p.prev.IsPitched() {
			return nil, fmt.Errorf("score: parse: tie without a preceding note")
		}
		p.prev.tie = true
		return nil, nil
	case tok == `\repeatTie`:
		if p.prev == nil || !p.prev.IsPitched() {
			return nil, fmt.Errorf("score: parse: repeat tie without a preceding note")
		}
		p.prev.repeatTie = true
		return nil, nil
	case tok == `\times`, tok == `\tuplet`:
		return p.parseTuplet(tok)
	case tok == "}" || tok == ">>" || tok == ">":
		return nil, fmt.Errorf("score: parse: unbalanced %q", tok)
	case strings.HasPrefix(tok, `\`):
		return nil, fmt.Errorf("score: parse: unsupported command %s", tok)
	default:
		return p.parseLeaf(tok)
	}
}

func (p *parser) parseBlock(container *Node, closer string) (*Node, error) {
	for {
		if p.done() {
			return nil, fmt.Errorf("score: parse: missing %q", closer)
		}
		if p.peek() == closer {
			p.next()
			return container, nil
		}
		child, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		if err := p.score.Append(container, child); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseTuplet(command string) (*Node, error) {
	fraction := p.next()
	ratio, err := duration.Parse(fraction)
	if err != nil || ratio.Sign() <= 0 || !strings.Contains(fraction, "/") {
		return nil, fmt.Errorf("score: parse: %s needs a fraction, got %q", command, fraction)
	}
	if command == `\tuplet` {
		// \tuplet 3/2 means three in the time of two.
		ratio = duration.FromInt(1).Div(ratio)
	}
	if p.next() != "{" {
		return nil, fmt.Errorf("score: parse: %s %s must be followed by {", command, fraction)
	}
	return p.parseBlock(p.score.NewTuplet(ratio), "}")
}

func (p *parser) parseChord() (*Node, error) {
	var pitches []pitch.Pitch
	for {
		tok := p.next()
		if tok == "" {
			return nil, fmt.Errorf("score: parse: unterminated chord")
		}
		if tok == ">" {
			break
		}
		pt, err := pitch.Parse(tok)
		if err != nil {
			return nil, fmt.Errorf("score: parse: chord: %w", err)
		}
		pitches = append(pitches, pt)
	}
	if len(pitches) == 0 {
		return nil, fmt.Errorf("score: parse: empty chord")
	}
	written, multiplier := p.last, duration.Multiplier{}
	if tok := p.peek(); tok != "" && leafRE.MatchString(tok) && !startsWithName(tok) {
		var err error
		written, multiplier, err = p.readDuration(p.next())
		if err != nil {
			return nil, err
		}
	}
	chord := p.score.NewChord(pitches, written)
	chord.multiplier = multiplier
	p.prev = chord
	return chord, nil
}

func startsWithName(tok string) bool {
	return tok != "" && strings.ContainsRune("abcdefgsrR", rune(tok[0]))
}

func (p *parser) readDuration(tok string) (duration.Duration, duration.Multiplier, error) {
	m := leafRE.FindStringSubmatch(tok)
	if m == nil {
		return duration.Duration{}, duration.Multiplier{}, fmt.Errorf("score: parse: bad duration %q", tok)
	}
	return p.durationParts(m[2], m[3], m[4])
}

func (p *parser) durationParts(base, dots, mult string) (duration.Duration, duration.Multiplier, error) {
	written := p.last
	if base != "" {
		d, err := duration.ParseLily(base + dots)
		if err != nil {
			return duration.Duration{}, duration.Multiplier{}, fmt.Errorf("score: parse: %w", err)
		}
		written = d
		p.last = d
	}
	var multiplier duration.Multiplier
	if mult != "" {
		m, err := duration.Parse(mult)
		if err != nil || m.Sign() <= 0 {
			return duration.Duration{}, duration.Multiplier{}, fmt.Errorf("score: parse: bad multiplier %q", mult)
		}
		multiplier = m
	}
	return written, multiplier, nil
}

func (p *parser) parseLeaf(tok string) (*Node, error) {
	m := leafRE.FindStringSubmatch(tok)
	if m == nil || m[1] == "" {
		return nil, fmt.Errorf("score: parse: unexpected token %q", tok)
	}
	written, multiplier, err := p.durationParts(m[2], m[3], m[4])
	if err != nil {
		return nil, err
	}
	var node *Node
	switch m[1] {
	case "r":
		node = p.score.NewRest(written)
	case "R":
		node = p.score.NewMultimeasureRest(written)
	case "s":
		node = p.score.NewSkip(written)
	default:
		pt, err := pitch.Parse(m[1])
		if err != nil {
			return nil, fmt.Errorf("score: parse: %w", err)
		}
		node = p.score.NewNote(pt, written)
	}
	node.multiplier = multiplier
	p.prev = node
	return node, nil
}
