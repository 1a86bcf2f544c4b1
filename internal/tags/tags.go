// Package tags defines the tag vocabulary written next to generated
// LilyPond lines so later passes can find, activate or strip them.
package tags

import "strings"

// Tag is a colon-separated list of words, e.g. "BREAK:SPACING".
type Tag string

// Words used by the layout and spacing passes.
const (
	Break          = "BREAK"
	Spacing        = "SPACING"
	SpacingCommand = "SPACING_COMMAND"
	SpacingMarkup  = "SPACING_MARKUP"
	Fermata        = "FERMATA"
	Phantom        = "PHANTOM"
)

// Markers attached to leaves whose pitch or register is still provisional.
const (
	NotYetPitched    = "not yet pitched"
	NotYetRegistered = "not yet registered"
)

// New joins words into a tag, skipping blanks.
func New(words ...string) Tag {
	return Tag("").Append(words...)
}

// Append returns the tag with words added at the end. Words already present
// are not repeated.
func (t Tag) Append(words ...string) Tag {
	out := t.Words()
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" || contains(out, word) {
			continue
		}
		out = append(out, word)
	}
	return Tag(strings.Join(out, ":"))
}

// Words splits the tag.
func (t Tag) Words() []string {
	if strings.TrimSpace(string(t)) == "" {
		return nil
	}
	parts := strings.Split(string(t), ":")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether word is one of the tag's words.
func (t Tag) Has(word string) bool {
	return contains(t.Words(), word)
}

// Empty reports whether the tag carries no words.
func (t Tag) Empty() bool {
	return len(t.Words()) == 0
}

func (t Tag) String() string {
	return string(t)
}

func contains(words []string, target string) bool {
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}
