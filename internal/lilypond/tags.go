package lilypond

import (
	"strings"
)

// Activate uncomments every deactivated line whose tag comment carries
// word. It returns the new text and the number of lines changed.
func Activate(text, word string) (string, int) {
	return toggle(text, word, true)
}

// Deactivate comments out every active line whose tag comment carries
// word. It returns the new text and the number of lines changed.
func Deactivate(text, word string) (string, int) {
	return toggle(text, word, false)
}

func toggle(text, word string, activate bool) (string, int) {
	lines := strings.Split(text, "\n")
	changed := 0
	for i, line := range lines {
		if !lineTagged(line, word) {
			continue
		}
		body := strings.TrimLeft(line, " ")
		pad := line[:len(line)-len(body)]
		off := strings.HasPrefix(body, Deactivated)
		switch {
		case activate && off:
			lines[i] = pad + strings.TrimPrefix(body, Deactivated)
			changed++
		case !activate && !off:
			lines[i] = pad + Deactivated + body
			changed++
		}
	}
	return strings.Join(lines, "\n"), changed
}

func lineTagged(line, word string) bool {
	_, tag, ok := strings.Cut(line, strings.TrimLeft(tagComment, " "))
	if !ok {
		return false
	}
	for _, w := range strings.Split(strings.TrimSpace(tag), ":") {
		if w == word {
			return true
		}
	}
	return false
}
