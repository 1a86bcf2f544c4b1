package spacing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/score"
	"github.com/kingrea/baca/internal/tags"
)

// System places one system: it begins at Measure, sits YOffset staff spaces
// below the top of the page, and spaces its staves by Distances.
type System struct {
	Measure   int       `yaml:"measure" validate:"min=1"`
	YOffset   float64   `yaml:"y_offset"`
	Distances []float64 `yaml:"distances"`
}

// LBSD renders the line-break-system-details payload for the system.
func (s System) LBSD() string {
	parts := make([]string, len(s.Distances))
	for i, d := range s.Distances {
		parts[i] = formatNumber(d)
	}
	return fmt.Sprintf(`\baca-lbsd #%s #'(%s)`, formatNumber(s.YOffset), strings.Join(parts, " "))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Page groups systems. Number is optional; when set it must match the
// page's position.
type Page struct {
	Number  int      `yaml:"number,omitempty"`
	Systems []System `yaml:"systems" validate:"required,min=1,dive"`
}

// NewPage validates that no two systems share a Y-offset.
func NewPage(number int, systems ...System) (Page, error) {
	p := Page{Number: number, Systems: systems}
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	return p, nil
}

// Validate checks the page on its own.
func (p Page) Validate() error {
	if p.Number < 0 {
		return fmt.Errorf("spacing: page number (%d) must be positive: %w", p.Number, errs.ErrLayout)
	}
	if len(p.Systems) == 0 {
		return fmt.Errorf("spacing: page has no systems: %w", errs.ErrLayout)
	}
	seen := map[float64]bool{}
	for _, system := range p.Systems {
		if seen[system.YOffset] {
			return fmt.Errorf("spacing: systems overlap at Y-offset %s: %w", formatNumber(system.YOffset), errs.ErrLayout)
		}
		seen[system.YOffset] = true
	}
	return nil
}

// BreakMap holds the layout commands for each beginning-of-line measure.
type BreakMap struct {
	first    int
	pages    []Page
	bol      []int
	commands map[int][]score.Indicator
}

// Breaks builds a break map whose first system starts at measure 1.
func Breaks(pages ...Page) (*BreakMap, error) {
	return BreaksFrom(1, pages...)
}

// BreaksFrom builds a break map for a segment starting at first. Page
// numbers must match positions, systems must not overlap, and the first
// system must begin at first.
func BreaksFrom(first int, pages ...Page) (*BreakMap, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("spacing: breaks need at least one page: %w", errs.ErrLayout)
	}
	m := &BreakMap{first: first, commands: map[int][]score.Indicator{}}
	previous := 0
	for i, page := range pages {
		number := i + 1
		if page.Number != 0 && page.Number != number {
			return nil, fmt.Errorf("spacing: page number (%d) is not %d: %w", page.Number, number, errs.ErrLayout)
		}
		if err := page.Validate(); err != nil {
			return nil, err
		}
		for j, system := range page.Systems {
			if i == 0 && j == 0 && system.Measure != first {
				return nil, fmt.Errorf("spacing: first system starts at measure %d (not %d): %w", system.Measure, first, errs.ErrLayout)
			}
			if system.Measure <= previous {
				return nil, fmt.Errorf("spacing: system at measure %d does not follow measure %d: %w", system.Measure, previous, errs.ErrLayout)
			}
			previous = system.Measure
			brk := `\break`
			if j == 0 {
				brk = `\pageBreak`
			}
			m.bol = append(m.bol, system.Measure)
			m.commands[system.Measure] = []score.Indicator{
				{Kind: score.Literal, Value: brk, Tag: tags.New(tags.Break), Position: score.Before},
				{Kind: score.LBSD, Value: system.LBSD(), Tag: tags.New(tags.Break), Position: score.Before},
			}
		}
		page.Number = number
		m.pages = append(m.pages, page)
	}
	return m, nil
}

// FirstMeasure returns the measure the first system starts on.
func (m *BreakMap) FirstMeasure() int { return m.first }

// BOLMeasures returns beginning-of-line measure numbers in order.
func (m *BreakMap) BOLMeasures() []int {
	return append([]int(nil), m.bol...)
}

// Pages returns the validated pages with numbers filled in.
func (m *BreakMap) Pages() []Page {
	return append([]Page(nil), m.pages...)
}

// PageCount returns the number of pages.
func (m *BreakMap) PageCount() int { return len(m.pages) }

// Commands returns the indicators placed at measure.
func (m *BreakMap) Commands(measure int) []score.Indicator {
	return append([]score.Indicator(nil), m.commands[measure]...)
}

// LastMeasure returns the highest beginning-of-line measure.
func (m *BreakMap) LastMeasure() int {
	if len(m.bol) == 0 {
		return 0
	}
	return m.bol[len(m.bol)-1]
}

// Apply places the break commands on skips, one skip per measure starting
// at FirstMeasure. It fails before touching the score when a system starts
// past the last skip.
func (m *BreakMap) Apply(skips []*score.Node) error {
	if len(skips) == 0 {
		return fmt.Errorf("spacing: no measures to break: %w", errs.ErrPrecondition)
	}
	final := m.first + len(skips) - 1
	measures := make([]int, 0, len(m.commands))
	for n := range m.commands {
		measures = append(measures, n)
	}
	sort.Ints(measures)
	for _, n := range measures {
		if final < n {
			return fmt.Errorf("spacing: score ends at measure %d (not %d): %w", final, n, errs.ErrMeasureOverrun)
		}
	}
	breakTag := tags.New(tags.Break)
	skips[0].Attach(score.Indicator{Kind: score.Literal, Value: `\autoPageBreaksOff`, Tag: breakTag, Position: score.Before})
	for i, skip := range skips {
		if _, bol := m.commands[m.first+i]; bol {
			continue
		}
		skip.Attach(score.Indicator{Kind: score.Literal, Value: `\noBreak`, Tag: breakTag, Position: score.Before})
	}
	for _, n := range measures {
		skip := skips[n-m.first]
		for _, ind := range m.commands[n] {
			skip.Attach(ind)
		}
	}
	return nil
}

// ApplyTo places the break commands on the skips under global.
func (m *BreakMap) ApplyTo(global *score.Node) error {
	return m.Apply(skipsOf(global))
}
