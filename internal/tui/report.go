package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/baca/internal/spacing"
)

// Report renders rows as a static table for non-interactive output.
func Report(segment string, rows []spacing.Measure) string {
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers("Measure", "Minimum", "Spacing", "Annotation", "Flags")
	for _, row := range rows {
		minimum := "-"
		if !row.Minimum.IsZero() {
			minimum = row.Minimum.String()
		}
		t.Row(fmt.Sprintf("%d", row.Number), minimum, row.Duration.String(), row.Annotation(), Flags(row))
	}
	return fmt.Sprintf("%s: %d measures\n%s\n", segment, len(rows), t.String())
}
