// internal/tui/app.go
//
// This is the spacing inspector for baca. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: the built segment's measure rows plus view state
// 2. Update: key presses move through the table or rebuild the segment
// 3. View: a table of measures, a detail panel and the build journal
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/baca/internal/logbook"
	"github.com/kingrea/baca/internal/spacing"
)

// Rebuilder produces fresh measure rows, typically by rebuilding the
// segment from disk.
type Rebuilder func() ([]spacing.Measure, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRebuilder enables the rebuild key.
func WithRebuilder(rebuild Rebuilder) AppOption {
	return func(a *App) {
		if rebuild != nil {
			a.rebuild = rebuild
		}
	}
}

// WithLogbook shows the tail of the build journal under the table.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) { a.logbook = lb }
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Detail  key.Binding
	EOLOnly key.Binding
	Rebuild key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Detail:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail")),
		EOLOnly: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "line ends only")),
		Rebuild: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rebuild")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) help() string {
	var parts []string
	for _, b := range []key.Binding{k.Up, k.Down, k.Detail, k.EOLOnly, k.Rebuild, k.Quit} {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

type rebuildFinishedMsg struct {
	rows []spacing.Measure
	err  error
}

// App is the inspector model. In bubbletea, this holds ALL the state.
type App struct {
	segment string
	rows    []spacing.Measure
	visible []spacing.Measure
	table   table.Model
	keys    keyMap
	rebuild Rebuilder
	logbook *logbook.Logbook

	showDetail bool
	eolOnly    bool
	statusMsg  string
	err        error

	width  int
	height int
}

// NewApp builds an inspector over rows computed for segment.
func NewApp(segment string, rows []spacing.Measure, opts ...AppOption) *App {
	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	t.SetStyles(styles)

	app := &App{
		segment: segment,
		table:   t,
		keys:    defaultKeys(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.keys.Rebuild.SetEnabled(app.rebuild != nil)
	app.setRows(rows)
	return app
}

func columns() []table.Column {
	return []table.Column{
		{Title: "Measure", Width: 8},
		{Title: "Minimum", Width: 9},
		{Title: "Spacing", Width: 10},
		{Title: "Annotation", Width: 20},
		{Title: "Flags", Width: 22},
	}
}

// Flags describes how a row's duration was chosen.
func Flags(row spacing.Measure) string {
	var flags []string
	if row.Override {
		flags = append(flags, "override")
	}
	if row.Fermata {
		flags = append(flags, "fermata")
	}
	if row.EOL {
		flags = append(flags, "eol")
	}
	if row.Phantom {
		flags = append(flags, "phantom")
	}
	return strings.Join(flags, ",")
}

func (a *App) setRows(rows []spacing.Measure) {
	a.rows = rows
	a.visible = a.visible[:0]
	for _, row := range rows {
		if a.eolOnly && !row.EOL {
			continue
		}
		a.visible = append(a.visible, row)
	}
	out := make([]table.Row, len(a.visible))
	for i, row := range a.visible {
		minimum := "-"
		if !row.Minimum.IsZero() {
			minimum = row.Minimum.String()
		}
		out[i] = table.Row{
			fmt.Sprintf("%d", row.Number),
			minimum,
			row.Duration.String(),
			row.Annotation(),
			Flags(row),
		}
	}
	a.table.SetRows(out)
	if a.table.Cursor() >= len(out) {
		a.table.SetCursor(max(0, len(out)-1))
	}
}

// Selected returns the measure under the cursor.
func (a *App) Selected() (spacing.Measure, bool) {
	i := a.table.Cursor()
	if i < 0 || i >= len(a.visible) {
		return spacing.Measure{}, false
	}
	return a.visible[i], true
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.table.SetHeight(max(5, msg.Height-14))
		return a, nil

	case rebuildFinishedMsg:
		if msg.err != nil {
			a.err = msg.err
			a.statusMsg = "Rebuild failed"
			a.logbook.For(a.segment).Error("inspect: %v", msg.err)
			return a, nil
		}
		a.err = nil
		a.setRows(msg.rows)
		a.statusMsg = fmt.Sprintf("Rebuilt %s: %d measures", a.segment, len(msg.rows))
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Detail):
			a.showDetail = !a.showDetail
			return a, nil
		case key.Matches(msg, a.keys.EOLOnly):
			a.eolOnly = !a.eolOnly
			a.setRows(a.rows)
			return a, nil
		case key.Matches(msg, a.keys.Rebuild):
			a.statusMsg = "Rebuilding..."
			return a, a.rebuildCmd()
		}
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a *App) rebuildCmd() tea.Cmd {
	rebuild := a.rebuild
	return func() tea.Msg {
		rows, err := rebuild()
		return rebuildFinishedMsg{rows: rows, err: err}
	}
}

// View renders the inspector.
func (a *App) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render(fmt.Sprintf("⬡ BACA · %s spacing", a.segment))
	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(a.table.View())
	if a.showDetail {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, a.renderDetail())
	}
	sections := []string{header, body}
	if a.err != nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Render(a.err.Error()))
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(strings.TrimSpace(a.statusMsg + "\n" + a.keys.help()))
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderDetail() string {
	row, ok := a.Selected()
	if !ok {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Measure %d", row.Number))
	lines := []string{
		title,
		fmt.Sprintf("offset   %s – %s", row.Start, row.Stop),
		fmt.Sprintf("minimum  %s", row.Minimum),
		fmt.Sprintf("spacing  %s", row.Duration),
	}
	if row.EOL {
		lines = append(lines, fmt.Sprintf("pre-eol  %s", row.PreEOL))
	}
	if flags := Flags(row); flags != "" {
		lines = append(lines, "flags    "+flags)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		MarginLeft(1).
		Render(strings.Join(lines, "\n"))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	entries, total := a.logbook.Entries(a.segment, 6)
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s %-5s %s", e.Time.Local().Format("15:04:05"), e.Level, e.Message)
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s [%s] (%d entries)", fileName, a.segment, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
