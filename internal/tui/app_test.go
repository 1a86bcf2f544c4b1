package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/baca/internal/duration"
	"github.com/kingrea/baca/internal/logbook"
	"github.com/kingrea/baca/internal/spacing"
)

func sampleRows() []spacing.Measure {
	return []spacing.Measure{
		{Number: 1, Minimum: duration.New(1, 8), Duration: duration.New(1, 8)},
		{Number: 2, Minimum: duration.New(1, 4), Duration: duration.New(35, 96), PreEOL: duration.New(1, 4), EOL: true},
		{Number: 3, Duration: duration.New(1, 4), Fermata: true, Override: true},
		{Number: 4, Duration: duration.New(1, 4), Phantom: true},
	}
}

func TestSelectionMovesWithKeys(t *testing.T) {
	app := NewApp("A", sampleRows())
	row, ok := app.Selected()
	if !ok || row.Number != 1 {
		t.Fatalf("expected first measure selected, got %+v", row)
	}
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = runCommands(t, model, cmd)
	if row, _ := app.Selected(); row.Number != 2 {
		t.Fatalf("expected measure 2 after down, got %d", row.Number)
	}
	model, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	app = runCommands(t, model, cmd)
	if row, _ := app.Selected(); row.Number != 1 {
		t.Fatalf("expected measure 1 after k, got %d", row.Number)
	}
}

func TestEOLFilterAndDetail(t *testing.T) {
	app := NewApp("A", sampleRows())
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	app = model.(*App)
	if len(app.visible) != 1 || app.visible[0].Number != 2 {
		t.Fatalf("expected only the line-end measure, got %+v", app.visible)
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	view := app.View()
	if !strings.Contains(view, "Measure 2") {
		t.Fatalf("detail panel missing from view:\n%s", view)
	}
	if !strings.Contains(view, "[[1/4 * 35/24]]") {
		t.Fatalf("expected eol annotation in view:\n%s", view)
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	app = model.(*App)
	if len(app.visible) != 4 {
		t.Fatalf("expected filter to toggle off, got %d rows", len(app.visible))
	}
}

func TestRebuildReplacesRows(t *testing.T) {
	calls := 0
	rebuild := func() ([]spacing.Measure, error) {
		calls++
		return sampleRows()[:2], nil
	}
	app := NewApp("A", sampleRows(), WithRebuilder(rebuild))
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	app = runCommands(t, model, cmd)
	if calls != 1 {
		t.Fatalf("expected one rebuild, got %d", calls)
	}
	if len(app.rows) != 2 {
		t.Fatalf("expected rebuilt rows, got %d", len(app.rows))
	}
	if !strings.Contains(app.statusMsg, "Rebuilt A: 2 measures") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
}

func TestRebuildFailureIsLogged(t *testing.T) {
	lb, err := logbook.New(filepath.Join(t.TempDir(), "build.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	lb.For("B").Info("built elsewhere")
	rebuild := func() ([]spacing.Measure, error) {
		return nil, errors.New("measure 3 overruns")
	}
	app := NewApp("A", sampleRows(), WithRebuilder(rebuild), WithLogbook(lb))
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	app = runCommands(t, model, cmd)
	if app.err == nil || len(app.rows) != 4 {
		t.Fatalf("failed rebuild should keep rows and record the error")
	}
	view := app.View()
	if !strings.Contains(view, "measure 3 overruns") {
		t.Fatalf("error missing from view:\n%s", view)
	}
	if !strings.Contains(view, "LOG · build.log [A] (1 entries)") {
		t.Fatalf("log panel missing from view:\n%s", view)
	}
	if strings.Contains(view, "built elsewhere") {
		t.Fatalf("log panel shows another segment:\n%s", view)
	}
	entries, _ := lb.Entries("A", 1)
	if len(entries) != 1 || entries[0].Level != logbook.LevelError || entries[0].Message != "inspect: measure 3 overruns" {
		t.Fatalf("journal entries = %+v", entries)
	}
}

func TestRebuildKeyDisabledWithoutRebuilder(t *testing.T) {
	app := NewApp("A", sampleRows())
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		if _, ok := cmd().(rebuildFinishedMsg); ok {
			t.Fatalf("rebuild should be disabled")
		}
	}
	if strings.Contains(app.View(), "r rebuild") {
		t.Fatalf("help should omit rebuild")
	}
}

func TestQuitKey(t *testing.T) {
	app := NewApp("A", sampleRows())
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestWindowSizeResizesTable(t *testing.T) {
	app := NewApp("A", sampleRows())
	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	app = model.(*App)
	if app.width != 100 || app.height != 40 {
		t.Fatalf("unexpected size %dx%d", app.width, app.height)
	}
	small, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	if small.(*App).table.Height() <= 0 {
		t.Fatalf("table height must stay positive")
	}
}

func TestReport(t *testing.T) {
	out := Report("A", sampleRows())
	for _, want := range []string{"A: 4 measures", "35/96", "[[1/4 * 35/24]]", "override,fermata", "phantom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}
