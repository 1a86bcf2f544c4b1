package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/baca/internal/errs"
)

const segmentA = `
name: A
time_signatures: [2/4, 2/4]
phantom: true
staves:
  - name: Violin_Staff
    clef: treble
    voices:
      - name: Violin_Music_Voice
        music: "c'4 c' c'2"
commands:
  - command: pitches
    scope: {voice: Violin_Music_Voice}
    config: {pitches: "d' e'", persist: violin}
breaks:
  pages:
    - systems:
        - {measure: 1, y_offset: 0, distances: [10]}
`

const segmentB = `
name: B
previous: A
time_signatures: [2/4]
staves:
  - name: Violin_Staff
    voices:
      - name: Violin_Music_Voice
        music: "c'4 c'4"
commands:
  - command: pitches
    scope: {voice: Violin_Music_Voice}
    config: {pitches: "d' e'", persist: violin}
`

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runBaca(t *testing.T, ctx context.Context, project string, args ...string) (string, error) {
	t.Helper()
	out := &lockedBuffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--project", project}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeSegment(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, "segments", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitCreatesProject(t *testing.T) {
	project := t.TempDir()
	out, err := runBaca(t, context.Background(), project, "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(project, ".baca"))
	for _, dir := range []string{"logs", "metadata", "config.yaml"} {
		_, err := os.Stat(filepath.Join(project, ".baca", dir))
		assert.NoError(t, err, dir)
	}
}

func TestBuildWritesLilyPondAndMetadata(t *testing.T) {
	project := t.TempDir()
	a := writeSegment(t, project, "a.yaml", segmentA)
	b := writeSegment(t, project, "b.yaml", segmentB)

	out, err := runBaca(t, context.Background(), project, "build", a, "--activate", "SPACING", "--deactivate", "BREAK")
	require.NoError(t, err)
	assert.Contains(t, out, "measures 1-2")

	ly, err := os.ReadFile(filepath.Join(project, "build", "A.ly"))
	require.NoError(t, err)
	text := string(ly)
	assert.Contains(t, text, `\version "`)
	assert.Contains(t, text, "%@% \\pageBreak  %! BREAK")
	assert.Contains(t, text, "%@% \\noBreak  %! BREAK")
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "%! SPACING") && !strings.Contains(line, "SPACING_") {
			assert.NotContains(t, line, "%@%")
		}
	}

	custom := filepath.Join(t.TempDir(), "out", "b.ly")
	out, err = runBaca(t, context.Background(), project, "build", b, "-o", custom)
	require.NoError(t, err)
	assert.Contains(t, out, "measures 3-3")
	_, err = os.Stat(custom)
	require.NoError(t, err)

	out, err = runBaca(t, context.Background(), project, "metadata")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", out)

	out, err = runBaca(t, context.Background(), project, "metadata", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "measures  3-3 (1)")
	assert.Contains(t, out, "persist   violin=5")

	logData, err := os.ReadFile(filepath.Join(project, ".baca", "logs", "build.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "INFO  [A] measures 1-2 done")
	assert.Contains(t, string(logData), "INFO  [B] measures 3-3 done")
}

func TestBuildNeedsPreviousSegment(t *testing.T) {
	project := t.TempDir()
	b := writeSegment(t, project, "b.yaml", segmentB)
	_, err := runBaca(t, context.Background(), project, "build", b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build A first")
}

func TestBuildErrorsMapToExitCodes(t *testing.T) {
	project := t.TempDir()
	bad := writeSegment(t, project, "bad.yaml", strings.Replace(segmentA, "2/4, 2/4", "2/4, 2/3", 1))
	_, err := runBaca(t, context.Background(), project, "build", bad)
	require.Error(t, err)
	assert.Equal(t, 2, errs.ExitCode(errs.Classify(err)))

	_, err = runBaca(t, context.Background(), project, "build", filepath.Join(project, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, 4, errs.ExitCode(errs.Classify(err)))
}

func TestValidateReportsEverySegment(t *testing.T) {
	project := t.TempDir()
	writeSegment(t, project, "a.yaml", segmentA)
	writeSegment(t, project, "b.yaml", segmentB)
	out, err := runBaca(t, context.Background(), project, "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok A (2 measures, 1 commands)\nok B (1 measures, 1 commands)\n", out)

	writeSegment(t, project, "c.yaml", "name: C\n")
	out, err = runBaca(t, context.Background(), project, "validate", filepath.Join(project, "segments"))
	require.Error(t, err)
	assert.Contains(t, out, "ok A")
	assert.Contains(t, err.Error(), "c.yaml")
}

func TestSpacingPlainReport(t *testing.T) {
	project := t.TempDir()
	a := writeSegment(t, project, "a.yaml", segmentA)
	out, err := runBaca(t, context.Background(), project, "spacing", a, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "A: 3 measures")
	assert.Contains(t, out, "phantom")
}

func TestPartsSetPersists(t *testing.T) {
	project := t.TempDir()
	_, err := runBaca(t, context.Background(), project, "parts", "set", "Violin_Music_Voice", "Violin")
	require.NoError(t, err)
	out, err := runBaca(t, context.Background(), project, "parts")
	require.NoError(t, err)
	assert.Equal(t, "Violin_Music_Voice: Violin\n", out)
}

func TestWatchRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(path, []byte(segmentA), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	builds := 0
	result := make(chan error, 1)
	go func() {
		result <- watchFile(ctx, path, 20*time.Millisecond, func(context.Context) {
			mu.Lock()
			builds++
			mu.Unlock()
		})
	}()
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return builds
	}
	require.Eventually(t, func() bool { return count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(segmentA+"\n"), 0o644))
	require.Eventually(t, func() bool { return count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestBuildAllFollowsPlan(t *testing.T) {
	project := t.TempDir()
	writeSegment(t, project, "a.yaml", segmentA)
	writeSegment(t, project, "b.yaml", segmentB)
	ctx := context.Background()

	out, err := runBaca(t, ctx, project, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "A            ready     missing (never built)")
	assert.Contains(t, out, "B            blocked   missing (never built)")

	out, err = runBaca(t, ctx, project, "build", "--all")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], filepath.Join("build", "A.ly"))
	assert.Contains(t, lines[1], filepath.Join("build", "B.ly"))

	out, err = runBaca(t, ctx, project, "status")
	require.NoError(t, err)
	assert.Equal(t, "A            complete  fresh\nB            complete  fresh\n", out)

	out, err = runBaca(t, ctx, project, "build", "--all")
	require.NoError(t, err)
	assert.Equal(t, "all segments up to date\n", out)

	_, err = runBaca(t, ctx, project, "build")
	require.Error(t, err)
	assert.Equal(t, 2, errs.ExitCode(errs.Classify(err)))
}
