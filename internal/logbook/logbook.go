// Package logbook keeps the build journal under .baca/logs. Every entry
// names the segment it concerns, so one file serves a whole score and the
// inspector can show a single segment's history.
//
//	2024-03-01T12:00:00Z INFO  [A] 3 measures, 4 commands
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity of an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DefaultName is the journal file written by builds.
const DefaultName = "build.log"

// Entry is one journal line. An empty Segment marks a score-wide event.
type Entry struct {
	Time    time.Time
	Level   Level
	Segment string
	Message string
}

// String formats the entry as it is stored. Messages are folded onto one
// line.
func (e Entry) String() string {
	segment := e.Segment
	if segment == "" {
		segment = "-"
	}
	return fmt.Sprintf("%s %-5s [%s] %s",
		e.Time.UTC().Format(time.RFC3339), e.Level, segment, strings.Join(strings.Fields(e.Message), " "))
}

// ParseEntry reads a line written by String.
func ParseEntry(line string) (Entry, error) {
	stamp, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, fmt.Errorf("logbook: malformed entry %q", line)
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return Entry{}, fmt.Errorf("logbook: malformed time in %q: %w", line, err)
	}
	level, rest, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	rest = strings.TrimLeft(rest, " ")
	if !strings.HasPrefix(rest, "[") {
		return Entry{}, fmt.Errorf("logbook: entry %q has no segment", line)
	}
	segment, message, ok := strings.Cut(rest[1:], "] ")
	if !ok {
		segment, ok = strings.CutSuffix(rest[1:], "]")
		if !ok {
			return Entry{}, fmt.Errorf("logbook: entry %q has no segment", line)
		}
	}
	if segment == "-" {
		segment = ""
	}
	return Entry{Time: at, Level: Level(level), Segment: segment, Message: message}, nil
}

// Logbook appends entries to a text file. A nil *Logbook discards
// everything, so callers may pass one around unconditionally.
type Logbook struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New creates a logbook that writes to path, creating its directory.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: %w", err)
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// For returns a journal whose entries are filed under segment.
func (l *Logbook) For(segment string) Journal {
	return Journal{book: l, segment: segment}
}

// Write stamps and appends e. Write failures are dropped; the journal
// never fails a build.
func (l *Logbook) Write(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(e.String() + "\n")
}

// Entries returns up to n of the most recent entries filed under
// segment, or under any segment when segment is empty, plus the number of
// entries that matched. Lines that do not parse are skipped.
func (l *Logbook) Entries(segment string, n int) ([]Entry, int) {
	if l == nil {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var out []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		e, err := ParseEntry(scanner.Text())
		if err != nil {
			continue
		}
		if segment == "" || e.Segment == segment {
			out = append(out, e)
		}
	}
	total := len(out)
	if n <= 0 || total == 0 {
		return nil, total
	}
	if total > n {
		out = out[total-n:]
	}
	return out, total
}

// Journal files entries under one segment.
type Journal struct {
	book    *Logbook
	segment string
}

// Segment names the segment this journal writes for.
func (j Journal) Segment() string { return j.segment }

func (j Journal) write(level Level, format string, args []any) {
	j.book.Write(Entry{Level: level, Segment: j.segment, Message: fmt.Sprintf(format, args...)})
}

// Info appends an informational entry.
func (j Journal) Info(format string, args ...any) { j.write(LevelInfo, format, args) }

// Warn appends a warning entry.
func (j Journal) Warn(format string, args ...any) { j.write(LevelWarn, format, args) }

// Error appends an error entry.
func (j Journal) Error(format string, args ...any) { j.write(LevelError, format, args) }
