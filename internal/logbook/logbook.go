// Package logbook keeps the dashboard's activity journal: one line per
// login, view refresh, upload or failed request, written as
//
//	2025-03-10T09:00:00Z WARN  upload sales failed: missing column stock_left
//
// Every entry is exactly one line, so Tail can count entries by counting
// lines and the status pane never shows half a server error.
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

// Level is the severity column of an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends entries to a file and reads back its newest lines.
type Logbook struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New opens a journal at path, creating the parent directory.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: create %s: %w", filepath.Dir(path), err)
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Path is the journal file. Empty for a nil Logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one entry. Write errors are dropped; the journal must never
// take the dashboard down.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	entry := formatEntry(l.now(), level, message)
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(entry)
}

// formatEntry flattens message onto a single line.
func formatEntry(at time.Time, level Level, message string) string {
	message = strings.Join(strings.Fields(message), " ")
	return fmt.Sprintf("%s %-5s %s\n", at.UTC().Format(time.RFC3339), level, message)
}

// Tail returns the newest maxLines entries, oldest first, and how many
// entries the journal holds in total.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	ring := make([]string, 0, maxLines)
	total := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		total++
		if len(ring) == maxLines {
			ring = append(ring[1:], scanner.Text())
			continue
		}
		ring = append(ring, scanner.Text())
	}
	if total == 0 {
		return nil, 0
	}
	return ring, total
}

func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
