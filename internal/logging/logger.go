package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger appends timestamped lines to a file under the logs directory so
// request traces survive after the dashboard exits.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// New creates (or reuses) <logDir>/<name>.
func New(logDir, name string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

// Printf writes a single timestamped line to the log file. Requests run on
// tea.Cmd goroutines, so writes are serialized.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	timestamp := time.Now().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
}
