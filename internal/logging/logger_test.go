package logging

import (
	"os"
	"strings"
	"testing"
)

func TestPrintfAppendsTimestampedLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "http.log")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Printf("api: GET %s\n", "/api/stock")
	logger.Printf("api: POST %s", "/api/login")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	logger.Printf("dropped after close")

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "[") || !strings.HasSuffix(lines[0], "api: GET /api/stock") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Printf("ignored")
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil logger: %v", err)
	}
}
