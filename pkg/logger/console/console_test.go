package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Prefix: "worker", Output: &buf})

	l.Debug("[Crawl] hidden")
	l.Info("[Crawl] Processing page", "title", "Thimble")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "worker") || !strings.Contains(out, "title=Thimble") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConsoleLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf})

	l.Debug("[Resolve] Resolved", "identity", "Hal")
	if !strings.Contains(buf.String(), "identity=Hal") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
