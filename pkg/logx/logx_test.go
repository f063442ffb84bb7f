package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSinkAppendsLeveledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New("detailed", true, path)
	l.Info("hello %s", "world")
	l.Debug("hidden at detailed level")
	l.Error("boom")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "[INFO] hello world") {
		t.Fatalf("missing info line: %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug line should be gated at detailed level: %q", content)
	}
	if !strings.Contains(content, "[ERROR] boom") {
		t.Fatalf("missing error line: %q", content)
	}
}

func TestQuietLevelDropsInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New("minimal", true, path)
	l.Info("request served")
	l.Warn("odd request")
	_ = l.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(raw), "request served") {
		t.Fatalf("info should be dropped at quiet level: %q", raw)
	}
	if !strings.Contains(string(raw), "[WARN] odd request") {
		t.Fatalf("warn should be kept: %q", raw)
	}
}

func TestDebugLevelKeepsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New("debug", true, path)
	l.Debug("verbose detail")
	l.Request("POST", "/submit", "10.0.0.1", "req-1")
	_ = l.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "verbose detail") {
		t.Fatalf("debug line missing: %q", raw)
	}
	if !strings.Contains(string(raw), "POST /submit client=10.0.0.1 request_id=req-1") {
		t.Fatalf("request line missing: %q", raw)
	}
}

func TestNoFileSink(t *testing.T) {
	l := New("detailed", false, "")
	l.Info("stderr only")
	if err := l.Close(); err != nil {
		t.Fatalf("close without file sink: %v", err)
	}
}
