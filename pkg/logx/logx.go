package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[level]string{
	levelDebug: "DEBUG",
	levelInfo:  "INFO",
	levelWarn:  "WARN",
	levelError: "ERROR",
}

// Logger writes timestamped leveled lines to stderr and, when configured,
// appends the same lines to a log file. Safe for concurrent use.
type Logger struct {
	mu   sync.Mutex
	min  level
	out  io.Writer
	file *os.File
}

// New builds a logger for the configured verbosity. "debug" emits
// everything, "detailed" emits info and above, anything else emits warnings
// and errors only. When logToFile is set, lines are also appended to path;
// a file open failure degrades to stderr-only logging.
func New(logLevel string, logToFile bool, path string) *Logger {
	l := &Logger{min: parseLevel(logLevel), out: os.Stderr}
	if !logToFile {
		return l
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o750)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		l.Warn("log file unavailable, logging to stderr only: %v", err)
		return l
	}
	l.file = f
	return l
}

func parseLevel(raw string) level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return levelDebug
	case "detailed":
		return levelInfo
	default:
		return levelWarn
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.write(levelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.write(levelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.write(levelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.write(levelError, format, args...) }

// Request records one inbound request line at the detailed level.
func (l *Logger) Request(method, path, clientIP, requestID string) {
	l.Info("%s %s client=%s request_id=%s", method, path, clientIP, requestID)
}

func (l *Logger) write(lv level, format string, args ...interface{}) {
	if lv < l.min {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().UTC().Format(time.RFC3339),
		levelNames[lv],
		fmt.Sprintf(format, args...),
	)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
	if l.file != nil {
		_, _ = l.file.WriteString(line)
	}
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
