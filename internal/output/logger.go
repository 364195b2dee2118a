package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity written in brackets on every log line.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogTimeLayout is the timestamp layout of log lines.
const LogTimeLayout = "2006-01-02 15:04:05"

// Logger appends "[timestamp] [LEVEL] message" lines to a text file. A
// Logger without a file discards everything, so callers never need to check
// whether logging is configured.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenLogger opens path for appending, creating it and its directory when
// needed. An empty path returns a discarding Logger.
func OpenLogger(path string) (*Logger, error) {
	l := &Logger{now: time.Now}
	if path == "" {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = f
	return l, nil
}

// Info logs at INFO.
func (l *Logger) Info(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Warn logs at WARN.
func (l *Logger) Warn(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Error logs at ERROR.
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] [%s] %s\n", l.now().Format(LogTimeLayout), level, msg)
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
