// Package failurelog keeps the durable, append-only trail of non-fatal errors
// encountered while checking citations.
package failurelog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeLayout formats the bracketed prefix of each line.
const TimeLayout = "2006-01-02 15:04:05"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Recorder accepts failure messages. Implementations never return errors.
type Recorder interface {
	Log(message string)
}

// Logger appends one timestamped line per message to a file.
type Logger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	clock  Clock
	logger *zap.Logger
}

// New returns a Logger writing to path. The file is opened on first use.
func New(path string, clock Clock, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{path: path, clock: clock, logger: logger}
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Log appends "[YYYY-MM-DD HH:MM:SS] message". Write failures are reported to
// the zap logger and otherwise swallowed.
func (l *Logger) Log(message string) {
	line := fmt.Sprintf("[%s] %s\n", l.clock.Now().Format(TimeLayout), strings.TrimRight(message, "\r\n"))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302 G304 -- operator-chosen log path.
		if err != nil {
			l.logger.Warn("open failure log", zap.String("path", l.path), zap.Error(err))
			return
		}
		l.file = f
	}
	if _, err := l.file.WriteString(line); err != nil {
		l.logger.Warn("append failure log", zap.String("path", l.path), zap.Error(err))
		return
	}
	if err := l.file.Sync(); err != nil {
		l.logger.Warn("sync failure log", zap.String("path", l.path), zap.Error(err))
	}
}

// Close releases the underlying file, if it was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close failure log: %w", err)
	}
	return nil
}
