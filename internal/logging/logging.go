// ABOUTME: Levelled printf-style logging for the CLI and the long-running server.
// ABOUTME: Writes to a size-capped file under the XDG state directory.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// MaxFileSize is the size above which the log file is truncated on Init.
const MaxFileSize = 1 << 20

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

var (
	mu     sync.Mutex
	logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	file   *os.File
	minLvl = LevelInfo
)

// DefaultPath returns the log file location, creating parent directories.
func DefaultPath() (string, error) {
	return xdg.StateFile(filepath.Join("agent-toast", "agent-toast.log"))
}

// Init opens path for appending and routes all output there. An empty path
// uses DefaultPath. On failure logging stays on stderr and the error is
// returned for the caller to report or ignore.
func Init(path string) error {
	debug := os.Getenv("AGENT_TOAST_DEBUG") == "1"

	mu.Lock()
	defer mu.Unlock()

	if debug {
		minLvl = LevelDebug
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve log path: %w", err)
		}
		path = p
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if info, err := os.Stat(path); err == nil && info.Size() > MaxFileSize {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if file != nil {
		file.Close()
	}
	file = f

	var out io.Writer = f
	if debug {
		out = io.MultiWriter(f, os.Stderr)
	}
	logger.SetOutput(out)
	return nil
}

// SetOutput redirects logging, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = l
}

// Close flushes and closes the log file, falling back to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Sync()
		file.Close()
		file = nil
	}
	logger.SetOutput(os.Stderr)
}

func logf(l Level, format string, args ...interface{}) {
	mu.Lock()
	skip := l < minLvl
	mu.Unlock()
	if skip {
		return
	}
	logger.Printf("[%s] %s", l, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

func Info(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

func Error(format string, args ...interface{}) { logf(LevelError, format, args...) }
