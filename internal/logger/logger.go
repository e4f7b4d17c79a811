package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	files      []*os.File
	mu         sync.Mutex
}

// NewLogger creates a Logger that writes each level to its own file in logDir
// as well as to stdout (info, warning) or stderr (error).
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}

	writers := make(map[string]io.Writer, 3)
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, file)
		writers[name] = file
	}

	l.setupLoggers(
		io.MultiWriter(os.Stdout, writers[InfoFile]),
		io.MultiWriter(os.Stdout, writers[WarningFile]),
		io.MultiWriter(os.Stderr, writers[ErrorFile]),
	)
	return l, nil
}

// New creates a Logger that writes every level to w. It keeps no files, so
// CleanLogs is a no-op. Used by the CLI and tests.
func New(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	l := &Logger{}
	l.setupLoggers(w, w, w)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

func (l *Logger) setupLoggers(info, warning, errw io.Writer) {
	l.infoLog = log.New(info, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errw, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// Dir returns the log directory, or "" for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}

	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
