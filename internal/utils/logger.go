package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Logger writes timestamped lines to a log file. When the file cannot be
// opened it falls back to stdout so the agent never loses messages.
type Logger struct {
	writeFile *os.File
	path      string
}

// NewLogger opens the given log file for appending. If the file cannot be
// opened, logs will be written to stdout.
func NewLogger(logFile string) *Logger {
	logger := &Logger{path: logFile}
	if logFile == "" {
		return logger
	}

	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)

	var err error
	logger.writeFile, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: error opening log file (%s): %v\n",
			time.Now().Format("2006-01-02 15:04:05"), logFile, err)
	}
	return logger
}

// Write appends a timestamped message to the log (or stdout when no file).
func (l *Logger) Write(message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logMessage := fmt.Sprintf("%s: %s\n", timestamp, message)
	if l != nil && l.writeFile != nil {
		l.writeFile.WriteString(logMessage)
		l.writeFile.Sync()
		return
	}
	fmt.Print(logMessage)
}

// Writef formats and appends a timestamped message.
func (l *Logger) Writef(format string, args ...interface{}) {
	l.Write(fmt.Sprintf(format, args...))
}

// Path returns the log file path this logger was opened with.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close flushes and closes the underlying file handle.
func (l *Logger) Close() {
	if l != nil && l.writeFile != nil {
		l.writeFile.Close()
	}
}
