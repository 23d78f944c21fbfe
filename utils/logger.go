package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Logger provides leveled console logging for the server, the dashboard
// commands and the storage layer.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	debugEnabled bool
}

// NewLogger creates a Logger writing to stdout/stderr. Debug lines are only
// emitted when LOG_LEVEL=debug.
func NewLogger() *Logger {
	l := NewLoggerTo(os.Stdout, os.Stderr)
	l.debugEnabled = strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug")
	return l
}

// NewLoggerTo creates a Logger with explicit writers. Errors go to errOut,
// everything else to out. Debug output is enabled.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{
		info:         log.New(out, "", 0),
		warn:         log.New(out, "", 0),
		err:          log.New(errOut, "", 0),
		debug:        log.New(out, "", 0),
		debugEnabled: true,
	}
}

// Discard returns a Logger that drops everything. Used in tests.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, io.Discard)
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debugEnabled {
		return
	}
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s\n", l.timestamp(), format), args...)
}
