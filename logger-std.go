//go:build !tinygo

package cc2420

import (
	"log"
	"os"

	"github.com/mattn/go-isatty"
)

func init() {
	globalLogger = NewStdLogger(LevelInfo)
}

// stdLogger is a default logger that uses the standard library log package.
type stdLogger struct {
	l     *log.Logger
	min   LogLevel
	color bool
}

// NewStdLogger returns a logger writing to stderr through the standard
// library log package, dropping messages below min.
func NewStdLogger(min LogLevel) Logger {
	return &stdLogger{
		l:     log.New(os.Stderr, "cc2420 ", log.LstdFlags|log.Lmicroseconds),
		min:   min,
		color: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

func (l *stdLogger) print(level LogLevel, prefix, msg string) {
	if level < l.min {
		return
	}
	if l.color {
		prefix = levelColors[level] + prefix + "\x1b[0m"
	}
	l.l.Print(prefix + msg)
}

var levelColors = [...]string{
	LevelDebug: "\x1b[90m",
	LevelInfo:  "\x1b[36m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

func (l *stdLogger) Debug(msg string) { l.print(LevelDebug, "[DEBUG] ", msg) }
func (l *stdLogger) Info(msg string)  { l.print(LevelInfo, "[INFO]  ", msg) }
func (l *stdLogger) Warn(msg string)  { l.print(LevelWarn, "[WARN]  ", msg) }
func (l *stdLogger) Error(msg string) { l.print(LevelError, "[ERROR] ", msg) }
