//go:build tinygo

package cc2420

import (
	"machine"
)

func init() {
	globalLogger = NewStdLogger(LevelInfo)
}

// serialLogger writes to machine.Serial directly to avoid the memory
// overhead of the log package on microcontrollers.
type serialLogger struct {
	min LogLevel
}

// NewStdLogger returns a serial console logger dropping messages below min.
func NewStdLogger(min LogLevel) Logger {
	return &serialLogger{min: min}
}

func (l *serialLogger) log(level LogLevel, prefix, msg string) {
	if level < l.min {
		return
	}
	machine.Serial.Write([]byte("cc2420 "))
	machine.Serial.Write([]byte(prefix))
	machine.Serial.Write([]byte(msg))
	machine.Serial.Write([]byte("\r\n"))
}

func (l *serialLogger) Debug(msg string) { l.log(LevelDebug, "[DEBUG] ", msg) }
func (l *serialLogger) Info(msg string)  { l.log(LevelInfo, "[INFO]  ", msg) }
func (l *serialLogger) Warn(msg string)  { l.log(LevelWarn, "[WARN]  ", msg) }
func (l *serialLogger) Error(msg string) { l.log(LevelError, "[ERROR] ", msg) }
