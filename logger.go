package cc2420

// Logger defines the logging interface for simple string messages.
// Soft errors raised by the emulated chip (rejected strobes, denied
// accesses, FIFO misuse) are reported through it and never abort the
// simulation.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogLevel is the minimum severity a leveled logger forwards.
type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

var globalLogger Logger = &nopLogger{}

// SetLogger sets the global logger instance used by devices created
// without an explicit Config.Logger.
func SetLogger(l Logger) {
	if l == nil {
		globalLogger = &nopLogger{}
		return
	}
	globalLogger = l
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return &nopLogger{} }

// nopLogger is a logger that does nothing.
type nopLogger struct{}

func (l *nopLogger) Debug(msg string) {}
func (l *nopLogger) Info(msg string)  {}
func (l *nopLogger) Warn(msg string)  {}
func (l *nopLogger) Error(msg string) {}

// DefaultLogger returns the logger installed with SetLogger.
func DefaultLogger() Logger { return globalLogger }
