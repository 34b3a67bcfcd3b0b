// Package log provides a leveled logger with channel-synchronized output.
package log

import (
	"fmt"
	"log"
	"os"
)

// output is used to synchronize writes to standard output. Multi-line
// logging is not possible if all workers print logs at the same time.
var output = make(chan string, 10000)

var global *Logger

// Init inits global logger.
func Init(level string, json bool) {
	global = New(level, json)
}

// Trace prints message in trace mode.
func Trace(msg Message) {
	if global != nil {
		global.printf(LevelTrace, msg)
	}
}

// Debug prints message in debug mode.
func Debug(msg Message) {
	if global != nil {
		global.printf(LevelDebug, msg)
	}
}

// Info prints message in info mode.
func Info(msg Message) {
	if global != nil {
		global.printf(LevelInfo, msg)
	}
}

// Error prints message in error mode.
func Error(msg Message) {
	if global != nil {
		global.printf(LevelError, msg)
	}
}

// Close closes logger and its channel.
func Close() {
	if global != nil {
		global.close()
	}
}

// Logger is a structure for logging messages.
type Logger struct {
	donech chan struct{}
	json   bool
	level  LogLevel
}

// New creates new logger.
func New(level string, json bool) *Logger {
	logger := &Logger{
		donech: make(chan struct{}),
		json:   json,
		level:  LevelFromString(level),
	}
	go logger.out()
	return logger
}

// printf prints message according to the given level, message and logger's
// json mode.
func (l *Logger) printf(level LogLevel, message Message) {
	if level < l.level {
		return
	}

	if l.json {
		output <- message.JSON()
	} else {
		output <- fmt.Sprintf("%v%v", level, message.String())
	}
}

// out drains the output channel to stdout from a single goroutine.
func (l *Logger) out() {
	defer close(l.donech)

	impl := log.New(os.Stdout, "", 0)
	for msg := range output {
		impl.Println(msg)
	}
}

// close closes log channel.
func (l *Logger) close() {
	close(output)
	<-l.donech
}

// LogLevel is the level of Logger.
type LogLevel int

const (
	// LevelTrace is the level for printing more detailed messages than debug
	// level.
	LevelTrace LogLevel = iota

	// LevelDebug is the level for printing debug messages.
	LevelDebug

	// LevelInfo is the level for printing informational messages.
	LevelInfo

	// LevelError is the level for printing error messages.
	LevelError
)

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelInfo:
		return ""
	case LevelError:
		return "ERROR "
	case LevelDebug:
		return "DEBUG "
	case LevelTrace:
		return "TRACE "
	default:
		return "UNKNOWN "
	}
}

// LevelFromString returns LogLevel for given string. It returns LevelInfo as
// a fallback.
func LevelFromString(s string) LogLevel {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
