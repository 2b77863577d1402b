package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Code attaches an error code field to the event
func (e *LogEvent) Code(code errors.ErrorCode) *LogEvent {
	e.Event = e.Event.Str("error_code", string(code))
	return e
}

// Init initializes the logger based on the given configuration
func Init(debug, verbose, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	SetLogLevel(WarnLevel) // Default log level

	if debug {
		SetLogLevel(DebugLevel)
	} else if verbose {
		SetLogLevel(InfoLevel)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// zlogger adapts a zerolog.Logger to the Logger interface.
type zlogger struct {
	zl zerolog.Logger
}

// Get returns the process-wide logger configured by Init.
func Get() Logger {
	return &zlogger{zl: log}
}

// New returns a Logger writing JSON lines to w. Components receive one of
// these in tests.
func New(w io.Writer) Logger {
	return &zlogger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

// With returns a Logger whose events carry the given component name.
func With(l Logger, component string) Logger {
	if z, ok := l.(*zlogger); ok {
		return &zlogger{zl: z.zl.With().Str("component", component).Logger()}
	}

	return l
}

func (l *zlogger) Debug() *LogEvent {
	return &LogEvent{l.zl.Debug()}
}

func (l *zlogger) Info() *LogEvent {
	return &LogEvent{l.zl.Info()}
}

func (l *zlogger) Warn() *LogEvent {
	return &LogEvent{l.zl.Warn()}
}

func (l *zlogger) Error() *LogEvent {
	return &LogEvent{l.zl.Error()}
}

func (l *zlogger) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(l.zl.Error(), err)
}

func (l *zlogger) FatalWithCode(err errors.Error) *LogEvent {
	return withCode(l.zl.Fatal(), err)
}

func (l *zlogger) ErrorWithContext(err errors.Error, component, operation string) *LogEvent {
	ev := withCode(l.zl.Error(), err)
	ev.Event = ev.Event.Str("component", component).Str("operation", operation)
	return ev
}

func withCode(ev *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{ev.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}
