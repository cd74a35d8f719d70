package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultLogger adapts zerolog to the Logger interface used throughout the
// engine. Callers pass alternating key/value pairs after the message, in the
// style of Debug("msg", "key", value, ...). Keys are expected to be strings;
// anything else is stringified. A trailing key without a value is kept and
// marked so the miscall shows up in the output instead of vanishing.
type DefaultLogger struct {
	logger zerolog.Logger
}

// NewDefaultLogger creates a DefaultLogger with stderr output and timestamps.
func NewDefaultLogger() *DefaultLogger {
	return newLoggerTo(os.Stderr)
}

// NewNopLogger discards everything; handy in tests.
func NewNopLogger() *DefaultLogger {
	return &DefaultLogger{logger: zerolog.Nop()}
}

func newLoggerTo(w io.Writer) *DefaultLogger {
	return &DefaultLogger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *DefaultLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	if len(kv)%2 != 0 {
		kv = append(kv, "(MISSING)")
	}
	for len(kv) >= 2 {
		key, ok := kv[0].(string)
		if !ok {
			key = fmt.Sprint(kv[0])
		}
		ev = ev.Interface(key, kv[1])
		kv = kv[2:]
	}
	ev.Msg(msg)
}

func (l *DefaultLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *DefaultLogger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Info(), msg, keysAndValues)
}

func (l *DefaultLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Warn(), msg, keysAndValues)
}

func (l *DefaultLogger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Error(), msg, keysAndValues)
}
