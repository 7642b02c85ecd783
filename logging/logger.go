package logging

import (
	stdlog "log"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

var (
	defaultLogger = log.NewNopLogger()

	callerKey    interface{} = "caller"
	messageKey   interface{} = "msg"
	errorKey     interface{} = "error"
	timestampKey interface{} = "ts"

	taskKey      interface{} = "task"
	semaphoreKey interface{} = "semaphore"
	pinKey       interface{} = "pin"
)

// CallerKey returns the logging key to be used for the stack location of the logging call
func CallerKey() interface{} {
	return callerKey
}

// MessageKey returns the logging key to be used for the textual message of the log entry
func MessageKey() interface{} {
	return messageKey
}

// ErrorKey returns the logging key to be used for error instances
func ErrorKey() interface{} {
	return errorKey
}

// TimestampKey returns the logging key to be used for the timestamp
func TimestampKey() interface{} {
	return timestampKey
}

// TaskKey returns the logging key under which a task's identifier is logged
func TaskKey() interface{} {
	return taskKey
}

// SemaphoreKey returns the logging key under which a semaphore's name is logged
func SemaphoreKey() interface{} {
	return semaphoreKey
}

// PinKey returns the logging key under which an output pin is logged
func PinKey() interface{} {
	return pinKey
}

// DefaultLogger returns a global singleton NOP logger.
// This returned instance is safe for concurrent access.
func DefaultLogger() log.Logger {
	return defaultLogger
}

// New creates a go-kit Logger from a set of options.  The options object can be nil,
// in which case a logfmt logger that writes to os.Stdout is returned.  The returned logger
// includes the timestamp in UTC format and will filter according to the Level field.
func New(o *Options) log.Logger {
	return NewFilter(
		log.WithPrefix(
			o.loggerFactory()(o.output()),
			TimestampKey(), log.DefaultTimestampUTC,
		),
		o,
	)
}

// NewFilter applies the Options filtering rules in the package to an arbitrary go-kit Logger.
func NewFilter(next log.Logger, o *Options) log.Logger {
	switch strings.ToUpper(o.level()) {
	case "DEBUG":
		return level.NewFilter(next, level.AllowDebug())

	case "INFO":
		return level.NewFilter(next, level.AllowInfo())

	case "WARN":
		return level.NewFilter(next, level.AllowWarn())

	default:
		return level.NewFilter(next, level.AllowError())
	}
}

// ForTask returns a contextual logger that tags every entry with a task identifier
func ForTask(next log.Logger, task string) log.Logger {
	return log.With(next, TaskKey(), task)
}

// Error places both the caller and a constant error level into the prefix of the returned logger.
// Additional key value pairs may also be added.
func Error(next log.Logger, keyvals ...interface{}) log.Logger {
	return log.WithPrefix(
		next,
		append([]interface{}{CallerKey(), log.DefaultCaller, level.Key(), level.ErrorValue()}, keyvals...)...,
	)
}

// Info places both the caller and a constant info level into the prefix of the returned logger.
// Additional key value pairs may also be added.
func Info(next log.Logger, keyvals ...interface{}) log.Logger {
	return log.WithPrefix(
		next,
		append([]interface{}{CallerKey(), log.DefaultCaller, level.Key(), level.InfoValue()}, keyvals...)...,
	)
}

// Warn places both the caller and a constant warn level into the prefix of the returned logger.
// Additional key value pairs may also be added.
func Warn(next log.Logger, keyvals ...interface{}) log.Logger {
	return log.WithPrefix(
		next,
		append([]interface{}{CallerKey(), log.DefaultCaller, level.Key(), level.WarnValue()}, keyvals...)...,
	)
}

// Debug places both the caller and a constant debug level into the prefix of the returned logger.
// Additional key value pairs may also be added.
func Debug(next log.Logger, keyvals ...interface{}) log.Logger {
	return log.WithPrefix(
		next,
		append([]interface{}{CallerKey(), log.DefaultCaller, level.Key(), level.DebugValue()}, keyvals...)...,
	)
}

// NewErrorLog adapts a go-kit Logger onto a golang Logger, as http.Server.ErrorLog and
// promhttp expect.  Output is logged at error level.
func NewErrorLog(next log.Logger) *stdlog.Logger {
	if next == nil {
		next = DefaultLogger()
	}

	return stdlog.New(
		log.NewStdlibAdapter(level.Error(next)),
		"", // having a prefix gives the adapter trouble
		stdlog.LstdFlags|stdlog.LUTC,
	)
}
