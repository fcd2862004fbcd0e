package logger

import "sync/atomic"

type loggerHolder struct{ Logger }

var defLogger atomic.Pointer[loggerHolder]

func init() {
	defLogger.Store(&loggerHolder{NewSlog(InfoLevel, false)})
}

// Debug logs through the default logger.
func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

// Info logs through the default logger.
func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

// Warn logs through the default logger.
func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

// Error logs through the default logger.
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

// Fatal logs through the default logger and exits.
func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

// SetLevel sets the level of the default logger.
func SetLevel(level Level) { GetLogger().SetLevel(level) }

// SetLogger replaces the default logger. A nil logger is ignored.
//
// Sessions and drivers capture the default logger when they are created;
// replacing it later does not affect them.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&loggerHolder{l})
	}
}

// GetLogger returns the default logger.
func GetLogger() Logger { return defLogger.Load().Logger }

// With returns a child of the default logger.
func With(keyValues ...any) Logger { return GetLogger().With(keyValues...) }
