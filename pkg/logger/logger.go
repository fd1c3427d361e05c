package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hermes/pkg/errors"
)

var global *Logger

// Logger wraps zap.SugaredLogger. Error-level entries are forwarded to the
// configured error tracker so provider faults show up without extra calls.
type Logger struct {
	*zap.SugaredLogger
	tracker errors.Tracker
}

// Init builds the global logger. Production gets JSON output, everything
// else a colored console encoder.
func Init(level string, env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	global = &Logger{SugaredLogger: zl.Sugar()}
	return nil
}

// SetErrorTracker attaches the error tracker to the global logger.
func SetErrorTracker(tracker errors.Tracker) {
	if global != nil {
		global.tracker = tracker
	}
}

// Get returns the global logger, creating a development fallback when Init
// has not run (tests, early startup failures).
func Get() *Logger {
	if global == nil {
		zl, _ := zap.NewDevelopment()
		global = &Logger{SugaredLogger: zl.Sugar()}
	}
	return global
}

// With creates a child logger with additional key/value fields.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		tracker:       l.tracker,
	}
}

// Error logs at error level and reports to the tracker.
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)
	l.capture(errors.Wrapf(errors.ErrInternal, "%v", args))
}

// Errorf logs a formatted error and reports it to the tracker.
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.capture(fmt.Errorf(template, args...))
}

// Errorw logs a structured error entry. When the fields carry an "error"
// value it is reported to the tracker with the message as context.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok && key == "error" {
			if err, ok := keysAndValues[i+1].(error); ok && err != nil {
				l.capture(errors.Wrap(err, msg))
			}
			return
		}
	}
}

// ErrorWithContext logs an error and reports it with caller-supplied tags.
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Error(err)
	if l.tracker != nil {
		l.tracker.CaptureError(ctx, err, tags)
	}
}

func (l *Logger) capture(err error) {
	if l.tracker == nil {
		return
	}
	l.tracker.CaptureError(context.Background(), err, map[string]string{
		"component": "logger",
	})
}

// Package-level helpers on the global logger.
func Debug(args ...interface{})                   { Get().Debug(args...) }
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Info(args ...interface{})                    { Get().Info(args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warn(args ...interface{})                    { Get().Warn(args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Error(args ...interface{})                   { Get().Error(args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }
func Fatal(args ...interface{})                   { Get().Fatal(args...) }
func Fatalf(template string, args ...interface{}) { Get().Fatalf(template, args...) }

// Sync flushes buffered entries. Called once on shutdown.
func Sync() error {
	if global != nil {
		return global.Sync()
	}
	return nil
}
