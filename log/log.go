// Package log wraps the default slog logger with the explorer's logging conventions: causes are
// wrapped into the message, and records keep the caller's source position.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"hermannm.dev/wrap"
)

func Debug(msg string, attrs ...slog.Attr) {
	log(slog.LevelDebug, msg, attrs)
}

func Debugf(format string, args ...any) {
	log(slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func Info(msg string, attrs ...slog.Attr) {
	log(slog.LevelInfo, msg, attrs)
}

func Infof(format string, args ...any) {
	log(slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func Warn(msg string, attrs ...slog.Attr) {
	log(slog.LevelWarn, msg, attrs)
}

func Warnf(format string, args ...any) {
	log(slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

// WarnCause logs a failure that was recovered from.
func WarnCause(err error, msg string, attrs ...slog.Attr) {
	log(slog.LevelWarn, causeMessage(err, msg), attrs)
}

func ErrorCause(err error, msg string, attrs ...slog.Attr) {
	log(slog.LevelError, causeMessage(err, msg), attrs)
}

func causeMessage(err error, msg string) string {
	if err == nil {
		return msg
	}
	if msg != "" {
		err = wrap.Error(err, msg)
	}
	return err.Error()
}

func log(level slog.Level, msg string, attrs []slog.Attr) {
	logger := slog.Default()
	if !logger.Enabled(context.Background(), level) {
		return
	}

	// Follows the example from the slog package of how to properly wrap its functions:
	// https://pkg.go.dev/log/slog#hdr-Wrapping_output_methods
	var callers [1]uintptr
	// Skips 3, because we want to skip:
	// - the call to Callers
	// - the call to log (this function)
	// - the call to the public log function that uses this function
	runtime.Callers(3, callers[:])

	record := slog.NewRecord(time.Now(), level, msg, callers[0])
	record.AddAttrs(attrs...)
	_ = logger.Handler().Handle(context.Background(), record)
}
