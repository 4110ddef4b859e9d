package core

import (
	"fmt"
	"os"
	"time"
)

var loggerInstance Logger = *NewDevelopmentLogger()

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// Logger is a minimal leveled logger. The handler func receives the level,
// the formatted message and the accumulated attributes, so callers can plug
// in any backend (console, log shipper, test capture).
type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a logger with plain console output.
func NewDevelopmentLogger() *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		timestamp := time.Now().Format(time.RFC3339)
		attrStr := ""
		for k, v := range attrs {
			attrStr += fmt.Sprintf(" %s=%v", k, v)
		}
		logLine := fmt.Sprintf("%s [%s] %s%s\n", timestamp, level, msg, attrStr)
		if level == "FATAL" {
			fmt.Fprint(os.Stderr, logLine)
			os.Exit(1)
		}
		fmt.Print(logLine)
	}

	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc == nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

func (l *Logger) Debug(msg string) { l.log("DEBUG", msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log("DEBUG", format, args...) }

func (l *Logger) Info(msg string) { l.log("INFO", msg) }

func (l *Logger) Infof(format string, args ...interface{}) { l.log("INFO", format, args...) }

func (l *Logger) Warn(msg string) { l.log("WARN", msg) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.log("WARN", format, args...) }

func (l *Logger) Error(msg string) { l.log("ERROR", msg) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.log("ERROR", format, args...) }

func (l *Logger) Fatal(msg string) { l.log("FATAL", msg) }

// With returns a child logger carrying the given attributes in addition to
// the parent's.
func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combined := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combined[k] = v
	}
	for k, v := range attrs {
		combined[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combined,
	}
}
