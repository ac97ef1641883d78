// Package logging provides structured logging for the bot and its workers.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Format represents the output format for logs
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var levelOrder = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// Logger provides structured logging capabilities
type Logger struct {
	level  Level
	format Format
	output io.Writer
	fields map[string]interface{}
}

// entry is the serialized form of a single log line
type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// New creates a new logger instance writing to stdout
func New(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: os.Stdout,
		fields: make(map[string]interface{}),
	}
}

// WithField returns a logger with an extra field attached to every entry
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with extra fields attached to every entry
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: merged,
	}
}

// WithError attaches an error field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// Debug logs a debug message
func (l *Logger) Debug(message string) { l.log(LevelDebug, message) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(message string) { l.log(LevelInfo, message) }

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string) { l.log(LevelWarn, message) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(message string) { l.log(LevelError, message) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string) {
	l.log(LevelFatal, message)
	os.Exit(1)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelFatal, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// SetOutput sets the output writer for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

func (l *Logger) log(level Level, message string) {
	if levelOrder[level] < levelOrder[l.level] {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    l.fields,
	}

	// Caller information only for errors and above
	if levelOrder[level] >= levelOrder[LevelError] {
		if _, file, line, ok := runtime.Caller(2); ok {
			e.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	var output string
	if l.format == FormatJSON {
		jsonBytes, _ := json.Marshal(e)
		output = string(jsonBytes)
	} else {
		output = l.formatText(e)
	}

	fmt.Fprintln(l.output, output)
}

func (l *Logger) formatText(e entry) string {
	output := fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Level, e.Message)

	if len(e.Fields) > 0 {
		fieldsJSON, _ := json.Marshal(e.Fields)
		output += fmt.Sprintf(" fields=%s", string(fieldsJSON))
	}

	if e.Caller != "" {
		output += fmt.Sprintf(" caller=%s", e.Caller)
	}

	return output
}

// ParseLevel parses a string into a Level, defaulting to info
func ParseLevel(level string) Level {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// ParseFormat parses a string into a Format, defaulting to json
func ParseFormat(format string) Format {
	switch format {
	case "text":
		return FormatText
	default:
		return FormatJSON
	}
}

// Global logger, initialized once by the entrypoint

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Init initializes the process-wide logger
func Init(level Level, format Format) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = New(level, format)
}

// Global returns the process-wide logger
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = New(LevelInfo, FormatJSON)
	}
	return globalLogger
}
