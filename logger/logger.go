package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "info"
	}
}

// ParseLogLevel parses a string to LogLevel. Unrecognized strings map to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error", "err":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// OutputFormat represents the output format
type OutputFormat int

const (
	JSONFormat OutputFormat = iota
	DefaultFormat
)

// ParseOutputFormat parses a string to OutputFormat
func ParseOutputFormat(format string) OutputFormat {
	switch strings.ToLower(format) {
	case "json":
		return JSONFormat
	default:
		return DefaultFormat
	}
}

// TypedField represents a type-safe field for structured logging
type TypedField interface {
	apply(event *zerolog.Event) *zerolog.Event
}

type (
	StringField struct {
		Key   string
		Value string
	}
	IntField struct {
		Key   string
		Value int
	}
	BoolField struct {
		Key   string
		Value bool
	}
	DurationField struct {
		Key   string
		Value time.Duration
	}
	ErrorField struct {
		Key   string
		Value error
	}
	AnyField struct {
		Key   string
		Value interface{}
	}
)

// Type-safe field constructors
func String(key, value string) TypedField {
	return StringField{Key: key, Value: value}
}

func Int(key string, value int) TypedField {
	return IntField{Key: key, Value: value}
}

func Bool(key string, value bool) TypedField {
	return BoolField{Key: key, Value: value}
}

func Duration(key string, value time.Duration) TypedField {
	return DurationField{Key: key, Value: value}
}

func Err(value error) TypedField {
	return ErrorField{Key: "error", Value: value}
}

func Any(key string, value interface{}) TypedField {
	return AnyField{Key: key, Value: value}
}

// Logger defines the public interface for logging
type Logger interface {
	Trace(msg string, fields ...TypedField)
	Debug(msg string, fields ...TypedField)
	Info(msg string, fields ...TypedField)
	Warn(msg string, fields ...TypedField)
	Error(msg string, fields ...TypedField)
	Fatal(msg string, fields ...TypedField)

	// Subsystem support
	WithSystem(name string) Logger

	// Context support
	WithFields(fields ...TypedField) Logger

	// Level checking
	IsLevelEnabled(level LogLevel) bool
}
