package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Zerolog field implementations
func (f StringField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Str(f.Key, f.Value)
}

func (f IntField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Int(f.Key, f.Value)
}

func (f BoolField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Bool(f.Key, f.Value)
}

func (f DurationField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Dur(f.Key, f.Value)
}

func (f ErrorField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Err(f.Value)
}

func (f AnyField) apply(event *zerolog.Event) *zerolog.Event {
	return event.Interface(f.Key, f.Value)
}

// ZerologLogger implements Logger using zerolog
type ZerologLogger struct {
	logger zerolog.Logger
	config *Config
	system string
}

// NewZerologLogger creates a new ZerologLogger
func NewZerologLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var zerologLevel zerolog.Level
	switch config.Level {
	case TraceLevel:
		zerologLevel = zerolog.TraceLevel
	case DebugLevel:
		zerologLevel = zerolog.DebugLevel
	case InfoLevel:
		zerologLevel = zerolog.InfoLevel
	case WarnLevel:
		zerologLevel = zerolog.WarnLevel
	case ErrorLevel:
		zerologLevel = zerolog.ErrorLevel
	case FatalLevel:
		zerologLevel = zerolog.FatalLevel
	default:
		zerologLevel = zerolog.InfoLevel
	}

	var writers []io.Writer

	// Rotating file output for production deployments
	if config.FileConfig != nil && config.FileConfig.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(config.FileConfig.Filename), 0o755); err != nil {
			fmt.Printf("Failed to create log directory: %v\n", err)
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   config.FileConfig.Filename,
				MaxSize:    config.FileConfig.MaxSize,
				MaxAge:     config.FileConfig.MaxAge,
				MaxBackups: config.FileConfig.MaxBackups,
				Compress:   config.FileConfig.Compress,
				LocalTime:  true,
			})
		}
	}

	for _, output := range config.Outputs {
		if config.Format == DefaultFormat {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: "15:04:05",
			})
		} else {
			writers = append(writers, output)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(writer).Level(zerologLevel).With().Timestamp().Logger()

	if config.System != "" {
		logger = logger.With().Str("system", config.System).Logger()
	}

	return &ZerologLogger{
		logger: logger,
		config: config,
		system: config.System,
	}
}

func (zl *ZerologLogger) logWithFields(level zerolog.Level, msg string, fields []TypedField) {
	if zl.logger.GetLevel() > level {
		return
	}

	var event *zerolog.Event
	switch level {
	case zerolog.TraceLevel:
		event = zl.logger.Trace()
	case zerolog.DebugLevel:
		event = zl.logger.Debug()
	case zerolog.InfoLevel:
		event = zl.logger.Info()
	case zerolog.WarnLevel:
		event = zl.logger.Warn()
	case zerolog.ErrorLevel:
		event = zl.logger.Error()
	case zerolog.FatalLevel:
		event = zl.logger.Fatal()
	default:
		return
	}

	for _, field := range fields {
		event = field.apply(event)
	}

	event.Msg(msg)
}

func (zl *ZerologLogger) Trace(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.TraceLevel, msg, fields)
}

func (zl *ZerologLogger) Debug(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.DebugLevel, msg, fields)
}

func (zl *ZerologLogger) Info(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.InfoLevel, msg, fields)
}

func (zl *ZerologLogger) Warn(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.WarnLevel, msg, fields)
}

func (zl *ZerologLogger) Error(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.ErrorLevel, msg, fields)
}

func (zl *ZerologLogger) Fatal(msg string, fields ...TypedField) {
	zl.logWithFields(zerolog.FatalLevel, msg, fields)
}

// WithSystem creates a new logger scoped to a named system
func (zl *ZerologLogger) WithSystem(name string) Logger {
	newConfig := *zl.config
	newConfig.System = name
	return NewZerologLogger(&newConfig)
}

// WithFields creates a new logger with additional fields
func (zl *ZerologLogger) WithFields(fields ...TypedField) Logger {
	if len(fields) == 0 {
		return zl
	}

	ctx := zl.logger.With()
	for _, field := range fields {
		switch f := field.(type) {
		case StringField:
			ctx = ctx.Str(f.Key, f.Value)
		case IntField:
			ctx = ctx.Int(f.Key, f.Value)
		case BoolField:
			ctx = ctx.Bool(f.Key, f.Value)
		case DurationField:
			ctx = ctx.Dur(f.Key, f.Value)
		case ErrorField:
			ctx = ctx.Err(f.Value)
		case AnyField:
			ctx = ctx.Interface(f.Key, f.Value)
		}
	}

	return &ZerologLogger{
		logger: ctx.Logger(),
		config: zl.config,
		system: zl.system,
	}
}

// IsLevelEnabled checks if a log level is enabled
func (zl *ZerologLogger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case TraceLevel:
		return zl.logger.GetLevel() <= zerolog.TraceLevel
	case DebugLevel:
		return zl.logger.GetLevel() <= zerolog.DebugLevel
	case InfoLevel:
		return zl.logger.GetLevel() <= zerolog.InfoLevel
	case WarnLevel:
		return zl.logger.GetLevel() <= zerolog.WarnLevel
	case ErrorLevel:
		return zl.logger.GetLevel() <= zerolog.ErrorLevel
	case FatalLevel:
		return zl.logger.GetLevel() <= zerolog.FatalLevel
	default:
		return false
	}
}

// NewNopLogger returns a logger that discards everything. Useful in tests.
func NewNopLogger() Logger {
	return NewZerologLogger(&Config{
		Level:   FatalLevel,
		Format:  JSONFormat,
		Outputs: []io.Writer{io.Discard},
	})
}
