package logger

import (
	"io"
	"os"
)

// Config holds the configuration for the logger
type Config struct {
	Level      LogLevel
	Format     OutputFormat
	Outputs    []io.Writer
	System     string
	FileConfig *FileConfig
}

// FileConfig configures rotating file output
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:   InfoLevel,
		Format:  DefaultFormat,
		Outputs: []io.Writer{os.Stdout},
	}
}
