package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig holds configuration for log rotation
type RotationConfig struct {
	// Filename is the file to write logs to
	Filename string

	// MaxSizeMB is the size in megabytes that triggers rotation (0 = 100MB)
	MaxSizeMB int

	// MaxAgeDays is the number of days rotated files are kept (0 = forever)
	MaxAgeDays int

	// MaxBackups is the number of rotated files kept (0 = all)
	MaxBackups int

	// Compress gzips rotated files
	Compress bool

	// LocalTime uses local time in backup file names
	LocalTime bool
}

// NewRotatingWriter returns a size-rotated log writer. The parent directory
// is created if missing.
func NewRotatingWriter(config RotationConfig) (*lumberjack.Logger, error) {
	if config.Filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if config.MaxSizeMB < 0 || config.MaxAgeDays < 0 || config.MaxBackups < 0 {
		return nil, fmt.Errorf("rotation limits must not be negative")
	}
	if err := os.MkdirAll(filepath.Dir(config.Filename), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Filename,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
		LocalTime:  config.LocalTime,
	}, nil
}
