package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{name: "debug level", input: "DEBUG", expected: slog.LevelDebug},
		{name: "info level", input: "INFO", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "warn level", input: "WARN", expected: slog.LevelWarn},
		{name: "warning level", input: "WARNING", expected: slog.LevelWarn},
		{name: "error level", input: "ERROR", expected: slog.LevelError},
		{name: "case insensitive", input: " debug ", expected: slog.LevelDebug},
		{name: "invalid level", input: "INVALID", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewLogger(LoggerOptions{Level: "WARN", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("probe failed", "bucket", "photos")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "bucket=photos")
}

func TestNewLogger_JSONRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewLogger(LoggerOptions{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("request", "authorization", "AWS4-HMAC-SHA256 Credential=AKID/...", "region", "eu-west-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["authorization"])
	assert.Equal(t, "eu-west-1", entry["region"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "objclient.log")
	logger, closer, err := NewLogger(LoggerOptions{
		Level:    "INFO",
		File:     path,
		Rotation: RotationConfig{MaxSizeMB: 1},
	})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLogger_Errors(t *testing.T) {
	_, _, err := NewLogger(LoggerOptions{Level: "TRACE"})
	assert.Error(t, err)

	_, _, err = NewLogger(LoggerOptions{Format: "xml", Output: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{256 * 1024, "256 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{-2048, "-2.0 KiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{input: "1024", expected: 1024},
		{input: "256KiB", expected: 256 * 1024},
		{input: "5 MiB", expected: 5 * 1024 * 1024},
		{input: "1MB", expected: 1000 * 1000},
		{input: "", wantErr: true},
		{input: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input)+"_case", func(t *testing.T) {
			n, err := ParseBytes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}
