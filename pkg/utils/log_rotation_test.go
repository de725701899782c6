package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "nested", "app.log")

	w, err := NewRotatingWriter(RotationConfig{
		Filename:   filename,
		MaxSizeMB:  10,
		MaxBackups: 2,
		MaxAgeDays: 7,
		Compress:   true,
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, filename, w.Filename)
	assert.Equal(t, 10, w.MaxSize)
	assert.Equal(t, 2, w.MaxBackups)
	assert.Equal(t, 7, w.MaxAge)
	assert.True(t, w.Compress)

	n, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.FileExists(t, filename)

	require.NoError(t, w.Rotate())
	matches, err := filepath.Glob(filepath.Join(dir, "nested", "app-*.log*"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "rotation keeps a backup")
}

func TestNewRotatingWriter_Invalid(t *testing.T) {
	_, err := NewRotatingWriter(RotationConfig{})
	assert.Error(t, err)

	_, err = NewRotatingWriter(RotationConfig{Filename: filepath.Join(t.TempDir(), "a.log"), MaxBackups: -1})
	assert.Error(t, err)
}
