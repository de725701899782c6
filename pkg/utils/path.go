package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// SecureJoin joins elements onto base and fails if the result escapes base
// through ".." segments.
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)

	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) &&
		fullPath != cleanBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return fullPath, nil
}

// LocalPathForKey maps an object key to a file under dir. Keys are
// slash-separated regardless of the local OS; keys that are empty, end in
// a slash, or would leave dir are rejected.
//
// Example usage:
//
//	dst, err := LocalPathForKey("./downloads", "logs/2024/app.log")
//	// dst == "downloads/logs/2024/app.log"
func LocalPathForKey(dir, key string) (string, error) {
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("key %q does not name a file", key)
	}
	cleaned := path.Clean("/" + key)
	if cleaned != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("key %q is not a canonical path", key)
	}
	return SecureJoin(dir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
}
