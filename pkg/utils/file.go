package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDownloadDir checks that dir is a usable directory for received
// files, creating it when only the last path element is missing.
func ResolveDownloadDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, nil
	case err == nil:
		return "", fmt.Errorf("download path '%s' exists but is not a directory", dir)
	case !os.IsNotExist(err):
		return "", fmt.Errorf("cannot access download path: %w", err)
	}

	parent := filepath.Dir(dir)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return "", fmt.Errorf("parent directory does not exist: %s", parent)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	return dir, nil
}

// FormatFileSize formats file size in human readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
