package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand expands the home directory (~) and environment variables in a path.
// It returns an absolute path.
func Expand(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = home
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}

// RealPath resolves symlinks in path and returns the canonical absolute form.
// When the path (or one of its ancestors) does not exist, the deepest existing
// prefix is resolved and the remainder is rejoined, so callers get a stable
// comparison key for paths that have not been created yet.
func RealPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	// Walk up to the nearest existing ancestor and resolve from there.
	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
	}

	return abs
}

// SamePath reports whether two paths denote the same location after
// symlink resolution.
func SamePath(a, b string) bool {
	return RealPath(a) == RealPath(b)
}

// IsWithin reports whether path lies within root (or equals it), comparing
// symlink-resolved forms of both.
func IsWithin(path, root string) bool {
	realPath := RealPath(path)
	realRoot := RealPath(root)
	if realPath == realRoot {
		return true
	}
	return strings.HasPrefix(realPath, realRoot+string(filepath.Separator))
}
