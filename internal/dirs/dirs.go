// Package dirs resolves and checks the agent's module and data directories.
package dirs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotDirectory is returned by Check when a path is missing or is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Resolve returns the absolute, symlink-free form of path. Paths that do not
// exist yet are returned absolute but otherwise unchanged, so Check can
// report them.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Check returns an error unless path exists and is a directory.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotDirectory, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	return nil
}
