package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ModulePair is a module executable matched by name with its data file.
type ModulePair struct {
	// Name is the shared file name and identifies the module.
	Name       string
	ModulePath string
	DataPath   string
}

// Scan lists moduleDir and returns a pair for every entry that is a regular
// file there and has a same-named regular file in dataDir. Symlinks are
// followed. Entries that fail either check are skipped. The order of the
// result is unspecified.
//
// Errors opening either directory fail the scan. Errors on a single entry
// only skip that entry.
func Scan(moduleDir, dataDir string, log *slog.Logger) ([]ModulePair, error) {
	if log == nil {
		log = slog.Default()
	}

	entries, err := os.ReadDir(moduleDir)
	if err != nil {
		return nil, fmt.Errorf("reading module directory: %w", err)
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening data directory: %s is not a directory", dataDir)
	}

	var pairs []ModulePair
	for _, entry := range entries {
		name := entry.Name()
		modulePath := filepath.Join(moduleDir, name)
		dataPath := filepath.Join(dataDir, name)
		log.Debug("found module entry", "path", modulePath)

		if !isRegular(modulePath) || !isRegular(dataPath) {
			log.Debug("skipping (not a file)", "module", name, "path", modulePath)
			continue
		}
		pairs = append(pairs, ModulePair{
			Name:       name,
			ModulePath: modulePath,
			DataPath:   dataPath,
		})
	}
	return pairs, nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
