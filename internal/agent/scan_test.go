package agent

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairNames(pairs []ModulePair) []string {
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func TestScan_Pairs(t *testing.T) {
	moduleDir, dataDir := testDirs(t)

	// Both regular files.
	writeModule(t, moduleDir, "a", "exit 0")
	writeData(t, dataDir, "a")
	// Module without data.
	writeModule(t, moduleDir, "b", "exit 0")
	// Data without module.
	writeData(t, dataDir, "c")
	// Module entry is a directory.
	require.NoError(t, os.Mkdir(filepath.Join(moduleDir, "d"), 0o755))
	writeData(t, dataDir, "d")
	// Data entry is a directory.
	writeModule(t, moduleDir, "e", "exit 0")
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, "e"), 0o755))
	// Symlinked module resolves to a regular file.
	target := writeModule(t, t.TempDir(), "real-f", "exit 0")
	require.NoError(t, os.Symlink(target, filepath.Join(moduleDir, "f")))
	writeData(t, dataDir, "f")
	// Dangling symlink.
	require.NoError(t, os.Symlink(filepath.Join(moduleDir, "nowhere"), filepath.Join(moduleDir, "g")))
	writeData(t, dataDir, "g")

	log, buf := testLogger()
	pairs, err := Scan(moduleDir, dataDir, log)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "f"}, pairNames(pairs))
	for _, p := range pairs {
		assert.Equal(t, filepath.Join(moduleDir, p.Name), p.ModulePath)
		assert.Equal(t, filepath.Join(dataDir, p.Name), p.DataPath)
	}
	assert.Contains(t, buf.String(), "skipping (not a file)")
}

func TestScan_EmptyDirectories(t *testing.T) {
	moduleDir, dataDir := testDirs(t)

	pairs, err := Scan(moduleDir, dataDir, nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestScan_MissingModuleDir(t *testing.T) {
	_, dataDir := testDirs(t)

	_, err := Scan(filepath.Join(t.TempDir(), "missing"), dataDir, nil)
	assert.Error(t, err)
}

func TestScan_MissingDataDir(t *testing.T) {
	moduleDir, _ := testDirs(t)
	writeModule(t, moduleDir, "a", "exit 0")

	_, err := Scan(moduleDir, filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

// TestScan_MatchesBothRegular checks, over random layouts, that the result is
// exactly the set of names that are regular files in both directories.
func TestScan_MatchesBothRegular(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	kinds := []string{"none", "file", "dir"}

	for round := 0; round < 20; round++ {
		moduleDir, dataDir := testDirs(t)
		var want []string

		for i := 0; i < 8; i++ {
			name := "m" + strings.Repeat("x", i)
			mk := kinds[rng.Intn(len(kinds))]
			dk := kinds[rng.Intn(len(kinds))]
			for _, side := range []struct{ dir, kind string }{{moduleDir, mk}, {dataDir, dk}} {
				path := filepath.Join(side.dir, name)
				switch side.kind {
				case "file":
					require.NoError(t, os.WriteFile(path, nil, 0o755))
				case "dir":
					require.NoError(t, os.Mkdir(path, 0o755))
				}
			}
			if mk == "file" && dk == "file" {
				want = append(want, name)
			}
		}
		sort.Strings(want)

		pairs, err := Scan(moduleDir, dataDir, nil)
		require.NoError(t, err)
		got := pairNames(pairs)
		if len(want) == 0 {
			assert.Empty(t, got, "round %d", round)
		} else {
			assert.Equal(t, want, got, "round %d", round)
		}
	}
}
