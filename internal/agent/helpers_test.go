package agent

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDirs creates an empty module directory and data directory.
func testDirs(t *testing.T) (moduleDir, dataDir string) {
	t.Helper()
	base := t.TempDir()
	moduleDir = filepath.Join(base, "agent")
	dataDir = filepath.Join(base, "data")
	require.NoError(t, os.Mkdir(moduleDir, 0o755))
	require.NoError(t, os.Mkdir(dataDir, 0o755))
	return moduleDir, dataDir
}

func writeModule(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeData(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name+"\n"), 0o644))
	return path
}

// syncBuffer is a bytes.Buffer safe for use as a log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// recordingMetrics captures every Metrics call.
type recordingMetrics struct {
	mu       sync.Mutex
	launched []string
	failed   []string
	exits    []ExitReport
	cycles   []CycleSummary
	errs     []error
}

func (m *recordingMetrics) ModuleLaunched(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launched = append(m.launched, name)
}

func (m *recordingMetrics) LaunchFailed(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, name)
}

func (m *recordingMetrics) ModuleExited(r ExitReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits = append(m.exits, r)
}

func (m *recordingMetrics) CycleCompleted(s CycleSummary, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, s)
	m.errs = append(m.errs, err)
}

// recordingNotifier captures notifications and runs onStatus for each status.
type recordingNotifier struct {
	mu       sync.Mutex
	events   []string
	onStatus func(string)
}

func (n *recordingNotifier) record(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Ready()    { n.record("ready") }
func (n *recordingNotifier) Stopping() { n.record("stopping") }

func (n *recordingNotifier) Status(msg string) {
	n.record("status")
	if n.onStatus != nil {
		n.onStatus(msg)
	}
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
