// Package integration provides a test harness for running the fcm-agent
// binary against throwaway agent and data directories.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TestEnv is an isolated agent installation.
type TestEnv struct {
	// Paths
	TempDir  string
	AgentDir string
	DataDir  string
	Binary   string

	agent  *exec.Cmd
	output *lockedBuffer
}

// lockedBuffer collects the background agent's output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestEnv creates the directory layout and builds the agent binary.
func NewTestEnv() (*TestEnv, error) {
	tmpDir, err := os.MkdirTemp("", "fcm-test-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	e := &TestEnv{
		TempDir:  tmpDir,
		AgentDir: filepath.Join(tmpDir, "agent"),
		DataDir:  filepath.Join(tmpDir, "data"),
		Binary:   filepath.Join(tmpDir, "bin", "fcm-agent"),
	}
	for _, dir := range []string{e.AgentDir, e.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			e.Cleanup()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	cmd := exec.Command("go", "build", "-o", e.Binary, "./cmd/fcm-agent/")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.Cleanup()
		return nil, fmt.Errorf("build fcm-agent: %w\n%s", err, out)
	}
	return e, nil
}

// AddModule installs an executable shell module and, when data is non-nil,
// its data file.
func (e *TestEnv) AddModule(name, script string, data []byte) error {
	if err := os.WriteFile(filepath.Join(e.AgentDir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	return os.WriteFile(filepath.Join(e.DataDir, name), data, 0o644)
}

// Run runs the agent to completion and returns its combined output and exit code.
func (e *TestEnv) Run(ctx context.Context, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, e.Binary, e.args(args)...)
	out, err := cmd.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), exitErr.ExitCode(), nil
	}
	return string(out), 0, err
}

// Start launches the agent in the background.
func (e *TestEnv) Start(args ...string) error {
	e.output = &lockedBuffer{}
	e.agent = exec.Command(e.Binary, e.args(args)...)
	e.agent.Stdout = e.output
	e.agent.Stderr = e.output
	return e.agent.Start()
}

// WaitForOutput polls the background agent's output until it contains s.
func (e *TestEnv) WaitForOutput(s string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(e.Output(), s) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

// Output returns what the background agent has written so far.
func (e *TestEnv) Output() string {
	if e.output == nil {
		return ""
	}
	return e.output.String()
}

// Stop sends sig to the background agent and returns its exit code.
func (e *TestEnv) Stop(sig os.Signal) (int, error) {
	if e.agent == nil || e.agent.Process == nil {
		return 0, fmt.Errorf("agent not running")
	}
	if err := e.agent.Process.Signal(sig); err != nil {
		return 0, err
	}
	err := e.agent.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// Cleanup removes the temp directory.
func (e *TestEnv) Cleanup() error {
	return os.RemoveAll(e.TempDir)
}

func (e *TestEnv) args(extra []string) []string {
	return append([]string{"-a", e.AgentDir, "-d", e.DataDir, "--log-format", "text"}, extra...)
}
