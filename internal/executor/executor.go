// Package executor provides an abstraction for starting module processes and
// collecting their exit statuses.
package executor

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrNoChildren is returned by Wait when the process has no children left.
var ErrNoChildren = errors.New("no child processes")

// Status is the decoded termination status of a child process.
type Status struct {
	// Signaled is true when the child was terminated by a signal.
	Signaled bool
	// Code is the exit code of a child that exited normally.
	Code int
	// Signal is the terminating signal when Signaled is set.
	Signal syscall.Signal
}

// Exited returns the status of a child that exited with code.
func Exited(code int) Status {
	return Status{Code: code}
}

// Killed returns the status of a child terminated by sig.
func Killed(sig syscall.Signal) Status {
	return Status{Signaled: true, Signal: sig}
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal %d (%s)", int(s.Signal), s.Signal)
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Exit is a terminated child as observed by a Waiter.
type Exit struct {
	PID    int
	Status Status
}

// Executor starts processes.
type Executor interface {
	// Start launches argv[0] with argv as its argument vector and returns the
	// pid of the new process. An error means no process is running.
	Start(argv []string) (pid int, err error)
}

// Waiter collects terminated children.
type Waiter interface {
	// Wait blocks until any child of the process terminates. It returns
	// ErrNoChildren when there is nothing left to wait for.
	Wait() (Exit, error)
}

// OS is the default Executor and Waiter, backed by os.StartProcess and wait4(2).
//
// os.StartProcess forks and execs in one step. When the exec fails the child
// exits inside the runtime and the failure is returned to the caller, so a
// child can never continue running supervisor code.
type OS struct {
	// Files are the child's stdin, stdout and stderr. Nil inherits ours.
	Files []*os.File
}

var (
	_ Executor = (*OS)(nil)
	_ Waiter   = (*OS)(nil)
)

// Default returns an OS executor that inherits the supervisor's stdio and environment.
func Default() *OS {
	return &OS{}
}

// Start implements Executor.Start using os.StartProcess.
func (e *OS) Start(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	files := e.Files
	if files == nil {
		files = []*os.File{os.Stdin, os.Stdout, os.Stderr}
	}

	// A nil Env inherits the supervisor's environment.
	proc, err := os.StartProcess(argv[0], argv, &os.ProcAttr{Files: files})
	if err != nil {
		return 0, err
	}
	pid := proc.Pid

	// The child is collected by Wait, never through os.Process.
	_ = proc.Release()
	return pid, nil
}

// Wait implements Waiter.Wait using wait4(-1). It observes every child of the
// process, including ones this package did not start.
func (e *OS) Wait() (Exit, error) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return Exit{}, ErrNoChildren
		case err != nil:
			return Exit{}, fmt.Errorf("wait4: %w", err)
		}

		if ws.Stopped() || ws.Continued() {
			continue
		}
		return Exit{PID: pid, Status: decode(ws)}, nil
	}
}

func decode(ws unix.WaitStatus) Status {
	if ws.Signaled() {
		return Killed(ws.Signal())
	}
	return Exited(ws.ExitStatus())
}
