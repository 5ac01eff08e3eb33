package executor

import (
	"fmt"
	"os"
	"sync"
	"syscall"
)

// FakeCommand simulates a module run. It receives the full argument vector
// and returns the status the fake child terminates with.
type FakeCommand func(args []string) Status

// Fake is a test implementation of Executor and Waiter. Registered commands
// run in goroutines and their exits are delivered by Wait in the order the
// commands return.
type Fake struct {
	mu       sync.Mutex
	commands map[string]FakeCommand
	nextPID  int
	live     int
	waitErrs []error
	started  [][]string

	exits chan Exit
}

var (
	_ Executor = (*Fake)(nil)
	_ Waiter   = (*Fake)(nil)
)

// NewFake creates a new Fake.
func NewFake() *Fake {
	return &Fake{
		commands: make(map[string]FakeCommand),
		nextPID:  1000,
		exits:    make(chan Exit, 64),
	}
}

// RegisterCommand registers a fake command implementation.
// The name should match the first element of the argument vector.
func (f *Fake) RegisterCommand(name string, cmd FakeCommand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[name] = cmd
}

// Start implements Executor.Start. Unregistered commands fail like a missing
// executable would.
func (f *Fake) Start(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	f.mu.Lock()
	cmd, ok := f.commands[argv[0]]
	if !ok {
		f.mu.Unlock()
		return 0, &os.PathError{Op: "fork/exec", Path: argv[0], Err: syscall.ENOENT}
	}
	pid := f.nextPID
	f.nextPID++
	f.live++
	f.started = append(f.started, append([]string(nil), argv...))
	f.mu.Unlock()

	go func() {
		f.exits <- Exit{PID: pid, Status: cmd(argv)}
	}()
	return pid, nil
}

// Orphan injects the exit of a child that was never started through Start,
// like a stray process inherited by the supervisor.
func (f *Fake) Orphan(pid int, status Status) {
	f.mu.Lock()
	f.live++
	f.mu.Unlock()
	f.exits <- Exit{PID: pid, Status: status}
}

// FailWait makes the next call to Wait return err.
func (f *Fake) FailWait(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErrs = append(f.waitErrs, err)
}

// Wait implements Waiter.Wait.
func (f *Fake) Wait() (Exit, error) {
	f.mu.Lock()
	if len(f.waitErrs) > 0 {
		err := f.waitErrs[0]
		f.waitErrs = f.waitErrs[1:]
		f.mu.Unlock()
		return Exit{}, err
	}
	if f.live == 0 {
		f.mu.Unlock()
		return Exit{}, ErrNoChildren
	}
	f.mu.Unlock()

	exit := <-f.exits

	f.mu.Lock()
	f.live--
	f.mu.Unlock()
	return exit, nil
}

// Started returns the argument vectors of every successful Start, in order.
func (f *Fake) Started() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.started))
	copy(out, f.started)
	return out
}

// Live returns the number of children that have not been waited for.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}
