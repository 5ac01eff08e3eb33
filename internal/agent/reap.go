package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/mbrock/fcm/internal/executor"
)

// Kind says how a module process terminated.
type Kind int

const (
	// KindExited is a normal exit carrying an exit code.
	KindExited Kind = iota
	// KindSignaled is termination by a signal.
	KindSignaled
)

func (k Kind) String() string {
	switch k {
	case KindExited:
		return "exited"
	case KindSignaled:
		return "signaled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ExitReport describes one reaped module process.
type ExitReport struct {
	Name   string
	PID    int
	Kind   Kind
	Code   int
	Signal syscall.Signal
}

func newExitReport(name string, exit executor.Exit) ExitReport {
	r := ExitReport{Name: name, PID: exit.PID}
	if exit.Status.Signaled {
		r.Kind = KindSignaled
		r.Signal = exit.Status.Signal
	} else {
		r.Kind = KindExited
		r.Code = exit.Status.Code
	}
	return r
}

// Success reports whether the module exited normally with code 0.
func (r ExitReport) Success() bool {
	return r.Kind == KindExited && r.Code == 0
}

// ReapStats counts the children a Reap call did not attribute to a module.
type ReapStats struct {
	// Unknown is the number of reaped pids that were not in the index.
	Unknown int
	// Lost is the number of indexed pids that vanished without being
	// observed, because something else collected them.
	Lost int
}

// Reaper collects the children launched in a cycle.
type Reaper struct {
	wait executor.Waiter
	log  *slog.Logger
}

// NewReaper creates a Reaper. A nil logger uses slog.Default.
func NewReaper(wait executor.Waiter, log *slog.Logger) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{wait: wait, log: log}
}

// Reap blocks until every child in index has terminated, calling emit for
// each one in termination order and removing it from index. Children that
// are not in index are reaped and dropped. The loop ends when index is empty
// or no children remain; either way index is empty on a nil return.
//
// A wait error other than running out of children is returned and leaves
// the remaining entries in index.
func (r *Reaper) Reap(index PidIndex, emit func(ExitReport)) (ReapStats, error) {
	var stats ReapStats
	for index.Len() > 0 {
		exit, err := r.wait.Wait()
		if errors.Is(err, executor.ErrNoChildren) {
			for pid, name := range index {
				r.log.Warn("module process disappeared before it was reaped", "module", name, "pid", pid)
				delete(index, pid)
				stats.Lost++
			}
			break
		}
		if err != nil {
			return stats, fmt.Errorf("waiting for modules (%d outstanding): %w", index.Len(), err)
		}

		name, ok := index.Take(exit.PID)
		if !ok {
			r.log.Debug("reaped unknown child", "pid", exit.PID, "status", exit.Status.String())
			stats.Unknown++
			continue
		}
		emit(newExitReport(name, exit))
	}
	return stats, nil
}
