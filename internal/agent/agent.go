// Package agent runs modules in cycles.
//
// Each cycle scans the module directory for executables that have a data
// file of the same name in the data directory, starts one process per pair,
// waits for all of them to terminate and reports how each one ended. Cycles
// never overlap: the next scan starts only after the previous cycle's
// children are all reaped.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbrock/fcm/internal/config"
	"github.com/mbrock/fcm/internal/executor"
)

// ErrPersistentFailure is returned by Run when too many cycles in a row failed.
var ErrPersistentFailure = errors.New("cycles keep failing")

// CycleSummary counts what happened during one cycle.
type CycleSummary struct {
	Matched        int
	Launched       int
	LaunchFailures int
	// Exited counts modules that exited with code 0, Failed those with any
	// other code, Signaled those killed by a signal.
	Exited   int
	Failed   int
	Signaled int
	Unknown  int
	Lost     int
	Duration time.Duration
}

func (s *CycleSummary) add(r ExitReport) {
	switch {
	case r.Kind == KindSignaled:
		s.Signaled++
	case r.Code == 0:
		s.Exited++
	default:
		s.Failed++
	}
}

func (s CycleSummary) String() string {
	return fmt.Sprintf("%d matched, %d launched, %d ok, %d failed, %d signaled",
		s.Matched, s.Launched, s.Exited, s.Failed, s.Signaled)
}

// Options configures an Agent. Zero values select the defaults.
type Options struct {
	// Executor starts module processes. Defaults to executor.Default().
	Executor executor.Executor
	// Waiter reaps them. Defaults to the Executor when it is also a Waiter.
	Waiter   executor.Waiter
	Logger   *slog.Logger
	Metrics  Metrics
	Notifier Notifier
}

// Agent is the cycle controller.
type Agent struct {
	cfg      config.Config
	log      *slog.Logger
	launcher *Launcher
	reaper   *Reaper
	metrics  Metrics
	notifier Notifier
}

// New creates an Agent for cfg.
func New(cfg config.Config, opts Options) *Agent {
	if opts.Executor == nil {
		opts.Executor = executor.Default()
	}
	if opts.Waiter == nil {
		if w, ok := opts.Executor.(executor.Waiter); ok {
			opts.Waiter = w
		} else {
			opts.Waiter = executor.Default()
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	return &Agent{
		cfg:      cfg,
		log:      opts.Logger,
		launcher: NewLauncher(opts.Executor, opts.Logger, opts.Metrics),
		reaper:   NewReaper(opts.Waiter, opts.Logger),
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
	}
}

// Run executes cycles until ctx is cancelled, or once when the agent is
// configured to run once. A failed cycle is logged and the next one runs
// after the usual sleep; Run gives up with ErrPersistentFailure after
// MaxCycleFailures consecutive failures. In run-once mode the cycle's error
// is returned directly.
func (a *Agent) Run(ctx context.Context) error {
	a.notifier.Ready()
	defer a.notifier.Stopping()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		a.log.Info("waking up for run", "agent_dir", a.cfg.AgentDir, "data_dir", a.cfg.DataDir)
		summary, err := a.RunCycle(ctx)
		a.metrics.CycleCompleted(summary, err)

		if err != nil {
			failures++
			a.log.Error("cycle failed", "error", err, "consecutive_failures", failures)
			a.notifier.Status(fmt.Sprintf("cycle failed: %v", err))
			if a.cfg.Once {
				return err
			}
			if a.cfg.MaxCycleFailures > 0 && failures >= a.cfg.MaxCycleFailures {
				return fmt.Errorf("%w: %d in a row: %w", ErrPersistentFailure, failures, err)
			}
		} else {
			failures = 0
			a.log.Info("cycle complete",
				"matched", summary.Matched,
				"launched", summary.Launched,
				"launch_failures", summary.LaunchFailures,
				"ok", summary.Exited,
				"failed", summary.Failed,
				"signaled", summary.Signaled,
				"duration", summary.Duration)
			a.notifier.Status("last cycle: " + summary.String())
		}

		if a.cfg.Once {
			a.log.Info("loop end, run once")
			return nil
		}

		a.log.Info("loop end, sleeping", "interval", a.cfg.Interval)
		if !sleep(ctx, a.cfg.Interval) {
			return nil
		}
	}
}

// RunCycle performs one scan, launch and reap pass. All state it builds is
// local to the call. Cancelling ctx stops further launches but the children
// already started are still reaped before RunCycle returns.
func (a *Agent) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	var summary CycleSummary

	pairs, err := Scan(a.cfg.AgentDir, a.cfg.DataDir, a.log)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, fmt.Errorf("scanning: %w", err)
	}
	summary.Matched = len(pairs)

	index := NewPidIndex()
	for _, pair := range pairs {
		if ctx.Err() != nil {
			a.log.Warn("shutting down, not starting remaining modules", "remaining", len(pairs)-summary.Launched-summary.LaunchFailures)
			break
		}
		if _, ok := a.launcher.Launch(pair, index); ok {
			summary.Launched++
		} else {
			summary.LaunchFailures++
		}
	}

	stats, err := a.reaper.Reap(index, func(r ExitReport) {
		a.report(r)
		summary.add(r)
	})
	summary.Unknown = stats.Unknown
	summary.Lost = stats.Lost
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, fmt.Errorf("reaping: %w", err)
	}
	return summary, nil
}

func (a *Agent) report(r ExitReport) {
	a.metrics.ModuleExited(r)
	switch {
	case r.Kind == KindSignaled:
		a.log.Warn("module terminated by signal", "module", r.Name, "pid", r.PID, "signal", int(r.Signal), "signal_name", r.Signal.String())
	case r.Code != 0:
		a.log.Warn("module exited", "module", r.Name, "pid", r.PID, "code", r.Code)
	default:
		a.log.Info("module exited", "module", r.Name, "pid", r.PID, "code", r.Code)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
