package agent

import (
	"log/slog"

	"github.com/mbrock/fcm/internal/executor"
)

// Launcher starts one module process per pair.
type Launcher struct {
	exec    executor.Executor
	log     *slog.Logger
	metrics Metrics
}

// NewLauncher creates a Launcher. A nil logger uses slog.Default and nil
// metrics are discarded.
func NewLauncher(exec executor.Executor, log *slog.Logger, metrics Metrics) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Launcher{exec: exec, log: log, metrics: metrics}
}

// Launch runs pair.ModulePath with pair.DataPath as its only argument. On
// success the child is added to index and its record returned. A spawn
// failure is logged and reported with ok == false; index is left untouched.
func (l *Launcher) Launch(pair ModulePair, index PidIndex) (rec LaunchRecord, ok bool) {
	l.log.Info("running module", "module", pair.Name, "path", pair.ModulePath, "data", pair.DataPath)

	pid, err := l.exec.Start([]string{pair.ModulePath, pair.DataPath})
	if err != nil {
		l.log.Error("failed to start module", "module", pair.Name, "path", pair.ModulePath, "data", pair.DataPath, "error", err)
		l.metrics.LaunchFailed(pair.Name)
		return LaunchRecord{}, false
	}

	rec = LaunchRecord{PID: pid, Name: pair.Name}
	index.Add(rec)
	l.metrics.ModuleLaunched(pair.Name)
	l.log.Debug("module started", "module", pair.Name, "pid", pid)
	return rec, true
}
