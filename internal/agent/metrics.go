package agent

// Metrics receives agent events. Implementations must be cheap; they are
// called inline from the cycle.
type Metrics interface {
	ModuleLaunched(name string)
	LaunchFailed(name string)
	ModuleExited(r ExitReport)
	CycleCompleted(s CycleSummary, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ModuleLaunched(string) {}
func (NopMetrics) LaunchFailed(string) {}
func (NopMetrics) ModuleExited(ExitReport) {}
func (NopMetrics) CycleCompleted(CycleSummary, error) {}

// Notifier reports the agent's state to a service manager.
type Notifier interface {
	Ready()
	Status(msg string)
	Stopping()
}

type nopNotifier struct{}

func (nopNotifier) Ready() {}
func (nopNotifier) Status(string) {}
func (nopNotifier) Stopping() {}
