package agent

// LaunchRecord ties a started child to the module it runs.
type LaunchRecord struct {
	PID  int
	Name string
}

// PidIndex maps the pids launched in one cycle to their module names.
// Its keys are exactly the children of the cycle that have not been reaped.
// A PidIndex belongs to a single cycle and is never shared between cycles.
type PidIndex map[int]string

// NewPidIndex returns an empty index.
func NewPidIndex() PidIndex {
	return make(PidIndex)
}

// Add records a launched child.
func (ix PidIndex) Add(rec LaunchRecord) {
	ix[rec.PID] = rec.Name
}

// Take removes pid from the index and returns the module it belonged to.
func (ix PidIndex) Take(pid int) (string, bool) {
	name, ok := ix[pid]
	if ok {
		delete(ix, pid)
	}
	return name, ok
}

// Len returns the number of outstanding children.
func (ix PidIndex) Len() int {
	return len(ix)
}
