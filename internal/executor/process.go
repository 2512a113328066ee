package executor

import (
	"os/exec"
	"sync"
)

// ProcessTable tracks every child spawned by the executors so teardown can
// disown the ones still running. It is shared by concurrent dispatches.
type ProcessTable struct {
	procs map[int]*exec.Cmd
	next  int
	mu    sync.Mutex
}

// NewProcessTable creates an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[int]*exec.Cmd)}
}

// Track registers a started command and returns its slot.
func (t *ProcessTable) Track(cmd *exec.Cmd) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.procs[t.next] = cmd
	return t.next
}

// Untrack forgets the command in slot id.
func (t *ProcessTable) Untrack(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, id)
}

// Len returns the number of live children.
func (t *ProcessTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// Release disowns every live child without signalling it and returns how
// many were released. Remote commands keep running on their hosts.
func (t *ProcessTable) Release() int {
	t.mu.Lock()
	procs := t.procs
	t.procs = make(map[int]*exec.Cmd)
	t.mu.Unlock()

	n := 0
	for _, cmd := range procs {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Release(); err == nil {
			n++
		}
	}
	return n
}
