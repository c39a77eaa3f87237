// Package fixtures provides shared fakes and builders for unit and integration tests.
package fixtures

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// FakeProcessTable is a domain.ProcessManager over a fixed set of named
// processes. Killed processes disappear from the table.
type FakeProcessTable struct {
	mu     sync.Mutex
	procs  map[int]string
	self   int
	Killed []int
}

// NewFakeProcessTable creates a table running the given process names,
// numbered from pid 100.
func NewFakeProcessTable(names ...string) *FakeProcessTable {
	t := &FakeProcessTable{procs: make(map[int]string), self: 1}
	for i, n := range names {
		t.procs[100+i] = n
	}
	return t
}

// Launch starts another process and returns its pid.
func (t *FakeProcessTable) Launch(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pid := 100
	for {
		if _, used := t.procs[pid]; !used && !t.wasKilled(pid) {
			break
		}
		pid++
	}
	t.procs[pid] = name
	return pid
}

func (t *FakeProcessTable) wasKilled(pid int) bool {
	for _, k := range t.Killed {
		if k == pid {
			return true
		}
	}
	return false
}

// FindByName matches case-insensitive substrings, like the gopsutil manager.
func (t *FakeProcessTable) FindByName(pattern string) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	needle := strings.ToLower(pattern)
	var pids []int
	for pid, name := range t.procs {
		if strings.Contains(strings.ToLower(name), needle) {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids, nil
}

func (t *FakeProcessTable) Kill(pid int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.procs[pid]; !ok {
		return fmt.Errorf("process %d not found", pid)
	}
	delete(t.procs, pid)
	t.Killed = append(t.Killed, pid)
	return nil
}

func (t *FakeProcessTable) IsRunning(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.procs[pid]
	return ok || pid == t.self
}

func (t *FakeProcessTable) GetCurrentPID() int { return t.self }

// Running returns the names still running, sorted.
func (t *FakeProcessTable) Running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.procs))
	for _, n := range t.procs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var _ domain.ProcessManager = (*FakeProcessTable)(nil)
