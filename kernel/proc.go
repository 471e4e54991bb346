package kernel

import (
	"sync"

	"github.com/pharos-os/pharos/mem"
	"github.com/pharos-os/pharos/models"
)

// Process is one process-table slot. Space and Frame are owned by the
// table and only swapped under its lock.
type Process struct {
	Pid   int
	Space *mem.AddressSpace
	Sz    uint64
	Frame models.TrapFrame
	Cwd   string
}

// ProcTable is the shared process registry. One coarse lock guards the
// map; exec holds it only for the lookup-and-swap, never across the
// expensive segment-mapping work.
type ProcTable struct {
	mu      sync.Mutex
	procs   map[int]*Process
	nextPid int
}

func NewProcTable() *ProcTable {
	return &ProcTable{procs: make(map[int]*Process), nextPid: 1}
}

func (t *ProcTable) NewProcess(arch *models.Arch) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &Process{
		Pid:   t.nextPid,
		Frame: arch.NewTrapFrame(),
		Cwd:   "/",
	}
	t.nextPid++
	t.procs[p.Pid] = p
	return p
}

// Find returns the process for pid, nil if it has exited.
func (t *ProcTable) Find(pid int) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.procs[pid]
}

// Remove drops a process from the table. Its address space stays with the
// caller, who is responsible for reclaiming it.
func (t *ProcTable) Remove(pid int) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.procs[pid]
	delete(t.procs, pid)
	return p
}
