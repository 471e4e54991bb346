// Package kernel implements the process image construction subsystem:
// turning an on-disk executable into a runnable address space and initial
// execution context.
package kernel

import (
	"github.com/sirupsen/logrus"

	"github.com/pharos-os/pharos/mem"
	"github.com/pharos-os/pharos/models"
	"github.com/pharos-os/pharos/vfs"
)

var log = logrus.WithField("subsys", "kernel")

// Kernel ties the exec path to its collaborators: the MMU (arena plus
// page-table primitives), the VFS, and the process table.
type Kernel struct {
	Arch  *models.Arch
	MMU   *mem.MMU
	FS    *vfs.FileSystem
	Procs *ProcTable
}

func New(arch *models.Arch, arena *mem.Arena, fs *vfs.FileSystem) *Kernel {
	return &Kernel{
		Arch:  arch,
		MMU:   mem.NewMMU(arena, arch.PTE),
		FS:    fs,
		Procs: NewProcTable(),
	}
}
