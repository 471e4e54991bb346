package syscalls

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/pharos-os/pharos/kernel"
	"github.com/pharos-os/pharos/vfs"
)

var log = logrus.WithField("subsys", "syscalls")

// PosixKernel is the syscall receiver for one calling process. The exec
// wrappers collapse every internal error kind to -1; the specific kind
// survives only in the debug log.
type PosixKernel struct {
	K    *kernel.Kernel
	Proc *kernel.Process
}

func NewPosixKernel(k *kernel.Kernel, proc *kernel.Process) *PosixKernel {
	return &PosixKernel{K: k, Proc: proc}
}

// readUserStr reads a NUL-terminated string out of the calling process's
// memory. Strings longer than MaxArgLen are rejected, not truncated.
func (p *PosixKernel) readUserStr(addr uint64) ([]byte, bool) {
	if addr == 0 || p.Proc.Space == nil {
		return nil, false
	}
	var out []byte
	buf := make([]byte, 1)
	for {
		if err := p.Proc.Space.Copyin(addr, buf); err != nil {
			return nil, false
		}
		if buf[0] == 0 {
			return out, true
		}
		out = append(out, buf[0])
		addr++
		if len(out) > kernel.MaxArgLen {
			return nil, false
		}
	}
}

// readUserVec reads a NULL-terminated pointer array and the strings the
// pointers name. More than MaxArgs entries is a violation, not a clamp.
func (p *PosixKernel) readUserVec(addr uint64) ([][]byte, bool) {
	if addr == 0 || p.Proc.Space == nil {
		return nil, false
	}
	var vec [][]byte
	buf := make([]byte, 8)
	for {
		if err := p.Proc.Space.Copyin(addr, buf); err != nil {
			return nil, false
		}
		ptr := binary.LittleEndian.Uint64(buf)
		if ptr == 0 {
			return vec, true
		}
		s, ok := p.readUserStr(ptr)
		if !ok {
			return nil, false
		}
		vec = append(vec, s)
		addr += 8
		if len(vec) > kernel.MaxArgs {
			return nil, false
		}
	}
}

func (p *PosixKernel) exec(pathAddr, argvAddr, envpAddr uint64, hasEnv bool) int64 {
	path, ok := p.readUserStr(pathAddr)
	if !ok {
		return -1
	}
	argv, ok := p.readUserVec(argvAddr)
	if !ok {
		return -1
	}
	var envp [][]byte
	if hasEnv {
		if envp, ok = p.readUserVec(envpAddr); !ok {
			return -1
		}
	}
	abs := vfs.Join(p.Proc.Cwd, string(path))
	data, err := p.K.FS.ReadFileLimit(abs, kernel.MaxExecSize)
	if err != nil {
		log.WithField("path", abs).WithError(err).Debug("exec read failed")
		return -1
	}
	if _, err := p.K.Exec(p.Proc.Pid, data, argv, envp, []byte(abs)); err != nil {
		log.WithField("path", abs).WithError(err).Debug("exec failed")
		return -1
	}
	return 0
}

func (p *PosixKernel) Exec(path, argv uint64) int64 {
	return p.exec(path, argv, 0, false)
}

func (p *PosixKernel) Execve(path, argv, envp uint64) int64 {
	return p.exec(path, argv, envp, true)
}
