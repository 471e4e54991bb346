package kernel

import (
	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/linker"
	"github.com/pharos-os/pharos/loader"
	"github.com/pharos-os/pharos/mem"
	"github.com/pharos-os/pharos/models"
)

const (
	// MaxExecSize bounds the executable read before the read loop begins.
	MaxExecSize = 16 << 20
	// MaxArgs and MaxArgLen bound the syscall argument surface.
	MaxArgs   = 32
	MaxArgLen = 4096

	UserStackSize = 2 * mem.PageSize
	UserStackTop  = 0x8000_0000

	// pieBase is the load bias for position-independent executables.
	pieBase = 0x40_0000
)

// Exec replaces the image of process pid with the executable in data.
// On success the process's trap frame lands at the new entry point with
// argc/argv in the argument registers and the new table active; on any
// failure the partially built table is reclaimed and the previous image
// stays untouched.
func (k *Kernel) Exec(pid int, data []byte, argv, envp [][]byte, execfn []byte) (uint64, error) {
	if len(argv) > MaxArgs {
		return 0, errors.WithStack(models.ErrTooManyArgs)
	}
	for _, a := range argv {
		if len(a) > MaxArgLen {
			return 0, errors.WithStack(models.ErrArgTooLong)
		}
	}
	if len(data) > MaxExecSize {
		return 0, errors.WithStack(models.ErrFileTooLarge)
	}

	// Nothing is allocated until the image validates.
	img, err := loader.NewImage(data, k.Arch.Machine)
	if err != nil {
		return 0, err
	}
	interp := img.Interp()
	_, hasDynamic := img.Dynamic()

	space, err := k.MMU.NewAddressSpace()
	if err != nil {
		return 0, err
	}
	entry, sp, argc, argvAddr, err := k.buildImage(space, img, argv, envp, execfn, interp, hasDynamic)
	if err != nil {
		space.Reclaim()
		return 0, err
	}
	if err := k.install(pid, space, entry, sp, argc, argvAddr); err != nil {
		return 0, err
	}
	return entry, nil
}

// buildImage does everything that happens before the process table is
// touched: segment mapping, stack mapping, dependency resolution, phdr
// mapping and stack layout. The caller reclaims space on error.
func (k *Kernel) buildImage(space *mem.AddressSpace, img *loader.Image,
	argv, envp [][]byte, execfn []byte, interp string, hasDynamic bool) (uint64, uint64, int, uint64, error) {

	arena := k.MMU.Arena()
	mapPage := func(va uint64, prot int) ([]byte, error) {
		f := arena.Alloc()
		if f == nil {
			return nil, errors.WithStack(models.ErrOutOfMemory)
		}
		if err := space.MapPage(va, f.PA, prot); err != nil {
			arena.Free(f.PA)
			return nil, errors.Wrap(models.ErrOutOfMemory, err.Error())
		}
		space.NoteRegion(va, mem.PageSize, prot, "")
		return f.Data, nil
	}

	var bias uint64
	if img.PIE() || interp != "" {
		bias = pieBase
	}
	info, err := loader.Load(img, bias, mapPage)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	// Fixed two-page stack below UserStackTop, zero-filled.
	stackLow := uint64(UserStackTop - UserStackSize)
	for off := uint64(0); off < UserStackSize; off += mem.PageSize {
		if _, err := mapPage(stackLow+off, models.ProtRead|models.ProtWrite); err != nil {
			return 0, 0, 0, 0, err
		}
	}

	// Dynamically linked images get their needed libraries mapped into
	// the same table. An individual library that fails to load does not
	// abort the exec; the dynamic linker in user space owns that error.
	if interp != "" || hasDynamic {
		ld := linker.New(k.FS, k.Arch.Machine)
		for _, name := range img.NeededLibraries() {
			if _, err := ld.LoadLibrary(name, mapPage); err != nil {
				log.WithField("lib", name).WithError(err).Warn("needed library not loaded")
			}
		}
	}

	phdrAddr, err := k.mapPhdrs(space, img, bias, mapPage)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	dynbase := info.Base
	if img.PIE() || interp != "" {
		dynbase = pieBase
	}
	auxv := []AuxEntry{
		{AT_PAGESZ, mem.PageSize},
		{AT_ENTRY, info.Entry},
		{AT_PHNUM, uint64(img.Header.Phnum)},
		{AT_PHENT, uint64(img.Header.Phentsize)},
		{AT_PHDR, phdrAddr},
		{AT_BASE, dynbase},
		{AT_CLKTCK, ClockTick},
		{AT_RANDOM, 0},
		{AT_PLATFORM, 0},
		{AT_HWCAP, k.Arch.Hwcap},
		{AT_UID, 0},
		{AT_EUID, 0},
		{AT_EXECFN, 0},
		{AT_NULL, 0},
	}

	sp, argc, argvAddr, err := buildStack(space, UserStackTop, argv, envp, auxv, execfn, []byte(k.Arch.Platform))
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return info.Entry, sp, argc, argvAddr, nil
}

// mapPhdrs lands the raw program-header table in user memory so AT_PHDR
// points at something real. Pages already covered by a loaded segment are
// reused; only the gaps get fresh mappings.
func (k *Kernel) mapPhdrs(space *mem.AddressSpace, img *loader.Image, bias uint64, mapPage loader.MapPage) (uint64, error) {
	raw := img.PhdrBytes()
	if raw == nil {
		return 0, nil
	}
	addr := bias + img.Header.Phoff
	start := addr &^ uint64(mem.PageSize-1)
	end := (addr + uint64(len(raw)) + mem.PageSize - 1) &^ uint64(mem.PageSize-1)
	for page := start; page < end; page += mem.PageSize {
		if space.Translate(page) != nil {
			continue
		}
		if _, err := mapPage(page, models.ProtRead); err != nil {
			return 0, err
		}
	}
	if err := space.Copyout(addr, raw); err != nil {
		return 0, err
	}
	return addr, nil
}

// install is the only critical section: under the process-table lock,
// look the process up, swap in the new table, write the entry frame, and
// activate. The old image is reclaimed after the lock is released; its
// mappings stay valid for the calling thread right up to the swap.
func (k *Kernel) install(pid int, space *mem.AddressSpace, entry, sp uint64, argc int, argvAddr uint64) error {
	t := k.Procs
	t.mu.Lock()
	p := t.procs[pid]
	if p == nil {
		t.mu.Unlock()
		space.Reclaim()
		return errors.WithStack(models.ErrNoProcess)
	}
	old := p.Space
	p.Space = space
	p.Sz = UserStackTop
	p.Frame.SetEntry(entry, sp, uint64(argc), argvAddr)
	k.MMU.Activate(space)
	t.mu.Unlock()

	if old != nil {
		old.Reclaim()
	}
	return nil
}
