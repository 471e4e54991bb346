package models

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
)

// Universal page permission flags. Each architecture's PTECodec translates
// these into its own entry encoding; nothing outside the codecs ever sees
// hardware bits.
const (
	ProtRead = 1 << iota
	ProtWrite
	ProtExec
	ProtUser
)

type RegVal struct {
	Name string
	Val  uint64
}

type regList []RegVal

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

// TrapFrame is the saved register state used to transition from the kernel
// into user execution.
type TrapFrame interface {
	// SetEntry aims the frame at a fresh program image. Every
	// general-purpose register other than the program counter, stack
	// pointer and the two argument registers must read back as zero
	// afterward, so nothing leaks from a prior image.
	SetEntry(pc, sp, argc, argv uint64)
	PC() uint64
	SP() uint64
	// Regs returns every general-purpose register with its current value.
	Regs() []RegVal
}

// PTECodec is the only architecture-conditional part of the page-table
// walk: how an entry is built, how valid/user are tested, and how the
// physical address comes back out.
type PTECodec interface {
	Encode(pa uint64, prot int) uint64
	Valid(pte uint64) bool
	User(pte uint64) bool
	Addr(pte uint64) uint64
}

type Arch struct {
	Name     string
	Bits     int
	Machine  uint16 // ELF e_machine
	Platform string // AT_PLATFORM string
	Hwcap    uint64 // static AT_HWCAP mask
	PTE      PTECodec

	// EntryRegs names the registers SetEntry may leave nonzero, in
	// pc, sp, argc, argv order.
	EntryRegs    [4]string
	NewTrapFrame func() TrapFrame
}

// RegDump returns the frame's registers in natural sort order.
func (a *Arch) RegDump(tf TrapFrame) []RegVal {
	regs := regList(tf.Regs())
	sort.Sort(regs)
	return regs
}
