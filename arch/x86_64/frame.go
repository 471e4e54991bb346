package x86_64

import "github.com/pharos-os/pharos/models"

// TrapFrame is the register state restored on iretq/sysret. rdi carries
// argc and rsi the argv vector address, per the System V AMD64 convention.
type TrapFrame struct {
	Rax uint64
	Rbx uint64
	Rcx uint64
	Rdx uint64
	Rsi uint64
	Rdi uint64
	Rbp uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
	Rsp uint64
	Rip uint64
}

func (f *TrapFrame) SetEntry(pc, sp, argc, argv uint64) {
	*f = TrapFrame{
		Rip: pc,
		Rsp: sp,
		Rdi: argc,
		Rsi: argv,
	}
}

func (f *TrapFrame) PC() uint64 { return f.Rip }
func (f *TrapFrame) SP() uint64 { return f.Rsp }

func (f *TrapFrame) Regs() []models.RegVal {
	return []models.RegVal{
		{Name: "rax", Val: f.Rax}, {Name: "rbx", Val: f.Rbx}, {Name: "rcx", Val: f.Rcx}, {Name: "rdx", Val: f.Rdx},
		{Name: "rsi", Val: f.Rsi}, {Name: "rdi", Val: f.Rdi}, {Name: "rbp", Val: f.Rbp}, {Name: "r8", Val: f.R8},
		{Name: "r9", Val: f.R9}, {Name: "r10", Val: f.R10}, {Name: "r11", Val: f.R11}, {Name: "r12", Val: f.R12},
		{Name: "r13", Val: f.R13}, {Name: "r14", Val: f.R14}, {Name: "r15", Val: f.R15}, {Name: "rsp", Val: f.Rsp},
		{Name: "rip", Val: f.Rip},
	}
}
