package riscv64

import "github.com/pharos-os/pharos/models"

// TrapFrame is the register state restored on sret. Register a0 carries
// argc and a1 the argv vector address, per the RISC-V calling convention.
type TrapFrame struct {
	Epc uint64
	Ra  uint64
	Sp  uint64
	Gp  uint64
	Tp  uint64
	T0  uint64
	T1  uint64
	T2  uint64
	S0  uint64
	S1  uint64
	A0  uint64
	A1  uint64
	A2  uint64
	A3  uint64
	A4  uint64
	A5  uint64
	A6  uint64
	A7  uint64
	S2  uint64
	S3  uint64
	S4  uint64
	S5  uint64
	S6  uint64
	S7  uint64
	S8  uint64
	S9  uint64
	S10 uint64
	S11 uint64
	T3  uint64
	T4  uint64
	T5  uint64
	T6  uint64
}

func (f *TrapFrame) SetEntry(pc, sp, argc, argv uint64) {
	*f = TrapFrame{
		Epc: pc,
		Sp:  sp,
		A0:  argc,
		A1:  argv,
	}
}

func (f *TrapFrame) PC() uint64 { return f.Epc }
func (f *TrapFrame) SP() uint64 { return f.Sp }

func (f *TrapFrame) Regs() []models.RegVal {
	return []models.RegVal{
		{Name: "epc", Val: f.Epc}, {Name: "ra", Val: f.Ra}, {Name: "sp", Val: f.Sp}, {Name: "gp", Val: f.Gp},
		{Name: "tp", Val: f.Tp}, {Name: "t0", Val: f.T0}, {Name: "t1", Val: f.T1}, {Name: "t2", Val: f.T2},
		{Name: "s0", Val: f.S0}, {Name: "s1", Val: f.S1}, {Name: "a0", Val: f.A0}, {Name: "a1", Val: f.A1},
		{Name: "a2", Val: f.A2}, {Name: "a3", Val: f.A3}, {Name: "a4", Val: f.A4}, {Name: "a5", Val: f.A5},
		{Name: "a6", Val: f.A6}, {Name: "a7", Val: f.A7}, {Name: "s2", Val: f.S2}, {Name: "s3", Val: f.S3},
		{Name: "s4", Val: f.S4}, {Name: "s5", Val: f.S5}, {Name: "s6", Val: f.S6}, {Name: "s7", Val: f.S7},
		{Name: "s8", Val: f.S8}, {Name: "s9", Val: f.S9}, {Name: "s10", Val: f.S10}, {Name: "s11", Val: f.S11},
		{Name: "t3", Val: f.T3}, {Name: "t4", Val: f.T4}, {Name: "t5", Val: f.T5}, {Name: "t6", Val: f.T6},
	}
}
