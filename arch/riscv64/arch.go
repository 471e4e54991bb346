package riscv64

import "github.com/pharos-os/pharos/models"

const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
)

// Sv48 entry layout: PPN starts at bit 10.
type pteCodec struct{}

func (pteCodec) Encode(pa uint64, prot int) uint64 {
	pte := (pa >> 12 << 10) | pteV
	if prot&models.ProtRead != 0 {
		pte |= pteR
	}
	if prot&models.ProtWrite != 0 {
		pte |= pteW
	}
	if prot&models.ProtExec != 0 {
		pte |= pteX
	}
	if prot&models.ProtUser != 0 {
		pte |= pteU
	}
	return pte
}

func (pteCodec) Valid(pte uint64) bool { return pte&pteV != 0 }
func (pteCodec) User(pte uint64) bool  { return pte&pteU != 0 }
func (pteCodec) Addr(pte uint64) uint64 {
	return pte >> 10 << 12
}

// Hwcap bits for rv64imafdc, one bit per extension letter present.
const hwcap = 1<<0 | 1<<1 | 1<<2 | 1<<3 | 1<<4 | 1<<5

var Arch = &models.Arch{
	Name:         "riscv64",
	Bits:         64,
	Machine:      243,
	Platform:     "riscv64",
	Hwcap:        hwcap,
	PTE:          pteCodec{},
	EntryRegs:    [4]string{"epc", "sp", "a0", "a1"},
	NewTrapFrame: func() models.TrapFrame { return &TrapFrame{} },
}
