package x86_64

import "github.com/pharos-os/pharos/models"

const (
	pteP  = 1 << 0
	pteRW = 1 << 1
	pteUS = 1 << 2
	pteNX = 1 << 63

	addrMask = 0x000f_ffff_ffff_f000
)

type pteCodec struct{}

func (pteCodec) Encode(pa uint64, prot int) uint64 {
	pte := (pa & addrMask) | pteP
	if prot&models.ProtWrite != 0 {
		pte |= pteRW
	}
	if prot&models.ProtUser != 0 {
		pte |= pteUS
	}
	if prot&models.ProtExec == 0 {
		pte |= pteNX
	}
	return pte
}

func (pteCodec) Valid(pte uint64) bool  { return pte&pteP != 0 }
func (pteCodec) User(pte uint64) bool   { return pte&pteUS != 0 }
func (pteCodec) Addr(pte uint64) uint64 { return pte & addrMask }

// Static HWCAP: sse, sse2, sse3, ssse3, sse4_1, sse4_2, avx, aes.
const hwcap = 1<<32 | 1<<33 | 1<<34 | 1<<35 | 1<<36 | 1<<37 | 1<<38 | 1<<42

var Arch = &models.Arch{
	Name:         "x86_64",
	Bits:         64,
	Machine:      62,
	Platform:     "x86_64",
	Hwcap:        hwcap,
	PTE:          pteCodec{},
	EntryRegs:    [4]string{"rip", "rsp", "rdi", "rsi"},
	NewTrapFrame: func() models.TrapFrame { return &TrapFrame{} },
}
