package arm64

import "github.com/pharos-os/pharos/models"

const (
	descValid = 1 << 0
	descTable = 1 << 1 // table at intermediate levels, page at leaf
	apUser    = 1 << 6
	apRO      = 1 << 7
	uxn       = 1 << 54

	addrMask = 0x0000_ffff_ffff_f000
)

type pteCodec struct{}

func (pteCodec) Encode(pa uint64, prot int) uint64 {
	pte := (pa & addrMask) | descValid | descTable
	if prot&models.ProtUser != 0 {
		pte |= apUser
	}
	if prot&models.ProtWrite == 0 {
		pte |= apRO
	}
	if prot&models.ProtExec == 0 {
		pte |= uxn
	}
	return pte
}

func (pteCodec) Valid(pte uint64) bool  { return pte&descValid != 0 }
func (pteCodec) User(pte uint64) bool   { return pte&apUser != 0 }
func (pteCodec) Addr(pte uint64) uint64 { return pte & addrMask }

// Static HWCAP: fp, asimd, crc32, aes, sha1, sha2, atomics, asimdrdm.
const hwcap = 1<<16 | 1<<17 | 1<<18 | 1<<19 | 1<<20 | 1<<21 | 1<<22 | 1<<23

var Arch = &models.Arch{
	Name:         "arm64",
	Bits:         64,
	Machine:      183,
	Platform:     "aarch64",
	Hwcap:        hwcap,
	PTE:          pteCodec{},
	EntryRegs:    [4]string{"elr", "sp", "x0", "x1"},
	NewTrapFrame: func() models.TrapFrame { return &TrapFrame{} },
}
