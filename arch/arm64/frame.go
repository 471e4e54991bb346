package arm64

import (
	"fmt"

	"github.com/pharos-os/pharos/models"
)

// TrapFrame is the register state restored on eret. x0 carries argc and
// x1 the argv vector address, per the AAPCS64 convention.
type TrapFrame struct {
	X    [31]uint64
	Sp   uint64
	Elr  uint64
	Spsr uint64
}

func (f *TrapFrame) SetEntry(pc, sp, argc, argv uint64) {
	*f = TrapFrame{Elr: pc, Sp: sp}
	f.X[0] = argc
	f.X[1] = argv
}

func (f *TrapFrame) PC() uint64 { return f.Elr }
func (f *TrapFrame) SP() uint64 { return f.Sp }

func (f *TrapFrame) Regs() []models.RegVal {
	regs := make([]models.RegVal, 0, len(f.X)+2)
	for i, v := range f.X {
		regs = append(regs, models.RegVal{Name: fmt.Sprintf("x%d", i), Val: v})
	}
	regs = append(regs,
		models.RegVal{Name: "sp", Val: f.Sp},
		models.RegVal{Name: "elr", Val: f.Elr},
	)
	return regs
}
