package arch

import (
	"fmt"

	"github.com/pharos-os/pharos/arch/arm64"
	"github.com/pharos-os/pharos/arch/riscv64"
	"github.com/pharos-os/pharos/arch/x86_64"
	"github.com/pharos-os/pharos/models"
)

var archMap = map[string]*models.Arch{
	"arm64":   arm64.Arch,
	"riscv64": riscv64.Arch,
	"x86_64":  x86_64.Arch,
}

func GetArch(name string) (*models.Arch, error) {
	a, ok := archMap[name]
	if !ok {
		return nil, fmt.Errorf("arch '%s' not found", name)
	}
	return a, nil
}

// All returns every supported architecture; the entry-frame and PTE
// conformance tests iterate this so each implementation is held to the
// same contract.
func All() []*models.Arch {
	out := make([]*models.Arch, 0, len(archMap))
	for _, a := range archMap {
		out = append(out, a)
	}
	return out
}
