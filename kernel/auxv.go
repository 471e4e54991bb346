package kernel

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

// Auxiliary vector types passed to a new process alongside argv/envp.
const (
	AT_NULL     = 0
	AT_IGNORE   = 1
	AT_EXECFD   = 2
	AT_PHDR     = 3
	AT_PHENT    = 4
	AT_PHNUM    = 5
	AT_PAGESZ   = 6
	AT_BASE     = 7
	AT_FLAGS    = 8
	AT_ENTRY    = 9
	AT_NOTELF   = 10
	AT_UID      = 11
	AT_EUID     = 12
	AT_GID      = 13
	AT_EGID     = 14
	AT_PLATFORM = 15
	AT_HWCAP    = 16
	AT_CLKTCK   = 17
	AT_RANDOM   = 25
	AT_EXECFN   = 31
)

// ClockTick is the AT_CLKTCK value reported to every process.
const ClockTick = 100

type AuxEntry struct {
	Type uint64
	Val  uint64
}

// Patch sets the value of the first entry of type t. The stack engine
// calls this only after the bytes the value points at are committed.
func patchAuxv(auxv []AuxEntry, t, val uint64) {
	for i := range auxv {
		if auxv[i].Type == t {
			auxv[i].Val = val
			return
		}
	}
}

// packAuxv encodes the vector as the ABI expects it on the stack.
func packAuxv(auxv []AuxEntry) ([]byte, error) {
	var buf bytes.Buffer
	for i := range auxv {
		if err := struc.PackWithOrder(&buf, &auxv[i], binary.LittleEndian); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
