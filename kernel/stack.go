package kernel

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/mem"
	"github.com/pharos-os/pharos/models"
)

const ptrSize = 8

// buildStack computes the byte-exact initial stack and writes it into the
// new address space through its copy-out primitive.
//
// From the final stack pointer upward: the argv pointer vector
// (NULL-terminated), the envp pointer vector (NULL-terminated), the auxv
// entries (null entry last), then string storage: argv strings, envp
// strings, the AT_RANDOM bytes, the execfn string, the platform string.
//
// No pointer is ever written before the bytes it refers to, including
// their NUL terminator, are committed; auxv is packed last for the same
// reason, after AT_RANDOM / AT_EXECFN / AT_PLATFORM have been patched.
func buildStack(space *mem.AddressSpace, stackTop uint64, argv, envp [][]byte,
	auxv []AuxEntry, execfn, platform []byte) (uint64, int, uint64, error) {

	argc := len(argv)

	var stringsSize uint64
	for _, a := range argv {
		stringsSize += uint64(len(a)) + 1
	}
	for _, e := range envp {
		stringsSize += uint64(len(e)) + 1
	}
	if execfn != nil {
		stringsSize += uint64(len(execfn)) + 1
	}
	if platform != nil {
		stringsSize += uint64(len(platform)) + 1
	}
	ptrsSize := uint64(argc+1) * ptrSize
	envPtrsSize := uint64(len(envp)+1) * ptrSize
	auxSize := uint64(len(auxv)) * 2 * ptrSize
	const randSize = 16

	total := stringsSize + ptrsSize + envPtrsSize + auxSize + ptrSize + randSize + 16
	sp := (stackTop - total) &^ 0xF

	cursor := sp
	argvAddr := cursor
	cursor += ptrsSize
	envpAddr := cursor
	cursor += envPtrsSize
	auxvAddr := cursor
	cursor += auxSize
	cur := cursor // string storage grows from here

	nul := []byte{0}
	putString := func(s []byte) error {
		if err := space.Copyout(cur, s); err != nil {
			return err
		}
		return space.Copyout(cur+uint64(len(s)), nul)
	}
	writeStrings := func(vecAddr uint64, strs [][]byte) error {
		ptrs := make([]byte, 0, (len(strs)+1)*ptrSize)
		for _, s := range strs {
			if err := putString(s); err != nil {
				return err
			}
			ptrs = binary.LittleEndian.AppendUint64(ptrs, cur)
			cur += uint64(len(s)) + 1
		}
		ptrs = binary.LittleEndian.AppendUint64(ptrs, 0)
		return space.Copyout(vecAddr, ptrs)
	}

	if err := writeStrings(argvAddr, argv); err != nil {
		return 0, 0, 0, err
	}
	if err := writeStrings(envpAddr, envp); err != nil {
		return 0, 0, 0, err
	}

	var rnd [randSize]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return 0, 0, 0, errors.Wrap(err, "random bytes")
	}
	if err := space.Copyout(cur, rnd[:]); err != nil {
		return 0, 0, 0, err
	}
	patchAuxv(auxv, AT_RANDOM, cur)
	cur += randSize

	if execfn != nil {
		if err := putString(execfn); err != nil {
			return 0, 0, 0, err
		}
		patchAuxv(auxv, AT_EXECFN, cur)
		cur += uint64(len(execfn)) + 1
	}
	if platform != nil {
		if err := putString(platform); err != nil {
			return 0, 0, 0, err
		}
		patchAuxv(auxv, AT_PLATFORM, cur)
		cur += uint64(len(platform)) + 1
	}

	packed, err := packAuxv(auxv)
	if err != nil {
		return 0, 0, 0, errors.Wrap(models.ErrOutOfMemory, err.Error())
	}
	if err := space.Copyout(auxvAddr, packed); err != nil {
		return 0, 0, 0, err
	}

	return sp, argc, argvAddr, nil
}
