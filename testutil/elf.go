// Package testutil builds synthetic ELF images for tests.
package testutil

import "encoding/binary"

const (
	PT_LOAD    = 1
	PT_DYNAMIC = 2
	PT_INTERP  = 3

	PF_X = 1
	PF_W = 2
	PF_R = 4

	ET_EXEC = 2
	ET_DYN  = 3

	// File offset where segment data begins. Fixed so tests know
	// offsets before the program header count is final.
	DataOff = 0x1000
)

type phdr struct {
	ptype  uint32
	flags  uint32
	off    uint64
	vaddr  uint64
	filesz uint64
	memsz  uint64
	align  uint64
}

// Builder assembles a little-endian ELF64 file in memory.
type Builder struct {
	Machine uint16
	Type    uint16
	Entry   uint64
	phdrs   []phdr
	data    []byte
}

func NewBuilder(machine, etype uint16, entry uint64) *Builder {
	return &Builder{Machine: machine, Type: etype, Entry: entry}
}

// Append adds raw bytes to the file body and returns their file offset.
func (b *Builder) Append(p []byte) uint64 {
	off := DataOff + uint64(len(b.data))
	b.data = append(b.data, p...)
	return off
}

// AddSegment appends data and records a program header covering it.
// memsz extends past len(data) to model bss.
func (b *Builder) AddSegment(ptype, flags uint32, vaddr uint64, data []byte, memsz uint64) uint64 {
	off := b.Append(data)
	if memsz < uint64(len(data)) {
		memsz = uint64(len(data))
	}
	b.phdrs = append(b.phdrs, phdr{
		ptype:  ptype,
		flags:  flags,
		off:    off,
		vaddr:  vaddr,
		filesz: uint64(len(data)),
		memsz:  memsz,
		align:  0x1000,
	})
	return off
}

// AddPhdrRaw records a program header without appending data.
func (b *Builder) AddPhdrRaw(ptype, flags uint32, off, vaddr, filesz, memsz uint64) {
	b.phdrs = append(b.phdrs, phdr{ptype: ptype, flags: flags, off: off, vaddr: vaddr, filesz: filesz, memsz: memsz, align: 0x1000})
}

// Dyn packs one 16-byte dynamic entry.
func Dyn(tag, val uint64) []byte {
	p := make([]byte, 16)
	binary.LittleEndian.PutUint64(p, tag)
	binary.LittleEndian.PutUint64(p[8:], val)
	return p
}

func (b *Builder) Bytes() []byte {
	phoff := uint64(64)
	out := make([]byte, DataOff+len(b.data))
	copy(out, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le := binary.LittleEndian
	le.PutUint16(out[16:], b.Type)
	le.PutUint16(out[18:], b.Machine)
	le.PutUint32(out[20:], 1)
	le.PutUint64(out[24:], b.Entry)
	le.PutUint64(out[32:], phoff)
	le.PutUint16(out[52:], 64)
	le.PutUint16(out[54:], 56)
	le.PutUint16(out[56:], uint16(len(b.phdrs)))
	for i, ph := range b.phdrs {
		p := out[phoff+uint64(i)*56:]
		le.PutUint32(p, ph.ptype)
		le.PutUint32(p[4:], ph.flags)
		le.PutUint64(p[8:], ph.off)
		le.PutUint64(p[16:], ph.vaddr)
		le.PutUint64(p[24:], ph.vaddr)
		le.PutUint64(p[32:], ph.filesz)
		le.PutUint64(p[40:], ph.memsz)
		le.PutUint64(p[48:], ph.align)
	}
	copy(out[DataOff:], b.data)
	return out
}
