package loader

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/models"
)

const (
	ET_EXEC = 2
	ET_DYN  = 3

	PT_NULL    = 0
	PT_LOAD    = 1
	PT_DYNAMIC = 2
	PT_INTERP  = 3
	PT_NOTE    = 4
	PT_PHDR    = 6

	PF_X = 1
	PF_W = 2
	PF_R = 4

	DT_NULL   = 0
	DT_NEEDED = 1
	DT_STRTAB = 5
	DT_STRSZ  = 10

	headerSize = 64
	phdrSize   = 56
	dynSize    = 16
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

const (
	elfClass64    = 2
	elfData2LSB   = 1
	identClassOff = 4
	identDataOff  = 5
)

// Header is the parsed ELF64 file header.
type Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// ProgHeader is one program-header table entry.
type ProgHeader struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func (p *ProgHeader) Readable() bool   { return p.Flags&PF_R != 0 }
func (p *ProgHeader) Writable() bool   { return p.Flags&PF_W != 0 }
func (p *ProgHeader) Executable() bool { return p.Flags&PF_X != 0 }

// Dyn is one dynamic-section record.
type Dyn struct {
	Tag uint64
	Val uint64
}

// Image is a validated executable. The raw buffer stays with the caller
// for the duration of the exec; Image never copies segment data.
type Image struct {
	data   []byte
	Header Header
	phdrs  []ProgHeader
}

// NewImage validates magic, class, endianness, machine and type before
// anything downstream trusts a single header field. machine is the ELF
// e_machine value of the running architecture.
func NewImage(data []byte, machine uint16) (*Image, error) {
	if len(data) < headerSize {
		return nil, errors.Wrap(models.ErrInvalidElf, "short header")
	}
	if !bytes.Equal(data[:4], elfMagic) {
		return nil, errors.Wrap(models.ErrInvalidElf, "bad magic")
	}
	if data[identClassOff] != elfClass64 {
		return nil, errors.Wrap(models.ErrInvalidElf, "not 64-bit")
	}
	if data[identDataOff] != elfData2LSB {
		return nil, errors.Wrap(models.ErrInvalidElf, "not little-endian")
	}
	var hdr Header
	if err := struc.UnpackWithOrder(bytes.NewReader(data), &hdr, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(models.ErrInvalidElf, err.Error())
	}
	if hdr.Machine != machine {
		return nil, errors.Wrapf(models.ErrInvalidElf, "wrong machine %d", hdr.Machine)
	}
	if hdr.Type != ET_EXEC && hdr.Type != ET_DYN {
		return nil, errors.Wrap(models.ErrInvalidElf, "not executable")
	}
	if hdr.Phentsize != phdrSize {
		return nil, errors.Wrap(models.ErrInvalidElf, "bad phentsize")
	}
	// Bounding phoff here keeps every per-entry offset below len(data)
	// plus 64K*56, so the additions in the loop cannot wrap.
	if hdr.Phoff > uint64(len(data)) {
		return nil, errors.Wrap(models.ErrInvalidElf, "phdr table outside file")
	}
	img := &Image{data: data, Header: hdr}
	phoff := hdr.Phoff
	for i := 0; i < int(hdr.Phnum); i++ {
		off := phoff + uint64(i)*phdrSize
		if off+phdrSize > uint64(len(data)) {
			break
		}
		var ph ProgHeader
		if err := struc.UnpackWithOrder(bytes.NewReader(data[off:off+phdrSize]), &ph, binary.LittleEndian); err != nil {
			return nil, errors.Wrap(models.ErrInvalidElf, err.Error())
		}
		img.phdrs = append(img.phdrs, ph)
	}
	return img, nil
}

func (i *Image) Entry() uint64 { return i.Header.Entry }

// PIE reports whether the image is position-independent and needs a load
// bias chosen at exec time.
func (i *Image) PIE() bool { return i.Header.Type == ET_DYN }

func (i *Image) ProgHeaders() []ProgHeader { return i.phdrs }

func (i *Image) LoadSegments() []ProgHeader {
	var out []ProgHeader
	for _, ph := range i.phdrs {
		if ph.Type == PT_LOAD {
			out = append(out, ph)
		}
	}
	return out
}

// SegmentData returns the file-backed bytes of a segment, nil when the
// header points outside the buffer.
func (i *Image) SegmentData(ph *ProgHeader) []byte {
	end := ph.Off + ph.Filesz
	if end < ph.Off || end > uint64(len(i.data)) {
		return nil
	}
	return i.data[ph.Off:end]
}

// Interp returns the PT_INTERP path, empty when static.
func (i *Image) Interp() string {
	for k := range i.phdrs {
		ph := &i.phdrs[k]
		if ph.Type != PT_INTERP {
			continue
		}
		if data := i.SegmentData(ph); data != nil {
			return strings.TrimRight(string(data), "\x00")
		}
	}
	return ""
}

// Dynamic returns the PT_DYNAMIC header if present.
func (i *Image) Dynamic() (*ProgHeader, bool) {
	for k := range i.phdrs {
		if i.phdrs[k].Type == PT_DYNAMIC {
			return &i.phdrs[k], true
		}
	}
	return nil, false
}

// PhdrBytes returns the raw program-header table, for mapping into the new
// image so AT_PHDR points at real memory.
func (i *Image) PhdrBytes() []byte {
	size := uint64(i.Header.Phentsize) * uint64(i.Header.Phnum)
	end := i.Header.Phoff + size
	if size == 0 || end < i.Header.Phoff || end > uint64(len(i.data)) {
		return nil
	}
	return i.data[i.Header.Phoff:end]
}

// NeededLibraries scans the dynamic section for DT_NEEDED names. Two
// linear passes: the first finds the string table, the second collects
// names. Every access is bounds-checked against both the buffer and the
// declared string-table size; a record that points outside either is
// omitted rather than read.
func (i *Image) NeededLibraries() []string {
	dyn, ok := i.Dynamic()
	if !ok {
		return nil
	}
	start := dyn.Off
	end := start + dyn.Filesz
	if end < start || end > uint64(len(i.data)) {
		end = uint64(len(i.data))
	}

	var strtabOff, strtabSize uint64
	i.eachDyn(start, end, func(d Dyn) bool {
		switch d.Tag {
		case DT_STRTAB:
			strtabOff = d.Val
		case DT_STRSZ:
			strtabSize = d.Val
		}
		return true
	})
	if strtabOff+strtabSize < strtabOff || strtabOff+strtabSize > uint64(len(i.data)) {
		return nil
	}
	strtab := i.data[strtabOff : strtabOff+strtabSize]

	var needed []string
	i.eachDyn(start, end, func(d Dyn) bool {
		if d.Tag != DT_NEEDED {
			return true
		}
		if d.Val >= strtabSize {
			return true
		}
		name := strtab[d.Val:]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		if len(name) > 0 {
			needed = append(needed, string(name))
		}
		return true
	})
	return needed
}

func (i *Image) eachDyn(start, end uint64, fn func(Dyn) bool) {
	for off := start; off+dynSize <= end; off += dynSize {
		d := Dyn{
			Tag: binary.LittleEndian.Uint64(i.data[off:]),
			Val: binary.LittleEndian.Uint64(i.data[off+8:]),
		}
		if d.Tag == DT_NULL {
			return
		}
		if !fn(d) {
			return
		}
	}
}
