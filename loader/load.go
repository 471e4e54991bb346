package loader

import (
	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/models"
)

// MapPage allocates a physical page, maps it at va with the given
// permissions, and returns the page's backing bytes for the loader to
// fill. It returns an error when the allocator is exhausted or the
// mapping overlaps; either aborts the whole load.
type MapPage func(va uint64, prot int) ([]byte, error)

// Info describes a loaded image.
type Info struct {
	Entry uint64 // entry point, load bias applied
	Base  uint64 // load bias (zero for static executables)
	Brk   uint64 // first page past the highest mapped segment
}

func pageDown(addr uint64) uint64 { return addr &^ uint64(pageSize - 1) }
func pageUp(addr uint64) uint64   { return (addr + pageSize - 1) &^ uint64(pageSize - 1) }

const pageSize = 4096

// Load maps every loadable segment of img at bias plus its virtual
// address. Pages are zeroed before the file-backed prefix is copied in,
// so memsz > filesz tails (bss) come out cleared. Headers with a zero
// virtual address or zero memory size describe nothing loadable and are
// skipped, not failed.
func Load(img *Image, bias uint64, mapPage MapPage) (*Info, error) {
	var brk uint64
	for _, ph := range img.LoadSegments() {
		if ph.Vaddr == 0 || ph.Memsz == 0 {
			continue
		}
		prot := 0
		if ph.Readable() {
			prot |= models.ProtRead
		}
		if ph.Writable() {
			prot |= models.ProtWrite
		}
		if ph.Executable() {
			prot |= models.ProtExec
		}

		start := ph.Vaddr
		end := ph.Vaddr + ph.Memsz
		if end < start {
			return nil, errors.Wrap(models.ErrInvalidElf, "segment wraps")
		}
		if end > brk {
			brk = end
		}
		fileData := img.SegmentData(&ph)

		for page := pageDown(start); page < pageUp(end); page += pageSize {
			buf, err := mapPage(bias+page, prot)
			if err != nil {
				return nil, err
			}
			// Overlap of this page with the file-backed span.
			lo := start
			if page > lo {
				lo = page
			}
			hi := start + uint64(len(fileData))
			if page+pageSize < hi {
				hi = page + pageSize
			}
			if hi > lo {
				copy(buf[lo-page:], fileData[lo-start:hi-start])
			}
		}
	}
	return &Info{
		Entry: img.Entry() + bias,
		Base:  bias,
		Brk:   pageUp(brk) + bias,
	}, nil
}
