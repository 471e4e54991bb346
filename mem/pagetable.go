package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/models"
)

const (
	// Four translation levels, 512 entries each, 4 KiB leaves.
	ptLevels     = 4
	ptesPerTable = PageSize / 8
)

func vpn(va uint64, level int) int {
	shift := PageShift + 9*(ptLevels-1-level)
	return int(va>>uint(shift)) & (ptesPerTable - 1)
}

// AddressSpace is one top-level page table plus everything reachable from
// it. It is exclusively owned by the in-progress exec until Install hands
// it to a process; on any failure before that the owner must call Reclaim.
type AddressSpace struct {
	arena   *Arena
	codec   models.PTECodec
	root    uint64
	regions []*Region
}

// NewAddressSpace allocates an empty root table.
func NewAddressSpace(arena *Arena, codec models.PTECodec) (*AddressSpace, error) {
	f := arena.Alloc()
	if f == nil {
		return nil, errors.WithStack(models.ErrOutOfMemory)
	}
	return &AddressSpace{arena: arena, codec: codec, root: f.PA}, nil
}

func (as *AddressSpace) Root() uint64 { return as.root }

func (as *AddressSpace) entry(table uint64, idx int) uint64 {
	f := as.arena.Frame(table)
	return binary.LittleEndian.Uint64(f.Data[idx*8:])
}

func (as *AddressSpace) setEntry(table uint64, idx int, pte uint64) {
	f := as.arena.Frame(table)
	binary.LittleEndian.PutUint64(f.Data[idx*8:], pte)
}

// walk descends to the leaf entry slot for va, allocating intermediate
// tables when create is set. Returns the table holding the leaf entry and
// the index within it; table is 0 when the path does not exist.
func (as *AddressSpace) walk(va uint64, create bool) (uint64, int, error) {
	table := as.root
	for level := 0; level < ptLevels-1; level++ {
		idx := vpn(va, level)
		pte := as.entry(table, idx)
		if !as.codec.Valid(pte) {
			if !create {
				return 0, 0, nil
			}
			f := as.arena.Alloc()
			if f == nil {
				return 0, 0, errors.WithStack(models.ErrOutOfMemory)
			}
			// Intermediate entries carry the user flag so the
			// reclaimer knows to descend into them.
			as.setEntry(table, idx, as.codec.Encode(f.PA, models.ProtUser))
			table = f.PA
			continue
		}
		table = as.codec.Addr(pte)
	}
	return table, vpn(va, ptLevels-1), nil
}

// MapPage installs a single leaf mapping. The frame behind pa must already
// be owned by the caller; overlapping an existing mapping is an error.
func (as *AddressSpace) MapPage(va, pa uint64, prot int) error {
	if va&(PageSize-1) != 0 || pa&(PageSize-1) != 0 {
		return errors.Errorf("mem: unaligned mapping %#x -> %#x", va, pa)
	}
	table, idx, err := as.walk(va, true)
	if err != nil {
		return err
	}
	if old := as.entry(table, idx); as.codec.Valid(old) {
		return errors.Errorf("mem: mapping overlap at %#x", va)
	}
	as.setEntry(table, idx, as.codec.Encode(pa, prot|models.ProtUser))
	return nil
}

// Translate resolves a virtual address to the backing frame, or nil when
// the page is unmapped.
func (as *AddressSpace) Translate(va uint64) *Frame {
	table, idx, _ := as.walk(va&^uint64(PageSize-1), false)
	if table == 0 {
		return nil
	}
	pte := as.entry(table, idx)
	if !as.codec.Valid(pte) {
		return nil
	}
	return as.arena.Frame(as.codec.Addr(pte))
}

// Copyout writes src into the space at dst, page by page. This is the
// scoped copy-out primitive the stack engine builds on; an unmapped
// destination fails rather than faulting.
func (as *AddressSpace) Copyout(dst uint64, src []byte) error {
	for len(src) > 0 {
		f := as.Translate(dst)
		if f == nil {
			return errors.Wrapf(models.ErrOutOfMemory, "copyout to unmapped %#x", dst)
		}
		off := int(dst & (PageSize - 1))
		n := copy(f.Data[off:], src)
		src = src[n:]
		dst += uint64(n)
	}
	return nil
}

// Copyin reads len(dst) bytes from the space at src.
func (as *AddressSpace) Copyin(src uint64, dst []byte) error {
	for len(dst) > 0 {
		f := as.Translate(src)
		if f == nil {
			return errors.Wrapf(models.ErrOutOfMemory, "copyin from unmapped %#x", src)
		}
		off := int(src & (PageSize - 1))
		n := copy(dst, f.Data[off:])
		dst = dst[n:]
		src += uint64(n)
	}
	return nil
}

// Reclaim walks the table from the root and frees every user-owned page,
// the intermediate tables behind them, and finally the root itself. It is
// safe on a partially populated table: invalid slots are skipped, never
// dereferenced. Entries without the user flag are kernel-shared and are
// left alone.
func (as *AddressSpace) Reclaim() {
	as.reclaim(as.root, 0)
	as.arena.Free(as.root)
	as.root = 0
	as.regions = nil
}

func (as *AddressSpace) reclaim(table uint64, level int) {
	for i := 0; i < ptesPerTable; i++ {
		pte := as.entry(table, i)
		if !as.codec.Valid(pte) || !as.codec.User(pte) {
			continue
		}
		pa := as.codec.Addr(pte)
		if level == ptLevels-1 {
			as.arena.Free(pa)
		} else {
			as.reclaim(pa, level+1)
			as.arena.Free(pa)
		}
	}
}
