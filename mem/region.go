package mem

import (
	"fmt"
	"sort"

	"github.com/pharos-os/pharos/models"
)

// Region records one mapped virtual range for bookkeeping and the monitor;
// the page table itself stays authoritative for translation.
type Region struct {
	Va   uint64
	Size uint64
	Prot int
	Desc string
}

func (r *Region) Contains(va uint64) bool {
	return r.Va <= va && va < r.Va+r.Size
}

func (r *Region) String() string {
	prots := []int{models.ProtRead, models.ProtWrite, models.ProtExec}
	chars := []string{"r", "w", "x"}
	prot := ""
	for i := range prots {
		if r.Prot&prots[i] != 0 {
			prot += chars[i]
		} else {
			prot += "-"
		}
	}
	desc := fmt.Sprintf("0x%x-0x%x %s", r.Va, r.Va+r.Size, prot)
	if r.Desc != "" {
		desc += fmt.Sprintf(" [%s]", r.Desc)
	}
	return desc
}

// NoteRegion extends the region list by one page-granular range, merging
// into the previous region when contiguous with the same prot and label.
func (as *AddressSpace) NoteRegion(va, size uint64, prot int, desc string) {
	if len(as.regions) > 0 {
		last := as.regions[len(as.regions)-1]
		if last.Va+last.Size == va && last.Prot == prot && last.Desc == desc {
			last.Size += size
			return
		}
	}
	as.regions = append(as.regions, &Region{Va: va, Size: size, Prot: prot, Desc: desc})
}

// Regions returns the mapped ranges sorted by address.
func (as *AddressSpace) Regions() []*Region {
	out := make([]*Region, len(as.regions))
	copy(out, as.regions)
	sort.Slice(out, func(i, j int) bool { return out[i].Va < out[j].Va })
	return out
}
