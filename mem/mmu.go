package mem

import (
	"sync"

	"github.com/pharos-os/pharos/models"
)

// MMU bundles the physical arena with one architecture's PTE codec and
// tracks which root table is live. Address spaces are built invisible to
// everyone else and only become live through Activate.
type MMU struct {
	mu     sync.Mutex
	arena  *Arena
	codec  models.PTECodec
	active uint64
}

func NewMMU(arena *Arena, codec models.PTECodec) *MMU {
	return &MMU{arena: arena, codec: codec}
}

func (m *MMU) Arena() *Arena { return m.arena }

func (m *MMU) NewAddressSpace() (*AddressSpace, error) {
	return NewAddressSpace(m.arena, m.codec)
}

// Activate makes the space's root table the live one.
func (m *MMU) Activate(as *AddressSpace) {
	m.mu.Lock()
	m.active = as.root
	m.mu.Unlock()
}

// Active returns the live root table, zero if none.
func (m *MMU) Active() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
