package mem

import "sync"

const (
	PageSize  = 4096
	PageShift = 12
)

// Frame is one physical page owned by the arena. PA is never zero, so a
// zero physical address can serve as the allocator's out-of-memory signal.
type Frame struct {
	PA   uint64
	Data []byte
}

// Arena is the physical page allocator. Pages live in a map keyed by
// physical address; there is no refcounting, every live mapping uniquely
// owns its frame.
type Arena struct {
	mu     sync.Mutex
	frames map[uint64]*Frame
	next   uint64
	free   []uint64
	limit  int
}

// NewArena returns an allocator that holds at most limit live frames,
// or an unbounded one if limit is 0.
func NewArena(limit int) *Arena {
	return &Arena{
		frames: make(map[uint64]*Frame),
		next:   PageSize,
		limit:  limit,
	}
}

// Alloc returns a zeroed frame, or nil when the arena is exhausted.
// Callers check for nil at every site; nil aborts the surrounding build.
func (a *Arena) Alloc() *Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && len(a.frames) >= a.limit {
		return nil
	}
	var pa uint64
	if n := len(a.free); n > 0 {
		pa = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		pa = a.next
		a.next += PageSize
	}
	f := &Frame{PA: pa, Data: make([]byte, PageSize)}
	a.frames[pa] = f
	return f
}

// Free releases a frame back to the arena. Freeing an address that is not
// a live frame is a double free or a stray pointer; both are fatal.
func (a *Arena) Free(pa uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.frames[pa]; !ok {
		panic("mem: free of non-live frame")
	}
	delete(a.frames, pa)
	a.free = append(a.free, pa)
}

// Frame looks up a live frame by physical address.
func (a *Arena) Frame(pa uint64) *Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames[pa]
}

// InUse reports the number of live frames.
func (a *Arena) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}

// SetLimit adjusts the live-frame cap. Used by tests to inject allocator
// exhaustion mid-build.
func (a *Arena) SetLimit(limit int) {
	a.mu.Lock()
	a.limit = limit
	a.mu.Unlock()
}
