package heap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/objgraph/errors"
)

// Backing supplies the storage an Arena carves up.
type Backing interface {
	Size() uint32
	// Grow extends the storage by at least delta bytes and returns the new size.
	Grow(delta uint32) (uint32, error)
	// Zero clears [offset, offset+size).
	Zero(offset, size uint32) error
}

type span struct {
	off uint32
	end uint32
}

// Arena is a first-fit free-list allocator over a Backing. Offsets below the
// reserved prefix are never handed out, so 0 can serve as NULL.
// Not safe for concurrent use.
type Arena struct {
	backing Backing
	free    []span // sorted by off, coalesced
	live    map[uint32]uint32
	max     uint32
	bytes   uint64
}

// reserved keeps offset 0 free and the first block 8-aligned.
const reserved = 8

// NewArena manages backing from offset 8 up to max bytes (0 = 4 GiB).
func NewArena(backing Backing, max uint32) *Arena {
	a := &Arena{
		backing: backing,
		live:    make(map[uint32]uint32),
		max:     max,
	}
	if size := backing.Size(); size > reserved {
		a.free = append(a.free, span{off: reserved, end: size})
	}
	return a
}

// Alloc returns a zeroed block of size bytes aligned to align. Zero-sized
// requests still receive a distinct non-null address.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if size == 0 {
		size = 1
	}

	ptr, ok := a.carve(size, align)
	if !ok {
		if err := a.grow(size + align); err != nil {
			return 0, errors.AllocationFailed(errors.PhaseDecode, size, align, err)
		}
		if ptr, ok = a.carve(size, align); !ok {
			return 0, errors.AllocationFailed(errors.PhaseDecode, size, align, nil)
		}
	}

	if err := a.backing.Zero(ptr, size); err != nil {
		a.release(ptr, size)
		return 0, errors.AllocationFailed(errors.PhaseDecode, size, align, err)
	}
	a.live[ptr] = size
	a.bytes += uint64(size)
	return ptr, nil
}

// Free returns a block to the free list. Unknown pointers are logged and ignored.
func (a *Arena) Free(ptr, size, align uint32) {
	got, ok := a.live[ptr]
	if !ok {
		Logger().Warn("free of unknown block",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size))
		return
	}
	if size != 0 && size != got {
		Logger().Warn("free size differs from allocation",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("allocated", got))
	}
	delete(a.live, ptr)
	a.bytes -= uint64(got)
	a.release(ptr, got)
}

// Live returns the number of outstanding allocations.
func (a *Arena) Live() int {
	return len(a.live)
}

// LiveBytes returns the number of outstanding allocated bytes.
func (a *Arena) LiveBytes() uint64 {
	return a.bytes
}

func (a *Arena) carve(size, align uint32) (uint32, bool) {
	for i, s := range a.free {
		start := alignTo(s.off, align)
		if start < s.off || start > s.end || s.end-start < size {
			continue
		}
		end := start + size

		var repl []span
		if start > s.off {
			repl = append(repl, span{off: s.off, end: start})
		}
		if end < s.end {
			repl = append(repl, span{off: end, end: s.end})
		}
		a.free = append(a.free[:i], append(repl, a.free[i+1:]...)...)
		return start, true
	}
	return 0, false
}

func (a *Arena) release(ptr, size uint32) {
	s := span{off: ptr, end: ptr + size}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off >= s.off })
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s

	// coalesce with neighbours
	if i+1 < len(a.free) && a.free[i].end == a.free[i+1].off {
		a.free[i].end = a.free[i+1].end
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].end == a.free[i].off {
		a.free[i-1].end = a.free[i].end
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func (a *Arena) grow(need uint32) error {
	old := a.backing.Size()
	if old < reserved {
		need += reserved - old
	}
	delta := old
	if delta < need {
		delta = need
	}
	if a.max != 0 {
		if old >= a.max {
			return errors.Overflow(errors.PhaseDecode, uint64(old)+uint64(need), "arena limit")
		}
		if delta > a.max-old {
			delta = a.max - old
		}
		if delta < need {
			return errors.Overflow(errors.PhaseDecode, uint64(old)+uint64(need), "arena limit")
		}
	}

	size, err := a.backing.Grow(delta)
	if err != nil {
		return err
	}
	start := old
	if start < reserved {
		start = reserved
	}
	if size > start {
		a.release(start, size-start)
	}
	return nil
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
