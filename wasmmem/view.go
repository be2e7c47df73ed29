package wasmmem

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
)

var (
	_ objgraph.Memory      = (*View)(nil)
	_ objgraph.MemorySizer = (*View)(nil)
	_ objgraph.Allocator   = (*Realloc)(nil)
)

// View is an objgraph.Memory over a wazero linear memory. Out of range
// reads fail in PhaseEncode and writes in PhaseDecode, the phases that
// perform them.
type View struct {
	mem api.Memory
}

// NewView returns a view of mem, or nil for a nil memory.
func NewView(mem api.Memory) *View {
	if mem == nil {
		return nil
	}
	return &View{mem: mem}
}

// Size returns the memory size in bytes. It changes when the guest grows
// its memory.
func (v *View) Size() uint32 {
	return v.mem.Size()
}

// Read returns length bytes at offset. The slice aliases guest memory and
// is invalidated by growth.
func (v *View) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := v.mem.Read(offset, length)
	if !ok {
		return nil, v.fault(errors.PhaseEncode, offset, length)
	}
	return data, nil
}

func (v *View) Write(offset uint32, data []byte) error {
	if !v.mem.Write(offset, data) {
		return v.fault(errors.PhaseDecode, offset, uint32(len(data)))
	}
	return nil
}

func (v *View) ReadU8(offset uint32) (uint8, error) {
	return load(v, offset, 1, v.mem.ReadByte)
}

func (v *View) ReadU16(offset uint32) (uint16, error) {
	return load(v, offset, 2, v.mem.ReadUint16Le)
}

func (v *View) ReadU32(offset uint32) (uint32, error) {
	return load(v, offset, 4, v.mem.ReadUint32Le)
}

func (v *View) ReadU64(offset uint32) (uint64, error) {
	return load(v, offset, 8, v.mem.ReadUint64Le)
}

func (v *View) WriteU8(offset uint32, value uint8) error {
	return store(v, offset, 1, value, v.mem.WriteByte)
}

func (v *View) WriteU16(offset uint32, value uint16) error {
	return store(v, offset, 2, value, v.mem.WriteUint16Le)
}

func (v *View) WriteU32(offset uint32, value uint32) error {
	return store(v, offset, 4, value, v.mem.WriteUint32Le)
}

func (v *View) WriteU64(offset uint32, value uint64) error {
	return store(v, offset, 8, value, v.mem.WriteUint64Le)
}

func load[T any](v *View, offset, width uint32, read func(uint32) (T, bool)) (T, error) {
	val, ok := read(offset)
	if !ok {
		return val, v.fault(errors.PhaseEncode, offset, width)
	}
	return val, nil
}

func store[T any](v *View, offset, width uint32, val T, write func(uint32, T) bool) error {
	if !write(offset, val) {
		return v.fault(errors.PhaseDecode, offset, width)
	}
	return nil
}

func (v *View) fault(phase errors.Phase, offset, length uint32) error {
	return errors.MemoryAccess(phase, offset,
		fmt.Errorf("%d bytes past the end of %d byte memory", uint64(offset)+uint64(length)-uint64(v.mem.Size()), v.mem.Size()))
}

// Realloc allocates through a guest's cabi_realloc(old, oldSize, align,
// newSize) export, so objects can be decoded straight into a running
// guest.
type Realloc struct {
	ctx context.Context
	fn  api.Function
}

// NewRealloc binds fn, or returns nil for a nil function.
func NewRealloc(ctx context.Context, fn api.Function) *Realloc {
	if fn == nil {
		return nil
	}
	return &Realloc{ctx: ctx, fn: fn}
}

// Alloc allocates size bytes. A trap or a NULL result is an allocation
// failure.
func (r *Realloc) Alloc(size, align uint32) (uint32, error) {
	results, err := r.fn.Call(r.ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseDecode, size, align, err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseDecode, size, align, nil)
	}
	return uint32(results[0]), nil
}

// Free shrinks the block to zero bytes, which guests treat as a release.
func (r *Realloc) Free(ptr, size, align uint32) {
	if _, err := r.fn.Call(r.ctx, uint64(ptr), uint64(size), uint64(align), 0); err != nil {
		Logger().Warn("cabi_realloc free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
