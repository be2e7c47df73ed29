package heap

import (
	"encoding/binary"
	"fmt"
)

// Options configures a Heap.
type Options struct {
	// InitialSize is the initial linear memory size in bytes.
	InitialSize uint32
	// MaxSize caps growth. 0 means no limit below 4 GiB.
	MaxSize uint32
}

// DefaultOptions returns a 4 KiB heap capped at 16 MiB.
func DefaultOptions() Options {
	return Options{
		InitialSize: 4 << 10,
		MaxSize:     16 << 20,
	}
}

// Heap is an in-process linear memory with a free-list allocator. It
// implements objgraph.Memory, objgraph.MemorySizer and objgraph.Allocator.
// Not safe for concurrent use.
type Heap struct {
	*Arena
	data []byte
}

// New creates a heap.
func New(opts Options) *Heap {
	h := &Heap{data: make([]byte, opts.InitialSize)}
	h.Arena = NewArena((*sliceBacking)(h), opts.MaxSize)
	return h
}

// Size returns the current memory size in bytes.
func (h *Heap) Size() uint32 {
	return uint32(len(h.data))
}

// Bytes exposes the raw memory. The slice is invalidated by growth.
func (h *Heap) Bytes() []byte {
	return h.data
}

func (h *Heap) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(h.data)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d, size=%d", offset, length, len(h.data))
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (h *Heap) Read(offset uint32, length uint32) ([]byte, error) {
	if err := h.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, h.data[offset:offset+length])
	return out, nil
}

// Write writes data at offset.
func (h *Heap) Write(offset uint32, data []byte) error {
	if err := h.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(h.data[offset:], data)
	return nil
}

func (h *Heap) ReadU8(offset uint32) (uint8, error) {
	if err := h.check(offset, 1); err != nil {
		return 0, err
	}
	return h.data[offset], nil
}

func (h *Heap) ReadU16(offset uint32) (uint16, error) {
	if err := h.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(h.data[offset:]), nil
}

func (h *Heap) ReadU32(offset uint32) (uint32, error) {
	if err := h.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(h.data[offset:]), nil
}

func (h *Heap) ReadU64(offset uint32) (uint64, error) {
	if err := h.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(h.data[offset:]), nil
}

func (h *Heap) WriteU8(offset uint32, value uint8) error {
	if err := h.check(offset, 1); err != nil {
		return err
	}
	h.data[offset] = value
	return nil
}

func (h *Heap) WriteU16(offset uint32, value uint16) error {
	if err := h.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(h.data[offset:], value)
	return nil
}

func (h *Heap) WriteU32(offset uint32, value uint32) error {
	if err := h.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(h.data[offset:], value)
	return nil
}

func (h *Heap) WriteU64(offset uint32, value uint64) error {
	if err := h.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(h.data[offset:], value)
	return nil
}

// sliceBacking grows the heap's byte slice.
type sliceBacking Heap

func (b *sliceBacking) Size() uint32 {
	return uint32(len(b.data))
}

func (b *sliceBacking) Grow(delta uint32) (uint32, error) {
	grown := make([]byte, uint64(len(b.data))+uint64(delta))
	copy(grown, b.data)
	b.data = grown
	return uint32(len(grown)), nil
}

func (b *sliceBacking) Zero(offset, size uint32) error {
	clear(b.data[offset : offset+size])
	return nil
}
