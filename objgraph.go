package objgraph

// Address is an offset into a linear Memory. Object graphs are stored in
// linear memory so that a pointer is just an index into the arena.
type Address uint32

// NullAddress is never handed out by an Allocator.
const NullAddress Address = 0

// PointerSize is the in-memory width of a pointer member (little-endian u32).
const PointerSize = 4

// Memory represents a linear, byte-addressable arena holding marshallable objects.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates objects in linear memory.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// ReadPointer loads the pointer stored at slot.
func ReadPointer(mem Memory, slot Address) (Address, error) {
	v, err := mem.ReadU32(uint32(slot))
	if err != nil {
		return NullAddress, err
	}
	return Address(v), nil
}

// WritePointer stores target into the pointer slot.
func WritePointer(mem Memory, slot, target Address) error {
	return mem.WriteU32(uint32(slot), uint32(target))
}
