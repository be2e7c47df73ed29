// Package heap provides an in-process linear memory for object graphs.
//
// A Heap is a growable byte slice addressed by uint32 offsets, paired with a
// first-fit free-list Arena. It stands in for the firmware pool allocator:
// blocks are zeroed, offset 0 is never allocated so it can represent NULL,
// and growth can be capped to model memory-constrained targets.
//
//	h := heap.New(heap.Options{InitialSize: 1024, MaxSize: 64 << 10})
//	ptr, err := h.Alloc(24, 8)
//	...
//	h.Free(ptr, 24, 8)
//
// The Arena is independent of the storage and is reused by the wazero
// backend in package wasmmem.
package heap
