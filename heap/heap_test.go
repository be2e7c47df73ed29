package heap

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	objerrors "github.com/wippyai/objgraph/errors"
)

func TestHeap_ReadWrite(t *testing.T) {
	h := New(Options{InitialSize: 64})

	if err := h.Write(8, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := h.Read(8, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Read = %v", got)
	}

	t.Run("little_endian", func(t *testing.T) {
		if err := h.WriteU32(16, 0x11223344); err != nil {
			t.Fatal(err)
		}
		b, _ := h.ReadU8(16)
		if b != 0x44 {
			t.Errorf("low byte = %#x, want 0x44", b)
		}
		v16, _ := h.ReadU16(16)
		if v16 != 0x3344 {
			t.Errorf("u16 = %#x", v16)
		}
		if err := h.WriteU64(24, 0x0102030405060708); err != nil {
			t.Fatal(err)
		}
		v64, _ := h.ReadU64(24)
		if v64 != 0x0102030405060708 {
			t.Errorf("u64 = %#x", v64)
		}
	})

	t.Run("out_of_bounds", func(t *testing.T) {
		if _, err := h.Read(60, 8); err == nil {
			t.Error("expected out of bounds read error")
		}
		if err := h.WriteU32(62, 1); err == nil {
			t.Error("expected out of bounds write error")
		}
		if _, err := h.ReadU64(0xffffffff); err == nil {
			t.Error("expected error for offset overflow")
		}
	})
}

func TestHeap_AllocNeverNull(t *testing.T) {
	h := New(Options{InitialSize: 0})
	for i := 0; i < 16; i++ {
		ptr, err := h.Alloc(0, 1)
		if err != nil {
			t.Fatalf("Alloc failed: %v", err)
		}
		if ptr == 0 {
			t.Fatal("allocator returned NULL offset")
		}
	}
}

func TestHeap_AllocAlignmentAndZeroing(t *testing.T) {
	h := New(Options{InitialSize: 128})

	a, err := h.Alloc(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Write(a, []byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}
	h.Free(a, 3, 1)

	b, err := h.Alloc(16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if b%8 != 0 {
		t.Errorf("ptr %d not 8-aligned", b)
	}
	data, _ := h.Read(b, 16)
	for i, v := range data {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, v)
		}
	}
}

func TestHeap_GrowAndLimit(t *testing.T) {
	h := New(Options{InitialSize: 32, MaxSize: 256})

	var ptrs []uint32
	for i := 0; i < 6; i++ {
		p, err := h.Alloc(32, 4)
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}
	if h.Size() > 256 {
		t.Errorf("heap grew to %d beyond limit", h.Size())
	}

	_, err := h.Alloc(200, 4)
	if err == nil {
		t.Fatal("expected allocation failure at limit")
	}
	if !errors.Is(err, &objerrors.Error{Phase: objerrors.PhaseDecode, Kind: objerrors.KindAllocation}) {
		t.Errorf("unexpected error %v", err)
	}

	for _, p := range ptrs {
		h.Free(p, 32, 4)
	}
	if h.Live() != 0 || h.LiveBytes() != 0 {
		t.Errorf("live = %d/%d after freeing all", h.Live(), h.LiveBytes())
	}
	// everything coalesced: a large block fits again
	if _, err := h.Alloc(200, 4); err != nil {
		t.Errorf("alloc after free: %v", err)
	}
}

func TestHeap_FreeUnknownIgnored(t *testing.T) {
	h := New(DefaultOptions())
	p, _ := h.Alloc(8, 8)
	h.Free(p+1, 8, 8)
	if h.Live() != 1 {
		t.Errorf("Live = %d, want 1", h.Live())
	}
	h.Free(p, 8, 8)
	h.Free(p, 8, 8)
	if h.Live() != 0 {
		t.Errorf("Live = %d, want 0", h.Live())
	}
}

func TestHeap_RandomizedNoOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := New(Options{InitialSize: 256, MaxSize: 1 << 20})

	type block struct{ ptr, size uint32 }
	var live []block

	for step := 0; step < 2000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			h.Free(live[i].ptr, live[i].size, 4)
			live = append(live[:i], live[i+1:]...)
			continue
		}
		size := uint32(rng.Intn(64) + 1)
		p, err := h.Alloc(size, 4)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		for _, b := range live {
			if p < b.ptr+b.size && b.ptr < p+size {
				t.Fatalf("step %d: block [%d,%d) overlaps [%d,%d)", step, p, p+size, b.ptr, b.ptr+b.size)
			}
		}
		live = append(live, block{p, size})
	}
	if h.Live() != len(live) {
		t.Errorf("Live = %d, tracked %d", h.Live(), len(live))
	}
}
