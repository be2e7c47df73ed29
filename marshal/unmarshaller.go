package marshal

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/traverse"
	"github.com/wippyai/objgraph/typedesc"
)

type decodeState uint8

const (
	decodeValues decodeState = iota
	decodePointers
)

type pointerSlot struct {
	slot  objgraph.Address
	owner int
	typ   typedesc.TypeID
}

// Record describes one decoded object.
type Record struct {
	Mob   mobs.Mob
	Index int
	Size  uint32
	// Raw holds the object's bytes as they appeared on the wire, type and
	// disambiguator included. It aliases the input buffer and is only valid
	// during the callback.
	Raw []byte
}

// Edge describes one resolved pointer.
type Edge struct {
	Target mobs.Mob
	Slot   objgraph.Address
	// Owner is the object index holding the pointer slot.
	Owner int
	Index uint8
	// Shared is set when the index addresses a shared member.
	Shared bool
}

// Observer receives decode events. Either field may be nil.
type Observer struct {
	Object  func(Record)
	Pointer func(Edge)
}

// Unmarshaller decodes byte streams produced by a Marshaller, allocating
// the reconstructed objects in a Memory.
// Not safe for concurrent use.
type Unmarshaller struct {
	store

	alloc    objgraph.Allocator
	observer *Observer

	buf []byte
	pos int

	state    decodeState
	slots    []pointerSlot
	nextSlot int
	current  int // index of the object being decoded
	bounds   [2]uint32
	roots    int
	closed   bool
}

// NewUnmarshaller creates an unmarshaller placing objects in mem through
// alloc. They are usually the same value, such as a *heap.Heap.
func NewUnmarshaller(table *typedesc.Table, mem objgraph.Memory, alloc objgraph.Allocator, opts UnmarshalOptions) *Unmarshaller {
	u := &Unmarshaller{alloc: alloc, observer: opts.Observer}
	u.init(table, mem, opts.Strategy, opts.AllowedTypes)
	Logger().Debug("unmarshaller created",
		zap.Int("types", table.Len()),
		zap.Stringer("strategy", opts.Strategy))
	return u
}

// SetBuffer provides the input for the following Unmarshal calls.
func (u *Unmarshaller) SetBuffer(buf []byte) {
	u.buf = buf
	u.pos = 0
}

// Consumed returns the number of bytes of the current buffer that have been
// decoded. Unconsumed bytes must be presented again, followed by more data.
func (u *Unmarshaller) Consumed() int {
	return u.pos
}

// Stats returns the current bookkeeping counters.
func (u *Unmarshaller) Stats() Stats {
	return u.stats(u.roots)
}

// Unmarshal decodes the next root from the buffer and returns it. Ownership
// of the reconstructed objects passes to the caller.
//
// When the buffer runs dry Unmarshal returns an error matching
// errors.ErrIncomplete. Keep the bytes after Consumed, append more input,
// call SetBuffer and Unmarshal again.
func (u *Unmarshaller) Unmarshal() (mobs.Mob, error) {
	if u.closed {
		return mobs.Mob{}, errors.InvalidInput(errors.PhaseDecode, "unmarshaller is closed")
	}

	if u.state == decodeValues {
		if err := u.decodeValues(); err != nil {
			return mobs.Mob{}, err
		}
		if u.objects.Size() == u.rootIndex {
			return mobs.Mob{}, errors.InvalidData(errors.PhaseDecode, nil, "root without objects")
		}
		if u.table.HasShared() {
			for i := u.rootIndex; i < u.objects.Size(); i++ {
				obj, _ := u.objects.Get(i)
				if err := u.registerShared(&obj); err != nil {
					return mobs.Mob{}, err
				}
			}
		}
		u.state = decodePointers
	}

	if err := u.decodePointers(); err != nil {
		return mobs.Mob{}, err
	}

	root, _ := u.objects.Get(u.rootIndex)
	Logger().Debug("unmarshal root complete",
		zap.String("type", u.table.Name(root.Type)),
		zap.Uint32("addr", uint32(root.Address)),
		zap.Int("objects", u.objects.Size()-u.rootIndex),
		zap.Int("pointers", len(u.slots)))

	u.commit()
	u.roots++
	u.state = decodeValues
	u.slots = u.slots[:0]
	u.nextSlot = 0
	return root, nil
}

func (u *Unmarshaller) decodeValues() error {
	for {
		start := u.pos
		marks := len(u.slots)

		b, ok := u.readByte()
		if !ok {
			return errors.Incomplete(1, 0)
		}
		typ := typedesc.TypeID(b)
		if typ == typedesc.TypeNull {
			return nil
		}

		obj, err := u.decodeObject(typ)
		if err != nil {
			u.pos = start
			u.slots = u.slots[:marks]
			return err
		}

		idx := u.objects.Push(obj)
		if u.observer != nil && u.observer.Object != nil {
			u.observer.Object(Record{
				Mob:   obj,
				Index: idx,
				Size:  u.table.ObjSize(obj.Type, obj.Disambiguator),
				Raw:   u.buf[start:u.pos],
			})
		}
	}
}

// decodeObject allocates one object and fills its leaves. On failure the
// allocation is released.
func (u *Unmarshaller) decodeObject(typ typedesc.TypeID) (mobs.Mob, error) {
	if !u.table.Known(typ) {
		return mobs.Mob{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(uint32(typ)).
			Detail("unknown type %d (table has %d types)", typ, u.table.Len()).
			Build()
	}
	if u.objects.Size() == u.rootIndex && !u.typeAllowed(typ) {
		return mobs.Mob{}, u.filtered(errors.PhaseDecode, typ)
	}

	td := u.table.Type(typ)
	obj := mobs.Mob{Type: typ}
	if td.DynamicLength {
		d, ok := u.readByte()
		if !ok {
			return mobs.Mob{}, errors.Incomplete(1, 0)
		}
		if !u.table.ValidDisambiguator(typ, d) {
			return mobs.Mob{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Type(td.Name).
				Value(uint32(d)).
				Detail("disambiguator out of range").
				Build()
		}
		obj.Disambiguator = d
	}

	size := u.table.ObjSize(typ, obj.Disambiguator)
	ptr, err := u.alloc.Alloc(size, objectAlign)
	if err != nil {
		return mobs.Mob{}, err
	}
	obj.Address = objgraph.Address(ptr)

	u.current = u.objects.Size()
	u.bounds = [2]uint32{ptr, ptr + size}
	err = u.walker.Walk(&obj, traverse.Callbacks{
		Leaf:    u.readLeaf,
		Pointer: u.recordSlot,
	})
	if err != nil {
		u.alloc.Free(ptr, size, objectAlign)
		return mobs.Mob{}, err
	}
	return obj, nil
}

// inside reports whether [addr, addr+size) lies within the object being
// decoded. Counts read from the stream may claim more elements than an
// embedded array has room for.
func (u *Unmarshaller) inside(addr objgraph.Address, size uint32) error {
	start, end := uint32(addr), uint32(addr)+size
	if start < u.bounds[0] || end > u.bounds[1] || end < start {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(uint32(addr)).
			Detail("member [0x%x, 0x%x) outside object [0x%x, 0x%x)", start, end, u.bounds[0], u.bounds[1]).
			Build()
	}
	return nil
}

func (u *Unmarshaller) readLeaf(addr objgraph.Address, td *typedesc.TypeDescriptor) error {
	if err := u.inside(addr, td.Size); err != nil {
		return err
	}
	avail := len(u.buf) - u.pos
	if int(td.Size) > avail {
		return errors.Incomplete(int(td.Size), avail)
	}
	src := u.buf[u.pos : u.pos+int(td.Size)]
	if td.UnmarshalCopy != nil {
		dst := make([]byte, len(src))
		td.UnmarshalCopy(dst, src)
		src = dst
	}
	if err := u.mem.Write(uint32(addr), src); err != nil {
		return errors.MemoryAccess(errors.PhaseDecode, uint32(addr), err)
	}
	u.pos += int(td.Size)
	return nil
}

func (u *Unmarshaller) recordSlot(slot objgraph.Address, md *typedesc.MemberDescriptor, _ *mobs.Mob) error {
	if err := u.inside(slot, objgraph.PointerSize); err != nil {
		return err
	}
	u.slots = append(u.slots, pointerSlot{slot: slot, owner: u.current, typ: md.Type})
	return nil
}

func (u *Unmarshaller) decodePointers() error {
	for u.nextSlot < len(u.slots) {
		p := u.slots[u.nextSlot]
		index, ok := u.readByte()
		if !ok {
			return errors.Incomplete(1, 0)
		}

		target, ok := u.resolve(index)
		if !ok {
			u.pos--
			return errors.DanglingIndex(nil, uint32(index), u.objects.Size()+u.shared.Size())
		}
		if !target.IsNull() && target.Type != p.typ {
			u.pos--
			return errors.TypeMismatch(errors.PhaseDecode, nil, u.table.Name(p.typ), u.table.Name(target.Type))
		}
		if err := objgraph.WritePointer(u.mem, p.slot, target.Address); err != nil {
			u.pos--
			return errors.MemoryAccess(errors.PhaseDecode, uint32(p.slot), err)
		}

		if u.observer != nil && u.observer.Pointer != nil {
			u.observer.Pointer(Edge{
				Target: target,
				Slot:   p.slot,
				Owner:  p.owner,
				Index:  index,
				Shared: int(index) >= u.objects.Size(),
			})
		}
		u.nextSlot++
	}
	return nil
}

func (u *Unmarshaller) readByte() (uint8, bool) {
	if u.pos >= len(u.buf) {
		return 0, false
	}
	b := u.buf[u.pos]
	u.pos++
	return b, true
}

// ClearStore forgets every tracked object without freeing it and abandons
// any unfinished root.
func (u *Unmarshaller) ClearStore() {
	if u.state != decodeValues || u.objects.Size() > u.rootIndex {
		Logger().Warn("clearing store with unfinished root",
			zap.Int("objects", u.objects.Size()-u.rootIndex))
	}
	u.clearStore()
	u.state = decodeValues
	u.slots = u.slots[:0]
	u.nextSlot = 0
	u.roots = 0
}

// Close releases the bookkeeping. With freeAll every object still tracked
// is freed, which is how a cancelled transfer avoids leaking a partially
// reconstructed graph. Objects of completed roots are tracked until
// ClearStore, so only pass freeAll when abandoning them too.
func (u *Unmarshaller) Close(freeAll bool) {
	if u.closed {
		return
	}
	if freeAll {
		freed := 0
		for {
			obj, ok := u.objects.Pop()
			if !ok {
				break
			}
			if obj.IsNull() {
				continue
			}
			u.alloc.Free(uint32(obj.Address), u.table.ObjSize(obj.Type, obj.Disambiguator), objectAlign)
			freed++
		}
		Logger().Debug("unmarshaller freed objects", zap.Int("count", freed))
	}
	u.ClearStore()
	u.closed = true
	u.buf = nil
}

// IsIncomplete reports whether err asks for more input.
func IsIncomplete(err error) bool {
	return stderrors.Is(err, errors.ErrIncomplete)
}

// IsBufferFull reports whether err asks for more output space.
func IsBufferFull(err error) bool {
	return stderrors.Is(err, errors.ErrBufferFull)
}
