package marshal

import (
	"go.uber.org/zap"

	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/traverse"
	"github.com/wippyai/objgraph/typedesc"
)

type encodeState uint8

const (
	encodeIdle encodeState = iota
	encodeValues
	encodeEnd
	encodePointers
)

type pointerRef struct {
	slot   objgraph.Address
	target objgraph.Address
	typ    typedesc.TypeID
}

// Marshaller encodes object graphs read from a Memory into byte buffers.
// Not safe for concurrent use.
type Marshaller struct {
	store

	buf     []byte
	written int

	state    encodeState
	root     mobs.Mob
	next     int // next object to emit
	pointers []pointerRef
	indexes  []uint8
	nextPtr  int
	roots    int
	closed   bool
}

// NewMarshaller creates a marshaller over the objects in mem.
func NewMarshaller(table *typedesc.Table, mem objgraph.Memory, opts Options) *Marshaller {
	m := &Marshaller{}
	m.init(table, mem, opts.Strategy, opts.AllowedTypes)
	Logger().Debug("marshaller created",
		zap.Int("types", table.Len()),
		zap.Bool("shared", table.HasShared()),
		zap.Stringer("strategy", opts.Strategy))
	return m
}

// SetBuffer provides the output buffer for the following Marshal calls.
func (m *Marshaller) SetBuffer(buf []byte) {
	m.buf = buf
	m.written = 0
}

// Written returns the number of bytes written into the current buffer.
func (m *Marshaller) Written() int {
	return m.written
}

// Stats returns the current bookkeeping counters.
func (m *Marshaller) Stats() Stats {
	return m.stats(m.roots)
}

// Marshal encodes the graph reachable from the object of type typ at addr.
//
// When the buffer fills up Marshal returns an error matching
// errors.ErrBufferFull. Everything up to Written is complete; ship it, call
// SetBuffer with fresh space and call Marshal again with the same root.
// Any other error abandons the root: objects discovered for it are
// forgotten and the next call starts a new root.
//
// Objects already sent for an earlier root are referenced, not repeated.
// Marshalling the same root twice without ClearStore is an invariant
// violation.
func (m *Marshaller) Marshal(addr objgraph.Address, typ typedesc.TypeID) error {
	if m.closed {
		return errors.InvalidInput(errors.PhaseEncode, "marshaller is closed")
	}

	if m.state == encodeIdle {
		if !m.typeAllowed(typ) {
			return m.filtered(errors.PhaseEncode, typ)
		}
		if err := m.begin(addr, typ); err != nil {
			m.abort()
			return err
		}
	} else if m.root.Address != addr || m.root.Type != typ {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Type(m.table.Name(typ)).
			Detail("root 0x%x differs from unfinished root 0x%x", addr, m.root.Address).
			Build()
	}

	for m.state != encodeIdle {
		var err error
		switch m.state {
		case encodeValues:
			err = m.emitValues()
		case encodeEnd:
			err = m.writeByte(byte(typedesc.TypeNull))
			if err == nil {
				m.state = encodePointers
			}
		case encodePointers:
			err = m.emitPointers()
		}
		if err != nil {
			if !IsBufferFull(err) {
				m.abort()
			}
			return err
		}
	}
	return nil
}

// begin discovers every object reachable from the root that is not yet
// tracked and resolves all pointer indexes up front.
func (m *Marshaller) begin(addr objgraph.Address, typ typedesc.TypeID) error {
	d, err := m.table.Disambiguator(m.mem, typ, addr, nil, nil)
	if err != nil {
		return err
	}
	m.root = mobs.Mob{Type: typ, Address: addr, Disambiguator: d}
	m.objects.Push(m.root)

	m.pointers = m.pointers[:0]
	hasShared := m.table.HasShared()

	for i := m.rootIndex; i < m.objects.Size(); i++ {
		obj, _ := m.objects.Get(i)
		cb := traverse.Callbacks{Pointer: m.discover}
		if hasShared {
			cb.Shared = m.addShared
		}
		if err := m.walker.Walk(&obj, cb); err != nil {
			return err
		}
	}

	m.indexes = m.indexes[:0]
	for _, p := range m.pointers {
		idx, ok := m.indexOf(p.typ, p.target)
		if !ok {
			panic(errors.Invariant(errors.PhaseEncode, "pointer target 0x%x of type %s was not discovered", p.target, m.table.Name(p.typ)))
		}
		if idx > MaxIndex {
			return errors.Overflow(errors.PhaseEncode, idx, "one byte object index")
		}
		m.indexes = append(m.indexes, uint8(idx))
	}

	m.next = m.rootIndex
	m.nextPtr = 0
	m.state = encodeValues

	Logger().Debug("marshal root",
		zap.String("type", m.table.Name(typ)),
		zap.Uint32("addr", uint32(addr)),
		zap.Int("objects", m.objects.Size()-m.rootIndex),
		zap.Int("pointers", len(m.pointers)))
	return nil
}

func (m *Marshaller) discover(slot objgraph.Address, md *typedesc.MemberDescriptor, parent *mobs.Mob) error {
	target, err := objgraph.ReadPointer(m.mem, slot)
	if err != nil {
		return errors.MemoryAccess(errors.PhaseEncode, uint32(slot), err)
	}
	m.pointers = append(m.pointers, pointerRef{slot: slot, target: target, typ: md.Type})

	if target == objgraph.NullAddress {
		return nil
	}
	if _, ok := m.shared.Lookup(md.Type, target); ok {
		return nil
	}
	if _, ok := m.objects.Lookup(md.Type, target); ok {
		return nil
	}
	d, err := m.table.Disambiguator(m.mem, md.Type, target, md, parent.Owner())
	if err != nil {
		return err
	}
	m.objects.PushUnique(mobs.Mob{Type: md.Type, Address: target, Disambiguator: d})
	return nil
}

func (m *Marshaller) emitValues() error {
	for m.next < m.objects.Size() {
		obj, _ := m.objects.Get(m.next)
		start := m.written
		if err := m.emitObject(&obj); err != nil {
			m.written = start
			return err
		}
		m.next++
	}
	m.state = encodeEnd
	return nil
}

func (m *Marshaller) emitObject(obj *mobs.Mob) error {
	if err := m.writeByte(byte(obj.Type)); err != nil {
		return err
	}
	if m.table.Type(obj.Type).DynamicLength {
		if err := m.writeByte(obj.Disambiguator); err != nil {
			return err
		}
	}
	return m.walker.Walk(obj, traverse.Callbacks{Leaf: m.writeLeaf})
}

func (m *Marshaller) writeLeaf(addr objgraph.Address, td *typedesc.TypeDescriptor) error {
	free := len(m.buf) - m.written
	if int(td.Size) > free {
		return errors.BufferFull(int(td.Size), free)
	}
	src, err := m.mem.Read(uint32(addr), td.Size)
	if err != nil {
		return errors.MemoryAccess(errors.PhaseEncode, uint32(addr), err)
	}
	dst := m.buf[m.written : m.written+int(td.Size)]
	if td.MarshalCopy != nil {
		td.MarshalCopy(dst, src)
	} else {
		copy(dst, src)
	}
	m.written += int(td.Size)
	return nil
}

func (m *Marshaller) emitPointers() error {
	for m.nextPtr < len(m.indexes) {
		if err := m.writeByte(m.indexes[m.nextPtr]); err != nil {
			return err
		}
		m.nextPtr++
	}
	m.finish()
	return nil
}

func (m *Marshaller) writeByte(b byte) error {
	if m.written >= len(m.buf) {
		return errors.BufferFull(1, 0)
	}
	m.buf[m.written] = b
	m.written++
	return nil
}

func (m *Marshaller) finish() {
	Logger().Debug("marshal root complete",
		zap.String("type", m.table.Name(m.root.Type)),
		zap.Int("objects", m.objects.Size()-m.rootIndex),
		zap.Int("pointers", len(m.indexes)))
	m.commit()
	m.roots++
	m.reset()
}

func (m *Marshaller) abort() {
	m.rollback()
	m.reset()
}

func (m *Marshaller) reset() {
	m.state = encodeIdle
	m.root = mobs.Mob{}
	m.pointers = m.pointers[:0]
	m.indexes = m.indexes[:0]
	m.next = 0
	m.nextPtr = 0
}

// ClearStore forgets every object sent so far, including any unfinished
// root. The next root is encoded as if it were the first.
func (m *Marshaller) ClearStore() {
	if m.state != encodeIdle {
		Logger().Warn("clearing store with unfinished root",
			zap.String("type", m.table.Name(m.root.Type)),
			zap.Uint32("addr", uint32(m.root.Address)))
	}
	m.clearStore()
	m.reset()
	m.roots = 0
}

// Close releases the bookkeeping. Encoded objects belong to the caller and
// are never freed.
func (m *Marshaller) Close() {
	if m.closed {
		return
	}
	m.ClearStore()
	m.closed = true
	m.buf = nil
}
