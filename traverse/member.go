package traverse

import (
	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/typedesc"
)

// member is a member descriptor adjusted for one particular owner: the
// element count of a trailing dynamic array comes from the owner's
// disambiguator and small scalar arrays collapse into one blob.
type member struct {
	desc     typedesc.MemberDescriptor
	typ      *typedesc.TypeDescriptor
	index    int
	elements uint32
	stride   uint32
	// trailing union of a dynamic tagged union owner
	dynamicUnion bool
}

// embedding records where a nested object sits in its owner. The walked
// root has none; its disambiguator is supplied by the caller.
type embedding struct {
	member typedesc.MemberDescriptor
	owner  typedesc.Owner
	nested bool
}

func (w *Walker) member(parent *mobs.Mob, in *embedding, td *typedesc.TypeDescriptor, i int) (member, error) {
	m := member{
		desc:  td.Members[i],
		typ:   w.table.Type(td.Members[i].Type),
		index: i,
	}
	m.elements = m.desc.ArrayElements

	last := td.DynamicLength && i == len(td.Members)-1
	if last {
		d, err := w.dynamic(parent, in, td, m.typ)
		if err != nil {
			return member{}, err
		}
		switch td.DynamicType {
		case typedesc.DynamicArray:
			m.elements = uint32(d)
		case typedesc.DynamicTaggedUnion:
			m.dynamicUnion = true
		}
	}

	if m.elements > 1 && !m.desc.IsPointer && !m.typ.IsUnion && m.typ.IsLeaf() {
		if total := m.typ.Size * m.elements; total <= typedesc.MaxBlobSize {
			blob := *m.typ
			blob.Size = total
			m.typ = &blob
			m.elements = 1
		}
	}

	m.stride = m.typ.Size
	if m.desc.IsPointer {
		m.stride = objgraph.PointerSize
	}
	return m, nil
}

// dynamic returns the disambiguator of parent. Nested objects read it only
// now, once the members before the dynamic one have been visited: when
// decoding, the discriminant or count is not in memory any earlier.
func (w *Walker) dynamic(parent *mobs.Mob, in *embedding, td, last *typedesc.TypeDescriptor) (uint8, error) {
	if !in.nested {
		return parent.Disambiguator, nil
	}

	v, err := w.table.ReadDisambiguator(w.mem, parent.Type, parent.Address, &in.member, &in.owner)
	if err != nil {
		return 0, err
	}
	limit := uint32(typedesc.MaxDisambiguator)
	if td.DynamicType == typedesc.DynamicTaggedUnion {
		limit = uint32(len(last.Members) - 1)
	}
	if v > limit {
		return 0, errors.New(errors.PhaseTraverse, errors.KindInvalidData).
			Type(td.Name).
			Path(in.member.Name).
			Value(v).
			Detail("embedded %s value %d exceeds %d", td.DynamicType, v, limit).
			Build()
	}
	parent.Disambiguator = uint8(v)
	return uint8(v), nil
}

// visit dispatches element e of m. It reports the embedded child to descend
// into, if any.
func (w *Walker) visit(parent *mobs.Mob, m *member, e uint32, cb Callbacks) (mobs.Mob, *embedding, error) {
	addr := parent.Address + objgraph.Address(m.desc.Offset+e*m.stride)

	if m.desc.IsPointer {
		if cb.Pointer != nil {
			return mobs.Mob{}, nil, cb.Pointer(addr, &m.desc, parent)
		}
		return mobs.Mob{}, nil, nil
	}

	desc, typ := &m.desc, m.typ
	if typ.IsUnion {
		variant, err := w.variant(parent, m, e)
		if err != nil {
			return mobs.Mob{}, nil, err
		}
		desc = &typ.Members[variant]
		typ = w.table.Type(desc.Type)
	}

	shared := desc.IsShared && cb.Shared != nil
	if shared {
		if err := cb.Shared(addr, desc); err != nil {
			return mobs.Mob{}, nil, err
		}
	}

	if !typ.IsLeaf() {
		child := mobs.Mob{Type: desc.Type, Address: addr}
		in := &embedding{
			member: *desc,
			owner:  typedesc.Owner{Address: parent.Address, Type: parent.Type},
			nested: true,
		}
		return child, in, nil
	}

	if !shared && cb.Leaf != nil {
		return mobs.Mob{}, nil, cb.Leaf(addr, typ)
	}
	return mobs.Mob{}, nil, nil
}

func (w *Walker) variant(parent *mobs.Mob, m *member, e uint32) (int, error) {
	if m.dynamicUnion {
		// the owner's disambiguator is the active variant
		if n := len(m.typ.Members); int(parent.Disambiguator) >= n {
			panic(errors.InvalidDisambiguator(errors.PhaseTraverse, m.typ.Name, uint32(parent.Disambiguator), n))
		}
		return int(parent.Disambiguator), nil
	}
	idx, err := w.table.ReadVariant(w.mem, parent.Owner(), &m.desc, e)
	if err != nil {
		return 0, err
	}
	if n := len(m.typ.Members); int(idx) >= n {
		return 0, errors.New(errors.PhaseTraverse, errors.KindInvalidData).
			Type(m.typ.Name).
			Path(m.desc.Name).
			Value(idx).
			Detail("variant %d of element %d out of range (%d variants)", idx, e, n).
			Build()
	}
	return int(idx), nil
}
