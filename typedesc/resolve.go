package typedesc

import (
	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
)

// Owner identifies the object that contains a member or pointer slot.
type Owner struct {
	Address objgraph.Address
	Type    TypeID
}

// Disambiguator computes the runtime value needed to size the object of type
// typ at obj: the active variant of a dynamic tagged union or the element
// count of a dynamic array. Fixed types yield 0.
//
// The object's own callback is preferred. Otherwise the callback of parent is
// asked about member, which covers discriminants stored in a sibling field.
// member and parent may be nil for roots. A value above 255 is an invariant
// violation.
func (t *Table) Disambiguator(mem objgraph.Memory, typ TypeID, obj objgraph.Address, member *MemberDescriptor, parent *Owner) (uint8, error) {
	v, err := t.ReadDisambiguator(mem, typ, obj, member, parent)
	if err != nil {
		return 0, err
	}
	if v > MaxDisambiguator {
		panic(errors.DisambiguatorOverflow(t.Type(typ).Name, v))
	}
	return uint8(v), nil
}

// ReadDisambiguator is like Disambiguator but returns the callback's value
// unchecked. Use it for memory that may hold values not written by the
// caller, such as objects being decoded.
func (t *Table) ReadDisambiguator(mem objgraph.Memory, typ TypeID, obj objgraph.Address, member *MemberDescriptor, parent *Owner) (uint32, error) {
	td := t.Type(typ)
	if !td.DynamicLength {
		return 0, nil
	}

	self, fromParent := td.ArrayElements, (*TypeDescriptor).arrayFunc
	if td.DynamicType == DynamicTaggedUnion {
		self, fromParent = td.TaggedUnionMember, (*TypeDescriptor).unionFunc
	}

	var (
		v   uint32
		err error
	)
	if self != nil {
		v, err = self(mem, obj, td.DynamicMember(), 0)
	} else {
		if parent == nil {
			panic(errors.New(errors.PhaseSize, errors.KindInvariant).
				Type(td.Name).
				Detail("dynamic %s has no callback and no parent to ask", td.DynamicType).
				Build())
		}
		pt := t.Type(parent.Type)
		fn := fromParent(pt)
		if fn == nil {
			panic(errors.New(errors.PhaseSize, errors.KindInvariant).
				Type(pt.Name).
				Detail("parent of dynamic %s %q declares no %s callback", td.DynamicType, td.Name, td.DynamicType).
				Build())
		}
		v, err = fn(mem, parent.Address, member, 0)
	}
	if err != nil {
		return 0, errors.New(errors.PhaseSize, errors.KindMemory).
			Type(td.Name).
			Detail("read disambiguator").
			Cause(err).
			Build()
	}
	return v, nil
}

func (t *TypeDescriptor) unionFunc() DynamicFunc { return t.TaggedUnionMember }

func (t *TypeDescriptor) arrayFunc() DynamicFunc { return t.ArrayElements }

// ActiveVariant asks owner's TaggedUnionMember which variant of the union
// member is active for the given array element. An index beyond the union's
// variants is an invariant violation.
func (t *Table) ActiveVariant(mem objgraph.Memory, owner *Owner, member *MemberDescriptor, element uint32) (int, error) {
	idx, err := t.ReadVariant(mem, owner, member, element)
	if err != nil {
		return 0, err
	}
	ut := t.Type(member.Type)
	if int(idx) >= len(ut.Members) {
		panic(errors.InvalidDisambiguator(errors.PhaseTraverse, ut.Name, idx, len(ut.Members)))
	}
	return int(idx), nil
}

// ReadVariant is like ActiveVariant but returns the callback's value
// unchecked.
func (t *Table) ReadVariant(mem objgraph.Memory, owner *Owner, member *MemberDescriptor, element uint32) (uint32, error) {
	ot := t.Type(owner.Type)
	if ot.TaggedUnionMember == nil {
		panic(errors.New(errors.PhaseTraverse, errors.KindInvariant).
			Type(ot.Name).
			Path(member.Name).
			Detail("owner of union %q declares no tagged union callback", t.Type(member.Type).Name).
			Build())
	}
	idx, err := ot.TaggedUnionMember(mem, owner.Address, member, element)
	if err != nil {
		return 0, errors.New(errors.PhaseTraverse, errors.KindMemory).
			Type(ot.Name).
			Path(member.Name).
			Detail("read union discriminant").
			Cause(err).
			Build()
	}
	return idx, nil
}

// FieldAt returns a DynamicFunc reading an unsigned little-endian value of
// width 1, 2 or 4 bytes at offset within the object. For arrays of unions the
// values are expected to be packed: element i is read at offset+i*width.
func FieldAt(offset, width uint32) DynamicFunc {
	return func(mem objgraph.Memory, addr objgraph.Address, _ *MemberDescriptor, element uint32) (uint32, error) {
		at := uint32(addr) + offset + element*width
		switch width {
		case 1:
			v, err := mem.ReadU8(at)
			return uint32(v), err
		case 2:
			v, err := mem.ReadU16(at)
			return uint32(v), err
		case 4:
			return mem.ReadU32(at)
		default:
			panic(errors.Invariant(errors.PhaseInit, "unsupported field width %d", width))
		}
	}
}

// DiscriminantAt reads a tagged union discriminant stored at offset.
func DiscriminantAt(offset, width uint32) DynamicFunc {
	return FieldAt(offset, width)
}

// CountAt reads an array element count stored at offset.
func CountAt(offset, width uint32) DynamicFunc {
	return FieldAt(offset, width)
}

// ByMember dispatches to a callback keyed by member offset. It serves types
// owning several union members.
func ByMember(funcs map[uint32]DynamicFunc) DynamicFunc {
	return func(mem objgraph.Memory, addr objgraph.Address, member *MemberDescriptor, element uint32) (uint32, error) {
		if member != nil {
			if fn, ok := funcs[member.Offset]; ok {
				return fn(mem, addr, member, element)
			}
		}
		panic(errors.Invariant(errors.PhaseTraverse, "no dynamic callback for member %+v", member))
	}
}
