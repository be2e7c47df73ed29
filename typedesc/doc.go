// Package typedesc defines marshal type descriptor tables.
//
// A Table is a read-only array of TypeDescriptor, indexed by TypeID. Each
// descriptor records the static size of a type and its members in declared
// order. Members reference other types by id and may be pointers, shared
// (aliasable) members or fixed arrays.
//
// # Dynamic Types
//
// Two shapes of dynamic-length types are supported, both with the dynamic
// member last:
//
//	DynamicTaggedUnion  size = offset(last) + size(active variant)
//	DynamicArray        size = offset(last) + count * size(element)
//
// The active variant or element count (the disambiguator) is not part of the
// descriptor. It is read at run time through a DynamicFunc declared either by
// the dynamic type itself or by the type that owns it:
//
//	node := &typedesc.TypeDescriptor{
//	    Name:          "node_t",
//	    Members:       []typedesc.MemberDescriptor{count, items},
//	    DynamicLength: true,
//	    DynamicType:   typedesc.DynamicArray,
//	    ArrayElements: typedesc.CountAt(0, 1),
//	}
//
// Disambiguators travel as one byte, so they are limited to 255.
//
// # Validation
//
// NewTable checks every member reference once. Lookups afterwards treat an
// unknown id as an invariant violation and panic.
package typedesc
