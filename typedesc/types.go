package typedesc

import (
	"github.com/wippyai/objgraph"
)

// TypeID indexes a descriptor in a Table.
type TypeID uint8

const (
	// TypeNull is reserved for the NULL object and doubles as the end of
	// objects marker on the wire. No application type may use it.
	TypeNull TypeID = 0xff

	// MaxTypes is the largest table that can be addressed.
	MaxTypes = int(TypeNull)

	// MaxDisambiguator is the largest value the one-byte wire field can hold.
	MaxDisambiguator = 0xff

	// MaxBlobSize bounds the span of a scalar array marshalled as one leaf.
	MaxBlobSize = 0xff
)

// DynamicType selects how a dynamic-length type is sized.
type DynamicType uint8

const (
	// DynamicTaggedUnion types end in a union; the disambiguator is the active variant index.
	DynamicTaggedUnion DynamicType = iota
	// DynamicArray types end in a repeated member; the disambiguator is the element count.
	DynamicArray
)

func (d DynamicType) String() string {
	switch d {
	case DynamicTaggedUnion:
		return "tagged_union"
	case DynamicArray:
		return "array"
	default:
		return "unknown"
	}
}

// DynamicFunc reads the runtime-only value describing a dynamic member of the
// object at addr. For tagged unions it returns the active variant index, for
// arrays the element count. element is the index within an array of unions.
type DynamicFunc func(mem objgraph.Memory, addr objgraph.Address, member *MemberDescriptor, element uint32) (uint32, error)

// CopyFunc transforms leaf bytes while they are copied to or from the stream.
// len(dst) == len(src).
type CopyFunc func(dst, src []byte)

// MemberDescriptor describes one member of a compound type.
type MemberDescriptor struct {
	Name          string
	Offset        uint32
	Type          TypeID
	IsPointer     bool
	IsShared      bool
	ArrayElements uint32
}

// TypeDescriptor describes the layout of one marshallable type.
//
// Leaf types have no members. Unions list their variants as members, all at
// offset 0. A dynamic-length type has its dynamic member last.
type TypeDescriptor struct {
	// TaggedUnionMember returns the active variant of a union member. It is
	// declared by the type owning the union member, or by a dynamic tagged
	// union type for its own trailing member.
	TaggedUnionMember DynamicFunc
	// ArrayElements returns the element count of a trailing dynamic array.
	ArrayElements DynamicFunc

	MarshalCopy   CopyFunc
	UnmarshalCopy CopyFunc

	Name          string
	Members       []MemberDescriptor
	Size          uint32
	Align         uint32
	IsUnion       bool
	DynamicLength bool
	DynamicType   DynamicType
}

// IsLeaf reports whether the type has no nested members.
func (t *TypeDescriptor) IsLeaf() bool {
	return len(t.Members) == 0
}

// DynamicMember returns the trailing dynamic member, or nil for fixed types.
func (t *TypeDescriptor) DynamicMember() *MemberDescriptor {
	if !t.DynamicLength || len(t.Members) == 0 {
		return nil
	}
	return &t.Members[len(t.Members)-1]
}

// Alignment returns Align, defaulting to 1.
func (t *TypeDescriptor) Alignment() uint32 {
	if t.Align == 0 {
		return 1
	}
	return t.Align
}

// Leaf returns a scalar type of the given size.
func Leaf(name string, size uint32) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Size: size, Align: naturalAlign(size)}
}

// Struct returns a fixed compound type.
func Struct(name string, size uint32, members ...MemberDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Size: size, Align: 4, Members: members}
}

// Union returns a union whose variants are the given types, all at offset 0.
// size must be the size of the largest variant.
func Union(name string, size uint32, variants ...TypeID) *TypeDescriptor {
	members := make([]MemberDescriptor, len(variants))
	for i, v := range variants {
		members[i] = MemberDescriptor{Type: v, ArrayElements: 1}
	}
	return &TypeDescriptor{Name: name, Size: size, Align: 4, Members: members, IsUnion: true}
}

// Member returns a scalar member descriptor.
func Member(name string, offset uint32, typ TypeID) MemberDescriptor {
	return MemberDescriptor{Name: name, Offset: offset, Type: typ, ArrayElements: 1}
}

// Pointer returns a pointer member descriptor.
func Pointer(name string, offset uint32, typ TypeID) MemberDescriptor {
	return MemberDescriptor{Name: name, Offset: offset, Type: typ, IsPointer: true, ArrayElements: 1}
}

// Array returns a fixed array member descriptor.
func Array(name string, offset uint32, typ TypeID, elements uint32) MemberDescriptor {
	return MemberDescriptor{Name: name, Offset: offset, Type: typ, ArrayElements: elements}
}

// Shared marks m as potentially aliased by pointers elsewhere in the graph.
func Shared(m MemberDescriptor) MemberDescriptor {
	m.IsShared = true
	return m
}

func naturalAlign(size uint32) uint32 {
	switch {
	case size >= 8:
		return 8
	case size >= 4:
		return 4
	case size >= 2:
		return 2
	default:
		return 1
	}
}
