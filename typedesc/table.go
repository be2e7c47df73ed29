package typedesc

import (
	"fmt"

	"github.com/wippyai/objgraph/errors"
)

// Table is an immutable descriptor table. Every id referenced by a member is
// checked once at construction, so lookups never re-validate.
type Table struct {
	types     []*TypeDescriptor
	hasShared bool
}

// NewTable validates types and builds a table. The slice index of each
// descriptor is its TypeID.
func NewTable(types []*TypeDescriptor) (*Table, error) {
	if len(types) > MaxTypes {
		return nil, errors.New(errors.PhaseInit, errors.KindOverflow).
			Detail("%d types exceed the limit of %d", len(types), MaxTypes).
			Build()
	}

	t := &Table{types: make([]*TypeDescriptor, len(types))}
	copy(t.types, types)

	for id, td := range t.types {
		if td == nil {
			return nil, errors.New(errors.PhaseInit, errors.KindInvalidInput).
				Detail("type %d is nil", id).
				Build()
		}
		if err := t.validate(TypeID(id), td); err != nil {
			return nil, err
		}
		for _, m := range td.Members {
			if m.IsShared {
				t.hasShared = true
			}
		}
	}
	return t, nil
}

// MustTable is like NewTable but panics with an invariant violation.
func MustTable(types []*TypeDescriptor) *Table {
	t, err := NewTable(types)
	if err != nil {
		panic(errors.Invariant(errors.PhaseInit, "%s", err.Error()))
	}
	return t
}

func (t *Table) validate(id TypeID, td *TypeDescriptor) error {
	fail := func(format string, args ...any) error {
		return errors.New(errors.PhaseInit, errors.KindInvalidInput).
			Type(td.Name).
			Detail("type %d: %s", id, fmt.Sprintf(format, args...)).
			Build()
	}

	for i, m := range td.Members {
		if int(m.Type) >= len(t.types) {
			return errors.New(errors.PhaseInit, errors.KindInvalidInput).
				Type(td.Name).
				Path(m.Name).
				Detail("member %d references unknown type %d (table has %d types)", i, m.Type, len(t.types)).
				Build()
		}
		if m.ArrayElements == 0 {
			return fail("member %d has zero array elements", i)
		}
		if td.IsUnion && (m.Offset != 0 || m.IsPointer) {
			return fail("union variant %d must be a non-pointer member at offset 0", i)
		}
	}

	if td.IsUnion && len(td.Members) == 0 {
		return fail("union has no variants")
	}

	if !td.DynamicLength {
		return nil
	}
	if td.IsUnion {
		return fail("a union cannot be dynamic, its owner is")
	}
	if len(td.Members) == 0 {
		return fail("dynamic type has no members")
	}

	last := td.Members[len(td.Members)-1]
	lastType := t.types[last.Type]
	switch td.DynamicType {
	case DynamicTaggedUnion:
		if !lastType.IsUnion || last.IsPointer || last.ArrayElements != 1 {
			return fail("dynamic tagged union must end in a scalar union member")
		}
	case DynamicArray:
		if last.IsPointer {
			return fail("dynamic array must end in a non-pointer member")
		}
	default:
		return fail("unknown dynamic type %d", td.DynamicType)
	}
	return nil
}

// Len returns the number of types.
func (t *Table) Len() int {
	return len(t.types)
}

// Type returns the descriptor for id. An id outside the table is an
// invariant violation.
func (t *Table) Type(id TypeID) *TypeDescriptor {
	if int(id) >= len(t.types) {
		panic(errors.UnknownType(errors.PhaseTraverse, uint32(id), len(t.types)))
	}
	return t.types[id]
}

// Known reports whether id addresses a descriptor. Use it to vet ids read
// from untrusted input before calling Type.
func (t *Table) Known(id TypeID) bool {
	return int(id) < len(t.types)
}

// Name returns the descriptor name for id, or a placeholder for unknown and
// reserved ids.
func (t *Table) Name(id TypeID) string {
	if id == TypeNull {
		return "null"
	}
	if !t.Known(id) {
		return fmt.Sprintf("type#%d", id)
	}
	if n := t.types[id].Name; n != "" {
		return n
	}
	return fmt.Sprintf("type#%d", id)
}

// HasShared reports whether any member of any type is marked shared.
func (t *Table) HasShared() bool {
	return t.hasShared
}
