package typedesc

import (
	"github.com/wippyai/objgraph/errors"
)

// ObjSize returns the byte footprint of an object of type id with the given
// disambiguator. Encoding and decoding both size objects through this one
// function so the two sides cannot disagree.
//
// A tagged union disambiguator at or beyond the variant count is an
// invariant violation.
func (t *Table) ObjSize(id TypeID, d uint8) uint32 {
	td := t.Type(id)
	if !td.DynamicLength {
		return td.Size
	}

	dm := td.DynamicMember()
	dt := t.Type(dm.Type)

	if td.DynamicType == DynamicTaggedUnion {
		if int(d) >= len(dt.Members) {
			panic(errors.InvalidDisambiguator(errors.PhaseSize, td.Name, uint32(d), len(dt.Members)))
		}
		variant := t.Type(dt.Members[d].Type)
		return dm.Offset + variant.Size
	}
	return dm.Offset + uint32(d)*dt.Size
}

// ValidDisambiguator reports whether d can size type id without violating an
// invariant. Decoders check values read from the wire with it.
func (t *Table) ValidDisambiguator(id TypeID, d uint8) bool {
	if !t.Known(id) {
		return false
	}
	td := t.types[id]
	if !td.DynamicLength || td.DynamicType != DynamicTaggedUnion {
		return true
	}
	return int(d) < len(t.types[td.DynamicMember().Type].Members)
}
