package snapshot

import (
	"encoding/binary"

	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/typedesc"
)

// Value layout:
//
//	version  u8
//	roots    u16 LE
//	types    u8 * roots
//	stream   remaining bytes
const (
	version    = 1
	headerSize = 3
	maxRoots   = 0xffff
)

func encode(snap Snapshot) ([]byte, error) {
	if len(snap.Roots) > maxRoots {
		return nil, errors.Overflow(errors.PhaseSnapshot, len(snap.Roots), "snapshot roots")
	}
	out := make([]byte, 0, headerSize+len(snap.Roots)+len(snap.Stream))
	out = append(out, version)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(snap.Roots)))
	for _, id := range snap.Roots {
		out = append(out, byte(id))
	}
	return append(out, snap.Stream...), nil
}

// decode copies out of v, which is only valid inside the transaction.
func decode(v []byte) (Snapshot, error) {
	if len(v) < headerSize {
		return Snapshot{}, errors.InvalidData(errors.PhaseSnapshot, nil, "snapshot header truncated")
	}
	if v[0] != version {
		return Snapshot{}, errors.New(errors.PhaseSnapshot, errors.KindUnsupported).
			Value(v[0]).
			Detail("snapshot version").
			Build()
	}
	n := int(binary.LittleEndian.Uint16(v[1:]))
	if len(v) < headerSize+n {
		return Snapshot{}, errors.InvalidData(errors.PhaseSnapshot, nil, "snapshot root list truncated")
	}

	snap := Snapshot{
		Roots:  make([]typedesc.TypeID, n),
		Stream: make([]byte, len(v)-headerSize-n),
	}
	for i := range snap.Roots {
		snap.Roots[i] = typedesc.TypeID(v[headerSize+i])
	}
	copy(snap.Stream, v[headerSize+n:])
	return snap, nil
}
