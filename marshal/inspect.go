package marshal

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/heap"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/typedesc"
)

// Listing is the decoded content of a stream.
type Listing struct {
	Roots   []mobs.Mob
	Records []Record
	Edges   []Edge
	// Heap holds the reconstructed objects.
	Heap *heap.Heap
}

// Inspect decodes every root in stream into a scratch heap. Record.Raw is
// copied and stays valid.
func Inspect(table *typedesc.Table, stream []byte) (*Listing, error) {
	l := &Listing{Heap: heap.New(heap.DefaultOptions())}
	obs := &Observer{
		Object: func(r Record) {
			r.Raw = append([]byte(nil), r.Raw...)
			l.Records = append(l.Records, r)
		},
		Pointer: func(e Edge) {
			l.Edges = append(l.Edges, e)
		},
	}

	opts := DefaultUnmarshalOptions()
	opts.Observer = obs
	u := NewUnmarshaller(table, l.Heap, l.Heap, opts)
	defer u.Close(false)

	u.SetBuffer(stream)
	for off := 0; off < len(stream); {
		root, err := u.Unmarshal()
		if err != nil {
			if IsIncomplete(err) {
				return l, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Detail("stream truncated after %d bytes", off+u.Consumed()).
					Cause(err).
					Build()
			}
			return l, err
		}
		l.Roots = append(l.Roots, root)
		off += u.Consumed()
		u.SetBuffer(stream[off:])
	}
	return l, nil
}

// Record returns the record with object index i.
func (l *Listing) Record(i int) (Record, bool) {
	for _, r := range l.Records {
		if r.Index == i {
			return r, true
		}
	}
	return Record{}, false
}

// EdgesFrom returns the pointers held by object i.
func (l *Listing) EdgesFrom(i int) []Edge {
	var out []Edge
	for _, e := range l.Edges {
		if e.Owner == i {
			out = append(out, e)
		}
	}
	return out
}

// Format writes a plain text listing.
func (l *Listing) Format(w io.Writer, table *typedesc.Table) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d roots, %d objects, %d pointers\n", len(l.Roots), len(l.Records), len(l.Edges))
	for _, r := range l.Records {
		fmt.Fprintf(&b, "#%-3d %-20s d=%-3d size=%-5d % x\n",
			r.Index, table.Name(r.Mob.Type), r.Mob.Disambiguator, r.Size, r.Raw)
		for _, e := range l.EdgesFrom(r.Index) {
			target := "null"
			if !e.Target.IsNull() {
				target = fmt.Sprintf("%s@0x%x", table.Name(e.Target.Type), uint32(e.Target.Address))
			}
			kind := ""
			if e.Shared {
				kind = " (shared)"
			}
			fmt.Fprintf(&b, "     +0x%-4x -> [%d] %s%s\n", uint32(e.Slot-r.Mob.Address), e.Index, target, kind)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
