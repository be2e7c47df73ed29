package traverse

import (
	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/typedesc"
)

// Callbacks receive the members of a walked object. Every field is optional.
// A non-nil error aborts the walk and is returned from Walk unchanged.
type Callbacks struct {
	// Leaf is called for terminal non-pointer members. t may be a widened copy
	// of the element type when a scalar array is visited as one blob.
	Leaf func(addr objgraph.Address, t *typedesc.TypeDescriptor) error
	// Shared is called instead of Leaf for non-pointer members flagged shared.
	// Compound shared members are still descended into afterwards.
	Shared func(addr objgraph.Address, m *typedesc.MemberDescriptor) error
	// Pointer is called with the address of each pointer slot.
	Pointer func(slot objgraph.Address, m *typedesc.MemberDescriptor, parent *mobs.Mob) error
}

// Strategy selects how nested members are descended into.
type Strategy uint8

const (
	// Recursive descends on the Go call stack.
	Recursive Strategy = iota
	// Iterative keeps pending objects on an explicit stack; depth is bounded
	// by heap memory only.
	Iterative
)

func (s Strategy) String() string {
	switch s {
	case Recursive:
		return "recursive"
	case Iterative:
		return "iterative"
	default:
		return "unknown"
	}
}

// Walker visits the member tree of objects stored in a Memory.
// Not safe for concurrent use; the table may be shared.
type Walker struct {
	table    *typedesc.Table
	mem      objgraph.Memory
	strategy Strategy

	// iterative state, reused between walks
	stack   *mobs.Set
	cursors []cursor
}

// New creates a walker over mem.
func New(table *typedesc.Table, mem objgraph.Memory, strategy Strategy) *Walker {
	w := &Walker{table: table, mem: mem, strategy: strategy}
	if strategy == Iterative {
		w.stack = mobs.New()
	}
	return w
}

// Table returns the descriptor table.
func (w *Walker) Table() *typedesc.Table {
	return w.table
}

// Memory returns the walked memory.
func (w *Walker) Memory() objgraph.Memory {
	return w.mem
}

// Strategy returns the configured strategy.
func (w *Walker) Strategy() Strategy {
	return w.strategy
}

// Walk visits root and everything embedded in it in pre-order: members in
// declared order, array elements in index order. Pointers are reported, not
// followed.
func (w *Walker) Walk(root *mobs.Mob, cb Callbacks) error {
	td := w.table.Type(root.Type)
	if td.IsLeaf() {
		if cb.Leaf != nil {
			return cb.Leaf(root.Address, td)
		}
		return nil
	}
	if w.strategy == Iterative {
		return w.walkIterative(root, cb)
	}
	return w.walkRecursive(root, &embedding{}, cb)
}

func (w *Walker) walkRecursive(parent *mobs.Mob, in *embedding, cb Callbacks) error {
	td := w.table.Type(parent.Type)
	for i := range td.Members {
		m, err := w.member(parent, in, td, i)
		if err != nil {
			return err
		}
		for e := uint32(0); e < m.elements; e++ {
			child, nested, err := w.visit(parent, &m, e, cb)
			if err != nil {
				return err
			}
			if nested != nil {
				if err := w.walkRecursive(&child, nested, cb); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type cursor struct {
	in      embedding
	member  int
	element uint32
	current member
}

func (w *Walker) walkIterative(root *mobs.Mob, cb Callbacks) error {
	w.stack.Reset()
	w.cursors = w.cursors[:0]
	w.push(*root, embedding{})

	for w.stack.Size() > 0 {
		top := w.stack.Size() - 1
		parent := w.stack.At(top)
		cur := &w.cursors[top]
		td := w.table.Type(parent.Type)

		if cur.member >= len(td.Members) {
			w.stack.Pop()
			w.cursors = w.cursors[:top]
			continue
		}
		if cur.element == 0 {
			m, err := w.member(parent, &cur.in, td, cur.member)
			if err != nil {
				return err
			}
			cur.current = m
		}
		if cur.element >= cur.current.elements {
			cur.member++
			cur.element = 0
			continue
		}

		e := cur.element
		cur.element++
		p := *parent
		child, nested, err := w.visit(&p, &cur.current, e, cb)
		if err != nil {
			return err
		}
		if nested != nil {
			w.push(child, *nested)
		}
	}
	return nil
}

func (w *Walker) push(m mobs.Mob, in embedding) {
	w.stack.Push(m)
	w.cursors = append(w.cursors, cursor{in: in})
}
