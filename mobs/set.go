package mobs

import (
	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/typedesc"
)

// IndexNull is the index of the NULL sentinel in an object set.
const IndexNull = 0

// Mob is a marshalled object: a typed address plus the disambiguator needed
// to size it. Identity is (Type, Address); the disambiguator is derived.
type Mob struct {
	Address       objgraph.Address
	Type          typedesc.TypeID
	Disambiguator uint8
}

// Null is the sentinel every NULL pointer resolves to.
var Null = Mob{Address: objgraph.NullAddress, Type: typedesc.TypeNull}

// Owner returns the mob as the owner of its members.
func (m *Mob) Owner() *typedesc.Owner {
	return &typedesc.Owner{Address: m.Address, Type: m.Type}
}

// IsNull reports whether the mob is at the NULL address.
func (m Mob) IsNull() bool {
	return m.Address == objgraph.NullAddress
}

type identity struct {
	addr objgraph.Address
	typ  typedesc.TypeID
}

func (m Mob) identity() identity {
	return identity{addr: m.Address, typ: m.Type}
}

// Set is an ordered, deduplicating collection of mobs. Indexes are stable
// until entries are popped or the set is truncated.
// Not safe for concurrent use.
type Set struct {
	index map[identity]int
	items []Mob
}

// New returns an empty set.
func New() *Set {
	return &Set{index: make(map[identity]int)}
}

// NewObjectSet returns a set seeded with the NULL sentinel at IndexNull.
func NewObjectSet() *Set {
	s := New()
	s.PushUnique(Null)
	return s
}

// Push appends m. Pushing an identity already present is an invariant
// violation.
func (s *Set) Push(m Mob) int {
	if _, ok := s.index[m.identity()]; ok {
		panic(errors.DuplicateObject(uint32(m.Type), uint32(m.Address)))
	}
	return s.add(m)
}

// PushUnique appends m unless its identity is present. It returns the index
// of the entry and whether it was inserted.
func (s *Set) PushUnique(m Mob) (int, bool) {
	if i, ok := s.index[m.identity()]; ok {
		return i, false
	}
	return s.add(m), true
}

func (s *Set) add(m Mob) int {
	i := len(s.items)
	s.items = append(s.items, m)
	s.index[m.identity()] = i
	return i
}

// Pop removes and returns the most recently pushed entry.
func (s *Set) Pop() (Mob, bool) {
	n := len(s.items)
	if n == 0 {
		return Mob{}, false
	}
	m := s.items[n-1]
	s.items = s.items[:n-1]
	delete(s.index, m.identity())
	return m, true
}

// Size returns the number of entries.
func (s *Set) Size() int {
	return len(s.items)
}

// Get returns the entry at i.
func (s *Set) Get(i int) (Mob, bool) {
	if i < 0 || i >= len(s.items) {
		return Mob{}, false
	}
	return s.items[i], true
}

// At returns a pointer to the entry at i for in-place updates. The pointer
// is invalidated by the next push.
func (s *Set) At(i int) *Mob {
	return &s.items[i]
}

// IndexOf returns the index of the entry with m's identity.
func (s *Set) IndexOf(m Mob) (int, bool) {
	i, ok := s.index[m.identity()]
	return i, ok
}

// Lookup returns the index of the entry with the given identity.
func (s *Set) Lookup(typ typedesc.TypeID, addr objgraph.Address) (int, bool) {
	i, ok := s.index[identity{addr: addr, typ: typ}]
	return i, ok
}

// Iterate calls fn for every entry from index from onwards, including
// entries appended by fn itself. Iteration stops at the first error.
func (s *Set) Iterate(from int, fn func(i int, m Mob) error) error {
	for i := from; i < len(s.items); i++ {
		if err := fn(i, s.items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Truncate drops every entry at or beyond n.
func (s *Set) Truncate(n int) {
	for len(s.items) > n {
		s.Pop()
	}
}

// Reset drops all entries but keeps the allocated storage.
func (s *Set) Reset() {
	s.items = s.items[:0]
	clear(s.index)
}
