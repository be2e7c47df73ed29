package marshal

import (
	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/mobs"
	"github.com/wippyai/objgraph/traverse"
	"github.com/wippyai/objgraph/typedesc"
)

// MaxIndex is the largest pointer index the one-byte wire field can carry.
const MaxIndex = 0xff

// objectAlign is the alignment of every object allocated by the decoder.
const objectAlign = 8

// store holds the bookkeeping shared by both directions: the object set with
// its NULL sentinel and the shared member set. Both persist across roots
// until clearStore, so later roots can refer to earlier objects by index.
type store struct {
	table   *typedesc.Table
	mem     objgraph.Memory
	walker  *traverse.Walker
	objects *mobs.Set
	shared  *mobs.Set
	allowed map[typedesc.TypeID]struct{}

	// first object and shared member of the current root
	rootIndex   int
	sharedStart int
}

func (s *store) init(table *typedesc.Table, mem objgraph.Memory, strategy traverse.Strategy, allowed []typedesc.TypeID) {
	s.table = table
	s.mem = mem
	s.walker = traverse.New(table, mem, strategy)
	s.objects = mobs.NewObjectSet()
	s.shared = mobs.New()
	if len(allowed) > 0 {
		s.allowed = make(map[typedesc.TypeID]struct{}, len(allowed))
		for _, id := range allowed {
			s.allowed[id] = struct{}{}
		}
	}
	s.rootIndex = mobs.IndexNull + 1
}

// clearStore forgets every tracked object. Nothing is freed.
func (s *store) clearStore() {
	s.objects.Reset()
	s.objects.PushUnique(mobs.Null)
	s.shared.Reset()
	s.rootIndex = mobs.IndexNull + 1
	s.sharedStart = 0
}

// rollback drops the objects and shared members of the current root.
func (s *store) rollback() {
	s.objects.Truncate(s.rootIndex)
	s.shared.Truncate(s.sharedStart)
}

// commit makes the current root's objects visible to later roots.
func (s *store) commit() {
	s.rootIndex = s.objects.Size()
	s.sharedStart = s.shared.Size()
}

func (s *store) typeAllowed(id typedesc.TypeID) bool {
	if s.allowed == nil {
		return true
	}
	_, ok := s.allowed[id]
	return ok
}

func (s *store) filtered(phase errors.Phase, id typedesc.TypeID) error {
	return errors.New(phase, errors.KindTypeFiltered).
		Type(s.table.Name(id)).
		Value(uint32(id)).
		Detail("root type not allowed").
		Build()
}

// registerShared records the shared members of obj.
func (s *store) registerShared(obj *mobs.Mob) error {
	return s.walker.Walk(obj, traverse.Callbacks{
		Shared: s.addShared,
	})
}

func (s *store) addShared(addr objgraph.Address, m *typedesc.MemberDescriptor) error {
	s.shared.PushUnique(mobs.Mob{Type: m.Type, Address: addr})
	return nil
}

// indexOf returns the wire index of the object a pointer of type typ to
// target refers to. NULL of any type is IndexNull. A target that is a shared
// member resolves to the member even when it was also discovered as an
// object, so aliasing through the owner survives the round trip.
func (s *store) indexOf(typ typedesc.TypeID, target objgraph.Address) (int, bool) {
	if target == objgraph.NullAddress {
		return mobs.IndexNull, true
	}
	if i, ok := s.shared.Lookup(typ, target); ok {
		return s.objects.Size() + i, true
	}
	return s.objects.Lookup(typ, target)
}

// resolve maps a wire index back to a tracked object.
func (s *store) resolve(index uint8) (mobs.Mob, bool) {
	n := s.objects.Size()
	if int(index) < n {
		return s.objects.Get(int(index))
	}
	return s.shared.Get(int(index) - n)
}

// Stats reports the bookkeeping of a marshaller or unmarshaller.
type Stats struct {
	// Objects counts tracked objects, excluding the NULL sentinel.
	Objects int
	// Shared counts registered shared members.
	Shared int
	// Roots counts completed roots since the last ClearStore.
	Roots int
}

func (s *store) stats(roots int) Stats {
	return Stats{
		Objects: s.objects.Size() - 1,
		Shared:  s.shared.Size(),
		Roots:   roots,
	}
}
