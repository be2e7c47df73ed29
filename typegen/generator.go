package typegen

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/typedesc"
)

// Generator accumulates descriptors for WIT types. Each distinct type
// definition gets one id; primitives are shared.
// Not safe for concurrent use.
type Generator struct {
	types   []*typedesc.TypeDescriptor
	defs    map[*wit.TypeDef]typedesc.TypeID
	prims   map[string]typedesc.TypeID
	names   map[string]typedesc.TypeID
	pending map[typedesc.TypeID]bool
	skipped []string
}

// New creates an empty generator.
func New() *Generator {
	return &Generator{
		defs:    make(map[*wit.TypeDef]typedesc.TypeID),
		prims:   make(map[string]typedesc.TypeID),
		names:   make(map[string]typedesc.TypeID),
		pending: make(map[typedesc.TypeID]bool),
	}
}

// Add generates descriptors for td and everything it embeds or points to.
// On error the generator is left as it was.
func (g *Generator) Add(td *wit.TypeDef) (typedesc.TypeID, error) {
	return g.AddType(td)
}

// AddType is like Add for any WIT type, including primitives.
func (g *Generator) AddType(t wit.Type) (typedesc.TypeID, error) {
	mark := len(g.types)
	id, err := g.typeID(t, []string{typeName(t)})
	if err != nil {
		g.rollback(mark)
		return 0, err
	}
	return id, nil
}

// Table validates the generated descriptors and returns them as a table.
func (g *Generator) Table() (*typedesc.Table, error) {
	table, err := typedesc.NewTable(g.types)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "generated table is invalid")
	}
	return table, nil
}

// Names maps named WIT types and primitives to their ids.
func (g *Generator) Names() map[string]typedesc.TypeID {
	out := make(map[string]typedesc.TypeID, len(g.names))
	for k, v := range g.names {
		out[k] = v
	}
	return out
}

// Skipped lists the types FromResolve could not map.
func (g *Generator) Skipped() []string {
	return g.skipped
}

// Len returns the number of generated descriptors.
func (g *Generator) Len() int {
	return len(g.types)
}

func (g *Generator) rollback(mark int) {
	g.types = g.types[:mark]
	for td, id := range g.defs {
		if int(id) >= mark {
			delete(g.defs, td)
		}
	}
	for k, id := range g.prims {
		if int(id) >= mark {
			delete(g.prims, k)
		}
	}
	for k, id := range g.names {
		if int(id) >= mark {
			delete(g.names, k)
		}
	}
	clear(g.pending)
}

func (g *Generator) add(td *typedesc.TypeDescriptor) (typedesc.TypeID, error) {
	if len(g.types) >= typedesc.MaxTypes {
		return 0, errors.Overflow(errors.PhaseGenerate, len(g.types)+1, "type table size")
	}
	g.types = append(g.types, td)
	return typedesc.TypeID(len(g.types) - 1), nil
}

func (g *Generator) prim(name string, size uint32) (typedesc.TypeID, error) {
	if id, ok := g.prims[name]; ok {
		return id, nil
	}
	id, err := g.add(typedesc.Leaf(name, size))
	if err != nil {
		return 0, err
	}
	g.prims[name] = id
	g.names[name] = id
	return id, nil
}

// reserve allocates the id of a type definition before its members are
// generated, so self references through pointers resolve.
func (g *Generator) reserve(td *wit.TypeDef) (typedesc.TypeID, error) {
	id, err := g.add(&typedesc.TypeDescriptor{Name: typeName(td)})
	if err != nil {
		return 0, err
	}
	g.defs[td] = id
	if td.Name != nil {
		if _, taken := g.names[*td.Name]; taken {
			Logger().Debug("duplicate type name, keeping first", zap.String("name", *td.Name))
		} else {
			g.names[*td.Name] = id
		}
	}
	g.pending[id] = true
	return id, nil
}

func (g *Generator) typeID(t wit.Type, path []string) (typedesc.TypeID, error) {
	switch t := t.(type) {
	case wit.Bool:
		return g.prim("bool", 1)
	case wit.U8:
		return g.prim("u8", 1)
	case wit.S8:
		return g.prim("s8", 1)
	case wit.U16:
		return g.prim("u16", 2)
	case wit.S16:
		return g.prim("s16", 2)
	case wit.U32:
		return g.prim("u32", 4)
	case wit.S32:
		return g.prim("s32", 4)
	case wit.F32:
		return g.prim("f32", 4)
	case wit.Char:
		return g.prim("char", 4)
	case wit.U64:
		return g.prim("u64", 8)
	case wit.S64:
		return g.prim("s64", 8)
	case wit.F64:
		return g.prim("f64", 8)
	case *wit.TypeDef:
		return g.def(t, path)
	default:
		return 0, errors.Unsupported(errors.PhaseGenerate, path, typeName(t))
	}
}

func (g *Generator) def(td *wit.TypeDef, path []string) (typedesc.TypeID, error) {
	if id, ok := g.defs[td]; ok {
		return id, nil
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		fields := make([]field, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = field{name: f.Name, typ: f.Type}
		}
		return g.record(td, fields, path)
	case *wit.Tuple:
		fields := make([]field, len(kind.Types))
		for i, t := range kind.Types {
			fields[i] = field{name: fmt.Sprint(i), typ: t}
		}
		return g.record(td, fields, path)
	case *wit.Variant:
		cases := make([]field, len(kind.Cases))
		for i, c := range kind.Cases {
			cases[i] = field{name: c.Name, typ: c.Type}
		}
		return g.variant(td, cases, path)
	case *wit.Result:
		return g.variant(td, []field{{name: "ok", typ: kind.OK}, {name: "err", typ: kind.Err}}, path)
	case *wit.Enum:
		if len(kind.Cases) > typedesc.MaxDisambiguator+1 {
			return 0, errors.Unsupported(errors.PhaseGenerate, path, "enum with more than 256 cases")
		}
		return g.named(td, typedesc.Leaf(typeName(td), 1))
	case *wit.Flags:
		return g.named(td, typedesc.Leaf(typeName(td), flagsSize(len(kind.Flags))))
	case *wit.List:
		return g.list(td, kind.Type, path)
	case *wit.Own, *wit.Borrow:
		return g.prim("handle", 4)
	case *wit.Option:
		return 0, errors.Unsupported(errors.PhaseGenerate, path, "option outside a record field")
	case wit.Type:
		id, err := g.typeID(kind, path)
		if err != nil {
			return 0, err
		}
		g.defs[td] = id
		if td.Name != nil {
			if _, taken := g.names[*td.Name]; !taken {
				g.names[*td.Name] = id
			}
		}
		return id, nil
	default:
		return 0, errors.Unsupported(errors.PhaseGenerate, path, typeName(td))
	}
}

func (g *Generator) named(td *wit.TypeDef, desc *typedesc.TypeDescriptor) (typedesc.TypeID, error) {
	id, err := g.reserve(td)
	if err != nil {
		return 0, err
	}
	g.types[id] = desc
	delete(g.pending, id)
	return id, nil
}

type field struct {
	name string
	typ  wit.Type
}

// embed returns the id of a type stored inline in its owner.
func (g *Generator) embed(t wit.Type, path []string) (typedesc.TypeID, *typedesc.TypeDescriptor, error) {
	id, err := g.typeID(t, path)
	if err != nil {
		return 0, nil, err
	}
	if g.pending[id] {
		return 0, nil, errors.Unsupported(errors.PhaseGenerate, path, "recursive type without indirection")
	}
	return id, g.types[id], nil
}

// record lays fields out in order with natural alignment. option<T> fields
// become nullable pointers to T; a trailing list<T> field becomes a u8
// length followed by a dynamic array.
func (g *Generator) record(td *wit.TypeDef, fields []field, path []string) (typedesc.TypeID, error) {
	id, err := g.reserve(td)
	if err != nil {
		return 0, err
	}

	desc := &typedesc.TypeDescriptor{Name: typeName(td), Align: 1}
	off := uint32(0)

	for i, f := range fields {
		fpath := append(path[:len(path):len(path)], f.name)
		last := i == len(fields)-1

		switch kind := kindOf(f.typ).(type) {
		case *wit.Option:
			target, err := g.typeID(kind.Type, fpath)
			if err != nil {
				return 0, err
			}
			off = alignTo(off, objgraph.PointerSize)
			desc.Members = append(desc.Members, typedesc.Pointer(f.name, off, target))
			off += objgraph.PointerSize
			desc.Align = max(desc.Align, objgraph.PointerSize)

		case *wit.List:
			if !last {
				return 0, errors.Unsupported(errors.PhaseGenerate, fpath, "list that is not the last field")
			}
			u8, err := g.prim("u8", 1)
			if err != nil {
				return 0, err
			}
			elem, et, err := g.embed(kind.Type, fpath)
			if err != nil {
				return 0, err
			}
			count := off
			off = alignTo(count+1, et.Alignment())
			desc.Members = append(desc.Members,
				typedesc.Member(f.name+".len", count, u8),
				typedesc.Array(f.name, off, elem, 1),
			)
			desc.DynamicLength = true
			desc.DynamicType = typedesc.DynamicArray
			desc.ArrayElements = typedesc.CountAt(count, 1)
			desc.Align = max(desc.Align, et.Alignment())

		default:
			cid, ct, err := g.embed(f.typ, fpath)
			if err != nil {
				return 0, err
			}
			off = alignTo(off, ct.Alignment())
			desc.Members = append(desc.Members, typedesc.Member(f.name, off, cid))
			off += ct.Size
			desc.Align = max(desc.Align, ct.Alignment())
		}
	}

	if desc.DynamicLength {
		desc.Size = off
	} else {
		desc.Size = alignTo(off, desc.Align)
	}
	g.types[id] = desc
	delete(g.pending, id)
	return id, nil
}

// variant becomes a dynamic tagged union: a u8 tag followed by a union of
// the case payloads. Cases without payload map to an empty leaf.
func (g *Generator) variant(td *wit.TypeDef, cases []field, path []string) (typedesc.TypeID, error) {
	if len(cases) == 0 {
		return 0, errors.Unsupported(errors.PhaseGenerate, path, "variant without cases")
	}
	if len(cases) > typedesc.MaxDisambiguator+1 {
		return 0, errors.Unsupported(errors.PhaseGenerate, path, "variant with more than 256 cases")
	}

	id, err := g.reserve(td)
	if err != nil {
		return 0, err
	}
	tag, err := g.prim("u8", 1)
	if err != nil {
		return 0, err
	}

	ids := make([]typedesc.TypeID, len(cases))
	size, align := uint32(0), uint32(1)
	for i, c := range cases {
		var ct *typedesc.TypeDescriptor
		if c.typ == nil {
			ids[i], err = g.prim("unit", 0)
			ct = g.types[ids[i]]
		} else {
			ids[i], ct, err = g.embed(c.typ, append(path[:len(path):len(path)], c.name))
		}
		if err != nil {
			return 0, err
		}
		size = max(size, ct.Size)
		align = max(align, ct.Alignment())
	}

	union := typedesc.Union(typeName(td)+".payload", size, ids...)
	union.Align = align
	for i, c := range cases {
		union.Members[i].Name = c.name
	}
	uid, err := g.add(union)
	if err != nil {
		return 0, err
	}

	payload := alignTo(1, align)
	desc := typedesc.Struct(typeName(td), alignTo(payload+size, align),
		typedesc.Member("tag", 0, tag),
		typedesc.Member("payload", payload, uid),
	)
	desc.Align = align
	desc.DynamicLength = true
	desc.DynamicType = typedesc.DynamicTaggedUnion
	desc.TaggedUnionMember = typedesc.DiscriminantAt(0, 1)

	g.types[id] = desc
	delete(g.pending, id)
	return id, nil
}

// list outside a record is an object of its own: a u8 length followed by
// the elements.
func (g *Generator) list(td *wit.TypeDef, elem wit.Type, path []string) (typedesc.TypeID, error) {
	id, err := g.reserve(td)
	if err != nil {
		return 0, err
	}
	u8, err := g.prim("u8", 1)
	if err != nil {
		return 0, err
	}
	eid, et, err := g.embed(elem, path)
	if err != nil {
		return 0, err
	}

	items := alignTo(1, et.Alignment())
	desc := typedesc.Struct(typeName(td), items,
		typedesc.Member("len", 0, u8),
		typedesc.Array("items", items, eid, 1),
	)
	desc.Align = max(1, et.Alignment())
	desc.DynamicLength = true
	desc.DynamicType = typedesc.DynamicArray
	desc.ArrayElements = typedesc.CountAt(0, 1)

	g.types[id] = desc
	delete(g.pending, id)
	return id, nil
}

// kindOf looks through type aliases.
func kindOf(t wit.Type) wit.TypeDefKind {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	if alias, ok := td.Kind.(wit.Type); ok {
		return kindOf(alias)
	}
	return td.Kind
}

func flagsSize(n int) uint32 {
	switch {
	case n <= 8:
		return 1
	case n <= 16:
		return 2
	default:
		return 4 * uint32((n+31)/32)
	}
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func typeName(t wit.Type) string {
	switch t := t.(type) {
	case nil:
		return "unit"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.F32:
		return "f32"
	case wit.Char:
		return "char"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if t.Name != nil {
			return *t.Name
		}
		return kindName(t.Kind)
	default:
		return fmt.Sprintf("%T", t)
	}
}

func kindName(k wit.TypeDefKind) string {
	switch k := k.(type) {
	case *wit.List:
		return "list<" + typeName(k.Type) + ">"
	case *wit.Option:
		return "option<" + typeName(k.Type) + ">"
	case *wit.Tuple:
		names := make([]string, len(k.Types))
		for i, t := range k.Types {
			names[i] = typeName(t)
		}
		return "tuple<" + strings.Join(names, ", ") + ">"
	case *wit.Result:
		return "result<" + typeName(k.OK) + ", " + typeName(k.Err) + ">"
	case *wit.Record:
		return "record"
	case *wit.Variant:
		return "variant"
	case *wit.Enum:
		return "enum"
	case *wit.Flags:
		return "flags"
	case *wit.Own:
		return "own"
	case *wit.Borrow:
		return "borrow"
	case wit.Type:
		return typeName(k)
	default:
		return fmt.Sprintf("%T", k)
	}
}
