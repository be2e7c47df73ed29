package typegen

import (
	"errors"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objgraph"
	objerrors "github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/heap"
	"github.com/wippyai/objgraph/marshal"
	"github.com/wippyai/objgraph/traverse"
	"github.com/wippyai/objgraph/typedesc"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func TestGenerator_Primitives(t *testing.T) {
	tests := []struct {
		typ  wit.Type
		name string
		size uint32
	}{
		{wit.Bool{}, "bool", 1},
		{wit.U8{}, "u8", 1},
		{wit.S16{}, "s16", 2},
		{wit.U32{}, "u32", 4},
		{wit.Char{}, "char", 4},
		{wit.F64{}, "f64", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			id, err := g.AddType(tt.typ)
			if err != nil {
				t.Fatalf("AddType failed: %v", err)
			}
			table, err := g.Table()
			if err != nil {
				t.Fatal(err)
			}
			td := table.Type(id)
			if td.Name != tt.name || td.Size != tt.size || !td.IsLeaf() {
				t.Errorf("got %q size %d", td.Name, td.Size)
			}
		})
	}

	t.Run("shared", func(t *testing.T) {
		g := New()
		a, _ := g.AddType(wit.U32{})
		b, _ := g.AddType(wit.U32{})
		if a != b || g.Len() != 1 {
			t.Errorf("u32 generated twice: %d %d len %d", a, b, g.Len())
		}
	})
}

func TestGenerator_Record(t *testing.T) {
	point := named("point", &wit.Record{Fields: []wit.Field{
		{Name: "tag", Type: wit.U8{}},
		{Name: "x", Type: wit.U32{}},
		{Name: "y", Type: wit.U16{}},
	}})

	g := New()
	id, err := g.Add(point)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	table, err := g.Table()
	if err != nil {
		t.Fatal(err)
	}

	td := table.Type(id)
	if td.Size != 12 || td.Align != 4 {
		t.Errorf("size/align = %d/%d, want 12/4", td.Size, td.Align)
	}
	offsets := []uint32{0, 4, 8}
	for i, m := range td.Members {
		if m.Offset != offsets[i] {
			t.Errorf("member %s at %d, want %d", m.Name, m.Offset, offsets[i])
		}
	}
	if g.Names()["point"] != id {
		t.Errorf("Names()[point] = %d, want %d", g.Names()["point"], id)
	}

	t.Run("tuple", func(t *testing.T) {
		g := New()
		id, err := g.Add(&wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U64{}}}})
		if err != nil {
			t.Fatal(err)
		}
		td := g.types[id]
		if td.Size != 16 || td.Members[1].Name != "1" || td.Members[1].Offset != 8 {
			t.Errorf("tuple layout %+v", td)
		}
	})

	t.Run("nested", func(t *testing.T) {
		line := named("line", &wit.Record{Fields: []wit.Field{
			{Name: "from", Type: point},
			{Name: "to", Type: point},
		}})
		g := New()
		id, err := g.Add(line)
		if err != nil {
			t.Fatal(err)
		}
		if td := g.types[id]; td.Size != 24 || td.Members[1].Offset != 12 {
			t.Errorf("line layout %+v", td)
		}
	})
}

func TestGenerator_OptionIsPointer(t *testing.T) {
	node := named("node", nil)
	node.Kind = &wit.Record{Fields: []wit.Field{
		{Name: "value", Type: wit.U32{}},
		{Name: "next", Type: &wit.TypeDef{Kind: &wit.Option{Type: node}}},
	}}

	g := New()
	id, err := g.Add(node)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	table, err := g.Table()
	if err != nil {
		t.Fatal(err)
	}
	next := table.Type(id).Members[1]
	if !next.IsPointer || next.Type != id || next.Offset != 4 {
		t.Errorf("next = %+v", next)
	}

	t.Run("round_trip", func(t *testing.T) {
		src := heap.New(heap.DefaultOptions())
		var head objgraph.Address
		for _, v := range []uint32{3, 2, 1} {
			p, _ := src.Alloc(8, 8)
			_ = src.WriteU32(p, v)
			_ = objgraph.WritePointer(src, objgraph.Address(p+4), head)
			head = objgraph.Address(p)
		}

		buf := make([]byte, 64)
		m := marshal.NewMarshaller(table, src, marshal.DefaultOptions())
		m.SetBuffer(buf)
		if err := m.Marshal(head, id); err != nil {
			t.Fatal(err)
		}

		dst := heap.New(heap.DefaultOptions())
		u := marshal.NewUnmarshaller(table, dst, dst, marshal.DefaultUnmarshalOptions())
		u.SetBuffer(buf[:m.Written()])
		root, err := u.Unmarshal()
		if err != nil {
			t.Fatal(err)
		}

		var got []uint32
		for p := root.Address; p != objgraph.NullAddress; {
			v, _ := dst.ReadU32(uint32(p))
			got = append(got, v)
			p, _ = objgraph.ReadPointer(dst, p+4)
		}
		if len(got) != 3 || got[0] != 1 || got[2] != 3 {
			t.Errorf("list = %v", got)
		}
	})
}

func TestGenerator_TrailingList(t *testing.T) {
	samples := named("samples", &wit.Record{Fields: []wit.Field{
		{Name: "rate", Type: wit.U32{}},
		{Name: "data", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}},
	}})

	g := New()
	id, err := g.Add(samples)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	table, err := g.Table()
	if err != nil {
		t.Fatal(err)
	}
	td := table.Type(id)
	if !td.DynamicLength || td.DynamicType != typedesc.DynamicArray {
		t.Fatalf("samples not a dynamic array: %+v", td)
	}
	if td.Members[1].Name != "data.len" || td.Members[1].Offset != 4 || td.Members[2].Offset != 6 {
		t.Errorf("members = %+v", td.Members)
	}

	h := heap.New(heap.DefaultOptions())
	p, _ := h.Alloc(16, 8)
	_ = h.WriteU8(p+4, 5)
	d, err := table.Disambiguator(h, id, objgraph.Address(p), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d != 5 || table.ObjSize(id, d) != 16 {
		t.Errorf("d = %d size = %d, want 5/16", d, table.ObjSize(id, d))
	}

	t.Run("not_last", func(t *testing.T) {
		bad := named("bad", &wit.Record{Fields: []wit.Field{
			{Name: "data", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}},
			{Name: "n", Type: wit.U32{}},
		}})
		_, err := New().Add(bad)
		if !errors.Is(err, &objerrors.Error{Phase: objerrors.PhaseGenerate, Kind: objerrors.KindUnsupported}) {
			t.Errorf("err = %v, want unsupported", err)
		}
	})

	t.Run("standalone", func(t *testing.T) {
		g := New()
		id, err := g.Add(named("bytes", &wit.List{Type: wit.U8{}}))
		if err != nil {
			t.Fatal(err)
		}
		table, err := g.Table()
		if err != nil {
			t.Fatal(err)
		}
		if got := table.ObjSize(id, 10); got != 11 {
			t.Errorf("ObjSize(10) = %d, want 11", got)
		}
	})
}

func TestGenerator_Variant(t *testing.T) {
	shape := named("shape", &wit.Variant{Cases: []wit.Case{
		{Name: "none"},
		{Name: "circle", Type: wit.U32{}},
		{Name: "square", Type: wit.U64{}},
	}})

	g := New()
	id, err := g.Add(shape)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	table, err := g.Table()
	if err != nil {
		t.Fatal(err)
	}
	td := table.Type(id)
	if td.DynamicType != typedesc.DynamicTaggedUnion || td.Size != 16 {
		t.Fatalf("shape = %+v", td)
	}

	tests := []struct {
		tag  uint8
		size uint32
	}{
		{0, 8},
		{1, 12},
		{2, 16},
	}
	for _, tt := range tests {
		if got := table.ObjSize(id, tt.tag); got != tt.size {
			t.Errorf("ObjSize(%d) = %d, want %d", tt.tag, got, tt.size)
		}
	}
	if table.ValidDisambiguator(id, 3) {
		t.Error("tag 3 accepted")
	}

	t.Run("in record", func(t *testing.T) {
		// event { id: u32, shape: shape, seq: u16 }: shape embeds at 8, seq at 24
		event := named("event", &wit.Record{Fields: []wit.Field{
			{Name: "id", Type: wit.U32{}},
			{Name: "shape", Type: shape},
			{Name: "seq", Type: wit.U16{}},
		}})
		g := New()
		id, err := g.Add(event)
		if err != nil {
			t.Fatal(err)
		}
		table, err := g.Table()
		if err != nil {
			t.Fatal(err)
		}
		if td := table.Type(id); td.Size != 32 || td.DynamicLength {
			t.Fatalf("event = %+v", td)
		}

		cases := []struct {
			tag     uint8
			payload []byte
		}{
			{1, []byte{0xdd, 0xcc, 0xbb, 0xaa}},
			{2, []byte{8, 7, 6, 5, 4, 3, 2, 1}},
		}
		for _, c := range cases {
			for _, s := range []traverse.Strategy{traverse.Recursive, traverse.Iterative} {
				src := heap.New(heap.DefaultOptions())
				p, _ := src.Alloc(32, 8)
				_ = src.WriteU32(p, 42)
				_ = src.WriteU8(p+8, c.tag)
				_ = src.Write(p+16, c.payload)
				_ = src.WriteU16(p+24, 5)

				buf := make([]byte, 64)
				m := marshal.NewMarshaller(table, src, marshal.Options{Strategy: s})
				m.SetBuffer(buf)
				if err := m.Marshal(objgraph.Address(p), id); err != nil {
					t.Fatal(err)
				}
				if want := 1 + 4 + 1 + len(c.payload) + 2 + 1; m.Written() != want {
					t.Errorf("tag %d %s: wrote %d bytes, want %d", c.tag, s, m.Written(), want)
				}

				dst := heap.New(heap.DefaultOptions())
				u := marshal.NewUnmarshaller(table, dst, dst, marshal.UnmarshalOptions{Strategy: s})
				u.SetBuffer(buf[:m.Written()])
				root, err := u.Unmarshal()
				if err != nil {
					t.Fatalf("tag %d %s: %v", c.tag, s, err)
				}
				r := uint32(root.Address)
				tag, _ := dst.ReadU8(r + 8)
				payload, _ := dst.Read(r+16, uint32(len(c.payload)))
				seq, _ := dst.ReadU16(r + 24)
				if tag != c.tag || string(payload) != string(c.payload) || seq != 5 {
					t.Errorf("tag %d %s: decoded tag %d payload % x seq %d", c.tag, s, tag, payload, seq)
				}
			}
		}
	})

	t.Run("result", func(t *testing.T) {
		g := New()
		id, err := g.Add(&wit.TypeDef{Kind: &wit.Result{OK: wit.U32{}}})
		if err != nil {
			t.Fatal(err)
		}
		union := g.types[g.types[id].Members[1].Type]
		if union.Members[0].Name != "ok" || union.Members[1].Name != "err" {
			t.Errorf("cases = %+v", union.Members)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := New().Add(named("empty", &wit.Variant{}))
		if err == nil {
			t.Error("expected error for variant without cases")
		}
	})
}

func TestGenerator_EnumFlagsHandles(t *testing.T) {
	names := func(n int) []wit.Flag {
		out := make([]wit.Flag, n)
		for i := range out {
			out[i].Name = string(rune('a' + i%26))
		}
		return out
	}
	tests := []struct {
		name string
		def  *wit.TypeDef
		size uint32
	}{
		{"enum", named("color", &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}}), 1},
		{"flags_small", named("perm", &wit.Flags{Flags: names(3)}), 1},
		{"flags_16", named("wide", &wit.Flags{Flags: names(12)}), 2},
		{"flags_40", named("huge", &wit.Flags{Flags: names(40)}), 8},
		{"own", &wit.TypeDef{Kind: &wit.Own{}}, 4},
		{"borrow", &wit.TypeDef{Kind: &wit.Borrow{}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			id, err := g.Add(tt.def)
			if err != nil {
				t.Fatal(err)
			}
			if got := g.types[id].Size; got != tt.size {
				t.Errorf("size = %d, want %d", got, tt.size)
			}
		})
	}
}

func TestGenerator_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		typ  wit.Type
	}{
		{"string", wit.String{}},
		{"record_with_string", named("user", &wit.Record{Fields: []wit.Field{
			{Name: "id", Type: wit.U32{}},
			{Name: "name", Type: wit.String{}},
		}})},
		{"standalone_option", &wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			_, err := g.AddType(tt.typ)
			if !errors.Is(err, &objerrors.Error{Phase: objerrors.PhaseGenerate, Kind: objerrors.KindUnsupported}) {
				t.Fatalf("err = %v, want unsupported", err)
			}
			if g.Len() != 0 || len(g.Names()) != 0 {
				t.Errorf("failed Add left %d types behind", g.Len())
			}
		})
	}

	t.Run("recursive_embedding", func(t *testing.T) {
		loop := named("loop", nil)
		loop.Kind = &wit.Record{Fields: []wit.Field{{Name: "self", Type: loop}}}
		_, err := New().Add(loop)
		if !errors.Is(err, &objerrors.Error{Phase: objerrors.PhaseGenerate, Kind: objerrors.KindUnsupported}) {
			t.Errorf("err = %v, want unsupported", err)
		}
	})
}

func TestFromResolve(t *testing.T) {
	point := named("point", &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.S32{}},
		{Name: "y", Type: wit.S32{}},
	}})
	res := &wit.Resolve{TypeDefs: []*wit.TypeDef{
		point,
		named("label", &wit.Record{Fields: []wit.Field{{Name: "text", Type: wit.String{}}}}),
		{Kind: &wit.List{Type: point}},
		named("pos", point),
	}}

	g, table, err := FromResolve(res)
	if err != nil {
		t.Fatalf("FromResolve failed: %v", err)
	}
	if skipped := g.Skipped(); len(skipped) != 1 || skipped[0] != "label" {
		t.Errorf("Skipped = %v", skipped)
	}
	ids := g.Names()
	if _, ok := ids["label"]; ok {
		t.Error("skipped type still named")
	}
	if ids["pos"] != ids["point"] {
		t.Errorf("alias pos = %d, point = %d", ids["pos"], ids["point"])
	}
	if table.Name(ids["point"]) != "point" {
		t.Errorf("name = %q", table.Name(ids["point"]))
	}
}
