// Package objgraph provides a type-descriptor-driven object graph marshalling
// engine for linear memories.
//
// The engine serializes arbitrary object graphs, including pointers, aliased
// objects, tagged unions and variable-length arrays, into a flat
// self-describing byte stream and reconstructs an isomorphic graph on the
// receiving side. It is used to hand live application state over to a peer
// and to snapshot state.
//
// # Architecture Overview
//
//	objgraph/           Root package with Address, Memory and Allocator
//	├── typedesc/       Type descriptor tables, disambiguators and sizing
//	├── mobs/           Deduplicating object sets
//	├── traverse/       Member-tree traversal (recursive and iterative)
//	├── marshal/        Marshaller and Unmarshaller transactions
//	├── heap/           In-process arena memory with a free-list allocator
//	├── wasmmem/        wazero linear memory backend
//	├── typegen/        WIT to descriptor table generator
//	├── snapshot/       Persistent snapshot store (badger)
//	└── errors/         Structured error types
//
// # Quick Start
//
//	table := typedesc.MustTable(types)
//	src := heap.New(heap.DefaultOptions())
//
//	m := marshal.NewMarshaller(table, src, marshal.DefaultOptions())
//	defer m.Close()
//	buf := make([]byte, 256)
//	m.SetBuffer(buf)
//	if err := m.Marshal(root, rootType); err != nil {
//	    // errors.Is(err, errors.ErrBufferFull): ship buf[:m.Written()], SetBuffer, retry
//	}
//
//	dst := heap.New(heap.DefaultOptions())
//	u := marshal.NewUnmarshaller(table, dst, dst, marshal.DefaultUnmarshalOptions())
//	u.SetBuffer(buf[:m.Written()])
//	obj, err := u.Unmarshal()
//
// # Wire Format
//
// Each marshalled root produces:
//
//	[type u8][disambiguator u8, dynamic types only][leaf bytes]...  objects
//	[0xff]                                                          end of objects
//	[index u8]...                                                   pointer members
//
// Index 0 always denotes NULL.
//
// # Thread Safety
//
// Descriptor tables are immutable and safe for concurrent use. Marshallers,
// Unmarshallers, object sets and heaps are single-owner and must not be used
// from several goroutines without external synchronization.
package objgraph
