// Package traverse walks the member tree of objects described by a
// typedesc.Table.
//
// A walk visits the members of one object in declared order and array
// elements in index order, descending into embedded compound members.
// Pointer members are reported through Callbacks.Pointer but never followed;
// following them is the caller's business, usually by adding the target to
// an object set.
//
// Dispatch per member:
//
//	pointer                      -> Pointer
//	non-pointer, shared          -> Shared (if configured)
//	non-pointer, terminal        -> Leaf (unless Shared was called)
//	non-pointer, compound        -> descend
//
// Union members are replaced by their active variant before dispatch. The
// variant comes from the owner's TaggedUnionMember callback, or from the
// owner's disambiguator when the union is the trailing member of a dynamic
// tagged union.
//
// The walked root carries its disambiguator. Nested dynamic objects have
// theirs read from memory when the walk reaches their dynamic member, after
// the members before it were visited, so a decoder filling in leaves as it
// goes sees the values it just wrote. Variant indexes and counts read from
// memory that are out of range fail the walk with an invalid data error.
//
// Arrays of scalars spanning at most 255 bytes are visited as one leaf.
//
// Recursive and Iterative produce the same visitation order. Iterative keeps
// its stack on the heap and suits deep embeddings.
package traverse
