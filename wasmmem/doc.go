// Package wasmmem backs object graphs with WebAssembly linear memory.
//
// NewView and NewRealloc adapt a guest's memory and its cabi_realloc
// export, so a graph can be marshalled out of, or unmarshalled into, a
// running module. Out of range accesses surface as engine memory errors.
// New creates a standalone memory in a private wazero runtime and manages
// it with the same free-list allocator as package heap, growing it page by
// page.
package wasmmem
