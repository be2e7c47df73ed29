// Package snapshot persists marshalled object graphs by name.
//
// A snapshot is the byte stream produced by a marshal.Marshaller for one or
// more roots, plus the root types so a reader can check them against its own
// table before decoding:
//
//	store, err := snapshot.Open(snapshot.Options{Dir: dir})
//	err = store.Save("session/42", snapshot.Snapshot{Roots: roots, Stream: buf})
//	snap, err := store.Load("session/42")
//
// Names are free-form; List filters them by prefix.
package snapshot
