// Package mobs implements object sets: ordered, deduplicating collections of
// marshalled objects (mobs).
//
// A mob is identified by its type and address. Push treats a repeated
// identity as a defect and panics; PushUnique silently returns the existing
// index and is used for discovery while walking a graph.
//
// Object sets created with NewObjectSet reserve index 0 for the NULL
// sentinel, so a NULL pointer of any declared type resolves to IndexNull on
// both the encoding and decoding side.
package mobs
