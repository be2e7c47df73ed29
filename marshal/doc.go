// Package marshal encodes object graphs held in linear memory into a flat
// byte stream and rebuilds them elsewhere, preserving pointer identity.
//
// # Transactions
//
// Each call to Marshaller.Marshal encodes one root together with every
// object reachable from it that has not been sent before. The matching
// Unmarshaller.Unmarshal call rebuilds them and returns the root. Both sides
// keep an object set between roots, so a later root may point at objects of
// an earlier one; ClearStore starts over.
//
// # Wire Format
//
//	object*    [type u8] [disambiguator u8, dynamic types only] [leaf bytes]
//	end        [0xff]
//	index*     [u8] per pointer member, in traversal order
//
// Index 0 is NULL. Indexes below the object count address objects, the
// remainder address shared members in registration order. Leaves are copied
// as they are stored in memory (little-endian) unless a type supplies
// MarshalCopy and UnmarshalCopy.
//
// # Buffers
//
// Neither side needs the whole stream at once. Marshal returns an error
// matching errors.ErrBufferFull when the output buffer cannot take the next
// object; Unmarshal returns errors.ErrIncomplete when the input ends inside
// an object. Both resume where they stopped. A single object must fit in
// one output buffer.
//
// # Failure
//
// Corrupt input yields returned errors. Defects in the descriptor table or
// in the caller's use of the API, such as marshalling the same root twice,
// panic with an invariant violation (see errors.IsInvariantViolation).
//
// Decoded objects belong to the caller once Unmarshal returns them. To
// abandon a partially received graph call Close(true), which frees every
// object the unmarshaller still tracks.
package marshal
