// Package typegen generates descriptor tables from WIT type definitions.
//
// The generated layout is a plain C-like layout with natural alignment, not
// the component model canonical ABI:
//
//	bool, u8 .. f64, char    leaf of the primitive size
//	enum, flags              leaf of the smallest fitting size
//	own<T>, borrow<T>        4 byte handle leaf
//	record, tuple            struct, fields in order
//	option<T> field          nullable pointer to T
//	list<T> as last field    u8 length, then a dynamic array of T
//	list<T> elsewhere        object with u8 length and items (via option)
//	variant, result          u8 tag, then a union of the payloads
//
// Strings, resources and streams have no fixed layout and are rejected with
// an unsupported error. Lists and variants are limited to 255 elements and
// 256 cases by the one byte disambiguator.
package typegen
