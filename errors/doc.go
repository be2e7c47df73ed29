// Package errors provides structured error types for the objgraph engine.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, type name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindDanglingIndex).
//		Path("handset", "next").
//		Type("handset_t").
//		Detail("index %d was never emitted", 7).
//		Build()
//
// Errors come in two classes. Recoverable errors are returned: buffer
// exhaustion, truncated or corrupt input, allocation failure. Invariant
// violations indicate a defect in a descriptor table or in the caller and are
// raised with panic so that a broken table can never produce a corrupt
// stream. Use IsInvariantViolation on a recovered value to tell them apart.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
