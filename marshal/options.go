package marshal

import (
	"github.com/wippyai/objgraph/traverse"
	"github.com/wippyai/objgraph/typedesc"
)

// Options configures a Marshaller.
type Options struct {
	// AllowedTypes restricts the types accepted as roots. Empty allows all.
	AllowedTypes []typedesc.TypeID
	// Strategy selects the traversal implementation.
	Strategy traverse.Strategy
}

// DefaultOptions returns the default marshaller configuration.
func DefaultOptions() Options {
	return Options{Strategy: traverse.Recursive}
}

// UnmarshalOptions configures an Unmarshaller.
type UnmarshalOptions struct {
	// Observer, when set, is told about every decoded object and pointer.
	Observer *Observer
	// AllowedTypes restricts the types accepted as roots. Empty allows all.
	AllowedTypes []typedesc.TypeID
	// Strategy selects the traversal implementation.
	Strategy traverse.Strategy
}

// DefaultUnmarshalOptions returns the default unmarshaller configuration.
func DefaultUnmarshalOptions() UnmarshalOptions {
	return UnmarshalOptions{Strategy: traverse.Recursive}
}
