package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // table validation, engine setup
	PhaseTraverse Phase = "traverse" // member tree walk
	PhaseSize     Phase = "size"     // object sizing
	PhaseEncode   Phase = "encode"   // memory to stream
	PhaseDecode   Phase = "decode"   // stream to memory
	PhaseStore    Phase = "store"    // object set bookkeeping
	PhaseGenerate Phase = "generate" // descriptor generation
	PhaseSnapshot Phase = "snapshot" // snapshot persistence
)

// Kind categorizes the error
type Kind string

const (
	KindInvariant     Kind = "invariant_violation"
	KindBufferFull    Kind = "buffer_full"
	KindIncomplete    Kind = "incomplete"
	KindDanglingIndex Kind = "dangling_index"
	KindInvalidData   Kind = "invalid_data"
	KindTypeMismatch  Kind = "type_mismatch"
	KindOverflow      Kind = "overflow"
	KindAllocation    Kind = "allocation"
	KindMemory        Kind = "memory"
	KindTypeFiltered  Kind = "type_filtered"
	KindUnsupported   Kind = "unsupported"
	KindNotFound      Kind = "not_found"
	KindInvalidInput  Kind = "invalid_input"
)

// Sentinels for the resumable conditions. Match with errors.Is.
var (
	ErrBufferFull = &Error{Phase: PhaseEncode, Kind: KindBufferFull}
	ErrIncomplete = &Error{Phase: PhaseDecode, Kind: KindIncomplete}
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error is an invariant violation.
func (e *Error) Fatal() bool {
	return e.Kind == KindInvariant
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the descriptor type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Invariant violations. These are raised with panic by the engine.

// Invariant creates an invariant violation error
func Invariant(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvariant).Detail(detail, args...).Build()
}

// UnknownType reports a type id outside the descriptor table
func UnknownType(phase Phase, id uint32, tableLen int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf("unknown type %d (table has %d types)", id, tableLen),
		Value:  id,
	}
}

// DisambiguatorOverflow reports a disambiguator that does not fit one byte
func DisambiguatorOverflow(typeName string, value uint32) *Error {
	return &Error{
		Phase:  PhaseSize,
		Kind:   KindInvariant,
		Type:   typeName,
		Detail: fmt.Sprintf("disambiguator %d exceeds 255", value),
		Value:  value,
	}
}

// InvalidDisambiguator reports a union index beyond the variant count
func InvalidDisambiguator(phase Phase, typeName string, value uint32, variants int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Type:   typeName,
		Detail: fmt.Sprintf("disambiguator %d out of range (%d variants)", value, variants),
		Value:  value,
	}
}

// DuplicateObject reports a push of an identity already in the set
func DuplicateObject(typeID uint32, address uint32) *Error {
	return &Error{
		Phase:  PhaseStore,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf("object type %d at 0x%x already tracked", typeID, address),
		Value:  address,
	}
}

// IsInvariantViolation reports whether v, typically a recovered panic value,
// is an invariant violation raised by the engine.
func IsInvariantViolation(v any) bool {
	e, ok := v.(*Error)
	return ok && e.Fatal()
}

// IsRecoverable reports whether err is a returned, recoverable engine error.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return !e.Fatal()
	}
	return true
}

// Convenience constructors for recoverable errors

// BufferFull creates an output exhaustion error
func BufferFull(need, free int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindBufferFull,
		Detail: fmt.Sprintf("need %d bytes, %d free", need, free),
	}
}

// Incomplete creates an input exhaustion error
func Incomplete(need, avail int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindIncomplete,
		Detail: fmt.Sprintf("need %d bytes, %d available", need, avail),
	}
}

// DanglingIndex creates an unresolvable pointer index error
func DanglingIndex(path []string, index uint32, known int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindDanglingIndex,
		Path:   path,
		Detail: fmt.Sprintf("object index %d was never emitted (%d known)", index, known),
		Value:  index,
	}
}

// TypeMismatch creates a pointer target type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   want,
		Detail: fmt.Sprintf("resolved object has type %s", got),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// MemoryAccess wraps a failed linear memory access
func MemoryAccess(phase Phase, offset uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMemory,
		Detail: fmt.Sprintf("memory access at 0x%x", offset),
		Cause:  cause,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, limit string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("value %v overflows %s", value, limit),
		Value:  value,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
