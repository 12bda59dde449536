package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBind   Phase = "bind"   // symbol resolution
	PhaseCall   Phase = "call"   // native invocation
	PhaseEncode Phase = "encode" // Go to foreign object
	PhaseDecode Phase = "decode" // foreign object to Go
	PhaseWrite  Phase = "write"  // write stream pipeline
	PhaseRead   Phase = "read"   // read stream pipeline
	PhaseImage  Phase = "image"  // native image setup
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindLink           Kind = "link"
	KindArity          Kind = "arity"
	KindIO             Kind = "io"
	KindSerialization  Kind = "serialization"
	KindParse          Kind = "parse"
	KindSchema         Kind = "schema"
	KindTypeConversion Kind = "type_conversion"
	KindNotFound       Kind = "not_found"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindInvalidInput   Kind = "invalid_input"
	KindTrap           Kind = "trap" // native call aborted
)

// Kind-only sentinels for errors.Is. They match any phase.
var (
	ErrTypeMismatch   = &Error{Kind: KindTypeMismatch}
	ErrLink           = &Error{Kind: KindLink}
	ErrArity          = &Error{Kind: KindArity}
	ErrIO             = &Error{Kind: KindIO}
	ErrSerialization  = &Error{Kind: KindSerialization}
	ErrParse          = &Error{Kind: KindParse}
	ErrSchema         = &Error{Kind: KindSchema}
	ErrTypeConversion = &Error{Kind: KindTypeConversion}
	ErrNotFound       = &Error{Kind: KindNotFound}
)

// Error is the structured error type used throughout the codec
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	CFType string
	Symbol string
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

	if e.Symbol != "" {
		b.WriteString(" ")
		b.WriteString(e.Symbol)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.CFType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.CFType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", CF type ")
			b.WriteString(e.CFType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("CF type ")
			b.WriteString(e.CFType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.CFType != "" {
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

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
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

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// CFType sets the foreign type name
func (b *Builder) CFType(t string) *Builder {
	b.err.CFType = t
	return b
}

// Symbol sets the native symbol involved
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
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

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error for a caller-supplied value
func TypeMismatch(phase Phase, goType, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		GoType: goType,
		Detail: detail,
	}
}

// Link creates an unresolved or incompatible symbol error
func Link(symbol, detail string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindLink,
		Symbol: symbol,
		Detail: detail,
	}
}

// Arity creates an argument count error
func Arity(symbol string, want, got int) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindArity,
		Symbol: symbol,
		Detail: fmt.Sprintf("expected %d argument(s), got %d", want, got),
		Value:  got,
	}
}

// IO creates a stream-level failure
func IO(phase Phase, path, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Path:   []string{path},
		Detail: detail,
	}
}

// Serialization creates a native serializer failure carrying its description
func Serialization(path, native string) *Error {
	return &Error{
		Phase:  PhaseWrite,
		Kind:   KindSerialization,
		Path:   []string{path},
		Detail: native,
	}
}

// Parse creates a native parser failure carrying its description
func Parse(path, native string) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindParse,
		Path:   []string{path},
		Detail: native,
	}
}

// Schema creates a root shape violation
func Schema(path, cfType, detail string) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindSchema,
		Path:   []string{path},
		CFType: cfType,
		Detail: detail,
	}
}

// TypeConversion creates a conversion error for a value with no representation
func TypeConversion(phase Phase, path []string, detail string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeConversion,
		Path:   path,
		Detail: detail,
		Value:  value,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
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

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
