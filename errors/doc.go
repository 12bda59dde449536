// Package errors provides structured error types for the plist codec.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, Go/CF type names, the native
// symbol involved and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeConversion).
//		Path("root", "build", "[2]").
//		CFType("CFNumber").
//		Detail("unsupported node <CFNumber 42>").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Link("CFPropertyListWrite", "symbol not found")
//	err := errors.Arity("CFRelease", 1, 2)
//
// Kind-only sentinels match any phase:
//
//	if errors.Is(err, errors.ErrSchema) { ... }
package errors
