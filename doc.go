// Package xcodeproj reads and writes XML property lists.
//
// Values are nested ordered maps, sequences, strings and booleans from package
// value. Files are produced and parsed by a native property-list library
// loaded in process (package cf) and reached through symbol bindings:
//
//	xcodeproj/           Root package: ReadPlist, WritePlist, Plist
//	├── value/           Value model: Str, Seq, Map, Bool
//	├── codec/           Value <-> foreign object graph conversion
//	├── stream/          File streams around the native serializer and parser
//	├── binding/         Symbol resolution, signature checks, call dispatch
//	├── ownership/       Release-once handles for created objects
//	├── cf/              The native library, exported as a wazero host module
//	├── errors/          Structured error types
//	└── cmd/plist/       Command-line tool
//
// # Quick Start
//
//	m := value.NewMap(0)
//	m.Set("name", value.Str("demo"))
//	m.Set("targets", value.Seq{value.Str("app"), value.Str("tests")})
//	m.Set("enabled", value.Bool(true))
//	if err := xcodeproj.WritePlist(m, "out.plist"); err != nil {
//		return err
//	}
//
//	got, err := xcodeproj.ReadPlist("out.plist")
//
// Plain Go maps work too. Values without a property-list kind, such as
// numbers, are stored as their text:
//
//	xcodeproj.WritePlist(map[string]any{"n": 42}, "out.plist") // n is "42"
//
// # Instances
//
// ReadPlist and WritePlist share one process-wide Plist created on first use.
// New builds an independent instance with its own image, which is useful for
// tests and for routing logs:
//
//	p, err := xcodeproj.New(ctx, xcodeproj.Options{Logger: logger})
//	defer p.Close(ctx)
//
// # Errors
//
// All failures are *errors.Error values. Match them by kind:
//
//	errors.Is(err, errors.ErrNotFound)       // ReadPlist of a missing file
//	errors.Is(err, errors.ErrTypeMismatch)   // WritePlist of a non-map value
//	errors.Is(err, errors.ErrSchema)         // file root is not a dictionary
//	errors.Is(err, errors.ErrParse)          // malformed file
//	errors.Is(err, errors.ErrTypeConversion) // numbers, dates or data in a file
package xcodeproj
