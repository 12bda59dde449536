// Package cf provides an in-process property-list library with a
// CoreFoundation-compatible calling surface.
//
// The library is loaded as an Image. Its functions are exported from a wazero
// host module and are resolved by symbol name, the way a dynamic loader
// resolves them from a shared library. Every argument and result crosses the
// boundary as a raw 64-bit word:
//
//	img, err := cf.Open(ctx, cf.DefaultOptions())
//	create, ok := img.Function("CFArrayCreateMutable")
//	res, err := create.Call(ctx, 0, 0, arrayCallBacks)
//
// Objects follow the Create/Copy rule: a function whose name contains Create
// or Copy returns an object with a retain count of one that the caller must
// pass to CFRelease. Get functions return borrowed objects.
//
// Data symbols (kCFBooleanTrue, kCFTypeArrayCallBacks, ...) are looked up with
// Image.Symbol. Boolean symbols are addresses of a slot holding the singleton
// object; callback symbols are opaque addresses compared by identity.
//
// XML serialization is delegated to howett.net/plist.
package cf
