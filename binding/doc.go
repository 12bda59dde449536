// Package binding resolves native functions by symbol name and calls them.
//
// A Registry owns the bindings of one image. Bind looks a symbol up once,
// checks its signature and caches the result; later binds of the same symbol
// return the cached binding:
//
//	reg, err := binding.New(img, binding.DefaultOptions())
//	count := reg.MustBind("CFArrayGetCount", []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64})
//	res, err := count.Call(ctx, arr)
//
// Functions whose name contains Create return objects the caller owns. Their
// non-null results are wrapped in an ownership.Owned that releases the object
// through CFRelease.
package binding
