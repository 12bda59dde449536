package cf

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Function is an exported image function. Host modules forbid
// api.Module.ExportedFunction, so calls go straight to the Go handler with a
// value stack shaped the way wazero would pass it.
type Function struct {
	def api.FunctionDefinition
	fn  api.GoModuleFunction
	mod api.Module
}

// Function returns the exported function name, or false when the image does
// not export it.
func (img *Image) Function(name string) (*Function, bool) {
	def, ok := img.mod.ExportedFunctionDefinitions()[name]
	if !ok {
		return nil, false
	}
	fn, ok := def.GoFunction().(api.GoModuleFunction)
	if !ok {
		return nil, false
	}
	return &Function{def: def, fn: fn, mod: img.mod}, true
}

// Definition returns the function's name and value types.
func (f *Function) Definition() api.FunctionDefinition {
	return f.def
}

// Call invokes the function. A panic inside the handler is returned as an
// error, as a trap would be.
func (f *Function) Call(ctx context.Context, params ...uint64) (results []uint64, err error) {
	np, nr := len(f.def.ParamTypes()), len(f.def.ResultTypes())
	if len(params) != np {
		return nil, fmt.Errorf("cf: %s: expected %d params, but passed %d", f.def.Name(), np, len(params))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stack := make([]uint64, max(np, nr))
	copy(stack, params)

	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("cf: %s: %v", f.def.Name(), r)
		}
	}()
	f.fn.Call(ctx, f.mod, stack)
	return stack[:nr:nr], nil
}
