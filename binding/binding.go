package binding

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
)

// Binding is a resolved native function with a fixed signature. Calls on one
// binding are serialized.
type Binding struct {
	fn      *cf.Function
	reg     *Registry
	name    string
	params  []api.ValueType
	results []api.ValueType
	creates bool
	mu      sync.Mutex
}

// Result is the outcome of a native call.
type Result struct {
	// Owned is set for non-null results of Create functions.
	Owned *ownership.Owned
	// Raw is the first result word, 0 for functions without results.
	Raw uint64
}

// Ref returns the result as an object reference.
func (r Result) Ref() uint64 {
	return r.Raw
}

// Bool interprets the result as a native Boolean.
func (r Result) Bool() bool {
	return r.Raw != 0
}

// Release gives back an owned result. No-op otherwise.
func (r Result) Release() {
	r.Owned.Release()
}

// Name returns the symbol name.
func (b *Binding) Name() string {
	return b.name
}

// Arity returns the number of parameters.
func (b *Binding) Arity() int {
	return len(b.params)
}

// Creates reports whether results are returned as owned handles.
func (b *Binding) Creates() bool {
	return b.creates
}

// Call invokes the function. The argument count is checked before anything
// crosses into the image.
func (b *Binding) Call(ctx context.Context, args ...uint64) (Result, error) {
	if len(args) != len(b.params) {
		return Result{}, errors.Arity(b.name, len(b.params), len(args))
	}

	b.mu.Lock()
	out, err := b.fn.Call(ctx, args...)
	b.mu.Unlock()
	if err != nil {
		return Result{}, errors.New(errors.PhaseCall, errors.KindTrap).
			Symbol(b.name).
			Cause(err).
			Detail("native call failed").
			Build()
	}

	var res Result
	if len(out) > 0 {
		res.Raw = out[0]
	}
	if b.creates && res.Raw != 0 {
		res.Owned = b.reg.Own(res.Raw)
	}
	return res, nil
}

func (b *Binding) signature() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, p := range b.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(api.ValueTypeName(p))
	}
	sb.WriteString(")")
	switch len(b.results) {
	case 0:
	case 1:
		sb.WriteString(" ")
		sb.WriteString(api.ValueTypeName(b.results[0]))
	default:
		sb.WriteString(" (")
		for i, r := range b.results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(api.ValueTypeName(r))
		}
		sb.WriteString(")")
	}
	return sb.String()
}
