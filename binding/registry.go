package binding

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
)

// Image is the loaded native library a registry resolves symbols from.
// *cf.Image implements it.
type Image interface {
	Function(name string) (*cf.Function, bool)
	Symbol(name string) (uint64, bool)
	Memory() *cf.Memory
	RegisterCallback(fn cf.Callback) uint64
	UnregisterCallback(ptr uint64)
}

// Signature describes a native function: its symbol name and the value types
// of its parameters and results.
type Signature struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Options configures a registry.
type Options struct {
	// Tracker counts owned handles. Nil uses the process-wide tracker.
	Tracker *ownership.Tracker
}

// DefaultOptions returns default registry configuration.
func DefaultOptions() Options {
	return Options{}
}

// Registry resolves native functions by name and caches the typed bindings.
// Thread-safe.
type Registry struct {
	img       Image
	tracker   *ownership.Tracker
	bindings  map[string]*Binding
	constants map[string]uint64
	release   *Binding
	mu        sync.Mutex
}

// New creates a registry over img. CFRelease is bound eagerly since every
// owned handle depends on it.
func New(img Image, opts Options) (*Registry, error) {
	if opts.Tracker == nil {
		opts.Tracker = ownership.Default()
	}
	r := &Registry{
		img:       img,
		tracker:   opts.Tracker,
		bindings:  make(map[string]*Binding),
		constants: make(map[string]uint64),
	}
	release, err := r.Bind("CFRelease", []api.ValueType{api.ValueTypeI64}, nil)
	if err != nil {
		return nil, err
	}
	r.release = release
	return r, nil
}

// Bind returns the binding for symbol, resolving it on first use. Binding an
// already cached symbol with a different signature fails.
func (r *Registry) Bind(symbol string, params, results []api.ValueType) (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bindings[symbol]; ok {
		if !slices.Equal(b.params, params) || !slices.Equal(b.results, results) {
			return nil, errors.Link(symbol, fmt.Sprintf("already bound as %s", b.signature()))
		}
		return b, nil
	}

	fn, ok := r.img.Function(symbol)
	if !ok {
		return nil, errors.Link(symbol, "symbol not found in image")
	}
	def := fn.Definition()
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		want := &Binding{name: symbol, params: params, results: results}
		got := &Binding{name: symbol, params: def.ParamTypes(), results: def.ResultTypes()}
		return nil, errors.Link(symbol, fmt.Sprintf("signature mismatch: want %s, image has %s", want.signature(), got.signature()))
	}

	b := &Binding{
		name:    symbol,
		fn:      fn,
		params:  slices.Clone(params),
		results: slices.Clone(results),
		creates: strings.Contains(symbol, "Create"),
		reg:     r,
	}
	r.bindings[symbol] = b
	Logger().Debug("bound symbol", zap.String("symbol", symbol), zap.String("signature", b.signature()))
	return b, nil
}

// MustBind is like Bind but panics on error.
func (r *Registry) MustBind(symbol string, params, results []api.ValueType) *Binding {
	b, err := r.Bind(symbol, params, results)
	if err != nil {
		panic(err)
	}
	return b
}

// Preload resolves a symbol table eagerly and returns the bindings by name.
func (r *Registry) Preload(sigs []Signature) (map[string]*Binding, error) {
	out := make(map[string]*Binding, len(sigs))
	for _, s := range sigs {
		b, err := r.Bind(s.Name, s.Params, s.Results)
		if err != nil {
			return nil, err
		}
		out[s.Name] = b
	}
	return out, nil
}

// Lookup returns a cached binding without resolving.
func (r *Registry) Lookup(symbol string) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[symbol]
	return b, ok
}

// Len returns the number of cached bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// Symbol returns the address of a data symbol, such as a callbacks table
// passed by address.
func (r *Registry) Symbol(name string) (uint64, error) {
	addr, ok := r.img.Symbol(name)
	if !ok {
		return 0, errors.Link(name, "data symbol not found")
	}
	return addr, nil
}

// Constant returns the object stored at a data symbol, such as
// kCFBooleanTrue. Results are cached.
func (r *Registry) Constant(name string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.constants[name]; ok {
		return v, nil
	}
	addr, ok := r.img.Symbol(name)
	if !ok {
		return 0, errors.Link(name, "data symbol not found")
	}
	v, err := r.img.Memory().ReadUint64(addr)
	if err != nil {
		return 0, errors.New(errors.PhaseBind, errors.KindLink).
			Symbol(name).
			Cause(err).
			Detail("read data symbol").
			Build()
	}
	r.constants[name] = v
	return v, nil
}

// Memory returns the image memory for reading and writing raw buffers.
func (r *Registry) Memory() *cf.Memory {
	return r.img.Memory()
}

// Tracker returns the tracker owned handles are counted in.
func (r *Registry) Tracker() *ownership.Tracker {
	return r.tracker
}

// Own wraps ref so it is released through CFRelease. Used for results of
// functions whose name follows the Copy rule.
func (r *Registry) Own(ref uint64) *ownership.Owned {
	return r.tracker.AutoRelease(ref, r.releaseRef)
}

func (r *Registry) releaseRef(ref uint64) {
	// Collector releases run without a caller context.
	if _, err := r.release.Call(context.Background(), ref); err != nil {
		Logger().Warn("release failed", zap.Uint64("ref", ref), zap.Error(err))
	}
}

// Callback is a host function registered in the image.
type Callback struct {
	img  Image
	ptr  uint64
	once sync.Once
}

// Callback registers fn so native code can call it through Ptr.
func (r *Registry) Callback(fn cf.Callback) (*Callback, error) {
	ptr := r.img.RegisterCallback(fn)
	if ptr == 0 {
		return nil, errors.New(errors.PhaseBind, errors.KindIO).
			Detail("unable to register callback").
			Build()
	}
	return &Callback{img: r.img, ptr: ptr}, nil
}

// Ptr returns the function pointer.
func (c *Callback) Ptr() uint64 {
	return c.ptr
}

// Free unregisters the callback. Safe to call more than once.
func (c *Callback) Free() {
	c.once.Do(func() {
		c.img.UnregisterCallback(c.ptr)
	})
}

var pointerArg = []api.ValueType{api.ValueTypeI64}

// Malloc allocates size bytes of scratch memory in the image.
func (r *Registry) Malloc(ctx context.Context, size uint64) (uint64, error) {
	b, err := r.Bind("malloc", pointerArg, pointerArg)
	if err != nil {
		return 0, err
	}
	res, err := b.Call(ctx, size)
	if err != nil {
		return 0, err
	}
	if res.Raw == 0 {
		return 0, errors.New(errors.PhaseCall, errors.KindIO).
			Symbol("malloc").
			Detail("out of memory allocating %d bytes", size).
			Build()
	}
	return res.Raw, nil
}

// Free returns scratch memory obtained from Malloc.
func (r *Registry) Free(ctx context.Context, ptr uint64) error {
	b, err := r.Bind("free", pointerArg, nil)
	if err != nil {
		return err
	}
	_, err = b.Call(ctx, ptr)
	return err
}
