package cf

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/lookingstars/Xcodeproj/errors"
)

// Options configures a native image.
type Options struct {
	// Name is the host module name the functions are exported under.
	Name string
	// MemoryLimit caps the byte heap; zero means unbounded.
	MemoryLimit uint64
	// Omit leaves the named function symbols out of the image, which is how
	// tests simulate an incompatible library.
	Omit []string
}

// DefaultOptions returns the default image configuration.
func DefaultOptions() Options {
	return Options{
		Name: "CoreFoundation",
	}
}

// Callback is a host function made callable through a function pointer.
type Callback func(args []uint64)

// Image is a loaded native property-list library. Its functions are exported
// from a wazero host module and looked up by symbol name; its objects live in
// a reference-counted heap; raw bytes live in a Memory.
type Image struct {
	rt          wazero.Runtime
	mod         api.Module
	heap        *Heap
	mem         *Memory
	data        map[string]uint64
	callbacks   map[uint64]Callback
	cbMu        sync.RWMutex
	trueRef     Ref
	falseRef    Ref
	arrayCB     uint64
	dictKeyCB   uint64
	dictValueCB uint64
	openStreams atomic.Int64
	name        string
}

// Open builds the image and instantiates its host module.
func Open(ctx context.Context, opts Options) (*Image, error) {
	if opts.Name == "" {
		opts.Name = DefaultOptions().Name
	}

	img := &Image{
		rt:        wazero.NewRuntime(ctx),
		heap:      NewHeap(),
		mem:       NewMemory(opts.MemoryLimit),
		data:      make(map[string]uint64),
		callbacks: make(map[uint64]Callback),
		name:      opts.Name,
	}

	if err := img.defineData(); err != nil {
		img.rt.Close(ctx)
		return nil, err
	}

	builder := img.rt.NewHostModuleBuilder(opts.Name)
	defs := img.funcs()
	names := make([]string, 0, len(defs))
	for name := range defs {
		if !slices.Contains(opts.Omit, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		f := defs[name]
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Handler, f.ParamTypes, f.ResultTypes).
			WithName(name).
			Export(name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		img.rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseImage, errors.KindLink, err, "instantiate "+opts.Name)
	}
	img.mod = mod

	Logger().Debug("image loaded",
		zap.String("name", opts.Name),
		zap.Int("functions", len(names)),
		zap.Int("data", len(img.data)))
	return img, nil
}

// defineData creates the singletons and the data symbols that point at them.
func (img *Image) defineData() error {
	img.trueRef = img.heap.createImmortal(&cfBoolean{v: true})
	img.falseRef = img.heap.createImmortal(&cfBoolean{v: false})

	pointers := map[string]uint64{
		SymBooleanTrue:      img.trueRef,
		SymBooleanFalse:     img.falseRef,
		SymAllocatorDefault: 0,
	}
	for name, v := range pointers {
		addr := img.mem.Alloc(8)
		if addr == 0 {
			return errors.New(errors.PhaseImage, errors.KindIO).
				Symbol(name).
				Detail("allocate data symbol").
				Build()
		}
		if err := img.mem.WriteUint64(addr, v); err != nil {
			return errors.Wrap(errors.PhaseImage, errors.KindIO, err, "write data symbol "+name)
		}
		img.data[name] = addr
	}

	// Callback tables are opaque; only their address matters.
	for _, name := range []string{SymTypeArrayCallBacks, SymTypeDictionaryKeyCallBacks, SymTypeDictionaryValueCallBacks} {
		addr := img.mem.Alloc(40)
		if addr == 0 {
			return errors.New(errors.PhaseImage, errors.KindIO).
				Symbol(name).
				Detail("allocate data symbol").
				Build()
		}
		img.data[name] = addr
	}
	img.arrayCB = img.data[SymTypeArrayCallBacks]
	img.dictKeyCB = img.data[SymTypeDictionaryKeyCallBacks]
	img.dictValueCB = img.data[SymTypeDictionaryValueCallBacks]
	return nil
}

// Module returns the host module exporting the image's functions.
func (img *Image) Module() api.Module {
	return img.mod
}

// Symbol returns the address of a data symbol.
func (img *Image) Symbol(name string) (uint64, bool) {
	addr, ok := img.data[name]
	return addr, ok
}

// Memory returns the image's byte heap.
func (img *Image) Memory() *Memory {
	return img.mem
}

// RegisterCallback makes fn callable through the returned function pointer
// until UnregisterCallback is called.
func (img *Image) RegisterCallback(fn Callback) uint64 {
	ptr := img.mem.Alloc(16)
	if ptr == 0 {
		return 0
	}
	img.cbMu.Lock()
	img.callbacks[ptr] = fn
	img.cbMu.Unlock()
	return ptr
}

// UnregisterCallback invalidates a function pointer.
func (img *Image) UnregisterCallback(ptr uint64) {
	img.cbMu.Lock()
	_, ok := img.callbacks[ptr]
	delete(img.callbacks, ptr)
	img.cbMu.Unlock()
	if ok {
		img.mem.Free(ptr)
	}
}

func (img *Image) callback(ptr uint64) (Callback, bool) {
	img.cbMu.RLock()
	defer img.cbMu.RUnlock()
	fn, ok := img.callbacks[ptr]
	return fn, ok
}

// OpenStreams returns the number of streams currently holding a file open.
func (img *Image) OpenStreams() int {
	return int(img.openStreams.Load())
}

// LiveObjects returns the number of objects in the heap, the two boolean
// singletons included.
func (img *Image) LiveObjects() int {
	return img.heap.Len()
}

// RetainCount returns the retain count of ref, 0 when ref is not live.
func (img *Image) RetainCount(ref Ref) int64 {
	return img.heap.retainCount(ref)
}

// Close tears down the host module and its runtime.
func (img *Image) Close(ctx context.Context) error {
	if err := img.rt.Close(ctx); err != nil {
		return fmt.Errorf("cf: close image %s: %w", img.name, err)
	}
	return nil
}

// release drops one reference and finalizes the object when it was the last.
func (img *Image) release(ref Ref) {
	obj, freed := img.heap.release(ref)
	if !freed {
		return
	}
	if f, ok := obj.(finalizer); ok {
		f.finalize(img)
	}
}

func (img *Image) stringValue(ref Ref) (string, bool) {
	obj, ok := img.heap.get(ref)
	if !ok {
		return "", false
	}
	s, ok := obj.(*cfString)
	if !ok {
		return "", false
	}
	return s.s, true
}

// newError creates an error object and stores it in the error-out slot when
// the caller supplied one. The caller owns the stored error.
func (img *Image) newError(slot uint64, domain string, code int64, desc string) {
	Logger().Debug("native error",
		zap.String("domain", domain),
		zap.Int64("code", code),
		zap.String("description", desc))
	if slot == 0 {
		return
	}
	ref := img.heap.create(&cfError{domain: domain, code: code, description: desc})
	if err := img.mem.WriteUint64(slot, ref); err != nil {
		img.release(ref)
	}
}
