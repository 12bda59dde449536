package cf

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// FuncDef defines an exported native function.
type FuncDef struct {
	Name        string
	Handler     api.GoModuleFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func sig(types ...api.ValueType) []api.ValueType { return types }

// Functions returns the names of the exported functions, sorted.
func (img *Image) Functions() []string {
	defs := img.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func boolResult(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// as fetches the object behind ref with the expected concrete type.
func as[T object](img *Image, ref Ref) (T, bool) {
	var zero T
	obj, ok := img.heap.get(ref)
	if !ok {
		return zero, false
	}
	t, ok := obj.(T)
	return t, ok
}

// funcs builds the function table. Pointers, refs and CFIndex values are i64;
// Boolean and encoding arguments are i32.
func (img *Image) funcs() map[string]*FuncDef {
	table := make(map[string]*FuncDef)
	def := func(name string, params, results []api.ValueType, h func(ctx context.Context, stack []uint64)) {
		table[name] = &FuncDef{
			Name: name,
			Handler: api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
				h(ctx, stack)
			}),
			ParamTypes:  params,
			ResultTypes: results,
		}
	}

	// Memory management.
	def("CFRetain", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		if !img.heap.retain(stack[0]) {
			stack[0] = 0
		}
	})
	def("CFRelease", sig(i64), sig(), func(_ context.Context, stack []uint64) {
		if _, ok := img.heap.get(stack[0]); !ok {
			Logger().Warn("CFRelease of invalid object", zap.Uint64("ref", stack[0]))
			return
		}
		img.release(stack[0])
	})
	def("CFGetTypeID", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		obj, ok := img.heap.get(stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = uint64(obj.typeID())
	})
	def("CFGetRetainCount", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		stack[0] = uint64(img.heap.retainCount(stack[0]))
	})
	def("CFCopyDescription", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		stack[0] = img.heap.create(&cfString{s: img.describe(stack[0], 0)})
	})

	// Type identifiers.
	for name, id := range map[string]TypeID{
		"CFStringGetTypeID":     StringTypeID,
		"CFDataGetTypeID":       DataTypeID,
		"CFNumberGetTypeID":     NumberTypeID,
		"CFArrayGetTypeID":      ArrayTypeID,
		"CFDictionaryGetTypeID": DictionaryTypeID,
		"CFBooleanGetTypeID":    BooleanTypeID,
		"CFDateGetTypeID":       DateTypeID,
		"CFURLGetTypeID":        URLTypeID,
		"CFErrorGetTypeID":      ErrorTypeID,
	} {
		def(name, sig(), sig(i64), func(_ context.Context, stack []uint64) {
			stack[0] = uint64(id)
		})
	}

	img.stringFuncs(def)
	img.containerFuncs(def)
	img.streamFuncs(def)

	// Scratch memory.
	def("malloc", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		stack[0] = img.mem.Alloc(stack[0])
	})
	def("free", sig(i64), sig(), func(_ context.Context, stack []uint64) {
		if stack[0] != 0 && !img.mem.Free(stack[0]) {
			Logger().Warn("free of unknown pointer", zap.Uint64("ptr", stack[0]))
		}
	})

	return table
}

type defineFunc func(name string, params, results []api.ValueType, h func(ctx context.Context, stack []uint64))

func (img *Image) stringFuncs(def defineFunc) {
	// CFStringCreateWithBytes(alloc, bytes, numBytes, encoding, isExternalRepresentation)
	def("CFStringCreateWithBytes", sig(i64, i64, i64, i32, i32), sig(i64), func(_ context.Context, stack []uint64) {
		ptr, n, enc := stack[1], stack[2], api.DecodeU32(stack[3])
		var b []byte
		if n > 0 {
			var err error
			if b, err = img.mem.Read(ptr, n); err != nil {
				stack[0] = 0
				return
			}
		}
		s, ok := decodeBytes(b, enc)
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.heap.create(&cfString{s: s})
	})
	// CFStringCreateExternalRepresentation(alloc, string, encoding, lossByte)
	def("CFStringCreateExternalRepresentation", sig(i64, i64, i32, i32), sig(i64), func(_ context.Context, stack []uint64) {
		s, ok := img.stringValue(stack[1])
		if !ok {
			stack[0] = 0
			return
		}
		b, ok := encodeString(s, api.DecodeU32(stack[2]), byte(stack[3]))
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.newData(b)
	})
	def("CFStringGetLength", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		s, _ := img.stringValue(stack[0])
		stack[0] = uint64(utf16Len(s))
	})

	// CFDataCreate(alloc, bytes, length)
	def("CFDataCreate", sig(i64, i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		var b []byte
		if stack[2] > 0 {
			var err error
			if b, err = img.mem.Read(stack[1], stack[2]); err != nil {
				stack[0] = 0
				return
			}
		}
		stack[0] = img.newData(b)
	})
	def("CFDataGetLength", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		d, ok := as[*cfData](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = d.length
	})
	def("CFDataGetBytePtr", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		d, ok := as[*cfData](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = d.ptr
	})

	def("CFBooleanGetValue", sig(i64), sig(i32), func(_ context.Context, stack []uint64) {
		b, ok := as[*cfBoolean](img, stack[0])
		stack[0] = boolResult(ok && b.v)
	})

	def("CFErrorCopyDescription", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		e, ok := as[*cfError](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.heap.create(&cfString{s: e.description})
	})
	def("CFErrorGetCode", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		e, ok := as[*cfError](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = uint64(e.code)
	})
	def("CFErrorGetDomain", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		e, ok := as[*cfError](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.heap.create(&cfString{s: e.domain})
	})
}

func (img *Image) newData(b []byte) Ref {
	var ptr uint64
	if len(b) > 0 {
		if ptr = img.mem.AllocBytes(b); ptr == 0 {
			return 0
		}
	}
	return img.heap.create(&cfData{ptr: ptr, length: uint64(len(b))})
}

func (img *Image) containerFuncs(def defineFunc) {
	// CFArrayCreateMutable(alloc, capacity, callBacks)
	def("CFArrayCreateMutable", sig(i64, i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		capacity := min(stack[1], 1<<16)
		stack[0] = img.heap.create(&cfArray{
			items:  make([]Ref, 0, capacity),
			retain: stack[2] == img.arrayCB,
		})
	})
	def("CFArrayAppendValue", sig(i64, i64), sig(), func(_ context.Context, stack []uint64) {
		a, ok := as[*cfArray](img, stack[0])
		if !ok {
			Logger().Warn("CFArrayAppendValue on non-array", zap.Uint64("ref", stack[0]))
			return
		}
		if a.retain {
			img.heap.retain(stack[1])
		}
		a.items = append(a.items, stack[1])
	})
	def("CFArrayGetCount", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		a, ok := as[*cfArray](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = uint64(len(a.items))
	})
	def("CFArrayGetValueAtIndex", sig(i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		a, ok := as[*cfArray](img, stack[0])
		if !ok || stack[1] >= uint64(len(a.items)) {
			stack[0] = 0
			return
		}
		stack[0] = a.items[stack[1]]
	})

	// CFDictionaryCreateMutable(alloc, capacity, keyCallBacks, valueCallBacks)
	def("CFDictionaryCreateMutable", sig(i64, i64, i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		capacity := min(stack[1], 1<<16)
		stack[0] = img.heap.create(&cfDictionary{
			keys:    make([]Ref, 0, capacity),
			values:  make([]Ref, 0, capacity),
			index:   make(map[string]int, capacity),
			retainK: stack[2] == img.dictKeyCB,
			retainV: stack[3] == img.dictValueCB,
		})
	})
	def("CFDictionarySetValue", sig(i64, i64, i64), sig(), func(_ context.Context, stack []uint64) {
		img.dictionaryPut(stack[0], stack[1], stack[2], true)
	})
	def("CFDictionaryAddValue", sig(i64, i64, i64), sig(), func(_ context.Context, stack []uint64) {
		img.dictionaryPut(stack[0], stack[1], stack[2], false)
	})
	def("CFDictionaryGetCount", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		d, ok := as[*cfDictionary](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = uint64(len(d.keys))
	})
	def("CFDictionaryGetValue", sig(i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		d, ok := as[*cfDictionary](img, stack[0])
		if !ok {
			stack[0] = 0
			return
		}
		i, ok := d.lookup(img, stack[1])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = d.values[i]
	})
	// CFDictionaryApplyFunction(dict, applier, context)
	def("CFDictionaryApplyFunction", sig(i64, i64, i64), sig(), func(_ context.Context, stack []uint64) {
		d, ok := as[*cfDictionary](img, stack[0])
		if !ok {
			return
		}
		fn, ok := img.callback(stack[1])
		if !ok {
			Logger().Warn("CFDictionaryApplyFunction with unknown applier", zap.Uint64("fn", stack[1]))
			return
		}
		keys, values := slices.Clone(d.keys), slices.Clone(d.values)
		for i := range keys {
			fn([]uint64{keys[i], values[i], stack[2]})
		}
	})
}

// dictionaryPut stores key/value. An existing key keeps its key object; its
// value is replaced when replace is set.
func (img *Image) dictionaryPut(dictRef, key, value Ref, replace bool) {
	d, ok := as[*cfDictionary](img, dictRef)
	if !ok {
		Logger().Warn("dictionary update on non-dictionary", zap.Uint64("ref", dictRef))
		return
	}

	if i, ok := d.lookup(img, key); ok {
		if !replace {
			return
		}
		if d.retainV {
			img.heap.retain(value)
		}
		old := d.values[i]
		d.values[i] = value
		if d.retainV {
			img.release(old)
		}
		return
	}

	if d.retainK {
		img.heap.retain(key)
	}
	if d.retainV {
		img.heap.retain(value)
	}
	if s, ok := img.stringValue(key); ok {
		d.index[s] = len(d.keys)
	}
	d.keys = append(d.keys, key)
	d.values = append(d.values, value)
}

func (img *Image) streamFuncs(def defineFunc) {
	// CFURLCreateWithFileSystemPath(alloc, filePath, pathStyle, isDirectory)
	def("CFURLCreateWithFileSystemPath", sig(i64, i64, i64, i32), sig(i64), func(_ context.Context, stack []uint64) {
		p, ok := img.stringValue(stack[1])
		if !ok || p == "" {
			stack[0] = 0
			return
		}
		if stack[2] == uint64(PathStyleWindows) {
			p = filepath.FromSlash(p)
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		stack[0] = img.heap.create(&cfURL{path: p, isDir: stack[3] != 0})
	})

	def("CFWriteStreamCreateWithFile", sig(i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		u, ok := as[*cfURL](img, stack[1])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.heap.create(&cfWriteStream{path: u.path})
	})
	def("CFReadStreamCreateWithFile", sig(i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		u, ok := as[*cfURL](img, stack[1])
		if !ok {
			stack[0] = 0
			return
		}
		stack[0] = img.heap.create(&cfReadStream{path: u.path})
	})

	def("CFWriteStreamOpen", sig(i64), sig(i32), func(_ context.Context, stack []uint64) {
		s, ok := as[*cfWriteStream](img, stack[0])
		if !ok || s.state != streamNotOpen {
			stack[0] = 0
			return
		}
		f, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
		if err == nil {
			if err = f.Chmod(0o644); err != nil {
				f.Close()
				os.Remove(f.Name())
			}
		}
		if err != nil {
			s.state, s.err = streamError, err
			Logger().Debug("open write stream", zap.String("path", s.path), zap.Error(err))
			stack[0] = 0
			return
		}
		s.f, s.state = f, streamOpen
		img.openStreams.Add(1)
		stack[0] = 1
	})
	def("CFReadStreamOpen", sig(i64), sig(i32), func(_ context.Context, stack []uint64) {
		s, ok := as[*cfReadStream](img, stack[0])
		if !ok || s.state != streamNotOpen {
			stack[0] = 0
			return
		}
		f, err := os.Open(s.path)
		if err != nil {
			s.state, s.err = streamError, err
			Logger().Debug("open read stream", zap.String("path", s.path), zap.Error(err))
			stack[0] = 0
			return
		}
		s.f, s.state = f, streamOpen
		img.openStreams.Add(1)
		stack[0] = 1
	})
	def("CFWriteStreamClose", sig(i64), sig(), func(_ context.Context, stack []uint64) {
		if s, ok := as[*cfWriteStream](img, stack[0]); ok {
			s.close(img)
		}
	})
	def("CFWriteStreamGetStatus", sig(i64), sig(i64), func(_ context.Context, stack []uint64) {
		s, ok := as[*cfWriteStream](img, stack[0])
		if !ok {
			stack[0] = uint64(StreamStatusError)
			return
		}
		stack[0] = uint64(s.state.status())
	})
	def("CFReadStreamClose", sig(i64), sig(), func(_ context.Context, stack []uint64) {
		if s, ok := as[*cfReadStream](img, stack[0]); ok {
			s.close(img)
		}
	})

	// CFPropertyListWrite(propertyList, stream, format, options, error) returns
	// the number of bytes written, 0 on failure.
	def("CFPropertyListWrite", sig(i64, i64, i64, i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		root, errSlot := stack[0], stack[4]
		s, ok := as[*cfWriteStream](img, stack[1])
		if !ok || s.state != streamOpen {
			img.newError(errSlot, POSIXErrorDomain, ErrorCodeStream, "The stream is not open for writing.")
			stack[0] = 0
			return
		}
		data, err := img.serialize(root, int64(stack[2]))
		if err != nil {
			img.newError(errSlot, CocoaErrorDomain, ErrorCodeWriteInvalid, "Property list invalid for format: "+err.Error())
			stack[0] = 0
			return
		}
		n, err := s.f.Write(data)
		if err != nil {
			s.state, s.err = streamError, err
			img.newError(errSlot, POSIXErrorDomain, ErrorCodeStream, err.Error())
			stack[0] = 0
			return
		}
		s.wrote = true
		stack[0] = uint64(n)
	})

	// CFPropertyListCreateWithStream(alloc, stream, streamLength, options, format, error)
	// returns the root object, owned by the caller, or 0 on failure. A zero
	// length reads to the end of the stream.
	def("CFPropertyListCreateWithStream", sig(i64, i64, i64, i64, i64, i64), sig(i64), func(_ context.Context, stack []uint64) {
		length, formatSlot, errSlot := stack[2], stack[4], stack[5]
		s, ok := as[*cfReadStream](img, stack[1])
		if !ok || s.state != streamOpen {
			img.newError(errSlot, POSIXErrorDomain, ErrorCodeStream, "The stream is not open for reading.")
			stack[0] = 0
			return
		}

		var r io.Reader = s.f
		if length > 0 {
			r = io.LimitReader(s.f, int64(length))
		}
		data, err := io.ReadAll(r)
		if err != nil {
			s.state, s.err = streamError, err
			img.newError(errSlot, POSIXErrorDomain, ErrorCodeStream, err.Error())
			stack[0] = 0
			return
		}
		if len(data) == 0 {
			img.newError(errSlot, CocoaErrorDomain, ErrorCodeReadCorrupt, "Stream had too few bytes")
			stack[0] = 0
			return
		}

		root, format, err := img.deserialize(data)
		if err != nil {
			img.newError(errSlot, CocoaErrorDomain, ErrorCodeReadCorrupt,
				"The data couldn’t be read because it isn’t in the correct format: "+err.Error())
			stack[0] = 0
			return
		}
		if formatSlot != 0 {
			if err := img.mem.WriteUint64(formatSlot, uint64(format)); err != nil {
				Logger().Warn("write format slot", zap.Error(err))
			}
		}
		stack[0] = root
	})
}
