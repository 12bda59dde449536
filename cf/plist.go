package cf

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"howett.net/plist"
)

// plistFormat maps a CFPropertyListFormat to the serializer's format for
// writing. Only XML is written.
func plistFormat(format int64) (int, bool) {
	if format == FormatXML {
		return plist.XMLFormat, true
	}
	return 0, false
}

func cfFormat(format int) int64 {
	switch format {
	case plist.XMLFormat:
		return FormatXML
	case plist.BinaryFormat:
		return FormatBinary
	case plist.OpenStepFormat, plist.GNUStepFormat:
		return FormatOpenStep
	}
	return 0
}

// serialize renders the object graph rooted at ref.
func (img *Image) serialize(ref Ref, format int64) ([]byte, error) {
	pf, ok := plistFormat(format)
	if !ok {
		return nil, fmt.Errorf("property list format %d is not supported for writing", format)
	}
	v, err := img.export(ref, make(map[Ref]bool))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := plist.NewEncoderForFormat(&buf, pf)
	enc.Indent("\t")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// export converts a heap object into a value the serializer understands.
// active tracks the containers on the current path to reject cycles.
func (img *Image) export(ref Ref, active map[Ref]bool) (any, error) {
	obj, ok := img.heap.get(ref)
	if !ok {
		return nil, fmt.Errorf("invalid object %#x in property list", ref)
	}

	switch o := obj.(type) {
	case *cfString:
		return o.s, nil
	case *cfBoolean:
		return o.v, nil
	case *cfNumber:
		switch o.kind {
		case numberUnsigned:
			return o.u, nil
		case numberReal:
			return o.f, nil
		}
		return o.i, nil
	case *cfDate:
		return o.t, nil
	case *cfData:
		if o.length == 0 {
			return []byte{}, nil
		}
		return img.mem.Read(o.ptr, o.length)
	case *cfArray:
		if active[ref] {
			return nil, fmt.Errorf("property list contains a cycle at %#x", ref)
		}
		active[ref] = true
		defer delete(active, ref)

		out := make([]any, 0, len(o.items))
		for _, item := range o.items {
			v, err := img.export(item, active)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *cfDictionary:
		if active[ref] {
			return nil, fmt.Errorf("property list contains a cycle at %#x", ref)
		}
		active[ref] = true
		defer delete(active, ref)

		out := make(map[string]any, len(o.keys))
		for i, k := range o.keys {
			key, ok := img.stringValue(k)
			if !ok {
				return nil, fmt.Errorf("dictionary key %s is not a string", img.describe(k, 2))
			}
			v, err := img.export(o.values[i], active)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s objects cannot appear in a property list", obj.typeID())
}

// deserialize parses data and builds the object graph. The returned root is
// owned by the caller.
func (img *Image) deserialize(data []byte) (Ref, int64, error) {
	var v any
	format, err := plist.Unmarshal(data, &v)
	if err != nil {
		return 0, 0, err
	}
	ref, err := img.build(v)
	if err != nil {
		return 0, 0, err
	}
	return ref, cfFormat(format), nil
}

// build creates heap objects for a parsed value. On failure everything built
// so far is released.
func (img *Image) build(v any) (Ref, error) {
	switch x := v.(type) {
	case string:
		return img.heap.create(&cfString{s: x}), nil
	case bool:
		if x {
			return img.trueRef, nil
		}
		return img.falseRef, nil
	case int64:
		return img.heap.create(&cfNumber{i: x, kind: numberSigned}), nil
	case uint64:
		return img.heap.create(&cfNumber{u: x, kind: numberUnsigned}), nil
	case float64:
		return img.heap.create(&cfNumber{f: x, kind: numberReal}), nil
	case float32:
		return img.heap.create(&cfNumber{f: float64(x), kind: numberReal}), nil
	case plist.UID:
		return img.heap.create(&cfNumber{u: uint64(x), kind: numberUnsigned}), nil
	case time.Time:
		return img.heap.create(&cfDate{t: x}), nil
	case []byte:
		ptr := img.mem.AllocBytes(x)
		if ptr == 0 && len(x) > 0 {
			return 0, ErrOutOfMemory
		}
		return img.heap.create(&cfData{ptr: ptr, length: uint64(len(x))}), nil
	case []any:
		arr := &cfArray{items: make([]Ref, 0, len(x)), retain: true}
		ref := img.heap.create(arr)
		for _, item := range x {
			child, err := img.build(item)
			if err != nil {
				img.release(ref)
				return 0, err
			}
			arr.items = append(arr.items, child)
		}
		return ref, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		dict := &cfDictionary{
			keys:    make([]Ref, 0, len(x)),
			values:  make([]Ref, 0, len(x)),
			index:   make(map[string]int, len(x)),
			retainK: true,
			retainV: true,
		}
		ref := img.heap.create(dict)
		for _, k := range keys {
			child, err := img.build(x[k])
			if err != nil {
				img.release(ref)
				return 0, err
			}
			dict.index[k] = len(dict.keys)
			dict.keys = append(dict.keys, img.heap.create(&cfString{s: k}))
			dict.values = append(dict.values, child)
		}
		return ref, nil
	}
	return 0, fmt.Errorf("unsupported property list node %T", v)
}
