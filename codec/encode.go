package codec

import (
	"context"
	"fmt"

	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/value"
)

// ToForeign converts v into a foreign object graph. Values outside the four
// supported kinds are converted to their textual form first. The caller
// releases the returned object.
func (c *Codec) ToForeign(ctx context.Context, v any) (Object, error) {
	obj, err := c.encode(ctx, value.From(v), []string{"root"})
	if err != nil {
		return Object{}, err
	}
	if obj.Ref == 0 {
		return Object{}, errors.TypeConversion(errors.PhaseEncode, []string{"root"}, "conversion produced a null object", v)
	}
	return obj, nil
}

func (c *Codec) encode(ctx context.Context, v value.Value, path []string) (Object, error) {
	switch x := v.(type) {
	case value.Str:
		return c.encodeString(ctx, string(x), path)
	case value.Bool:
		if x {
			return Object{Ref: c.trueRef}, nil
		}
		return Object{Ref: c.falseRef}, nil
	case value.Seq:
		return c.encodeSeq(ctx, x, path)
	case *value.Map:
		if x == nil {
			return Object{}, errors.TypeConversion(errors.PhaseEncode, path, "nil map", nil)
		}
		return c.encodeMap(ctx, x, path)
	}
	return Object{}, errors.TypeConversion(errors.PhaseEncode, path, fmt.Sprintf("unsupported value %T", v), v)
}

func (c *Codec) encodeString(ctx context.Context, s string, path []string) (obj Object, err error) {
	ptr, err := c.reg.Malloc(ctx, uint64(len(s)))
	if err != nil {
		return Object{}, err
	}
	defer func() {
		if ferr := c.reg.Free(ctx, ptr); ferr != nil && err == nil {
			obj.Release()
			obj, err = Object{}, ferr
		}
	}()

	if err := c.reg.Memory().Write(ptr, []byte(s)); err != nil {
		return Object{}, errors.Wrap(errors.PhaseEncode, errors.KindIO, err, "copy string bytes")
	}
	res, err := c.createString.Call(ctx, 0, ptr, uint64(len(s)), uint64(cf.EncodingUTF8), 0)
	if err != nil {
		return Object{}, err
	}
	if res.Raw == 0 {
		return Object{}, errors.TypeConversion(errors.PhaseEncode, path, "string is not valid UTF-8", s)
	}
	return Object{Ref: res.Raw, Owned: res.Owned}, nil
}

func (c *Codec) encodeSeq(ctx context.Context, seq value.Seq, path []string) (Object, error) {
	res, err := c.createArray.Call(ctx, 0, uint64(len(seq)), c.arrayCB)
	if err != nil {
		return Object{}, err
	}
	if res.Raw == 0 {
		return Object{}, errors.TypeConversion(errors.PhaseEncode, path, "unable to create array", seq)
	}
	arr := Object{Ref: res.Raw, Owned: res.Owned}

	for i, elem := range seq {
		elemPath := append(path[:len(path):len(path)], value.IndexSegment(i))
		child, err := c.encode(ctx, elem, elemPath)
		if err != nil {
			arr.Release()
			return Object{}, err
		}
		if child.Ref == 0 {
			arr.Release()
			return Object{}, errors.TypeConversion(errors.PhaseEncode, elemPath, "element converted to a null object", elem)
		}
		_, err = c.appendValue.Call(ctx, arr.Ref, child.Ref)
		// The array holds its own reference now.
		child.Release()
		if err != nil {
			arr.Release()
			return Object{}, err
		}
	}
	return arr, nil
}

func (c *Codec) encodeMap(ctx context.Context, m *value.Map, path []string) (Object, error) {
	res, err := c.createDict.Call(ctx, 0, uint64(m.Len()), c.dictKeyCB, c.dictValueCB)
	if err != nil {
		return Object{}, err
	}
	if res.Raw == 0 {
		return Object{}, errors.TypeConversion(errors.PhaseEncode, path, "unable to create dictionary", m)
	}
	dict := Object{Ref: res.Raw, Owned: res.Owned}

	for k, v := range m.All() {
		entryPath := append(path[:len(path):len(path)], k)
		key, err := c.encodeString(ctx, k, entryPath)
		if err != nil {
			dict.Release()
			return Object{}, err
		}
		val, err := c.encode(ctx, v, entryPath)
		if err != nil {
			key.Release()
			dict.Release()
			return Object{}, err
		}
		if val.Ref == 0 {
			key.Release()
			dict.Release()
			return Object{}, errors.TypeConversion(errors.PhaseEncode, entryPath, "value converted to a null object", v)
		}
		_, err = c.setValue.Call(ctx, dict.Ref, key.Ref, val.Ref)
		key.Release()
		val.Release()
		if err != nil {
			dict.Release()
			return Object{}, err
		}
	}
	return dict, nil
}
