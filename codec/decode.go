package codec

import (
	"context"

	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/value"
)

// FromForeign converts the object graph rooted at ref into a value. The
// graph is borrowed; nothing is released.
func (c *Codec) FromForeign(ctx context.Context, ref uint64) (value.Value, error) {
	return c.decode(ctx, ref, []string{"root"})
}

// TypeName returns a short name for the type of ref: one of string, array,
// dictionary, boolean, or the native description for anything else.
func (c *Codec) TypeName(ctx context.Context, ref uint64) (string, error) {
	res, err := c.getTypeID.Call(ctx, ref)
	if err != nil {
		return "", err
	}
	switch res.Raw {
	case c.stringType:
		return "string", nil
	case c.arrayType:
		return "array", nil
	case c.dictType:
		return "dictionary", nil
	case c.boolType:
		return "boolean", nil
	}
	return c.Describe(ctx, ref), nil
}

func (c *Codec) decode(ctx context.Context, ref uint64, path []string) (value.Value, error) {
	if ref == 0 {
		return nil, errors.TypeConversion(errors.PhaseDecode, path, "null object", nil)
	}
	res, err := c.getTypeID.Call(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch res.Raw {
	case c.stringType:
		s, err := c.StringValue(ctx, ref)
		if err != nil {
			return nil, err
		}
		return value.Str(s), nil
	case c.dictType:
		return c.decodeDict(ctx, ref, path)
	case c.arrayType:
		return c.decodeArray(ctx, ref, path)
	case c.boolType:
		return value.Bool(ref == c.trueRef), nil
	default:
		desc := c.Describe(ctx, ref)
		return nil, errors.New(errors.PhaseDecode, errors.KindTypeConversion).
			Path(path...).
			Value(desc).
			Detail("unsupported object %s", desc).
			Build()
	}
}

func (c *Codec) decodeArray(ctx context.Context, ref uint64, path []string) (value.Value, error) {
	n, err := c.arrayCount.Call(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := make(value.Seq, 0, n.Raw)
	for i := range n.Raw {
		item, err := c.arrayAt.Call(ctx, ref, i)
		if err != nil {
			return nil, err
		}
		v, err := c.decode(ctx, item.Raw, append(path[:len(path):len(path)], value.IndexSegment(int(i))))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Codec) decodeDict(ctx context.Context, ref uint64, path []string) (value.Value, error) {
	n, err := c.dictCount.Call(ctx, ref)
	if err != nil {
		return nil, err
	}

	// The applier only records entries; conversion calls back into the image
	// and happens after the walk returns.
	keys := make([]uint64, 0, n.Raw)
	vals := make([]uint64, 0, n.Raw)
	cb, err := c.reg.Callback(func(args []uint64) {
		keys = append(keys, args[0])
		vals = append(vals, args[1])
	})
	if err != nil {
		return nil, err
	}
	defer cb.Free()

	if _, err := c.applyDict.Call(ctx, ref, cb.Ptr(), 0); err != nil {
		return nil, err
	}

	out := value.NewMap(len(keys))
	for i, k := range keys {
		kt, err := c.getTypeID.Call(ctx, k)
		if err != nil {
			return nil, err
		}
		if kt.Raw != c.stringType {
			desc := c.Describe(ctx, k)
			return nil, errors.New(errors.PhaseDecode, errors.KindTypeConversion).
				Path(path...).
				Value(desc).
				Detail("dictionary key %s is not a string", desc).
				Build()
		}
		key, err := c.StringValue(ctx, k)
		if err != nil {
			return nil, err
		}
		v, err := c.decode(ctx, vals[i], append(path[:len(path):len(path)], key))
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
	}
	return out, nil
}
