package codec

import (
	"context"
	"fmt"

	"github.com/lookingstars/Xcodeproj/binding"
	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
)

// Object is a foreign object produced by ToForeign. Owned is nil for the
// boolean singletons, which are looked up rather than created.
type Object struct {
	Owned *ownership.Owned
	Ref   uint64
}

// Release gives back the object if it is owned.
func (o Object) Release() {
	o.Owned.Release()
}

// Codec converts between values and foreign objects of one image.
// Safe for concurrent use.
type Codec struct {
	reg *binding.Registry

	getTypeID       *binding.Binding
	copyDescription *binding.Binding
	createString    *binding.Binding
	externalRep     *binding.Binding
	dataLength      *binding.Binding
	dataBytes       *binding.Binding
	createArray     *binding.Binding
	appendValue     *binding.Binding
	arrayCount      *binding.Binding
	arrayAt         *binding.Binding
	createDict      *binding.Binding
	setValue        *binding.Binding
	dictCount       *binding.Binding
	applyDict       *binding.Binding

	stringType uint64
	arrayType  uint64
	dictType   uint64
	boolType   uint64

	trueRef     uint64
	falseRef    uint64
	arrayCB     uint64
	dictKeyCB   uint64
	dictValueCB uint64
}

// New binds the codec's native surface and reads the type identifiers and
// constants it dispatches on.
func New(ctx context.Context, reg *binding.Registry) (*Codec, error) {
	fns, err := reg.Preload(symbols)
	if err != nil {
		return nil, err
	}
	c := &Codec{
		reg:             reg,
		getTypeID:       fns["CFGetTypeID"],
		copyDescription: fns["CFCopyDescription"],
		createString:    fns["CFStringCreateWithBytes"],
		externalRep:     fns["CFStringCreateExternalRepresentation"],
		dataLength:      fns["CFDataGetLength"],
		dataBytes:       fns["CFDataGetBytePtr"],
		createArray:     fns["CFArrayCreateMutable"],
		appendValue:     fns["CFArrayAppendValue"],
		arrayCount:      fns["CFArrayGetCount"],
		arrayAt:         fns["CFArrayGetValueAtIndex"],
		createDict:      fns["CFDictionaryCreateMutable"],
		setValue:        fns["CFDictionarySetValue"],
		dictCount:       fns["CFDictionaryGetCount"],
		applyDict:       fns["CFDictionaryApplyFunction"],
	}

	for _, t := range []struct {
		dst    *uint64
		symbol string
	}{
		{&c.stringType, "CFStringGetTypeID"},
		{&c.arrayType, "CFArrayGetTypeID"},
		{&c.dictType, "CFDictionaryGetTypeID"},
		{&c.boolType, "CFBooleanGetTypeID"},
	} {
		res, err := fns[t.symbol].Call(ctx)
		if err != nil {
			return nil, err
		}
		*t.dst = res.Raw
	}

	if c.trueRef, err = reg.Constant(cf.SymBooleanTrue); err != nil {
		return nil, err
	}
	if c.falseRef, err = reg.Constant(cf.SymBooleanFalse); err != nil {
		return nil, err
	}
	if c.arrayCB, err = reg.Symbol(cf.SymTypeArrayCallBacks); err != nil {
		return nil, err
	}
	if c.dictKeyCB, err = reg.Symbol(cf.SymTypeDictionaryKeyCallBacks); err != nil {
		return nil, err
	}
	if c.dictValueCB, err = reg.Symbol(cf.SymTypeDictionaryValueCallBacks); err != nil {
		return nil, err
	}
	return c, nil
}

// Registry returns the registry the codec calls through.
func (c *Codec) Registry() *binding.Registry {
	return c.reg
}

// Describe returns the native description of ref, for error messages.
func (c *Codec) Describe(ctx context.Context, ref uint64) string {
	res, err := c.copyDescription.Call(ctx, ref)
	if err != nil || res.Raw == 0 {
		return fmt.Sprintf("<object %#x>", ref)
	}
	desc := c.reg.Own(res.Raw)
	defer desc.Release()

	s, err := c.StringValue(ctx, res.Raw)
	if err != nil {
		return fmt.Sprintf("<object %#x>", ref)
	}
	return s
}

// StringValue reads the UTF-8 contents of a foreign string.
func (c *Codec) StringValue(ctx context.Context, ref uint64) (string, error) {
	res, err := c.externalRep.Call(ctx, 0, ref, uint64(cf.EncodingUTF8), 0)
	if err != nil {
		return "", err
	}
	if res.Raw == 0 {
		return "", errors.New(errors.PhaseDecode, errors.KindTypeConversion).
			Symbol(c.externalRep.Name()).
			Detail("no UTF-8 representation").
			Build()
	}
	defer res.Release()

	n, err := c.dataLength.Call(ctx, res.Raw)
	if err != nil {
		return "", err
	}
	if n.Raw == 0 {
		return "", nil
	}
	ptr, err := c.dataBytes.Call(ctx, res.Raw)
	if err != nil {
		return "", err
	}
	b, err := c.reg.Memory().Read(ptr.Raw, n.Raw)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindTypeConversion, err, "read string bytes")
	}
	return string(b), nil
}
