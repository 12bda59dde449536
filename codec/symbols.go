package codec

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/lookingstars/Xcodeproj/binding"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func types(t ...api.ValueType) []api.ValueType { return t }

// symbols is the native surface the codec depends on.
var symbols = []binding.Signature{
	{Name: "CFGetTypeID", Params: types(i64), Results: types(i64)},
	{Name: "CFStringGetTypeID", Results: types(i64)},
	{Name: "CFArrayGetTypeID", Results: types(i64)},
	{Name: "CFDictionaryGetTypeID", Results: types(i64)},
	{Name: "CFBooleanGetTypeID", Results: types(i64)},
	{Name: "CFCopyDescription", Params: types(i64), Results: types(i64)},

	{Name: "CFStringCreateWithBytes", Params: types(i64, i64, i64, i32, i32), Results: types(i64)},
	{Name: "CFStringCreateExternalRepresentation", Params: types(i64, i64, i32, i32), Results: types(i64)},
	{Name: "CFDataGetLength", Params: types(i64), Results: types(i64)},
	{Name: "CFDataGetBytePtr", Params: types(i64), Results: types(i64)},

	{Name: "CFArrayCreateMutable", Params: types(i64, i64, i64), Results: types(i64)},
	{Name: "CFArrayAppendValue", Params: types(i64, i64)},
	{Name: "CFArrayGetCount", Params: types(i64), Results: types(i64)},
	{Name: "CFArrayGetValueAtIndex", Params: types(i64, i64), Results: types(i64)},

	{Name: "CFDictionaryCreateMutable", Params: types(i64, i64, i64, i64), Results: types(i64)},
	{Name: "CFDictionarySetValue", Params: types(i64, i64, i64)},
	{Name: "CFDictionaryGetCount", Params: types(i64), Results: types(i64)},
	{Name: "CFDictionaryApplyFunction", Params: types(i64, i64, i64)},
}
