package codec

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lookingstars/Xcodeproj/binding"
	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
	"github.com/lookingstars/Xcodeproj/value"
)

func newCodec(t *testing.T) (*Codec, *cf.Image) {
	t.Helper()
	ctx := context.Background()
	img, err := cf.Open(ctx, cf.DefaultOptions())
	if err != nil {
		t.Fatalf("cf.Open failed: %v", err)
	}
	t.Cleanup(func() { img.Close(ctx) })

	reg, err := binding.New(img, binding.Options{Tracker: ownership.NewTracker()})
	if err != nil {
		t.Fatalf("binding.New failed: %v", err)
	}
	c, err := New(ctx, reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, img
}

func mapOf(kv ...any) *value.Map {
	m := value.NewMap(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1].(value.Value))
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	c, img := newCodec(t)
	ctx := context.Background()
	baseline := img.LiveObjects()

	tests := []struct {
		name string
		in   value.Value
	}{
		{"string", value.Str("hello")},
		{"empty string", value.Str("")},
		{"unicode", value.Str("héllo, 世界 😀")},
		{"true", value.Bool(true)},
		{"false", value.Bool(false)},
		{"empty seq", value.Seq{}},
		{"seq", value.Seq{value.Str("x"), value.Bool(false), value.Seq{value.Str("nested")}}},
		{"empty map", value.NewMap(0)},
		{"map", mapOf(
			"a", value.Str("b"),
			"list", value.Seq{value.Str("x"), value.Str("y")},
			"flag", value.Bool(true),
			"child", mapOf("k", value.Str("v")),
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := c.ToForeign(ctx, tt.in)
			if err != nil {
				t.Fatalf("ToForeign failed: %v", err)
			}
			got, err := c.FromForeign(ctx, obj.Ref)
			obj.Release()
			if err != nil {
				t.Fatalf("FromForeign failed: %v", err)
			}
			if !value.Equal(tt.in, got) {
				t.Errorf("round trip = %v, want %v", got, tt.in)
			}
			if img.LiveObjects() != baseline {
				t.Errorf("LiveObjects = %d after release, want %d", img.LiveObjects(), baseline)
			}
		})
	}
}

func TestToForeign_GoValues(t *testing.T) {
	c, _ := newCodec(t)
	ctx := context.Background()

	in := map[string]any{
		"n":     42,
		"pi":    3.5,
		"nil":   nil,
		"list":  []any{"a", 1, true},
		"inner": map[int]string{2: "two", 1: "one"},
	}
	obj, err := c.ToForeign(ctx, in)
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	defer obj.Release()

	got, err := c.FromForeign(ctx, obj.Ref)
	if err != nil {
		t.Fatalf("FromForeign failed: %v", err)
	}
	want := map[string]any{
		"n":     "42",
		"pi":    "3.5",
		"nil":   "",
		"list":  []any{"a", "1", true},
		"inner": map[string]any{"1": "one", "2": "two"},
	}
	if diff := cmp.Diff(want, value.Native(got)); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestToForeign_Boolean(t *testing.T) {
	c, _ := newCodec(t)
	ctx := context.Background()

	obj, err := c.ToForeign(ctx, true)
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	if obj.Owned != nil {
		t.Error("boolean singleton should not be owned")
	}
	if obj.Ref != c.trueRef {
		t.Errorf("Ref = %d, want kCFBooleanTrue %d", obj.Ref, c.trueRef)
	}
}

func TestToForeign_Errors(t *testing.T) {
	c, img := newCodec(t)
	ctx := context.Background()
	baseline := img.LiveObjects()

	tests := []struct {
		name string
		in   value.Value
		path string
	}{
		{"invalid utf8", value.Str("\xff\xfe"), "root"},
		{"null element", value.Seq{value.Str("ok"), nil}, "[1]"},
		{"nested null", mapOf("list", value.Seq{nil}), "list"},
		{"invalid key", mapOf("\xff", value.Str("v")), "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ToForeign(ctx, tt.in)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, errors.ErrTypeConversion) {
				t.Errorf("error = %v, want type conversion error", err)
			}
			if !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q does not mention %q", err, tt.path)
			}
			if img.LiveObjects() != baseline {
				t.Errorf("LiveObjects = %d after failed conversion, want %d", img.LiveObjects(), baseline)
			}
		})
	}
}

func TestToForeign_KeyCoercionCollision(t *testing.T) {
	c, _ := newCodec(t)
	ctx := context.Background()

	// 1 and "1" both coerce to the key "1".
	in := map[any]any{1: "int", "1": "string"}
	obj, err := c.ToForeign(ctx, in)
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	defer obj.Release()

	got, err := c.FromForeign(ctx, obj.Ref)
	if err != nil {
		t.Fatalf("FromForeign failed: %v", err)
	}
	m := got.(*value.Map)
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if _, ok := m.Get("1"); !ok {
		t.Error("key 1 missing")
	}
}

func TestFromForeign_Unsupported(t *testing.T) {
	c, _ := newCodec(t)
	ctx := context.Background()
	reg := c.Registry()

	str, err := c.ToForeign(ctx, "payload")
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	defer str.Release()

	// CFData is a valid native object the codec does not convert.
	res, err := c.externalRep.Call(ctx, 0, str.Ref, uint64(cf.EncodingUTF8), 0)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	defer res.Release()

	arr, err := c.ToForeign(ctx, value.Seq{})
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	defer arr.Release()
	if _, err := reg.MustBind("CFArrayAppendValue", types(i64, i64), nil).Call(ctx, arr.Ref, res.Raw); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	_, err = c.FromForeign(ctx, arr.Ref)
	if !errors.Is(err, errors.ErrTypeConversion) {
		t.Fatalf("error = %v, want type conversion error", err)
	}
	if !strings.Contains(err.Error(), "CFData") {
		t.Errorf("error %q does not carry the native description", err)
	}
	if !strings.Contains(err.Error(), "[0]") {
		t.Errorf("error %q does not carry the element path", err)
	}
}

func TestFromForeign_Null(t *testing.T) {
	c, _ := newCodec(t)

	_, err := c.FromForeign(context.Background(), 0)
	if !errors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("error = %v, want type conversion error", err)
	}
}

func TestTypeName(t *testing.T) {
	c, _ := newCodec(t)
	ctx := context.Background()

	tests := []struct {
		in   any
		want string
	}{
		{"s", "string"},
		{true, "boolean"},
		{[]any{}, "array"},
		{map[string]any{}, "dictionary"},
	}
	for _, tt := range tests {
		obj, err := c.ToForeign(ctx, tt.in)
		if err != nil {
			t.Fatalf("ToForeign(%v) failed: %v", tt.in, err)
		}
		got, err := c.TypeName(ctx, obj.Ref)
		obj.Release()
		if err != nil {
			t.Fatalf("TypeName failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("TypeName(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToForeign_FreeFailure(t *testing.T) {
	ctx := context.Background()
	opts := cf.DefaultOptions()
	opts.Omit = []string{"free"}
	img, err := cf.Open(ctx, opts)
	if err != nil {
		t.Fatalf("cf.Open failed: %v", err)
	}
	defer img.Close(ctx)

	reg, err := binding.New(img, binding.Options{Tracker: ownership.NewTracker()})
	if err != nil {
		t.Fatalf("binding.New failed: %v", err)
	}
	c, err := New(ctx, reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	before := img.LiveObjects()
	obj, err := c.ToForeign(ctx, "hello")
	if !errors.Is(err, errors.ErrLink) {
		t.Fatalf("error = %v, want link error", err)
	}
	if obj.Ref != 0 {
		t.Errorf("Ref = %d, want 0 on error", obj.Ref)
	}
	if n := img.LiveObjects(); n != before {
		t.Errorf("LiveObjects = %d, want %d", n, before)
	}
}
