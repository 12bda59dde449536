package xcodeproj

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lookingstars/Xcodeproj/binding"
	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
	"github.com/lookingstars/Xcodeproj/stream"
	"github.com/lookingstars/Xcodeproj/value"
)

func newPlist(t *testing.T) *Plist {
	t.Helper()
	ctx := context.Background()
	opts := DefaultOptions()
	opts.Tracker = ownership.NewTracker()
	p, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { p.Close(ctx) })
	return p
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.plist")
	in := map[string]any{"a": "b", "list": []any{"x", "y"}, "flag": true}

	if err := WritePlist(in, path); err != nil {
		t.Fatalf("WritePlist failed: %v", err)
	}
	got, err := ReadPlist(path)
	if err != nil {
		t.Fatalf("ReadPlist failed: %v", err)
	}
	if diff := cmp.Diff(in, value.Native(got)); diff != "" {
		t.Errorf("ReadPlist mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_NotAMapping(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"string", "not a hash"},
		{"seq", value.Seq{value.Str("a")}},
		{"slice", []any{"a"}},
		{"nil", nil},
		{"nil map", (*value.Map)(nil)},
		{"int", 42},
	}

	p := newPlist(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.plist")
			err := p.Write(context.Background(), tt.v, path)
			if !errors.Is(err, errors.ErrTypeMismatch) {
				t.Fatalf("error = %v, want type mismatch", err)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Error("Write touched the filesystem")
			}
		})
	}
}

func TestWrite_EmptyPath(t *testing.T) {
	p := newPlist(t)
	err := p.Write(context.Background(), map[string]any{"a": "b"}, "")
	if !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("error = %v, want type mismatch", err)
	}
}

func TestRead_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.plist")
	_, err := ReadPlist(path)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "missing.plist") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestRead_ArrayRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "array.plist")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<array></array>
</plist>
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadPlist(path)
	if !errors.Is(err, errors.ErrSchema) {
		t.Fatalf("error = %v, want schema error", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %T is not *errors.Error", err)
	}
	if e.CFType != "array" {
		t.Errorf("CFType = %q, want array", e.CFType)
	}
}

func TestWrite_NumberFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.plist")
	if err := WritePlist(map[string]any{"n": 42}, path); err != nil {
		t.Fatalf("WritePlist failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<string>42</string>") {
		t.Errorf("number was not stored as a string:\n%s", data)
	}

	got, err := ReadPlist(path)
	if err != nil {
		t.Fatalf("ReadPlist failed: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"n": "42"}, value.Native(got)); diff != "" {
		t.Errorf("ReadPlist mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteRead_KeyOrder(t *testing.T) {
	p := newPlist(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.plist")

	in := value.NewMap(3)
	in.Set("zeta", value.Str("1"))
	in.Set("alpha", value.Bool(false))
	in.Set("mid", value.NewMap(0))

	if err := p.Write(ctx, in, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := p.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !value.Equal(in, got) {
		t.Errorf("Read = %v, want %v", got, in)
	}
}

func TestRead_NumericNode(t *testing.T) {
	p := newPlist(t)
	path := filepath.Join(t.TempDir(), "num.plist")
	doc := `<plist version="1.0"><dict><key>list</key><array><string>a</string><real>1.5</real></array></dict></plist>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := p.Read(context.Background(), path)
	if !errors.Is(err, errors.ErrTypeConversion) {
		t.Fatalf("error = %v, want type conversion error", err)
	}
	var e *errors.Error
	if errors.As(err, &e) {
		if diff := cmp.Diff([]string{"root", "list", "[1]"}, e.Path); diff != "" {
			t.Errorf("Path mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestPlist_NoLeaks(t *testing.T) {
	tracker := ownership.NewTracker()
	ctx := context.Background()
	p, err := New(ctx, Options{Tracker: tracker})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)

	dir := t.TempDir()
	baseline := p.Image().LiveObjects()
	for i := range 10 {
		path := filepath.Join(dir, "t.plist")
		in := map[string]any{"i": i, "nested": map[string]any{"list": []any{"a", true}}}
		if err := p.Write(ctx, in, path); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if _, err := p.Read(ctx, path); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	if n := p.Image().LiveObjects(); n != baseline {
		t.Errorf("LiveObjects = %d, want %d", n, baseline)
	}
	if n := p.Image().OpenStreams(); n != 0 {
		t.Errorf("OpenStreams = %d, want 0", n)
	}
	if live := tracker.Stats().Live(); live != 0 {
		t.Errorf("live handles = %d, want 0", live)
	}
}

func TestPlist_Concurrent(t *testing.T) {
	p := newPlist(t)
	ctx := context.Background()
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join(dir, value.Text(i)+".plist")
			in := map[string]any{"worker": i, "items": []any{"a", "b"}}
			if err := p.Write(ctx, in, path); err != nil {
				errs <- err
				return
			}
			got, err := p.Read(ctx, path)
			if err != nil {
				errs <- err
				return
			}
			if v, _ := got.Get("worker"); v != value.Str(value.Text(i)) {
				errs <- errors.InvalidInput(errors.PhaseRead, "worker = "+value.Text(v))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNew_SharedImage(t *testing.T) {
	ctx := context.Background()
	img, err := cf.Open(ctx, cf.DefaultOptions())
	if err != nil {
		t.Fatalf("cf.Open failed: %v", err)
	}
	defer img.Close(ctx)

	p, err := New(ctx, Options{Image: img})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Image() != img {
		t.Error("Image() is not the supplied image")
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "t.plist")
	p2, err := New(ctx, Options{Image: img})
	if err != nil {
		t.Fatalf("image unusable after Close of a borrowing instance: %v", err)
	}
	if err := p2.Write(ctx, map[string]any{"a": "b"}, path); err != nil {
		t.Errorf("Write failed: %v", err)
	}
}

func TestNew_MissingSymbol(t *testing.T) {
	ctx := context.Background()
	opts := cf.DefaultOptions()
	opts.Omit = []string{"CFPropertyListWrite"}
	img, err := cf.Open(ctx, opts)
	if err != nil {
		t.Fatalf("cf.Open failed: %v", err)
	}
	defer img.Close(ctx)

	_, err = New(ctx, Options{Image: img})
	if !errors.Is(err, errors.ErrLink) {
		t.Fatalf("error = %v, want link error", err)
	}
	if !strings.Contains(err.Error(), "CFPropertyListWrite") {
		t.Errorf("error %q does not name the symbol", err)
	}
}

func TestNew_Logger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := context.Background()
	p, err := New(ctx, Options{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)
	t.Cleanup(func() {
		cf.SetLogger(zap.NewNop())
		binding.SetLogger(zap.NewNop())
		ownership.SetLogger(zap.NewNop())
		stream.SetLogger(zap.NewNop())
	})

	if err := p.Write(ctx, map[string]any{"a": "b"}, filepath.Join(t.TempDir(), "t.plist")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if logs.FilterMessage("wrote property list").Len() != 1 {
		t.Error("missing write log entry")
	}
	if logs.FilterMessage("stream opened").Len() == 0 {
		t.Error("stream logger was not configured")
	}
}
