package xcodeproj

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/lookingstars/Xcodeproj/binding"
	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/codec"
	"github.com/lookingstars/Xcodeproj/errors"
	"github.com/lookingstars/Xcodeproj/ownership"
	"github.com/lookingstars/Xcodeproj/stream"
	"github.com/lookingstars/Xcodeproj/value"
)

// Options configures a Plist.
type Options struct {
	// Logger receives debug output from every layer. Nil keeps the current
	// package loggers.
	Logger *zap.Logger
	// Image is the native library to use. Nil opens a private one that Close
	// tears down.
	Image *cf.Image
	// Tracker counts owned handles. Nil uses the process-wide tracker.
	Tracker *ownership.Tracker
	// Stream configures the file pipeline.
	Stream stream.Options
}

// DefaultOptions returns default configuration.
func DefaultOptions() Options {
	return Options{
		Stream: stream.DefaultOptions(),
	}
}

// Plist reads and writes property-list files through one native image.
// Safe for concurrent use.
type Plist struct {
	img       *cf.Image
	reg       *binding.Registry
	codec     *codec.Codec
	pipe      *stream.Pipeline
	log       *zap.Logger
	ownsImage bool
}

// New assembles an image, registry, codec and pipeline.
func New(ctx context.Context, opts Options) (*Plist, error) {
	log := zap.NewNop()
	if opts.Logger != nil {
		log = opts.Logger
		cf.SetLogger(log.Named("cf"))
		binding.SetLogger(log.Named("binding"))
		ownership.SetLogger(log.Named("ownership"))
		stream.SetLogger(log.Named("stream"))
	}

	p := &Plist{img: opts.Image, log: log}
	if p.img == nil {
		img, err := cf.Open(ctx, cf.DefaultOptions())
		if err != nil {
			return nil, err
		}
		p.img, p.ownsImage = img, true
	}

	var err error
	if p.reg, err = binding.New(p.img, binding.Options{Tracker: opts.Tracker}); err != nil {
		p.Close(ctx)
		return nil, err
	}
	if p.codec, err = codec.New(ctx, p.reg); err != nil {
		p.Close(ctx)
		return nil, err
	}
	if p.pipe, err = stream.New(ctx, p.codec, opts.Stream); err != nil {
		p.Close(ctx)
		return nil, err
	}
	return p, nil
}

// Close tears down the image if New opened it.
func (p *Plist) Close(ctx context.Context) error {
	if !p.ownsImage {
		return nil
	}
	return p.img.Close(ctx)
}

// Image returns the native image.
func (p *Plist) Image() *cf.Image {
	return p.img
}

// Codec returns the value converter.
func (p *Plist) Codec() *codec.Codec {
	return p.codec
}

// Write stores v at path. v must be a *value.Map or a Go map; anything else
// fails before the filesystem is touched.
func (p *Plist) Write(ctx context.Context, v any, path string) error {
	m, ok := value.AsMap(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseWrite, fmt.Sprintf("%T", v), "root value must be a mapping")
	}
	if path == "" {
		return errors.TypeMismatch(errors.PhaseWrite, "string", "path must be a non-empty file path")
	}

	obj, err := p.codec.ToForeign(ctx, m)
	if err != nil {
		return err
	}
	defer obj.Release()

	if err := p.pipe.Write(ctx, obj.Ref, path); err != nil {
		return err
	}
	p.log.Debug("wrote property list", zap.String("path", path), zap.Int("keys", m.Len()))
	return nil
}

// Read loads the property list at path. The file must exist and its root
// must be a dictionary.
func (p *Plist) Read(ctx context.Context, path string) (*value.Map, error) {
	if path == "" {
		return nil, errors.TypeMismatch(errors.PhaseRead, "string", "path must be a non-empty file path")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseRead, "file", path)
		}
		return nil, errors.New(errors.PhaseRead, errors.KindIO).
			Path(path).
			Cause(err).
			Detail("stat").
			Build()
	}

	root, err := p.pipe.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer root.Release()

	v, err := p.codec.FromForeign(ctx, root.Ref)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*value.Map)
	if !ok {
		return nil, errors.Schema(path, v.Kind().String(), "root must be a mapping")
	}
	p.log.Debug("read property list", zap.String("path", path), zap.Int("keys", m.Len()))
	return m, nil
}

var defaultPlist = sync.OnceValues(func() (*Plist, error) {
	return New(context.Background(), DefaultOptions())
})

// Default returns the process-wide instance used by ReadPlist and
// WritePlist.
func Default() (*Plist, error) {
	return defaultPlist()
}

// WritePlist stores v at path using the process-wide instance.
func WritePlist(v any, path string) error {
	p, err := Default()
	if err != nil {
		return err
	}
	return p.Write(context.Background(), v, path)
}

// ReadPlist loads the property list at path using the process-wide instance.
func ReadPlist(path string) (*value.Map, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}
	return p.Read(context.Background(), path)
}
