package stream

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/lookingstars/Xcodeproj/binding"
	"github.com/lookingstars/Xcodeproj/cf"
	"github.com/lookingstars/Xcodeproj/codec"
	"github.com/lookingstars/Xcodeproj/errors"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func types(t ...api.ValueType) []api.ValueType { return t }

var symbols = []binding.Signature{
	{Name: "CFURLCreateWithFileSystemPath", Params: types(i64, i64, i64, i32), Results: types(i64)},
	{Name: "CFWriteStreamCreateWithFile", Params: types(i64, i64), Results: types(i64)},
	{Name: "CFReadStreamCreateWithFile", Params: types(i64, i64), Results: types(i64)},
	{Name: "CFWriteStreamOpen", Params: types(i64), Results: types(i32)},
	{Name: "CFReadStreamOpen", Params: types(i64), Results: types(i32)},
	{Name: "CFWriteStreamClose", Params: types(i64)},
	{Name: "CFWriteStreamGetStatus", Params: types(i64), Results: types(i64)},
	{Name: "CFReadStreamClose", Params: types(i64)},
	{Name: "CFPropertyListWrite", Params: types(i64, i64, i64, i64, i64), Results: types(i64)},
	{Name: "CFPropertyListCreateWithStream", Params: types(i64, i64, i64, i64, i64, i64), Results: types(i64)},
	{Name: "CFErrorCopyDescription", Params: types(i64), Results: types(i64)},
	{Name: "CFGetTypeID", Params: types(i64), Results: types(i64)},
	{Name: "CFDictionaryGetTypeID", Results: types(i64)},
}

// Options configures a pipeline.
type Options struct {
	// Format is the property list format written, cf.FormatXML by default.
	Format int64
}

// DefaultOptions returns default pipeline configuration.
func DefaultOptions() Options {
	return Options{Format: cf.FormatXML}
}

// Pipeline moves property lists between foreign object graphs and files.
// Every stream it opens is closed before the call returns.
type Pipeline struct {
	codec *codec.Codec
	reg   *binding.Registry
	opts  Options

	createURL   *binding.Binding
	createWrite *binding.Binding
	createRead  *binding.Binding
	openWrite   *binding.Binding
	openRead    *binding.Binding
	closeWrite  *binding.Binding
	closeRead   *binding.Binding
	writeStatus *binding.Binding
	write       *binding.Binding
	parse       *binding.Binding
	errorDesc   *binding.Binding
	getTypeID   *binding.Binding

	dictType uint64
}

// New binds the stream surface of the codec's image.
func New(ctx context.Context, c *codec.Codec, opts Options) (*Pipeline, error) {
	if opts.Format == 0 {
		opts.Format = DefaultOptions().Format
	}
	reg := c.Registry()
	fns, err := reg.Preload(symbols)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		codec:       c,
		reg:         reg,
		opts:        opts,
		createURL:   fns["CFURLCreateWithFileSystemPath"],
		createWrite: fns["CFWriteStreamCreateWithFile"],
		createRead:  fns["CFReadStreamCreateWithFile"],
		openWrite:   fns["CFWriteStreamOpen"],
		openRead:    fns["CFReadStreamOpen"],
		closeWrite:  fns["CFWriteStreamClose"],
		closeRead:   fns["CFReadStreamClose"],
		writeStatus: fns["CFWriteStreamGetStatus"],
		write:       fns["CFPropertyListWrite"],
		parse:       fns["CFPropertyListCreateWithStream"],
		errorDesc:   fns["CFErrorCopyDescription"],
		getTypeID:   fns["CFGetTypeID"],
	}
	res, err := fns["CFDictionaryGetTypeID"].Call(ctx)
	if err != nil {
		return nil, err
	}
	p.dictType = res.Raw
	return p, nil
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options {
	return p.opts
}

// stream is an opened native stream. status is set for write streams, whose
// file is only committed by a successful close.
type stream struct {
	obj    codec.Object
	close  *binding.Binding
	status *binding.Binding
	path   string
}

// open creates a stream for path and opens it. On failure nothing is left
// open and nothing needs closing.
func (p *Pipeline) open(ctx context.Context, phase errors.Phase, path string, create, open, closeFn *binding.Binding) (*stream, error) {
	pathStr, err := p.codec.ToForeign(ctx, path)
	if err != nil {
		return nil, err
	}
	defer pathStr.Release()

	url, err := p.createURL.Call(ctx, 0, pathStr.Ref, uint64(cf.PathStylePOSIX), 0)
	if err != nil {
		return nil, err
	}
	if url.Raw == 0 {
		return nil, errors.IO(phase, path, "unable to create URL")
	}
	defer url.Release()

	res, err := create.Call(ctx, 0, url.Raw)
	if err != nil {
		return nil, err
	}
	if res.Raw == 0 {
		return nil, errors.IO(phase, path, "unable to create stream")
	}
	s := &stream{obj: codec.Object{Ref: res.Raw, Owned: res.Owned}, close: closeFn, path: path}

	ok, err := open.Call(ctx, s.obj.Ref)
	if err != nil {
		s.obj.Release()
		return nil, err
	}
	if !ok.Bool() {
		s.obj.Release()
		return nil, errors.IO(phase, path, "unable to open stream")
	}
	Logger().Debug("stream opened", zap.String("symbol", open.Name()), zap.String("path", path))
	return s, nil
}

// finish closes and releases the stream. A close failure is reported only
// when nothing failed before it.
func (s *stream) finish(ctx context.Context, err *error) {
	defer s.obj.Release()
	_, cerr := s.close.Call(ctx, s.obj.Ref)
	if cerr == nil && *err == nil && s.status != nil {
		st, serr := s.status.Call(ctx, s.obj.Ref)
		switch {
		case serr != nil:
			cerr = serr
		case int64(st.Raw) != cf.StreamStatusClosed:
			cerr = errors.IO(errors.PhaseWrite, s.path, "unable to commit file")
		}
	}
	if cerr != nil {
		Logger().Warn("stream close failed", zap.String("path", s.path), zap.Error(cerr))
		if *err == nil {
			*err = cerr
		}
		return
	}
	Logger().Debug("stream closed", zap.String("symbol", s.close.Name()), zap.String("path", s.path))
}

// Write serializes the graph rooted at root into the file at path.
func (p *Pipeline) Write(ctx context.Context, root uint64, path string) (err error) {
	s, err := p.open(ctx, errors.PhaseWrite, path, p.createWrite, p.openWrite, p.closeWrite)
	if err != nil {
		return err
	}
	s.status = p.writeStatus
	defer s.finish(ctx, &err)

	slot, err := p.reg.Malloc(ctx, 8)
	if err != nil {
		return err
	}
	defer p.free(ctx, slot, &err)

	n, err := p.write.Call(ctx, root, s.obj.Ref, uint64(p.opts.Format), 0, slot)
	if err != nil {
		return err
	}
	if n.Raw == 0 {
		return errors.Serialization(path, p.nativeError(ctx, slot))
	}
	Logger().Debug("property list written", zap.String("path", path), zap.Uint64("bytes", n.Raw))
	return nil
}

// Read parses the file at path. The root must be a dictionary; the caller
// releases it.
func (p *Pipeline) Read(ctx context.Context, path string) (root codec.Object, err error) {
	s, err := p.open(ctx, errors.PhaseRead, path, p.createRead, p.openRead, p.closeRead)
	if err != nil {
		return codec.Object{}, err
	}
	defer func() {
		s.finish(ctx, &err)
		if err != nil {
			root.Release()
			root = codec.Object{}
		}
	}()

	slot, err := p.reg.Malloc(ctx, 8)
	if err != nil {
		return codec.Object{}, err
	}
	defer p.free(ctx, slot, &err)

	res, err := p.parse.Call(ctx, 0, s.obj.Ref, 0, uint64(cf.OptionImmutable), 0, slot)
	if err != nil {
		return codec.Object{}, err
	}
	if res.Raw == 0 {
		return codec.Object{}, errors.Parse(path, p.nativeError(ctx, slot))
	}
	root = codec.Object{Ref: res.Raw, Owned: res.Owned}

	t, err := p.getTypeID.Call(ctx, root.Ref)
	if err != nil {
		root.Release()
		return codec.Object{}, err
	}
	if t.Raw != p.dictType {
		kind, _ := p.codec.TypeName(ctx, root.Ref)
		root.Release()
		return codec.Object{}, errors.Schema(path, kind, "root must be a mapping")
	}
	return root, nil
}

// free returns the error slot. A failure is reported only when nothing failed
// before it.
func (p *Pipeline) free(ctx context.Context, slot uint64, err *error) {
	ferr := p.reg.Free(ctx, slot)
	if ferr == nil {
		return
	}
	Logger().Warn("free error slot failed", zap.Uint64("ptr", slot), zap.Error(ferr))
	if *err == nil {
		*err = ferr
	}
}

// nativeError takes the error object out of slot and returns its description.
func (p *Pipeline) nativeError(ctx context.Context, slot uint64) string {
	ref, err := p.reg.Memory().ReadUint64(slot)
	if err != nil || ref == 0 {
		return "unknown error"
	}
	errObj := p.reg.Own(ref)
	defer errObj.Release()

	desc, err := p.errorDesc.Call(ctx, ref)
	if err != nil || desc.Raw == 0 {
		return "unknown error"
	}
	// Copy rule: the description is ours to release.
	descObj := p.reg.Own(desc.Raw)
	defer descObj.Release()

	text, err := p.codec.StringValue(ctx, desc.Raw)
	if err != nil {
		return "unknown error"
	}
	Logger().Debug("native error", zap.String("description", text))
	return text
}
