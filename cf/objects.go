package cf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type cfString struct {
	s string
}

type cfData struct {
	ptr    uint64
	length uint64
}

type cfNumber struct {
	i    int64
	u    uint64
	f    float64
	kind numberKind
}

type numberKind uint8

const (
	numberSigned numberKind = iota
	numberUnsigned
	numberReal
)

type cfArray struct {
	items  []Ref
	retain bool
}

type cfDictionary struct {
	keys    []Ref
	values  []Ref
	index   map[string]int
	retainK bool
	retainV bool
}

type cfBoolean struct {
	v bool
}

type cfDate struct {
	t time.Time
}

type cfURL struct {
	path  string
	isDir bool
}

type cfError struct {
	domain      string
	code        int64
	description string
}

type streamState uint8

const (
	streamNotOpen streamState = iota
	streamOpen
	streamClosed
	streamError
)

func (st streamState) status() int64 {
	switch st {
	case streamOpen:
		return StreamStatusOpen
	case streamClosed:
		return StreamStatusClosed
	case streamError:
		return StreamStatusError
	}
	return StreamStatusNotOpen
}

// cfWriteStream writes to a temporary file next to path. The file replaces
// path only when a stream that wrote successfully is closed.
type cfWriteStream struct {
	path  string
	f     *os.File
	state streamState
	err   error
	wrote bool
}

type cfReadStream struct {
	path  string
	f     *os.File
	state streamState
	err   error
}

func (*cfString) typeID() TypeID      { return StringTypeID }
func (*cfData) typeID() TypeID        { return DataTypeID }
func (*cfNumber) typeID() TypeID      { return NumberTypeID }
func (*cfArray) typeID() TypeID       { return ArrayTypeID }
func (*cfDictionary) typeID() TypeID  { return DictionaryTypeID }
func (*cfBoolean) typeID() TypeID     { return BooleanTypeID }
func (*cfDate) typeID() TypeID        { return DateTypeID }
func (*cfURL) typeID() TypeID         { return URLTypeID }
func (*cfError) typeID() TypeID       { return ErrorTypeID }
func (*cfWriteStream) typeID() TypeID { return WriteStreamTypeID }
func (*cfReadStream) typeID() TypeID  { return ReadStreamTypeID }

func (d *cfData) finalize(img *Image) {
	if d.ptr != 0 {
		img.mem.Free(d.ptr)
		d.ptr = 0
	}
}

func (a *cfArray) finalize(img *Image) {
	if a.retain {
		for _, ref := range a.items {
			img.release(ref)
		}
	}
	a.items = nil
}

func (d *cfDictionary) finalize(img *Image) {
	if d.retainK {
		for _, ref := range d.keys {
			img.release(ref)
		}
	}
	if d.retainV {
		for _, ref := range d.values {
			img.release(ref)
		}
	}
	d.keys, d.values, d.index = nil, nil, nil
}

func (s *cfWriteStream) finalize(img *Image) {
	if s.f != nil {
		s.discard(img)
	}
}

func (s *cfReadStream) finalize(img *Image) {
	if s.state == streamOpen {
		s.close(img)
	}
}

// close commits the temporary file when the stream is open and holds a
// complete write, and discards it otherwise.
func (s *cfWriteStream) close(img *Image) {
	if s.f == nil {
		s.state = streamClosed
		return
	}
	if s.state != streamOpen || !s.wrote {
		s.discard(img)
		return
	}
	tmp := s.f.Name()
	err := s.f.Close()
	s.f = nil
	img.openStreams.Add(-1)
	if err == nil {
		err = os.Rename(tmp, s.path)
	}
	if err != nil {
		Logger().Warn("commit write stream", zap.String("path", s.path), zap.Error(err))
		os.Remove(tmp)
		s.state, s.err = streamError, err
		return
	}
	s.state = streamClosed
}

// discard drops the temporary file and leaves path untouched.
func (s *cfWriteStream) discard(img *Image) {
	tmp := s.f.Name()
	if err := s.f.Close(); err != nil {
		Logger().Warn("close write stream", zap.String("path", s.path), zap.Error(err))
	}
	if err := os.Remove(tmp); err != nil {
		Logger().Warn("remove temporary file", zap.String("path", tmp), zap.Error(err))
	}
	s.f = nil
	img.openStreams.Add(-1)
	if s.state == streamOpen {
		s.state = streamClosed
	}
}

func (s *cfReadStream) close(img *Image) {
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			Logger().Warn("close read stream", zap.String("path", s.path), zap.Error(err))
		}
		s.f = nil
		img.openStreams.Add(-1)
	}
	s.state = streamClosed
}

// lookup finds the slot of key. String keys compare by content, other keys
// by identity.
func (d *cfDictionary) lookup(img *Image, key Ref) (int, bool) {
	if s, ok := img.stringValue(key); ok {
		i, ok := d.index[s]
		return i, ok
	}
	for i, k := range d.keys {
		if k == key {
			return i, true
		}
	}
	return 0, false
}

func (n *cfNumber) String() string {
	switch n.kind {
	case numberUnsigned:
		return strconv.FormatUint(n.u, 10)
	case numberReal:
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	default:
		return strconv.FormatInt(n.i, 10)
	}
}

// describe renders an object the way CFCopyDescription does.
func (img *Image) describe(ref Ref, depth int) string {
	obj, ok := img.heap.get(ref)
	if !ok {
		return "<NULL>"
	}
	head := fmt.Sprintf("<%s %#x [0x0]>", obj.typeID(), ref)

	switch o := obj.(type) {
	case *cfString:
		return o.s
	case *cfData:
		return fmt.Sprintf("%s{length = %d}", head, o.length)
	case *cfNumber:
		return fmt.Sprintf("%s{value = %s}", head, o.String())
	case *cfBoolean:
		return fmt.Sprintf("%s{value = %t}", head, o.v)
	case *cfDate:
		return fmt.Sprintf("%s{value = %s}", head, o.t.UTC().Format(time.RFC3339))
	case *cfURL:
		return fmt.Sprintf("%s{path = %s}", head, o.path)
	case *cfError:
		return fmt.Sprintf("Error Domain=%s Code=%d %q", o.domain, o.code, o.description)
	case *cfWriteStream:
		return fmt.Sprintf("%s{path = %s}", head, o.path)
	case *cfReadStream:
		return fmt.Sprintf("%s{path = %s}", head, o.path)
	case *cfArray:
		if depth > 2 {
			return fmt.Sprintf("%s{count = %d}", head, len(o.items))
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s{count = %d, values = (", head, len(o.items))
		for i, item := range o.items {
			fmt.Fprintf(&b, "\n\t%d : %s", i, img.describe(item, depth+1))
		}
		b.WriteString("\n)}")
		return b.String()
	case *cfDictionary:
		if depth > 2 {
			return fmt.Sprintf("%s{count = %d}", head, len(o.keys))
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s{count = %d, entries =>", head, len(o.keys))
		for i, k := range o.keys {
			fmt.Fprintf(&b, "\n\t%s = %s", img.describe(k, depth+1), img.describe(o.values[i], depth+1))
		}
		b.WriteString("\n}")
		return b.String()
	}
	return head
}
