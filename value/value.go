package value

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindSeq
	KindMap
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindBool:
		return "bool"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the host-side representation of a property-list node.
// The set of implementations is closed: Str, Seq, *Map and Bool.
type Value interface {
	Kind() Kind
	String() string
	sealed()
}

// Str is UTF-8 text.
type Str string

// Seq is an ordered list of values.
type Seq []Value

// Bool is a boolean.
type Bool bool

func (Str) Kind() Kind  { return KindString }
func (Seq) Kind() Kind  { return KindSeq }
func (Bool) Kind() Kind { return KindBool }

func (s Str) String() string { return string(s) }

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (s Seq) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		writeQuoted(&b, v)
	}
	b.WriteByte(']')
	return b.String()
}

func (Str) sealed()  {}
func (Seq) sealed()  {}
func (Bool) sealed() {}

func writeQuoted(b *strings.Builder, v Value) {
	if s, ok := v.(Str); ok {
		b.WriteString(strconv.Quote(string(s)))
		return
	}
	if v == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString(v.String())
}

// Equal reports whether a and b hold the same tree. Map comparison ignores
// key order; sequence comparison does not.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Seq:
		bv, ok := b.(Seq)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	}
	return false
}
