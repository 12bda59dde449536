package value

import "strconv"

// WalkFunc is called for every node visited by Walk. path holds the map keys
// and "[i]" sequence indexes leading to v; the root has an empty path.
// Returning false skips the children of v.
type WalkFunc func(path []string, v Value) bool

// Walk visits v and its descendants depth-first in iteration order.
func Walk(v Value, fn WalkFunc) {
	walk(nil, v, fn)
}

func walk(path []string, v Value, fn WalkFunc) {
	if !fn(path, v) {
		return
	}
	switch x := v.(type) {
	case Seq:
		for i, e := range x {
			walk(append(path[:len(path):len(path)], IndexSegment(i)), e, fn)
		}
	case *Map:
		for k, e := range x.All() {
			walk(append(path[:len(path):len(path)], k), e, fn)
		}
	}
}

// IndexSegment formats a sequence index as a path segment.
func IndexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// Stats counts the nodes of each kind under v, v included.
type Stats struct {
	Strings  int
	Bools    int
	Seqs     int
	Maps     int
	MaxDepth int
}

// Count walks v and tallies its nodes.
func Count(v Value) Stats {
	var st Stats
	Walk(v, func(path []string, n Value) bool {
		if len(path) > st.MaxDepth {
			st.MaxDepth = len(path)
		}
		switch n.Kind() {
		case KindString:
			st.Strings++
		case KindBool:
			st.Bools++
		case KindSeq:
			st.Seqs++
		case KindMap:
			st.Maps++
		}
		return true
	})
	return st
}
