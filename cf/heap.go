package cf

import (
	"sync"
)

// object is anything stored in the heap.
type object interface {
	typeID() TypeID
}

// finalizer is optionally implemented by objects that hold references to
// other objects or to outside resources.
type finalizer interface {
	finalize(img *Image)
}

// Heap is the reference-counted object table of the image. A Ref is a
// 1-based slot index; freed slots are reused.
type Heap struct {
	entries  []entry
	freeList []Ref
	mu       sync.RWMutex
}

type entry struct {
	obj      object
	refs     int64
	valid    bool
	immortal bool
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{
		entries:  make([]entry, 0, 64),
		freeList: make([]Ref, 0, 16),
	}
}

// create stores obj with a retain count of one.
func (h *Heap) create(obj object) Ref {
	return h.insert(entry{obj: obj, refs: 1, valid: true})
}

// createImmortal stores obj so that retain and release never free it.
func (h *Heap) createImmortal(obj object) Ref {
	return h.insert(entry{obj: obj, refs: 1, valid: true, immortal: true})
}

func (h *Heap) insert(e entry) Ref {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.freeList) > 0 {
		ref := h.freeList[len(h.freeList)-1]
		h.freeList = h.freeList[:len(h.freeList)-1]
		h.entries[ref-1] = e
		return ref
	}

	h.entries = append(h.entries, e)
	return Ref(len(h.entries))
}

// get returns the object behind ref.
func (h *Heap) get(ref Ref) (object, bool) {
	if ref == 0 {
		return nil, false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	idx := ref - 1
	if idx >= uint64(len(h.entries)) {
		return nil, false
	}
	e := h.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.obj, true
}

// retain increments the retain count.
func (h *Heap) retain(ref Ref) bool {
	if ref == 0 {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := ref - 1
	if idx >= uint64(len(h.entries)) {
		return false
	}
	e := &h.entries[idx]
	if !e.valid {
		return false
	}
	if !e.immortal {
		e.refs++
	}
	return true
}

// release decrements the retain count and returns the object when the
// count reached zero. The caller finalizes it outside the heap lock.
func (h *Heap) release(ref Ref) (object, bool) {
	if ref == 0 {
		return nil, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := ref - 1
	if idx >= uint64(len(h.entries)) {
		return nil, false
	}
	e := &h.entries[idx]
	if !e.valid || e.immortal {
		return nil, false
	}
	e.refs--
	if e.refs > 0 {
		return nil, false
	}

	obj := e.obj
	e.valid = false
	e.obj = nil
	h.freeList = append(h.freeList, ref)
	return obj, true
}

// retainCount returns the current retain count, 0 for invalid refs.
func (h *Heap) retainCount(ref Ref) int64 {
	if ref == 0 {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	idx := ref - 1
	if idx >= uint64(len(h.entries)) || !h.entries[idx].valid {
		return 0
	}
	return h.entries[idx].refs
}

// Len returns the number of live objects, immortal ones included.
func (h *Heap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, e := range h.entries {
		if e.valid {
			count++
		}
	}
	return count
}
