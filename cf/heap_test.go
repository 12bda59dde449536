package cf

import (
	"sync"
	"testing"
)

func TestHeap_Basic(t *testing.T) {
	h := NewHeap()

	ref := h.create(&cfString{s: "hello"})
	if ref == 0 {
		t.Fatal("Expected non-zero ref")
	}
	if got := h.retainCount(ref); got != 1 {
		t.Fatalf("retainCount = %d, want 1", got)
	}

	obj, ok := h.get(ref)
	if !ok {
		t.Fatal("get failed")
	}
	if s := obj.(*cfString).s; s != "hello" {
		t.Fatalf("Expected 'hello', got %q", s)
	}

	if !h.retain(ref) {
		t.Fatal("retain failed")
	}
	if _, freed := h.release(ref); freed {
		t.Fatal("Expected object to survive first release")
	}
	if _, freed := h.release(ref); !freed {
		t.Fatal("Expected object to be freed on last release")
	}
	if _, ok := h.get(ref); ok {
		t.Fatal("Expected get to fail after free")
	}
	if _, freed := h.release(ref); freed {
		t.Fatal("Expected release of freed ref to be a no-op")
	}
}

func TestHeap_FreeListReuse(t *testing.T) {
	h := NewHeap()

	a := h.create(&cfString{s: "a"})
	h.create(&cfString{s: "b"})
	h.release(a)

	c := h.create(&cfString{s: "c"})
	if c != a {
		t.Errorf("Expected freed slot %d to be reused, got %d", a, c)
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
}

func TestHeap_Immortal(t *testing.T) {
	h := NewHeap()
	ref := h.createImmortal(&cfBoolean{v: true})

	for range 3 {
		h.retain(ref)
		if _, freed := h.release(ref); freed {
			t.Fatal("immortal object was freed")
		}
	}
	h.release(ref)
	if _, ok := h.get(ref); !ok {
		t.Fatal("immortal object missing")
	}
}

func TestHeap_InvalidRefs(t *testing.T) {
	h := NewHeap()

	if _, ok := h.get(0); ok {
		t.Error("get(0) should fail")
	}
	if h.retain(99) {
		t.Error("retain(99) should fail")
	}
	if h.retainCount(99) != 0 {
		t.Error("retainCount(99) should be 0")
	}
}

func TestHeap_Concurrent(t *testing.T) {
	h := NewHeap()
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				ref := h.create(&cfString{s: "x"})
				h.retain(ref)
				h.release(ref)
				h.release(ref)
			}
		}()
	}
	wg.Wait()

	if h.Len() != 0 {
		t.Errorf("Len = %d after balanced create/release, want 0", h.Len())
	}
}

func TestMemory_AllocFree(t *testing.T) {
	m := NewMemory(0)

	p := m.Alloc(5)
	if p == 0 {
		t.Fatal("Alloc returned NULL")
	}
	if p%memoryAlign != 0 {
		t.Errorf("Alloc returned unaligned pointer %d", p)
	}
	if m.InUse() != 8 {
		t.Errorf("InUse = %d, want 8", m.InUse())
	}

	if err := m.Write(p, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := m.Read(p, 5)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read = %q, want hello", got)
	}

	if !m.Free(p) {
		t.Fatal("Free failed")
	}
	if m.Free(p) {
		t.Error("double Free should report false")
	}
	if q := m.Alloc(8); q != p {
		t.Errorf("Expected block %d to be reused, got %d", p, q)
	}
}

func TestMemory_Words(t *testing.T) {
	m := NewMemory(0)
	p := m.Alloc(8)

	if err := m.WriteUint64(p, 0xdeadbeef); err != nil {
		t.Fatalf("WriteUint64 failed: %v", err)
	}
	v, err := m.ReadUint64(p)
	if err != nil {
		t.Fatalf("ReadUint64 failed: %v", err)
	}
	if v != 0xdeadbeef {
		t.Errorf("ReadUint64 = %#x, want 0xdeadbeef", v)
	}

	if _, err := m.ReadUint64(0); err != ErrBadPointer {
		t.Errorf("ReadUint64(NULL) error = %v, want ErrBadPointer", err)
	}
	if err := m.Write(p, make([]byte, 4096)); err != ErrBadPointer {
		t.Errorf("oversized Write error = %v, want ErrBadPointer", err)
	}
}

func TestMemory_Limit(t *testing.T) {
	m := NewMemory(64)

	if p := m.Alloc(32); p == 0 {
		t.Fatal("Alloc within limit failed")
	}
	if p := m.Alloc(32); p != 0 {
		t.Errorf("Alloc beyond limit = %d, want 0", p)
	}
}
