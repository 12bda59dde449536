package cf

import (
	"encoding/binary"
	"errors"
	"sync"
)

var (
	ErrOutOfMemory = errors.New("cf: out of memory")
	ErrBadPointer  = errors.New("cf: pointer out of bounds")
)

const (
	memoryBase  = 16
	memoryAlign = 8
)

// Memory is the byte-addressed heap of the image. Raw buffers (string bytes,
// data contents, scratch slots, data symbols) live here; objects live in the
// Heap. Address 0 is NULL and the first bytes are never handed out.
type Memory struct {
	data     []byte
	sizes    map[uint64]uint64
	freeList map[uint64][]uint64
	limit    uint64
	inUse    uint64
	mu       sync.RWMutex
}

// NewMemory creates a memory that refuses to grow beyond limit bytes.
// A zero limit means unbounded.
func NewMemory(limit uint64) *Memory {
	return &Memory{
		data:     make([]byte, memoryBase, 4096),
		sizes:    make(map[uint64]uint64),
		freeList: make(map[uint64][]uint64),
		limit:    limit,
	}
}

// Alloc reserves size bytes and returns their address, or 0 when the limit
// would be exceeded. The block is zeroed.
func (m *Memory) Alloc(size uint64) uint64 {
	if size == 0 {
		size = 1
	}
	size = (size + memoryAlign - 1) &^ (memoryAlign - 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if free := m.freeList[size]; len(free) > 0 {
		ptr := free[len(free)-1]
		m.freeList[size] = free[:len(free)-1]
		clear(m.data[ptr : ptr+size])
		m.sizes[ptr] = size
		m.inUse += size
		return ptr
	}

	ptr := uint64(len(m.data))
	if m.limit != 0 && ptr+size > m.limit {
		return 0
	}
	m.data = append(m.data, make([]byte, size)...)
	m.sizes[ptr] = size
	m.inUse += size
	return ptr
}

// AllocBytes copies b into a fresh block.
func (m *Memory) AllocBytes(b []byte) uint64 {
	ptr := m.Alloc(uint64(len(b)))
	if ptr == 0 {
		return 0
	}
	m.mu.Lock()
	copy(m.data[ptr:], b)
	m.mu.Unlock()
	return ptr
}

// Free returns a block obtained from Alloc. Unknown addresses are ignored.
func (m *Memory) Free(ptr uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.sizes[ptr]
	if !ok {
		return false
	}
	delete(m.sizes, ptr)
	m.freeList[size] = append(m.freeList[size], ptr)
	m.inUse -= size
	return true
}

// Read copies length bytes starting at ptr.
func (m *Memory) Read(ptr, length uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.inBounds(ptr, length) {
		return nil, ErrBadPointer
	}
	out := make([]byte, length)
	copy(out, m.data[ptr:ptr+length])
	return out, nil
}

// Write copies data to ptr.
func (m *Memory) Write(ptr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inBounds(ptr, uint64(len(data))) {
		return ErrBadPointer
	}
	copy(m.data[ptr:], data)
	return nil
}

// ReadUint64 reads a pointer-sized little-endian word.
func (m *Memory) ReadUint64(ptr uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.inBounds(ptr, 8) {
		return 0, ErrBadPointer
	}
	return binary.LittleEndian.Uint64(m.data[ptr:]), nil
}

// WriteUint64 stores a pointer-sized little-endian word.
func (m *Memory) WriteUint64(ptr, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inBounds(ptr, 8) {
		return ErrBadPointer
	}
	binary.LittleEndian.PutUint64(m.data[ptr:], v)
	return nil
}

// Size returns the current size of the address space in bytes.
func (m *Memory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.data))
}

// InUse returns the number of bytes held by live blocks.
func (m *Memory) InUse() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inUse
}

func (m *Memory) inBounds(ptr, length uint64) bool {
	if ptr < memoryBase {
		return false
	}
	end := ptr + length
	return end >= ptr && end <= uint64(len(m.data))
}
