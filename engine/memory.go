package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/rvdebug"
)

// WrapMemory wraps a wazero api.Memory to implement rvdebug.Arena.
func WrapMemory(mem api.Memory) rvdebug.Arena {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the rvdebug.Arena interface.
type Wrapper struct {
	Mem api.Memory
}

// Size returns the memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Grow adds deltaPages pages and returns the previous page count.
func (m *Wrapper) Grow(deltaPages uint32) (uint32, bool) {
	return m.Mem.Grow(deltaPages)
}

// Read reads bytes from memory.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if !m.Mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// SliceArena is a heap-backed rvdebug.Arena with the same paging and bounds
// behavior as a wasm linear memory.
type SliceArena struct {
	buf      []byte
	maxPages uint32
}

// NewSliceArena allocates an arena of pages pages. maxPages of 0 means the
// 32-bit address space limit.
func NewSliceArena(pages, maxPages uint32) *SliceArena {
	if maxPages == 0 {
		maxPages = 65536
	}
	return &SliceArena{
		buf:      make([]byte, uint64(pages)*rvdebug.PageSize),
		maxPages: maxPages,
	}
}

// Size returns the arena size in bytes.
func (a *SliceArena) Size() uint32 {
	return uint32(len(a.buf))
}

// Grow adds deltaPages pages and returns the previous page count.
func (a *SliceArena) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(a.buf) / rvdebug.PageSize)
	if uint64(prev)+uint64(deltaPages) > uint64(a.maxPages) {
		return prev, false
	}
	if deltaPages == 0 {
		return prev, true
	}
	grown := make([]byte, (uint64(prev)+uint64(deltaPages))*rvdebug.PageSize)
	copy(grown, a.buf)
	a.buf = grown
	return prev, true
}

func (a *SliceArena) check(offset uint32, length uint64) bool {
	return uint64(offset)+length <= uint64(len(a.buf))
}

// Read returns a view of length bytes at offset.
func (a *SliceArena) Read(offset uint32, length uint32) ([]byte, error) {
	if !a.check(offset, uint64(length)) {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return a.buf[offset : offset+length : offset+length], nil
}

// Write copies data to offset.
func (a *SliceArena) Write(offset uint32, data []byte) error {
	if !a.check(offset, uint64(len(data))) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(a.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (a *SliceArena) ReadU8(offset uint32) (uint8, error) {
	if !a.check(offset, 1) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return a.buf[offset], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (a *SliceArena) ReadU16(offset uint32) (uint16, error) {
	if !a.check(offset, 2) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return binary.LittleEndian.Uint16(a.buf[offset:]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (a *SliceArena) ReadU32(offset uint32) (uint32, error) {
	if !a.check(offset, 4) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return binary.LittleEndian.Uint32(a.buf[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (a *SliceArena) WriteU8(offset uint32, value uint8) error {
	if !a.check(offset, 1) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	a.buf[offset] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (a *SliceArena) WriteU16(offset uint32, value uint16) error {
	if !a.check(offset, 2) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	binary.LittleEndian.PutUint16(a.buf[offset:], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (a *SliceArena) WriteU32(offset uint32, value uint32) error {
	if !a.check(offset, 4) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	binary.LittleEndian.PutUint32(a.buf[offset:], value)
	return nil
}
