package rvdebug

// Memory represents the linear memory shared with an execution engine.
// Slices returned by Read alias the backing store and are invalid after the
// memory grows.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Arena is a growable linear memory. Grow reallocates the backing store, so
// every view must be re-derived afterwards.
type Arena interface {
	Memory
	MemorySizer
	// Grow adds deltaPages 64 KiB pages and returns the previous page count.
	Grow(deltaPages uint32) (uint32, bool)
}

// PageSize is the size of one linear memory page.
const PageSize = 65536

// PagesFor returns the number of pages needed to extend size bytes to at least need bytes.
func PagesFor(size, need uint32) uint32 {
	if need <= size {
		return 0
	}
	return (need - size + PageSize - 1) / PageSize
}
