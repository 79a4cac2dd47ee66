package emulator

import (
	"encoding/binary"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/engine"
)

// shadowEntry mirrors one 24-word shadow-stack record: pc, sp, a0..a7,
// fp, s1..s11, ra, register bitmap.
type shadowEntry struct {
	pc     uint32
	sp     uint32
	args   [8]uint32
	sregs  [12]uint32
	ra     uint32
	bitmap uint32
}

const shadowEntryWords = 24

func (e *shadowEntry) words() [shadowEntryWords]uint32 {
	var w [shadowEntryWords]uint32
	w[0] = e.pc
	w[1] = e.sp
	copy(w[2:10], e.args[:])
	copy(w[10:22], e.sregs[:])
	w[22] = e.ra
	w[23] = e.bitmap
	return w
}

const unwritten = 0xFF

// machine is the architectural and sanitizer state of one program run.
type machine struct {
	regs           [rvdebug.NumRegs]uint32
	pc             uint32
	memWrittenLen  uint32
	memWrittenAddr uint32
	regWritten     uint32
	errType        rvdebug.TrapKind
	errParams      [2]uint32

	sections []*section

	regBitmap  uint32
	shadow     []shadowEntry
	writtenBy  [rvdebug.StackLen / 4]byte
	stackDirty bool
	host       engine.Host
}

func newMachine(prog *program, host engine.Host) *machine {
	stack := &section{
		name:  "stack",
		base:  rvdebug.StackBase,
		limit: rvdebug.StackTop,
		data:  make([]byte, rvdebug.StackLen),
		read:  true,
		write: true,
	}
	for i := range stack.data {
		stack.data[i] = 0xAB
	}

	m := &machine{
		pc:       prog.entry,
		sections: []*section{prog.text, prog.data, stack},
		host:     host,
	}
	m.regs[rvdebug.RegSP] = rvdebug.StackTop
	m.callsanInit()
	return m
}

func (m *machine) sectionAt(addr uint32) *section {
	for _, s := range m.sections {
		if s.contains(addr) {
			return s
		}
	}
	return nil
}

// bytes returns the backing bytes for an access, nil when any part of it
// falls outside the emitted contents of a section.
func (m *machine) bytes(addr uint32, size int) (*section, []byte) {
	s := m.sectionAt(addr)
	if s == nil {
		return nil, nil
	}
	off := uint64(addr - s.base)
	if off+uint64(size) > uint64(len(s.data)) {
		return s, nil
	}
	return s, s.data[off : off+uint64(size)]
}

func (m *machine) load(addr uint32, size int) (uint32, bool) {
	s, b := m.bytes(addr, size)
	if s == nil || !s.read || b == nil {
		return 0, false
	}
	switch size {
	case 1:
		return uint32(b[0]), true
	case 2:
		return uint32(binary.LittleEndian.Uint16(b)), true
	default:
		return binary.LittleEndian.Uint32(b), true
	}
}

func (m *machine) store(addr, val uint32, size int) bool {
	m.memWrittenLen = uint32(size)
	m.memWrittenAddr = addr

	s, b := m.bytes(addr, size)
	if s == nil || !s.write || b == nil {
		return false
	}
	switch size {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	default:
		binary.LittleEndian.PutUint32(b, val)
	}
	return true
}

func (m *machine) trap(kind rvdebug.TrapKind, param uint32) {
	m.errType = kind
	m.errParams[0] = param
}
