package emulator

import "github.com/wippyai/rvdebug"

func regMask(regs ...int) uint32 {
	var m uint32
	for _, r := range regs {
		m |= 1 << r
	}
	return m
}

const (
	regT0 = 5
	regT1 = 6
	regT2 = 7
	regA1 = 11
	regA2 = 12
	regA3 = 13
	regA4 = 14
	regA5 = 15
	regA6 = 16
	regT3 = 28
	regT4 = 29
	regT5 = 30
	regT6 = 31
)

var (
	savedRegs = regMask(rvdebug.RegS1, 18, 19, 20, 21, 22, 23, 24, 25, 26, rvdebug.RegS11, rvdebug.RegFP)

	// initialized at program start
	initialBitmap = regMask(rvdebug.RegZero, rvdebug.RegSP, rvdebug.RegTP, rvdebug.RegGP, rvdebug.RegRA) | savedRegs

	// readable by a callee
	callAccessible = regMask(rvdebug.RegZero, rvdebug.RegSP, rvdebug.RegRA, rvdebug.RegTP, rvdebug.RegGP,
		rvdebug.RegA0, regA1, regA2, regA3, regA4, regA5, regA6, rvdebug.RegA7) | savedRegs

	// unreadable by the caller after a return
	callClobbered = regMask(regT0, regT1, regT2, regT3, regT4, regT5, regT6,
		regA2, regA3, regA4, regA5, regA6, rvdebug.RegA7)
)

func (m *machine) callsanInit() {
	for i := range m.writtenBy {
		m.writtenBy[i] = unwritten
	}
	m.stackDirty = true
	m.regBitmap = initialBitmap
	m.shadow = m.shadow[:0]
}

// canRead traps when reg has not been written in the current frame.
func (m *machine) canRead(reg uint32) bool {
	if reg == 0 {
		return true
	}
	if m.regBitmap>>reg&1 == 0 {
		m.trap(rvdebug.TrapUninitRegister, reg)
		return false
	}
	return true
}

func (m *machine) markWritten(reg uint32) {
	m.regBitmap |= 1 << reg
}

func (m *machine) sregs() [12]uint32 {
	var s [12]uint32
	s[0] = m.regs[rvdebug.RegFP]
	s[1] = m.regs[rvdebug.RegS1]
	copy(s[2:], m.regs[rvdebug.RegS2:rvdebug.RegS11+1])
	return s
}

// call pushes a shadow record for a call that already moved pc to the callee.
func (m *machine) call() {
	e := shadowEntry{
		pc:     m.pc,
		sp:     m.regs[rvdebug.RegSP],
		sregs:  m.sregs(),
		ra:     m.regs[rvdebug.RegRA],
		bitmap: m.regBitmap,
	}
	copy(e.args[:], m.regs[rvdebug.RegA0:rvdebug.RegA7+1])
	m.shadow = append(m.shadow, e)
	m.regBitmap &= callAccessible
}

// ret pops the innermost record and checks sp, ra and the callee-saved registers.
func (m *machine) ret() bool {
	if len(m.shadow) == 0 {
		m.errType = rvdebug.TrapReturnWithoutCall
		return false
	}
	e := m.shadow[len(m.shadow)-1]
	m.shadow = m.shadow[:len(m.shadow)-1]

	if m.regs[rvdebug.RegSP] != e.sp {
		m.errType = rvdebug.TrapSPMismatch
		m.errParams[1] = e.sp
		return false
	}
	if m.regs[rvdebug.RegRA] != e.ra {
		m.errType = rvdebug.TrapRAMismatch
		m.errParams[1] = e.ra
		return false
	}

	cur := m.sregs()
	for i := range cur {
		if cur[i] == e.sregs[i] {
			continue
		}
		m.errType = rvdebug.TrapCalleeSaved
		switch i {
		case 0:
			m.errParams[0] = rvdebug.RegFP
		case 1:
			m.errParams[0] = rvdebug.RegS1
		default:
			m.errParams[0] = uint32(rvdebug.RegS2 + i - 2)
		}
		m.errParams[1] = e.sregs[i]
		return false
	}

	m.regBitmap = e.bitmap &^ callClobbered

	// the callee's part of the stack is dead
	end := (e.sp - rvdebug.StackBase) / 4
	for i := uint32(0); i < end && i < uint32(len(m.writtenBy)); i++ {
		m.writtenBy[i] = unwritten
	}
	m.stackDirty = true
	return true
}

func stackSlots(addr, size uint32) (uint32, uint32, bool) {
	if addr < rvdebug.StackBase || uint64(addr)+uint64(size) > uint64(rvdebug.StackTop) {
		return 0, 0, false
	}
	off := addr - rvdebug.StackBase
	return off / 4, (off + size - 1) / 4, true
}

func (m *machine) reportStore(addr, size, reg uint32) {
	start, end, ok := stackSlots(addr, size)
	if !ok {
		return
	}
	m.writtenBy[start] = byte(reg)
	m.writtenBy[end] = byte(reg)
	m.stackDirty = true
}

func (m *machine) checkLoad(addr, size uint32) bool {
	start, end, ok := stackSlots(addr, size)
	if !ok {
		return true
	}
	return m.writtenBy[start] != unwritten && m.writtenBy[end] != unwritten
}
