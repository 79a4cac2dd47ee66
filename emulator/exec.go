package emulator

import (
	"math"

	"github.com/wippyai/rvdebug"
)

func div32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt32 && b == -1:
		return a
	}
	return a / b
}

func divu32(a, b uint32) uint32 {
	if b == 0 {
		return math.MaxUint32
	}
	return a / b
}

func rem32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt32 && b == -1:
		return 0
	}
	return a % b
}

func remu32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// step executes one instruction. Faults leave pc on the faulting
// instruction and record the trap kind and parameters.
func (m *machine) step() {
	defer func() { m.regs[0] = 0 }()

	m.errType = rvdebug.TrapNone
	m.memWrittenLen = 0
	m.regWritten = 0
	m.regs[0] = 0

	inst, ok := m.load(m.pc, 4)
	if !ok {
		m.trap(rvdebug.TrapFetch, m.pc)
		return
	}

	rd := bits(inst, 11, 7)
	rs1 := bits(inst, 19, 15)
	rs2 := bits(inst, 24, 20)
	funct3 := bits(inst, 14, 12)
	funct7 := bits(inst, 31, 25)
	s1 := m.regs[rs1]
	s2 := m.regs[rs2]

	switch inst & 0x7f {
	case opLUI:
		m.writeReg(rd, immU(inst))
		m.pc += 4

	case opAUIPC:
		m.writeReg(rd, m.pc+immU(inst))
		m.pc += 4

	case opJAL:
		m.regs[rd] = m.pc + 4
		m.pc += uint32(immJ(inst))
		m.regWritten = rd
		m.markWritten(rd)
		if rd == rvdebug.RegRA {
			m.call()
		}

	case opJALR:
		if !m.canRead(rs1) {
			return
		}
		m.markWritten(rd)
		m.regs[rd] = m.pc + 4
		// checked before pc moves so the fault points at the ret
		if rd == 0 && rs1 == rvdebug.RegRA && !m.ret() {
			return
		}
		m.pc = (s1 + uint32(immI(inst))) &^ 1
		if rd == rvdebug.RegRA {
			m.call()
		}
		m.regWritten = rd

	case opBranch:
		if !m.canRead(rs1) || !m.canRead(rs2) {
			return
		}
		var taken bool
		switch funct3 >> 1 {
		case 0:
			taken = s1 == s2
		case 2:
			taken = int32(s1) < int32(s2)
		case 3:
			taken = s1 < s2
		default:
			m.trap(rvdebug.TrapUnhandledInsn, m.pc)
			return
		}
		if funct3&1 != 0 {
			taken = !taken
		}
		if taken {
			m.pc += uint32(immB(inst))
		} else {
			m.pc += 4
		}

	case opLoad:
		m.execLoad(inst, rd, rs1, funct3, s1)

	case opStore:
		m.execStore(inst, rs1, rs2, funct3, s1, s2)

	case opImm:
		if !m.canRead(rs1) {
			return
		}
		imm := immI(inst)
		shamt := uint32(imm) & 31
		var v uint32
		switch {
		case funct3 == 0:
			v = s1 + uint32(imm)
		case funct3 == 2:
			v = b2u(int32(s1) < imm)
		case funct3 == 3:
			v = b2u(s1 < uint32(imm))
		case funct3 == 4:
			v = s1 ^ uint32(imm)
		case funct3 == 6:
			v = s1 | uint32(imm)
		case funct3 == 7:
			v = s1 & uint32(imm)
		case funct3 == 1 && funct7 == 0:
			v = s1 << shamt
		case funct3 == 5 && funct7 == 0:
			v = s1 >> shamt
		case funct3 == 5 && funct7 == 0x20:
			v = uint32(int32(s1) >> shamt)
		default:
			m.trap(rvdebug.TrapUnhandledInsn, m.pc)
			return
		}
		m.writeReg(rd, v)
		m.pc += 4

	case opReg:
		if !m.canRead(rs1) || !m.canRead(rs2) {
			return
		}
		v, ok := alu(funct7, funct3, s1, s2)
		if !ok {
			m.trap(rvdebug.TrapUnhandledInsn, m.pc)
			return
		}
		m.writeReg(rd, v)
		m.pc += 4

	case opSystem:
		if funct3 == 0 && immI(inst) == 0 {
			m.syscall()
			return
		}
		m.trap(rvdebug.TrapUnhandledInsn, m.pc)

	default:
		m.trap(rvdebug.TrapUnhandledInsn, m.pc)
	}
}

func (m *machine) writeReg(rd, v uint32) {
	m.regs[rd] = v
	m.regWritten = rd
	m.markWritten(rd)
}

func alu(funct7, funct3, s1, s2 uint32) (uint32, bool) {
	shamt := s2 & 31
	switch funct7 {
	case 0x00:
		switch funct3 {
		case 0:
			return s1 + s2, true
		case 1:
			return s1 << shamt, true
		case 2:
			return b2u(int32(s1) < int32(s2)), true
		case 3:
			return b2u(s1 < s2), true
		case 4:
			return s1 ^ s2, true
		case 5:
			return s1 >> shamt, true
		case 6:
			return s1 | s2, true
		case 7:
			return s1 & s2, true
		}
	case 0x20:
		switch funct3 {
		case 0:
			return s1 - s2, true
		case 5:
			return uint32(int32(s1) >> shamt), true
		}
	case 0x01:
		switch funct3 {
		case 0:
			return uint32(int32(s1) * int32(s2)), true
		case 1:
			return uint32(uint64(int64(int32(s1))*int64(int32(s2))) >> 32), true
		case 2:
			return uint32(uint64(int64(int32(s1))*int64(s2)) >> 32), true
		case 3:
			return uint32(uint64(s1) * uint64(s2) >> 32), true
		case 4:
			return uint32(div32(int32(s1), int32(s2))), true
		case 5:
			return divu32(s1, s2), true
		case 6:
			return uint32(rem32(int32(s1), int32(s2))), true
		case 7:
			return remu32(s1, s2), true
		}
	}
	return 0, false
}

func (m *machine) execLoad(inst, rd, rs1, funct3, s1 uint32) {
	if !m.canRead(rs1) {
		return
	}
	addr := s1 + uint32(immI(inst))

	var size int
	switch funct3 {
	case 0, 4:
		size = 1
	case 1, 5:
		size = 2
	case 2:
		size = 4
	default:
		m.trap(rvdebug.TrapUnhandledInsn, m.pc)
		return
	}

	v, ok := m.load(addr, size)
	switch funct3 {
	case 0:
		v = uint32(sext(v, 8))
	case 1:
		v = uint32(sext(v, 16))
	}
	// the destination is overwritten even when the access faults
	if rd != 0 {
		m.regs[rd] = v
	}
	if !ok {
		m.trap(rvdebug.TrapLoad, addr)
		return
	}
	if !m.checkLoad(addr, uint32(size)) {
		m.trap(rvdebug.TrapUnwrittenStack, addr)
		return
	}

	m.writeReg(rd, v)
	m.pc += 4
}

func (m *machine) execStore(inst, rs1, rs2, funct3, s1, s2 uint32) {
	if !m.canRead(rs1) || !m.canRead(rs2) {
		return
	}
	if funct3 > 2 {
		m.trap(rvdebug.TrapUnhandledInsn, m.pc)
		return
	}
	addr := s1 + uint32(immS(inst))
	size := 1 << funct3
	if !m.store(addr, s2, size) {
		m.trap(rvdebug.TrapStore, addr)
		return
	}
	m.reportStore(addr, uint32(size), rs2)
	m.pc += 4
}
