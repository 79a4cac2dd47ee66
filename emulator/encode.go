package emulator

// Base opcodes.
const (
	opLoad   = 0b0000011
	opImm    = 0b0010011
	opAUIPC  = 0b0010111
	opStore  = 0b0100011
	opReg    = 0b0110011
	opLUI    = 0b0110111
	opBranch = 0b1100011
	opJALR   = 0b1100111
	opJAL    = 0b1101111
	opSystem = 0b1110011
)

const instECALL uint32 = opSystem

func encR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encI(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return uint32(imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encS(imm int32, rs2, rs1, funct3 uint32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opStore
}

func encB(imm int32, rs2, rs1, funct3 uint32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 |
		(u>>1&0xf)<<8 | (u>>11&1)<<7 | opBranch
}

func encU(imm20 uint32, rd, opcode uint32) uint32 {
	return imm20<<12 | rd<<7 | opcode
}

func encJ(imm int32, rd uint32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | rd<<7 | opJAL
}

// bits extracts inst[hi:lo], inclusive.
func bits(inst uint32, hi, lo uint) uint32 {
	return (inst >> lo) & (1<<(hi-lo+1) - 1)
}

func sext(x uint32, width uint) int32 {
	shift := 32 - width
	return int32(x<<shift) >> shift
}

func immI(inst uint32) int32 { return sext(bits(inst, 31, 20), 12) }

func immS(inst uint32) int32 { return sext(bits(inst, 31, 25)<<5|bits(inst, 11, 7), 12) }

func immB(inst uint32) int32 {
	return sext(bits(inst, 31, 31)<<12|bits(inst, 7, 7)<<11|bits(inst, 30, 25)<<5|bits(inst, 11, 8)<<1, 13)
}

func immU(inst uint32) uint32 { return inst & 0xfffff000 }

func immJ(inst uint32) int32 {
	return sext(bits(inst, 31, 31)<<20|bits(inst, 19, 12)<<12|bits(inst, 20, 20)<<11|bits(inst, 30, 21)<<1, 21)
}

// splitHiLo splits v into a 20-bit upper part and a sign-adjusted 12-bit
// lower part such that hi<<12 + lo == v.
func splitHiLo(v int32) (uint32, int32) {
	lo := v & 0xfff
	if lo >= 0x800 {
		lo -= 0x1000
	}
	return uint32(v-lo) >> 12, lo
}
