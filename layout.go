package rvdebug

import (
	"fmt"
	"strconv"
)

// Guest address space of the RV32 machine.
const (
	TextBase  uint32 = 0x00400000
	TextEnd   uint32 = 0x10000000
	DataBase  uint32 = 0x10000000
	DataEnd   uint32 = 0x70000000
	StackTop  uint32 = 0x7FFFF000
	StackLen  uint32 = 4096
	StackBase        = StackTop - StackLen
)

// Register indices used by the calling convention.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegFP   = 8
	RegS1   = 9
	RegA0   = 10
	RegA7   = 17
	RegS2   = 18
	RegS11  = 27
)

// NumRegs is the number of general-purpose registers, x0 included.
const NumRegs = 32

var registerNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegisterName returns the ABI name of register idx, or "" when out of range.
func RegisterName(idx int) string {
	if idx < 0 || idx >= NumRegs {
		return ""
	}
	return registerNames[idx]
}

// DisplayName is RegisterName except that x8 reads "fp/s0", the form used
// in diagnostics.
func DisplayName(idx int) string {
	if idx == RegFP {
		return "fp/s0"
	}
	return RegisterName(idx)
}

// RegisterIndex resolves an ABI name, "s0" or an xN name to its index.
func RegisterIndex(name string) (int, bool) {
	if name == "s0" {
		return RegFP, true
	}
	for i, n := range registerNames {
		if n == name {
			return i, true
		}
	}
	if len(name) >= 2 && len(name) <= 3 && name[0] == 'x' {
		n := 0
		for _, c := range name[1:] {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		if n < NumRegs {
			return n, true
		}
	}
	return 0, false
}

// IsPointer reports whether v falls inside the text, data or stack
// ranges, bounds inclusive.
func IsPointer(v uint32) bool {
	return (v >= TextBase && v <= TextEnd) ||
		(v >= StackBase && v <= StackTop) ||
		(v >= DataBase && v <= DataEnd)
}

// FormatValue renders a register or memory word: 0x-prefixed 8-digit hex
// for pointers, unsigned decimal otherwise.
func FormatValue(v uint32) string {
	if IsPointer(v) {
		return fmt.Sprintf("0x%08x", v)
	}
	return strconv.FormatUint(uint64(v), 10)
}

// Aligned reports whether addr is a multiple of 4.
func Aligned(addr uint32) bool {
	return addr&3 == 0
}
