package emulator

import (
	"testing"

	"github.com/wippyai/rvdebug"
)

const callsanMain = `.globl _start
_start:
    call f
    li a7, 10
    ecall
f:
`

func TestCallSan_Violations(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		kind   rvdebug.TrapKind
		params [2]uint32
	}{
		{
			name:   "uninitialized register",
			src:    "add a0, a1, a2",
			kind:   rvdebug.TrapUninitRegister,
			params: [2]uint32{11, 0},
		},
		{
			name: "return without call",
			src:  "ret",
			kind: rvdebug.TrapReturnWithoutCall,
		},
		{
			name:   "sp mismatch",
			src:    callsanMain + "addi sp, sp, -16\nret",
			kind:   rvdebug.TrapSPMismatch,
			params: [2]uint32{0, rvdebug.StackTop},
		},
		{
			name:   "ra mismatch",
			src:    callsanMain + "li ra, 0\nret",
			kind:   rvdebug.TrapRAMismatch,
			params: [2]uint32{0, rvdebug.TextBase + 4},
		},
		{
			name:   "callee-saved clobbered",
			src:    callsanMain + "li s1, 7\nret",
			kind:   rvdebug.TrapCalleeSaved,
			params: [2]uint32{rvdebug.RegS1, 0},
		},
		{
			name:   "frame pointer clobbered",
			src:    callsanMain + "li s0, 7\nret",
			kind:   rvdebug.TrapCalleeSaved,
			params: [2]uint32{rvdebug.RegFP, 0},
		},
		{
			name:   "unwritten stack slot",
			src:    callsanMain + "addi sp, sp, -16\nlw a0, 0(sp)",
			kind:   rvdebug.TrapUnwrittenStack,
			params: [2]uint32{rvdebug.StackTop - 16, 0},
		},
		{
			name:   "argument register outside call",
			src:    callsanMain + "mv a0, t0\nret",
			kind:   rvdebug.TrapUninitRegister,
			params: [2]uint32{5, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, h := newTestMachine(t, tt.src)
			run(m, h, 20)
			if m.errType != tt.kind {
				t.Fatalf("trap = %v, want %v", m.errType, tt.kind)
			}
			if m.errParams != tt.params {
				t.Errorf("params = %#x, want %#x", m.errParams, tt.params)
			}
			if !m.errType.CallSan() {
				t.Errorf("%v is not reported as a calling-convention trap", m.errType)
			}
		})
	}
}

func TestCallSan_BalancedCall(t *testing.T) {
	src := callsanMain + `    addi sp, sp, -16
    sw ra, 12(sp)
    lw ra, 12(sp)
    addi sp, sp, 16
    ret
`
	m, h := newTestMachine(t, src)
	f := rvdebug.TextBase + 12

	// call
	m.step()
	if len(m.shadow) != 1 {
		t.Fatalf("shadow depth = %d, want 1", len(m.shadow))
	}
	if e := m.shadow[0]; e.pc != f || e.sp != rvdebug.StackTop || e.ra != rvdebug.TextBase+4 {
		t.Errorf("shadow entry = pc %#x sp %#x ra %#x", e.pc, e.sp, e.ra)
	}

	// addi, sw
	m.step()
	m.step()
	slot := (rvdebug.StackTop - 4 - rvdebug.StackBase) / 4
	if m.writtenBy[slot] != rvdebug.RegRA {
		t.Errorf("writtenBy[%d] = %d, want ra", slot, m.writtenBy[slot])
	}

	run(m, h, 20)
	if m.errType != rvdebug.TrapNone || !h.exited {
		t.Fatalf("trap = %v, exited = %v", m.errType, h.exited)
	}
	if len(m.shadow) != 0 {
		t.Errorf("shadow depth = %d after return", len(m.shadow))
	}
	if m.writtenBy[slot] != unwritten {
		t.Errorf("writtenBy[%d] = %d after return, want unwritten", slot, m.writtenBy[slot])
	}
}

func TestCallSan_ClobberedAfterReturn(t *testing.T) {
	src := `.globl _start
_start:
    li a2, 5
    li a0, 1
    call f
    mv a1, a0
    mv a3, a2
f:
    ret
`
	m, h := newTestMachine(t, src)
	run(m, h, 20)
	if m.errType != rvdebug.TrapUninitRegister || m.errParams[0] != 12 {
		t.Fatalf("trap = %v param %d, want uninitialized a2", m.errType, m.errParams[0])
	}
	// a0 survives the return as a result register
	if m.pc != rvdebug.TextBase+16 {
		t.Errorf("pc = %#x, want %#x", m.pc, rvdebug.TextBase+16)
	}
}

func TestCallSan_Reinitialize(t *testing.T) {
	m, _ := newTestMachine(t, "nop")
	m.shadow = append(m.shadow, shadowEntry{})
	m.writtenBy[3] = 1
	m.regBitmap = 0

	m.callsanInit()
	if len(m.shadow) != 0 || m.writtenBy[3] != unwritten || m.regBitmap != initialBitmap {
		t.Error("callsanInit did not reset the sanitizer state")
	}
}
