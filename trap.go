package rvdebug

import "strconv"

// TrapKind is the runtime error code the engine publishes in
// g_runtime_error_type after a faulting step.
type TrapKind uint32

const (
	TrapNone TrapKind = iota
	TrapFetch
	TrapLoad
	TrapStore
	TrapUnhandledInsn
	TrapUninitRegister
	TrapCalleeSaved
	TrapSPMismatch
	TrapRAMismatch
	TrapReturnWithoutCall
	TrapUnwrittenStack

	// TrapInstructionLimit is synthesized by the host, never by the engine.
	TrapInstructionLimit TrapKind = 0xFFFFFFFF
)

var trapNames = map[TrapKind]string{
	TrapNone:              "none",
	TrapFetch:             "fetch",
	TrapLoad:              "load",
	TrapStore:             "store",
	TrapUnhandledInsn:     "unhandled instruction",
	TrapUninitRegister:    "uninitialized register",
	TrapCalleeSaved:       "callee-saved register",
	TrapSPMismatch:        "sp mismatch",
	TrapRAMismatch:        "ra mismatch",
	TrapReturnWithoutCall: "return without call",
	TrapUnwrittenStack:    "unwritten stack slot",
	TrapInstructionLimit:  "instruction limit",
}

func (k TrapKind) String() string {
	if s, ok := trapNames[k]; ok {
		return s
	}
	return "trap " + strconv.FormatUint(uint64(k), 10)
}

// CallSan reports whether the trap comes from the calling-convention checker.
func (k TrapKind) CallSan() bool {
	return k >= TrapUninitRegister && k <= TrapUnwrittenStack
}
