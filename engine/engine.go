package engine

import (
	"context"
	"time"

	"github.com/wippyai/rvdebug"
)

// Exported function names of the engine module.
const (
	FuncEmulate   = "emulate"
	FuncAssemble  = "assemble"
	FuncPCToLabel = "pc_to_label"
	FuncLoad      = "emu_load"
)

// Exported global names of the engine module. Each global holds the address
// of the named variable inside linear memory.
const (
	GlobalHeapBase       = "__heap_base"
	GlobalRegs           = "g_regs"
	GlobalHeapSize       = "g_heap_size"
	GlobalMemWrittenAddr = "g_mem_written_addr"
	GlobalMemWrittenLen  = "g_mem_written_len"
	GlobalRegWritten     = "g_reg_written"
	GlobalPC             = "g_pc"
	GlobalTextByLinenum  = "g_text_by_linenum"
	GlobalError          = "g_error"
	GlobalErrorLine      = "g_error_line"
	GlobalErrorParams    = "g_runtime_error_params"
	GlobalErrorType      = "g_runtime_error_type"
	GlobalLabelText      = "g_pc_to_label_txt"
	GlobalLabelLen       = "g_pc_to_label_len"
	GlobalShadowStack    = "g_shadow_stack"
	GlobalStackWrittenBy = "g_callsan_stack_written_by"
)

// Engine creates engine instances.
type Engine interface {
	Instantiate(ctx context.Context, host Host) (Instance, error)
}

// Instance is a live engine bound to one linear memory.
type Instance interface {
	// Memory returns the linear memory shared with the engine.
	Memory() rvdebug.Arena
	// Global returns the value of an exported global.
	Global(name string) (uint32, error)
	// Assemble assembles length bytes of source stored at offset.
	Assemble(ctx context.Context, offset, length uint32, allowExterns bool) error
	// Emulate executes one instruction.
	Emulate(ctx context.Context) error
	// PCToLabel publishes the label closest to pc through the label globals.
	PCToLabel(ctx context.Context, pc uint32) error
	// Load reads size bytes of guest memory at addr, zero on failure.
	Load(ctx context.Context, addr uint32, size int) (uint32, error)
	Close(ctx context.Context) error
}

// Host receives the engine's callbacks.
type Host interface {
	Putchar(c byte)
	Exit()
	Panic()
	Now() time.Time
}

// HostFuncs adapts plain functions to Host. Nil fields are ignored and a nil
// NowFunc reads the wall clock.
type HostFuncs struct {
	PutcharFunc func(c byte)
	ExitFunc    func()
	PanicFunc   func()
	NowFunc     func() time.Time
}

func (h HostFuncs) Putchar(c byte) {
	if h.PutcharFunc != nil {
		h.PutcharFunc(c)
	}
}

func (h HostFuncs) Exit() {
	if h.ExitFunc != nil {
		h.ExitFunc()
	}
}

func (h HostFuncs) Panic() {
	if h.PanicFunc != nil {
		h.PanicFunc()
	}
}

func (h HostFuncs) Now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now()
}

// Ticks converts t to the engine clock unit of 100 ns, at millisecond resolution.
func Ticks(t time.Time) uint64 {
	return uint64(t.UnixMilli()) * 10 * 1000
}
