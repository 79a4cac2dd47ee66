package emulator

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/engine"
	"github.com/wippyai/rvdebug/errors"
)

func instantiate(t *testing.T, cfg *Config) (*Instance, *testHost) {
	t.Helper()
	h := &testHost{}
	inst, err := New(cfg).Instantiate(context.Background(), h)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return inst.(*Instance), h
}

func global(t *testing.T, inst *Instance, name string) uint32 {
	t.Helper()
	addr, err := inst.Global(name)
	if err != nil {
		t.Fatalf("Global(%s): %v", name, err)
	}
	v, err := inst.Memory().ReadU32(addr)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return v
}

// build writes src at __heap_base the way a host does and assembles it.
func build(t *testing.T, inst *Instance, src string) {
	t.Helper()
	base, _ := inst.Global(engine.GlobalHeapBase)
	size, _ := inst.Global(engine.GlobalHeapSize)
	mem := inst.Memory()
	if err := mem.Write(base, []byte(src)); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := mem.WriteU32(size, (uint32(len(src))+7)&^7); err != nil {
		t.Fatalf("write heap size: %v", err)
	}
	if err := inst.Assemble(context.Background(), base, uint32(len(src)), false); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestInstance_Globals(t *testing.T) {
	inst, _ := instantiate(t, nil)

	for name := range globals {
		if _, err := inst.Global(name); err != nil {
			t.Errorf("Global(%s): %v", name, err)
		}
	}

	_, err := inst.Global("g_vga_ptr")
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindMissingExport {
		t.Errorf("unknown global error = %v, want missing export", err)
	}
}

func TestInstance_AssembleError(t *testing.T) {
	inst, _ := instantiate(t, nil)
	build(t, inst, "nop\nbogus a0\n")

	ptr := global(t, inst, engine.GlobalError)
	if ptr == 0 {
		t.Fatal("g_error is null")
	}
	text, _ := inst.Memory().Read(ptr, uint32(len(errUnknownOpcode))+1)
	if string(text) != string(errUnknownOpcode)+"\x00" {
		t.Errorf("g_error = %q", text)
	}
	if line := global(t, inst, engine.GlobalErrorLine); line != 2 {
		t.Errorf("g_error_line = %d, want 2", line)
	}
}

func TestInstance_RunPublishesState(t *testing.T) {
	ctx := context.Background()
	inst, h := instantiate(t, nil)
	src := `.globl _start
_start:
    li a0, 'x'
    li a7, 11
    call f
    ecall
f:
    ret
`
	build(t, inst, src)

	if ptr := global(t, inst, engine.GlobalError); ptr != 0 {
		t.Fatalf("g_error = %#x after a valid build", ptr)
	}
	if pc := global(t, inst, engine.GlobalPC); pc != rvdebug.TextBase {
		t.Errorf("g_pc = %#x, want %#x", pc, rvdebug.TextBase)
	}

	table, _ := inst.Global(engine.GlobalTextByLinenum)
	n, _ := inst.Memory().ReadU32(table)
	ptr, _ := inst.Memory().ReadU32(table + 8)
	if n != 5 {
		t.Fatalf("line table length = %d, want 5", n)
	}
	if first, _ := inst.Memory().ReadU32(ptr); first != 3 {
		t.Errorf("line of first instruction = %d, want 3", first)
	}

	// li, li, call
	for i := 0; i < 3; i++ {
		if err := inst.Emulate(ctx); err != nil {
			t.Fatalf("Emulate: %v", err)
		}
	}
	if rw := global(t, inst, engine.GlobalRegWritten); rw != rvdebug.RegRA {
		t.Errorf("g_reg_written = %d, want ra", rw)
	}

	stack, _ := inst.Global(engine.GlobalShadowStack)
	depth, _ := inst.Memory().ReadU32(stack)
	records, _ := inst.Memory().ReadU32(stack + 8)
	if depth != 1 {
		t.Fatalf("shadow depth = %d, want 1", depth)
	}
	if pc, _ := inst.Memory().ReadU32(records); pc != rvdebug.TextBase+16 {
		t.Errorf("shadow pc = %#x, want %#x", pc, rvdebug.TextBase+16)
	}
	if sp, _ := inst.Memory().ReadU32(records + 4); sp != rvdebug.StackTop {
		t.Errorf("shadow sp = %#x, want %#x", sp, rvdebug.StackTop)
	}
	if a0, _ := inst.Memory().ReadU32(records + 8); a0 != 'x' {
		t.Errorf("shadow a0 = %d, want 'x'", a0)
	}

	// ret, ecall
	for i := 0; i < 2; i++ {
		if err := inst.Emulate(ctx); err != nil {
			t.Fatalf("Emulate: %v", err)
		}
	}
	if depth, _ := inst.Memory().ReadU32(stack); depth != 0 {
		t.Errorf("shadow depth = %d after return", depth)
	}
	if h.out.String() != "x" {
		t.Errorf("output = %q, want x", h.out.String())
	}

	regs, _ := inst.Global(engine.GlobalRegs)
	if a7, _ := inst.Memory().ReadU32(regs + 4*rvdebug.RegA7); a7 != 11 {
		t.Errorf("g_regs[a7] = %d, want 11", a7)
	}
}

func TestInstance_Traps(t *testing.T) {
	inst, _ := instantiate(t, nil)
	build(t, inst, "li a0, 0x100\nsw a0, 0(a0)\n")

	for i := 0; i < 2; i++ {
		if err := inst.Emulate(context.Background()); err != nil {
			t.Fatalf("Emulate: %v", err)
		}
	}
	if kind := global(t, inst, engine.GlobalErrorType); kind != uint32(rvdebug.TrapStore) {
		t.Errorf("g_runtime_error_type = %d, want store", kind)
	}
	if addr := global(t, inst, engine.GlobalErrorParams); addr != 0x100 {
		t.Errorf("g_runtime_error_params[0] = %#x, want 0x100", addr)
	}
	if n := global(t, inst, engine.GlobalMemWrittenLen); n != 4 {
		t.Errorf("g_mem_written_len = %d, want 4", n)
	}
}

func TestInstance_EmulateBeforeAssemble(t *testing.T) {
	inst, _ := instantiate(t, nil)
	if err := inst.Emulate(context.Background()); err != nil {
		t.Fatalf("Emulate: %v", err)
	}
	if kind := global(t, inst, engine.GlobalErrorType); kind != uint32(rvdebug.TrapFetch) {
		t.Errorf("g_runtime_error_type = %d, want fetch", kind)
	}
}

func TestInstance_PCToLabel(t *testing.T) {
	ctx := context.Background()
	inst, _ := instantiate(t, nil)
	build(t, inst, "main:\n  nop\nhelper:\n  nop\n")

	tests := []struct {
		pc   uint32
		want string
	}{
		{rvdebug.TextBase, "main"},
		{rvdebug.TextBase + 4, "helper"},
		{0, ""},
	}
	for _, tt := range tests {
		if err := inst.PCToLabel(ctx, tt.pc); err != nil {
			t.Fatalf("PCToLabel: %v", err)
		}
		ptr := global(t, inst, engine.GlobalLabelText)
		n := global(t, inst, engine.GlobalLabelLen)
		var got string
		if ptr != 0 {
			b, _ := inst.Memory().Read(ptr, n)
			got = string(b)
		}
		if got != tt.want {
			t.Errorf("PCToLabel(%#x) = %q, want %q", tt.pc, got, tt.want)
		}
	}
}

func TestInstance_LoadAndGrow(t *testing.T) {
	ctx := context.Background()
	inst, _ := instantiate(t, &Config{InitialPages: 1})
	before := inst.Memory().Size()

	// a source larger than the arena forces growth
	src := ".data\nv: .word 0x01020304\n# " + strings.Repeat("x", 70000) + "\n"
	base, _ := inst.Global(engine.GlobalHeapBase)
	if _, ok := inst.Memory().Grow(rvdebug.PagesFor(before, base+uint32(len(src)))); !ok {
		t.Fatal("grow for source failed")
	}
	build(t, inst, src)
	if inst.Memory().Size() <= before {
		t.Errorf("arena size %d did not grow", inst.Memory().Size())
	}

	tests := []struct {
		size int
		want uint32
	}{
		{1, 0x04},
		{2, 0x0304},
		{4, 0x01020304},
	}
	for _, tt := range tests {
		v, err := inst.Load(ctx, rvdebug.DataBase, tt.size)
		if err != nil || v != tt.want {
			t.Errorf("Load(size %d) = %#x, %v; want %#x", tt.size, v, err, tt.want)
		}
	}
	if v, _ := inst.Load(ctx, 0x10, 4); v != 0 {
		t.Errorf("Load(unmapped) = %#x, want 0", v)
	}
	if _, err := inst.Load(ctx, rvdebug.DataBase, 3); err == nil {
		t.Error("Load(size 3) succeeded")
	}
}
