package engine

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/wippyai/rvdebug/errors"
)

// fakeEngine encodes a tiny engine module that follows the engine ABI:
// emulate prints 'A', signals exit, stores the clock and advances g_pc.
func fakeEngine(importMemory bool) []byte {
	var b moduleBuilder
	putchar := b.importFunc(envModule, "putchar", []byte{valI32}, nil)
	exit := b.importFunc(envModule, "emu_exit", nil, nil)
	clock := b.importFunc(envModule, "gettime64", nil, []byte{valI64})
	if importMemory {
		b.importMemory(envModule, memoryExport, 1)
	} else {
		b.defineMemory(2, 0)
		b.export(memoryExport, kindMemory, 0)
	}

	var emulate []byte
	emulate = append(emulate, 0x41)
	emulate = appendS32(emulate, 'A')
	emulate = append(emulate, 0x10)
	emulate = appendU32(emulate, putchar)
	emulate = append(emulate, 0x10)
	emulate = appendU32(emulate, exit)
	// clock -> [0x10]
	emulate = append(emulate, 0x41)
	emulate = appendS32(emulate, 0x10)
	emulate = append(emulate, 0x10)
	emulate = appendU32(emulate, clock)
	emulate = append(emulate, 0x37, 0x03, 0x00)
	// g_pc += 4
	emulate = append(emulate, 0x41)
	emulate = appendS32(emulate, 0x480)
	emulate = append(emulate, 0x41)
	emulate = appendS32(emulate, 0x480)
	emulate = append(emulate, 0x28, 0x02, 0x00, 0x41, 0x04, 0x6a, 0x36, 0x02, 0x00)

	var assemble []byte
	assemble = append(assemble, 0x41)
	assemble = appendS32(assemble, 0x484)
	assemble = append(assemble, 0x20, 0x01, 0x36, 0x02, 0x00)

	load := []byte{0x20, 0x00, 0x20, 0x01, 0x6a}

	b.export(FuncEmulate, kindFunc, b.defineFunc(nil, nil, emulate))
	b.export(FuncAssemble, kindFunc, b.defineFunc([]byte{valI32, valI32, valI32}, nil, assemble))
	b.export(FuncPCToLabel, kindFunc, b.defineFunc([]byte{valI32}, nil, nil))
	b.export(FuncLoad, kindFunc, b.defineFunc([]byte{valI32, valI32}, []byte{valI32}, load))
	b.export(GlobalPC, kindGlobal, b.defineGlobal(0x480))
	b.export(GlobalHeapBase, kindGlobal, b.defineGlobal(0x1000))
	return b.encode()
}

type recordingHost struct {
	out    []byte
	exited bool
	now    time.Time
}

func (h *recordingHost) Putchar(c byte) { h.out = append(h.out, c) }
func (h *recordingHost) Exit()          { h.exited = true }
func (h *recordingHost) Panic()         {}
func (h *recordingHost) Now() time.Time { return h.now }

func TestWazeroEngine_Instantiate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		importMemory bool
		cfg          *Config
		wantBytes    uint32
	}{
		{"imported memory default pages", true, nil, 128 * 65536},
		{"imported memory custom pages", true, &Config{InitialPages: 4}, 4 * 65536},
		{"imported memory capped by limit", true, &Config{InitialPages: 16, MemoryLimitPages: 8}, 8 * 65536},
		{"exported memory", false, nil, 2 * 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := NewWazeroEngineWithConfig(ctx, fakeEngine(tt.importMemory), tt.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer eng.Close(ctx)

			host := &recordingHost{now: time.UnixMilli(1234)}
			inst, err := eng.Instantiate(ctx, host)
			if err != nil {
				t.Fatalf("Instantiate failed: %v", err)
			}
			defer inst.Close(ctx)

			if got := inst.Memory().Size(); got != tt.wantBytes {
				t.Errorf("memory size = %d, want %d", got, tt.wantBytes)
			}

			pcAddr, err := inst.Global(GlobalPC)
			if err != nil {
				t.Fatalf("Global(%s) failed: %v", GlobalPC, err)
			}
			if pcAddr != 0x480 {
				t.Errorf("g_pc address = 0x%x, want 0x480", pcAddr)
			}

			if err := inst.Memory().WriteU32(pcAddr, 0x00400000); err != nil {
				t.Fatalf("WriteU32 failed: %v", err)
			}
			if err := inst.Emulate(ctx); err != nil {
				t.Fatalf("Emulate failed: %v", err)
			}

			if string(host.out) != "A" {
				t.Errorf("output = %q, want %q", host.out, "A")
			}
			if !host.exited {
				t.Error("exit callback not invoked")
			}
			pc, _ := inst.Memory().ReadU32(pcAddr)
			if pc != 0x00400004 {
				t.Errorf("pc = 0x%x, want 0x400004", pc)
			}
			lo, _ := inst.Memory().ReadU32(0x10)
			if uint64(lo) != Ticks(host.now) {
				t.Errorf("clock = %d, want %d", lo, Ticks(host.now))
			}

			if err := inst.Assemble(ctx, 0x1000, 42, false); err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if v, _ := inst.Memory().ReadU32(0x484); v != 42 {
				t.Errorf("assemble length = %d, want 42", v)
			}

			v, err := inst.Load(ctx, 40, 2)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if v != 42 {
				t.Errorf("Load = %d, want 42", v)
			}

			if err := inst.PCToLabel(ctx, 0x00400000); err != nil {
				t.Errorf("PCToLabel failed: %v", err)
			}
		})
	}
}

func TestWazeroEngine_MissingGlobal(t *testing.T) {
	ctx := context.Background()
	eng, err := NewWazeroEngine(ctx, fakeEngine(true))
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer eng.Close(ctx)

	inst, err := eng.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Global(GlobalShadowStack)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMissingExport}) {
		t.Errorf("expected missing export error, got %v", err)
	}
}

func TestWazeroEngine_MultipleInstances(t *testing.T) {
	ctx := context.Background()
	eng, err := NewWazeroEngine(ctx, fakeEngine(true))
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer eng.Close(ctx)

	first, err := eng.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("first Instantiate failed: %v", err)
	}
	defer first.Close(ctx)

	second, err := eng.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("second Instantiate failed: %v", err)
	}
	defer second.Close(ctx)

	if err := first.Memory().WriteU32(0x200, 7); err != nil {
		t.Fatal(err)
	}
	if v, _ := second.Memory().ReadU32(0x200); v != 0 {
		t.Errorf("instances share memory: read %d", v)
	}
}

func TestNewWazeroEngine_Rejects(t *testing.T) {
	ctx := context.Background()

	noEmulate := func() []byte {
		var b moduleBuilder
		b.export(FuncAssemble, kindFunc, b.defineFunc(nil, nil, nil))
		return b.encode()
	}

	unknownImport := func() []byte {
		var b moduleBuilder
		b.importFunc(envModule, "mmio_read", nil, nil)
		for _, name := range []string{FuncEmulate, FuncAssemble, FuncPCToLabel, FuncLoad} {
			b.export(name, kindFunc, b.defineFunc(nil, nil, nil))
		}
		return b.encode()
	}

	tests := []struct {
		name string
		wasm []byte
		kind errors.Kind
	}{
		{"garbage", []byte("not wasm"), errors.KindInitFailure},
		{"missing export", noEmulate(), errors.KindMissingExport},
		{"unknown import", unknownImport(), errors.KindInitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWazeroEngine(ctx, tt.wasm)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.kind)
			}
		})
	}
}

func TestHostFuncs_Defaults(t *testing.T) {
	var h HostFuncs
	h.Putchar('x')
	h.Exit()
	h.Panic()
	if h.Now().IsZero() {
		t.Error("default Now returned zero time")
	}

	fixed := time.UnixMilli(5)
	h.NowFunc = func() time.Time { return fixed }
	if Ticks(h.Now()) != 50000 {
		t.Errorf("Ticks = %d, want 50000", Ticks(h.Now()))
	}
}
