package emulator

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/engine"
	"github.com/wippyai/rvdebug/errors"
)

const defaultPages = 16

// Config holds emulator configuration.
type Config struct {
	// InitialPages sizes the arena in 64KB pages. 0 means 16 (1MB).
	// The arena grows on demand.
	InitialPages uint32

	// MaxPages bounds arena growth. 0 means the 4GB address space.
	MaxPages uint32
}

// Emulator implements engine.Engine in Go.
type Emulator struct {
	cfg Config
}

// New creates an emulator engine.
func New(cfg *Config) *Emulator {
	e := &Emulator{}
	if cfg != nil {
		e.cfg = *cfg
	}
	if e.cfg.InitialPages == 0 {
		e.cfg.InitialPages = defaultPages
	}
	return e
}

// Instantiate creates an instance with a fresh arena.
func (e *Emulator) Instantiate(_ context.Context, host engine.Host) (engine.Instance, error) {
	if host == nil {
		host = engine.HostFuncs{}
	}
	if uint64(e.cfg.InitialPages)*rvdebug.PageSize < addrHeapBase {
		return nil, errors.InvalidInput(errors.PhaseLoad, "emulator arena smaller than its globals")
	}
	inst := &Instance{
		arena: engine.NewSliceArena(e.cfg.InitialPages, e.cfg.MaxPages),
		host:  host,
	}
	if err := inst.arena.WriteU32(addrHeapSize, 0); err != nil {
		return nil, err
	}
	return inst, nil
}

// Instance is one emulator with its arena. It is NOT thread-safe.
type Instance struct {
	arena *engine.SliceArena
	host  engine.Host
	prog  *program
	m     *machine

	// arena addresses of the source text and the published shadow stack
	source       uint32
	shadowCap    uint32
	shadowPtr    uint32
	publishedLen int
}

var _ engine.Instance = (*Instance)(nil)

// Memory returns the instance arena.
func (i *Instance) Memory() rvdebug.Arena {
	return i.arena
}

// Global returns the arena address of an exported global.
func (i *Instance) Global(name string) (uint32, error) {
	addr, ok := globals[name]
	if !ok {
		return 0, errors.MissingExport(name)
	}
	return addr, nil
}

// Assemble assembles source already written to the arena and resets the
// machine to the program entry.
func (i *Instance) Assemble(_ context.Context, offset, length uint32, _ bool) error {
	view, err := i.arena.Read(offset, length)
	if err != nil {
		return errors.OutOfBounds(errors.PhaseAssemble, "source", offset, length)
	}
	src := append([]byte(nil), view...)

	i.prog = assemble(src)
	i.m = newMachine(i.prog, i.host)
	i.source = offset
	i.shadowCap = 0
	i.shadowPtr = 0
	i.publishedLen = 0

	if i.prog.err != "" {
		Logger().Debug("assembly failed",
			zap.Int("line", i.prog.errLine),
			zap.String("error", string(i.prog.err)))
	} else {
		Logger().Debug("assembled",
			zap.Int("text", len(i.prog.text.data)),
			zap.Int("data", len(i.prog.data.data)),
			zap.Uint32("entry", i.prog.entry))
	}

	return i.publishProgram()
}

// Emulate executes one instruction. Before a program is assembled it
// reports a fetch fault at pc 0.
func (i *Instance) Emulate(_ context.Context) error {
	if i.m == nil {
		i.m = newMachine(assemble(nil), i.host)
		i.m.pc = 0
	}
	i.m.step()
	return i.publishState()
}

// PCToLabel publishes the label closest to pc, or a null pointer.
func (i *Instance) PCToLabel(_ context.Context, pc uint32) error {
	var txt, n uint32
	if i.prog != nil {
		if l, ok := i.prog.labelFor(pc); ok {
			txt = i.source + uint32(l.offset)
			n = uint32(len(l.name))
		}
	}
	if err := i.arena.WriteU32(addrLabelText, txt); err != nil {
		return err
	}
	return i.arena.WriteU32(addrLabelLen, n)
}

// Load reads guest memory, zero on failure.
func (i *Instance) Load(_ context.Context, addr uint32, size int) (uint32, error) {
	if i.m == nil {
		return 0, nil
	}
	switch size {
	case 1, 2, 4:
	default:
		return 0, errors.InvalidInput(errors.PhaseRuntime, "load size must be 1, 2 or 4")
	}
	v, _ := i.m.load(addr, size)
	return v, nil
}

// Close releases the instance.
func (i *Instance) Close(context.Context) error {
	i.prog = nil
	i.m = nil
	return nil
}

// alloc bump-allocates n bytes after the heap base, growing the arena when
// needed. A failed growth notifies the host through Panic.
func (i *Instance) alloc(n uint32) (uint32, error) {
	used, err := i.arena.ReadU32(addrHeapSize)
	if err != nil {
		return 0, err
	}
	addr := addrHeapBase + used
	end := uint64(addr) + uint64(n)
	if end > uint64(i.arena.Size()) {
		pages := rvdebug.PagesFor(i.arena.Size(), uint32(min(end, 1<<32-1)))
		if _, ok := i.arena.Grow(pages); !ok || end > 1<<32-1 {
			i.host.Panic()
			return 0, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
				Detail("arena cannot grow to %d bytes", end).
				Build()
		}
	}
	if err := i.arena.WriteU32(addrHeapSize, (used+n+7)&^7); err != nil {
		return 0, err
	}
	return addr, nil
}

func (i *Instance) writeWords(addr uint32, words ...uint32) error {
	for k, w := range words {
		if err := i.arena.WriteU32(addr+uint32(k)*4, w); err != nil {
			return err
		}
	}
	return nil
}

func (i *Instance) publishProgram() error {
	prog := i.prog

	var errPtr uint32
	if prog.err != "" {
		ptr, err := i.alloc(uint32(len(prog.err)) + 1)
		if err != nil {
			return err
		}
		if err := i.arena.Write(ptr, append([]byte(prog.err), 0)); err != nil {
			return err
		}
		errPtr = ptr
	}
	if err := i.writeWords(addrError, errPtr, uint32(prog.errLine)); err != nil {
		return err
	}

	n := uint32(len(prog.lines))
	capacity := max(n, 4)
	ptr, err := i.alloc(capacity * 4)
	if err != nil {
		return err
	}
	if err := i.writeWords(ptr, prog.lines...); err != nil {
		return err
	}
	if err := i.writeWords(addrTextByLinenum, n, capacity, ptr); err != nil {
		return err
	}
	if err := i.writeWords(addrShadowStack, 0, 0, 0); err != nil {
		return err
	}
	if err := i.writeWords(addrLabelText, 0, 0); err != nil {
		return err
	}
	return i.publishState()
}

// publishState mirrors the machine into the arena after every change.
func (i *Instance) publishState() error {
	m := i.m
	if err := i.writeWords(addrRegs, m.regs[:]...); err != nil {
		return err
	}
	if err := i.writeWords(addrPC, m.pc, m.memWrittenLen, m.memWrittenAddr, m.regWritten,
		m.errParams[0], m.errParams[1], uint32(m.errType)); err != nil {
		return err
	}
	if err := i.publishShadowStack(); err != nil {
		return err
	}
	if m.stackDirty {
		if err := i.arena.Write(addrStackWrittenBy, m.writtenBy[:]); err != nil {
			return err
		}
		m.stackDirty = false
	}
	return nil
}

// publishShadowStack writes records pushed since the last publish, doubling
// the arena copy like a growable array when it is full.
func (i *Instance) publishShadowStack() error {
	m := i.m
	n := len(m.shadow)
	if n > int(i.shadowCap) {
		capacity := max(i.shadowCap*2, 4)
		for int(capacity) < n {
			capacity *= 2
		}
		ptr, err := i.alloc(capacity * shadowEntryWords * 4)
		if err != nil {
			return err
		}
		i.shadowCap = capacity
		i.shadowPtr = ptr
		i.publishedLen = 0
	}
	for k := min(i.publishedLen, n); k < n; k++ {
		w := m.shadow[k].words()
		if err := i.writeWords(i.shadowPtr+uint32(k)*shadowEntryWords*4, w[:]...); err != nil {
			return err
		}
	}
	i.publishedLen = n
	return i.writeWords(addrShadowStack, uint32(n), i.shadowCap, i.shadowPtr)
}
