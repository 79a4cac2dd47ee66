package runtime

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/engine"
	"github.com/wippyai/rvdebug/errors"
)

// DefaultInstructionLimit is the step budget of one program run.
const DefaultInstructionLimit = 100000

const defaultLabelCacheSize = 256

// Config holds adapter configuration.
type Config struct {
	// InstructionLimit caps the steps of a run. 0 means DefaultInstructionLimit.
	InstructionLimit int

	// LabelCacheSize bounds the pc-to-label cache. 0 means 256 entries.
	LabelCacheSize int

	// Clock feeds the engine's gettime64 import. nil means time.Now.
	Clock func() time.Time
}

// addresses are the resolved exported globals of a loaded engine.
type addresses struct {
	heapBase       uint32
	heapSize       uint32
	regs           uint32
	pc             uint32
	memWrittenAddr uint32
	memWrittenLen  uint32
	regWritten     uint32
	textByLinenum  uint32
	err            uint32
	errLine        uint32
	errParams      uint32
	errType        uint32
	labelText      uint32
	labelLen       uint32
	shadowStack    uint32
	stackWrittenBy uint32
	hasWrittenBy   bool
}

// Adapter owns one engine instance and its linear memory. It is NOT
// thread-safe.
type Adapter struct {
	engine engine.Engine
	cfg    Config

	loadOnce sync.Once
	loadErr  error

	inst     engine.Instance
	mem      rvdebug.Arena
	addrs    addresses
	pristine []byte
	labels   *lru.Cache

	output       strings.Builder
	succeeded    bool
	hasError     bool
	trap         *Trap
	instructions int
	built        bool
}

// New creates an adapter for eng. The engine is instantiated lazily by
// LoadModule.
func New(eng engine.Engine, cfg *Config) *Adapter {
	a := &Adapter{engine: eng}
	if cfg != nil {
		a.cfg = *cfg
	}
	if a.cfg.InstructionLimit <= 0 {
		a.cfg.InstructionLimit = DefaultInstructionLimit
	}
	if a.cfg.LabelCacheSize <= 0 {
		a.cfg.LabelCacheSize = defaultLabelCacheSize
	}
	if a.cfg.Clock == nil {
		a.cfg.Clock = time.Now
	}
	return a
}

// LoadModule instantiates the engine once. Every call returns the result of
// the first attempt, failures included.
func (a *Adapter) LoadModule(ctx context.Context) error {
	a.loadOnce.Do(func() {
		a.loadErr = a.load(ctx)
		if a.loadErr != nil {
			Logger().Error("engine load failed", zap.Error(a.loadErr))
		}
	})
	return a.loadErr
}

func (a *Adapter) load(ctx context.Context) error {
	inst, err := a.engine.Instantiate(ctx, engine.HostFuncs{
		PutcharFunc: func(c byte) { a.output.WriteByte(c) },
		ExitFunc:    func() { a.succeeded = true },
		PanicFunc:   func() { Logger().Error("engine panic", zap.Uint32("pc", a.PC())) },
		NowFunc:     a.cfg.Clock,
	})
	if err != nil {
		return errors.InitFailure("instantiate engine", err)
	}

	resolve := func(name string, dst *uint32) {
		if err != nil {
			return
		}
		*dst, err = inst.Global(name)
	}
	resolve(engine.GlobalHeapBase, &a.addrs.heapBase)
	resolve(engine.GlobalHeapSize, &a.addrs.heapSize)
	resolve(engine.GlobalRegs, &a.addrs.regs)
	resolve(engine.GlobalPC, &a.addrs.pc)
	resolve(engine.GlobalMemWrittenAddr, &a.addrs.memWrittenAddr)
	resolve(engine.GlobalMemWrittenLen, &a.addrs.memWrittenLen)
	resolve(engine.GlobalRegWritten, &a.addrs.regWritten)
	resolve(engine.GlobalTextByLinenum, &a.addrs.textByLinenum)
	resolve(engine.GlobalError, &a.addrs.err)
	resolve(engine.GlobalErrorLine, &a.addrs.errLine)
	resolve(engine.GlobalErrorParams, &a.addrs.errParams)
	resolve(engine.GlobalErrorType, &a.addrs.errType)
	resolve(engine.GlobalLabelText, &a.addrs.labelText)
	resolve(engine.GlobalLabelLen, &a.addrs.labelLen)
	resolve(engine.GlobalShadowStack, &a.addrs.shadowStack)
	if err != nil {
		_ = inst.Close(ctx)
		return errors.InitFailure("resolve engine globals", err)
	}
	if addr, werr := inst.Global(engine.GlobalStackWrittenBy); werr == nil {
		a.addrs.stackWrittenBy = addr
		a.addrs.hasWrittenBy = true
	}

	mem := inst.Memory()
	snapshot, err := mem.Read(0, mem.Size())
	if err != nil {
		_ = inst.Close(ctx)
		return errors.InitFailure("snapshot engine memory", err)
	}

	labels, err := lru.New(a.cfg.LabelCacheSize)
	if err != nil {
		_ = inst.Close(ctx)
		return errors.InitFailure("create label cache", err)
	}

	a.inst = inst
	a.mem = mem
	a.pristine = append([]byte(nil), snapshot...)
	a.labels = labels

	Logger().Debug("engine loaded",
		zap.Uint32("heap_base", a.addrs.heapBase),
		zap.Uint32("memory", mem.Size()),
		zap.Bool("written_by", a.addrs.hasWrittenBy))
	return nil
}

// Close releases the engine instance.
func (a *Adapter) Close(ctx context.Context) error {
	if a.inst == nil {
		return nil
	}
	err := a.inst.Close(ctx)
	a.inst = nil
	a.built = false
	return err
}

func (a *Adapter) u32(addr uint32) uint32 {
	if a.mem == nil {
		return 0
	}
	v, err := a.mem.ReadU32(addr)
	if err != nil {
		return 0
	}
	return v
}
