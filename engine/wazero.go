package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/errors"
)

const (
	envModule     = "env"
	hostModule    = "rvdebug_host"
	engineModule  = "engine"
	memoryExport  = "memory"
	defaultPages  = 128
	initFunctions = "_initialize"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// InitialPages sizes the linear memory handed to engines that import it.
	// 0 means 128 pages (8MB).
	InitialPages uint32
}

func (c *Config) initialPages() uint32 {
	if c == nil || c.InitialPages == 0 {
		return defaultPages
	}
	return c.InitialPages
}

// WazeroEngine implements Engine using wazero runtime. Every instance gets a
// private runtime so the fixed "env" import namespace never collides;
// compilation is shared through a compilation cache.
type WazeroEngine struct {
	cache          wazero.CompilationCache
	cfg            Config
	wasm           []byte
	hostImports    []api.FunctionDefinition
	importsMemory  bool
	memoryMaxPages uint32
	closeOnce      sync.Once
}

// NewWazeroEngine compiles an engine module with default configuration
func NewWazeroEngine(ctx context.Context, wasmBytes []byte) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, wasmBytes, nil)
}

// NewWazeroEngineWithConfig compiles an engine module with custom configuration.
// The module must export the engine entry points and import only known host
// functions from "env".
func NewWazeroEngineWithConfig(ctx context.Context, wasmBytes []byte, cfg *Config) (*WazeroEngine, error) {
	e := &WazeroEngine{
		cache: wazero.NewCompilationCache(),
		wasm:  wasmBytes,
	}
	if cfg != nil {
		e.cfg = *cfg
	}

	r := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		e.cache.Close(ctx)
		return nil, errors.InitFailure("compile engine module", err)
	}

	exported := compiled.ExportedFunctions()
	for _, name := range []string{FuncEmulate, FuncAssemble, FuncPCToLabel, FuncLoad} {
		if _, ok := exported[name]; !ok {
			e.cache.Close(ctx)
			return nil, errors.MissingExport(name)
		}
	}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != envModule {
			e.cache.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindInitFailure).
				Path(module, name).
				Detail("unsupported import namespace %q", module).
				Build()
		}
		if _, ok := hostFunctions[name]; !ok {
			e.cache.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindInitFailure).
				Path(module, name).
				Detail("unsupported host import %q", name).
				Build()
		}
		e.hostImports = append(e.hostImports, def)
	}

	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		if module != envModule || name != memoryExport {
			e.cache.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindInitFailure).
				Path(module, name).
				Detail("engine memory must be imported as env.memory").
				Build()
		}
		e.importsMemory = true
		if max, ok := def.Max(); ok {
			e.memoryMaxPages = max
		}
	}

	Logger().Debug("engine module compiled",
		zap.Int("size", len(wasmBytes)),
		zap.Int("host_imports", len(e.hostImports)),
		zap.Bool("imported_memory", e.importsMemory))

	return e, nil
}

func (e *WazeroEngine) runtimeConfig() wazero.RuntimeConfig {
	cfg := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	return cfg
}

// Close releases the compilation cache. Instances must be closed separately.
func (e *WazeroEngine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		err = e.cache.Close(ctx)
	})
	return err
}

// Instantiate creates a new engine instance wired to host.
func (e *WazeroEngine) Instantiate(ctx context.Context, host Host) (Instance, error) {
	if host == nil {
		host = HostFuncs{}
	}

	r := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	inst, err := e.instantiate(ctx, r, host)
	if err != nil {
		r.Close(ctx)
		return nil, err
	}
	return inst, nil
}

func (e *WazeroEngine) instantiate(ctx context.Context, r wazero.Runtime, host Host) (*WazeroInstance, error) {
	builder := r.NewHostModuleBuilder(hostModule)
	for _, def := range e.hostImports {
		_, name, _ := def.Import()
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(hostFunctions[name](host), def.ParamTypes(), def.ResultTypes()).
			Export(name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, errors.InitFailure("instantiate host module", err)
	}

	env, err := r.InstantiateWithConfig(ctx, e.envShim(), wazero.NewModuleConfig().WithName(envModule))
	if err != nil {
		return nil, errors.InitFailure("instantiate env module", err)
	}

	compiled, err := r.CompileModule(ctx, e.wasm)
	if err != nil {
		return nil, errors.InitFailure("compile engine module", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(engineModule).
		WithStartFunctions(initFunctions))
	if err != nil {
		return nil, errors.InitFailure("instantiate engine module", err)
	}

	mem := mod.Memory()
	if mem == nil && e.importsMemory {
		mem = env.ExportedMemory(memoryExport)
	}
	if mem == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInitFailure).
			Detail("engine has no linear memory").
			Build()
	}

	Logger().Debug("engine instantiated",
		zap.Uint32("memory_bytes", mem.Size()),
		zap.Bool("imported_memory", e.importsMemory))

	return &WazeroInstance{
		runtime:   r,
		module:    mod,
		memory:    WrapMemory(mem),
		emulate:   mod.ExportedFunction(FuncEmulate),
		assemble:  mod.ExportedFunction(FuncAssemble),
		pcToLabel: mod.ExportedFunction(FuncPCToLabel),
		load:      mod.ExportedFunction(FuncLoad),
	}, nil
}

// envShim encodes the "env" module: it re-exports the host callbacks under
// the names the engine imports and, when the engine imports its memory,
// defines that memory.
func (e *WazeroEngine) envShim() []byte {
	var b moduleBuilder
	for _, def := range e.hostImports {
		_, name, _ := def.Import()
		idx := b.importFunc(hostModule, name, valueTypes(def.ParamTypes()), valueTypes(def.ResultTypes()))
		b.export(name, kindFunc, idx)
	}
	if e.importsMemory {
		pages := e.cfg.initialPages()
		if e.cfg.MemoryLimitPages > 0 && pages > e.cfg.MemoryLimitPages {
			pages = e.cfg.MemoryLimitPages
		}
		b.defineMemory(pages, e.memoryMaxPages)
		b.export(memoryExport, kindMemory, 0)
	}
	return b.encode()
}

func valueTypes(types []api.ValueType) []byte {
	out := make([]byte, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out
}

// hostFunctions maps each supported env import to its implementation.
var hostFunctions = map[string]func(Host) api.GoModuleFunc{
	"putchar": func(h Host) api.GoModuleFunc {
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h.Putchar(byte(stack[0]))
		}
	},
	"emu_exit": func(h Host) api.GoModuleFunc {
		return func(_ context.Context, _ api.Module, _ []uint64) {
			debugf("engine exit")
			h.Exit()
		}
	},
	"panic": func(h Host) api.GoModuleFunc {
		return func(_ context.Context, _ api.Module, _ []uint64) {
			Logger().Warn("engine panic")
			h.Panic()
		}
	},
	"gettime64": func(h Host) api.GoModuleFunc {
		return func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = Ticks(h.Now())
		}
	},
}

// WazeroInstance is a live engine module. It is NOT thread-safe.
type WazeroInstance struct {
	runtime   wazero.Runtime
	module    api.Module
	memory    rvdebug.Arena
	emulate   api.Function
	assemble  api.Function
	pcToLabel api.Function
	load      api.Function
}

// Memory returns the engine's linear memory.
func (i *WazeroInstance) Memory() rvdebug.Arena {
	return i.memory
}

// Global returns the value of an exported i32 global.
func (i *WazeroInstance) Global(name string) (uint32, error) {
	g := i.module.ExportedGlobal(name)
	if g == nil {
		return 0, errors.MissingExport(name)
	}
	return api.DecodeU32(g.Get()), nil
}

// Assemble runs the engine's assembler over source already written to memory.
func (i *WazeroInstance) Assemble(ctx context.Context, offset, length uint32, allowExterns bool) error {
	var externs uint64
	if allowExterns {
		externs = 1
	}
	_, err := i.call(ctx, i.assemble, FuncAssemble, uint64(offset), uint64(length), externs)
	return err
}

// Emulate executes one instruction.
func (i *WazeroInstance) Emulate(ctx context.Context) error {
	_, err := i.call(ctx, i.emulate, FuncEmulate)
	return err
}

// PCToLabel asks the engine to resolve pc to a label.
func (i *WazeroInstance) PCToLabel(ctx context.Context, pc uint32) error {
	_, err := i.call(ctx, i.pcToLabel, FuncPCToLabel, uint64(pc))
	return err
}

// Load reads guest memory through the engine.
func (i *WazeroInstance) Load(ctx context.Context, addr uint32, size int) (uint32, error) {
	res, err := i.call(ctx, i.load, FuncLoad, uint64(addr), uint64(size))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Path(FuncLoad).
			Detail("no result").
			Build()
	}
	return api.DecodeU32(res[0]), nil
}

func (i *WazeroInstance) call(ctx context.Context, fn api.Function, name string, params ...uint64) ([]uint64, error) {
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEnginePanic, err, fmt.Sprintf("call %s", name))
	}
	return res, nil
}

// Close releases the instance and its runtime.
func (i *WazeroInstance) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}
