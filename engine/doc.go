// Package engine hosts the instruction-execution module that assembles and
// runs RISC-V programs.
//
// The engine is a foreign WebAssembly core module with a C ABI. It shares a
// flat linear memory with the host, publishes its state through exported
// globals whose values are addresses inside that memory, and calls back into
// the host through a small set of imports in the "env" namespace.
//
// # Architecture
//
//	Engine   - Compiles an engine binary and creates instances
//	Instance - A live engine with its own linear memory
//	Host     - Callbacks the engine invokes (output, exit, panic, clock)
//
// # Instantiation Flow
//
//  1. NewWazeroEngine compiles the module bytes once
//  2. Instantiate builds a private wazero runtime, links the host callbacks
//     and the linear memory under "env", and instantiates the module
//  3. Instance exposes the exported functions and the exported globals
//
// Engines that import their memory ("env"."memory") receive one sized by
// Config.InitialPages. Engines that define and export their own memory are
// used as-is.
//
// # Host Imports
//
//	env.putchar(i32)     - append one output byte
//	env.emu_exit()       - the guest program exited successfully
//	env.panic()          - the engine hit an unrecoverable condition
//	env.gettime64() i64  - wall clock in 100 ns units
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use. Instances are NOT thread-safe and
// should be used by a single goroutine.
package engine
