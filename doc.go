// Package rvdebug provides a debugger and execution-control core for a RISC-V
// (RV32IM) execution engine hosted behind a shared linear memory.
//
// The engine assembles source text and executes one instruction per call,
// publishing its state (registers, program counter, trap words, line-number
// table, shadow call stack) at fixed addresses inside the memory it shares
// with the host. This library drives that engine and turns the raw memory
// back into debugger concepts.
//
// # Architecture Overview
//
//	rvdebug/          Root package with Memory/Arena interfaces and address-space constants
//	├── engine/       Engine capability interfaces and the wazero-hosted engine module
//	├── emulator/     Pure Go engine with the same memory ABI (assembler, RV32IM, sanitizer)
//	├── runtime/      Adapter: build, single-step, trap decoding, symbols, shadow stack
//	├── backtrace/    Call-frame reconstruction from shadow-stack records
//	├── debugger/     Session state machine: run, step, step over, continue, test suites
//	├── fixture/      Test-suite fixture loading
//	├── errors/       Structured error types
//	└── cmd/rvdebug/  Command line front end (run, test, debug TUI, repl)
//
// # Quick Start
//
//	adapter := runtime.New(emulator.New(nil), nil)
//	defer adapter.Close(ctx)
//
//	src := debugger.NewStaticSource(asmText)
//	sess := debugger.NewSession(adapter, src)
//	if err := sess.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(debugger.Output(sess.State()))
//
// # Memory Model
//
// Linear memory can only grow. Growth reallocates the backing store, so the
// adapter never keeps a slice into it across calls: every register, trap word
// or table read goes through the Arena at the moment it is needed.
//
// # Thread Safety
//
// Nothing in this module is safe for concurrent use. A session, its adapter
// and its engine instance belong to a single goroutine.
package rvdebug
