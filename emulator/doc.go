// Package emulator is a pure-Go engine for the debugger: an RV32IM
// assembler, a single-step executor and a calling-convention sanitizer.
//
// It implements engine.Engine and publishes its state into a linear memory
// arena at fixed addresses, under the same exported-global names and layouts
// as the WebAssembly engine module, so the runtime adapter drives either one
// through the same reads and writes.
//
//	e := emulator.New(nil)
//	inst, err := e.Instantiate(ctx, host)
//
// Guest memory layout:
//
//	.text   0x00400000..0x10000000  read, execute
//	.data   0x10000000..0x70000000  read, write
//	stack   0x7FFFE000..0x7FFFF000  read, write, filled with 0xAB
//
// Only bytes the program emitted into .text and .data are addressable.
//
// Environment calls select a service with a7: 1 print int, 4 print string,
// 11 print char, 34 print hex, 35 print binary, 10/7/93 exit.
package emulator
