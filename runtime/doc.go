// Package runtime drives a RISC-V execution engine through its exported
// globals and functions.
//
// # Quick Start
//
//	ctx := context.Background()
//	ad := runtime.New(emulator.New(nil), nil)
//	defer ad.Close(ctx)
//
//	asmErr, err := ad.Build(ctx, source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if asmErr != nil {
//	    fmt.Println(asmErr) // Error on line 3: Unknown opcode
//	    return
//	}
//
//	for !ad.Succeeded() && !ad.HasError() {
//	    if err := ad.Run(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	fmt.Print(ad.Output())
//
// # Engine State
//
// The Adapter owns the engine instance and its linear memory. Every read
// goes through the arena, so views stay valid across memory growth:
//
//	Registers()   - x1..x31 as of the last step
//	PC()          - program counter
//	LineTable()   - source line per instruction index
//	ShadowStack() - call records, oldest first
//	LastTrap()    - decoded runtime fault
//
// # Traps
//
// A faulting step renders one text block into the output buffer and
// marks the run as failed. Runs are capped at Config.InstructionLimit
// steps (100,000 by default).
package runtime
