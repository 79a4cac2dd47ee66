package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/errors"
)

// Trap is a decoded runtime fault.
type Trap struct {
	Kind   rvdebug.TrapKind
	PC     uint32
	Params [2]uint32
}

func (t Trap) String() string {
	return fmt.Sprintf("%s trap at PC=0x%x", t.Kind, t.PC)
}

// Err converts the trap into a structured error.
func (t Trap) Err() error {
	kind := errors.KindTrap
	if t.Kind == rvdebug.TrapInstructionLimit {
		kind = errors.KindInstructionLimit
	}
	return errors.New(errors.PhaseRuntime, kind).
		Value(t.PC).
		Detail("%s", t).
		Build()
}

// Run executes exactly one instruction. Faults are not Go errors: they are
// rendered into the output buffer and reported by HasError and LastTrap.
func (a *Adapter) Run(ctx context.Context) error {
	if !a.built || a.inst == nil {
		return errors.NotInitialized(errors.PhaseRuntime, "program")
	}
	if err := a.inst.Emulate(ctx); err != nil {
		return err
	}
	a.instructions++

	if a.instructions >= a.cfg.InstructionLimit && !a.succeeded {
		a.fail(Trap{Kind: rvdebug.TrapInstructionLimit, PC: a.PC()},
			fmt.Sprintf("ERROR: instruction limit %d reached\n", a.cfg.InstructionLimit))
		return nil
	}

	if kind := a.u32(a.addrs.errType); kind != 0 {
		t := Trap{
			Kind: rvdebug.TrapKind(kind),
			PC:   a.PC(),
			Params: [2]uint32{
				a.u32(a.addrs.errParams),
				a.u32(a.addrs.errParams + 4),
			},
		}
		a.fail(t, trapText(t, a.Registers()))
	}
	return nil
}

func (a *Adapter) fail(t Trap, text string) {
	a.trap = &t
	a.hasError = true
	a.output.WriteString(text)
	Logger().Debug("trap",
		zap.Stringer("kind", t.Kind),
		zap.Uint32("pc", t.PC),
		zap.Int("instructions", a.instructions))
}

func hex8(v uint32) string {
	return fmt.Sprintf("%08x", v)
}

// trapText renders the output block of a trap. regs holds x1..x31 at the
// faulting step.
func trapText(t Trap, regs Registers) string {
	pc := fmt.Sprintf("PC=0x%x", t.PC)
	p0, p1 := t.Params[0], t.Params[1]

	mismatch := func(what string, cur uint32) string {
		return fmt.Sprintf("CallSan: %s\n%s has different value at the beginning and end of the function.\nPrev: %s\nCurr: %s\nCheck the calling convention!\n",
			pc, what, hex8(p1), hex8(cur))
	}

	switch t.Kind {
	case rvdebug.TrapFetch:
		return fmt.Sprintf("ERROR: cannot fetch instruction from %s\n", pc)
	case rvdebug.TrapLoad:
		return fmt.Sprintf("ERROR: cannot load from address 0x%s at %s\n", hex8(p0), pc)
	case rvdebug.TrapStore:
		return fmt.Sprintf("ERROR: cannot store to address 0x%s at %s\n", hex8(p0), pc)
	case rvdebug.TrapUnhandledInsn:
		return fmt.Sprintf("ERROR: unhandled instruction at %s\n", pc)
	case rvdebug.TrapUninitRegister:
		return fmt.Sprintf("CallSan: %s\nAttempted to read from uninitialized register %s. Check the calling convention!\n",
			pc, rvdebug.DisplayName(int(p0)))
	case rvdebug.TrapCalleeSaved:
		return mismatch("Callee-saved register "+rvdebug.DisplayName(int(p0)), regs.Get(p0))
	case rvdebug.TrapSPMismatch:
		return mismatch("Register sp", regs.Get(rvdebug.RegSP))
	case rvdebug.TrapRAMismatch:
		return mismatch("Register ra", regs.Get(rvdebug.RegRA))
	case rvdebug.TrapReturnWithoutCall:
		return fmt.Sprintf("CallSan: %s\nReturn without matching call!\n", pc)
	case rvdebug.TrapUnwrittenStack:
		return fmt.Sprintf("CallSan: %s\nAttempted to read from stack address 0x%s, which hasn't been written to in the current function.\n",
			pc, hex8(p0))
	default:
		return fmt.Sprintf("ERROR%d: %s %x\n", uint32(t.Kind), pc, p0)
	}
}
