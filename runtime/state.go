package runtime

import (
	"context"
	"fmt"

	"github.com/wippyai/rvdebug"
)

// Registers holds x1..x31; x0 is always zero and not stored.
type Registers [rvdebug.NumRegs - 1]uint32

// Get returns register idx, zero for x0 and out-of-range indices.
func (r Registers) Get(idx uint32) uint32 {
	if idx == 0 || idx >= rvdebug.NumRegs {
		return 0
	}
	return r[idx-1]
}

// ShadowRecordWords is the stride of a shadow-stack record in 32-bit words.
const ShadowRecordWords = 24

// ShadowRecord is one call on the engine's shadow stack.
type ShadowRecord struct {
	PC       uint32
	SP       uint32
	Args     [8]uint32
	Reserved [ShadowRecordWords - 10]uint32
}

// Registers returns a snapshot of x1..x31.
func (a *Adapter) Registers() Registers {
	var r Registers
	for i := range r {
		r[i] = a.u32(a.addrs.regs + 4*uint32(i+1))
	}
	return r
}

// PC returns the program counter.
func (a *Adapter) PC() uint32 {
	return a.u32(a.addrs.pc)
}

// SP returns the stack pointer.
func (a *Adapter) SP() uint32 {
	return a.u32(a.addrs.regs + 4*rvdebug.RegSP)
}

// LineTable returns the source line of every assembled instruction, indexed
// by (pc - TextBase) / 4.
func (a *Adapter) LineTable() []uint32 {
	if a.mem == nil {
		return nil
	}
	n := a.u32(a.addrs.textByLinenum)
	ptr := a.u32(a.addrs.textByLinenum + 8)
	lines := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := a.mem.ReadU32(ptr + 4*i)
		if err != nil {
			break
		}
		lines = append(lines, v)
	}
	return lines
}

// ShadowStack returns the call records, oldest first.
func (a *Adapter) ShadowStack() []ShadowRecord {
	if a.mem == nil {
		return nil
	}
	n := a.u32(a.addrs.shadowStack)
	ptr := a.u32(a.addrs.shadowStack + 8)
	records := make([]ShadowRecord, 0, n)
	for i := uint32(0); i < n; i++ {
		base := ptr + i*ShadowRecordWords*4
		var words [ShadowRecordWords]uint32
		for w := range words {
			words[w] = a.u32(base + uint32(w)*4)
		}
		rec := ShadowRecord{PC: words[0], SP: words[1]}
		copy(rec.Args[:], words[2:10])
		copy(rec.Reserved[:], words[10:])
		records = append(records, rec)
	}
	return records
}

// StringFromPC resolves pc to the closest preceding label, or formats it
// as 0x-prefixed hex when no label precedes it.
func (a *Adapter) StringFromPC(ctx context.Context, pc uint32) string {
	if a.labels != nil {
		if v, ok := a.labels.Get(pc); ok {
			return v.(string)
		}
	}
	s := fmt.Sprintf("0x%08x", pc)
	if a.inst != nil && a.inst.PCToLabel(ctx, pc) == nil {
		if ptr := a.u32(a.addrs.labelText); ptr != 0 {
			n := a.u32(a.addrs.labelLen)
			if b, err := a.mem.Read(ptr, n); err == nil {
				s = string(b)
			}
		}
	}
	if a.labels != nil {
		a.labels.Add(pc, s)
	}
	return s
}

// Output returns the accumulated program output and trap texts.
func (a *Adapter) Output() string {
	return a.output.String()
}

// AppendOutput appends text to the output buffer.
func (a *Adapter) AppendOutput(s string) {
	a.output.WriteString(s)
}

// Succeeded reports whether the program signalled a clean exit.
func (a *Adapter) Succeeded() bool {
	return a.succeeded
}

// HasError reports whether the run ended in a trap.
func (a *Adapter) HasError() bool {
	return a.hasError
}

// LastTrap returns the trap that ended the run, or nil.
func (a *Adapter) LastTrap() *Trap {
	if a.trap == nil {
		return nil
	}
	t := *a.trap
	return &t
}

// Instructions returns the number of steps since the last build.
func (a *Adapter) Instructions() int {
	return a.instructions
}

// RegWritten returns the register written by the last step, 0 for none.
func (a *Adapter) RegWritten() uint32 {
	return a.u32(a.addrs.regWritten)
}

// MemWritten returns the byte range stored by the last step. n is 0 when
// the step did not store.
func (a *Adapter) MemWritten() (addr, n uint32) {
	return a.u32(a.addrs.memWrittenAddr), a.u32(a.addrs.memWrittenLen)
}

// Load reads size bytes of guest memory through the engine.
func (a *Adapter) Load(ctx context.Context, addr uint32, size int) (uint32, error) {
	if a.inst == nil {
		return 0, nil
	}
	return a.inst.Load(ctx, addr, size)
}

// StackWrittenBy returns, per stack word, the register that last stored to
// it (0xFF when unwritten). ok is false for engines without the table.
func (a *Adapter) StackWrittenBy() ([]byte, bool) {
	if !a.addrs.hasWrittenBy || a.mem == nil {
		return nil, false
	}
	b, err := a.mem.Read(a.addrs.stackWrittenBy, rvdebug.StackLen/4)
	if err != nil {
		return nil, false
	}
	return append([]byte(nil), b...), true
}
