package runtime

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/errors"
)

// AssemblyError is a diagnostic reported by the engine's assembler.
type AssemblyError struct {
	Line    int
	Message string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("Error on line %d: %s", e.Line, e.Message)
}

// Build restores pristine engine memory and assembles source. A source
// the assembler rejects yields a non-nil AssemblyError and a nil error.
func (a *Adapter) Build(ctx context.Context, source string) (*AssemblyError, error) {
	if err := a.LoadModule(ctx); err != nil {
		return nil, err
	}
	if a.inst == nil {
		return nil, errors.NotInitialized(errors.PhaseAssemble, "engine instance")
	}

	a.succeeded = false
	a.hasError = false
	a.trap = nil
	a.instructions = 0
	a.built = false
	a.output.Reset()
	a.labels.Purge()

	if err := a.mem.Write(0, a.pristine); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindOutOfBounds, err, "restore pristine memory")
	}

	src := []byte(source)
	offset := a.addrs.heapBase
	end := uint64(offset) + uint64(len(src))
	if end > math.MaxUint32 {
		return nil, errors.OutOfBounds(errors.PhaseAssemble, "source", offset, uint32(len(src)))
	}
	if size := a.mem.Size(); end > uint64(size) {
		if _, ok := a.mem.Grow(rvdebug.PagesFor(size, uint32(end))); !ok {
			return nil, errors.OutOfBounds(errors.PhaseAssemble, "source", offset, uint32(len(src)))
		}
	}

	if err := a.mem.Write(offset, src); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindOutOfBounds, err, "write source")
	}
	if err := a.mem.WriteU32(a.addrs.heapSize, (uint32(len(src))+7)&^7); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindOutOfBounds, err, "write heap size")
	}
	if err := a.inst.Assemble(ctx, offset, uint32(len(src)), false); err != nil {
		return nil, err
	}

	if ptr := a.u32(a.addrs.err); ptr != 0 {
		asmErr := &AssemblyError{
			Line:    int(a.u32(a.addrs.errLine)),
			Message: a.cString(ptr),
		}
		Logger().Debug("assembly error", zap.Int("line", asmErr.Line), zap.String("message", asmErr.Message))
		return asmErr, nil
	}

	a.built = true
	Logger().Debug("build complete", zap.Int("source_bytes", len(src)), zap.Uint32("pc", a.PC()))
	return nil, nil
}

// cString reads a NUL-terminated string from the arena.
func (a *Adapter) cString(ptr uint32) string {
	size := a.mem.Size()
	if ptr >= size {
		return ""
	}
	b, err := a.mem.Read(ptr, size-ptr)
	if err != nil {
		return ""
	}
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b)
}
