package backtrace

import (
	"fmt"
	"strings"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/runtime"
)

// Frame is one active call.
type Frame struct {
	Name string
	PC   uint32
	SP   uint32
	Args [8]uint32
}

// Resolver names a code address.
type Resolver func(pc uint32) string

// Frames converts records, stored oldest first, into frames ordered most
// recent call first. A nil resolve formats the raw PC.
func Frames(records []runtime.ShadowRecord, resolve Resolver) []Frame {
	frames := make([]Frame, len(records))
	for i, rec := range records {
		name := fmt.Sprintf("0x%08x", rec.PC)
		if resolve != nil {
			name = resolve(rec.PC)
		}
		frames[len(records)-1-i] = Frame{
			Name: name,
			PC:   rec.PC,
			SP:   rec.SP,
			Args: rec.Args,
		}
	}
	return frames
}

func (f Frame) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(" args=")
	for i, a := range f.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "0x%x", a)
	}
	fmt.Fprintf(&b, " sp=0x%08x", f.SP)
	return b.String()
}

// Format renders frames one per line, innermost first, numbered like a
// debugger backtrace.
func Format(frames []Frame) string {
	var b strings.Builder
	for i, f := range frames {
		fmt.Fprintf(&b, "#%d %s\n", i, f)
	}
	return b.String()
}

// Slot is one stack word of a frame.
type Slot struct {
	Addr  uint32
	Value uint32
	// Text is the formatted value, "??" for words never stored in the
	// current call, with the writing register appended when known.
	Text string
	// Writer names the register that stored the word, "" when unknown.
	Writer string
	// Written is false for words the sanitizer reports as unwritten.
	Written bool
	// Changed marks words touched by the last store.
	Changed bool
}

// AugmentedFrame is a frame with the stack words it owns.
type AugmentedFrame struct {
	Frame
	Slots []Slot
}

// Loader reads a 32-bit guest word.
type Loader func(addr uint32) (uint32, bool)

// WriteRange is the byte range stored by the last step.
type WriteRange struct {
	Addr uint32
	Len  uint32
}

func (r WriteRange) contains(addr uint32) bool {
	return r.Len != 0 && addr >= r.Addr && uint64(addr) < uint64(r.Addr)+uint64(r.Len)
}

const unwritten = 0xFF

// Augment lists, for every frame, the words from the inner neighbour's SP
// (liveSP for the innermost frame) up to but excluding the frame's own SP,
// highest address first. writtenBy holds one register index per stack word
// and may be nil.
func Augment(frames []Frame, liveSP uint32, load Loader, writtenBy []byte, last WriteRange) []AugmentedFrame {
	out := make([]AugmentedFrame, len(frames))
	for i, f := range frames {
		inner := liveSP
		if i > 0 {
			inner = frames[i-1].SP
		}
		out[i] = AugmentedFrame{Frame: f}
		if inner >= f.SP {
			continue
		}
		// a corrupted sp must not produce more words than the stack holds
		if f.SP-inner > rvdebug.StackLen {
			inner = f.SP - rvdebug.StackLen
		}
		for addr := f.SP - 4; addr >= inner && addr < f.SP; addr -= 4 {
			out[i].Slots = append(out[i].Slots, slot(addr, load, writtenBy, last))
		}
	}
	return out
}

func slot(addr uint32, load Loader, writtenBy []byte, last WriteRange) Slot {
	s := Slot{Addr: addr, Written: true, Text: "0", Changed: last.contains(addr)}
	if load != nil {
		if v, ok := load(addr); ok {
			s.Value = v
			s.Text = rvdebug.FormatValue(v)
		}
	}
	if writtenBy == nil || addr < rvdebug.StackBase {
		return s
	}
	off := (addr - rvdebug.StackBase) / 4
	if off >= uint32(len(writtenBy)) {
		return s
	}
	switch reg := writtenBy[off]; reg {
	case unwritten:
		s.Written = false
		s.Text = "??"
	case 0:
	default:
		s.Writer = rvdebug.DisplayName(int(reg))
		s.Text += " (" + s.Writer + ")"
	}
	return s
}
