package backtrace

import (
	"testing"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/runtime"
)

func TestFrames_Order(t *testing.T) {
	records := []runtime.ShadowRecord{
		{PC: 0x400010, SP: rvdebug.StackTop, Args: [8]uint32{1}},
		{PC: 0x400040, SP: rvdebug.StackTop - 16, Args: [8]uint32{2}},
		{PC: 0x400080, SP: rvdebug.StackTop - 48},
	}
	names := map[uint32]string{0x400010: "main", 0x400040: "fib"}
	resolve := func(pc uint32) string {
		if n, ok := names[pc]; ok {
			return n
		}
		return "?"
	}

	frames := Frames(records, resolve)
	want := []struct {
		name string
		sp   uint32
	}{
		{"?", rvdebug.StackTop - 48},
		{"fib", rvdebug.StackTop - 16},
		{"main", rvdebug.StackTop},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if frames[i].Name != w.name || frames[i].SP != w.sp {
			t.Errorf("frame %d = %s/%#x, want %s/%#x", i, frames[i].Name, frames[i].SP, w.name, w.sp)
		}
	}
	if frames[1].Args[0] != 2 {
		t.Errorf("fib arg0 = %d, want 2", frames[1].Args[0])
	}
}

func TestFrames_NilResolver(t *testing.T) {
	frames := Frames([]runtime.ShadowRecord{{PC: 0x400010}}, nil)
	if frames[0].Name != "0x00400010" {
		t.Errorf("name = %q", frames[0].Name)
	}
	if len(Frames(nil, nil)) != 0 {
		t.Error("frames from empty records")
	}
}

func TestFormat(t *testing.T) {
	f := Frame{Name: "f", SP: rvdebug.StackTop, Args: [8]uint32{1, 0x10}}
	want := "f args=0x1,0x10,0x0,0x0,0x0,0x0,0x0,0x0 sp=0x7ffff000"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Format([]Frame{f}); got != "#0 "+want+"\n" {
		t.Errorf("Format() = %q", got)
	}
}

func TestAugment(t *testing.T) {
	top := rvdebug.StackTop
	frames := []Frame{
		{Name: "inner", SP: top - 16},
		{Name: "outer", SP: top},
	}
	memory := map[uint32]uint32{
		top - 4:  rvdebug.TextBase + 4,
		top - 8:  7,
		top - 20: 99,
	}
	load := func(addr uint32) (uint32, bool) {
		v, ok := memory[addr]
		return v, ok
	}
	writtenBy := make([]byte, rvdebug.StackLen/4)
	for i := range writtenBy {
		writtenBy[i] = unwritten
	}
	slotOf := func(addr uint32) uint32 { return (addr - rvdebug.StackBase) / 4 }
	writtenBy[slotOf(top-4)] = rvdebug.RegRA
	writtenBy[slotOf(top-8)] = rvdebug.RegFP
	writtenBy[slotOf(top-12)] = 0
	writtenBy[slotOf(top-20)] = rvdebug.RegS1

	got := Augment(frames, top-24, load, writtenBy, WriteRange{Addr: top - 8, Len: 4})
	if len(got) != 2 {
		t.Fatalf("got %d frames", len(got))
	}

	inner := got[0]
	if inner.Name != "inner" || len(inner.Slots) != 2 {
		t.Fatalf("inner = %s with %d slots, want 2", inner.Name, len(inner.Slots))
	}
	if s := inner.Slots[0]; s.Addr != top-20 || s.Text != "99 (s1)" || s.Writer != "s1" {
		t.Errorf("inner slot 0 = %+v", s)
	}
	if s := inner.Slots[1]; s.Addr != top-24 || s.Written || s.Text != "??" {
		t.Errorf("inner slot 1 = %+v", s)
	}

	outer := got[1]
	want := []struct {
		addr    uint32
		text    string
		changed bool
	}{
		{top - 4, "0x00400004 (ra)", false},
		{top - 8, "7 (fp/s0)", true},
		{top - 12, "0", false},
		{top - 16, "??", false},
	}
	if len(outer.Slots) != len(want) {
		t.Fatalf("outer has %d slots, want %d", len(outer.Slots), len(want))
	}
	for i, w := range want {
		s := outer.Slots[i]
		if s.Addr != w.addr || s.Text != w.text || s.Changed != w.changed {
			t.Errorf("outer slot %d = %+v, want addr %#x text %q changed %v", i, s, w.addr, w.text, w.changed)
		}
	}
}

func TestAugment_WithoutCoverage(t *testing.T) {
	frames := []Frame{{Name: "f", SP: rvdebug.StackTop}}
	got := Augment(frames, rvdebug.StackTop-8, nil, nil, WriteRange{})
	if len(got[0].Slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(got[0].Slots))
	}
	for _, s := range got[0].Slots {
		if s.Text != "0" || !s.Written || s.Writer != "" {
			t.Errorf("slot = %+v", s)
		}
	}
}

func TestAugment_EmptyAndCorrupt(t *testing.T) {
	frames := []Frame{{Name: "f", SP: rvdebug.StackTop}}
	if got := Augment(frames, rvdebug.StackTop, nil, nil, WriteRange{}); len(got[0].Slots) != 0 {
		t.Errorf("frame at live sp has %d slots", len(got[0].Slots))
	}
	got := Augment(frames, 0, nil, nil, WriteRange{})
	if n := len(got[0].Slots); n != int(rvdebug.StackLen/4) {
		t.Errorf("corrupt sp produced %d slots, want %d", n, rvdebug.StackLen/4)
	}
}
