package engine

import (
	"testing"

	"github.com/wippyai/rvdebug"
)

func TestSliceArena_ReadWrite(t *testing.T) {
	a := NewSliceArena(1, 0)

	if err := a.WriteU32(8, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if v, _ := a.ReadU32(8); v != 0xdeadbeef {
		t.Errorf("ReadU32 = 0x%x", v)
	}
	if v, _ := a.ReadU16(8); v != 0xbeef {
		t.Errorf("ReadU16 = 0x%x", v)
	}
	if v, _ := a.ReadU8(11); v != 0xde {
		t.Errorf("ReadU8 = 0x%x", v)
	}
	if err := a.WriteU16(0, 0x1234); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteU8(2, 0x56); err != nil {
		t.Fatal(err)
	}
	data, err := a.Read(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 0x34 || data[1] != 0x12 || data[2] != 0x56 {
		t.Errorf("Read = %x", data)
	}
}

func TestSliceArena_Bounds(t *testing.T) {
	a := NewSliceArena(1, 0)
	end := uint32(rvdebug.PageSize)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"read past end", func() error { _, err := a.Read(end-2, 4); return err }},
		{"write past end", func() error { return a.Write(end, []byte{1}) }},
		{"u32 at end", func() error { _, err := a.ReadU32(end - 3); return err }},
		{"u16 write at end", func() error { return a.WriteU16(end-1, 1) }},
		{"u8 at end", func() error { _, err := a.ReadU8(end); return err }},
		{"wrapping offset", func() error { _, err := a.Read(0xFFFFFFFF, 2); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err == nil {
				t.Error("expected out of bounds error")
			}
		})
	}
}

func TestSliceArena_Grow(t *testing.T) {
	a := NewSliceArena(1, 3)
	if err := a.WriteU32(16, 99); err != nil {
		t.Fatal(err)
	}

	prev, ok := a.Grow(2)
	if !ok || prev != 1 {
		t.Fatalf("Grow(2) = %d, %v", prev, ok)
	}
	if a.Size() != 3*rvdebug.PageSize {
		t.Errorf("size = %d", a.Size())
	}
	if v, _ := a.ReadU32(16); v != 99 {
		t.Errorf("contents lost after grow: %d", v)
	}
	if _, ok := a.Grow(1); ok {
		t.Error("grow past max should fail")
	}
}

func TestPagesFor(t *testing.T) {
	tests := []struct {
		size, need, want uint32
	}{
		{65536, 100, 0},
		{65536, 65536, 0},
		{65536, 65537, 1},
		{65536, 3 * 65536, 2},
	}
	for _, tt := range tests {
		if got := rvdebug.PagesFor(tt.size, tt.need); got != tt.want {
			t.Errorf("PagesFor(%d, %d) = %d, want %d", tt.size, tt.need, got, tt.want)
		}
	}
}
