package rvdebug

import "testing"

func TestRegisterIndex(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"zero", 0, true},
		{"ra", 1, true},
		{"fp", 8, true},
		{"s0", 8, true},
		{"x0", 0, true},
		{"x31", 31, true},
		{"x32", 0, false},
		{"t6", 31, true},
		{"x", 0, false},
		{"xa", 0, false},
		{"r1", 0, false},
	}
	for _, tt := range tests {
		got, ok := RegisterIndex(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RegisterIndex(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[int]string{0: "zero", 8: "fp/s0", 9: "s1", 31: "t6", 32: ""}
	for idx, want := range tests {
		if got := DisplayName(idx); got != want {
			t.Errorf("DisplayName(%d) = %q, want %q", idx, got, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    uint32
		want string
	}{
		{0, "0"},
		{42, "42"},
		{0xffffffff, "4294967295"},
		{TextBase, "0x00400000"},
		{DataBase + 8, "0x10000008"},
		{StackTop, "0x7ffff000"},
		{StackBase - 4, "2147475452"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v); got != tt.want {
			t.Errorf("FormatValue(%#x) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestTrapKind(t *testing.T) {
	if !TrapUninitRegister.CallSan() || !TrapUnwrittenStack.CallSan() {
		t.Error("calling-convention traps not classified")
	}
	if TrapLoad.CallSan() || TrapInstructionLimit.CallSan() {
		t.Error("machine traps classified as calling-convention traps")
	}
	if got := TrapKind(42).String(); got != "trap 42" {
		t.Errorf("String() = %q", got)
	}
}
