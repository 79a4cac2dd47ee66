package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/wippyai/rvdebug/debugger"
	"github.com/wippyai/rvdebug/emulator"
	"github.com/wippyai/rvdebug/runtime"
)

const countdown = `.globl _start
_start:
    li s1, 3
loop:
    mv a0, s1
    li a7, 1
    ecall
    addi s1, s1, -1
    bnez s1, loop
    li a7, 10
    ecall`

func newTestRepl(t *testing.T, text string) (*repl, *bytes.Buffer) {
	t.Helper()
	oldNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = oldNoColor })

	ctx := context.Background()
	a := runtime.New(emulator.New(nil), nil)
	t.Cleanup(func() { _ = a.Close(ctx) })
	src := debugger.NewStaticSource(text)
	ws := &workspace{path: "test.S", source: src, session: debugger.NewSession(a, src), close: func() {}}

	var out bytes.Buffer
	r := newRepl(ctx, ws, &out)
	if err := ws.session.StartDebug(ctx); err != nil {
		t.Fatalf("StartDebug: %v", err)
	}
	return r, &out
}

func TestRepl_Lookup(t *testing.T) {
	r, _ := newTestRepl(t, countdown)

	tests := []struct {
		input   string
		want    string
		wantErr string
	}{
		{"step", "step", ""},
		{"s", "step", ""},
		{"cont", "continue", ""},
		{"backt", "bt", ""},
		{"q", "quit", ""},
		{"exit", "quit", ""},
		{"st", "", "ambiguous"},
		{"re", "", "ambiguous"},
		{"frobnicate", "", "not available"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := r.lookup(tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("lookup(%q) error = %v, want %q", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("lookup(%q): %v", tt.input, err)
			}
			if c.aliases[0] != tt.want {
				t.Errorf("lookup(%q) = %s, want %s", tt.input, c.aliases[0], tt.want)
			}
		})
	}
}

func TestRepl_BreakAndContinue(t *testing.T) {
	r, out := newTestRepl(t, countdown)

	for _, cmd := range []string{"break 8", "continue"} {
		if err := r.exec(cmd); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
	}
	if !strings.Contains(out.String(), "> 0x00400010 8:\taddi s1, s1, -1") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := r.exec("clear 8"); err != nil {
		t.Fatal(err)
	}
	if err := r.exec("c"); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "21\nExecuted successfully.") || !strings.Contains(got, "Program exited.") {
		t.Errorf("output = %q", got)
	}

	if err := r.exec("step"); err == nil || !strings.Contains(err.Error(), "not being debugged") {
		t.Errorf("step after exit = %v", err)
	}
}

func TestRepl_RegsAndStack(t *testing.T) {
	r, out := newTestRepl(t, countdown)
	if err := r.exec("s"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := r.exec("regs"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "s1     3") {
		t.Errorf("regs = %q", out.String())
	}
	if n := strings.Count(out.String(), "\n"); n != 31 {
		t.Errorf("regs printed %d lines, want 31", n)
	}

	out.Reset()
	if err := r.exec("bt"); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("bt outside any call = %q", out.String())
	}
}

func TestRepl_Quit(t *testing.T) {
	r, _ := newTestRepl(t, countdown)
	if err := r.exec("quit"); err != errQuit {
		t.Fatalf("quit = %v", err)
	}
	if r.ws.session.State().Status() != debugger.StatusIdle {
		t.Errorf("state = %s, want idle", r.ws.session.State().Status())
	}
}

func TestWriteReport(t *testing.T) {
	oldNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = oldNoColor }()

	table := []debugger.CaseResult{
		{Input: "5", Expected: "25", Actual: "25"},
		{Input: "3", Expected: "9", Actual: "10"},
		{Input: "1\n2", Expected: "3", Actual: "ERROR: cannot load", RunErr: true},
	}
	var out bytes.Buffer
	if passed := writeReport(&out, table); passed != 1 {
		t.Errorf("passed = %d, want 1", passed)
	}
	got := out.String()
	for _, want := range []string{"PASS", "FAIL", "CRASH", `"1\n2"`, "1/3 passed"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}
