package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindMissingExport,
				Path:   []string{"exports", "g_regs"},
				Detail: "engine does not export it",
			},
			contains: []string{"[load]", "missing_export", "exports.g_regs", "engine does not export it"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[runtime]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInitFailure,
				Detail: "instantiate engine",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "init_failure", "instantiate engine", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InitFailure("compile engine", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not walk to cause")
	}
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseRuntime, "g_pc", 0x10, 4)

	if !errors.Is(err, &Error{Phase: PhaseRuntime, Kind: KindOutOfBounds}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseLoad, Kind: KindOutOfBounds}) {
		t.Error("unexpected match with different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseRuntime, Kind: KindInvalidData}) {
		t.Error("unexpected match with different kind")
	}
}

func TestError_As(t *testing.T) {
	var wrapped error = Wrap(PhaseDebug, KindInvalidState, MissingExport("g_pc"), "step")

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed")
	}
	if target.Kind != KindInvalidState {
		t.Errorf("got kind %s", target.Kind)
	}

	inner := errors.Unwrap(wrapped)
	if !errors.As(inner, &target) || target.Kind != KindMissingExport {
		t.Errorf("inner error not a missing export: %v", inner)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseLoad, KindMissingExport).
		Path("g_shadow_stack").
		Value(uint32(7)).
		Detail("missing %s", "g_shadow_stack").
		Cause(cause).
		Build()

	if err.Phase != PhaseLoad || err.Kind != KindMissingExport {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 1 || err.Path[0] != "g_shadow_stack" {
		t.Errorf("unexpected path %v", err.Path)
	}
	if err.Value != uint32(7) {
		t.Errorf("unexpected value %v", err.Value)
	}
	if err.Detail != "missing g_shadow_stack" {
		t.Errorf("unexpected detail %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
		want  string
	}{
		{"assembly", Assembly(3, "Unknown opcode"), PhaseAssemble, KindAssembly, "line 3: Unknown opcode"},
		{"not initialized", NotInitialized(PhaseRuntime, "build before run"), PhaseRuntime, KindNotInitialized, "build before run"},
		{"invalid state", InvalidState(PhaseDebug, "step", "idle"), PhaseDebug, KindInvalidState, "step not allowed in state idle"},
		{"not found", NotFound(PhaseFixture, "resource", "testcases.json"), PhaseFixture, KindNotFound, `resource "testcases.json" not found`},
		{"panic", EnginePanic(0x400000), PhaseRuntime, KindEnginePanic, "PC=0x400000"},
		{"fixture", Fixture("assignment.md", errors.New("gone")), PhaseFixture, KindNotFound, "assignment.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got %s/%s, want %s/%s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("%q does not contain %q", tt.err.Error(), tt.want)
			}
		})
	}
}
