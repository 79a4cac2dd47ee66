package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // engine module loading
	PhaseAssemble Phase = "assemble" // source assembly
	PhaseRuntime  Phase = "runtime"  // instruction execution
	PhaseDebug    Phase = "debug"    // debugger state machine
	PhaseFixture  Phase = "fixture"  // test fixture loading
	PhaseConfig   Phase = "config"   // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindAssembly         Kind = "assembly"
	KindTrap             Kind = "trap"
	KindInstructionLimit Kind = "instruction_limit"
	KindInitFailure      Kind = "init_failure"
	KindMissingExport    Kind = "missing_export"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindNotInitialized   Kind = "not_initialized"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindEnginePanic      Kind = "engine_panic"
	KindNotFound         Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InitFailure creates an engine initialization failure. It is fatal for the
// adapter that produced it.
func InitFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInitFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExport creates an error for an export the engine module lacks
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Path:   []string{name},
		Detail: fmt.Sprintf("engine does not export %q", name),
	}
}

// OutOfBounds creates a memory out of bounds error
func OutOfBounds(phase Phase, what string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   []string{what},
		Detail: fmt.Sprintf("offset 0x%x length %d outside linear memory", offset, length),
		Value:  offset,
	}
}

// NotInitialized creates an error for use before a required setup step
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: what,
	}
}

// InvalidState creates an error for an operation not allowed in the current state
func InvalidState(phase Phase, op, state string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("%s not allowed in state %s", op, state),
		Value:  state,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// EnginePanic creates an error for a panic notification raised by the engine
func EnginePanic(pc uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindEnginePanic,
		Detail: fmt.Sprintf("engine panicked at PC=0x%x", pc),
		Value:  pc,
	}
}

// Assembly creates an error carrying an assembler diagnostic
func Assembly(line int, message string) *Error {
	return &Error{
		Phase:  PhaseAssemble,
		Kind:   KindAssembly,
		Detail: fmt.Sprintf("line %d: %s", line, message),
		Value:  line,
	}
}

// Fixture creates a fixture loading error for the named resource
func Fixture(resource string, cause error) *Error {
	return &Error{
		Phase:  PhaseFixture,
		Kind:   KindNotFound,
		Path:   []string{resource},
		Detail: "fetch fixture resource",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
