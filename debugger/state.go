package debugger

import (
	"github.com/wippyai/rvdebug/backtrace"
	"github.com/wippyai/rvdebug/errors"
	"github.com/wippyai/rvdebug/runtime"
)

// Status names a State variant.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusDebug     Status = "debug"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
	StatusAsmErr    Status = "asmerr"
	StatusTestSuite Status = "testsuite"
)

// State is the current runtime display of a session. The variants are
// Idle, Running, Debug, Error, Stopped, AsmErr and TestSuite.
type State interface {
	Status() Status
	// Version is the session version at which the state was committed.
	Version() uint64
	sealed()
}

type stamp struct {
	version uint64
}

func (s stamp) Version() uint64 { return s.version }
func (stamp) sealed()            {}

// Idle is the resting state: nothing runs and nothing is paused.
type Idle struct {
	stamp
}

// Running is committed while a program runs to completion.
type Running struct {
	stamp
	Output string
	PC     uint32
	Regs   runtime.Registers
}

// Debug is a paused program.
type Debug struct {
	stamp
	Output    string
	PC        uint32
	Regs      runtime.Registers
	Backtrace []backtrace.Frame
}

// Error is a program halted by a trap or the instruction limit.
type Error struct {
	stamp
	Output    string
	PC        uint32
	Regs      runtime.Registers
	Backtrace []backtrace.Frame
}

// Stopped is a program that exited cleanly.
type Stopped struct {
	stamp
	Output string
	PC     uint32
	Regs   runtime.Registers
}

// AsmErr is a build rejected by the assembler.
type AsmErr struct {
	stamp
	Output  string
	Line    int
	Message string
}

// Err returns the diagnostic as a structured error.
func (s AsmErr) Err() error {
	return errors.Assembly(s.Line, s.Message)
}

// TestSuite holds the results of the last sweep over the fixture cases.
type TestSuite struct {
	stamp
	Table []CaseResult
}

func (Idle) Status() Status      { return StatusIdle }
func (Running) Status() Status   { return StatusRunning }
func (Debug) Status() Status     { return StatusDebug }
func (Error) Status() Status     { return StatusError }
func (Stopped) Status() Status   { return StatusStopped }
func (AsmErr) Status() Status    { return StatusAsmErr }
func (TestSuite) Status() Status { return StatusTestSuite }

// Output returns the console text of st, empty for states without one.
func Output(st State) string {
	switch s := st.(type) {
	case Running:
		return s.Output
	case Debug:
		return s.Output
	case Error:
		return s.Output
	case Stopped:
		return s.Output
	case AsmErr:
		return s.Output
	default:
		return ""
	}
}

// Outcome classifies a test case run.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeCrashed
	OutcomeMismatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeCrashed:
		return "crashed"
	case OutcomeMismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// CaseResult is one row of a test-suite sweep. Actual is the trimmed
// program output. RunErr is set when the program did not exit cleanly.
type CaseResult struct {
	Input    string
	Expected string
	Actual   string
	RunErr   bool
}

// Outcome compares the trimmed outputs exactly.
func (r CaseResult) Outcome() Outcome {
	switch {
	case r.RunErr:
		return OutcomeCrashed
	case r.Actual != trim(r.Expected):
		return OutcomeMismatched
	default:
		return OutcomePassed
	}
}
