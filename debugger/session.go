package debugger

import (
	"context"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/backtrace"
	"github.com/wippyai/rvdebug/errors"
	"github.com/wippyai/rvdebug/fixture"
	"github.com/wippyai/rvdebug/runtime"
)

// CompletionText is appended to the output of a program that exits cleanly.
const CompletionText = "Executed successfully."

// ErrNotDebugging matches, through errors.Is, the error returned by step
// operations outside the debug state.
var ErrNotDebugging = errors.New(errors.PhaseDebug, errors.KindInvalidState).
	Detail("not debugging").
	Build()

// tempBreakpoint is the return point armed by StepOver. Both fields must
// match: a recursive callee revisits Addr at a deeper SP.
type tempBreakpoint struct {
	Addr uint32
	SP   uint32
}

// Session is the debugger context for one program source. It is NOT
// thread-safe.
type Session struct {
	id       uuid.UUID
	adapter  *runtime.Adapter
	source   Source
	fixtures *fixture.Set
	log      *zap.Logger

	state   State
	version uint64
	latest  string

	breakpoints map[uint32]struct{}
	temp        *tempBreakpoint
	suite       []CaseResult

	subscribers map[int]func(State)
	nextSub     int
}

// NewSession creates an idle session driving adapter with the program text
// supplied by src.
func NewSession(adapter *runtime.Adapter, src Source) *Session {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.Nil
	}
	return &Session{
		id:          id,
		adapter:     adapter,
		source:      src,
		log:         Logger().With(zap.String("session", id.String())),
		state:       Idle{},
		breakpoints: make(map[uint32]struct{}),
		subscribers: make(map[int]func(State)),
	}
}

// SetFixtures installs the test suite used by RunTestSuite and
// StartDebugCase.
func (s *Session) SetFixtures(set *fixture.Set) { s.fixtures = set }

// Fixtures returns the installed test suite, or nil.
func (s *Session) Fixtures() *fixture.Set { return s.fixtures }

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id.String() }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Version returns the number of committed transitions.
func (s *Session) Version() uint64 { return s.version }

// Adapter returns the underlying adapter.
func (s *Session) Adapter() *runtime.Adapter { return s.adapter }

// Subscribe registers fn to receive every committed state. The returned
// function removes it.
func (s *Session) Subscribe(fn func(State)) func() {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

func (s *Session) stamp() stamp {
	s.version++
	return stamp{version: s.version}
}

func (s *Session) commit(st State) {
	s.state = st
	s.log.Debug("state", zap.String("status", string(st.Status())), zap.Uint64("version", st.Version()))
	for _, fn := range s.subscribers {
		fn(st)
	}
}

// Build assembles the current source. An assembler diagnostic commits
// AsmErr and is returned alongside a nil error. Rebuilding the source that
// produced a Stopped state keeps that state; any other successful build
// commits Idle.
func (s *Session) Build(ctx context.Context) (*runtime.AssemblyError, error) {
	text := s.source.Text()
	return s.build(ctx, text, text)
}

// build assembles text. key is the user-visible source used by the
// unchanged-source check.
func (s *Session) build(ctx context.Context, text, key string) (*runtime.AssemblyError, error) {
	asmErr, err := s.adapter.Build(ctx, text)
	if err != nil {
		return nil, err
	}
	if asmErr != nil {
		s.commit(AsmErr{
			stamp:   s.stamp(),
			Output:  asmErr.Error(),
			Line:    asmErr.Line,
			Message: asmErr.Message,
		})
		s.source.Revalidate()
	} else if s.state.Status() != StatusStopped || key != s.latest {
		s.commit(Idle{stamp: s.stamp()})
	}
	s.latest = key
	return asmErr, nil
}

// Run builds the source and executes it to completion.
func (s *Session) Run(ctx context.Context) error {
	asmErr, err := s.Build(ctx)
	if err != nil || asmErr != nil {
		return err
	}
	s.commitRunning()
	if err := s.runToEnd(ctx); err != nil {
		return err
	}
	s.completion()
	s.commitQuiescent(ctx)
	return nil
}

// StartDebug builds the source and pauses at the entry point.
func (s *Session) StartDebug(ctx context.Context) error {
	asmErr, err := s.Build(ctx)
	if err != nil || asmErr != nil {
		return err
	}
	s.enterDebug()
	return nil
}

func (s *Session) enterDebug() {
	s.temp = nil
	s.commit(Debug{
		stamp: s.stamp(),
		PC:    s.adapter.PC(),
		Regs:  s.adapter.Registers(),
	})
}

// SingleStep executes one instruction.
func (s *Session) SingleStep(ctx context.Context) error {
	if err := s.requireDebug("single step"); err != nil {
		return err
	}
	s.setBreakpoints()
	if err := s.adapter.Run(ctx); err != nil {
		return err
	}
	s.commitQuiescent(ctx)
	return nil
}

// StepOver runs a call at the current PC until it returns to the next
// instruction at the same stack depth. Any other instruction is single
// stepped.
func (s *Session) StepOver(ctx context.Context) error {
	if err := s.requireDebug("step over"); err != nil {
		return err
	}
	pc := s.adapter.PC()
	inst, err := s.adapter.Load(ctx, pc, 4)
	if err != nil {
		return err
	}
	if !isCall(inst) {
		return s.SingleStep(ctx)
	}
	s.temp = &tempBreakpoint{Addr: pc + 4, SP: s.adapter.SP()}
	s.log.Debug("step over", zap.Uint32("pc", pc), zap.Uint32("return", pc+4))
	return s.Continue(ctx)
}

// isCall reports whether inst is a jal or jalr linking through ra.
func isCall(inst uint32) bool {
	opcode := inst & 0x7f
	funct3 := (inst >> 12) & 7
	rd := (inst >> 7) & 0x1f
	isJal := opcode == 0x6f
	isJalr := opcode == 0x67 && funct3 == 0
	return (isJal || isJalr) && rd == rvdebug.RegRA
}

// Continue steps until the armed step-over return point, a user breakpoint,
// a clean exit or a trap, whichever comes first.
func (s *Session) Continue(ctx context.Context) error {
	if err := s.requireDebug("continue"); err != nil {
		return err
	}
	s.setBreakpoints()
	for {
		if err := s.adapter.Run(ctx); err != nil {
			return err
		}
		pc := s.adapter.PC()
		if s.temp != nil && s.temp.Addr == pc && s.temp.SP == s.adapter.SP() {
			s.temp = nil
			break
		}
		if _, ok := s.breakpoints[pc]; ok {
			s.log.Debug("breakpoint", zap.Uint32("pc", pc), zap.Int("line", s.lineAt(pc)))
			break
		}
		if s.adapter.Succeeded() || s.adapter.HasError() {
			break
		}
	}
	s.completion()
	s.commitQuiescent(ctx)
	return nil
}

// Quit leaves debugging unconditionally.
func (s *Session) Quit() {
	s.temp = nil
	s.commit(Idle{stamp: s.stamp()})
}

// RunTestSuite runs every fixture case to completion and commits the
// results. An assembly error stops the sweep in AsmErr.
func (s *Session) RunTestSuite(ctx context.Context) error {
	if s.fixtures == nil {
		return errors.NotInitialized(errors.PhaseDebug, "test fixtures")
	}
	table := make([]CaseResult, 0, len(s.fixtures.Cases))
	for i, c := range s.fixtures.Cases {
		asmErr, err := s.buildCase(ctx, i)
		if err != nil || asmErr != nil {
			return err
		}
		s.commitRunning()
		if err := s.runToEnd(ctx); err != nil {
			return err
		}
		res := CaseResult{
			Input:    c.Input,
			Expected: c.Output,
			Actual:   trim(s.adapter.Output()),
			RunErr:   !s.adapter.Succeeded(),
		}
		s.log.Debug("test case", zap.Int("case", i), zap.Stringer("outcome", res.Outcome()))
		table = append(table, res)
	}
	s.suite = table
	s.commit(TestSuite{stamp: s.stamp(), Table: slices.Clone(table)})
	return nil
}

// StartDebugCase builds fixture case i and runs the harness until the PC
// reaches a line of the user's own source, or the program ends.
func (s *Session) StartDebugCase(ctx context.Context, i int) error {
	if s.fixtures == nil {
		return errors.NotInitialized(errors.PhaseDebug, "test fixtures")
	}
	if i < 0 || i >= len(s.fixtures.Cases) {
		return errors.New(errors.PhaseDebug, errors.KindInvalidInput).
			Value(i).
			Detail("test case %d out of range [0, %d)", i, len(s.fixtures.Cases)).
			Build()
	}
	asmErr, err := s.buildCase(ctx, i)
	if err != nil || asmErr != nil {
		return err
	}
	s.enterDebug()

	userLines := strings.Count(s.source.Text(), "\n") + 1
	lines := s.adapter.LineTable()
	for {
		if err := s.adapter.Run(ctx); err != nil {
			return err
		}
		if s.adapter.Succeeded() || s.adapter.HasError() {
			break
		}
		if line := lineOf(lines, s.adapter.PC()); line != 0 && line <= userLines {
			break
		}
	}
	s.commitQuiescent(ctx)
	return nil
}

// buildCase assembles the source followed by the fixture prefix and the
// input of case i.
func (s *Session) buildCase(ctx context.Context, i int) (*runtime.AssemblyError, error) {
	text := s.source.Text() + "\n"
	return s.build(ctx, text+s.fixtures.Prefix+s.fixtures.Cases[i].Input, text)
}

// Suite returns the results of the last test-suite sweep.
func (s *Session) Suite() []CaseResult {
	return slices.Clone(s.suite)
}

// CurrentLine returns the 1-based source line of the PC in the debug and
// error states, 0 when the PC lies outside the line table.
func (s *Session) CurrentLine() int {
	switch st := s.state.(type) {
	case Debug:
		return s.lineAt(st.PC)
	case Error:
		return s.lineAt(st.PC)
	default:
		return 0
	}
}

// Breakpoints returns the breakpoint addresses derived by the last step
// operation, in ascending order.
func (s *Session) Breakpoints() []uint32 {
	out := make([]uint32, 0, len(s.breakpoints))
	for pc := range s.breakpoints {
		out = append(out, pc)
	}
	slices.Sort(out)
	return out
}

// RegWritten returns the register written by the last step, 0 for none.
func (s *Session) RegWritten() uint32 {
	return s.adapter.RegWritten()
}

// MemWritten returns the byte range stored by the last step.
func (s *Session) MemWritten() backtrace.WriteRange {
	addr, n := s.adapter.MemWritten()
	return backtrace.WriteRange{Addr: addr, Len: n}
}

// Backtrace returns the frames of the current debug or error state, most
// recent call first.
func (s *Session) Backtrace() []backtrace.Frame {
	switch st := s.state.(type) {
	case Debug:
		return st.Backtrace
	case Error:
		return st.Backtrace
	default:
		return nil
	}
}

// AugmentedBacktrace returns the current frames with the stack words each
// one owns.
func (s *Session) AugmentedBacktrace(ctx context.Context) []backtrace.AugmentedFrame {
	load := func(addr uint32) (uint32, bool) {
		v, err := s.adapter.Load(ctx, addr, 4)
		return v, err == nil
	}
	writtenBy, _ := s.adapter.StackWrittenBy()
	return backtrace.Augment(s.Backtrace(), s.adapter.SP(), load, writtenBy, s.MemWritten())
}

func (s *Session) requireDebug(op string) error {
	if st := s.state.Status(); st != StatusDebug {
		return errors.InvalidState(errors.PhaseDebug, op, string(st))
	}
	return nil
}

func (s *Session) runToEnd(ctx context.Context) error {
	for !s.adapter.Succeeded() && !s.adapter.HasError() {
		if err := s.adapter.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// completion appends CompletionText after a clean exit, on a new line when
// the program left the output unterminated.
func (s *Session) completion() {
	if !s.adapter.Succeeded() {
		return
	}
	out := s.adapter.Output()
	if out != "" && !strings.HasSuffix(out, "\n") {
		s.adapter.AppendOutput("\n")
	}
	s.adapter.AppendOutput(CompletionText)
}

func (s *Session) commitRunning() {
	s.commit(Running{
		stamp: s.stamp(),
		PC:    s.adapter.PC(),
		Regs:  s.adapter.Registers(),
	})
}

// commitQuiescent derives the next state from the adapter's flags.
func (s *Session) commitQuiescent(ctx context.Context) {
	out := s.adapter.Output()
	pc := s.adapter.PC()
	regs := s.adapter.Registers()
	switch {
	case s.adapter.HasError():
		s.commit(Error{stamp: s.stamp(), Output: out, PC: pc, Regs: regs, Backtrace: s.frames(ctx)})
	case s.adapter.Succeeded():
		s.commit(Stopped{stamp: s.stamp(), Output: out, PC: pc, Regs: regs})
	default:
		s.commit(Debug{stamp: s.stamp(), Output: out, PC: pc, Regs: regs, Backtrace: s.frames(ctx)})
	}
}

func (s *Session) frames(ctx context.Context) []backtrace.Frame {
	return backtrace.Frames(s.adapter.ShadowStack(), func(pc uint32) string {
		return s.adapter.StringFromPC(ctx, pc)
	})
}

// setBreakpoints maps every marked line to the addresses of all the
// instructions assembled from it.
func (s *Session) setBreakpoints() {
	clear(s.breakpoints)
	marked := s.source.BreakpointLines()
	if len(marked) == 0 {
		return
	}
	lines := s.adapter.LineTable()
	for _, want := range marked {
		for i, line := range lines {
			if int(line) == want {
				s.breakpoints[rvdebug.TextBase+4*uint32(i)] = struct{}{}
			}
		}
	}
}

func (s *Session) lineAt(pc uint32) int {
	return lineOf(s.adapter.LineTable(), pc)
}

func lineOf(lines []uint32, pc uint32) int {
	if pc < rvdebug.TextBase {
		return 0
	}
	idx := (pc - rvdebug.TextBase) / 4
	if idx >= uint32(len(lines)) {
		return 0
	}
	return int(lines[idx])
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
