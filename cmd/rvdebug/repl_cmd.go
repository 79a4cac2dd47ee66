package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/spf13/cobra"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/backtrace"
	"github.com/wippyai/rvdebug/debugger"
)

var replCmd = &cobra.Command{
	Use:   "repl FILE",
	Short: "Debug a program from a command prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		defer ws.close()
		return runRepl(ctx, ws, cmd.OutOrStdout())
	},
}

const replPrompt = "(rvdebug) "

type replCommand struct {
	aliases []string
	args    string
	help    string
	fn      func(r *repl, args []string) error
}

var errQuit = stderrors.New("quit")

var replCommands []*replCommand

func init() {
	replCommands = []*replCommand{
		{aliases: []string{"break", "b"}, args: "LINE", help: "Set a breakpoint on a source line.", fn: (*repl).breakCmd},
		{aliases: []string{"clear"}, args: "LINE", help: "Remove the breakpoint on a source line.", fn: (*repl).clearCmd},
		{aliases: []string{"breakpoints", "bp"}, help: "List the marked lines.", fn: (*repl).breakpointsCmd},
		{aliases: []string{"step", "s"}, help: "Execute one instruction.", fn: (*repl).stepCmd},
		{aliases: []string{"next", "n"}, help: "Step over calls.", fn: (*repl).nextCmd},
		{aliases: []string{"continue", "c"}, help: "Run until a breakpoint, exit or error.", fn: (*repl).continueCmd},
		{aliases: []string{"run"}, help: "Assemble and run to completion.", fn: (*repl).runCmd},
		{aliases: []string{"restart", "r"}, help: "Rebuild and stop at the entry point.", fn: (*repl).restartCmd},
		{aliases: []string{"regs"}, help: "Print the registers.", fn: (*repl).regsCmd},
		{aliases: []string{"bt", "backtrace"}, help: "Print the call stack.", fn: (*repl).btCmd},
		{aliases: []string{"stack"}, help: "Print the call stack with the stack words of each frame.", fn: (*repl).stackCmd},
		{aliases: []string{"test"}, help: "Run the fixture test cases.", fn: (*repl).testCmd},
		{aliases: []string{"case"}, args: "N", help: "Debug fixture case N from the start of the user code.", fn: (*repl).caseCmd},
		{aliases: []string{"help", "h"}, help: "List the commands.", fn: (*repl).helpCmd},
		{aliases: []string{"quit", "q", "exit"}, help: "Leave the debugger.", fn: (*repl).quitCmd},
	}
}

type repl struct {
	ctx     context.Context
	ws      *workspace
	out     io.Writer
	cmds    *trie.Trie
	printed int
}

func newRepl(ctx context.Context, ws *workspace, out io.Writer) *repl {
	t := trie.New()
	for _, c := range replCommands {
		for _, a := range c.aliases {
			t.Add(a, c)
		}
	}
	return &repl{ctx: ctx, ws: ws, out: out, cmds: t}
}

func runRepl(ctx context.Context, ws *workspace, out io.Writer) error {
	r := newRepl(ctx, ws, out)
	if err := ws.session.StartDebug(ctx); err != nil {
		return err
	}
	r.status()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		return r.cmds.PrefixSearch(strings.ToLower(l))
	})
	fmt.Fprintln(out, "Type 'help' for list of commands.")

	for {
		l, err := line.Prompt(replPrompt)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(out, "exit")
				return nil
			}
			return err
		}
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		line.AppendHistory(l)

		if err := r.exec(l); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintln(out, red(err.Error()))
		}
	}
}

// lookup resolves a command name or any unambiguous prefix of one.
func (r *repl) lookup(name string) (*replCommand, error) {
	if node, ok := r.cmds.Find(name); ok {
		return node.Meta().(*replCommand), nil
	}
	var found []*replCommand
	for _, key := range r.cmds.PrefixSearch(name) {
		node, _ := r.cmds.Find(key)
		c := node.Meta().(*replCommand)
		if !slices.Contains(found, c) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("command not available: %s", name)
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, c := range found {
			names[i] = c.aliases[0]
		}
		slices.Sort(names)
		return nil, fmt.Errorf("ambiguous command %q: %s", name, strings.Join(names, ", "))
	}
}

func (r *repl) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	c, err := r.lookup(strings.ToLower(fields[0]))
	if err != nil {
		return err
	}
	return c.fn(r, fields[1:])
}

func lineArg(args []string, what string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one %s", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", what, args[0])
	}
	return n, nil
}

func (r *repl) breakCmd(args []string) error {
	n, err := lineArg(args, "line number")
	if err != nil {
		return err
	}
	r.ws.source.Set(n)
	fmt.Fprintf(r.out, "Breakpoint set at line %d\n", n)
	return nil
}

func (r *repl) clearCmd(args []string) error {
	n, err := lineArg(args, "line number")
	if err != nil {
		return err
	}
	r.ws.source.Clear(n)
	fmt.Fprintf(r.out, "Breakpoint cleared at line %d\n", n)
	return nil
}

func (r *repl) breakpointsCmd([]string) error {
	for _, l := range r.ws.source.BreakpointLines() {
		fmt.Fprintf(r.out, "line %d\n", l)
	}
	return nil
}

func (r *repl) stepCmd([]string) error {
	return r.then(r.ws.session.SingleStep(r.ctx))
}

func (r *repl) nextCmd([]string) error {
	return r.then(r.ws.session.StepOver(r.ctx))
}

func (r *repl) continueCmd([]string) error {
	return r.then(r.ws.session.Continue(r.ctx))
}

func (r *repl) runCmd([]string) error {
	return r.then(r.ws.session.Run(r.ctx))
}

func (r *repl) restartCmd([]string) error {
	return r.then(r.ws.session.StartDebug(r.ctx))
}

func (r *repl) caseCmd(args []string) error {
	n, err := lineArg(args, "case number")
	if err != nil {
		return err
	}
	return r.then(r.ws.session.StartDebugCase(r.ctx, n))
}

func (r *repl) testCmd([]string) error {
	if err := r.ws.session.RunTestSuite(r.ctx); err != nil {
		return err
	}
	if st, ok := r.ws.session.State().(debugger.AsmErr); ok {
		return stderrors.New(st.Output)
	}
	writeReport(r.out, r.ws.session.Suite())
	return nil
}

// then prints new program output and the position after a session command.
func (r *repl) then(err error) error {
	if err != nil {
		if stderrors.Is(err, debugger.ErrNotDebugging) {
			return fmt.Errorf("the program is not being debugged, use restart")
		}
		return err
	}
	r.status()
	return nil
}

func (r *repl) status() {
	st := r.ws.session.State()
	text := debugger.Output(st)
	if len(text) < r.printed {
		r.printed = 0
	}
	if s := text[r.printed:]; s != "" {
		fmt.Fprint(r.out, s)
		if !strings.HasSuffix(s, "\n") {
			fmt.Fprintln(r.out)
		}
	}
	r.printed = len(text)

	switch s := st.(type) {
	case debugger.Debug:
		fmt.Fprintf(r.out, "> 0x%08x %s\n", s.PC, r.sourceLine(r.ws.session.CurrentLine()))
	case debugger.Error:
		fmt.Fprintf(r.out, "%s 0x%08x %s\n", red("!"), s.PC, r.sourceLine(r.ws.session.CurrentLine()))
	case debugger.Stopped:
		fmt.Fprintln(r.out, green("Program exited."))
	case debugger.AsmErr:
		r.printed = 0
	}
}

func (r *repl) sourceLine(n int) string {
	lines := strings.Split(r.ws.source.Text(), "\n")
	if n < 1 || n > len(lines) {
		return "(outside the source)"
	}
	return fmt.Sprintf("%d:\t%s", n, strings.TrimSpace(lines[n-1]))
}

func (r *repl) regsCmd([]string) error {
	var regs []uint32
	switch s := r.ws.session.State().(type) {
	case debugger.Debug:
		regs = s.Regs[:]
	case debugger.Error:
		regs = s.Regs[:]
	case debugger.Stopped:
		regs = s.Regs[:]
	default:
		return fmt.Errorf("no registers in state %s", s.Status())
	}
	written := int(r.ws.session.RegWritten())
	for i, v := range regs {
		idx := i + 1
		text := fmt.Sprintf("%-6s %-12s 0x%08x", rvdebug.DisplayName(idx), rvdebug.FormatValue(v), v)
		if idx == written {
			text = yellow(text)
		}
		fmt.Fprintln(r.out, text)
	}
	return nil
}

func (r *repl) btCmd([]string) error {
	fmt.Fprint(r.out, backtrace.Format(r.ws.session.Backtrace()))
	return nil
}

func (r *repl) stackCmd([]string) error {
	for i, f := range r.ws.session.AugmentedBacktrace(r.ctx) {
		fmt.Fprintf(r.out, "#%d %s\n", i, f.Frame)
		for _, s := range f.Slots {
			text := fmt.Sprintf("    0x%08x  %s", s.Addr, s.Text)
			if s.Changed {
				text = yellow(text)
			}
			fmt.Fprintln(r.out, text)
		}
	}
	return nil
}

func (r *repl) helpCmd([]string) error {
	for _, c := range replCommands {
		name := strings.Join(c.aliases, ", ")
		if c.args != "" {
			name += " " + c.args
		}
		fmt.Fprintf(r.out, "    %-24s %s\n", name, c.help)
	}
	return nil
}

func (r *repl) quitCmd([]string) error {
	r.ws.session.Quit()
	return errQuit
}
