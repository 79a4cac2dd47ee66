package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/rvdebug"
	"github.com/wippyai/rvdebug/backtrace"
	"github.com/wippyai/rvdebug/debugger"
	"github.com/wippyai/rvdebug/runtime"
)

var debugCmd = &cobra.Command{
	Use:   "debug FILE",
	Short: "Debug a program in a terminal UI",
	Long: `Opens the program paused at its entry point.

Keys: s step, n step over, c continue, b toggle breakpoint, r restart,
t debug a fixture case, q quit. Without a terminal the line REPL is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		defer ws.close()

		lines, _ := cmd.Flags().GetIntSlice("break")
		for _, l := range lines {
			ws.source.Set(l)
		}

		if !isTerminal() {
			return runRepl(ctx, ws, cmd.OutOrStdout())
		}
		p := tea.NewProgram(newDebugModel(ctx, ws), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = p.Run()
		return err
	},
}

func init() {
	debugCmd.Flags().IntSlice("break", nil, "source lines to break on")
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	breakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	changedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type promptMode int

const (
	promptNone promptMode = iota
	promptBreakpoint
	promptCase
)

const sourceContext = 8

type debugModel struct {
	ctx     context.Context
	ws      *workspace
	lines   []string
	err     error
	prompt  textinput.Model
	mode    promptMode
	console viewport.Model
	width   int
}

type startMsg struct{}

func newDebugModel(ctx context.Context, ws *workspace) *debugModel {
	ti := textinput.New()
	ti.Width = 10
	return &debugModel{
		ctx:     ctx,
		ws:      ws,
		lines:   strings.Split(ws.source.Text(), "\n"),
		prompt:  ti,
		console: viewport.New(80, 6),
		width:   80,
	}
}

func (m *debugModel) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

func (m *debugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	sess := m.ws.session

	switch msg := msg.(type) {
	case startMsg:
		m.err = sess.StartDebug(m.ctx)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.console.Width = msg.Width - 4

	case tea.KeyMsg:
		if m.mode != promptNone {
			return m.updatePrompt(msg)
		}
		m.err = nil
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			m.err = sess.SingleStep(m.ctx)
		case "n":
			m.err = sess.StepOver(m.ctx)
		case "c":
			m.err = sess.Continue(m.ctx)
		case "r":
			m.err = sess.StartDebug(m.ctx)
		case "b":
			m.openPrompt(promptBreakpoint, "break at line: ")
		case "t":
			if sess.Fixtures() != nil {
				m.openPrompt(promptCase, "debug case #: ")
			}
		default:
			var cmd tea.Cmd
			m.console, cmd = m.console.Update(msg)
			return m, cmd
		}
	}

	m.console.SetContent(debugger.Output(sess.State()))
	m.console.GotoBottom()
	return m, nil
}

func (m *debugModel) openPrompt(mode promptMode, prompt string) {
	m.mode = mode
	m.prompt.Prompt = prompt
	m.prompt.Reset()
	m.prompt.Focus()
}

func (m *debugModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = promptNone
		m.prompt.Blur()
		return m, nil
	case "enter":
		mode := m.mode
		m.mode = promptNone
		m.prompt.Blur()
		n, err := strconv.Atoi(strings.TrimSpace(m.prompt.Value()))
		if err != nil {
			m.err = fmt.Errorf("not a number: %q", m.prompt.Value())
			return m, nil
		}
		switch mode {
		case promptBreakpoint:
			m.ws.source.Toggle(n)
		case promptCase:
			m.err = m.ws.session.StartDebugCase(m.ctx, n)
			m.console.SetContent(debugger.Output(m.ws.session.State()))
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m *debugModel) View() string {
	sess := m.ws.session
	st := sess.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render("rvdebug"))
	b.WriteString(" ")
	b.WriteString(m.ws.path)
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(string(st.Status())))
	b.WriteString("\n")

	left := paneStyle.Render(m.sourceView(sess.CurrentLine()))
	right := paneStyle.Render(m.registerView(st) + "\n\n" + m.backtraceView())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(paneStyle.Width(m.width - 2).Render(m.console.View()))
	b.WriteString("\n")

	switch {
	case m.mode != promptNone:
		b.WriteString(m.prompt.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	default:
		b.WriteString(helpStyle.Render("s step • n next • c continue • b breakpoint • r restart • t test case • q quit"))
	}
	return b.String()
}

func (m *debugModel) sourceView(current int) string {
	marked := make(map[int]bool)
	for _, l := range m.ws.source.BreakpointLines() {
		marked[l] = true
	}

	first, last := 1, len(m.lines)
	if current > 0 {
		first = max(1, current-sourceContext)
		last = min(len(m.lines), current+sourceContext)
	} else {
		last = min(last, 2*sourceContext+1)
	}

	var b strings.Builder
	for n := first; n <= last; n++ {
		gutter := "  "
		if marked[n] {
			gutter = breakStyle.Render("● ")
		}
		line := fmt.Sprintf("%4d  %s", n, m.lines[n-1])
		if n == current {
			line = currentStyle.Render(line)
		}
		b.WriteString(gutter)
		b.WriteString(line)
		if n < last {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m *debugModel) registerView(st debugger.State) string {
	var pc uint32
	var regs runtime.Registers
	switch s := st.(type) {
	case debugger.Debug:
		pc, regs = s.PC, s.Regs
	case debugger.Error:
		pc, regs = s.PC, s.Regs
	case debugger.Stopped:
		pc, regs = s.PC, s.Regs
	default:
		return labelStyle.Render("registers") + "\n-"
	}

	written := int(m.ws.session.RegWritten())
	var b strings.Builder
	b.WriteString(labelStyle.Render("registers"))
	fmt.Fprintf(&b, "\n%-6s %s", "pc", rvdebug.FormatValue(pc))
	for i := 1; i < rvdebug.NumRegs; i++ {
		cell := fmt.Sprintf("%-6s %-12s", rvdebug.DisplayName(i), rvdebug.FormatValue(regs.Get(uint32(i))))
		if i == written {
			cell = changedStyle.Render(cell)
		}
		if i%2 == 1 {
			b.WriteByte('\n')
		}
		b.WriteString(cell)
	}
	return b.String()
}

func (m *debugModel) backtraceView() string {
	frames := m.ws.session.AugmentedBacktrace(m.ctx)
	if len(frames) == 0 {
		return labelStyle.Render("backtrace") + "\n-"
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("backtrace"))
	for i, f := range frames {
		fmt.Fprintf(&b, "\n#%d %s", i, f.Frame)
		for _, s := range f.Slots {
			b.WriteString("\n   ")
			b.WriteString(slotText(s))
		}
	}
	return b.String()
}

func slotText(s backtrace.Slot) string {
	text := fmt.Sprintf("%08x  %s", s.Addr, s.Text)
	if s.Changed {
		return changedStyle.Render(text)
	}
	return text
}
