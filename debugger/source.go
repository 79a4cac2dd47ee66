package debugger

import "slices"

// Source is the editor collaborator: it supplies the program text and the
// lines marked as breakpoints.
type Source interface {
	Text() string
	// BreakpointLines returns the 1-based marked lines.
	BreakpointLines() []int
	// Revalidate is called after an assembly error so diagnostics refresh.
	Revalidate()
}

// StaticSource is an in-memory Source.
type StaticSource struct {
	text  string
	lines map[int]struct{}
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource returns a source holding text with no breakpoints.
func NewStaticSource(text string) *StaticSource {
	return &StaticSource{text: text, lines: make(map[int]struct{})}
}

func (s *StaticSource) Text() string { return s.text }

// SetText replaces the program text. Breakpoints are kept.
func (s *StaticSource) SetText(text string) { s.text = text }

// Toggle marks or unmarks line and reports whether it is now marked.
func (s *StaticSource) Toggle(line int) bool {
	if _, ok := s.lines[line]; ok {
		delete(s.lines, line)
		return false
	}
	s.lines[line] = struct{}{}
	return true
}

// Set marks line.
func (s *StaticSource) Set(line int) { s.lines[line] = struct{}{} }

// Clear unmarks line.
func (s *StaticSource) Clear(line int) { delete(s.lines, line) }

// BreakpointLines returns the marked lines in ascending order.
func (s *StaticSource) BreakpointLines() []int {
	out := make([]int, 0, len(s.lines))
	for l := range s.lines {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

func (s *StaticSource) Revalidate() {}
