package emulator

import (
	"strings"

	"github.com/wippyai/rvdebug"
)

// diag is an assembler diagnostic. Its text is what the user sees after
// "Error on line L: ".
type diag string

func (d diag) Error() string { return string(d) }

const (
	errInvalidRd        diag = "Invalid rd"
	errInvalidRs        diag = "Invalid rs"
	errInvalidRs1       diag = "Invalid rs1"
	errInvalidRs2       diag = "Invalid rs2"
	errInvalidRreg      diag = "Invalid rreg"
	errInvalidRmem      diag = "Invalid rmem"
	errInvalidRegister  diag = "Invalid register"
	errInvalidImm       diag = "Invalid imm"
	errImmOutOfBounds   diag = "Out of bounds imm"
	errImmOutOfRange    diag = "Immediate out of range"
	errExpectedComma    diag = "Expected ,"
	errExpectedLParen   diag = "Expected ("
	errExpectedRParen   diag = "Expected )"
	errExpectedNewline  diag = "Expected newline"
	errNoLabel          diag = "No label"
	errLabelNotFound    diag = "Label not found"
	errUnknownOpcode    diag = "Unknown opcode"
	errDuplicateLabel   diag = "Multiple definitions for the same label"
	errSectionNotFound  diag = "Section not found"
	errInvalidByte      diag = "Invalid byte"
	errByteOutOfBounds  diag = "Out of bounds byte"
	errInvalidHalf      diag = "Invalid half"
	errHalfOutOfBounds  diag = "Out of bounds half"
	errInvalidWord      diag = "Invalid word"
	errInvalidString    diag = "Invalid string"
	errStartNotGlobal   diag = "_start defined, but without .globl"
	errStartNotInText   diag = "_start not in .text section"
	errBranchOutOfRange diag = "Branch target out of range"
)

// section is an assembled memory region. Only len(data) bytes from base are
// addressable.
type section struct {
	name  string
	base  uint32
	limit uint32
	data  []byte
	emit  int
	read  bool
	write bool
}

func (s *section) addr() uint32 { return s.base + uint32(s.emit) }

func (s *section) contains(addr uint32) bool {
	return addr >= s.base && addr < s.limit
}

type label struct {
	name   string
	offset int
	addr   uint32
	sec    *section
}

type handler func(a *assembler, p *parser, op string) error

type deferred struct {
	p    parser
	sec  *section
	emit int
	op   string
	fn   handler
}

// program is the result of a successful or failed assembly.
type program struct {
	text    *section
	data    *section
	labels  []label
	lines   []uint32
	entry   uint32
	err     diag
	errLine int
}

type assembler struct {
	text     *section
	data     *section
	cur      *section
	labels   []label
	globals  []string
	lines    []uint32
	deferred []deferred
	fixup    bool
	curLine  int
}

// assemble translates src into a program. Instructions that reference a
// label not yet defined emit placeholders and are replayed once the whole
// source has been read.
func assemble(src []byte) *program {
	a := &assembler{
		text: &section{name: ".text", base: rvdebug.TextBase, limit: rvdebug.TextEnd, read: true},
		data: &section{name: ".data", base: rvdebug.DataBase, limit: rvdebug.DataEnd, read: true, write: true},
	}
	a.cur = a.text

	prog := &program{text: a.text, data: a.data, entry: rvdebug.TextBase}
	p := newParser(src)

	err := a.statements(&p)
	errLine := p.startLine
	if err == nil {
		a.fixup = true
		for i := range a.deferred {
			d := &a.deferred[i]
			a.cur = d.sec
			a.cur.emit = d.emit
			a.curLine = d.p.startLine
			if err = d.fn(a, &d.p, d.op); err != nil {
				errLine = d.p.startLine
				break
			}
		}
	}

	prog.labels = a.labels
	prog.lines = a.lines

	if err == nil {
		prog.entry, err = a.resolveStart()
		errLine = 1
	}
	if err != nil {
		prog.err = err.(diag)
		prog.errLine = errLine
	}
	return prog
}

func (a *assembler) statements(p *parser) error {
	for {
		p.skipWhitespace()
		if p.eof() {
			return nil
		}
		p.startLine = p.line
		a.curLine = p.startLine

		// a directive that fails to parse is a local label like .loop:
		old := *p
		if p.consumeIf('.') {
			name, _ := p.ident()
			p.skipWhitespace()
			handled, err := a.directive(p, strings.ToLower(name))
			if err != nil {
				return err
			}
			if handled {
				continue
			}
			*p = old
		}

		name, offset := p.ident()
		// skipTrailing keeps the newline after operand-less instructions
		p.skipTrailing()

		if p.consumeIf(':') {
			if _, ok := a.lookup(name); ok {
				return errDuplicateLabel
			}
			a.labels = append(a.labels, label{name: name, offset: offset, addr: a.cur.addr(), sec: a.cur})
			continue
		}

		fn, ok := opcodes[strings.ToLower(name)]
		if !ok {
			return errUnknownOpcode
		}
		if err := fn(a, p, strings.ToLower(name)); err != nil {
			return err
		}

		p.skipTrailing()
		if next := p.peek(); next != '\n' && next != 0 {
			return errExpectedNewline
		}
	}
}

func (a *assembler) directive(p *parser, name string) (bool, error) {
	switch name {
	case "text":
		a.cur = a.text
	case "data":
		a.cur = a.data
	case "section":
		sec, _ := p.ident()
		switch sec {
		case ".text":
			a.cur = a.text
		case ".data":
			a.cur = a.data
		default:
			return true, errSectionNotFound
		}
	case "globl", "global":
		p.skipWhitespace()
		sym, _ := p.ident()
		a.globals = append(a.globals, sym)
	case "byte":
		return true, a.values(p, errInvalidByte, func(v int32) error {
			if v < -128 || v > 255 {
				return errByteOutOfBounds
			}
			a.emitByte(byte(v))
			return nil
		})
	case "half":
		return true, a.values(p, errInvalidHalf, func(v int32) error {
			if v < -32768 || v > 65535 {
				return errHalfOutOfBounds
			}
			a.emitByte(byte(v))
			a.emitByte(byte(v >> 8))
			return nil
		})
	case "word":
		return true, a.values(p, errInvalidWord, func(v int32) error {
			a.emit(uint32(v))
			return nil
		})
	case "ascii":
		return true, a.strings(p, false)
	case "asciz", "asciiz", "string":
		return true, a.strings(p, true)
	default:
		return false, nil
	}
	return true, nil
}

// values parses a comma-separated list of numbers.
func (a *assembler) values(p *parser, invalid diag, emit func(int32) error) error {
	for first := true; ; first = false {
		p.skipWhitespace()
		if !first && !p.consumeIf(',') {
			return nil
		}
		p.skipWhitespace()
		v, ok := p.numeric()
		if !ok {
			return invalid
		}
		if err := emit(v); err != nil {
			return err
		}
	}
}

func (a *assembler) strings(p *parser, terminate bool) error {
	for first := true; ; first = false {
		p.skipWhitespace()
		if !first && !p.consumeIf(',') {
			return nil
		}
		p.skipWhitespace()
		s, ok := p.quoted()
		if !ok {
			return errInvalidString
		}
		for _, c := range s {
			a.emitByte(c)
		}
		if terminate {
			a.emitByte(0)
		}
	}
}

func (a *assembler) emitByte(b byte) {
	if a.fixup {
		a.cur.data[a.cur.emit] = b
	} else {
		a.cur.data = append(a.cur.data, b)
	}
	a.cur.emit++
}

// emit appends one little-endian word. Words emitted into .text extend the
// line table, which maps instruction index to source line.
func (a *assembler) emit(inst uint32) {
	if a.cur == a.text && !a.fixup {
		a.lines = append(a.lines, uint32(a.curLine))
	}
	a.emitByte(byte(inst))
	a.emitByte(byte(inst >> 8))
	a.emitByte(byte(inst >> 16))
	a.emitByte(byte(inst >> 24))
}

func (a *assembler) lookup(name string) (label, bool) {
	for _, l := range a.labels {
		if l.name == name {
			return l, true
		}
	}
	return label{}, false
}

func (a *assembler) global(name string) bool {
	for _, g := range a.globals {
		if g == name {
			return true
		}
	}
	return false
}

// target resolves a label operand. In the first pass an unknown label
// defers the whole instruction, starting from orig.
func (a *assembler) target(p *parser, orig parser, op string, fn handler) (uint32, bool, error) {
	name, _ := p.ident()
	if name == "" {
		return 0, false, errNoLabel
	}
	if l, ok := a.lookup(name); ok {
		return l.addr, false, nil
	}
	if a.fixup {
		return 0, false, errLabelNotFound
	}
	a.deferred = append(a.deferred, deferred{p: orig, sec: a.cur, emit: a.cur.emit, op: op, fn: fn})
	return 0, true, nil
}

func (a *assembler) resolveStart() (uint32, error) {
	l, ok := a.lookup("_start")
	if !ok {
		return rvdebug.TextBase, nil
	}
	if !a.global("_start") {
		return 0, errStartNotGlobal
	}
	if l.sec != a.text {
		return 0, errStartNotInText
	}
	return l.addr, nil
}

// labelFor returns the label closest to and not above pc. The earliest
// definition wins among labels at the same address.
func (prog *program) labelFor(pc uint32) (label, bool) {
	var best *label
	for i := range prog.labels {
		l := &prog.labels[i]
		if l.addr <= pc && (best == nil || l.addr > best.addr) {
			best = l
		}
	}
	if best == nil {
		return label{}, false
	}
	return *best, true
}
