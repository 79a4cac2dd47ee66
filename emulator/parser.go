package emulator

import (
	"strings"

	"github.com/wippyai/rvdebug"
)

// parser is a cursor over assembly source. It is copied by value to
// backtrack and to replay instructions whose label was not yet defined.
type parser struct {
	src       []byte
	pos       int
	line      int
	startLine int
}

func newParser(src []byte) parser {
	return parser{src: src, line: 1}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) advance() {
	if p.eof() {
		return
	}
	if p.src[p.pos] == '\n' {
		p.line++
	}
	p.pos++
}

func (p *parser) advanceN(n int) {
	for i := 0; i < n; i++ {
		p.advance()
	}
}

func (p *parser) peek() byte {
	return p.peekN(0)
}

func (p *parser) peekN(n int) byte {
	if p.pos+n >= len(p.src) {
		return 0
	}
	return p.src[p.pos+n]
}

func isSpace(c byte) bool {
	return c == '\n' || c == '\t' || c == ' ' || c == '\r'
}

func isTrailing(c byte) bool { return c == '\t' || c == ' ' }

func isIdent(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}

// skipComment skips one #, // or /* */ comment.
func (p *parser) skipComment() bool {
	switch p.peek() {
	case '#':
	case '/':
		switch p.peekN(1) {
		case '/':
		case '*':
			p.advanceN(2)
			for !p.eof() && !(p.peek() == '*' && p.peekN(1) == '/') {
				p.advance()
			}
			if !p.eof() {
				p.advanceN(2)
			}
			return true
		default:
			return false
		}
	default:
		return false
	}
	for !p.eof() && p.src[p.pos] != '\n' {
		p.advance()
	}
	return true
}

// skipWhitespace skips blanks, newlines and comments, so operands may span lines.
func (p *parser) skipWhitespace() {
	for !p.eof() {
		if isSpace(p.peek()) {
			p.advance()
		} else if !p.skipComment() {
			return
		}
	}
}

// skipTrailing stops at a newline, which terminates a statement.
func (p *parser) skipTrailing() {
	for !p.eof() {
		if isTrailing(p.peek()) {
			p.advance()
		} else if !p.skipComment() {
			return
		}
	}
}

func (p *parser) consumeIf(c byte) bool {
	if p.eof() || p.src[p.pos] != c {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	c := p.src[p.pos]
	p.advance()
	return c, true
}

// ident returns the identifier at the cursor and its source offset.
func (p *parser) ident() (string, int) {
	start := p.pos
	for !p.eof() && isIdent(p.src[p.pos]) {
		p.advance()
	}
	return string(p.src[start:p.pos]), start
}

func (p *parser) reg() int {
	name, _ := p.ident()
	idx, ok := rvdebug.RegisterIndex(strings.ToLower(name))
	if !ok {
		return -1
	}
	return idx
}

func unescape(c byte) (byte, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'a':
		return '\a', true
	case '\\', '\'', '"':
		return c, true
	case '0':
		return 0, true
	}
	return 0, false
}

// numeric parses a decimal, 0x hex, 0b binary or character literal with any
// number of leading signs. Values wrap to 32 bits.
func (p *parser) numeric() (int32, bool) {
	start := *p
	negative := false
	for p.peek() == '-' || p.peek() == '+' {
		if p.consumeIf('-') {
			negative = !negative
		}
		p.consumeIf('+')
	}

	var value uint32
	if p.consumeIf('\'') {
		c, ok := p.consume()
		if !ok {
			return 0, false
		}
		if c == '\\' {
			if c, ok = p.consume(); !ok {
				return 0, false
			}
			if c, ok = unescape(c); !ok {
				return 0, false
			}
		}
		value = uint32(c)
		if !p.consumeIf('\'') {
			return 0, false
		}
	} else {
		base := uint32(10)
		if p.peek() == '0' {
			switch p.peekN(1) {
			case 'x', 'X':
				base = 16
			case 'b', 'B':
				base = 2
			}
			if base != 10 {
				p.advanceN(2)
			}
		}

		parsed := false
		for c := p.peek(); c != 0; c = p.peek() {
			digit := base
			switch {
			case c >= '0' && c <= '9':
				digit = uint32(c - '0')
			case c >= 'a' && c <= 'f':
				digit = uint32(c-'a') + 10
			case c >= 'A' && c <= 'F':
				digit = uint32(c-'A') + 10
			}
			if digit >= base {
				if isSpace(c) || c == '(' || c == ',' {
					break
				}
				return 0, false
			}
			parsed = true
			value = value*base + digit
			p.advance()
		}

		if !parsed {
			*p = start
			return 0, false
		}
	}

	if negative {
		value = -value
	}
	return int32(value), true
}

// quoted parses a double-quoted string with C escapes.
func (p *parser) quoted() ([]byte, bool) {
	if !p.consumeIf('"') {
		return nil, false
	}
	var out []byte
	for {
		c := p.peek()
		if p.eof() {
			return nil, false
		}
		p.advance()
		switch c {
		case '"':
			return out, true
		case '\\':
			e, ok := unescape(p.peek())
			if !ok || p.eof() {
				return nil, false
			}
			p.advance()
			out = append(out, e)
		default:
			out = append(out, c)
		}
	}
}
