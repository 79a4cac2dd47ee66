package emulator

import (
	"strconv"

	"github.com/wippyai/rvdebug"
)

// Environment call numbers, selected by a7.
const (
	sysPrintInt    = 1
	sysPrintString = 4
	sysExit        = 10
	sysExit7       = 7
	sysPrintChar   = 11
	sysPrintHex    = 34
	sysPrintBinary = 35
	sysExit93      = 93
)

const hexDigits = "0123456789abcdef"

func (m *machine) puts(s string) {
	for i := 0; i < len(s); i++ {
		m.host.Putchar(s[i])
	}
}

func (m *machine) syscall() {
	m.regWritten = 0
	param := m.regs[rvdebug.RegA0]

	switch m.regs[rvdebug.RegA7] {
	case sysPrintInt:
		m.puts(strconv.FormatInt(int64(int32(param)), 10))
	case sysPrintString:
		for addr := param; ; addr++ {
			c, ok := m.load(addr, 1)
			if !ok {
				m.trap(rvdebug.TrapLoad, addr)
				return
			}
			if c == 0 {
				break
			}
			m.host.Putchar(byte(c))
		}
	case sysPrintChar:
		m.host.Putchar(byte(param))
	case sysPrintHex:
		m.puts("0x")
		for shift := 28; shift >= 0; shift -= 4 {
			m.host.Putchar(hexDigits[param>>shift&15])
		}
	case sysPrintBinary:
		m.puts("0b")
		for shift := 31; shift >= 0; shift-- {
			m.host.Putchar('0' + byte(param>>shift&1))
		}
	case sysExit, sysExit7, sysExit93:
		m.host.Exit()
	}

	m.pc += 4
}
