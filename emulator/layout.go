package emulator

import "github.com/wippyai/rvdebug/engine"

// Arena addresses of the exported globals.
const (
	addrRegs           = 0x400
	addrPC             = 0x480
	addrMemWrittenLen  = 0x484
	addrMemWrittenAddr = 0x488
	addrRegWritten     = 0x48C
	addrErrorParams    = 0x490
	addrErrorType      = 0x498
	addrError          = 0x49C
	addrErrorLine      = 0x4A0
	addrTextByLinenum  = 0x4A4 // len, cap, ptr
	addrShadowStack    = 0x4B0 // len, cap, ptr
	addrLabelText      = 0x4BC
	addrLabelLen       = 0x4C0
	addrHeapSize       = 0x4C4
	addrStackWrittenBy = 0x500
	addrHeapBase       = 0x1000
)

var globals = map[string]uint32{
	engine.GlobalHeapBase:       addrHeapBase,
	engine.GlobalRegs:           addrRegs,
	engine.GlobalHeapSize:       addrHeapSize,
	engine.GlobalMemWrittenAddr: addrMemWrittenAddr,
	engine.GlobalMemWrittenLen:  addrMemWrittenLen,
	engine.GlobalRegWritten:     addrRegWritten,
	engine.GlobalPC:             addrPC,
	engine.GlobalTextByLinenum:  addrTextByLinenum,
	engine.GlobalError:          addrError,
	engine.GlobalErrorLine:      addrErrorLine,
	engine.GlobalErrorParams:    addrErrorParams,
	engine.GlobalErrorType:      addrErrorType,
	engine.GlobalLabelText:      addrLabelText,
	engine.GlobalLabelLen:       addrLabelLen,
	engine.GlobalShadowStack:    addrShadowStack,
	engine.GlobalStackWrittenBy: addrStackWrittenBy,
}
