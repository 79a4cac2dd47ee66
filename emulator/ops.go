package emulator

var opcodes map[string]handler

func init() {
	opcodes = map[string]handler{
		"ret":   handleRet,
		"nop":   handleNop,
		"ecall": handleEcall,
		"li":    handleLi,
		"la":    handleLa,
		"lui":   handleUpper,
		"auipc": handleUpper,
		"j":     handleJump,
		"jal":   handleJump,
		"call":  handleJump,
		"jr":    handleJumpReg,
		"jalr":  handleJumpReg,
	}
	for op := range aluReg {
		opcodes[op] = handleAluReg
	}
	for op := range aluImm {
		opcodes[op] = handleAluImm
	}
	for op := range loads {
		opcodes[op] = handleLoadStore
	}
	for op := range stores {
		opcodes[op] = handleLoadStore
	}
	for op := range branches {
		opcodes[op] = handleBranch
	}
	for op := range branchesZero {
		opcodes[op] = handleBranchZero
	}
	for op := range aluPseudo {
		opcodes[op] = handleAluPseudo
	}
}

// funct7, funct3
var aluReg = map[string][2]uint32{
	"add":    {0x00, 0},
	"sub":    {0x20, 0},
	"sll":    {0x00, 1},
	"slt":    {0x00, 2},
	"sltu":   {0x00, 3},
	"xor":    {0x00, 4},
	"srl":    {0x00, 5},
	"sra":    {0x20, 5},
	"or":     {0x00, 6},
	"and":    {0x00, 7},
	"mul":    {0x01, 0},
	"mulh":   {0x01, 1},
	"mulhsu": {0x01, 2},
	"mulu":   {0x01, 2},
	"mulhu":  {0x01, 3},
	"div":    {0x01, 4},
	"divu":   {0x01, 5},
	"rem":    {0x01, 6},
	"remu":   {0x01, 7},
}

var aluImm = map[string]uint32{
	"addi":  0,
	"slli":  1,
	"slti":  2,
	"sltiu": 3,
	"xori":  4,
	"srli":  5,
	"srai":  5,
	"ori":   6,
	"andi":  7,
}

var loads = map[string]uint32{"lb": 0, "lh": 1, "lw": 2, "lbu": 4, "lhu": 5}

var stores = map[string]uint32{"sb": 0, "sh": 1, "sw": 2}

type branchOp struct {
	funct3 uint32
	swap   bool
}

var branches = map[string]branchOp{
	"beq":  {0, false},
	"bne":  {1, false},
	"blt":  {4, false},
	"bge":  {5, false},
	"bltu": {6, false},
	"bgeu": {7, false},
	"bgt":  {4, true},
	"ble":  {5, true},
	"bgtu": {6, true},
	"bleu": {7, true},
}

// branchesZero compares against x0; zeroFirst puts x0 in rs1.
var branchesZero = map[string]struct {
	funct3    uint32
	zeroFirst bool
}{
	"beqz": {0, false},
	"bnez": {1, false},
	"blez": {5, true},
	"bgez": {5, false},
	"bltz": {4, false},
	"bgtz": {4, true},
}

var aluPseudo = map[string]func(d, s uint32) uint32{
	"mv":   func(d, s uint32) uint32 { return encI(0, s, 0, d, opImm) },
	"not":  func(d, s uint32) uint32 { return encI(-1, s, 4, d, opImm) },
	"neg":  func(d, s uint32) uint32 { return encR(0x20, s, 0, 0, d, opReg) },
	"seqz": func(d, s uint32) uint32 { return encI(1, s, 3, d, opImm) },
	"snez": func(d, s uint32) uint32 { return encR(0, s, 0, 3, d, opReg) },
	"sltz": func(d, s uint32) uint32 { return encR(0, 0, s, 2, d, opReg) },
	"sgtz": func(d, s uint32) uint32 { return encR(0, s, 0, 2, d, opReg) },
}

func fitsI(v int32) bool { return v >= -2048 && v <= 2047 }

// regArg parses a register operand, optionally followed by a comma.
func regArg(p *parser, invalid diag, comma bool) (uint32, error) {
	p.skipWhitespace()
	r := p.reg()
	if r < 0 {
		return 0, invalid
	}
	if comma {
		p.skipWhitespace()
		if !p.consumeIf(',') {
			return 0, errExpectedComma
		}
	}
	return uint32(r), nil
}

func immArg(p *parser) (int32, error) {
	p.skipWhitespace()
	v, ok := p.numeric()
	if !ok {
		return 0, errInvalidImm
	}
	return v, nil
}

// memArg parses "(reg)" after an offset.
func memArg(p *parser, invalid diag) (uint32, error) {
	p.skipWhitespace()
	if !p.consumeIf('(') {
		return 0, errExpectedLParen
	}
	p.skipWhitespace()
	r := p.reg()
	if r < 0 {
		return 0, invalid
	}
	p.skipWhitespace()
	if !p.consumeIf(')') {
		return 0, errExpectedRParen
	}
	return uint32(r), nil
}

func handleAluReg(a *assembler, p *parser, op string) error {
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	s1, err := regArg(p, errInvalidRs1, true)
	if err != nil {
		return err
	}
	s2, err := regArg(p, errInvalidRs2, false)
	if err != nil {
		return err
	}
	f := aluReg[op]
	a.emit(encR(f[0], s2, s1, f[1], d, opReg))
	return nil
}

func handleAluImm(a *assembler, p *parser, op string) error {
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	s1, err := regArg(p, errInvalidRs1, true)
	if err != nil {
		return err
	}
	imm, err := immArg(p)
	if err != nil {
		return err
	}
	if !fitsI(imm) {
		return errImmOutOfBounds
	}
	switch op {
	case "slli", "srli", "srai":
		if imm < 0 || imm > 31 {
			return errImmOutOfBounds
		}
		if op == "srai" {
			imm |= 0x400
		}
	}
	a.emit(encI(imm, s1, aluImm[op], d, opImm))
	return nil
}

func handleLoadStore(a *assembler, p *parser, op string) error {
	reg, err := regArg(p, errInvalidRreg, true)
	if err != nil {
		return err
	}
	p.skipWhitespace()
	var imm int32
	if p.peek() != '(' {
		if imm, err = immArg(p); err != nil {
			return err
		}
		if !fitsI(imm) {
			return errImmOutOfBounds
		}
	}
	mem, err := memArg(p, errInvalidRmem)
	if err != nil {
		return err
	}
	if f3, ok := loads[op]; ok {
		a.emit(encI(imm, mem, f3, reg, opLoad))
	} else {
		a.emit(encS(imm, reg, mem, stores[op]))
	}
	return nil
}

func branchOffset(target, at uint32) (int32, error) {
	off := int32(target - at)
	if off < -4096 || off > 4094 {
		return 0, errBranchOutOfRange
	}
	return off, nil
}

func handleBranch(a *assembler, p *parser, op string) error {
	orig := *p
	s1, err := regArg(p, errInvalidRs1, true)
	if err != nil {
		return err
	}
	s2, err := regArg(p, errInvalidRs2, true)
	if err != nil {
		return err
	}
	p.skipWhitespace()
	addr, later, err := a.target(p, orig, op, handleBranch)
	if err != nil {
		return err
	}
	if later {
		a.emit(0)
		return nil
	}
	off, err := branchOffset(addr, a.cur.addr())
	if err != nil {
		return err
	}
	b := branches[op]
	if b.swap {
		s1, s2 = s2, s1
	}
	a.emit(encB(off, s2, s1, b.funct3))
	return nil
}

func handleBranchZero(a *assembler, p *parser, op string) error {
	orig := *p
	s, err := regArg(p, errInvalidRs, true)
	if err != nil {
		return err
	}
	p.skipWhitespace()
	addr, later, err := a.target(p, orig, op, handleBranchZero)
	if err != nil {
		return err
	}
	if later {
		a.emit(0)
		return nil
	}
	off, err := branchOffset(addr, a.cur.addr())
	if err != nil {
		return err
	}
	b := branchesZero[op]
	if b.zeroFirst {
		a.emit(encB(off, s, 0, b.funct3))
	} else {
		a.emit(encB(off, 0, s, b.funct3))
	}
	return nil
}

func handleAluPseudo(a *assembler, p *parser, op string) error {
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	s, err := regArg(p, errInvalidRs, false)
	if err != nil {
		return err
	}
	a.emit(aluPseudo[op](d, s))
	return nil
}

// handleJump covers "j label", "call label" and "jal [rd,] label".
func handleJump(a *assembler, p *parser, op string) error {
	orig := *p
	var d uint32
	p.skipWhitespace()
	switch op {
	case "jal":
		r := p.reg()
		p.skipWhitespace()
		if p.consumeIf(',') {
			if r < 0 {
				return errInvalidRd
			}
			d = uint32(r)
		} else {
			*p = orig
			d = 1
		}
	case "call":
		d = 1
	}

	p.skipWhitespace()
	addr, later, err := a.target(p, orig, op, handleJump)
	if err != nil {
		return err
	}
	if later {
		a.emit(0)
		return nil
	}
	off := int32(addr - a.cur.addr())
	if off < -(1<<20) || off >= 1<<20 {
		return errBranchOutOfRange
	}
	a.emit(encJ(off, d))
	return nil
}

// handleJumpReg covers "jr rs", "jalr rs", "jalr rd, rs, imm" and "jalr rd, imm(rs)".
func handleJumpReg(a *assembler, p *parser, op string) error {
	if op == "jr" {
		s, err := regArg(p, errInvalidRs, false)
		if err != nil {
			return err
		}
		a.emit(encI(0, s, 0, 0, opJALR))
		return nil
	}

	p.skipWhitespace()
	r := p.reg()
	if r < 0 {
		return errInvalidRegister
	}
	d := uint32(r)
	p.skipWhitespace()
	if !p.consumeIf(',') {
		a.emit(encI(0, d, 0, 1, opJALR))
		return nil
	}

	p.skipWhitespace()
	var s uint32
	var err error
	if imm, ok := p.numeric(); ok {
		if s, err = memArg(p, errInvalidRs); err != nil {
			return err
		}
		return emitJALR(a, d, s, imm)
	}
	if p.peek() == '(' {
		if s, err = memArg(p, errInvalidRs); err != nil {
			return err
		}
		return emitJALR(a, d, s, 0)
	}
	if s, err = regArg(p, errInvalidRs, true); err != nil {
		return err
	}
	imm, err := immArg(p)
	if err != nil {
		return err
	}
	return emitJALR(a, d, s, imm)
}

func emitJALR(a *assembler, d, s uint32, imm int32) error {
	if !fitsI(imm) {
		return errImmOutOfRange
	}
	a.emit(encI(imm, s, 0, d, opJALR))
	return nil
}

func handleRet(a *assembler, _ *parser, _ string) error {
	a.emit(encI(0, 1, 0, 0, opJALR))
	return nil
}

func handleNop(a *assembler, _ *parser, _ string) error {
	a.emit(encI(0, 0, 0, 0, opImm))
	return nil
}

func handleEcall(a *assembler, _ *parser, _ string) error {
	a.emit(instECALL)
	return nil
}

func handleUpper(a *assembler, p *parser, op string) error {
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	imm, err := immArg(p)
	if err != nil {
		return err
	}
	// signed or unsigned 20 bit
	if imm < -524288 || imm > 1048575 {
		return errImmOutOfBounds
	}
	opcode := uint32(opLUI)
	if op == "auipc" {
		opcode = opAUIPC
	}
	a.emit(encU(uint32(imm)&0xfffff, d, opcode))
	return nil
}

// handleLi expands to addi, or lui+addi when the value needs more than 12 bits.
func handleLi(a *assembler, p *parser, _ string) error {
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	imm, err := immArg(p)
	if err != nil {
		return err
	}
	if fitsI(imm) {
		a.emit(encI(imm, 0, 0, d, opImm))
		return nil
	}
	hi, lo := splitHiLo(imm)
	a.emit(encU(hi&0xfffff, d, opLUI))
	a.emit(encI(lo, d, 0, d, opImm))
	return nil
}

// handleLa always expands to the pc-relative auipc+addi pair.
func handleLa(a *assembler, p *parser, op string) error {
	orig := *p
	d, err := regArg(p, errInvalidRd, true)
	if err != nil {
		return err
	}
	p.skipWhitespace()
	addr, later, err := a.target(p, orig, op, handleLa)
	if err != nil {
		return err
	}
	if later {
		a.emit(0)
		a.emit(0)
		return nil
	}
	hi, lo := splitHiLo(int32(addr - a.cur.addr()))
	a.emit(encU(hi&0xfffff, d, opAUIPC))
	a.emit(encI(lo, d, 0, d, opImm))
	return nil
}
