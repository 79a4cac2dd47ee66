package engine

// Minimal core-module encoder used to build the "env" shim that provides the
// host callbacks and the imported linear memory to the engine.

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secCode     = 10

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	valI32 = 0x7f
	valI64 = 0x7e
)

type funcType struct {
	params  []byte
	results []byte
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type memoryImport struct {
	module, name string
	min          uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type function struct {
	typeIdx uint32
	body    []byte
}

// moduleBuilder assembles a core wasm module from its parts. Function indices
// number imports first, then defined functions, in insertion order.
type moduleBuilder struct {
	types     []funcType
	imports   []funcImport
	funcs     []function
	globals   []int32
	exports   []export
	memImport *memoryImport
	memory    bool
	memMin    uint32
	memMax    uint32
	memHasMax bool
}

func (b *moduleBuilder) typeIndex(params, results []byte) uint32 {
	for i, t := range b.types {
		if string(t.params) == string(params) && string(t.results) == string(results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

func (b *moduleBuilder) importFunc(module, name string, params, results []byte) uint32 {
	b.imports = append(b.imports, funcImport{module: module, name: name, typeIdx: b.typeIndex(params, results)})
	return uint32(len(b.imports) - 1)
}

func (b *moduleBuilder) defineFunc(params, results, body []byte) uint32 {
	b.funcs = append(b.funcs, function{typeIdx: b.typeIndex(params, results), body: body})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

func (b *moduleBuilder) defineMemory(min, max uint32) {
	b.memory = true
	b.memMin = min
	b.memMax = max
	b.memHasMax = max > 0
}

func (b *moduleBuilder) importMemory(module, name string, min uint32) {
	b.memImport = &memoryImport{module: module, name: name, min: min}
}

func (b *moduleBuilder) defineGlobal(value int32) uint32 {
	b.globals = append(b.globals, value)
	return uint32(len(b.globals) - 1)
}

func (b *moduleBuilder) export(name string, kind byte, idx uint32) {
	b.exports = append(b.exports, export{name: name, kind: kind, idx: idx})
}

func (b *moduleBuilder) encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(b.types) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(b.types)))
		for _, t := range b.types {
			s = append(s, 0x60)
			s = appendU32(s, uint32(len(t.params)))
			s = append(s, t.params...)
			s = appendU32(s, uint32(len(t.results)))
			s = append(s, t.results...)
		}
		out = appendSection(out, secType, s)
	}

	if n := len(b.imports); n > 0 || b.memImport != nil {
		if b.memImport != nil {
			n++
		}
		var s []byte
		s = appendU32(s, uint32(n))
		for _, imp := range b.imports {
			s = appendName(s, imp.module)
			s = appendName(s, imp.name)
			s = append(s, kindFunc)
			s = appendU32(s, imp.typeIdx)
		}
		if m := b.memImport; m != nil {
			s = appendName(s, m.module)
			s = appendName(s, m.name)
			s = append(s, kindMemory, 0x00)
			s = appendU32(s, m.min)
		}
		out = appendSection(out, secImport, s)
	}

	if len(b.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s = appendU32(s, f.typeIdx)
		}
		out = appendSection(out, secFunction, s)
	}

	if b.memory {
		s := []byte{1}
		if b.memHasMax {
			s = append(s, 0x01)
			s = appendU32(s, b.memMin)
			s = appendU32(s, b.memMax)
		} else {
			s = append(s, 0x00)
			s = appendU32(s, b.memMin)
		}
		out = appendSection(out, secMemory, s)
	}

	if len(b.globals) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(b.globals)))
		for _, g := range b.globals {
			s = append(s, valI32, 0x00, 0x41)
			s = appendS32(s, g)
			s = append(s, 0x0b)
		}
		out = appendSection(out, secGlobal, s)
	}

	if len(b.exports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(b.exports)))
		for _, e := range b.exports {
			s = appendName(s, e.name)
			s = append(s, e.kind)
			s = appendU32(s, e.idx)
		}
		out = appendSection(out, secExport, s)
	}

	if len(b.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			// no locals beyond params
			code := append([]byte{0x00}, f.body...)
			code = append(code, 0x0b)
			s = appendU32(s, uint32(len(code)))
			s = append(s, code...)
		}
		out = appendSection(out, secCode, s)
	}

	return out
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(content)))
	return append(out, content...)
}

func appendName(out []byte, name string) []byte {
	out = appendU32(out, uint32(len(name)))
	return append(out, name...)
}

func appendU32(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func appendS32(out []byte, v int32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
