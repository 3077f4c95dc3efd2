// Package testutil builds small WebAssembly binaries used as compiler
// fixtures in tests.
package testutil

import (
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// moduleBuilder assembles a module with one memory and i32-only functions.
// Function indices account for imports, which always come first.
type moduleBuilder struct {
	module wasm.Module
}

func newModuleBuilder(memPages uint32, memExport string) *moduleBuilder {
	b := &moduleBuilder{}
	if memPages > 0 {
		b.module.MemorySection = &wasm.Memory{Min: memPages}
		if memExport != "" {
			b.module.ExportSection = append(b.module.ExportSection, &wasm.Export{
				Type: wasm.ExternTypeMemory,
				Name: memExport,
			})
		}
	}
	return b
}

func i32s(n int) []wasm.ValueType {
	types := make([]wasm.ValueType, n)
	for i := range types {
		types[i] = wasm.ValueTypeI32
	}
	return types
}

func (b *moduleBuilder) typeIndex(params, results int) wasm.Index {
	for i, t := range b.module.TypeSection {
		if len(t.Params) == params && len(t.Results) == results {
			return wasm.Index(i)
		}
	}
	b.module.TypeSection = append(b.module.TypeSection, &wasm.FunctionType{
		Params:  i32s(params),
		Results: i32s(results),
	})
	return wasm.Index(len(b.module.TypeSection) - 1)
}

func (b *moduleBuilder) importFunc(module, name string, params, results int) {
	b.module.ImportSection = append(b.module.ImportSection, &wasm.Import{
		Type:     wasm.ExternTypeFunc,
		Module:   module,
		Name:     name,
		DescFunc: b.typeIndex(params, results),
	})
}

func (b *moduleBuilder) addGlobal(init int32) {
	b.module.GlobalSection = append(b.module.GlobalSection, &wasm.Global{
		Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
		Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(init)},
	})
}

// addFunc appends a function with extra i32 locals. An empty name leaves it
// unexported.
func (b *moduleBuilder) addFunc(name string, params, results, locals int, body []byte) {
	index := wasm.Index(len(b.module.ImportSection) + len(b.module.FunctionSection))
	b.module.FunctionSection = append(b.module.FunctionSection, b.typeIndex(params, results))
	b.module.CodeSection = append(b.module.CodeSection, &wasm.Code{
		LocalTypes: i32s(locals),
		Body:       body,
	})
	if name != "" {
		b.module.ExportSection = append(b.module.ExportSection, &wasm.Export{
			Type:  wasm.ExternTypeFunc,
			Name:  name,
			Index: index,
		})
	}
}

func (b *moduleBuilder) encode() []byte {
	return binary.EncodeModule(&b.module)
}
