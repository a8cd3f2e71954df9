package facade

import (
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/native"
)

// registerJITWord implements REGISTER-JIT-WORD ( addr name-addr name-len -- ),
// spec.md §6's final step of the self-hosted-compiler path: addr (as
// produced by LLVM-JIT-COMPILE) is recorded under the word's quarter_<name>
// ABI symbol in the backend's symbol table, so a later AST-driven Compile
// can link against it as an extern, and the dictionary entry is installed
// as a native word via dict.DefineNative — which freezes it, matching
// define_native's own freeze step (dict.DefineNative).
func registerJITWord(m Machine) error {
	name, err := popCountedString(m)
	if err != nil {
		return err
	}
	addr, err := popCell(m)
	if err != nil {
		return err
	}

	fnAddr := uintptr(addr)
	m.NativeBackend().Symbols().Register(native.Symbol(name), fnAddr)

	nativeFn := func(memory []byte, sp, rp *uintptr) {
		native.CallAddr(fnAddr, memory, sp, rp)
	}
	return m.Dict().DefineNative(name, dict.NativeFunc(nativeFn))
}
