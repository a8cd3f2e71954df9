package native

import "sync"

// SymbolTable is the one piece of process-wide mutable state spec.md §5
// calls out: a name -> JIT function address map, guarded by a mutex
// because the AST-handle-driven self-hosted compiler may re-enter
// registration (REGISTER-JIT-WORD) from within a running primitive.
type SymbolTable struct {
	mu   sync.Mutex
	addr map[string]uintptr
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{addr: make(map[string]uintptr)}
}

// Register binds name (an ABI symbol, e.g. "quarter_square") to a JIT or
// host function address, overwriting any prior binding.
func (t *SymbolTable) Register(name string, fn uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addr[name] = fn
}

// Lookup returns the address bound to name, if any.
func (t *SymbolTable) Lookup(name string) (uintptr, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.addr[name]
	return a, ok
}
