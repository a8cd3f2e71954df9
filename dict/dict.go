// Package dict implements Quarter's dictionary: a case-insensitive mapping
// from word name to one of three entry variants (primitive, threaded AST,
// native), tracking immediacy, freeze, and the last-defined word, per
// spec.md §3 and §4.2.
//
// The dispatch shape is grounded on the teacher's three-ish-variant code
// table (first.go's vmCodeTable, dispatched by integer code) generalised
// from a flat function-pointer array into a tagged-union Entry, since
// spec.md's three variants (Primitive/Compiled/Native) need distinct
// payload shapes that a single function-pointer slot cannot hold.
package dict

import (
	"strings"
	"sync"

	"github.com/quarter-lang/quarter/ast"
)

// Variant tags which payload an Entry carries.
type Variant int

const (
	// VariantPrimitive is a built-in implemented directly in Go.
	VariantPrimitive Variant = iota
	// VariantCompiled is a threaded AST produced by the parser.
	VariantCompiled
	// VariantNative is a JIT-compiled machine-code function pointer.
	VariantNative
)

// PrimitiveFunc is the interpreter-tier calling convention for a built-in
// word: it receives whatever shared state the caller chooses to close
// over (see prim.Func, which wraps this with the concrete runtime state).
type PrimitiveFunc func() error

// NativeFunc is the native calling convention shared by the backend and by
// primitives exported under quarter_<name>: fn(memory_base, sp, rp).
type NativeFunc func(memory []byte, sp, rp *uintptr)

// Entry is one dictionary record.
type Entry struct {
	Name      string // uppercased
	Variant   Variant
	Primitive PrimitiveFunc
	AST       *ast.Node
	Native    NativeFunc

	Immediate bool
	Frozen    bool
}

// FrozenRedefinitionError is returned by Define* when name is frozen.
type FrozenRedefinitionError struct{ Name string }

func (e FrozenRedefinitionError) Error() string {
	return "cannot redefine frozen word " + e.Name
}

// Dictionary is the case-insensitive name -> Entry store.
type Dictionary struct {
	mu      sync.Mutex
	entries map[string]*Entry
	last    *Entry
}

// New creates an empty Dictionary.
func New() *Dictionary {
	return &Dictionary{entries: make(map[string]*Entry)}
}

func key(name string) string { return strings.ToUpper(name) }

// Has reports whether name is defined.
func (d *Dictionary) Has(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key(name)]
	return ok
}

// Get returns the entry for name, or nil if undefined.
func (d *Dictionary) Get(name string) *Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[key(name)]
}

// LastDefined returns the most recently defined entry (the target of
// IMMEDIATE), or nil if nothing has been defined yet.
func (d *Dictionary) LastDefined() *Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *Dictionary) put(e *Entry) error {
	k := key(e.Name)
	if existing, ok := d.entries[k]; ok && existing.Frozen {
		return FrozenRedefinitionError{e.Name}
	}
	d.entries[k] = e
	d.last = e
	return nil
}

// DefinePrimitive registers a built-in word, overwriting any existing
// non-frozen entry of the same name.
func (d *Dictionary) DefinePrimitive(name string, fn PrimitiveFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.put(&Entry{Name: strings.ToUpper(name), Variant: VariantPrimitive, Primitive: fn})
}

// DefineCompiled stores an AST as a threaded word definition, overwriting
// any existing non-frozen entry of the same name, and records it as the
// last-defined word.
func (d *Dictionary) DefineCompiled(name string, n ast.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.put(&Entry{Name: strings.ToUpper(name), Variant: VariantCompiled, AST: &n})
}

// DefineNative stores a JIT-compiled function pointer and freezes the name,
// per spec.md §4.2 ("define_native ... calls freeze(name)").
func (d *Dictionary) DefineNative(name string, fn NativeFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.put(&Entry{Name: strings.ToUpper(name), Variant: VariantNative, Native: fn}); err != nil {
		return err
	}
	return d.freezeLocked(name)
}

// Freeze marks name as non-redefinable.
func (d *Dictionary) Freeze(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freezeLocked(name)
}

func (d *Dictionary) freezeLocked(name string) error {
	e, ok := d.entries[key(name)]
	if !ok {
		return UndefinedWordError{name}
	}
	e.Frozen = true
	return nil
}

// MarkImmediate sets the last-defined word's Immediate flag. The parser
// does not read this flag: a call to an immediate word inside a
// definition is compiled as an ordinary call, not executed at parse time.
func (d *Dictionary) MarkImmediate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return UndefinedWordError{"<none>"}
	}
	d.last.Immediate = true
	return nil
}

// UndefinedWordError reports a lookup, freeze, or call against a name with
// no dictionary entry.
type UndefinedWordError struct{ Name string }

func (e UndefinedWordError) Error() string { return "undefined word: " + e.Name }

// Execute dispatches name to its variant, per spec.md §4.2's "execution
// dispatch": Compiled entries run through runCompiled (which is
// responsible for the tail-call-trampoline decision described in §4.3),
// Native entries run through callNative (responsible for splicing in the
// memory_base/sp/rp calling convention), and Primitive entries run
// directly. Dict itself stays agnostic of how an AST is walked or a native
// function is invoked — both are interp's job — so that dict has no import
// dependency on interp (which must import dict to look words up).
func (d *Dictionary) Execute(name string, runCompiled func(*ast.Node) error, callNative func(NativeFunc) error, callPrimitive func(PrimitiveFunc) error) error {
	e := d.Get(name)
	if e == nil {
		return UndefinedWordError{name}
	}
	switch e.Variant {
	case VariantCompiled:
		return runCompiled(e.AST)
	case VariantNative:
		return callNative(e.Native)
	default:
		return callPrimitive(e.Primitive)
	}
}

// UpgradeToNative replaces a Compiled entry's variant with Native in place,
// preserving the original AST is not required once frozen (native lowering
// always succeeds or leaves the interpreted entry untouched — see
// native.Backend.Compile), but the dictionary keeps this as a distinct
// operation from DefineNative so that call sites can assert the word being
// upgraded already exists and was Compiled.
func (d *Dictionary) UpgradeToNative(name string, fn NativeFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key(name)]
	if !ok {
		return UndefinedWordError{name}
	}
	e.Variant = VariantNative
	e.Native = fn
	e.Frozen = true
	return nil
}
