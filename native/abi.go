package native

import "github.com/quarter-lang/quarter/prim"

// Symbol returns the quarter_<name> ABI export name for a dictionary word,
// reusing prim's punctuation-to-ASCII transliteration table so a fallback
// extern call emitted here and the primitive actually bound to it (see
// bindFallbacks in backend.go) always agree on the mangled name, per
// spec.md §6's "exact mapping table is part of the ABI".
func Symbol(name string) string { return prim.NativeSymbol(name) }
