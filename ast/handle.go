package ast

import (
	"fmt"
	"sync"
)

// Handle is a positive 32-bit handle naming a cloned AST node in a
// Registry, per spec.md §4.5.
type Handle uint32

// Registry is a thread-local-by-convention map from Handle to cloned AST
// nodes. Quarter runs single-threaded and cooperative (spec.md §5), so one
// Registry is created per VM and never shared across goroutines; the
// embedded mutex exists only because Forth code driven through the
// AST-handle primitives may re-enter the registry from within a callback
// during native compilation (the same reentrancy concern spec.md §5 calls
// out for the native symbol table).
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]Node
	next    Handle
}

// NewRegistry creates an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]Node), next: 1}
}

// Store clones n and returns a fresh handle for it.
func (r *Registry) Store(n Node) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.next
	r.next++
	r.entries[h] = n.Clone()
	return h
}

// Get returns the node for h, or an error if h is unknown (released or
// never issued).
func (r *Registry) Get(h Handle) (Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.entries[h]
	if !ok {
		return Node{}, UnknownHandleError(h)
	}
	return n, nil
}

// Release frees a handle. Per spec.md §4.5/§9, registry entries otherwise
// persist until explicitly released or process exit; Release is how a long
// session reclaims them.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, h)
}

// CloneChild stores a clone of one of n's children (by the Tag-specific
// indexing rules below) as a fresh handle, implementing AST-SEQ-CHILD et al.
func (r *Registry) CloneChild(n Node, index int) (Handle, error) {
	switch n.Tag {
	case TagSequence:
		if index < 0 || index >= len(n.Children) {
			return 0, fmt.Errorf("ast: sequence child index %d out of range", index)
		}
		return r.Store(n.Children[index]), nil
	default:
		return 0, fmt.Errorf("ast: node of tag %d has no indexed children", n.Tag)
	}
}

// UnknownHandleError reports a lookup against a handle with no registry entry.
type UnknownHandleError Handle

func (h UnknownHandleError) Error() string { return fmt.Sprintf("ast: unknown handle %d", Handle(h)) }
