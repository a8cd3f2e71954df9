package native

/*
#include <stdint.h>
#include <stddef.h>

typedef void (*quarter_native_fn)(uint8_t *memory, uintptr_t *sp, uintptr_t *rp);

static void quarter_call_native(quarter_native_fn fn, uint8_t *memory, uintptr_t *sp, uintptr_t *rp) {
	fn(memory, sp, rp);
}

// quarterFallbackDispatch is exported from Go below; each quarter_bridge_N
// is a real, separately-addressed C function satisfying the native ABI, so
// AddGlobalMapping can bind a JIT'd extern declaration to an address that
// is genuinely callable with the C calling convention. The slot number is
// baked in at compile time and threaded through to the Go side, which looks
// up the Go closure actually registered for that slot.
extern void quarterFallbackDispatch(int slot, uint8_t *memory, uintptr_t *sp, uintptr_t *rp);

#define QUARTER_BRIDGE_SLOT(fn, slot) \
	static void fn(uint8_t *memory, uintptr_t *sp, uintptr_t *rp) { \
		quarterFallbackDispatch(slot, memory, sp, rp); \
	}

QUARTER_BRIDGE_SLOT(quarter_bridge_0, 0)
QUARTER_BRIDGE_SLOT(quarter_bridge_1, 1)
QUARTER_BRIDGE_SLOT(quarter_bridge_2, 2)
QUARTER_BRIDGE_SLOT(quarter_bridge_3, 3)
QUARTER_BRIDGE_SLOT(quarter_bridge_4, 4)
QUARTER_BRIDGE_SLOT(quarter_bridge_5, 5)
QUARTER_BRIDGE_SLOT(quarter_bridge_6, 6)
QUARTER_BRIDGE_SLOT(quarter_bridge_7, 7)
QUARTER_BRIDGE_SLOT(quarter_bridge_8, 8)
QUARTER_BRIDGE_SLOT(quarter_bridge_9, 9)
QUARTER_BRIDGE_SLOT(quarter_bridge_10, 10)
QUARTER_BRIDGE_SLOT(quarter_bridge_11, 11)
QUARTER_BRIDGE_SLOT(quarter_bridge_12, 12)
QUARTER_BRIDGE_SLOT(quarter_bridge_13, 13)
QUARTER_BRIDGE_SLOT(quarter_bridge_14, 14)
QUARTER_BRIDGE_SLOT(quarter_bridge_15, 15)

static quarter_native_fn quarter_bridge_slot(int slot) {
	switch (slot) {
	case 0: return quarter_bridge_0;
	case 1: return quarter_bridge_1;
	case 2: return quarter_bridge_2;
	case 3: return quarter_bridge_3;
	case 4: return quarter_bridge_4;
	case 5: return quarter_bridge_5;
	case 6: return quarter_bridge_6;
	case 7: return quarter_bridge_7;
	case 8: return quarter_bridge_8;
	case 9: return quarter_bridge_9;
	case 10: return quarter_bridge_10;
	case 11: return quarter_bridge_11;
	case 12: return quarter_bridge_12;
	case 13: return quarter_bridge_13;
	case 14: return quarter_bridge_14;
	case 15: return quarter_bridge_15;
	default: return NULL;
	}
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/quarter-lang/quarter/dict"
)

// callNativeAddr invokes the function at addr using Quarter's native ABI
// (spec.md §6: "extern C void f(uint8_t* memory, uintptr_t* sp, uintptr_t*
// rp)"). tinygo.org/x/go-llvm already requires cgo to bind libLLVM, so this
// small trampoline adds no new build dependency; it exists because calling
// an arbitrary C function pointer is not otherwise expressible in Go.
func callNativeAddr(addr uintptr, memory []byte, sp, rp *uintptr) {
	fallbackBridgeMu.Lock()
	fallbackMemLen = len(memory)
	fallbackBridgeMu.Unlock()

	var memPtr *C.uint8_t
	if len(memory) > 0 {
		memPtr = (*C.uint8_t)(unsafe.Pointer(&memory[0]))
	}
	C.quarter_call_native(
		C.quarter_native_fn(unsafe.Pointer(addr)),
		memPtr,
		(*C.uintptr_t)(unsafe.Pointer(sp)),
		(*C.uintptr_t)(unsafe.Pointer(rp)),
	)
}

// CallAddr invokes the function at addr using Quarter's native ABI,
// exported for the LLVM-* facade's REGISTER-JIT-WORD primitive to wrap a
// JIT-compiled address (from LLVM-JIT-COMPILE) as a dict.NativeFunc.
func CallAddr(addr uintptr, memory []byte, sp, rp *uintptr) {
	callNativeAddr(addr, memory, sp, rp)
}

// maxFallbackBridgeSlots bounds how many bridgeFuncPointer calls can be
// made over the life of the process, since slots are never freed or
// reused. prim.NativeFallbacks registers a fixed
// 14; this leaves a little headroom without open-ending the pre-declared C
// trampoline set above, which must name one symbol per slot.
const maxFallbackBridgeSlots = 16

var (
	fallbackBridgeMu  sync.Mutex
	fallbackBridgeFns [maxFallbackBridgeSlots]dict.NativeFunc
	fallbackBridgeN   int
	fallbackMemLen    int
)

// bridgeFuncPointer returns a real C-callable address for fn: one of the
// pre-compiled quarter_bridge_N trampolines above, which call back into
// quarterFallbackDispatch to invoke fn as an ordinary Go closure. This is
// the actual ABI bridge spec.md §4.4/§6 requires for a fallback primitive
// to be callable as an extern from JIT'd code: taking fn's own code address
// via reflection (the prior approach) handed AddGlobalMapping a Go function
// value's entry point, which does not honor the C calling convention a JIT'd
// `call` instruction uses to invoke it — undefined behavior on every call.
// Each call takes a new slot, even for an fn bridged before; once all
// maxFallbackBridgeSlots slots are taken, every later call returns an error.
func bridgeFuncPointer(fn dict.NativeFunc) (uintptr, error) {
	fallbackBridgeMu.Lock()
	defer fallbackBridgeMu.Unlock()

	if fallbackBridgeN >= maxFallbackBridgeSlots {
		return 0, fmt.Errorf("native: exhausted %d fallback bridge slots", maxFallbackBridgeSlots)
	}
	slot := fallbackBridgeN
	fallbackBridgeFns[slot] = fn
	fallbackBridgeN++
	return uintptr(unsafe.Pointer(C.quarter_bridge_slot(C.int(slot)))), nil
}

//export quarterFallbackDispatch
func quarterFallbackDispatch(slot C.int, memory *C.uint8_t, sp, rp *C.uintptr_t) {
	fallbackBridgeMu.Lock()
	fn := fallbackBridgeFns[int(slot)]
	n := fallbackMemLen
	fallbackBridgeMu.Unlock()

	if fn == nil {
		return
	}
	var mem []byte
	if memory != nil && n > 0 {
		mem = unsafe.Slice((*byte)(unsafe.Pointer(memory)), n)
	}
	fn(mem, (*uintptr)(unsafe.Pointer(sp)), (*uintptr)(unsafe.Pointer(rp)))
}
