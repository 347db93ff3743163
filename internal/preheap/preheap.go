// Package preheap manages the memory mapped immediately below the heap base.
// Copy stubs are reached through a dispatch table stored there, so compiled
// code can address them at a fixed negative offset from the heap base.
package preheap

import (
	"errors"
	"fmt"
	"math"

	"copyir/internal/layout"
)

// Status codes returned by Support.Initialize and Support.Install.
const (
	StatusOK           = 0
	StatusNotReady     = 1
	StatusMisaligned   = 2
	StatusAlreadyReady = 3
)

// Support is implemented by anything that needs pre-heap memory.
type Support interface {
	// Initialize prepares the support before the heap is mapped.
	Initialize() int
	// RequiredPreHeapBytes is the raw size of the region, unaligned.
	RequiredPreHeapBytes() uint64
	// Install publishes the region at addr, the start of the pre-heap mapping.
	Install(addr uint64) int
}

var (
	ErrAlignment = errors.New("preheap: heap alignment must be a power of two")
	ErrUnderflow = errors.New("preheap: heap base too low for pre-heap region")
	ErrOverflow  = errors.New("preheap: pre-heap region does not fit the address space")
)

// PreHeapBytes is the amount of address space to reserve in front of the
// heap: the required bytes rounded up so the heap itself stays aligned.
func PreHeapBytes(s Support, alignment uint64) (uint64, error) {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return 0, fmt.Errorf("%w: %d", ErrAlignment, alignment)
	}
	need := s.RequiredPreHeapBytes()
	if need > math.MaxUint64-(alignment-1) {
		return 0, fmt.Errorf("%w: %d bytes aligned to %d", ErrOverflow, need, alignment)
	}
	return layout.AlignUp(need, alignment), nil
}

// PreHeapStartAddress is where the pre-heap mapping begins for a heap based
// at heapBase. Only the unaligned size is subtracted.
func PreHeapStartAddress(s Support, heapBase uint64) (uint64, error) {
	need := s.RequiredPreHeapBytes()
	if need > heapBase {
		return 0, fmt.Errorf("%w: base %#x, need %d bytes", ErrUnderflow, heapBase, need)
	}
	return heapBase - need, nil
}
