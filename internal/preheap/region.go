package preheap

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"fortio.org/safecast"

	"copyir/internal/layout"
	"copyir/internal/stub"
)

// headerWords is the number of pointer-sized words ahead of the table:
// entry count and table checksum.
const headerWords = 2

// Slot is one stub entry in the dispatch table.
type Slot struct {
	Name   stub.Name
	Offset uint64 // from the start of the region
}

// Region is the in-memory dispatch table for copy stubs.
type Region struct {
	target    layout.Target
	slots     []Slot
	reserved  uint64
	ready     bool
	installed bool
	base      uint64
}

// NewRegion returns a region for the given target. reserved extra bytes are
// appended after the table.
func NewRegion(target layout.Target, reserved uint64) *Region {
	return &Region{target: target, reserved: reserved}
}

// Initialize lays out one table slot per linked stub after the header. It
// returns StatusAlreadyReady when called twice.
func (r *Region) Initialize() int {
	if r.ready {
		return StatusAlreadyReady
	}
	word := r.word()
	off := headerWords * word
	r.slots = r.slots[:0]
	for _, name := range stub.Names() {
		r.slots = append(r.slots, Slot{Name: name, Offset: off})
		off += word
	}
	r.ready = true
	return StatusOK
}

// RequiredPreHeapBytes is the header, the table and the reserved tail. A
// size past the address space saturates at math.MaxUint64, which
// PreHeapBytes and PreHeapStartAddress then reject.
func (r *Region) RequiredPreHeapBytes() uint64 {
	n := uint64(len(stub.Names()))
	hi, table := bits.Mul64(headerWords+n, r.word())
	total, carry := bits.Add64(table, r.reserved, 0)
	if hi != 0 || carry != 0 {
		return math.MaxUint64
	}
	return total
}

// Install fixes the region at addr, which must be word aligned. The region
// must be initialized first.
func (r *Region) Install(addr uint64) int {
	if !r.ready {
		return StatusNotReady
	}
	if addr%r.word() != 0 {
		return StatusMisaligned
	}
	r.base = addr
	r.installed = true
	return StatusOK
}

// Slots returns the table layout. It is empty before Initialize.
func (r *Region) Slots() []Slot {
	return append([]Slot(nil), r.slots...)
}

// Address resolves a stub's absolute slot address once installed.
func (r *Region) Address(name stub.Name) (uint64, bool) {
	if !r.installed {
		return 0, false
	}
	for _, s := range r.slots {
		if s.Name == name {
			return r.base + s.Offset, true
		}
	}
	return 0, false
}

// HeapOffset is the signed distance from heapBase to a stub's slot, which is
// what compiled code embeds.
func (r *Region) HeapOffset(name stub.Name, heapBase uint64) (int64, error) {
	addr, ok := r.Address(name)
	if !ok {
		return 0, fmt.Errorf("preheap: %s not installed", name)
	}
	dist, err := safecast.Conv[int64](heapBase - addr)
	if err != nil {
		return 0, err
	}
	return -dist, nil
}

// Describe renders the reservation layout for a heap at heapBase.
func (r *Region) Describe(heapBase, alignment uint64) (string, error) {
	aligned, err := PreHeapBytes(r, alignment)
	if err != nil {
		return "", err
	}
	start, err := PreHeapStartAddress(r, heapBase)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "target     %s\n", r.target.Triple)
	fmt.Fprintf(&sb, "heap base  %#x\n", heapBase)
	fmt.Fprintf(&sb, "required   %d bytes\n", r.RequiredPreHeapBytes())
	fmt.Fprintf(&sb, "reserved   %d bytes (aligned to %d)\n", aligned, alignment)
	fmt.Fprintf(&sb, "start      %#x\n", start)
	for _, s := range r.slots {
		fmt.Fprintf(&sb, "  %-20s %#x\n", s.Name, start+s.Offset)
	}
	return sb.String(), nil
}

func (r *Region) word() uint64 {
	w, err := safecast.Conv[uint64](r.target.PtrSize)
	if err != nil || w == 0 {
		return 8
	}
	return w
}
