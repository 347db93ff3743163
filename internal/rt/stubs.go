package rt

import (
	"copyir/internal/stub"
	"copyir/internal/types"
)

// StubFunc is the Go implementation of a runtime stub. The returned error is
// reserved for broken preconditions (null arrays, out-of-range offsets) that
// guards in front of the call must already have excluded; element type
// failures are reported through the status only.
type StubFunc func(h *Heap, src Value, srcPos int32, dest Value, destPos, length int32) (int32, error)

var stubs = map[stub.Name]StubFunc{
	stub.GenericArraycopy:   GenericArraycopy,
	stub.CheckcastArraycopy: CheckcastArraycopy,
}

// LookupStub resolves a stub name from the linkage table to its implementation.
func LookupStub(name stub.Name) (StubFunc, bool) {
	fn, ok := stubs[name]
	return fn, ok
}

// GenericArraycopy copies length elements of src starting at srcPos into dest
// starting at destPos. Arrays of any element kind are accepted.
//
// It returns StatusSuccess when the whole range was copied and the bitwise
// complement of the number of copied elements when an element could not be
// stored. Mismatched primitive element kinds fail before the first element.
func GenericArraycopy(h *Heap, src Value, srcPos int32, dest Value, destPos, length int32) (int32, error) {
	if length == 0 {
		return StatusSuccess, nil
	}
	s, sElem, d, dElem, err := h.copyOperands(src, srcPos, dest, destPos, length)
	if err != nil {
		return 0, err
	}
	sPrim, dPrim := h.Types.IsPrimitive(sElem), h.Types.IsPrimitive(dElem)
	switch {
	case sPrim && dPrim:
		if sElem != dElem {
			return EncodeFailure(0)
		}
		copy(d.Elems[destPos:destPos+length], s.Elems[srcPos:srcPos+length])
		return StatusSuccess, nil
	case sPrim != dPrim:
		return EncodeFailure(0)
	}
	return h.checkedCopy(s, srcPos, d, dElem, destPos, length)
}

// CheckcastArraycopy copies between reference arrays, checking every element
// against the destination element type. Its status encoding matches
// GenericArraycopy.
func CheckcastArraycopy(h *Heap, src Value, srcPos int32, dest Value, destPos, length int32) (int32, error) {
	if length == 0 {
		return StatusSuccess, nil
	}
	s, sElem, d, dElem, err := h.copyOperands(src, srcPos, dest, destPos, length)
	if err != nil {
		return 0, err
	}
	if h.Types.IsPrimitive(sElem) || h.Types.IsPrimitive(dElem) {
		return 0, newError(ErrUnsupported, "checkcast copy between %s and %s arrays",
			types.Label(h.Types, sElem), types.Label(h.Types, dElem))
	}
	return h.checkedCopy(s, srcPos, d, dElem, destPos, length)
}

// checkedCopy stores elements in ascending order and stops at the first one
// that is not assignable to dElem. The source range is read before any store
// so overlapping copies within one array see the original contents.
func (h *Heap) checkedCopy(s *Object, srcPos int32, d *Object, dElem types.TypeID, destPos, length int32) (int32, error) {
	window := append([]Value(nil), s.Elems[srcPos:srcPos+length]...)
	for i, v := range window {
		if !h.assignable(v, dElem) {
			return EncodeFailure(i)
		}
		d.Elems[int(destPos)+i] = v
	}
	return StatusSuccess, nil
}

func (h *Heap) copyOperands(src Value, srcPos int32, dest Value, destPos, length int32) (s *Object, sElem types.TypeID, d *Object, dElem types.TypeID, err error) {
	if src.IsNull() || dest.IsNull() {
		return nil, 0, nil, 0, newError(ErrNullPointer, "copy with null array")
	}
	if s, sElem, err = h.Array(src); err != nil {
		return nil, 0, nil, 0, err
	}
	if d, dElem, err = h.Array(dest); err != nil {
		return nil, 0, nil, 0, err
	}
	if !inRange(srcPos, length, len(s.Elems)) || !inRange(destPos, length, len(d.Elems)) {
		return nil, 0, nil, 0, newError(ErrIndexOutOfBounds,
			"copy of %d elements from %d (length %d) to %d (length %d)",
			length, srcPos, len(s.Elems), destPos, len(d.Elems))
	}
	return s, sElem, d, dElem, nil
}

func inRange(pos, length int32, n int) bool {
	return pos >= 0 && length >= 0 && int64(pos)+int64(length) <= int64(n)
}

// MemMove copies length elements between arrays with identical element types.
// Overlapping ranges behave as if the source were read first.
func (h *Heap) MemMove(src Value, srcPos int32, dest Value, destPos, length int32) error {
	if length == 0 {
		return nil
	}
	s, sElem, d, dElem, err := h.copyOperands(src, srcPos, dest, destPos, length)
	if err != nil {
		return err
	}
	if !h.Types.IsSubtype(sElem, dElem) {
		return newError(ErrUnsupported, "raw move from %s[] to %s[]",
			types.Label(h.Types, sElem), types.Label(h.Types, dElem))
	}
	copy(d.Elems[destPos:destPos+length], s.Elems[srcPos:srcPos+length])
	return nil
}
