package layout

import (
	"copyir/internal/types"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int
}

// LayoutEngine computes memory layout for array element types.
//
// An engine caches results and is not safe for concurrent use; the driver
// creates one per compilation unit.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

// LayoutOf computes and caches the storage layout of a value of type t as it
// sits inside an array slot.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	if cached, ok := e.cache.get(t); ok {
		if cached.Err != nil {
			return cached.Layout, cached.Err
		}
		return cached.Layout, nil
	}
	layout, lerr := e.computeLayout(t)
	e.cache.put(t, &cacheEntry{Layout: layout, Err: lerr})
	if lerr != nil {
		return layout, lerr
	}
	return layout, nil
}

func (e *LayoutEngine) computeLayout(t types.TypeID) (TypeLayout, *LayoutError) {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
	switch tt.Kind {
	case types.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil
	case types.KindChar, types.KindInt, types.KindFloat:
		switch tt.Width {
		case types.Width8, types.Width16, types.Width32, types.Width64:
			n := int(tt.Width) / 8
			return TypeLayout{Size: n, Align: n}, nil
		}
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrWidth, Type: t, Width: int(tt.Width)}
	case types.KindClass, types.KindArray:
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// ElemSize returns the slot size of the elements of an array type.
func (e *LayoutEngine) ElemSize(arrayT types.TypeID) (int, error) {
	elem, ok := e.Types.ElemOf(arrayT)
	if !ok {
		return 0, &LayoutError{Kind: LayoutErrNotArray, Type: arrayT}
	}
	return e.SizeOf(elem)
}

// AlignUp rounds n up to a multiple of align. align must be a power of two;
// other values leave n unchanged.
func AlignUp(n uint64, align uint64) uint64 {
	if align == 0 || align&(align-1) != 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
