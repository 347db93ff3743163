package rt

import (
	"fmt"

	"fortio.org/safecast"

	"copyir/internal/types"
)

// Object is a heap cell: a class instance or an array.
type Object struct {
	Type  types.TypeID
	Elems []Value // arrays only
}

// Heap is the reference memory model the runtime stubs operate on.
// A heap belongs to one execution and is not safe for concurrent use.
type Heap struct {
	Types *types.Interner

	next Ref
	objs map[Ref]*Object
}

// NewHeap creates an empty heap over the given type table.
func NewHeap(typesIn *types.Interner) *Heap {
	return &Heap{Types: typesIn, next: 1, objs: make(map[Ref]*Object, 16)}
}

func (h *Heap) alloc(obj *Object) Ref {
	r := h.next
	h.next++
	h.objs[r] = obj
	return r
}

// AllocObject allocates an instance of a class.
func (h *Heap) AllocObject(class types.TypeID) (Ref, error) {
	if h.Types.KindOf(class) != types.KindClass {
		return 0, newError(ErrInvalidRef, "type#%d is not a class", class)
	}
	return h.alloc(&Object{Type: class}), nil
}

// AllocArray allocates an array of arrayType holding a copy of elems.
func (h *Heap) AllocArray(arrayType types.TypeID, elems []Value) (Ref, error) {
	if _, ok := h.Types.ElemOf(arrayType); !ok {
		return 0, newError(ErrInvalidRef, "type#%d is not an array type", arrayType)
	}
	return h.alloc(&Object{Type: arrayType, Elems: append([]Value(nil), elems...)}), nil
}

// Get returns the object behind r.
func (h *Heap) Get(r Ref) (*Object, error) {
	if r == 0 {
		return nil, newError(ErrNullPointer, "null reference")
	}
	obj, ok := h.objs[r]
	if !ok {
		return nil, newError(ErrInvalidRef, "invalid handle %d", r)
	}
	return obj, nil
}

// Array returns the array behind v and its element type.
func (h *Heap) Array(v Value) (*Object, types.TypeID, error) {
	if v.Kind != VKRef {
		return nil, types.NoTypeID, newError(ErrInvalidRef, "value %s is not a reference", v)
	}
	obj, err := h.Get(v.Ref)
	if err != nil {
		return nil, types.NoTypeID, err
	}
	elem, ok := h.Types.ElemOf(obj.Type)
	if !ok {
		return nil, types.NoTypeID, newError(ErrInvalidRef, "@%d is not an array", v.Ref)
	}
	return obj, elem, nil
}

// Len returns the length of the array behind v as an int32.
func (h *Heap) Len(v Value) (int32, error) {
	obj, _, err := h.Array(v)
	if err != nil {
		return 0, err
	}
	n, err := safecast.Conv[int32](len(obj.Elems))
	if err != nil {
		return 0, fmt.Errorf("array @%d: %w", v.Ref, err)
	}
	return n, nil
}

// Load reads one element.
func (h *Heap) Load(array Value, index int64) (Value, error) {
	obj, _, err := h.Array(array)
	if err != nil {
		return Value{}, err
	}
	if index < 0 || index >= int64(len(obj.Elems)) {
		return Value{}, newError(ErrIndexOutOfBounds, "index %d out of range for length %d", index, len(obj.Elems))
	}
	return obj.Elems[index], nil
}

// Store writes one element after checking assignability for reference arrays.
func (h *Heap) Store(array Value, index int64, v Value) error {
	obj, elem, err := h.Array(array)
	if err != nil {
		return err
	}
	if index < 0 || index >= int64(len(obj.Elems)) {
		return newError(ErrIndexOutOfBounds, "index %d out of range for length %d", index, len(obj.Elems))
	}
	if !h.assignable(v, elem) {
		return &ArrayStoreError{Index: int(index), Detail: fmt.Sprintf("%s is not assignable to %s", h.describe(v), types.Label(h.Types, elem))}
	}
	obj.Elems[index] = v
	return nil
}

// assignable reports whether v may be stored into a slot of type elem.
func (h *Heap) assignable(v Value, elem types.TypeID) bool {
	if h.Types.IsPrimitive(elem) {
		return v.Kind == VKInt
	}
	if v.Kind != VKRef {
		return false
	}
	if v.Ref == 0 {
		return true
	}
	obj, ok := h.objs[v.Ref]
	if !ok {
		return false
	}
	return h.Types.IsSubtype(obj.Type, elem)
}

func (h *Heap) describe(v Value) string {
	if v.Kind == VKRef && v.Ref != 0 {
		if obj, ok := h.objs[v.Ref]; ok {
			return types.Label(h.Types, obj.Type)
		}
	}
	return v.String()
}

// Snapshot returns a copy of the elements of the array behind v.
func (h *Heap) Snapshot(v Value) ([]Value, error) {
	obj, _, err := h.Array(v)
	if err != nil {
		return nil, err
	}
	return append([]Value(nil), obj.Elems...), nil
}
