package rt

import (
	"fmt"
)

// Ref is a heap handle. Handles are never reused within a heap; 0 is null.
type Ref uint32

// ValueKind tags a Value.
type ValueKind uint8

const (
	VKInvalid ValueKind = iota
	VKInt
	VKRef
)

// Value is a machine value seen by lowered code: an integer or a reference.
type Value struct {
	Kind ValueKind
	Int  int64
	Ref  Ref
}

// MakeInt returns an integer value.
func MakeInt(v int64) Value { return Value{Kind: VKInt, Int: v} }

// MakeRef returns a reference value; r == 0 is null.
func MakeRef(r Ref) Value { return Value{Kind: VKRef, Ref: r} }

// Null returns the null reference.
func Null() Value { return Value{Kind: VKRef} }

// IsNull reports whether v is the null reference.
func (v Value) IsNull() bool { return v.Kind == VKRef && v.Ref == 0 }

func (v Value) String() string {
	switch v.Kind {
	case VKInt:
		return fmt.Sprintf("%d", v.Int)
	case VKRef:
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("@%d", v.Ref)
	default:
		return "<invalid>"
	}
}
