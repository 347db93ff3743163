package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type (void results, untyped values).
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindUnknown is a value whose static type could not be determined.
	KindUnknown
	KindBool
	KindChar
	KindInt
	KindFloat
	// KindClass is a reference to an instance of a named class.
	KindClass
	// KindArray is a reference to an array of Elem.
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnknown:
		return "unknown"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindClass:
		return "class"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
)

// ClassID indexes the class table of an interner. Zero is reserved.
type ClassID uint32

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind  Kind
	Elem  TypeID  // for arrays
	Width Width   // for numeric primitives
	Class ClassID // for classes
}

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes an array with the given element type.
func MakeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// IsPrimitive reports whether the kind is stored by value in arrays.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindChar, KindInt, KindFloat:
		return true
	}
	return false
}

// IsReference reports whether values of the kind are heap references.
func (k Kind) IsReference() bool {
	return k == KindClass || k == KindArray
}
