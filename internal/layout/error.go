package layout

import (
	"fmt"

	"copyir/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrUnsized indicates a type without a fixed storage size
	// (unknown or invalid stamps).
	LayoutErrUnsized LayoutErrorKind = iota + 1
	// LayoutErrNotArray indicates an element query on a non-array type.
	LayoutErrNotArray
	LayoutErrWidth
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Width int // for LayoutErrWidth
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrUnsized:
		return fmt.Sprintf("type has no fixed size (type#%d)", e.Type)
	case LayoutErrNotArray:
		return fmt.Sprintf("not an array type (type#%d)", e.Type)
	case LayoutErrWidth:
		return fmt.Sprintf("unsupported primitive width %d (type#%d)", e.Width, e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
