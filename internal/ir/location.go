package ir

import (
	"copyir/internal/types"
)

// LocationKind tags a LocationIdentity.
type LocationKind uint8

const (
	// LocNone is the effect of pure nodes.
	LocNone LocationKind = iota
	// LocAny is all memory, unconditionally.
	LocAny
	// LocNamed is a single abstract region identified by name.
	LocNamed
)

// LocationIdentity names an abstract memory region for alias and ordering
// analysis. The zero value is LocNone.
type LocationIdentity struct {
	Kind LocationKind
	Name string
}

// Any returns the universal location.
func Any() LocationIdentity { return LocationIdentity{Kind: LocAny} }

// NoLocation returns the location of pure nodes.
func NoLocation() LocationIdentity { return LocationIdentity{} }

// Named returns a named abstract region.
func Named(name string) LocationIdentity {
	return LocationIdentity{Kind: LocNamed, Name: name}
}

// ArrayLocation is the region holding elements of arrays with the given
// element type. Covariant reference arrays may alias each other, so every
// reference element type shares one region.
func ArrayLocation(typesIn *types.Interner, elem types.TypeID) LocationIdentity {
	if typesIn.IsReference(elem) {
		return Named(RefArrayLocation)
	}
	return Named("array:" + types.Label(typesIn, elem))
}

// RefArrayLocation names the region of all reference-typed array elements.
const RefArrayLocation = "array:ref"

// IsAny reports whether l is the universal location.
func (l LocationIdentity) IsAny() bool { return l.Kind == LocAny }

// IsNone reports whether l is the empty location.
func (l LocationIdentity) IsNone() bool { return l.Kind == LocNone }

func (l LocationIdentity) String() string {
	switch l.Kind {
	case LocAny:
		return "any"
	case LocNamed:
		return l.Name
	default:
		return "none"
	}
}

// Overlaps reports whether two locations may alias. None overlaps nothing;
// Any overlaps everything else.
func Overlaps(a, b LocationIdentity) bool {
	if a.IsNone() || b.IsNone() {
		return false
	}
	if a.IsAny() || b.IsAny() {
		return true
	}
	return a.Name == b.Name
}
