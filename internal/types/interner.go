package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types and the root class.
type Builtins struct {
	Invalid TypeID
	Unknown TypeID
	Bool    TypeID
	Char    TypeID
	Byte    TypeID
	Short   TypeID
	Int     TypeID
	Long    TypeID
	Float   TypeID
	Double  TypeID
	Object  TypeID
}

// ClassInfo describes a named class in the single-inheritance hierarchy.
type ClassInfo struct {
	Name  string
	Super TypeID // NoTypeID only for the root class
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// An interner is built once per session and is read-only afterwards; graphs of
// independent compilation units may share it across goroutines.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	classes  []ClassInfo
	byName   map[string]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives and Object.
func NewInterner() *Interner {
	in := &Interner{
		index:  make(map[Type]TypeID, 32),
		byName: make(map[string]TypeID, 16),
	}
	in.classes = append(in.classes, ClassInfo{}) // reserve 0 as invalid sentinel
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unknown = in.Intern(Type{Kind: KindUnknown})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar, Width: Width16})
	in.builtins.Byte = in.Intern(MakeInt(Width8))
	in.builtins.Short = in.Intern(MakeInt(Width16))
	in.builtins.Int = in.Intern(MakeInt(Width32))
	in.builtins.Long = in.Intern(MakeInt(Width64))
	in.builtins.Float = in.Intern(MakeFloat(Width32))
	in.builtins.Double = in.Intern(MakeFloat(Width64))
	obj, err := in.RegisterClass("Object", NoTypeID)
	if err != nil {
		panic(err)
	}
	in.builtins.Object = obj
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// KindOf returns the kind of id, KindUnknown for NoTypeID.
func (in *Interner) KindOf(id TypeID) Kind {
	tt, ok := in.Lookup(id)
	if !ok {
		return KindUnknown
	}
	return tt.Kind
}

// ArrayOf interns elem[].
func (in *Interner) ArrayOf(elem TypeID) TypeID {
	return in.Intern(MakeArray(elem))
}

// ElemOf returns the element type of an array type.
func (in *Interner) ElemOf(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindArray {
		return NoTypeID, false
	}
	return tt.Elem, true
}

// RegisterClass declares a class with the given superclass. Redeclaring a
// class with the same superclass returns the existing TypeID.
func (in *Interner) RegisterClass(name string, super TypeID) (TypeID, error) {
	name = normalizeName(name)
	if name == "" {
		return NoTypeID, fmt.Errorf("empty class name")
	}
	if id, ok := in.byName[name]; ok {
		info, _ := in.ClassInfo(id)
		if info.Super != super {
			return NoTypeID, fmt.Errorf("class %s redeclared with a different superclass", name)
		}
		return id, nil
	}
	if super == NoTypeID && in.builtins.Object != NoTypeID {
		super = in.builtins.Object
	}
	if super != NoTypeID && in.KindOf(super) != KindClass {
		return NoTypeID, fmt.Errorf("superclass of %s is not a class", name)
	}
	n, err := safecast.Conv[uint32](len(in.classes))
	if err != nil {
		return NoTypeID, fmt.Errorf("len(classes) overflow: %w", err)
	}
	in.classes = append(in.classes, ClassInfo{Name: name, Super: super})
	id := in.Intern(Type{Kind: KindClass, Class: ClassID(n)})
	in.byName[name] = id
	return id, nil
}

// ClassInfo returns the class descriptor for a class type.
func (in *Interner) ClassInfo(id TypeID) (ClassInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindClass || int(tt.Class) >= len(in.classes) {
		return ClassInfo{}, false
	}
	return in.classes[tt.Class], true
}

// ClassByName finds a previously registered class.
func (in *Interner) ClassByName(name string) (TypeID, bool) {
	id, ok := in.byName[normalizeName(name)]
	return id, ok
}
