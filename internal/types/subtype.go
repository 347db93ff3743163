package types

// IsSubtype reports whether a value of static type sub can be stored in a
// location of type super without a runtime check.
//
// Primitive types are subtypes only of themselves. Array covariance follows the
// usual rules: S[] <: T[] when S and T are references and S <: T; every
// reference type is a subtype of Object.
func (in *Interner) IsSubtype(sub, super TypeID) bool {
	if sub == super {
		return sub != NoTypeID
	}
	st, ok := in.Lookup(sub)
	if !ok {
		return false
	}
	pt, ok := in.Lookup(super)
	if !ok {
		return false
	}
	if st.Kind == KindUnknown || pt.Kind == KindUnknown {
		return false
	}
	if !st.Kind.IsReference() || !pt.Kind.IsReference() {
		return false
	}
	if super == in.builtins.Object {
		return true
	}
	switch st.Kind {
	case KindArray:
		if pt.Kind != KindArray {
			return false
		}
		se, pe := in.types[st.Elem], in.types[pt.Elem]
		if se.Kind.IsPrimitive() || pe.Kind.IsPrimitive() {
			return st.Elem == pt.Elem
		}
		return in.IsSubtype(st.Elem, pt.Elem)
	case KindClass:
		if pt.Kind != KindClass {
			return false
		}
		for cur := sub; cur != NoTypeID; {
			if cur == super {
				return true
			}
			info, ok := in.ClassInfo(cur)
			if !ok {
				return false
			}
			cur = info.Super
		}
	}
	return false
}

// IsPrimitive reports whether id names a primitive type.
func (in *Interner) IsPrimitive(id TypeID) bool {
	return in.KindOf(id).IsPrimitive()
}

// IsReference reports whether id names a class or array type.
func (in *Interner) IsReference(id TypeID) bool {
	return in.KindOf(id).IsReference()
}

// IsArray reports whether id names an array type.
func (in *Interner) IsArray(id TypeID) bool {
	return in.KindOf(id) == KindArray
}
