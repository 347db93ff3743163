package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var primitiveNames = map[string]func(Builtins) TypeID{
	"boolean": func(b Builtins) TypeID { return b.Bool },
	"byte":    func(b Builtins) TypeID { return b.Byte },
	"char":    func(b Builtins) TypeID { return b.Char },
	"short":   func(b Builtins) TypeID { return b.Short },
	"int":     func(b Builtins) TypeID { return b.Int },
	"long":    func(b Builtins) TypeID { return b.Long },
	"float":   func(b Builtins) TypeID { return b.Float },
	"double":  func(b Builtins) TypeID { return b.Double },
	"?":       func(b Builtins) TypeID { return b.Unknown },
	"unknown": func(b Builtins) TypeID { return b.Unknown },
}

// normalizeName folds type names to NFC so that visually identical class
// names written in different unicode forms intern to the same class.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Parse resolves a textual type such as "int[]", "String[][]" or "Object".
// Class names must have been registered first.
func (in *Interner) Parse(text string) (TypeID, error) {
	name := normalizeName(text)
	if name == "" {
		return NoTypeID, fmt.Errorf("empty type name")
	}
	dims := 0
	for strings.HasSuffix(name, "[]") {
		dims++
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	var base TypeID
	if mk, ok := primitiveNames[name]; ok {
		base = mk(in.builtins)
	} else if id, ok := in.byName[name]; ok {
		base = id
	} else {
		return NoTypeID, fmt.Errorf("unknown type %q", name)
	}
	if base == in.builtins.Unknown && dims > 0 {
		return NoTypeID, fmt.Errorf("array of unknown element type %q", text)
	}
	for range dims {
		base = in.ArrayOf(base)
	}
	return base, nil
}

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID {
		return "void"
	}
	if depth > 8 {
		return "..."
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindUnknown:
		return "?"
	case KindBool:
		return "boolean"
	case KindChar:
		return "char"
	case KindInt:
		switch tt.Width {
		case Width8:
			return "byte"
		case Width16:
			return "short"
		case Width64:
			return "long"
		default:
			return "int"
		}
	case KindFloat:
		if tt.Width == Width32 {
			return "float"
		}
		return "double"
	case KindClass:
		info, _ := typesIn.ClassInfo(id)
		return info.Name
	case KindArray:
		return labelDepth(typesIn, tt.Elem, depth+1) + "[]"
	}
	return tt.Kind.String()
}
