// Package stub holds the linkage table of precompiled runtime stubs that
// lowered graphs may call. The table is fixed at init and never mutated, so
// compilation workers read it concurrently without locking.
package stub

import (
	"slices"

	"copyir/internal/ir"
	"copyir/internal/types"
)

// Name identifies a runtime stub.
type Name string

const (
	// GenericArraycopy copies between arrays of any element kind and reports
	// partial failure through its status result.
	GenericArraycopy Name = "genericArraycopy"
	// CheckcastArraycopy copies between reference arrays, checking each
	// element against the destination element type.
	CheckcastArraycopy Name = "checkcastArraycopy"
)

func (n Name) String() string { return string(n) }

// Param describes one stub argument.
type Param struct {
	Name string
	Kind types.Kind
}

// Linkage is the calling contract of a stub.
type Linkage struct {
	Name   Name
	Params []Param
	Result types.Kind
	Width  types.Width // result width
	// Kill is the memory location the stub may overwrite.
	Kill ir.LocationIdentity
}

var copyParams = []Param{
	{Name: "src", Kind: types.KindClass},
	{Name: "srcPos", Kind: types.KindInt},
	{Name: "dest", Kind: types.KindClass},
	{Name: "destPos", Kind: types.KindInt},
	{Name: "length", Kind: types.KindInt},
}

var table = [...]Linkage{
	{Name: GenericArraycopy, Params: copyParams, Result: types.KindInt, Width: types.Width32, Kill: ir.Any()},
	{Name: CheckcastArraycopy, Params: copyParams, Result: types.KindInt, Width: types.Width32, Kill: ir.Any()},
}

// Lookup returns the linkage of a stub by name.
func Lookup(name Name) (Linkage, bool) {
	for _, l := range table {
		if l.Name == name {
			l.Params = slices.Clone(l.Params)
			return l, true
		}
	}
	return Linkage{}, false
}

// ForVariant maps a copy variant to the stub implementing it. Specialized
// copies have no stub.
func ForVariant(v ir.CopyVariant) (Linkage, bool) {
	switch v {
	case ir.CopyGeneric:
		return Lookup(GenericArraycopy)
	case ir.CopyChecked:
		return Lookup(CheckcastArraycopy)
	default:
		return Linkage{}, false
	}
}

// Names lists every stub in table order.
func Names() []Name {
	out := make([]Name, 0, len(table))
	for _, l := range table {
		out = append(out, l.Name)
	}
	return out
}
