package arraycopy

import (
	"copyir/internal/ir"
	"copyir/internal/types"
)

// Decision is the strategy chosen for one copy.
type Decision struct {
	Variant ir.CopyVariant
	// Elem is the element type moved by specialized copies and the
	// destination element type checked by checked copies.
	Elem     types.TypeID
	Disjoint bool
}

// Select picks the copy strategy from the static types of the source and
// destination operands. The first matching rule wins:
//
//  1. identical primitive element types: Specialized
//  2. reference element types: Specialized when every source element is
//     provably assignable to the destination element type, Checked otherwise
//  3. anything else (unknown or non-array operands, mismatched kinds): Generic
//
// Select is total and deterministic.
func Select(in *types.Interner, src, dest types.TypeID) Decision {
	generic := Decision{Variant: ir.CopyGeneric}
	se, ok := in.ElemOf(src)
	if !ok {
		return generic
	}
	de, ok := in.ElemOf(dest)
	if !ok {
		return generic
	}
	if in.KindOf(se) == types.KindUnknown || in.KindOf(de) == types.KindUnknown {
		return generic
	}
	switch {
	case in.IsPrimitive(se) && in.IsPrimitive(de):
		if se == de {
			return Decision{Variant: ir.CopySpecialized, Elem: se}
		}
	case in.IsReference(se) && in.IsReference(de):
		if in.IsSubtype(se, de) {
			return Decision{Variant: ir.CopySpecialized, Elem: de}
		}
		return Decision{Variant: ir.CopyChecked, Elem: de}
	}
	return generic
}

// resultType is the type of a copy node: the int32 stub status for
// variants that lower to a call, none for specialized copies.
func resultType(in *types.Interner, v ir.CopyVariant) types.TypeID {
	if v == ir.CopySpecialized {
		return types.NoTypeID
	}
	return in.Builtins().Int
}

// Reselect re-runs selection for a copy node against the current operand
// types and swaps in a node of the new variant when the decision changed.
// Nodes that are not copies (including already lowered calls) are left alone
// and report false.
func Reselect(g *ir.Graph, id ir.NodeID) (bool, error) {
	n := g.Node(id)
	if !n.IsCopy() {
		return false, nil
	}
	ops := n.ValueInputs()
	if len(ops) != 5 {
		return false, &ir.InvariantError{Graph: g.Name, Node: id, Msg: "copy node without five operands"}
	}
	d := Select(g.Types, g.Node(ops[0]).Type, g.Node(ops[2]).Type)
	if d.Variant == n.Copy.Variant && d.Elem == n.Copy.Elem {
		return false, nil
	}
	repl := ir.Node{
		Kind:   ir.NodeArrayCopy,
		Type:   resultType(g.Types, d.Variant),
		Inputs: n.Inputs,
		Copy: ir.CopyData{
			Variant:  d.Variant,
			Origin:   n.Copy.Origin,
			Elem:     d.Elem,
			Disjoint: n.Copy.Disjoint,
		},
	}
	nid, err := g.Add(repl)
	if err != nil {
		return false, err
	}
	if err := g.Replace(id, nid); err != nil {
		_ = g.Remove(nid)
		return false, err
	}
	return true, nil
}
