package arraycopy

import (
	"copyir/internal/ir"
)

// insertDecode appends the status check after a freshly built stub call:
//
//	if status == 0 { <returned Begin> } else { throw ArrayStore(status ^ -1) }
//
// Status 0 means success whatever the requested length was; any other value
// is the complement of the number of leading elements already copied.
func insertDecode(g *ir.Graph, call ir.NodeID, origin uint32) (ir.NodeID, error) {
	if succ := g.ControlSuccessors(call); len(succ) != 0 {
		return ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: call, Msg: "stub call already has a control successor"}
	}

	b := ir.NewBuilderAt(g, call, call)
	zero := b.Const(0)
	ok := b.Binary(ir.OpEq, call, zero)
	then, els := b.If(ok)
	allOnes := els.Const(-1)
	copied := els.Binary(ir.OpXor, call, allOnes)
	els.Throw(ir.ThrowArrayStore, origin, copied)
	if err := els.Err(); err != nil {
		return ir.NoNodeID, err
	}
	return then.Control(), nil
}
