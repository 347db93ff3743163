package arraycopy

import (
	"errors"
	"fmt"

	"copyir/internal/ir"
	"copyir/internal/layout"
	"copyir/internal/stub"
)

// Stats counts what LowerAll rewrote.
type Stats struct {
	Specialized int
	Checked     int
	Generic     int
	Calls       int
}

// Total is the number of copy nodes lowered.
func (s Stats) Total() int { return s.Specialized + s.Checked + s.Generic }

// Add accumulates another unit's counts.
func (s *Stats) Add(o Stats) {
	s.Specialized += o.Specialized
	s.Checked += o.Checked
	s.Generic += o.Generic
	s.Calls += o.Calls
}

// Lower rewrites the copy node id and returns the node that replaced it.
// Specialized copies become a MemMove; generic and checked copies become a
// call to their stub, skipped for length 0 and followed by the status decode.
// The rewrite of the copy node itself is a single Replace, so no traversal
// observes both nodes wired at once.
func Lower(g *ir.Graph, id ir.NodeID, le *layout.LayoutEngine) (ir.NodeID, error) {
	n := g.Node(id)
	if !n.IsCopy() {
		return ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: id, Msg: "lower: not a copy node"}
	}
	if n.Copy.Variant == ir.CopySpecialized {
		return lowerSpecialized(g, id, le)
	}
	return lowerCall(g, id)
}

func lowerSpecialized(g *ir.Graph, id ir.NodeID, le *layout.LayoutEngine) (ir.NodeID, error) {
	n := g.Node(id)
	cp := n.Copy
	size, err := le.SizeOf(cp.Elem)
	if err != nil {
		return ir.NoNodeID, fmt.Errorf("copy #%d: %w", cp.Origin, err)
	}
	mv, err := g.Add(ir.Node{
		Kind:   ir.NodeMemMove,
		Type:   n.Type,
		Inputs: n.Inputs,
		Move: ir.MoveData{
			Origin:   cp.Origin,
			Elem:     cp.Elem,
			ElemSize: size,
			Disjoint: cp.Disjoint,
			Location: ir.ArrayLocation(g.Types, cp.Elem),
		},
	})
	if err != nil {
		return ir.NoNodeID, err
	}
	if err := g.Replace(id, mv); err != nil {
		_ = g.Remove(mv)
		return ir.NoNodeID, err
	}
	return mv, nil
}

// lowerCall swaps a generic or checked copy for
//
//	if length == 0 { } else { status = stub(...); <decode status> }
//
// with both outcomes joined by a Merge that takes over the copy's control
// successor. Everything is built beside the copy first; a failure there rolls
// the new nodes back and leaves the copy in place. Once Replace succeeded
// the copy is gone, and an error from the final rewiring leaves a graph that
// fails validation, so the unit must be dropped.
func lowerCall(g *ir.Graph, id ir.NodeID) (ir.NodeID, error) {
	n := g.Node(id)
	cp := n.Copy
	link, ok := stub.ForVariant(cp.Variant)
	if !ok {
		return ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: id, Msg: fmt.Sprintf("no stub for %s copy", cp.Variant)}
	}
	if kill := g.KilledLocation(id); kill != link.Kill {
		return ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: id,
			Msg: fmt.Sprintf("stub %s kills %s, copy kills %s", link.Name, link.Kill, kill)}
	}
	succ := g.ControlSuccessors(id)
	if len(succ) > 1 {
		return ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: id, Msg: "copy has more than one control successor"}
	}

	mark := g.Mark()
	call, join, err := buildCall(g, n, link)
	if err == nil {
		err = g.Replace(id, call)
	}
	if err != nil {
		return ir.NoNodeID, errors.Join(err, g.Rollback(mark))
	}
	for _, s := range succ {
		if err := g.ReplaceInput(s, ir.SlotControl, join); err != nil {
			return call, err
		}
	}
	return call, nil
}

// buildCall emits the zero-length test, the stub call and its status decode
// below the copy's control predecessor. It returns the call and the Merge
// that joins the skipped and the successful paths.
func buildCall(g *ir.Graph, n *ir.Node, link stub.Linkage) (call, join ir.NodeID, err error) {
	cp, typ := n.Copy, n.Type
	ops := n.ValueInputs()
	if len(ops) != 5 {
		return ir.NoNodeID, ir.NoNodeID, &ir.InvariantError{Graph: g.Name, Node: n.ID, Msg: fmt.Sprintf("copy has %d operands, want 5", len(ops))}
	}
	b := ir.NewBuilderAt(g, g.ControlInput(n.ID), g.MemoryInput(n.ID))
	isEmpty := b.Binary(ir.OpEq, ops[4], b.Const(0))
	skip, run := b.If(isEmpty)
	call = run.Append(ir.Node{
		Kind: ir.NodeForeignCall,
		Type: typ,
		Call: ir.CallData{
			Target: link.Name.String(),
			Kill:   link.Kill,
			Origin: cp.Origin,
		},
	}, ops...)
	if err := run.Err(); err != nil {
		return ir.NoNodeID, ir.NoNodeID, err
	}
	done, err := insertDecode(g, call, cp.Origin)
	if err != nil {
		return ir.NoNodeID, ir.NoNodeID, err
	}
	join = skip.Merge(done, call)
	if err := skip.Err(); err != nil {
		return ir.NoNodeID, ir.NoNodeID, err
	}
	return call, join, nil
}

// LowerAll lowers every copy node of g and validates the result.
func LowerAll(g *ir.Graph, le *layout.LayoutEngine) (Stats, error) {
	var st Stats
	for _, id := range g.NodesOf(ir.NodeArrayCopy) {
		variant := g.Node(id).Copy.Variant
		if _, err := Lower(g, id, le); err != nil {
			return st, err
		}
		switch variant {
		case ir.CopySpecialized:
			st.Specialized++
		case ir.CopyChecked:
			st.Checked++
			st.Calls++
		default:
			st.Generic++
			st.Calls++
		}
	}
	if err := errors.Join(ir.Validate(g), ir.ValidateMemoryOrder(g)); err != nil {
		return st, err
	}
	return st, nil
}
